package authkit

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tyemirov/timebank-admin/pkg/jsonid"
	"github.com/tyemirov/timebank-admin/pkg/sessionvalidator"
)

var errEmptyRole = errors.New("jwt.mint.failure: role must be non-empty")

// MintAccessToken creates a signed HS256 access token in the format the upstream API issues.
// The dashboard itself never issues tokens in production; local tooling and tests use this.
func MintAccessToken(clock Clock, userID string, userEmail string, role string, issuer string, signingKey []byte, ttl time.Duration) (string, time.Time, error) {
	if strings.TrimSpace(role) == "" {
		return "", time.Time{}, errEmptyRole
	}
	if clock == nil {
		clock = NewSystemClock()
	}
	issuedAt := clock.Now().UTC()
	expiresAt := issuedAt.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionvalidator.Claims{
		UserID:    jsonid.ID(userID),
		UserEmail: userEmail,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt.Add(-30 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt.mint.failure: %w", err)
	}
	return signed, expiresAt, nil
}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystemClock returns a Clock backed by time.Now in UTC.
func NewSystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}
