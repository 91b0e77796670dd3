// Package sessionvalidator verifies the HS256 access tokens the time bank API
// issues, either as a raw string or from an incoming request.
package sessionvalidator

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tyemirov/timebank-admin/pkg/jsonid"
)

// DefaultCookieName is used when Config.CookieName is empty.
const DefaultCookieName = "auth_token"

const bearerPrefix = "Bearer "

var (
	ErrMissingSigningKey = errors.New("session.validator.missing_signing_key")
	ErrMissingToken      = errors.New("session.validator.missing_token")
	ErrMissingCookie     = errors.New("session.validator.missing_cookie")
	ErrInvalidToken      = errors.New("session.validator.invalid_token")
	ErrInvalidIssuer     = errors.New("session.validator.invalid_issuer")
	ErrMissingRole       = errors.New("session.validator.missing_role")
	ErrTokenExpired      = errors.New("session.validator.expired")
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type utcClock struct{}

func (utcClock) Now() time.Time { return time.Now().UTC() }

// Config configures a Validator. Issuer is checked only when non-empty.
type Config struct {
	SigningKey []byte
	Issuer     string
	CookieName string
	Clock      Clock
}

// Claims is the access token payload minted by the time bank API. Only role
// is required; id may be a string or a number.
type Claims struct {
	UserID    jsonid.ID `json:"id,omitempty"`
	UserEmail string    `json:"email,omitempty"`
	UserName  string    `json:"name,omitempty"`
	Role      string    `json:"role"`
	jwt.RegisteredClaims
}

func (claims *Claims) GetUserID() string {
	switch {
	case claims == nil:
		return ""
	case claims.UserID != "":
		return claims.UserID.String()
	default:
		return claims.Subject
	}
}

func (claims *Claims) GetRole() string {
	if claims == nil {
		return ""
	}
	return claims.Role
}

// HasRole is an exact, case-sensitive comparison.
func (claims *Claims) HasRole(role string) bool {
	return claims.GetRole() == role
}

func (claims *Claims) GetExpiresAt() time.Time {
	if claims == nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// Validator checks signature, algorithm, expiry, issuer and the presence of a role.
type Validator struct {
	signingKey []byte
	issuer     string
	cookieName string
	parser     *jwt.Parser
}

func New(configuration Config) (*Validator, error) {
	if len(configuration.SigningKey) == 0 {
		return nil, fmt.Errorf("session.validator.new: %w", ErrMissingSigningKey)
	}
	clock := configuration.Clock
	if clock == nil {
		clock = utcClock{}
	}
	validator := &Validator{
		signingKey: configuration.SigningKey,
		issuer:     strings.TrimSpace(configuration.Issuer),
		cookieName: strings.TrimSpace(configuration.CookieName),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithTimeFunc(clock.Now),
		),
	}
	if validator.cookieName == "" {
		validator.cookieName = DefaultCookieName
	}
	return validator, nil
}

// ValidateToken parses tokenString and returns its claims.
func (validator *Validator) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := validator.parse(strings.TrimSpace(tokenString))
	if err != nil {
		return nil, fmt.Errorf("session.validator.validate_token: %w", err)
	}
	return claims, nil
}

// ValidateRequest validates the session cookie, or an Authorization bearer
// token when the request carries no cookie.
func (validator *Validator) ValidateRequest(request *http.Request) (*Claims, error) {
	tokenString, err := validator.tokenFromRequest(request)
	if err != nil {
		return nil, fmt.Errorf("session.validator.validate_request: %w", err)
	}
	return validator.ValidateToken(tokenString)
}

func (validator *Validator) CookieName() string {
	return validator.cookieName
}

func (validator *Validator) tokenFromRequest(request *http.Request) (string, error) {
	if request == nil {
		return "", ErrMissingToken
	}
	if cookie, cookieErr := request.Cookie(validator.cookieName); cookieErr == nil {
		if value := strings.TrimSpace(cookie.Value); value != "" {
			return value, nil
		}
	}
	header := request.Header.Get("Authorization")
	if strings.HasPrefix(header, bearerPrefix) {
		if value := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)); value != "" {
			return value, nil
		}
	}
	return "", ErrMissingCookie
}

func (validator *Validator) parse(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}
	claims := &Claims{}
	parsedToken, parseErr := validator.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return validator.signingKey, nil
	})
	switch {
	case errors.Is(parseErr, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case parseErr != nil, parsedToken == nil, !parsedToken.Valid:
		return nil, ErrInvalidToken
	case validator.issuer != "" && claims.Issuer != validator.issuer:
		return nil, ErrInvalidIssuer
	case strings.TrimSpace(claims.Role) == "":
		return nil, ErrMissingRole
	}
	return claims, nil
}
