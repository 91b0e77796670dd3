package sessionvalidator

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tyemirov/timebank-admin/pkg/jsonid"
)

var (
	testSigningKey = []byte("secret-key")
	testNow        = time.Unix(1700000000, 0).UTC()
)

type fixedClock struct {
	current time.Time
}

func (clock fixedClock) Now() time.Time {
	return clock.current
}

type tokenOptions struct {
	signingKey []byte
	issuer     string
	role       string
	issuedAt   time.Time
	ttl        time.Duration
	subject    string
	userID     string
}

func signToken(t *testing.T, options tokenOptions) string {
	t.Helper()
	if options.signingKey == nil {
		options.signingKey = testSigningKey
	}
	if options.issuedAt.IsZero() {
		options.issuedAt = testNow
	}
	if options.ttl == 0 {
		options.ttl = time.Minute
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:    jsonid.ID(options.userID),
		UserEmail: "admin@example.com",
		UserName:  "Admin User",
		Role:      options.role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    options.issuer,
			Subject:   options.subject,
			IssuedAt:  jwt.NewNumericDate(options.issuedAt),
			ExpiresAt: jwt.NewNumericDate(options.issuedAt.Add(options.ttl)),
		},
	})
	signed, err := token.SignedString(options.signingKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newTestValidator(t *testing.T, configuration Config) *Validator {
	t.Helper()
	if configuration.SigningKey == nil {
		configuration.SigningKey = testSigningKey
	}
	if configuration.Clock == nil {
		configuration.Clock = fixedClock{current: testNow}
	}
	validator, err := New(configuration)
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}
	return validator
}

func TestNewRequiresSigningKey(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); !errors.Is(err, ErrMissingSigningKey) {
		t.Fatalf("expected missing signing key error, got %v", err)
	}
}

func TestNewFallsBackToDefaultCookieName(t *testing.T) {
	t.Parallel()

	validator := newTestValidator(t, Config{CookieName: "   "})
	if validator.CookieName() != DefaultCookieName {
		t.Fatalf("expected %q, got %q", DefaultCookieName, validator.CookieName())
	}
}

func TestValidateTokenReturnsClaims(t *testing.T) {
	t.Parallel()

	validator := newTestValidator(t, Config{})
	claims, err := validator.ValidateToken(signToken(t, tokenOptions{role: "admin", userID: "user-123"}))
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if claims.GetUserID() != "user-123" || !claims.HasRole("admin") || claims.UserEmail != "admin@example.com" {
		t.Fatalf("unexpected claims: %#v", claims)
	}
	if !claims.GetExpiresAt().Equal(testNow.Add(time.Minute)) {
		t.Fatalf("unexpected expiry: %v", claims.GetExpiresAt())
	}
}

func TestClaimsUserIDFallsBackToSubject(t *testing.T) {
	t.Parallel()

	validator := newTestValidator(t, Config{})
	claims, err := validator.ValidateToken(signToken(t, tokenOptions{role: "member", subject: "subject-9"}))
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if claims.GetUserID() != "subject-9" {
		t.Fatalf("expected subject fallback, got %q", claims.GetUserID())
	}
	if claims.HasRole("admin") || claims.HasRole("Member") {
		t.Fatalf("role comparison must be exact, got %q", claims.GetRole())
	}

	var nilClaims *Claims
	if nilClaims.GetUserID() != "" || nilClaims.GetRole() != "" || !nilClaims.GetExpiresAt().IsZero() {
		t.Fatalf("nil claims should report zero values")
	}
}

func TestValidateTokenIssuerCheckIsOptional(t *testing.T) {
	t.Parallel()

	tokenValue := signToken(t, tokenOptions{role: "admin", issuer: "someone-else"})

	strict := newTestValidator(t, Config{Issuer: "timebank-api"})
	if _, err := strict.ValidateToken(tokenValue); !errors.Is(err, ErrInvalidIssuer) {
		t.Fatalf("expected issuer mismatch, got %v", err)
	}
	lenient := newTestValidator(t, Config{})
	if _, err := lenient.ValidateToken(tokenValue); err != nil {
		t.Fatalf("expected issuer to be ignored, got %v", err)
	}
}

func TestValidateTokenFailures(t *testing.T) {
	t.Parallel()

	noneToken, noneErr := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Role: "admin"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if noneErr != nil {
		t.Fatalf("sign none token: %v", noneErr)
	}

	testCases := []struct {
		name     string
		token    string
		expected error
	}{
		{name: "blank", token: "  ", expected: ErrMissingToken},
		{name: "garbage", token: "not-a-jwt", expected: ErrInvalidToken},
		{name: "wrong key", token: signToken(t, tokenOptions{role: "admin", signingKey: []byte("other-key")}), expected: ErrInvalidToken},
		{name: "unsigned", token: noneToken, expected: ErrInvalidToken},
		{name: "empty role", token: signToken(t, tokenOptions{}), expected: ErrMissingRole},
		{name: "expired", token: signToken(t, tokenOptions{role: "admin", issuedAt: testNow.Add(-2 * time.Minute)}), expected: ErrTokenExpired},
	}

	validator := newTestValidator(t, Config{})
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if _, err := validator.ValidateToken(testCase.token); !errors.Is(err, testCase.expected) {
				t.Fatalf("expected %v, got %v", testCase.expected, err)
			}
		})
	}
}

func TestValidateRequestReadsCookieThenBearerHeader(t *testing.T) {
	t.Parallel()

	validator := newTestValidator(t, Config{CookieName: "session"})
	tokenValue := signToken(t, tokenOptions{role: "admin"})

	cookieRequest := httptest.NewRequest(http.MethodGet, "/protected", nil)
	cookieRequest.AddCookie(&http.Cookie{Name: "session", Value: tokenValue})
	if claims, err := validator.ValidateRequest(cookieRequest); err != nil || claims.GetRole() != "admin" {
		t.Fatalf("cookie request: claims=%v err=%v", claims, err)
	}

	headerRequest := httptest.NewRequest(http.MethodGet, "/protected", nil)
	headerRequest.Header.Set("Authorization", "Bearer "+tokenValue)
	if _, err := validator.ValidateRequest(headerRequest); err != nil {
		t.Fatalf("bearer request: %v", err)
	}

	bareRequest := httptest.NewRequest(http.MethodGet, "/protected", nil)
	bareRequest.Header.Set("Authorization", "Basic abc")
	if _, err := validator.ValidateRequest(bareRequest); !errors.Is(err, ErrMissingCookie) {
		t.Fatalf("expected missing cookie error, got %v", err)
	}

	if _, err := validator.ValidateRequest(nil); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected missing token error for nil request, got %v", err)
	}
}

func TestValidateTokenAcceptsNumericUserID(t *testing.T) {
	t.Parallel()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":    42,
		"role":  "admin",
		"email": "numeric@example.com",
		"exp":   testNow.Add(time.Minute).Unix(),
	})
	signed, err := token.SignedString(testSigningKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	claims, validateErr := newTestValidator(t, Config{}).ValidateToken(signed)
	if validateErr != nil {
		t.Fatalf("numeric id must not fail validation: %v", validateErr)
	}
	if claims.GetUserID() != "42" || !claims.HasRole("admin") {
		t.Fatalf("unexpected claims: %#v", claims)
	}
}
