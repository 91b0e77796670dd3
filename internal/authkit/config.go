package authkit

import (
	"net/http"
	"time"
)

const (
	// DefaultSessionCookieName holds the short-lived access token.
	DefaultSessionCookieName = "auth_token"
	// DefaultRefreshCookieName holds the long-lived refresh token.
	DefaultRefreshCookieName = "refresh_token"
	// DefaultLoginPath is where unauthenticated page requests are sent.
	DefaultLoginPath = "/login"
	// AdminRole is the only role allowed past the session guard.
	AdminRole = "admin"

	DefaultSessionTTL = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// ServerConfig configures token verification, cookies, and the upstream API.
// It is built once at startup and treated as read-only afterwards.
type ServerConfig struct {
	AppJWTSigningKey  []byte
	AppJWTIssuer      string
	UpstreamBaseURL   string
	CookieDomain      string
	SessionCookieName string
	RefreshCookieName string
	LoginPath         string
	SessionTTL        time.Duration
	RefreshTTL        time.Duration
	SameSiteMode      http.SameSite
	Production        bool
}

// WithDefaults fills zero-valued fields with the dashboard defaults.
func (configuration ServerConfig) WithDefaults() ServerConfig {
	if configuration.SessionCookieName == "" {
		configuration.SessionCookieName = DefaultSessionCookieName
	}
	if configuration.RefreshCookieName == "" {
		configuration.RefreshCookieName = DefaultRefreshCookieName
	}
	if configuration.LoginPath == "" {
		configuration.LoginPath = DefaultLoginPath
	}
	if configuration.SessionTTL <= 0 {
		configuration.SessionTTL = DefaultSessionTTL
	}
	if configuration.RefreshTTL <= 0 {
		configuration.RefreshTTL = DefaultRefreshTTL
	}
	if configuration.SameSiteMode == 0 {
		configuration.SameSiteMode = http.SameSiteLaxMode
	}
	return configuration
}
