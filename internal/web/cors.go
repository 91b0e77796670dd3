package web

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	errWildcardOrigin      = errors.New("cors: wildcard origin not allowed when credentials are enabled")
	errEmptyAllowedOrigins = errors.New("cors: no explicit origins provided")
	errInvalidOrigin       = errors.New("cors: invalid origin format")
)

var developmentHosts = map[string]bool{"localhost": true, "127.0.0.1": true}

// ConfigureCORS allows credentialed requests from an explicit origin list.
// Content-Disposition is exposed so export downloads keep their file name.
func ConfigureCORS(logger *zap.Logger, allowedOrigins []string) (gin.HandlerFunc, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	origins, err := normalizeOrigins(logger, allowedOrigins)
	if err != nil {
		return nil, err
	}
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Type", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}), nil
}

func normalizeOrigins(logger *zap.Logger, allowed []string) ([]string, error) {
	origins := make([]string, 0, len(allowed))
	for _, raw := range allowed {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		origin, insecure, err := normalizeOrigin(trimmed)
		if err != nil {
			return nil, err
		}
		if insecure {
			logger.Warn("unsafe cors origin configured",
				zap.String("code", "cors.origin.unsafe"),
				zap.String("origin", origin))
		}
		origins = append(origins, origin)
	}
	if len(origins) == 0 {
		return nil, errEmptyAllowedOrigins
	}
	slices.Sort(origins)
	return slices.Compact(origins), nil
}

// normalizeOrigin reduces an origin to scheme://host and reports plain http
// on anything other than a development host.
func normalizeOrigin(origin string) (string, bool, error) {
	if origin == "*" {
		return "", false, errWildcardOrigin
	}
	parsed, parseErr := url.Parse(origin)
	switch {
	case parseErr != nil || parsed.Scheme == "" || parsed.Host == "":
		return "", false, fmt.Errorf("%w: %s", errInvalidOrigin, origin)
	case parsed.Path != "" && parsed.Path != "/":
		return "", false, fmt.Errorf("%w: %s contains path segment", errInvalidOrigin, origin)
	case parsed.RawQuery != "" || parsed.Fragment != "":
		return "", false, fmt.Errorf("%w: %s contains query or fragment", errInvalidOrigin, origin)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "https" && scheme != "http" {
		return "", false, fmt.Errorf("%w: %s uses unsupported scheme", errInvalidOrigin, origin)
	}
	insecure := scheme == "http" && !developmentHosts[parsed.Hostname()]
	return scheme + "://" + parsed.Host, insecure, nil
}
