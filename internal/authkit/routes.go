package authkit

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	messageLoginMissingFields  = "identifier and password are required"
	messageLoginForbidden      = "access restricted to administrators"
	messageLoginFailed         = "login failed"
	messageLoginUnavailable    = "authentication service unavailable"
	messageLoginMalformedReply = "authentication service returned an invalid response"
)

// MountAuthRoutes registers /api/auth/login, /api/auth/logout, and /api/auth/session.
// These routes sit outside the guard; login is the only place besides the guard that writes token cookies.
func MountAuthRoutes(router gin.IRouter, guard *SessionGuard, identity IdentityProvider) {
	configuration := guard.configuration

	router.POST("/api/auth/login", func(contextGin *gin.Context) {
		var credentials LoginCredentials
		if err := contextGin.ShouldBindJSON(&credentials); err != nil || strings.TrimSpace(credentials.Identifier) == "" {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": messageLoginMissingFields})
			return
		}
		credentials.Identifier = strings.TrimSpace(credentials.Identifier)

		result, loginErr := identity.Login(contextGin.Request.Context(), credentials)
		if loginErr != nil {
			var statusErr *UpstreamStatusError
			if errors.As(loginErr, &statusErr) {
				message := statusErr.Message
				if message == "" {
					message = messageLoginFailed
				}
				guard.metrics.Increment(MetricLoginUpstreamRejected)
				guard.logger.Info("upstream login rejected",
					zap.String("code", "auth.login.upstream_rejected"),
					zap.Int("status", statusErr.StatusCode))
				contextGin.AbortWithStatusJSON(statusErr.StatusCode, gin.H{"success": false, "message": message})
				return
			}
			guard.metrics.Increment(MetricLoginUpstreamUnavailable)
			guard.logger.Error("upstream login failed",
				zap.String("code", "auth.login.upstream_error"),
				zap.Error(loginErr))
			message := messageLoginUnavailable
			if errors.Is(loginErr, ErrUpstreamMalformed) {
				message = messageLoginMalformedReply
			}
			contextGin.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"success": false, "message": message})
			return
		}

		if result.User.Role != AdminRole {
			guard.metrics.Increment(MetricLoginForbidden)
			guard.logger.Info("non-admin login refused",
				zap.String("code", "auth.login.forbidden"),
				zap.String("role", result.User.Role))
			contextGin.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": messageLoginForbidden})
			return
		}

		writeTokenPair(contextGin.Writer, configuration, result.TokenPair)
		guard.metrics.Increment(MetricLoginSuccess)
		contextGin.JSON(http.StatusOK, gin.H{
			"user":         result.User,
			"accessToken":  result.AccessToken,
			"refreshToken": result.RefreshToken,
		})
	})

	router.POST("/api/auth/logout", func(contextGin *gin.Context) {
		clearCookie(contextGin.Writer, configuration, configuration.SessionCookieName)
		clearCookie(contextGin.Writer, configuration, configuration.RefreshCookieName)
		contextGin.Status(http.StatusNoContent)
	})

	router.GET("/api/auth/session", func(contextGin *gin.Context) {
		claims, validateErr := guard.validator.ValidateRequest(contextGin.Request)
		if validateErr != nil || !claims.HasRole(AdminRole) {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		contextGin.JSON(http.StatusOK, identityFromClaims(claims, IdentitySourceLocal))
	})
}
