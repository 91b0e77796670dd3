package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/timebank-admin/internal/authkit"
	"go.uber.org/zap"
)

// HandleWhoAmI returns the identity the session guard attached to the request.
func HandleWhoAmI(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(contextGin *gin.Context) {
		identity, found := authkit.IdentityFromContext(contextGin)
		if !found {
			logger.Warn("missing identity on context",
				zap.String("code", "api.me.missing_identity"))
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		contextGin.JSON(http.StatusOK, gin.H{
			"user_id": identity.UserID,
			"email":   identity.Email,
			"name":    identity.Name,
			"role":    identity.Role,
			"source":  identity.Source,
			"expires": identity.ExpiresAt,
		})
	}
}
