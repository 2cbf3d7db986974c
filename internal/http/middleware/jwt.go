package middleware

import (
	"context"
	"net/http"
	"strings"

	"spellingbee/internal/logger"
	"spellingbee/internal/service"

	"github.com/gin-gonic/gin"
)

// RevocationChecker reports signed-out token ids.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

const (
	ctxUserID = "user_id"
	ctxToken  = "token"
)

// JWT authenticates "Authorization: Bearer <token>" and stores the user id
// in the context. revoked may be nil.
func JWT(revoked RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		token = strings.TrimSpace(token)

		claims, err := service.ParseJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		if revoked != nil && claims.JTI != "" {
			isRevoked, err := revoked.IsRevoked(c.Request.Context(), claims.JTI)
			if err != nil {
				// fail-open like the rate limiter; tokens still expire
				logger.Warn("revocation check failed", "error", err)
			} else if isRevoked {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token revoked"})
				return
			}
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxToken, token)
		c.Next()
	}
}

// UserID returns the authenticated user id set by JWT.
func UserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// Token returns the raw bearer token set by JWT.
func Token(c *gin.Context) string {
	return c.GetString(ctxToken)
}
