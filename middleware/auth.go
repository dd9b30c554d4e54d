package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"marvelalbum/monitoring"
	"marvelalbum/utils"
)

const userIDKey = "userID"

// AuthMiddleware requires a valid bearer token and stores its user id in
// the context.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			monitoring.AuthenticationAttempts.WithLabelValues("missing").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token required"})
			return
		}

		userID, err := utils.ParseToken(strings.TrimSpace(token), secret)
		if err != nil {
			monitoring.AuthenticationAttempts.WithLabelValues("invalid").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated user's id.
func UserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}
