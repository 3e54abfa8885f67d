package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AdminMiddleware guards the policy and source administration routes
// with an operator API key. This is infrastructure auth for the admin
// surface, not end-user authentication.
type AdminMiddleware struct {
	apiKey string
}

// NewAdminMiddleware creates the middleware with the configured key.
// An empty key disables the guard, which is only acceptable in
// development.
func NewAdminMiddleware(apiKey string) *AdminMiddleware {
	return &AdminMiddleware{
		apiKey: apiKey,
	}
}

// RequireAdminAuth validates the admin API key from the Authorization
// bearer token or the X-API-Key header.
func (am *AdminMiddleware) RequireAdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if am.apiKey == "" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) == 2 && tokenParts[0] == "Bearer" && tokenParts[1] == am.apiKey {
				c.Next()
				return
			}
		}

		if c.GetHeader("X-API-Key") == am.apiKey {
			c.Next()
			return
		}

		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "Unauthorized",
			"message": "Valid admin API key required for this endpoint",
		})
		c.Abort()
	}
}
