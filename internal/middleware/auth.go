// Package middleware provides HTTP middleware for authentication and logging.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AuthHeader is the header carrying the API token.
const AuthHeader = "Authorization"

// TokenAuth requires a matching bearer token on every request. An empty
// configured token disables authentication (local single-user setups).
func TokenAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		supplied := strings.TrimPrefix(c.GetHeader(AuthHeader), "Bearer ")
		if supplied == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(supplied), []byte(token)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Next()
	}
}
