package middlewares

import (
	"github.com/gin-gonic/gin"
)

// WebSocketAuthMiddleware reads the staff JWT from ?token=, since browsers
// cannot set headers on a websocket handshake.
func WebSocketAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			abortUnauthorized(c, "token missing")
			return
		}
		if !setClaims(c, token) {
			return
		}
		c.Next()
	}
}
