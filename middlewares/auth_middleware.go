package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/qr-restaurant/utils"
)

// Context keys set by the auth middlewares.
const (
	CtxUserID  = "userID"
	CtxRole    = "role"
	CtxSession = "session"
)

// AuthMiddleware accepts a staff JWT as "Authorization: Bearer <token>".
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "Authorization header missing")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if !setClaims(c, tokenString) {
			return
		}
		c.Next()
	}
}

func setClaims(c *gin.Context, tokenString string) bool {
	claims, err := utils.ParseToken(tokenString)
	if err != nil || claims == nil {
		abortUnauthorized(c, "Invalid or expired token")
		return false
	}
	if claims.UserID == 0 {
		abortUnauthorized(c, "Invalid user ID in token")
		return false
	}

	c.Set(CtxUserID, claims.UserID)
	c.Set(CtxRole, claims.Role)
	return true
}

func abortUnauthorized(c *gin.Context, message string) {
	utils.RespondAppError(c, utils.NewAppError(utils.CodeUnauthorized, message))
	c.Abort()
}

// CurrentUserID returns the authenticated staff member, or 0.
func CurrentUserID(c *gin.Context) uint {
	if v, ok := c.Get(CtxUserID); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

func CurrentRole(c *gin.Context) string {
	return c.GetString(CtxRole)
}

func forbidden(c *gin.Context, message string) {
	utils.RespondError(c, http.StatusForbidden, errors.New(message))
	c.Abort()
}
