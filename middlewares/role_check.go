package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/qr-restaurant/models"
)

// RequireRoles lets admins and the listed roles through.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(CtxRole)
		if !exists {
			abortUnauthorized(c, "unauthorized")
			return
		}
		if !roleAllowed(role.(string), roles) {
			forbidden(c, "insufficient role")
			return
		}
		c.Next()
	}
}

// screenRoles says which staff roles may open each live screen.
var screenRoles = map[string][]string{
	"kitchen": {models.RoleChef, models.RoleStaff},
	"counter": {models.RoleCashier, models.RoleStaff},
	"admin":   {},
}

// RoleCheck guards /ws/:role by the screen named in the path.
func RoleCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		screen := c.Param("role")
		userRole, exists := c.Get(CtxRole)
		if !exists {
			abortUnauthorized(c, "unauthorized")
			return
		}

		allowed, known := screenRoles[screen]
		if !known {
			forbidden(c, "unknown screen "+screen)
			return
		}
		if !roleAllowed(userRole.(string), allowed) {
			forbidden(c, screen+" access required")
			return
		}
		c.Next()
	}
}

func roleAllowed(role string, roles []string) bool {
	if role == models.RoleAdmin {
		return true
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
