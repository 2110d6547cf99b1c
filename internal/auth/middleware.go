package auth

import (
	"net/http"
	"strings"

	"github.com/KevinKickass/airmedia-bridge/internal/types"
	"github.com/gin-gonic/gin"
)

const (
	permissionsKey = "permissions"
	usernameKey    = "username"
	roleKey        = "role"
)

// AuthMiddleware validates bearer tokens and stores the caller's
// permissions in the gin context.
func (a *AuthService) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, types.NewErrorResponse("AUTH_401", "missing authorization header", nil))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, types.NewErrorResponse("AUTH_401", "invalid authorization header format", nil))
			return
		}

		claims, err := a.jwtHandler.ValidateAccessToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, types.NewErrorResponse("AUTH_401", "invalid or expired token", nil))
			return
		}

		c.Set(permissionsKey, roleToPermissions(claims.Role))
		c.Set(usernameKey, claims.Username)
		c.Set(roleKey, claims.Role)
		c.Next()
	}
}

// RequirePermission checks if user has required permission
func RequirePermission(required Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, p := range Permissions(c) {
			if p == required {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, types.NewErrorResponse("AUTH_403", "insufficient permissions", gin.H{
			"required": string(required),
		}))
	}
}

// Permissions returns what AuthMiddleware granted the caller.
func Permissions(c *gin.Context) []Permission {
	if perms, ok := c.Get(permissionsKey); ok {
		if p, ok := perms.([]Permission); ok {
			return p
		}
	}
	return nil
}

// Username returns the authenticated operator, or "" for anonymous calls.
func Username(c *gin.Context) string {
	return c.GetString(usernameKey)
}

// Role returns the authenticated operator's role.
func Role(c *gin.Context) string {
	return c.GetString(roleKey)
}
