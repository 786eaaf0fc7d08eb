// internal/middleware/helpers.go
package middleware

import (
	"rankpilot-service/internal/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// GetClaims gets verified token claims from context
func GetClaims(c *gin.Context) (*jwt.Claims, bool) {
	v, exists := c.Get("claims")
	if !exists {
		return nil, false
	}
	claims, ok := v.(*jwt.Claims)
	return claims, ok
}

// MustGetAdminID gets the admin ID from context or panics
func MustGetAdminID(c *gin.Context) int64 {
	v, exists := c.Get("admin_id")
	if !exists {
		panic("admin_id not found in context")
	}
	id, ok := v.(int64)
	if !ok {
		panic("admin_id has unexpected type")
	}
	return id
}

// IsSuperAdmin checks if the request carries the super_admin role
func IsSuperAdmin(c *gin.Context) bool {
	claims, ok := GetClaims(c)
	return ok && claims.IsSuperAdmin()
}
