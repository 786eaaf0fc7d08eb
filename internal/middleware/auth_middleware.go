// internal/middleware/auth_middleware.go
package middleware

import (
	"strings"

	"rankpilot-service/internal/pkg/jwt"
	"rankpilot-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// TokenVerifier validates bearer tokens into claims.
type TokenVerifier interface {
	Verify(token string) (*jwt.Claims, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
}

func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Auth validates the Authorization header and stores claims in context.
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Unauthorized(c, "missing bearer token")
			return
		}

		claims, err := m.verifier.Verify(token)
		if err != nil {
			response.Unauthorized(c, "invalid token")
			return
		}

		c.Set("claims", claims)
		c.Set("admin_id", claims.AdminID)
		c.Set("roles", claims.Roles)
		c.Next()
	}
}

// RequireRole allows the request only if the claims carry one of the
// given roles. Must run after Auth.
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			response.Unauthorized(c, "not authenticated")
			return
		}
		for _, role := range roles {
			if claims.HasRole(role) {
				c.Next()
				return
			}
		}
		response.Forbidden(c, "insufficient role")
	}
}

func (m *AuthMiddleware) AdminOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequireRole("admin", "super_admin"),
	}
}

func (m *AuthMiddleware) SuperAdminOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequireRole("super_admin"),
	}
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	// WebSocket clients cannot set headers from browsers.
	return c.Query("token")
}
