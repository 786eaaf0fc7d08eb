// internal/pkg/jwt/claims.go
package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	AdminID int64    `json:"admin_id"`
	Email   string   `json:"email"`
	Roles   []string `json:"roles"`
	jwt.RegisteredClaims
}

func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (c *Claims) IsSuperAdmin() bool {
	return c.HasRole("super_admin")
}

func (c *Claims) IsAdmin() bool {
	return c.HasRole("admin") || c.HasRole("super_admin")
}

func (c *Claims) VerifyAudience(audience string, required bool) bool {
	if len(c.Audience) == 0 {
		return !required
	}
	for _, aud := range c.Audience {
		if aud == audience {
			return true
		}
	}
	return false
}
