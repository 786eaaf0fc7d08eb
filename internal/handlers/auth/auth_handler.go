// internal/handlers/auth/auth_handler.go
package auth

import (
	"net/http"

	"rankpilot-service/internal/domain/admin"
	"rankpilot-service/internal/middleware"
	xerrors "rankpilot-service/internal/pkg/errors"
	"rankpilot-service/internal/pkg/response"
	service "rankpilot-service/internal/service/auth"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login authenticates an admin and issues a JWT.
func (h *AuthHandler) Login(c *gin.Context) {
	var req admin.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "email and password are required", err)
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrUnauthorized) {
			response.Unauthorized(c, "invalid credentials")
			return
		}
		response.Error(c, http.StatusInternalServerError, "login failed", nil)
		return
	}

	response.Success(c, http.StatusOK, "login successful", resp)
}

// Me returns the authenticated admin's claims.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}

	response.Success(c, http.StatusOK, "authenticated", admin.Info{
		ID:    claims.AdminID,
		Email: claims.Email,
		Roles: claims.Roles,
	})
}
