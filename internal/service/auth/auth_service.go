// internal/service/auth/auth_service.go
package auth

import (
	"context"
	"fmt"

	"rankpilot-service/internal/domain/admin"
	xerrors "rankpilot-service/internal/pkg/errors"
	"rankpilot-service/internal/pkg/jwt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	adminRepo  admin.Repository
	jwtManager *jwt.Manager
	logger     *zap.Logger
}

func NewAuthService(adminRepo admin.Repository, jwtManager *jwt.Manager, logger *zap.Logger) *AuthService {
	return &AuthService{
		adminRepo:  adminRepo,
		jwtManager: jwtManager,
		logger:     logger,
	}
}

// Login authenticates an admin identity and issues a token.
func (s *AuthService) Login(ctx context.Context, req *admin.LoginRequest) (*admin.LoginResponse, error) {
	a, err := s.adminRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		// Same error for unknown email and bad password.
		return nil, xerrors.ErrUnauthorized
	}
	if !a.IsActive {
		return nil, xerrors.ErrUnauthorized
	}

	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn("failed admin login attempt", zap.String("email", req.Email))
		return nil, xerrors.ErrUnauthorized
	}

	token, expiresAt, err := s.jwtManager.Generate(a.ID, a.Email, a.Roles)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	if err := s.adminRepo.UpdateLastLogin(ctx, a.ID); err != nil {
		// Non-fatal: the login itself succeeded.
		s.logger.Warn("failed to stamp last login", zap.Int64("admin_id", a.ID), zap.Error(err))
	}

	s.logger.Info("admin logged in", zap.Int64("admin_id", a.ID), zap.String("email", a.Email))

	return &admin.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Admin: admin.Info{
			ID:        a.ID,
			FullName:  a.FullName,
			Email:     a.Email,
			Roles:     a.Roles,
			IsActive:  a.IsActive,
			LastLogin: a.LastLogin,
		},
	}, nil
}

// Verify validates a bearer token.
func (s *AuthService) Verify(token string) (*jwt.Claims, error) {
	return s.jwtManager.Verify(token)
}

// EnsureSuperAdminExists bootstraps the super admin identity at
// startup. Safe to call on every boot.
func (s *AuthService) EnsureSuperAdminExists(ctx context.Context, email, password, fullName string) error {
	_, err := s.adminRepo.FindByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !xerrors.Is(err, xerrors.ErrNotFound) {
		return fmt.Errorf("failed to look up super admin: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash super admin password: %w", err)
	}

	_, err = s.adminRepo.Create(ctx, &admin.Admin{
		FullName:     fullName,
		Email:        email,
		PasswordHash: string(hash),
		Roles:        []string{"super_admin", "admin"},
		IsActive:     true,
	})
	if err != nil {
		return fmt.Errorf("failed to create super admin: %w", err)
	}

	s.logger.Info("super admin created", zap.String("email", email))
	return nil
}
