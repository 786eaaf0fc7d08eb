// internal/repository/postgres/admin_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"rankpilot-service/internal/domain/admin"
	xerrors "rankpilot-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

type AdminRepository struct {
	db *pgxpool.Pool
}

func NewAdminRepository(db *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{db: db}
}

// Create inserts a new admin identity
func (r *AdminRepository) Create(ctx context.Context, a *admin.Admin) (*admin.Admin, error) {
	query := `
		INSERT INTO admin_identities (full_name, email, password_hash, roles, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		a.FullName, a.Email, a.PasswordHash, pq.Array(a.Roles), a.IsActive,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}
	return a, nil
}

// FindByEmail retrieves an admin by email
func (r *AdminRepository) FindByEmail(ctx context.Context, email string) (*admin.Admin, error) {
	query := `
		SELECT id, full_name, email, password_hash, roles, is_active,
		       created_at, updated_at, last_login
		FROM admin_identities
		WHERE email = $1
	`

	var a admin.Admin
	err := r.db.QueryRow(ctx, query, email).Scan(
		&a.ID, &a.FullName, &a.Email, &a.PasswordHash, pq.Array(&a.Roles),
		&a.IsActive, &a.CreatedAt, &a.UpdatedAt, &a.LastLogin,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find admin by email: %w", err)
	}
	return &a, nil
}

// FindByID retrieves an admin by ID
func (r *AdminRepository) FindByID(ctx context.Context, id int64) (*admin.Admin, error) {
	query := `
		SELECT id, full_name, email, password_hash, roles, is_active,
		       created_at, updated_at, last_login
		FROM admin_identities
		WHERE id = $1
	`

	var a admin.Admin
	err := r.db.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.FullName, &a.Email, &a.PasswordHash, pq.Array(&a.Roles),
		&a.IsActive, &a.CreatedAt, &a.UpdatedAt, &a.LastLogin,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find admin by id: %w", err)
	}
	return &a, nil
}

// UpdateLastLogin stamps a successful login
func (r *AdminRepository) UpdateLastLogin(ctx context.Context, id int64) error {
	query := `UPDATE admin_identities SET last_login = NOW(), updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}
