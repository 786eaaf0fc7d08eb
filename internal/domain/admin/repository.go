// internal/domain/admin/repository.go
package admin

import "context"

type Repository interface {
	Create(ctx context.Context, a *Admin) (*Admin, error)
	FindByEmail(ctx context.Context, email string) (*Admin, error)
	FindByID(ctx context.Context, id int64) (*Admin, error)
	UpdateLastLogin(ctx context.Context, id int64) error
}
