// internal/domain/subscription/repository.go
package subscription

import "context"

type Repository interface {
	// Find returns the stored record for a user, or xerrors.ErrNotFound
	// when none exists. Callers model absence as the default free record.
	Find(ctx context.Context, userID string) (*Record, error)

	// Upsert creates or replaces the single record for rec.UserID.
	Upsert(ctx context.Context, rec *Record) error

	// List returns records matching the filters, newest first.
	List(ctx context.Context, filters *ListFilters) ([]Record, error)

	// All streams every record for batch scans (consistency audits).
	All(ctx context.Context) ([]Record, error)

	// Stats aggregates record counts by status.
	Stats(ctx context.Context) (*Stats, error)
}
