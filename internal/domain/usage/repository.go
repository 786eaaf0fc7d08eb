// internal/domain/usage/repository.go
package usage

import (
	"context"
	"time"

	"rankpilot-service/internal/domain/tier"
)

type Repository interface {
	// Find returns the counter record for a user, or xerrors.ErrNotFound
	// when the user has never performed a metered action.
	Find(ctx context.Context, userID string) (*Counters, error)

	// Replace writes the full counter record for a user (rollover reset
	// is a full-record replace, never a delete).
	Replace(ctx context.Context, c *Counters) error

	// Increment atomically adds one to a single action count at the
	// storage layer and returns the new count. The record is created
	// lazily with resetsAt when absent.
	Increment(ctx context.Context, userID string, action tier.Action, resetsAt time.Time) (int, error)

	// All returns every counter record for batch scans.
	All(ctx context.Context) ([]Counters, error)
}
