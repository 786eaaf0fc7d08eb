// internal/repository/postgres/usage_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rankpilot-service/internal/domain/tier"
	"rankpilot-service/internal/domain/usage"
	xerrors "rankpilot-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsageRepository struct {
	db *pgxpool.Pool
}

func NewUsageRepository(db *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{db: db}
}

// Find retrieves the counter record for a user
func (r *UsageRepository) Find(ctx context.Context, userID string) (*usage.Counters, error) {
	query := `
		SELECT user_id, counts, resets_at, created_at, updated_at
		FROM usage_counters
		WHERE user_id = $1
	`

	var c usage.Counters
	var countsJSON []byte

	err := r.db.QueryRow(ctx, query, userID).Scan(
		&c.UserID, &countsJSON, &c.ResetsAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find usage counters: %w", err)
	}

	c.Counts = map[tier.Action]int{}
	if len(countsJSON) > 0 {
		if err := json.Unmarshal(countsJSON, &c.Counts); err != nil {
			return nil, fmt.Errorf("failed to decode usage counts: %w", err)
		}
	}
	return &c, nil
}

// Replace writes the full counter record for a user. Period rollover is
// a full-record replace, never a delete.
func (r *UsageRepository) Replace(ctx context.Context, c *usage.Counters) error {
	countsJSON, err := json.Marshal(c.Counts)
	if err != nil {
		return fmt.Errorf("failed to marshal usage counts: %w", err)
	}

	query := `
		INSERT INTO usage_counters (user_id, counts, resets_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			counts = EXCLUDED.counts,
			resets_at = EXCLUDED.resets_at,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`

	err = r.db.QueryRow(ctx, query, c.UserID, countsJSON, c.ResetsAt).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to replace usage counters: %w", err)
	}
	return nil
}

// Increment adds one to a single action count in one atomic statement
// at the storage layer. Concurrent increments for the same user never
// lose updates. The record is created lazily on first use.
func (r *UsageRepository) Increment(ctx context.Context, userID string, action tier.Action, resetsAt time.Time) (int, error) {
	query := `
		INSERT INTO usage_counters (user_id, counts, resets_at)
		VALUES ($1, jsonb_build_object($2::text, 1), $3)
		ON CONFLICT (user_id) DO UPDATE SET
			counts = jsonb_set(
				usage_counters.counts,
				ARRAY[$2::text],
				to_jsonb(COALESCE((usage_counters.counts->>$2)::int, 0) + 1)
			),
			updated_at = NOW()
		RETURNING (counts->>$2)::int
	`

	var count int
	err := r.db.QueryRow(ctx, query, userID, string(action), resetsAt).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to increment usage counter: %w", err)
	}
	return count, nil
}

// All retrieves every counter record for batch scans
func (r *UsageRepository) All(ctx context.Context) ([]usage.Counters, error) {
	query := `
		SELECT user_id, counts, resets_at, created_at, updated_at
		FROM usage_counters
		ORDER BY user_id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to scan usage counters: %w", err)
	}
	defer rows.Close()

	var all []usage.Counters
	for rows.Next() {
		var c usage.Counters
		var countsJSON []byte
		if err := rows.Scan(&c.UserID, &countsJSON, &c.ResetsAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		c.Counts = map[tier.Action]int{}
		if len(countsJSON) > 0 {
			if err := json.Unmarshal(countsJSON, &c.Counts); err != nil {
				return nil, fmt.Errorf("failed to decode usage counts: %w", err)
			}
		}
		all = append(all, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read usage rows: %w", err)
	}
	return all, nil
}
