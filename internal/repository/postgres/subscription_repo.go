// internal/repository/postgres/subscription_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rankpilot-service/internal/domain/subscription"
	xerrors "rankpilot-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SubscriptionRepository struct {
	db *pgxpool.Pool
}

func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const subscriptionColumns = `
	user_id, tier, status,
	provider_customer_id, provider_subscription_id,
	period_start, period_end,
	legacy_role, legacy_plan,
	last_event_at, created_at, updated_at
`

// Find retrieves the subscription record for a user
func (r *SubscriptionRepository) Find(ctx context.Context, userID string) (*subscription.Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM subscriptions WHERE user_id = $1`, subscriptionColumns)

	rec, err := scanRecord(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	return rec, nil
}

// Upsert creates or replaces the single record for a user. One row per
// user; no history log.
func (r *SubscriptionRepository) Upsert(ctx context.Context, rec *subscription.Record) error {
	query := `
		INSERT INTO subscriptions (
			user_id, tier, status,
			provider_customer_id, provider_subscription_id,
			period_start, period_end,
			legacy_role, legacy_plan,
			last_event_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO UPDATE SET
			tier = EXCLUDED.tier,
			status = EXCLUDED.status,
			provider_customer_id = EXCLUDED.provider_customer_id,
			provider_subscription_id = EXCLUDED.provider_subscription_id,
			period_start = EXCLUDED.period_start,
			period_end = EXCLUDED.period_end,
			legacy_role = EXCLUDED.legacy_role,
			legacy_plan = EXCLUDED.legacy_plan,
			last_event_at = EXCLUDED.last_event_at,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		rec.UserID, rec.Tier, rec.Status,
		rec.ProviderCustomerID, rec.ProviderSubscriptionID,
		rec.PeriodStart, rec.PeriodEnd,
		rec.LegacyRole, rec.LegacyPlan,
		rec.LastEventAt,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// List retrieves records matching the filters, newest first
func (r *SubscriptionRepository) List(ctx context.Context, filters *subscription.ListFilters) ([]subscription.Record, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if filters.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, filters.Status)
		argPos++
	}
	if filters.Tier != "" {
		conditions = append(conditions, fmt.Sprintf("tier = $%d", argPos))
		args = append(args, filters.Tier)
		argPos++
	}

	query := fmt.Sprintf(`SELECT %s FROM subscriptions`, subscriptionColumns)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY updated_at DESC"

	limit := filters.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, filters.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// All retrieves every record for batch scans
func (r *SubscriptionRepository) All(ctx context.Context) ([]subscription.Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM subscriptions ORDER BY user_id`, subscriptionColumns)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscriptions: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// Stats aggregates record counts by status
func (r *SubscriptionRepository) Stats(ctx context.Context) (*subscription.Stats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'active'),
			COUNT(*) FILTER (WHERE status = 'past_due'),
			COUNT(*) FILTER (WHERE status = 'canceled'),
			COUNT(*) FILTER (WHERE status = 'free')
		FROM subscriptions
	`

	var stats subscription.Stats
	err := r.db.QueryRow(ctx, query).Scan(
		&stats.TotalRecords,
		&stats.ActiveRecords,
		&stats.PastDueRecords,
		&stats.CanceledRecords,
		&stats.FreeRecords,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription stats: %w", err)
	}
	return &stats, nil
}

func scanRecord(row pgx.Row) (*subscription.Record, error) {
	var rec subscription.Record
	err := row.Scan(
		&rec.UserID, &rec.Tier, &rec.Status,
		&rec.ProviderCustomerID, &rec.ProviderSubscriptionID,
		&rec.PeriodStart, &rec.PeriodEnd,
		&rec.LegacyRole, &rec.LegacyPlan,
		&rec.LastEventAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func collectRecords(rows pgx.Rows) ([]subscription.Record, error) {
	var records []subscription.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription row: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read subscription rows: %w", err)
	}
	return records, nil
}
