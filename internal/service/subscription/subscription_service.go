// internal/service/subscription/subscription_service.go
package subscription

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"rankpilot-service/internal/domain/subscription"
	"rankpilot-service/internal/domain/tier"
	xerrors "rankpilot-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// Publisher receives committed subscription changes for downstream
// consumers (events hub, analytics).
type Publisher interface {
	PublishSubscriptionChanged(ev subscription.ChangedEvent)
}

type SubscriptionService struct {
	repo      subscription.Repository
	catalog   *tier.Catalog
	publisher Publisher
	logger    *zap.Logger
}

func NewSubscriptionService(
	repo subscription.Repository,
	catalog *tier.Catalog,
	publisher Publisher,
	logger *zap.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		repo:      repo,
		catalog:   catalog,
		publisher: publisher,
		logger:    logger,
	}
}

// Get returns the subscription record for a user. Absence is a valid
// state: users with no stored record get the default free record, never
// a not-found error.
func (s *SubscriptionService) Get(ctx context.Context, userID string) (*subscription.Record, error) {
	if userID == "" {
		return nil, xerrors.ErrInvalidInput
	}

	rec, err := s.repo.Find(ctx, userID)
	if xerrors.Is(err, xerrors.ErrNotFound) {
		return subscription.DefaultRecord(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	return rec, nil
}

// ApplyTransition validates and commits a subscription state change.
//
// Validation order matters: ordering guards (stale event, terminal
// cancellation) run before the status machine so a late-arriving event
// for a canceled subscription reports ErrStaleEvent, not
// ErrInvalidTransition.
func (s *SubscriptionService) ApplyTransition(ctx context.Context, userID string, t *subscription.Transition) (*subscription.Record, error) {
	if userID == "" {
		return nil, xerrors.ErrInvalidInput
	}
	if !s.catalog.Known(t.Tier) {
		return nil, xerrors.ErrUnknownTier
	}
	if !validStatus(t.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", xerrors.ErrInvalidTransition, t.Status)
	}

	current, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Last-writer-wins by event timestamp, not arrival order.
	if current.LastEventAt.Valid && t.EventAt.Before(current.LastEventAt.Time) {
		return nil, xerrors.ErrStaleEvent
	}

	from := current.Status
	if current.Status == subscription.StatusCanceled {
		// Canceled is terminal for the same provider subscription
		// reference. A different reference is a re-subscription.
		sameRef := t.ProviderSubscriptionID != "" &&
			current.ProviderSubscriptionID.Valid &&
			t.ProviderSubscriptionID == current.ProviderSubscriptionID.String
		if sameRef || t.ProviderSubscriptionID == "" {
			return nil, xerrors.ErrStaleEvent
		}
		from = subscription.StatusFree
	}

	if !subscription.CanTransition(from, t.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", xerrors.ErrInvalidTransition, from, t.Status)
	}

	if t.Status == subscription.StatusActive {
		if t.PeriodEnd == nil || !t.PeriodEnd.After(time.Now()) {
			return nil, fmt.Errorf("%w: active status requires a future period end", xerrors.ErrInvalidTransition)
		}
	}
	if t.Tier == tier.TierFree && (t.ProviderCustomerID != "" || t.ProviderSubscriptionID != "") {
		return nil, fmt.Errorf("%w: free tier must have provider references cleared", xerrors.ErrInvalidTransition)
	}

	updated := &subscription.Record{
		UserID: userID,
		Tier:   t.Tier,
		Status: t.Status,

		ProviderCustomerID:     nullString(t.ProviderCustomerID),
		ProviderSubscriptionID: nullString(t.ProviderSubscriptionID),
		PeriodStart:            nullTime(t.PeriodStart),
		PeriodEnd:              nullTime(t.PeriodEnd),

		// Legacy denormalized fields are owned by older platform
		// components; transitions pass them through untouched and the
		// consistency auditor reports any drift.
		LegacyRole: current.LegacyRole,
		LegacyPlan: current.LegacyPlan,

		LastEventAt: sql.NullTime{Time: t.EventAt, Valid: true},
	}

	if err := s.repo.Upsert(ctx, updated); err != nil {
		s.logger.Error("failed to persist subscription transition",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to persist transition: %w", err)
	}

	s.logger.Info("subscription transition applied",
		zap.String("user_id", userID),
		zap.String("from_status", string(current.Status)),
		zap.String("to_status", string(t.Status)),
		zap.String("tier", string(t.Tier)),
	)

	if s.publisher != nil {
		s.publisher.PublishSubscriptionChanged(subscription.ChangedEvent{
			UserID:    userID,
			OldTier:   current.Tier,
			NewTier:   updated.Tier,
			OldStatus: current.Status,
			NewStatus: updated.Status,
			EventAt:   t.EventAt,
		})
	}

	return updated, nil
}

// AdminOverride applies an administrative transition. It runs through
// the same validation as webhook-driven transitions, stamped with the
// current time as event timestamp.
func (s *SubscriptionService) AdminOverride(ctx context.Context, userID string, req *subscription.AdminTransitionRequest) (*subscription.Record, error) {
	t := &subscription.Transition{
		Tier:                   tier.Tier(req.Tier),
		Status:                 subscription.Status(req.Status),
		ProviderCustomerID:     req.ProviderCustomerID,
		ProviderSubscriptionID: req.ProviderSubscriptionID,
		PeriodEnd:              req.PeriodEnd,
		EventAt:                time.Now(),
	}
	if t.PeriodEnd != nil {
		start := time.Now()
		t.PeriodStart = &start
	}
	return s.ApplyTransition(ctx, userID, t)
}

// List retrieves subscription records for the admin view
func (s *SubscriptionService) List(ctx context.Context, filters *subscription.ListFilters) ([]subscription.Record, error) {
	records, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return records, nil
}

// Stats aggregates record counts by status
func (s *SubscriptionService) Stats(ctx context.Context) (*subscription.Stats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription stats: %w", err)
	}
	return stats, nil
}

func validStatus(st subscription.Status) bool {
	switch st {
	case subscription.StatusFree, subscription.StatusActive,
		subscription.StatusPastDue, subscription.StatusCanceled:
		return true
	}
	return false
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
