// internal/service/entitlement/entitlement_service.go
package entitlement

import (
	"context"
	"time"

	"rankpilot-service/internal/domain/subscription"
	"rankpilot-service/internal/domain/tier"
	xerrors "rankpilot-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// DenyReason explains a denied authorization.
type DenyReason string

const (
	ReasonSubscriptionNotActive DenyReason = "subscription_not_active"
	ReasonQuotaExceeded         DenyReason = "quota_exceeded"
	ReasonStoreUnavailable      DenyReason = "store_unavailable"
)

// Decision is the outcome of one entitlement check.
type Decision struct {
	Allowed bool       `json:"allowed"`
	Reason  DenyReason `json:"reason,omitempty"`
	Used    int        `json:"used,omitempty"`
	Limit   int        `json:"limit,omitempty"`
}

// SubscriptionReader is the slice of the subscription service the check
// depends on.
type SubscriptionReader interface {
	Get(ctx context.Context, userID string) (*subscription.Record, error)
}

// UsageCounter is the slice of the usage service the check depends on.
type UsageCounter interface {
	CurrentCount(ctx context.Context, userID string, action tier.Action) (int, error)
	Increment(ctx context.Context, userID string, action tier.Action) (int, error)
}

type EntitlementService struct {
	subs    SubscriptionReader
	usage   UsageCounter
	catalog *tier.Catalog
	logger  *zap.Logger
}

func NewEntitlementService(
	subs SubscriptionReader,
	usage UsageCounter,
	catalog *tier.Catalog,
	logger *zap.Logger,
) *EntitlementService {
	return &EntitlementService{
		subs:    subs,
		usage:   usage,
		catalog: catalog,
		logger:  logger,
	}
}

// Authorize is the synchronous gate before any metered action. A store
// failure denies rather than fails open. On allow, the caller increments
// usage after the action actually succeeds; the check-then-increment
// pair is not atomic across the two stores, which the auditor tolerates
// and reports beyond a small overshoot.
func (s *EntitlementService) Authorize(ctx context.Context, userID string, action tier.Action) (*Decision, error) {
	rec, err := s.subs.Get(ctx, userID)
	if err != nil {
		s.logger.Error("entitlement check failed closed: subscription store",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return &Decision{Allowed: false, Reason: ReasonStoreUnavailable}, err
	}

	// Tier-independent actions stay available in any status.
	if action == tier.ActionDashboardView {
		return &Decision{Allowed: true}, nil
	}

	if !activeEnough(rec) {
		return &Decision{Allowed: false, Reason: ReasonSubscriptionNotActive}, nil
	}

	limit, err := s.catalog.LimitFor(rec.Tier, action)
	if err != nil {
		return &Decision{Allowed: false, Reason: ReasonStoreUnavailable}, err
	}
	if limit == tier.Unlimited {
		return &Decision{Allowed: true, Limit: tier.Unlimited}, nil
	}

	used, err := s.usage.CurrentCount(ctx, userID, action)
	if err != nil {
		s.logger.Error("entitlement check failed closed: usage store",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return &Decision{Allowed: false, Reason: ReasonStoreUnavailable}, err
	}

	if used >= limit {
		return &Decision{Allowed: false, Reason: ReasonQuotaExceeded, Used: used, Limit: limit}, nil
	}
	return &Decision{Allowed: true, Used: used, Limit: limit}, nil
}

// Consume authorizes and, when allowed, immediately records the usage.
// Convenience seam for callers whose action is the increment itself.
func (s *EntitlementService) Consume(ctx context.Context, userID string, action tier.Action) (*Decision, error) {
	decision, err := s.Authorize(ctx, userID, action)
	if err != nil || !decision.Allowed {
		return decision, err
	}
	if action == tier.ActionDashboardView {
		return decision, nil
	}

	count, err := s.usage.Increment(ctx, userID, action)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrCounterOverflow) {
			return &Decision{Allowed: false, Reason: ReasonQuotaExceeded}, err
		}
		return &Decision{Allowed: false, Reason: ReasonStoreUnavailable}, err
	}
	decision.Used = count
	return decision, nil
}

// activeEnough applies the status gate: free and active subscriptions
// may perform metered actions, past_due and canceled may not, and an
// active record whose period has lapsed counts as not active.
func activeEnough(rec *subscription.Record) bool {
	switch rec.Status {
	case subscription.StatusFree:
		return true
	case subscription.StatusActive:
		return !rec.PeriodEnd.Valid || rec.PeriodEnd.Time.After(time.Now())
	default:
		return false
	}
}
