// internal/service/usage/usage_service.go
package usage

import (
	"context"
	"fmt"
	"time"

	"rankpilot-service/internal/domain/tier"
	"rankpilot-service/internal/domain/usage"
	xerrors "rankpilot-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// counterCeiling is a defensive bound far above any real quota. Quota
// enforcement itself belongs to the entitlement check, not here.
const counterCeiling = 1_000_000

type UsageService struct {
	repo    usage.Repository
	catalog *tier.Catalog
	period  usage.Period
	logger  *zap.Logger

	// now is swappable in tests
	now func() time.Time
}

func NewUsageService(repo usage.Repository, catalog *tier.Catalog, period usage.Period, logger *zap.Logger) *UsageService {
	return &UsageService{
		repo:    repo,
		catalog: catalog,
		period:  period,
		logger:  logger,
		now:     time.Now,
	}
}

// CurrentCount returns the current-period count for one action,
// performing the lazy rollover check first.
func (s *UsageService) CurrentCount(ctx context.Context, userID string, action tier.Action) (int, error) {
	c, err := s.current(ctx, userID)
	if err != nil {
		return 0, err
	}
	return c.Counts[action], nil
}

// Increment atomically increments an action counter and returns the new
// count. The storage-layer increment is a single read-modify-write, so
// concurrent calls for the same user never lose updates.
func (s *UsageService) Increment(ctx context.Context, userID string, action tier.Action) (int, error) {
	c, err := s.current(ctx, userID)
	if err != nil {
		return 0, err
	}

	if c.Counts[action] >= counterCeiling {
		return 0, xerrors.ErrCounterOverflow
	}

	count, err := s.repo.Increment(ctx, userID, action, c.ResetsAt)
	if err != nil {
		return 0, fmt.Errorf("failed to increment usage: %w", err)
	}
	return count, nil
}

// Summary reports per-action usage against the limits of the given tier.
func (s *UsageService) Summary(ctx context.Context, userID string, t tier.Tier) (*usage.Summary, error) {
	c, err := s.current(ctx, userID)
	if err != nil {
		return nil, err
	}

	sum := &usage.Summary{
		UserID:   userID,
		Tier:     t,
		ResetsAt: c.ResetsAt,
	}

	for _, action := range s.catalog.Actions() {
		if action == tier.ActionDashboardView {
			continue
		}
		limit, err := s.catalog.LimitFor(t, action)
		if err != nil {
			return nil, err
		}

		au := usage.ActionUsage{
			Action: action,
			Used:   c.Counts[action],
			Limit:  limit,
		}
		if limit == tier.Unlimited {
			au.Unlimited = true
			au.Remaining = tier.Unlimited
		} else {
			au.Remaining = limit - au.Used
			if au.Remaining < 0 {
				au.Remaining = 0
			}
		}
		sum.Actions = append(sum.Actions, au)
	}

	return sum, nil
}

// All returns every counter record, with rollover applied in-memory so
// batch consumers (the auditor) see current-period numbers.
func (s *UsageService) All(ctx context.Context) ([]usage.Counters, error) {
	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage counters: %w", err)
	}
	now := s.now()
	for i := range all {
		all[i].Rollover(now, s.period)
	}
	return all, nil
}

// current loads the user's counters, creating a zeroed record lazily
// and persisting a period rollover when one is due.
func (s *UsageService) current(ctx context.Context, userID string) (*usage.Counters, error) {
	if userID == "" {
		return nil, xerrors.ErrInvalidInput
	}

	now := s.now()

	c, err := s.repo.Find(ctx, userID)
	if xerrors.Is(err, xerrors.ErrNotFound) {
		return usage.NewCounters(userID, now, s.period), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load usage counters: %w", err)
	}

	if c.Rollover(now, s.period) {
		// Reset is a full-record replace with the advanced boundary.
		if err := s.repo.Replace(ctx, c); err != nil {
			return nil, fmt.Errorf("failed to persist usage rollover: %w", err)
		}
		s.logger.Info("usage counters rolled over",
			zap.String("user_id", userID),
			zap.Time("resets_at", c.ResetsAt),
		)
	}

	return c, nil
}
