package usage

import (
	"context"
	"testing"
	"time"

	"rankpilot-service/internal/domain/tier"
	domain "rankpilot-service/internal/domain/usage"
	xerrors "rankpilot-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeUsageRepo struct {
	counters map[string]*domain.Counters
	replaces int
}

func newFakeUsageRepo() *fakeUsageRepo {
	return &fakeUsageRepo{counters: map[string]*domain.Counters{}}
}

func (f *fakeUsageRepo) Find(ctx context.Context, userID string) (*domain.Counters, error) {
	c, ok := f.counters[userID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *c
	cp.Counts = map[tier.Action]int{}
	for k, v := range c.Counts {
		cp.Counts[k] = v
	}
	return &cp, nil
}

func (f *fakeUsageRepo) Replace(ctx context.Context, c *domain.Counters) error {
	f.replaces++
	cp := *c
	f.counters[c.UserID] = &cp
	return nil
}

func (f *fakeUsageRepo) Increment(ctx context.Context, userID string, action tier.Action, resetsAt time.Time) (int, error) {
	c, ok := f.counters[userID]
	if !ok {
		c = &domain.Counters{
			UserID:   userID,
			Counts:   map[tier.Action]int{},
			ResetsAt: resetsAt,
		}
		f.counters[userID] = c
	}
	c.Counts[action]++
	return c.Counts[action], nil
}

func (f *fakeUsageRepo) All(ctx context.Context) ([]domain.Counters, error) {
	var out []domain.Counters
	for _, c := range f.counters {
		out = append(out, *c)
	}
	return out, nil
}

func newTestService(repo *fakeUsageRepo, now time.Time) *UsageService {
	svc := NewUsageService(repo, tier.NewCatalog(), domain.PeriodMonthly, zap.NewNop())
	svc.now = func() time.Time { return now }
	return svc
}

func TestIncrementCreatesRecordLazily(t *testing.T) {
	repo := newFakeUsageRepo()
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)

	count, err := svc.Increment(context.Background(), "u1", tier.ActionMonthlyAnalyses)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = svc.Increment(context.Background(), "u1", tier.ActionMonthlyAnalyses)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// A fresh record resets one period after first use.
	assert.Equal(t, now.AddDate(0, 1, 0), repo.counters["u1"].ResetsAt)
}

func TestCurrentCountZeroForUnknownUser(t *testing.T) {
	svc := newTestService(newFakeUsageRepo(), time.Now())

	count, err := svc.CurrentCount(context.Background(), "nobody", tier.ActionKeywordQueries)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestLazyRolloverResetsOnceAndPersists(t *testing.T) {
	repo := newFakeUsageRepo()
	resetsAt := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	repo.counters["u1"] = &domain.Counters{
		UserID:   "u1",
		Counts:   map[tier.Action]int{tier.ActionMonthlyAnalyses: 3},
		ResetsAt: resetsAt,
	}

	now := time.Date(2026, 2, 5, 10, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)

	count, err := svc.CurrentCount(context.Background(), "u1", tier.ActionMonthlyAnalyses)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, 1, repo.replaces)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), repo.counters["u1"].ResetsAt)

	// A second read in the same period must not reset again.
	_, err = svc.CurrentCount(context.Background(), "u1", tier.ActionMonthlyAnalyses)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.replaces)
}

func TestIncrementRejectsRunawayCounter(t *testing.T) {
	repo := newFakeUsageRepo()
	repo.counters["u1"] = &domain.Counters{
		UserID:   "u1",
		Counts:   map[tier.Action]int{tier.ActionKeywordQueries: counterCeiling},
		ResetsAt: time.Now().AddDate(0, 1, 0),
	}
	svc := newTestService(repo, time.Now())

	_, err := svc.Increment(context.Background(), "u1", tier.ActionKeywordQueries)
	assert.ErrorIs(t, err, xerrors.ErrCounterOverflow)
}

func TestIncrementRequiresUserID(t *testing.T) {
	svc := newTestService(newFakeUsageRepo(), time.Now())

	_, err := svc.Increment(context.Background(), "", tier.ActionKeywordQueries)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestSummaryAgainstTierLimits(t *testing.T) {
	repo := newFakeUsageRepo()
	repo.counters["u1"] = &domain.Counters{
		UserID: "u1",
		Counts: map[tier.Action]int{
			tier.ActionMonthlyAnalyses: 2,
			tier.ActionKeywordQueries:  12,
		},
		ResetsAt: time.Now().AddDate(0, 1, 0),
	}
	svc := newTestService(repo, time.Now())

	sum, err := svc.Summary(context.Background(), "u1", tier.TierFree)
	require.NoError(t, err)

	byAction := map[tier.Action]domain.ActionUsage{}
	for _, au := range sum.Actions {
		byAction[au.Action] = au
	}

	assert.Equal(t, 2, byAction[tier.ActionMonthlyAnalyses].Used)
	assert.Equal(t, 3, byAction[tier.ActionMonthlyAnalyses].Limit)
	assert.Equal(t, 1, byAction[tier.ActionMonthlyAnalyses].Remaining)

	// Over-limit counters clamp remaining at zero instead of going negative.
	assert.Equal(t, 12, byAction[tier.ActionKeywordQueries].Used)
	assert.Equal(t, 0, byAction[tier.ActionKeywordQueries].Remaining)

	// Untracked dashboard views never appear in the summary.
	_, present := byAction[tier.ActionDashboardView]
	assert.False(t, present)
}

func TestSummaryUnlimitedActions(t *testing.T) {
	svc := newTestService(newFakeUsageRepo(), time.Now())

	sum, err := svc.Summary(context.Background(), "u1", tier.TierEnterprise)
	require.NoError(t, err)

	for _, au := range sum.Actions {
		if au.Action == tier.ActionCompetitorReports {
			assert.False(t, au.Unlimited)
			continue
		}
		assert.True(t, au.Unlimited, string(au.Action))
		assert.Equal(t, tier.Unlimited, au.Remaining, string(au.Action))
	}
}

func TestAllAppliesRolloverInMemory(t *testing.T) {
	repo := newFakeUsageRepo()
	repo.counters["expired"] = &domain.Counters{
		UserID:   "expired",
		Counts:   map[tier.Action]int{tier.ActionMonthlyAnalyses: 5},
		ResetsAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	repo.counters["current"] = &domain.Counters{
		UserID:   "current",
		Counts:   map[tier.Action]int{tier.ActionMonthlyAnalyses: 5},
		ResetsAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	svc := newTestService(repo, time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC))

	all, err := svc.All(context.Background())
	require.NoError(t, err)

	byUser := map[string]domain.Counters{}
	for _, c := range all {
		byUser[c.UserID] = c
	}
	assert.Empty(t, byUser["expired"].Counts)
	assert.Equal(t, 5, byUser["current"].Counts[tier.ActionMonthlyAnalyses])
}
