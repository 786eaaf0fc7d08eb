package audit

import (
	"context"
	"database/sql"
	"testing"
	"time"

	domain "rankpilot-service/internal/domain/audit"
	"rankpilot-service/internal/domain/subscription"
	"rankpilot-service/internal/domain/tier"
	"rankpilot-service/internal/domain/usage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSubRepo struct {
	records []subscription.Record
}

func (f *fakeSubRepo) Find(ctx context.Context, userID string) (*subscription.Record, error) {
	panic("not used")
}

func (f *fakeSubRepo) Upsert(ctx context.Context, rec *subscription.Record) error {
	panic("not used")
}

func (f *fakeSubRepo) List(ctx context.Context, filters *subscription.ListFilters) ([]subscription.Record, error) {
	panic("not used")
}

func (f *fakeSubRepo) All(ctx context.Context) ([]subscription.Record, error) {
	return f.records, nil
}

func (f *fakeSubRepo) Stats(ctx context.Context) (*subscription.Stats, error) {
	panic("not used")
}

type fakeUsageRepo struct {
	counters []usage.Counters
}

func (f *fakeUsageRepo) Find(ctx context.Context, userID string) (*usage.Counters, error) {
	panic("not used")
}

func (f *fakeUsageRepo) Replace(ctx context.Context, c *usage.Counters) error {
	panic("not used")
}

func (f *fakeUsageRepo) Increment(ctx context.Context, userID string, action tier.Action, resetsAt time.Time) (int, error) {
	panic("not used")
}

func (f *fakeUsageRepo) All(ctx context.Context) ([]usage.Counters, error) {
	return f.counters, nil
}

func ns(s string) sql.NullString { return sql.NullString{String: s, Valid: true} }

func consistentRecord(userID string, t tier.Tier) subscription.Record {
	rec := subscription.Record{
		UserID:     userID,
		Tier:       t,
		Status:     subscription.StatusActive,
		LegacyRole: ns(string(t)),
		LegacyPlan: ns(string(t)),

		ProviderCustomerID:     ns("cus_" + userID),
		ProviderSubscriptionID: ns("sub_" + userID),
		PeriodEnd:              sql.NullTime{Time: time.Now().AddDate(0, 0, 15), Valid: true},
	}
	if t == tier.TierFree {
		rec.Status = subscription.StatusFree
		rec.ProviderCustomerID = sql.NullString{}
		rec.ProviderSubscriptionID = sql.NullString{}
		rec.PeriodEnd = sql.NullTime{}
	}
	return rec
}

func runAudit(t *testing.T, subs []subscription.Record, counters []usage.Counters) *domain.Report {
	t.Helper()
	svc := NewAuditService(
		&fakeSubRepo{records: subs},
		&fakeUsageRepo{counters: counters},
		tier.NewCatalog(),
		zap.NewNop(),
	)
	report, err := svc.AuditAll(context.Background())
	require.NoError(t, err)
	return report
}

func TestAuditCleanDataReportsNothing(t *testing.T) {
	report := runAudit(t, []subscription.Record{
		consistentRecord("u1", tier.TierFree),
		consistentRecord("u2", tier.TierStarter),
		consistentRecord("u3", tier.TierEnterprise),
	}, nil)

	assert.Equal(t, 3, report.UsersScanned)
	assert.Zero(t, report.UsersAffected)
	assert.Empty(t, report.Findings)
	assert.NotEmpty(t, report.ReportID)
}

func TestAuditDetectsRoleVsTierDrift(t *testing.T) {
	drifted := consistentRecord("u1", tier.TierStarter)
	drifted.LegacyRole = ns("free")

	report := runAudit(t, []subscription.Record{
		drifted,
		consistentRecord("u2", tier.TierStarter),
	}, nil)

	assert.Equal(t, 1, report.UsersAffected)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, "u1", report.Findings[0].UserID)

	require.Len(t, report.Findings[0].Mismatches, 1)
	m := report.Findings[0].Mismatches[0]
	assert.Equal(t, domain.MismatchRoleVsTier, m.Type)
	assert.Equal(t, "free", m.Stored)
	assert.Equal(t, "starter", m.Expected)
	assert.Equal(t, 1, report.CountsByType[domain.MismatchRoleVsTier])
}

func TestAuditDetectsPlanVsTierDrift(t *testing.T) {
	drifted := consistentRecord("u1", tier.TierAgency)
	drifted.LegacyPlan = ns("starter")

	report := runAudit(t, []subscription.Record{drifted}, nil)

	assert.Equal(t, 1, report.CountsByType[domain.MismatchPlanVsTier])
}

func TestAuditDetectsActiveWithLapsedPeriod(t *testing.T) {
	lapsed := consistentRecord("u1", tier.TierStarter)
	lapsed.PeriodEnd = sql.NullTime{Time: time.Now().AddDate(0, 0, -3), Valid: true}

	report := runAudit(t, []subscription.Record{lapsed}, nil)

	assert.Equal(t, 1, report.CountsByType[domain.MismatchActiveExpired])
}

func TestAuditDetectsFreeWithProviderRefs(t *testing.T) {
	rec := consistentRecord("u1", tier.TierFree)
	rec.ProviderSubscriptionID = ns("sub_stale")

	report := runAudit(t, []subscription.Record{rec}, nil)

	assert.Equal(t, 1, report.CountsByType[domain.MismatchFreeWithRefs])
}

func TestAuditDetectsUnknownTierAndSkipsDerivedChecks(t *testing.T) {
	rec := consistentRecord("u1", tier.TierStarter)
	rec.Tier = tier.Tier("platinum")
	rec.LegacyRole = ns("free")

	report := runAudit(t, []subscription.Record{rec}, nil)

	// Without a known tier there is no expected role to compare against.
	require.Len(t, report.Findings, 1)
	require.Len(t, report.Findings[0].Mismatches, 1)
	assert.Equal(t, domain.MismatchUnknownTier, report.Findings[0].Mismatches[0].Type)
}

func TestAuditCounterOvershootTolerance(t *testing.T) {
	withinTolerance := consistentRecord("u1", tier.TierFree)
	overshot := consistentRecord("u2", tier.TierFree)

	report := runAudit(t,
		[]subscription.Record{withinTolerance, overshot},
		[]usage.Counters{
			// Free limit for monthly analyses is 3; 8 is exactly at the
			// tolerance edge, 9 is beyond it.
			{UserID: "u1", Counts: map[tier.Action]int{tier.ActionMonthlyAnalyses: 8}},
			{UserID: "u2", Counts: map[tier.Action]int{tier.ActionMonthlyAnalyses: 9}},
		},
	)

	assert.Equal(t, 1, report.UsersAffected)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, "u2", report.Findings[0].UserID)
	assert.Equal(t, 1, report.CountsByType[domain.MismatchCounterOvershot])
}

func TestAuditSkipsCountersOnUnlimitedActions(t *testing.T) {
	rec := consistentRecord("u1", tier.TierEnterprise)

	report := runAudit(t,
		[]subscription.Record{rec},
		[]usage.Counters{
			{UserID: "u1", Counts: map[tier.Action]int{tier.ActionMonthlyAnalyses: 100000}},
		},
	)

	assert.Zero(t, report.UsersAffected)
}
