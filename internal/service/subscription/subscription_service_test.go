package subscription

import (
	"context"
	"database/sql"
	"testing"
	"time"

	domain "rankpilot-service/internal/domain/subscription"
	"rankpilot-service/internal/domain/tier"
	xerrors "rankpilot-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRepo struct {
	records map[string]*domain.Record
	failing bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: map[string]*domain.Record{}}
}

func (f *fakeRepo) Find(ctx context.Context, userID string) (*domain.Record, error) {
	if f.failing {
		return nil, xerrors.ErrInternal
	}
	rec, ok := f.records[userID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeRepo) Upsert(ctx context.Context, rec *domain.Record) error {
	if f.failing {
		return xerrors.ErrInternal
	}
	cp := *rec
	f.records[rec.UserID] = &cp
	return nil
}

func (f *fakeRepo) List(ctx context.Context, filters *domain.ListFilters) ([]domain.Record, error) {
	var out []domain.Record
	for _, rec := range f.records {
		out = append(out, *rec)
	}
	return out, nil
}

func (f *fakeRepo) All(ctx context.Context) ([]domain.Record, error) {
	return f.List(ctx, nil)
}

func (f *fakeRepo) Stats(ctx context.Context) (*domain.Stats, error) {
	return &domain.Stats{TotalRecords: int64(len(f.records))}, nil
}

type capturingPublisher struct {
	events []domain.ChangedEvent
}

func (p *capturingPublisher) PublishSubscriptionChanged(ev domain.ChangedEvent) {
	p.events = append(p.events, ev)
}

func newService(repo *fakeRepo) (*SubscriptionService, *capturingPublisher) {
	pub := &capturingPublisher{}
	return NewSubscriptionService(repo, tier.NewCatalog(), pub, zap.NewNop()), pub
}

func activeTransition(eventAt time.Time) *domain.Transition {
	end := eventAt.AddDate(0, 1, 0)
	return &domain.Transition{
		Tier:                   tier.TierStarter,
		Status:                 domain.StatusActive,
		ProviderCustomerID:     "cus_1",
		ProviderSubscriptionID: "sub_1",
		PeriodStart:            &eventAt,
		PeriodEnd:              &end,
		EventAt:                eventAt,
	}
}

func TestGetReturnsDefaultFreeRecordWhenAbsent(t *testing.T) {
	svc, _ := newService(newFakeRepo())

	rec, err := svc.Get(context.Background(), "unknown-user")
	require.NoError(t, err)

	assert.Equal(t, tier.TierFree, rec.Tier)
	assert.Equal(t, domain.StatusFree, rec.Status)
	assert.False(t, rec.ProviderCustomerID.Valid)
}

func TestApplyTransitionFreeToActive(t *testing.T) {
	repo := newFakeRepo()
	svc, pub := newService(repo)

	eventAt := time.Now()
	rec, err := svc.ApplyTransition(context.Background(), "u1", activeTransition(eventAt))
	require.NoError(t, err)

	assert.Equal(t, tier.TierStarter, rec.Tier)
	assert.Equal(t, domain.StatusActive, rec.Status)
	assert.Equal(t, "sub_1", rec.ProviderSubscriptionID.String)
	require.Len(t, pub.events, 1)
	assert.Equal(t, domain.StatusFree, pub.events[0].OldStatus)
	assert.Equal(t, domain.StatusActive, pub.events[0].NewStatus)
}

func TestApplyTransitionRejectsUnknownTier(t *testing.T) {
	svc, _ := newService(newFakeRepo())

	tr := activeTransition(time.Now())
	tr.Tier = tier.Tier("platinum")

	_, err := svc.ApplyTransition(context.Background(), "u1", tr)
	assert.ErrorIs(t, err, xerrors.ErrUnknownTier)
}

func TestApplyTransitionRejectsFreeToPastDue(t *testing.T) {
	svc, _ := newService(newFakeRepo())

	tr := &domain.Transition{
		Tier:    tier.TierFree,
		Status:  domain.StatusPastDue,
		EventAt: time.Now(),
	}

	_, err := svc.ApplyTransition(context.Background(), "u1", tr)
	assert.ErrorIs(t, err, xerrors.ErrInvalidTransition)
}

func TestApplyTransitionActiveRequiresFuturePeriodEnd(t *testing.T) {
	svc, _ := newService(newFakeRepo())

	tr := activeTransition(time.Now())
	past := time.Now().AddDate(0, -1, 0)
	tr.PeriodEnd = &past

	_, err := svc.ApplyTransition(context.Background(), "u1", tr)
	assert.ErrorIs(t, err, xerrors.ErrInvalidTransition)
}

func TestApplyTransitionFreeTierMustClearProviderRefs(t *testing.T) {
	svc, _ := newService(newFakeRepo())

	tr := &domain.Transition{
		Tier:               tier.TierFree,
		Status:             domain.StatusFree,
		ProviderCustomerID: "cus_1",
		EventAt:            time.Now(),
	}

	_, err := svc.ApplyTransition(context.Background(), "u1", tr)
	assert.ErrorIs(t, err, xerrors.ErrInvalidTransition)
}

func TestApplyTransitionDropsStaleEvent(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newService(repo)

	eventAt := time.Now()
	_, err := svc.ApplyTransition(context.Background(), "u1", activeTransition(eventAt))
	require.NoError(t, err)

	// An older event arriving late must not overwrite the newer state.
	stale := activeTransition(eventAt.Add(-time.Hour))
	stale.Status = domain.StatusPastDue
	_, err = svc.ApplyTransition(context.Background(), "u1", stale)
	assert.ErrorIs(t, err, xerrors.ErrStaleEvent)

	rec, err := svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, rec.Status)
}

func TestApplyTransitionCanceledIsTerminalForSameRef(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newService(repo)

	eventAt := time.Now()
	_, err := svc.ApplyTransition(context.Background(), "u1", activeTransition(eventAt))
	require.NoError(t, err)

	cancel := &domain.Transition{
		Tier:                   tier.TierStarter,
		Status:                 domain.StatusCanceled,
		ProviderCustomerID:     "cus_1",
		ProviderSubscriptionID: "sub_1",
		EventAt:                eventAt.Add(time.Minute),
	}
	_, err = svc.ApplyTransition(context.Background(), "u1", cancel)
	require.NoError(t, err)

	// Reactivation under the same provider subscription is refused.
	late := activeTransition(eventAt.Add(2 * time.Minute))
	_, err = svc.ApplyTransition(context.Background(), "u1", late)
	assert.ErrorIs(t, err, xerrors.ErrStaleEvent)
}

func TestApplyTransitionCanceledAllowsResubscriptionWithNewRef(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newService(repo)

	eventAt := time.Now()
	_, err := svc.ApplyTransition(context.Background(), "u1", activeTransition(eventAt))
	require.NoError(t, err)

	cancel := &domain.Transition{
		Tier:                   tier.TierStarter,
		Status:                 domain.StatusCanceled,
		ProviderSubscriptionID: "sub_1",
		EventAt:                eventAt.Add(time.Minute),
	}
	_, err = svc.ApplyTransition(context.Background(), "u1", cancel)
	require.NoError(t, err)

	fresh := activeTransition(eventAt.Add(2 * time.Minute))
	fresh.Tier = tier.TierAgency
	fresh.ProviderSubscriptionID = "sub_2"

	rec, err := svc.ApplyTransition(context.Background(), "u1", fresh)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, rec.Status)
	assert.Equal(t, tier.TierAgency, rec.Tier)
	assert.Equal(t, "sub_2", rec.ProviderSubscriptionID.String)
}

func TestApplyTransitionPreservesLegacyFields(t *testing.T) {
	repo := newFakeRepo()
	repo.records["u1"] = &domain.Record{
		UserID:     "u1",
		Tier:       tier.TierFree,
		Status:     domain.StatusFree,
		LegacyRole: sql.NullString{String: "free", Valid: true},
		LegacyPlan: sql.NullString{String: "free", Valid: true},
	}
	svc, _ := newService(repo)

	rec, err := svc.ApplyTransition(context.Background(), "u1", activeTransition(time.Now()))
	require.NoError(t, err)

	// Legacy mirrors are owned elsewhere; transitions never touch them.
	assert.Equal(t, "free", rec.LegacyRole.String)
	assert.Equal(t, "free", rec.LegacyPlan.String)
}

func TestAdminOverrideRunsFullValidation(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newService(repo)

	_, err := svc.AdminOverride(context.Background(), "u1", &domain.AdminTransitionRequest{
		Tier:   "platinum",
		Status: "active",
	})
	assert.ErrorIs(t, err, xerrors.ErrUnknownTier)

	end := time.Now().AddDate(0, 1, 0)
	rec, err := svc.AdminOverride(context.Background(), "u1", &domain.AdminTransitionRequest{
		Tier:                   "agency",
		Status:                 "active",
		ProviderCustomerID:     "cus_9",
		ProviderSubscriptionID: "sub_9",
		PeriodEnd:              &end,
	})
	require.NoError(t, err)
	assert.Equal(t, tier.TierAgency, rec.Tier)
	assert.Equal(t, domain.StatusActive, rec.Status)
}
