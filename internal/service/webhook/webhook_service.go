// internal/service/webhook/webhook_service.go
package webhook

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"rankpilot-service/internal/domain/subscription"
	"rankpilot-service/internal/domain/tier"
	"rankpilot-service/internal/domain/webhook"
	xerrors "rankpilot-service/internal/pkg/errors"
	"rankpilot-service/internal/pkg/signature"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Transitioner is the slice of the subscription service webhook
// ingestion drives.
type Transitioner interface {
	Get(ctx context.Context, userID string) (*subscription.Record, error)
	ApplyTransition(ctx context.Context, userID string, t *subscription.Transition) (*subscription.Record, error)
}

// IdempotencyLog tracks already-seen event identifiers.
type IdempotencyLog interface {
	MarkIfFirst(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type Config struct {
	SigningSecret string
	Tolerance     time.Duration
}

type WebhookService struct {
	cfg     Config
	subs    Transitioner
	idem    IdempotencyLog
	catalog *tier.Catalog
	logger  *zap.Logger

	// now is swappable in tests
	now func() time.Time
}

func NewWebhookService(
	cfg Config,
	subs Transitioner,
	idem IdempotencyLog,
	catalog *tier.Catalog,
	logger *zap.Logger,
) *WebhookService {
	return &WebhookService{
		cfg:     cfg,
		subs:    subs,
		idem:    idem,
		catalog: catalog,
		logger:  logger,
		now:     time.Now,
	}
}

// Ingest verifies and applies one provider delivery. The signature is
// checked against the raw, unparsed bytes before anything else; no
// state is touched until it passes. Returns xerrors.ErrSignatureInvalid
// for rejects, an Ack for everything the provider should not retry, and
// any other error for transient failures the provider should retry.
func (s *WebhookService) Ingest(ctx context.Context, rawBody []byte, sigHeader string) (*webhook.Ack, error) {
	if err := signature.Verify(rawBody, sigHeader, s.cfg.SigningSecret, s.now(), s.cfg.Tolerance); err != nil {
		s.logger.Warn("webhook signature rejected", zap.Error(err))
		return nil, err
	}

	var event webhook.Event
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return nil, fmt.Errorf("%w: malformed event payload", xerrors.ErrBadRequest)
	}
	if event.ID == "" {
		// Undeduplicatable, but still authentic. Process under a
		// synthetic id so the rest of the path is uniform.
		event.ID = "evt_" + ulid.Make().String()
	}

	first, err := s.idem.MarkIfFirst(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !first {
		s.logger.Info("duplicate webhook event acknowledged",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
		)
		return &webhook.Ack{EventID: event.ID, Outcome: webhook.OutcomeDuplicate}, nil
	}

	ack, err := s.dispatch(ctx, &event)
	if err != nil {
		// Let the provider redeliver transient failures.
		if ferr := s.idem.Forget(ctx, event.ID); ferr != nil {
			s.logger.Error("failed to release idempotency entry",
				zap.String("event_id", event.ID),
				zap.Error(ferr),
			)
		}
		return nil, err
	}
	return ack, nil
}

func (s *WebhookService) dispatch(ctx context.Context, event *webhook.Event) (*webhook.Ack, error) {
	userID := event.UserID()
	if userID == "" {
		// Acknowledge so the provider stops retrying, but make the loss
		// visible. Whether these should page someone instead is an open
		// product question.
		s.logger.Warn("OrphanEventWarning: event lacks userId metadata, no state change applied",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
		)
		return &webhook.Ack{EventID: event.ID, Outcome: webhook.OutcomeOrphan}, nil
	}

	var transition *subscription.Transition
	var err error

	switch event.Type {
	case webhook.EventCheckoutCompleted:
		transition, err = s.checkoutTransition(event)
	case webhook.EventSubscriptionUpdated:
		transition, err = s.updateTransition(ctx, userID, event)
	case webhook.EventSubscriptionDeleted:
		transition, err = s.cancelTransition(ctx, userID, event)
	case webhook.EventPaymentSucceeded:
		transition, err = s.paymentTransition(ctx, userID, event, subscription.StatusActive)
	case webhook.EventPaymentFailed:
		transition, err = s.paymentTransition(ctx, userID, event, subscription.StatusPastDue)
	default:
		s.logger.Info("ignoring unhandled webhook event type",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
		)
		return &webhook.Ack{EventID: event.ID, Outcome: webhook.OutcomeIgnored}, nil
	}

	if err != nil {
		return nil, err
	}
	if transition == nil {
		return &webhook.Ack{EventID: event.ID, Outcome: webhook.OutcomeIgnored}, nil
	}

	_, err = s.subs.ApplyTransition(ctx, userID, transition)
	if xerrors.Is(err, xerrors.ErrStaleEvent) {
		// Out-of-order or post-cancellation delivery: drop, ack.
		s.logger.Info("stale webhook event dropped",
			zap.String("event_id", event.ID),
			zap.String("user_id", userID),
		)
		return &webhook.Ack{EventID: event.ID, Outcome: webhook.OutcomeStale}, nil
	}
	if err != nil {
		return nil, err
	}

	return &webhook.Ack{EventID: event.ID, Outcome: webhook.OutcomeApplied}, nil
}

func (s *WebhookService) checkoutTransition(event *webhook.Event) (*subscription.Transition, error) {
	planTier := tier.Tier(event.PlanID())
	if !s.catalog.Known(planTier) {
		return nil, fmt.Errorf("%w: checkout for plan %q", xerrors.ErrUnknownTier, event.PlanID())
	}

	start, end := s.eventPeriod(event)
	return &subscription.Transition{
		Tier:                   planTier,
		Status:                 subscription.StatusActive,
		ProviderCustomerID:     event.Data.Object.Customer,
		ProviderSubscriptionID: event.Data.Object.Subscription,
		PeriodStart:            &start,
		PeriodEnd:              &end,
		EventAt:                event.OccurredAt(),
	}, nil
}

func (s *WebhookService) updateTransition(ctx context.Context, userID string, event *webhook.Event) (*subscription.Transition, error) {
	current, err := s.subs.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	newTier := current.Tier
	if planID := event.PlanID(); planID != "" {
		t := tier.Tier(planID)
		if !s.catalog.Known(t) {
			return nil, fmt.Errorf("%w: update to plan %q", xerrors.ErrUnknownTier, planID)
		}
		newTier = t
	}

	status, ok := mapProviderStatus(event.Data.Object.Status)
	if !ok {
		// Statuses like "incomplete_expired" or "paused" carry no
		// entitlement meaning here; applying them would grant access.
		s.logger.Warn("ignoring subscription update with unmodeled provider status",
			zap.String("event_id", event.ID),
			zap.String("user_id", userID),
			zap.String("provider_status", event.Data.Object.Status),
		)
		return nil, nil
	}
	start, end := s.eventPeriod(event)

	return &subscription.Transition{
		Tier:                   newTier,
		Status:                 status,
		ProviderCustomerID:     coalesce(event.Data.Object.Customer, nullableString(current.ProviderCustomerID)),
		ProviderSubscriptionID: coalesce(subscriptionRef(event), nullableString(current.ProviderSubscriptionID)),
		PeriodStart:            &start,
		PeriodEnd:              &end,
		EventAt:                event.OccurredAt(),
	}, nil
}

func (s *WebhookService) cancelTransition(ctx context.Context, userID string, event *webhook.Event) (*subscription.Transition, error) {
	current, err := s.subs.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current.Status == subscription.StatusFree {
		// Deletion for a user with no subscription: nothing to cancel.
		s.logger.Warn("cancellation event for user without subscription",
			zap.String("event_id", event.ID),
			zap.String("user_id", userID),
		)
		return nil, nil
	}

	return &subscription.Transition{
		// Tier is retained on the canceled record for audit history.
		Tier:                   current.Tier,
		Status:                 subscription.StatusCanceled,
		ProviderCustomerID:     coalesce(event.Data.Object.Customer, nullableString(current.ProviderCustomerID)),
		ProviderSubscriptionID: coalesce(subscriptionRef(event), nullableString(current.ProviderSubscriptionID)),
		EventAt:                event.OccurredAt(),
	}, nil
}

func (s *WebhookService) paymentTransition(ctx context.Context, userID string, event *webhook.Event, status subscription.Status) (*subscription.Transition, error) {
	current, err := s.subs.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !current.ProviderSubscriptionID.Valid {
		// Payment event for a user without a provider subscription:
		// nothing to reconcile against.
		s.logger.Warn("payment event for user without provider subscription",
			zap.String("event_id", event.ID),
			zap.String("user_id", userID),
		)
		return nil, nil
	}

	t := &subscription.Transition{
		Tier:                   current.Tier,
		Status:                 status,
		ProviderCustomerID:     nullableString(current.ProviderCustomerID),
		ProviderSubscriptionID: nullableString(current.ProviderSubscriptionID),
		EventAt:                event.OccurredAt(),
	}

	if status == subscription.StatusActive {
		start, end := s.eventPeriod(event)
		if event.Data.Object.CurrentPeriodEnd == 0 && current.PeriodEnd.Valid {
			end = current.PeriodEnd.Time
		}
		t.PeriodStart = &start
		t.PeriodEnd = &end
	} else {
		if current.PeriodStart.Valid {
			ps := current.PeriodStart.Time
			t.PeriodStart = &ps
		}
		if current.PeriodEnd.Valid {
			pe := current.PeriodEnd.Time
			t.PeriodEnd = &pe
		}
	}

	return t, nil
}

// eventPeriod reads the billing period from the payload, defaulting to
// one month from the event time when the provider omitted it.
func (s *WebhookService) eventPeriod(event *webhook.Event) (time.Time, time.Time) {
	start := event.OccurredAt()
	if event.Data.Object.CurrentPeriodStart > 0 {
		start = time.Unix(event.Data.Object.CurrentPeriodStart, 0).UTC()
	}
	end := start.AddDate(0, 1, 0)
	if event.Data.Object.CurrentPeriodEnd > 0 {
		end = time.Unix(event.Data.Object.CurrentPeriodEnd, 0).UTC()
	}
	return start, end
}

// mapProviderStatus translates a provider lifecycle status into a local one.
// Providers ship more statuses than this model tracks; anything unrecognized
// reports ok=false and the event is acknowledged without applying it. An
// empty status means the payload omitted the field and keeps the old
// treatment of the event as an activation.
func mapProviderStatus(providerStatus string) (subscription.Status, bool) {
	switch providerStatus {
	case "", "active", "trialing":
		return subscription.StatusActive, true
	case "past_due", "unpaid":
		return subscription.StatusPastDue, true
	case "canceled":
		return subscription.StatusCanceled, true
	default:
		return "", false
	}
}

func subscriptionRef(event *webhook.Event) string {
	if event.Data.Object.Subscription != "" {
		return event.Data.Object.Subscription
	}
	return event.Data.Object.ID
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func nullableString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
