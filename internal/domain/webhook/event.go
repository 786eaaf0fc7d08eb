// internal/domain/webhook/event.go
package webhook

import "time"

// EventType is the provider-side event name.
type EventType string

const (
	EventCheckoutCompleted   EventType = "checkout.session.completed"
	EventSubscriptionUpdated EventType = "customer.subscription.updated"
	EventSubscriptionDeleted EventType = "customer.subscription.deleted"
	EventPaymentSucceeded    EventType = "invoice.payment_succeeded"
	EventPaymentFailed       EventType = "invoice.payment_failed"
)

// Event is the decoded provider payload. It is transient: nothing
// beyond the idempotency log outlives ingestion.
type Event struct {
	ID      string    `json:"id"`
	Type    EventType `json:"type"`
	Created int64     `json:"created"`
	Data    struct {
		Object Object `json:"object"`
	} `json:"data"`
}

// Object carries the billing fields this service consumes. Provider
// payloads contain far more; unknown fields are ignored on decode.
type Object struct {
	Customer           string            `json:"customer,omitempty"`
	Subscription       string            `json:"subscription,omitempty"`
	ID                 string            `json:"id,omitempty"`
	Status             string            `json:"status,omitempty"`
	CurrentPeriodStart int64             `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   int64             `json:"current_period_end,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// OccurredAt converts the provider's unix timestamp.
func (e *Event) OccurredAt() time.Time {
	return time.Unix(e.Created, 0).UTC()
}

// UserID extracts the internal user identifier from event metadata.
// Empty when the provider event was created without it (orphan event).
func (e *Event) UserID() string {
	return e.Data.Object.Metadata["userId"]
}

// PlanID extracts the requested plan identifier from event metadata.
func (e *Event) PlanID() string {
	return e.Data.Object.Metadata["planId"]
}

// Outcome reports how an event was handled.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeOrphan    Outcome = "orphan"
	OutcomeStale     Outcome = "stale"
	OutcomeIgnored   Outcome = "ignored"
)

// Ack is the successful ingestion result returned to the provider.
type Ack struct {
	EventID string  `json:"event_id"`
	Outcome Outcome `json:"outcome"`
}
