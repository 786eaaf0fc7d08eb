// internal/domain/subscription/dto.go
package subscription

import (
	"time"

	"rankpilot-service/internal/domain/tier"
)

// Transition describes a requested change to a subscription record. It
// is produced by the webhook dispatcher or by an administrative
// override, and validated by the subscription service before commit.
type Transition struct {
	Tier   tier.Tier `json:"tier"`
	Status Status    `json:"status"`

	ProviderCustomerID     string `json:"provider_customer_id,omitempty"`
	ProviderSubscriptionID string `json:"provider_subscription_id,omitempty"`

	PeriodStart *time.Time `json:"period_start,omitempty"`
	PeriodEnd   *time.Time `json:"period_end,omitempty"`

	// EventAt is the provider-side timestamp of the event driving this
	// transition. Used for last-writer-wins ordering.
	EventAt time.Time `json:"event_at"`
}

// AdminTransitionRequest is the administrative override payload.
type AdminTransitionRequest struct {
	Tier   string `json:"tier" binding:"required"`
	Status string `json:"status" binding:"required"`

	ProviderCustomerID     string     `json:"provider_customer_id,omitempty"`
	ProviderSubscriptionID string     `json:"provider_subscription_id,omitempty"`
	PeriodEnd              *time.Time `json:"period_end,omitempty"`
}

// ChangedEvent is emitted after a transition commits, for downstream
// consumers (events hub, analytics).
type ChangedEvent struct {
	UserID    string    `json:"user_id"`
	OldTier   tier.Tier `json:"old_tier"`
	NewTier   tier.Tier `json:"new_tier"`
	OldStatus Status    `json:"old_status"`
	NewStatus Status    `json:"new_status"`
	EventAt   time.Time `json:"event_at"`
}

// ListFilters narrows admin subscription listings.
type ListFilters struct {
	Status string `form:"status"`
	Tier   string `form:"tier"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}
