// internal/domain/subscription/entity.go
package subscription

import (
	"database/sql"
	"time"

	"rankpilot-service/internal/domain/tier"
)

type Status string

const (
	StatusFree     Status = "free"
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
)

// Record is the persisted subscription state for one user. One record
// per user; canceled records are retained for audit history, never
// hard-deleted.
type Record struct {
	UserID string    `json:"user_id" db:"user_id"`
	Tier   tier.Tier `json:"tier" db:"tier"`
	Status Status    `json:"status" db:"status"`

	// External payment provider references. Empty for free tier.
	ProviderCustomerID     sql.NullString `json:"provider_customer_id,omitempty" db:"provider_customer_id"`
	ProviderSubscriptionID sql.NullString `json:"provider_subscription_id,omitempty" db:"provider_subscription_id"`

	// Billing period
	PeriodStart sql.NullTime `json:"period_start,omitempty" db:"period_start"`
	PeriodEnd   sql.NullTime `json:"period_end,omitempty" db:"period_end"`

	// Legacy denormalized fields mirrored by older platform components.
	// Canonical truth is Tier; these are reconciled by the auditor only.
	LegacyRole sql.NullString `json:"legacy_role,omitempty" db:"legacy_role"`
	LegacyPlan sql.NullString `json:"legacy_plan,omitempty" db:"legacy_plan"`

	// LastEventAt is the provider timestamp of the last applied billing
	// event. Older events are dropped, not applied.
	LastEventAt sql.NullTime `json:"last_event_at,omitempty" db:"last_event_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultRecord is the modeled state for a user with no stored
// subscription: free tier, free status. Absence is a valid state, not an
// error.
func DefaultRecord(userID string) *Record {
	now := time.Now()
	return &Record{
		UserID:    userID,
		Tier:      tier.TierFree,
		Status:    StatusFree,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// statusTransitions encodes the allowed status machine:
// free -> active -> past_due -> active -> canceled. Canceled is terminal
// for the same provider subscription reference.
var statusTransitions = map[Status][]Status{
	StatusFree:     {StatusFree, StatusActive},
	StatusActive:   {StatusActive, StatusPastDue, StatusCanceled, StatusFree},
	StatusPastDue:  {StatusActive, StatusPastDue, StatusCanceled},
	StatusCanceled: {},
}

// CanTransition reports whether the status machine permits moving from
// one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Stats summarizes subscription records for the admin overview.
type Stats struct {
	TotalRecords    int64 `json:"total_records"`
	ActiveRecords   int64 `json:"active_records"`
	PastDueRecords  int64 `json:"past_due_records"`
	CanceledRecords int64 `json:"canceled_records"`
	FreeRecords     int64 `json:"free_records"`
}
