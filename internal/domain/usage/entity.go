// internal/domain/usage/entity.go
package usage

import (
	"time"

	"rankpilot-service/internal/domain/tier"
)

// Counters holds one user's metered-action counts for the current
// billing period. Exactly one row per user; previous periods are
// replaced on rollover, not archived.
type Counters struct {
	UserID   string              `json:"user_id" db:"user_id"`
	Counts   map[tier.Action]int `json:"counts" db:"counts"`
	ResetsAt time.Time           `json:"resets_at" db:"resets_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewCounters returns a zeroed counter record whose period ends one
// billing period after start.
func NewCounters(userID string, start time.Time, period Period) *Counters {
	return &Counters{
		UserID:   userID,
		Counts:   map[tier.Action]int{},
		ResetsAt: period.Advance(start),
	}
}

// Period is the billing period length used for counter rollover.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodMonthly Period = "monthly"
)

// Advance moves t forward by one period.
func (p Period) Advance(t time.Time) time.Time {
	switch p {
	case PeriodDaily:
		return t.AddDate(0, 0, 1)
	default:
		return t.AddDate(0, 1, 0)
	}
}

// Rollover zeroes the counters if now has passed ResetsAt, advancing
// ResetsAt by whole periods from its previous value rather than from
// now, so period boundaries stay aligned under irregular access. Returns
// true when a reset happened.
func (c *Counters) Rollover(now time.Time, period Period) bool {
	if !now.After(c.ResetsAt) {
		return false
	}
	c.Counts = map[tier.Action]int{}
	for !now.Before(c.ResetsAt) {
		c.ResetsAt = period.Advance(c.ResetsAt)
	}
	return true
}

// ActionUsage is one row in a usage summary: current count against the
// tier limit for a single action.
type ActionUsage struct {
	Action    tier.Action `json:"action"`
	Used      int         `json:"used"`
	Limit     int         `json:"limit"`
	Remaining int         `json:"remaining"`
	Unlimited bool        `json:"unlimited"`
}

// Summary is the per-user usage report returned to the app layer.
type Summary struct {
	UserID   string        `json:"user_id"`
	Tier     tier.Tier     `json:"tier"`
	ResetsAt time.Time     `json:"resets_at"`
	Actions  []ActionUsage `json:"actions"`
}
