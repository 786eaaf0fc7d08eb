// internal/domain/audit/report.go
package audit

import "time"

// MismatchType classifies one field-level contradiction found in a
// subscription record.
type MismatchType string

const (
	MismatchRoleVsTier      MismatchType = "role_vs_tier"
	MismatchPlanVsTier      MismatchType = "plan_vs_tier"
	MismatchActiveExpired   MismatchType = "active_with_past_period_end"
	MismatchFreeWithRefs    MismatchType = "free_with_provider_refs"
	MismatchUnknownTier     MismatchType = "unknown_tier"
	MismatchCounterOvershot MismatchType = "counter_over_limit"
)

// Mismatch is one detected contradiction. Reports are diagnostic only;
// remediation is a separate explicit administrative action.
type Mismatch struct {
	Type     MismatchType `json:"type"`
	Field    string       `json:"field"`
	Stored   string       `json:"stored"`
	Expected string       `json:"expected"`
	Detail   string       `json:"detail,omitempty"`
}

// UserFindings groups all mismatches found for one user.
type UserFindings struct {
	UserID     string     `json:"user_id"`
	Mismatches []Mismatch `json:"mismatches"`
}

// Report is the full output of one consistency audit run.
type Report struct {
	ReportID      string                  `json:"report_id"`
	StartedAt     time.Time               `json:"started_at"`
	FinishedAt    time.Time               `json:"finished_at"`
	UsersScanned  int                     `json:"users_scanned"`
	UsersAffected int                     `json:"users_affected"`
	Findings      []UserFindings          `json:"findings"`
	CountsByType  map[MismatchType]int    `json:"counts_by_type"`
}
