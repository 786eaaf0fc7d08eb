// internal/service/audit/audit_service.go
package audit

import (
	"context"
	"fmt"
	"time"

	"rankpilot-service/internal/domain/audit"
	"rankpilot-service/internal/domain/subscription"
	"rankpilot-service/internal/domain/tier"
	"rankpilot-service/internal/domain/usage"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// overshootTolerance is how far a counter may exceed its tier limit
// before the auditor flags it. Small overshoot is an accepted artifact
// of the non-atomic check-then-increment pair.
const overshootTolerance = 5

type AuditService struct {
	subRepo   subscription.Repository
	usageRepo usage.Repository
	catalog   *tier.Catalog
	logger    *zap.Logger
}

func NewAuditService(
	subRepo subscription.Repository,
	usageRepo usage.Repository,
	catalog *tier.Catalog,
	logger *zap.Logger,
) *AuditService {
	return &AuditService{
		subRepo:   subRepo,
		usageRepo: usageRepo,
		catalog:   catalog,
		logger:    logger,
	}
}

// AuditAll scans every subscription record for cross-field
// contradictions and reports them. Read-only: drift is surfaced for
// human review, never auto-corrected, because ambiguous drift can mask
// the true source of truth.
func (s *AuditService) AuditAll(ctx context.Context) (*audit.Report, error) {
	startedAt := time.Now()

	records, err := s.subRepo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscriptions: %w", err)
	}

	counters, err := s.usageRepo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan usage counters: %w", err)
	}
	usageByUser := make(map[string]usage.Counters, len(counters))
	for _, c := range counters {
		usageByUser[c.UserID] = c
	}

	report := &audit.Report{
		ReportID:     ulid.Make().String(),
		StartedAt:    startedAt,
		CountsByType: map[audit.MismatchType]int{},
	}

	for _, rec := range records {
		mismatches := s.auditRecord(&rec, usageByUser[rec.UserID])
		report.UsersScanned++
		if len(mismatches) == 0 {
			continue
		}
		report.UsersAffected++
		report.Findings = append(report.Findings, audit.UserFindings{
			UserID:     rec.UserID,
			Mismatches: mismatches,
		})
		for _, m := range mismatches {
			report.CountsByType[m.Type]++
		}
	}

	report.FinishedAt = time.Now()

	s.logger.Info("consistency audit completed",
		zap.String("report_id", report.ReportID),
		zap.Int("users_scanned", report.UsersScanned),
		zap.Int("users_affected", report.UsersAffected),
	)

	return report, nil
}

func (s *AuditService) auditRecord(rec *subscription.Record, counts usage.Counters) []audit.Mismatch {
	var out []audit.Mismatch

	if !s.catalog.Known(rec.Tier) {
		out = append(out, audit.Mismatch{
			Type:   audit.MismatchUnknownTier,
			Field:  "tier",
			Stored: string(rec.Tier),
			Detail: "tier is not in the catalog; derived checks skipped",
		})
		return out
	}

	// Legacy denormalized fields mirror tier-derived data elsewhere in
	// the platform; the canonical tier wins.
	if rec.LegacyRole.Valid {
		expectedRole, _ := s.catalog.RoleFor(rec.Tier)
		if rec.LegacyRole.String != expectedRole {
			out = append(out, audit.Mismatch{
				Type:     audit.MismatchRoleVsTier,
				Field:    "legacy_role",
				Stored:   rec.LegacyRole.String,
				Expected: expectedRole,
			})
		}
	}
	if rec.LegacyPlan.Valid {
		expectedPlan, _ := s.catalog.PlanFor(rec.Tier)
		if rec.LegacyPlan.String != expectedPlan {
			out = append(out, audit.Mismatch{
				Type:     audit.MismatchPlanVsTier,
				Field:    "legacy_plan",
				Stored:   rec.LegacyPlan.String,
				Expected: expectedPlan,
			})
		}
	}

	if rec.Status == subscription.StatusActive &&
		rec.PeriodEnd.Valid && !rec.PeriodEnd.Time.After(time.Now()) {
		out = append(out, audit.Mismatch{
			Type:     audit.MismatchActiveExpired,
			Field:    "period_end",
			Stored:   rec.PeriodEnd.Time.Format(time.RFC3339),
			Expected: "future timestamp while status=active",
		})
	}

	if rec.Tier == tier.TierFree &&
		(rec.ProviderCustomerID.Valid || rec.ProviderSubscriptionID.Valid) {
		out = append(out, audit.Mismatch{
			Type:     audit.MismatchFreeWithRefs,
			Field:    "provider_subscription_id",
			Stored:   rec.ProviderSubscriptionID.String,
			Expected: "no provider references on free tier",
		})
	}

	for action, used := range counts.Counts {
		limit, err := s.catalog.LimitFor(rec.Tier, action)
		if err != nil || limit == tier.Unlimited {
			continue
		}
		if used > limit+overshootTolerance {
			out = append(out, audit.Mismatch{
				Type:     audit.MismatchCounterOvershot,
				Field:    string(action),
				Stored:   fmt.Sprintf("%d", used),
				Expected: fmt.Sprintf("<= %d (+%d tolerance)", limit, overshootTolerance),
			})
		}
	}

	return out
}
