// internal/domain/tier/tier.go
package tier

// Tier is a named subscription plan level.
type Tier string

const (
	TierFree       Tier = "free"
	TierStarter    Tier = "starter"
	TierAgency     Tier = "agency"
	TierEnterprise Tier = "enterprise"
	TierAdmin      Tier = "admin"
)

// Action is a countable user action capped per billing period.
type Action string

const (
	ActionMonthlyAnalyses   Action = "monthlyAnalyses"
	ActionKeywordQueries    Action = "keywordQueries"
	ActionCompetitorReports Action = "competitorReports"
	ActionAIRecommendations Action = "aiRecommendations"

	// ActionDashboardView is tier-independent: read-only dashboard access
	// is allowed for any subscription status and is never metered.
	ActionDashboardView Action = "dashboardView"
)

// Unlimited is the sentinel limit meaning no quota applies.
const Unlimited = -1

// Feature is a capability flag granted by a tier.
type Feature string

const (
	FeatureBasicAnalysis     Feature = "basic_analysis"
	FeatureKeywordTracking   Feature = "keyword_tracking"
	FeatureCompetitorInsight Feature = "competitor_insight"
	FeatureTeamSeats         Feature = "team_seats"
	FeatureAPIAccess         Feature = "api_access"
	FeatureWhiteLabel        Feature = "white_label"
)

// Definition describes one tier: its ordinal rank, per-action quota
// limits and the feature flags introduced at that rank. Feature flags of
// lower ranks are inherited structurally (see Catalog.HasFeature), so a
// definition only lists what the tier adds.
type Definition struct {
	ID       Tier
	Rank     int
	Limits   map[Action]int
	Features []Feature
}
