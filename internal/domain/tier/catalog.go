// internal/domain/tier/catalog.go
package tier

import (
	xerrors "rankpilot-service/internal/pkg/errors"
)

// Catalog is the single source of truth for quota limits and feature
// access per tier. It is immutable after construction and safe for
// concurrent reads; changing tier definitions requires a deploy.
type Catalog struct {
	defs    map[Tier]Definition
	byRank  []Definition
	actions map[Action]struct{}
	ordered []Action
}

// NewCatalog builds the default RankPilot tier catalog.
//
// The admin tier carries no quota map of its own: it is resolved
// structurally in LimitFor and HasFeature so its "everything, unlimited"
// semantics can never drift out of sync with the paid tiers.
func NewCatalog() *Catalog {
	defs := []Definition{
		{
			ID:   TierFree,
			Rank: 0,
			Limits: map[Action]int{
				ActionMonthlyAnalyses:   3,
				ActionKeywordQueries:    10,
				ActionCompetitorReports: 1,
				ActionAIRecommendations: 5,
			},
			Features: []Feature{FeatureBasicAnalysis},
		},
		{
			ID:   TierStarter,
			Rank: 1,
			Limits: map[Action]int{
				ActionMonthlyAnalyses:   25,
				ActionKeywordQueries:    200,
				ActionCompetitorReports: 10,
				ActionAIRecommendations: 50,
			},
			Features: []Feature{FeatureKeywordTracking},
		},
		{
			ID:   TierAgency,
			Rank: 2,
			Limits: map[Action]int{
				ActionMonthlyAnalyses:   150,
				ActionKeywordQueries:    2000,
				ActionCompetitorReports: 75,
				ActionAIRecommendations: 300,
			},
			Features: []Feature{FeatureCompetitorInsight, FeatureTeamSeats},
		},
		{
			ID:   TierEnterprise,
			Rank: 3,
			Limits: map[Action]int{
				ActionMonthlyAnalyses:   Unlimited,
				ActionKeywordQueries:    Unlimited,
				ActionCompetitorReports: 500,
				ActionAIRecommendations: Unlimited,
			},
			Features: []Feature{FeatureAPIAccess, FeatureWhiteLabel},
		},
		{
			ID:   TierAdmin,
			Rank: 4,
		},
	}

	c := &Catalog{
		defs:    make(map[Tier]Definition, len(defs)),
		byRank:  defs,
		actions: make(map[Action]struct{}),
	}
	for _, d := range defs {
		c.defs[d.ID] = d
	}
	c.ordered = []Action{
		ActionMonthlyAnalyses,
		ActionKeywordQueries,
		ActionCompetitorReports,
		ActionAIRecommendations,
		ActionDashboardView,
	}
	for _, a := range c.ordered {
		c.actions[a] = struct{}{}
	}
	return c
}

// LimitFor returns the configured per-period limit for an action, or
// Unlimited. Admin has every action unlimited regardless of the data.
func (c *Catalog) LimitFor(t Tier, a Action) (int, error) {
	def, ok := c.defs[t]
	if !ok {
		return 0, xerrors.ErrUnknownTier
	}
	if _, ok := c.actions[a]; !ok {
		return 0, xerrors.ErrUnknownAction
	}
	if t == TierAdmin {
		return Unlimited, nil
	}
	if a == ActionDashboardView {
		return Unlimited, nil
	}
	limit, ok := def.Limits[a]
	if !ok {
		// Known action, but this tier defines no limit for it.
		return 0, nil
	}
	return limit, nil
}

// Rank returns the ordinal position of a tier for upgrade/downgrade
// comparisons.
func (c *Catalog) Rank(t Tier) (int, error) {
	def, ok := c.defs[t]
	if !ok {
		return 0, xerrors.ErrUnknownTier
	}
	return def.Rank, nil
}

// HasFeature reports whether a tier grants a feature. A tier inherits
// every feature introduced at or below its own rank, so admin implicitly
// has everything.
func (c *Catalog) HasFeature(t Tier, f Feature) (bool, error) {
	def, ok := c.defs[t]
	if !ok {
		return false, xerrors.ErrUnknownTier
	}
	for _, d := range c.byRank {
		if d.Rank > def.Rank {
			continue
		}
		for _, have := range d.Features {
			if have == f {
				return true, nil
			}
		}
	}
	return false, nil
}

// FeaturesFor returns the full inherited feature set of a tier, lowest
// rank first. Derived on read; never stored.
func (c *Catalog) FeaturesFor(t Tier) ([]Feature, error) {
	def, ok := c.defs[t]
	if !ok {
		return nil, xerrors.ErrUnknownTier
	}
	var out []Feature
	for _, d := range c.byRank {
		if d.Rank <= def.Rank {
			out = append(out, d.Features...)
		}
	}
	return out, nil
}

// RoleFor derives the role string mirrored elsewhere in the platform.
// The tier field is canonical; this view exists so callers never store
// role independently.
func (c *Catalog) RoleFor(t Tier) (string, error) {
	if _, ok := c.defs[t]; !ok {
		return "", xerrors.ErrUnknownTier
	}
	if t == TierAdmin {
		return "admin", nil
	}
	return string(t), nil
}

// PlanFor derives the plan identifier view of a tier. Same rule as
// RoleFor: derived on read, never stored.
func (c *Catalog) PlanFor(t Tier) (string, error) {
	if _, ok := c.defs[t]; !ok {
		return "", xerrors.ErrUnknownTier
	}
	return string(t), nil
}

// Actions returns all recognized action names in a stable order.
func (c *Catalog) Actions() []Action {
	out := make([]Action, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Known reports whether a tier exists in the catalog.
func (c *Catalog) Known(t Tier) bool {
	_, ok := c.defs[t]
	return ok
}

// KnownAction reports whether an action name is recognized.
func (c *Catalog) KnownAction(a Action) bool {
	_, ok := c.actions[a]
	return ok
}
