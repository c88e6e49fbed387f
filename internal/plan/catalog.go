// Package plan holds the static plan catalog and the pure entitlement
// checks evaluated against it.
package plan

import (
	"slices"
	"sort"

	"github.com/DukeRupert/streamtosite/internal/domain"
)

// Default is the lowest-privilege plan. Unknown plan ids resolve to it.
const Default = domain.PlanStarter

var catalog = map[domain.PlanID]domain.Plan{
	domain.PlanStarter: {
		ID:          domain.PlanStarter,
		Name:        "Starter",
		Description: "Turn one channel into a blog and start earning with platform ads.",
		Price:       0,
		Currency:    "usd",
		Period:      domain.BillingPeriodForever,
		Features: domain.Features{
			CustomDomain:    false,
			Monetization:    domain.MonetizationPlatform,
			AutoSync:        false,
			Themes:          []domain.ThemeID{domain.ThemeMinimal},
			Analytics:       domain.AnalyticsBasic,
			AICopilot:       false,
			PrioritySupport: false,
			RemoveBranding:  false,
		},
		Limits: domain.Limits{
			MaxSites:         1,
			MaxPostsPerMonth: 10,
			MaxUploadSizeMB:  5,
			MaxVideoMinutes:  30,
		},
		Highlights: []string{
			"1 site on a streamtosite subdomain",
			"10 posts per month",
			"Minimal theme",
			"Platform monetization",
			"Basic analytics",
		},
	},
	domain.PlanCreatorPro: {
		ID:          domain.PlanCreatorPro,
		Name:        "Creator Pro",
		Description: "Unlimited sites on your own domain, with your own monetization.",
		Price:       1900,
		YearlyPrice: 19000,
		Currency:    "usd",
		Period:      domain.BillingPeriodMonth,
		Features: domain.Features{
			CustomDomain: true,
			Monetization: domain.MonetizationUser,
			AutoSync:     true,
			Themes: []domain.ThemeID{
				domain.ThemeMinimal,
				domain.ThemeMagazine,
				domain.ThemeBold,
				domain.ThemePortfolio,
			},
			Analytics:       domain.AnalyticsRealtime,
			AICopilot:       true,
			PrioritySupport: true,
			RemoveBranding:  true,
		},
		Limits: domain.Limits{
			MaxSites:         domain.Unlimited,
			MaxPostsPerMonth: domain.Unlimited,
			MaxUploadSizeMB:  50,
			MaxVideoMinutes:  domain.Unlimited,
		},
		Highlights: []string{
			"Unlimited sites and posts",
			"Custom domains",
			"All premium themes",
			"Keep 100% of your ad revenue",
			"Auto-sync new videos",
			"AI writing co-pilot",
			"Real-time analytics",
			"Priority support",
		},
		Popular: true,
	},
}

// Get returns the plan for id, falling back to Default for unknown ids.
// The result is a copy; changing it does not affect the catalog.
func Get(id domain.PlanID) domain.Plan {
	if p, ok := catalog[id]; ok {
		return clonePlan(p)
	}
	return clonePlan(catalog[Default])
}

func clonePlan(p domain.Plan) domain.Plan {
	p.Features.Themes = slices.Clone(p.Features.Themes)
	p.Highlights = slices.Clone(p.Highlights)
	return p
}

// Exists reports whether id names a plan in the catalog.
func Exists(id domain.PlanID) bool {
	_, ok := catalog[id]
	return ok
}

// ParseID converts s to a plan id. Unknown values yield Default and false.
func ParseID(s string) (domain.PlanID, bool) {
	id := domain.PlanID(s)
	if Exists(id) {
		return id, true
	}
	return Default, false
}

// All returns every plan ordered by price, cheapest first.
func All() []domain.Plan {
	plans := make([]domain.Plan, 0, len(catalog))
	for _, p := range catalog {
		plans = append(plans, clonePlan(p))
	}
	sort.Slice(plans, func(i, j int) bool {
		if plans[i].Price == plans[j].Price {
			return plans[i].ID < plans[j].ID
		}
		return plans[i].Price < plans[j].Price
	})
	return plans
}
