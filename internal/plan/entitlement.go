package plan

import "github.com/DukeRupert/streamtosite/internal/domain"

// HasFeatureAccess reports whether the plan includes the feature. Unknown
// plans resolve to Default and unknown features are denied.
func HasFeatureAccess(id domain.PlanID, key domain.FeatureKey) bool {
	return Get(id).Features.Enabled(key)
}

// GetLimit returns the plan's limit for key, or 0 for unknown keys.
func GetLimit(id domain.PlanID, key domain.LimitKey) int64 {
	return Get(id).Limits.Get(key)
}

// IsWithinLimit reports whether current is below the plan's limit for key.
// Unlimited limits are always within.
func IsWithinLimit(id domain.PlanID, key domain.LimitKey, current int64) bool {
	limit := GetLimit(id, key)
	if limit == domain.Unlimited {
		return true
	}
	return current < limit
}

// Remaining returns how many more units fit under the limit, never below 0.
// Unlimited limits return domain.Unlimited.
func Remaining(id domain.PlanID, key domain.LimitKey, current int64) int64 {
	limit := GetLimit(id, key)
	if limit == domain.Unlimited {
		return domain.Unlimited
	}
	if current >= limit {
		return 0
	}
	return limit - current
}

// UsagePercent returns current as a percentage of the limit, clamped to
// [0, 100]. Unlimited limits report 0; a zero limit reports 100.
func UsagePercent(id domain.PlanID, key domain.LimitKey, current int64) int {
	limit := GetLimit(id, key)
	switch {
	case limit == domain.Unlimited:
		return 0
	case limit <= 0:
		return 100
	case current <= 0:
		return 0
	case current >= limit:
		return 100
	}
	return int(current * 100 / limit)
}

// AllowsTheme reports whether sites on the plan may use theme.
func AllowsTheme(id domain.PlanID, theme domain.ThemeID) bool {
	return Get(id).Features.HasTheme(theme)
}

// Cheapest returns the least expensive plan that includes the feature, used
// to point upgrade prompts somewhere useful. ok is false if no plan has it.
func Cheapest(key domain.FeatureKey) (domain.Plan, bool) {
	for _, p := range All() {
		if p.Features.Enabled(key) {
			return p, true
		}
	}
	return domain.Plan{}, false
}

// CheapestFor returns the least expensive plan whose limit for key admits
// current. ok is false if no plan does.
func CheapestFor(key domain.LimitKey, current int64) (domain.Plan, bool) {
	for _, p := range All() {
		if IsWithinLimit(p.ID, key, current) {
			return p, true
		}
	}
	return domain.Plan{}, false
}
