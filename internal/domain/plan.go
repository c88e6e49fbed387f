// Package domain contains core business types and interfaces.
//
// This file defines plans, the features they unlock and the numeric limits
// they impose. The catalog of concrete plans lives in internal/plan.
package domain

// PlanID identifies a subscription plan.
type PlanID string

const (
	PlanStarter    PlanID = "starter"
	PlanCreatorPro PlanID = "creatorPro"
)

// IsValid reports whether the plan id names a known plan.
func (p PlanID) IsValid() bool {
	switch p {
	case PlanStarter, PlanCreatorPro:
		return true
	}
	return false
}

func (p PlanID) String() string {
	return string(p)
}

// BillingPeriod is how often a plan's price is charged.
type BillingPeriod string

const (
	BillingPeriodForever BillingPeriod = "forever"
	BillingPeriodMonth   BillingPeriod = "month"
	BillingPeriodYear    BillingPeriod = "year"
)

// MonetizationMode decides whose ad and affiliate accounts earn revenue on a site.
type MonetizationMode string

const (
	MonetizationPlatform MonetizationMode = "platform"
	MonetizationUser     MonetizationMode = "user"
)

// AnalyticsMode is the analytics granularity available to a plan.
type AnalyticsMode string

const (
	AnalyticsBasic    AnalyticsMode = "basic"
	AnalyticsRealtime AnalyticsMode = "realtime"
)

// ThemeID names a site theme.
type ThemeID string

const (
	ThemeMinimal   ThemeID = "minimal"
	ThemeMagazine  ThemeID = "magazine"
	ThemeBold      ThemeID = "bold"
	ThemePortfolio ThemeID = "portfolio"
)

// DefaultTheme is applied to newly created sites.
const DefaultTheme = ThemeMinimal

// IsValid reports whether the theme exists at all, regardless of plan.
func (t ThemeID) IsValid() bool {
	switch t {
	case ThemeMinimal, ThemeMagazine, ThemeBold, ThemePortfolio:
		return true
	}
	return false
}

// =============================================================================
// Features
// =============================================================================

// FeatureKey names a boolean capability that can be gated.
type FeatureKey string

const (
	FeatureCustomDomain      FeatureKey = "customDomain"
	FeatureAutoSync          FeatureKey = "autoSync"
	FeatureAICopilot         FeatureKey = "aiCopilot"
	FeaturePrioritySupport   FeatureKey = "prioritySupport"
	FeatureRemoveBranding    FeatureKey = "removeBranding"
	FeatureUserMonetization  FeatureKey = "userMonetization"
	FeatureRealtimeAnalytics FeatureKey = "realtimeAnalytics"
	FeaturePremiumThemes     FeatureKey = "premiumThemes"
)

// FeatureKeys lists every known feature in display order.
var FeatureKeys = []FeatureKey{
	FeatureCustomDomain,
	FeatureAutoSync,
	FeatureAICopilot,
	FeaturePrioritySupport,
	FeatureRemoveBranding,
	FeatureUserMonetization,
	FeatureRealtimeAnalytics,
	FeaturePremiumThemes,
}

var featureLabels = map[FeatureKey]string{
	FeatureCustomDomain:      "Custom domain",
	FeatureAutoSync:          "Auto-sync",
	FeatureAICopilot:         "AI co-pilot",
	FeaturePrioritySupport:   "Priority support",
	FeatureRemoveBranding:    "Branding removal",
	FeatureUserMonetization:  "Your own monetization",
	FeatureRealtimeAnalytics: "Real-time analytics",
	FeaturePremiumThemes:     "Premium themes",
}

// IsValid reports whether the key is a known feature.
func (k FeatureKey) IsValid() bool {
	_, ok := featureLabels[k]
	return ok
}

// Label returns a human-readable name for the feature.
func (k FeatureKey) Label() string {
	if l, ok := featureLabels[k]; ok {
		return l
	}
	return string(k)
}

// Features is the capability set of a plan.
type Features struct {
	CustomDomain    bool             `json:"customDomain"`
	Monetization    MonetizationMode `json:"monetization"`
	AutoSync        bool             `json:"autoSync"`
	Themes          []ThemeID        `json:"themes"`
	Analytics       AnalyticsMode    `json:"analytics"`
	AICopilot       bool             `json:"aiCopilot"`
	PrioritySupport bool             `json:"prioritySupport"`
	RemoveBranding  bool             `json:"removeBranding"`
}

// Enabled reports whether the feature is on. Unknown keys are always off.
func (f Features) Enabled(key FeatureKey) bool {
	switch key {
	case FeatureCustomDomain:
		return f.CustomDomain
	case FeatureAutoSync:
		return f.AutoSync
	case FeatureAICopilot:
		return f.AICopilot
	case FeaturePrioritySupport:
		return f.PrioritySupport
	case FeatureRemoveBranding:
		return f.RemoveBranding
	case FeatureUserMonetization:
		return f.Monetization == MonetizationUser
	case FeatureRealtimeAnalytics:
		return f.Analytics == AnalyticsRealtime
	case FeaturePremiumThemes:
		for _, t := range f.Themes {
			if t != ThemeMinimal {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// HasTheme reports whether the theme is part of the feature set.
func (f Features) HasTheme(theme ThemeID) bool {
	for _, t := range f.Themes {
		if t == theme {
			return true
		}
	}
	return false
}

// =============================================================================
// Limits
// =============================================================================

// Unlimited is the limit value meaning "no ceiling".
const Unlimited int64 = -1

// LimitKey names a numeric ceiling imposed by a plan.
type LimitKey string

const (
	LimitMaxSites         LimitKey = "maxSites"
	LimitMaxPostsPerMonth LimitKey = "maxPostsPerMonth"
	LimitMaxUploadSizeMB  LimitKey = "maxUploadSizeMB"
	LimitMaxVideoMinutes  LimitKey = "maxVideoMinutes"
)

// LimitKeys lists every known limit in display order.
var LimitKeys = []LimitKey{
	LimitMaxSites,
	LimitMaxPostsPerMonth,
	LimitMaxUploadSizeMB,
	LimitMaxVideoMinutes,
}

var limitLabels = map[LimitKey]string{
	LimitMaxSites:         "sites",
	LimitMaxPostsPerMonth: "posts per month",
	LimitMaxUploadSizeMB:  "MB per upload",
	LimitMaxVideoMinutes:  "minutes per video",
}

// IsValid reports whether the key is a known limit.
func (k LimitKey) IsValid() bool {
	_, ok := limitLabels[k]
	return ok
}

// Label returns a human-readable unit for the limit.
func (k LimitKey) Label() string {
	if l, ok := limitLabels[k]; ok {
		return l
	}
	return string(k)
}

// Limits holds the numeric ceilings of a plan. A value of Unlimited means
// the resource is not capped.
type Limits struct {
	MaxSites         int64 `json:"maxSites"`
	MaxPostsPerMonth int64 `json:"maxPostsPerMonth"`
	MaxUploadSizeMB  int64 `json:"maxUploadSizeMB"`
	MaxVideoMinutes  int64 `json:"maxVideoMinutes"`
}

// Get returns the limit for key, or 0 for unknown keys.
func (l Limits) Get(key LimitKey) int64 {
	switch key {
	case LimitMaxSites:
		return l.MaxSites
	case LimitMaxPostsPerMonth:
		return l.MaxPostsPerMonth
	case LimitMaxUploadSizeMB:
		return l.MaxUploadSizeMB
	case LimitMaxVideoMinutes:
		return l.MaxVideoMinutes
	default:
		return 0
	}
}

// =============================================================================
// Plan
// =============================================================================

// Plan bundles features and limits under a name and price.
type Plan struct {
	ID          PlanID        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Price       int64         `json:"price"` // cents per Period
	YearlyPrice int64         `json:"yearlyPrice,omitempty"`
	Currency    string        `json:"currency"`
	Period      BillingPeriod `json:"period"`
	Features    Features      `json:"features"`
	Limits      Limits        `json:"limits"`
	Highlights  []string      `json:"highlights"`
	Popular     bool          `json:"popular,omitempty"`
}

// IsFree reports whether the plan costs nothing.
func (p Plan) IsFree() bool {
	return p.Price == 0
}

// BrandingEnabled reports whether sites on this plan show StreamToSite branding.
func (p Plan) BrandingEnabled() bool {
	return !p.Features.RemoveBranding
}
