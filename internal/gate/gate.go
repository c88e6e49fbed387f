// Package gate decides what the current user may see and do. It combines
// the resolved plan with current usage into a Result that pages, handlers
// and middleware consult.
package gate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/DukeRupert/streamtosite/internal/domain"
	"github.com/DukeRupert/streamtosite/internal/plan"
)

// PlanSource resolves the active plan and its owner.
type PlanSource interface {
	Plan(ctx context.Context) domain.PlanID
	User() domain.User
}

// UsageSource reports consumption for the current billing period.
type UsageSource interface {
	GetCurrentUsage(ctx context.Context, userID uuid.UUID) (domain.Usage, error)
}

// Gate evaluates entitlements. It holds no cached state, so every call sees
// plan changes made since the previous one.
type Gate struct {
	plans  PlanSource
	usage  UsageSource
	logger *slog.Logger
}

// New creates a gate.
func New(plans PlanSource, usage UsageSource, logger *slog.Logger) *Gate {
	return &Gate{plans: plans, usage: usage, logger: logger}
}

// Result is a point-in-time view of the user's entitlements.
type Result struct {
	PlanID       domain.PlanID              `json:"planId"`
	PlanName     string                     `json:"planName"`
	Features     map[domain.FeatureKey]bool `json:"features"`
	Limits       map[domain.LimitKey]int64  `json:"limits"`
	Remaining    map[domain.LimitKey]int64  `json:"remaining"`
	UsagePercent map[domain.LimitKey]int    `json:"usagePercent"`
	Usage        domain.Usage               `json:"usage"`
	Requested    []domain.FeatureKey        `json:"requested,omitempty"`
	HasAccess    bool                       `json:"hasAccess"`
}

// Evaluate resolves the plan and usage and reports access to each of the
// requested features. HasAccess is true only when every requested feature
// is granted; with no features requested it is true.
func (g *Gate) Evaluate(ctx context.Context, features ...domain.FeatureKey) (Result, error) {
	const op = "gate.evaluate"

	id := g.plans.Plan(ctx)
	user := g.plans.User()
	u, err := g.usage.GetCurrentUsage(ctx, user.ID)
	if err != nil {
		return Result{}, domain.Wrap(err, domain.EINTERNAL, op, "Unable to read current usage.")
	}

	return Compute(id, u, features...), nil
}

// Compute builds a Result from an already resolved plan and usage. It has
// no side effects.
func Compute(id domain.PlanID, u domain.Usage, features ...domain.FeatureKey) Result {
	p := plan.Get(id)
	r := Result{
		PlanID:       p.ID,
		PlanName:     p.Name,
		Features:     make(map[domain.FeatureKey]bool, len(domain.FeatureKeys)),
		Limits:       make(map[domain.LimitKey]int64, len(domain.LimitKeys)),
		Remaining:    make(map[domain.LimitKey]int64, len(domain.LimitKeys)),
		UsagePercent: make(map[domain.LimitKey]int, len(domain.LimitKeys)),
		Usage:        u,
		Requested:    features,
		HasAccess:    true,
	}
	for _, key := range domain.FeatureKeys {
		r.Features[key] = plan.HasFeatureAccess(p.ID, key)
	}
	for _, key := range domain.LimitKeys {
		current := u.Value(key)
		r.Limits[key] = plan.GetLimit(p.ID, key)
		r.Remaining[key] = plan.Remaining(p.ID, key, current)
		r.UsagePercent[key] = plan.UsagePercent(p.ID, key, current)
	}
	for _, key := range features {
		if !r.Features[key] {
			r.HasAccess = false
		}
	}
	return r
}

// Can reports whether the plan includes key. Unknown keys are denied.
func (r Result) Can(key domain.FeatureKey) bool {
	return r.Features[key]
}

// WithinLimit reports whether one more unit of key fits in the plan.
func (r Result) WithinLimit(key domain.LimitKey) bool {
	return plan.IsWithinLimit(r.PlanID, key, r.Usage.Value(key))
}

// Unlimited reports whether key has no ceiling on the plan.
func (r Result) Unlimited(key domain.LimitKey) bool {
	return r.Limits[key] == domain.Unlimited
}

// Upgrade describes where a denied user should go.
type Upgrade struct {
	Plan   domain.PlanID `json:"plan"`
	Name   string        `json:"name"`
	Price  int64         `json:"price"`
	URL    string        `json:"url"`
	Reason string        `json:"reason"`
}

// UpgradeForFeature points at the cheapest plan that includes key.
func UpgradeForFeature(key domain.FeatureKey) (Upgrade, bool) {
	p, ok := plan.Cheapest(key)
	if !ok {
		return Upgrade{}, false
	}
	return Upgrade{
		Plan:   p.ID,
		Name:   p.Name,
		Price:  p.Price,
		URL:    UpgradeURL(p.ID, string(key)),
		Reason: fmt.Sprintf("%s is available on %s.", key.Label(), p.Name),
	}, true
}

// UpgradeForLimit points at the cheapest plan that admits one more unit of
// key beyond current.
func UpgradeForLimit(key domain.LimitKey, current int64) (Upgrade, bool) {
	p, ok := plan.CheapestFor(key, current)
	if !ok {
		return Upgrade{}, false
	}
	return Upgrade{
		Plan:   p.ID,
		Name:   p.Name,
		Price:  p.Price,
		URL:    UpgradeURL(p.ID, string(key)),
		Reason: fmt.Sprintf("%s raises your %s limit.", p.Name, key.Label()),
	}, true
}

// UpgradeURL is the pricing page link for plan id, tagged with what
// prompted the upgrade.
func UpgradeURL(id domain.PlanID, reason string) string {
	return "/pricing?plan=" + string(id) + "&reason=" + reason
}
