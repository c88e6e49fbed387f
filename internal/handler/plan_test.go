package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/streamtosite/internal/domain"
	"github.com/DukeRupert/streamtosite/internal/gate"
)

func TestListPlans(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/api/plans", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[PlansResponse](t, rec)
	assert.Equal(t, domain.PlanStarter, resp.Current)
	require.Len(t, resp.Plans, 2)
	assert.Equal(t, domain.PlanStarter, resp.Plans[0].ID, "cheapest first")
	assert.Equal(t, domain.PlanCreatorPro, resp.Plans[1].ID)
}

func TestEntitlements(t *testing.T) {
	f := newFixture(t)

	res := decode[gate.Result](t, f.do(t, "GET", "/api/entitlements", nil))
	assert.Equal(t, domain.PlanStarter, res.PlanID)
	assert.True(t, res.HasAccess, "nothing requested")
	assert.False(t, res.Features[domain.FeatureCustomDomain])
	assert.Equal(t, int64(1), res.Limits[domain.LimitMaxSites])

	res = decode[gate.Result](t, f.do(t, "GET", "/api/entitlements?feature=customDomain,%20aiCopilot", nil))
	assert.False(t, res.HasAccess)
	assert.Equal(t, []domain.FeatureKey{domain.FeatureCustomDomain, domain.FeatureAICopilot}, res.Requested)

	f.upgrade(t)
	res = decode[gate.Result](t, f.do(t, "GET", "/api/entitlements?feature=customDomain,aiCopilot", nil))
	assert.True(t, res.HasAccess, "plan changes are visible on the next request")
	assert.Equal(t, domain.Unlimited, res.Limits[domain.LimitMaxSites])
}

func TestEntitlements_UnknownFeatureDenied(t *testing.T) {
	f := newFixture(t)
	f.upgrade(t)

	res := decode[gate.Result](t, f.do(t, "GET", "/api/entitlements?feature=teleportation", nil))
	assert.False(t, res.HasAccess)
}

func TestUsage(t *testing.T) {
	f := newFixture(t)

	resp := decode[UsageResponse](t, f.do(t, "GET", "/api/usage", nil))
	assert.Equal(t, int64(0), resp.Usage.SitesCreated)
	assert.Equal(t, int64(1), resp.Remaining[domain.LimitMaxSites])

	f.createSite(t, mkbhdURL)

	resp = decode[UsageResponse](t, f.do(t, "GET", "/api/usage", nil))
	assert.Equal(t, int64(1), resp.Usage.SitesCreated)
	assert.Equal(t, int64(0), resp.Remaining[domain.LimitMaxSites])
	assert.Equal(t, 100, resp.UsagePercent[domain.LimitMaxSites])
	assert.Equal(t, int64(10), resp.Limits[domain.LimitMaxPostsPerMonth])
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sites":[]`, "an empty workspace encodes an empty list")

	site := f.createSite(t, mkbhdURL)
	_, err := f.store.RecordTraffic(t.Context(), site.ID, 120, 450)
	require.NoError(t, err)

	resp := decode[DashboardResponse](t, f.do(t, "GET", "/api/dashboard", nil))
	require.Len(t, resp.Sites, 1)
	assert.Equal(t, site.ID, resp.Sites[0].ID)
	assert.Equal(t, int64(120), resp.TotalViews)
	assert.Equal(t, int64(450), resp.TotalRevenue)
	assert.Equal(t, 0, resp.VerifiedSites)
	assert.Equal(t, domain.PlanStarter, resp.Entitlements.PlanID)
}
