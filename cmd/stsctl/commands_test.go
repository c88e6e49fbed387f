package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/streamtosite/internal/domain"
	"github.com/DukeRupert/streamtosite/internal/storage"
	"github.com/DukeRupert/streamtosite/internal/store"
)

func newTestWorkspace(t *testing.T) (*workspace, *storage.MemoryStorage) {
	t.Helper()
	blobs := storage.NewMemoryStorage("http://localhost:8080/files")
	st := store.New(blobs, store.Options{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, st.Load(context.Background()))
	return newWorkspace(st, nil), blobs
}

func run(t *testing.T, ws *workspace, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand(func(context.Context) (*workspace, error) { return ws, nil })
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPlans(t *testing.T) {
	ws, _ := newTestWorkspace(t)

	out, err := run(t, ws, "plans")
	require.NoError(t, err)
	assert.Regexp(t, `starter \*\s+Starter\s+free\s+1\s+10`, out)
	assert.Regexp(t, `creatorPro\s+Creator Pro\s+\$19\.00/month\s+unlimited\s+unlimited`, out)

	out, err = run(t, ws, "plans", "--json")
	require.NoError(t, err)
	var plans []domain.Plan
	require.NoError(t, json.Unmarshal([]byte(out), &plans))
	require.Len(t, plans, 2)
	assert.Equal(t, domain.PlanStarter, plans[0].ID)
}

func TestEntitlements(t *testing.T) {
	ws, _ := newTestWorkspace(t)

	out, err := run(t, ws, "entitlements")
	require.NoError(t, err)
	assert.Contains(t, out, "Plan: Starter (starter)")
	assert.Regexp(t, `customDomain\s+no`, out)

	out, err = run(t, ws, "entitlements", "--feature", "customDomain,aiCopilot")
	require.NoError(t, err)
	assert.Contains(t, out, "Access to customDomain, aiCopilot: no")

	out, err = run(t, ws, "set-plan", "creatorPro")
	require.NoError(t, err)
	assert.Equal(t, "Plan set to creatorPro\n", out)

	out, err = run(t, ws, "entitlements", "--feature", "customDomain,aiCopilot")
	require.NoError(t, err)
	assert.Contains(t, out, "Access to customDomain, aiCopilot: yes")

	out, err = run(t, ws, "entitlements", "--feature", "teleport")
	require.NoError(t, err)
	assert.Contains(t, out, ": no", "unknown features are never granted")

	out, err = run(t, ws, "entitlements", "--json")
	require.NoError(t, err)
	var res struct {
		PlanID   domain.PlanID              `json:"planId"`
		Features map[domain.FeatureKey]bool `json:"features"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, domain.PlanCreatorPro, res.PlanID)
	assert.True(t, res.Features[domain.FeatureRealtimeAnalytics])
}

func TestSetPlan_Unknown(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	_, err := run(t, ws, "set-plan", "enterprise")
	assert.ErrorContains(t, err, `unknown plan "enterprise"`)
	assert.Equal(t, domain.PlanStarter, ws.store.Plan(context.Background()))

	_, err = run(t, ws, "set-plan")
	assert.Error(t, err)
}

func TestUsageOverride(t *testing.T) {
	ws, _ := newTestWorkspace(t)

	out, err := run(t, ws, "usage-override", "--posts", "7", "--sites", "1")
	require.NoError(t, err)
	assert.Equal(t, "Usage override set: 7 posts, 1 sites\n", out)

	out, err = run(t, ws, "usage")
	require.NoError(t, err)
	assert.Contains(t, out, "Period: 20")
	assert.Regexp(t, `maxPostsPerMonth\s+7\s+10\s+3`, out)
	assert.Regexp(t, `maxSites\s+1\s+1\s+0`, out)

	out, err = run(t, ws, "usage", "--json")
	require.NoError(t, err)
	var u domain.Usage
	require.NoError(t, json.Unmarshal([]byte(out), &u))
	assert.Equal(t, int64(7), u.PostsThisPeriod)

	_, err = run(t, ws, "usage-override", "--posts", "-1")
	assert.ErrorContains(t, err, "must not be negative")

	out, err = run(t, ws, "usage-override", "--clear")
	require.NoError(t, err)
	assert.Equal(t, "Usage override cleared\n", out)

	out, err = run(t, ws, "usage")
	require.NoError(t, err)
	assert.Regexp(t, `maxPostsPerMonth\s+0\s+10\s+10`, out)
}

func TestTraffic(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	site, err := ws.store.CreateSite(context.Background(), store.SourceParams{
		URL:      "https://www.youtube.com/@mkbhd",
		Platform: domain.PlatformYouTube,
		Channel:  domain.ChannelInfo{Name: "Marques Brownlee", Handle: "@mkbhd"},
	})
	require.NoError(t, err)

	out, err := run(t, ws, "traffic", site.ID.String(), "--views", "100", "--revenue", "250")
	require.NoError(t, err)
	assert.Equal(t, "Marques Brownlee: 100 views, 250 cents\n", out)

	out, err = run(t, ws, "traffic", site.ID.String(), "--views", "5")
	require.NoError(t, err)
	assert.Equal(t, "Marques Brownlee: 105 views, 250 cents\n", out)
	assert.Equal(t, int64(105), ws.store.TotalViews())

	_, err = run(t, ws, "traffic", site.ID.String(), "--revenue", "-150")
	assert.ErrorContains(t, err, "must not be negative")
	_, err = run(t, ws, "traffic", site.ID.String(), "--views", "-1")
	assert.ErrorContains(t, err, "must not be negative")
	assert.Equal(t, int64(250), ws.store.TotalRevenue())

	_, err = run(t, ws, "traffic", "not-a-uuid")
	assert.ErrorContains(t, err, "invalid site id")

	missing := uuid.New()
	_, err = run(t, ws, "traffic", missing.String(), "--views", "1")
	assert.ErrorContains(t, err, missing.String()+" not found")
}

func TestReset(t *testing.T) {
	ws, blobs := newTestWorkspace(t)
	ctx := context.Background()
	_, err := run(t, ws, "set-plan", "creatorPro")
	require.NoError(t, err)

	_, err = run(t, ws, "reset")
	assert.ErrorContains(t, err, "--yes")

	out, err := run(t, ws, "reset", "--yes")
	require.NoError(t, err)
	assert.Equal(t, "Workspace reset\n", out)

	for _, key := range storage.NewKeys("").All() {
		exists, err := blobs.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, exists, key)
	}
	require.NoError(t, ws.store.Load(ctx))
	assert.Equal(t, domain.PlanStarter, ws.store.Plan(ctx))
}

func TestOpenFailureStopsCommand(t *testing.T) {
	root := newRootCommand(func(context.Context) (*workspace, error) {
		return nil, errors.New("storage unreachable")
	})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"plans"})
	assert.ErrorContains(t, root.ExecuteContext(context.Background()), "storage unreachable")
}

func TestCloseRunsAfterCommand(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	closed := false
	ws.close = func() error {
		closed = true
		return nil
	}
	_, err := run(t, ws, "plans")
	require.NoError(t, err)
	assert.True(t, closed)
}

func TestCLILogger_WarnOnly(t *testing.T) {
	var buf bytes.Buffer
	logger := newCLILogger(&buf, "development")
	ctx := context.Background()

	assert.False(t, logger.Enabled(ctx, slog.LevelDebug))
	assert.False(t, logger.Enabled(ctx, slog.LevelInfo))
	assert.True(t, logger.Enabled(ctx, slog.LevelWarn))

	logger.Info("loaded state")
	logger.Warn("plan override not written")
	assert.NotContains(t, buf.String(), "loaded state")
	assert.Contains(t, buf.String(), "plan override not written")
}
