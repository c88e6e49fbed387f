package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/DukeRupert/streamtosite/internal/domain"
	"github.com/DukeRupert/streamtosite/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

func newTestStore(t *testing.T, policy BrandingPolicy) (*Store, *storage.MemoryStorage) {
	t.Helper()
	backend := storage.NewMemoryStorage("http://localhost/files")
	clock := &fixedClock{t: time.Date(2026, 4, 10, 9, 30, 0, 0, time.UTC)}
	s := New(backend, Options{BrandingPolicy: policy, Now: clock.Now}, discardLogger())
	require.NoError(t, s.Load(context.Background()))
	return s, backend
}

func youtubeSource(name string) SourceParams {
	return SourceParams{
		URL:      "https://www.youtube.com/@" + strings.ToLower(strings.ReplaceAll(name, " ", "")),
		Platform: domain.PlatformYouTube,
		Channel:  domain.ChannelInfo{ID: "UC-" + name, Name: name, Handle: "@" + name},
	}
}

func TestLoad_SeedsDefaultUser(t *testing.T) {
	s, backend := newTestStore(t, BrandingFreeze)

	u := s.User()
	assert.NotEqual(t, uuid.Nil, u.ID)
	assert.Equal(t, domain.PlanStarter, u.Plan)
	assert.Equal(t, domain.PlanStarter, s.Plan(context.Background()))

	ok, err := backend.Exists(context.Background(), storage.NewKeys("").State)
	require.NoError(t, err)
	assert.True(t, ok, "defaults should be persisted on first load")
}

func TestLoad_CorruptStateFallsBackToDefaults(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryStorage("")
	keys := storage.NewKeys("")
	require.NoError(t, storage.WriteAll(ctx, backend, keys.State, []byte("{not json"), ""))

	s := New(backend, Options{}, discardLogger())
	require.NoError(t, s.Load(ctx))

	assert.Equal(t, domain.PlanStarter, s.User().Plan)
	assert.Empty(t, s.Sites(ctx))

	backup, err := storage.ReadAll(ctx, backend, keys.State+".corrupt")
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(backup))
}

func TestCreateAndDeleteSite_Counts(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, BrandingFreeze)
	require.NoError(t, s.SetPlan(ctx, domain.PlanCreatorPro))

	before := s.SiteCount()
	site, err := s.CreateSite(ctx, youtubeSource("Test Kitchen"))
	require.NoError(t, err)
	assert.Equal(t, before+1, s.SiteCount())

	require.NoError(t, s.DeleteSite(ctx, site.ID))
	assert.Equal(t, before, s.SiteCount())

	// Second delete is a no-op.
	require.NoError(t, s.DeleteSite(ctx, site.ID))
	assert.Equal(t, before, s.SiteCount())
}

func TestCreateSite_Fields(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, BrandingFreeze)

	site, err := s.CreateSite(ctx, youtubeSource("Crème Brûlée Daily"))
	require.NoError(t, err)

	assert.Equal(t, "creme-brulee-daily", site.Subdomain)
	assert.Equal(t, domain.DefaultTheme, site.Theme)
	assert.Equal(t, s.User().ID, site.OwnerID)
	assert.False(t, site.IsVerified)
	assert.Regexp(t, `^STS-[0-9A-F]{6}$`, site.VerificationCode)
	assert.True(t, site.BrandingEnabled, "starter sites carry branding")
	require.Len(t, site.Sources, 1)
	assert.True(t, site.Sources[0].IsPrimary)
	assert.Equal(t, domain.PlatformYouTube, site.Sources[0].Platform)
}

func TestCreateSite_SubdomainCollision(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, BrandingFreeze)
	require.NoError(t, s.SetPlan(ctx, domain.PlanCreatorPro))

	a, err := s.CreateSite(ctx, youtubeSource("Gadget Lab"))
	require.NoError(t, err)
	b, err := s.CreateSite(ctx, youtubeSource("Gadget Lab"))
	require.NoError(t, err)
	c, err := s.CreateSite(ctx, youtubeSource("Gadget  Lab!"))
	require.NoError(t, err)

	assert.Equal(t, "gadget-lab", a.Subdomain)
	assert.Equal(t, "gadget-lab-2", b.Subdomain)
	assert.Equal(t, "gadget-lab-3", c.Subdomain)
}

func TestCanCreateSite_FreePlanThenUpgrade(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, BrandingFreeze)

	assert.True(t, s.CanCreateSite(ctx))
	_, err := s.CreateSite(ctx, youtubeSource("Only One"))
	require.NoError(t, err)
	assert.False(t, s.CanCreateSite(ctx))

	require.NoError(t, s.SetPlan(ctx, domain.PlanCreatorPro))
	assert.True(t, s.CanCreateSite(ctx))
	assert.Equal(t, 1, s.SiteCount())
}

func TestAddSourceToSite(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, BrandingFreeze)

	site, err := s.CreateSite(ctx, youtubeSource("Main"))
	require.NoError(t, err)

	updated, err := s.AddSourceToSite(ctx, site.ID, SourceParams{
		URL:      "https://www.tiktok.com/@main",
		Platform: domain.PlatformTikTok,
	})
	require.NoError(t, err)
	require.NotNil(t, updated)
	require.Len(t, updated.Sources, 2)
	assert.True(t, updated.Sources[0].IsPrimary)
	assert.False(t, updated.Sources[1].IsPrimary)

	missing, err := s.AddSourceToSite(ctx, uuid.New(), SourceParams{URL: "https://youtube.com/@x"})
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestVerifySite_Idempotent(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{t: time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)}
	s := New(storage.NewMemoryStorage(""), Options{Now: clock.Now}, discardLogger())
	require.NoError(t, s.Load(ctx))

	site, err := s.CreateSite(ctx, youtubeSource("Verify Me"))
	require.NoError(t, err)

	require.NoError(t, s.VerifySite(ctx, site.ID, domain.VerificationBio))
	first, _ := s.Site(ctx, site.ID)
	require.True(t, first.IsVerified)
	require.NotNil(t, first.VerifiedAt)

	clock.t = clock.t.Add(time.Hour)
	require.NoError(t, s.VerifySite(ctx, site.ID, domain.VerificationOAuth))
	second, _ := s.Site(ctx, site.ID)
	assert.True(t, second.IsVerified)
	assert.Equal(t, *first.VerifiedAt, *second.VerifiedAt)
	assert.Equal(t, domain.VerificationBio, second.VerificationMethod)
	assert.Equal(t, 1, s.VerifiedSiteCount())

	assert.NoError(t, s.VerifySite(ctx, uuid.New(), domain.VerificationBio))
}

func TestMissingEntities(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, BrandingFreeze)
	id := uuid.New()

	site, err := s.UpdateSiteTheme(ctx, id, domain.ThemeBold)
	assert.NoError(t, err)
	assert.Nil(t, site)

	site, err = s.SetCustomDomain(ctx, id, "blog.example.com")
	assert.NoError(t, err)
	assert.Nil(t, site)

	site, err = s.UpdateSourceChannel(ctx, id, uuid.New(), domain.ChannelInfo{})
	assert.NoError(t, err)
	assert.Nil(t, site)

	post, err := s.AddPost(ctx, domain.CreatePostParams{SiteID: id, Title: "x"})
	assert.NoError(t, err)
	assert.Nil(t, post)

	title := "new"
	post, err = s.UpdatePost(ctx, id, domain.UpdatePostParams{Title: &title})
	assert.NoError(t, err)
	assert.Nil(t, post)

	post, err = s.PublishPost(ctx, id)
	assert.NoError(t, err)
	assert.Nil(t, post)
}

func TestPostLifecycle(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, BrandingFreeze)

	site, err := s.CreateSite(ctx, youtubeSource("Writer"))
	require.NoError(t, err)

	post, err := s.AddPost(ctx, domain.CreatePostParams{SiteID: site.ID, Title: "Draft", Content: "<p>hi</p>"})
	require.NoError(t, err)
	require.NotNil(t, post)
	assert.Equal(t, domain.PostStatusDraft, post.Status)
	assert.Equal(t, domain.PlatformYouTube, post.Platform)

	got, _ := s.Site(ctx, site.ID)
	assert.Equal(t, int64(1), got.Stats.PostCount)

	title := "Final title"
	post, err = s.UpdatePost(ctx, post.ID, domain.UpdatePostParams{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Final title", post.Title)
	assert.Equal(t, "<p>hi</p>", post.Content)

	published, err := s.PublishPost(ctx, post.ID)
	require.NoError(t, err)
	require.NotNil(t, published.PublishedAt)
	assert.True(t, published.IsPublished())

	again, err := s.PublishPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, *published.PublishedAt, *again.PublishedAt)

	assert.Len(t, s.Posts(site.ID), 1)
	assert.Len(t, s.Posts(uuid.Nil), 1)
	assert.Empty(t, s.Posts(uuid.New()))
}

func TestDeleteSite_KeepsPosts(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, BrandingFreeze)

	site, err := s.CreateSite(ctx, youtubeSource("Gone"))
	require.NoError(t, err)
	_, err = s.AddPost(ctx, domain.CreatePostParams{SiteID: site.ID, Title: "orphan"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteSite(ctx, site.ID))
	assert.Len(t, s.Posts(site.ID), 1)
}

func TestAggregates(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, BrandingFreeze)
	require.NoError(t, s.SetPlan(ctx, domain.PlanCreatorPro))

	a, err := s.CreateSite(ctx, youtubeSource("A"))
	require.NoError(t, err)
	b, err := s.CreateSite(ctx, youtubeSource("B"))
	require.NoError(t, err)

	_, err = s.RecordTraffic(ctx, a.ID, 100, 250)
	require.NoError(t, err)
	_, err = s.RecordTraffic(ctx, b.ID, 40, 50)
	require.NoError(t, err)

	assert.Equal(t, int64(140), s.TotalViews())
	assert.Equal(t, int64(300), s.TotalRevenue())
	assert.Equal(t, 2, s.SiteCount())
	assert.Equal(t, 0, s.VerifiedSiteCount())
}

func TestBrandingPolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("freeze keeps creation-time flag", func(t *testing.T) {
		s, _ := newTestStore(t, BrandingFreeze)
		site, err := s.CreateSite(ctx, youtubeSource("Frozen"))
		require.NoError(t, err)
		require.NoError(t, s.SetPlan(ctx, domain.PlanCreatorPro))

		got, _ := s.Site(ctx, site.ID)
		assert.True(t, got.BrandingEnabled)

		fresh, err := s.CreateSite(ctx, youtubeSource("Fresh"))
		require.NoError(t, err)
		assert.False(t, fresh.BrandingEnabled)
	})

	t.Run("live follows the plan", func(t *testing.T) {
		s, _ := newTestStore(t, BrandingLive)
		site, err := s.CreateSite(ctx, youtubeSource("Live"))
		require.NoError(t, err)
		require.NoError(t, s.SetPlan(ctx, domain.PlanCreatorPro))

		got, _ := s.Site(ctx, site.ID)
		assert.False(t, got.BrandingEnabled)

		require.NoError(t, s.SetPlan(ctx, domain.PlanStarter))
		got, _ = s.Site(ctx, site.ID)
		assert.True(t, got.BrandingEnabled)
	})
}

func TestBrandingLive_FollowsPlanOverrideKey(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t, BrandingLive)
	site, err := s.CreateSite(ctx, youtubeSource("Override"))
	require.NoError(t, err)
	require.True(t, site.BrandingEnabled)

	require.NoError(t, storage.WriteAll(ctx, backend, storage.NewKeys("").Plan, []byte("creatorPro"), ""))
	require.Equal(t, domain.PlanCreatorPro, s.Plan(ctx))

	got, ok := s.Site(ctx, site.ID)
	require.True(t, ok)
	assert.False(t, got.BrandingEnabled)
	assert.False(t, s.Sites(ctx)[0].BrandingEnabled)

	updated, err := s.UpdateSiteTheme(ctx, site.ID, domain.ThemeBold)
	require.NoError(t, err)
	assert.False(t, updated.BrandingEnabled)

	require.NoError(t, backend.Delete(ctx, storage.NewKeys("").Plan))
	got, _ = s.Site(ctx, site.ID)
	assert.True(t, got.BrandingEnabled, "back on the stored starter plan")
}

func TestBrandingFreeze_IgnoresPlanOverrideKey(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t, BrandingFreeze)
	site, err := s.CreateSite(ctx, youtubeSource("Frozen"))
	require.NoError(t, err)

	require.NoError(t, storage.WriteAll(ctx, backend, storage.NewKeys("").Plan, []byte("creatorPro"), ""))
	got, _ := s.Site(ctx, site.ID)
	assert.True(t, got.BrandingEnabled)
}

func TestUpdate_SeesWritesFromAnotherStore(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryStorage("")
	server := New(backend, Options{}, discardLogger())
	require.NoError(t, server.Load(ctx))
	site, err := server.CreateSite(ctx, youtubeSource("Shared"))
	require.NoError(t, err)

	cli := New(backend, Options{}, discardLogger())
	require.NoError(t, cli.Load(ctx))
	_, err = cli.RecordTraffic(ctx, site.ID, 500, 1234)
	require.NoError(t, err)
	require.NoError(t, cli.SetPlan(ctx, domain.PlanCreatorPro))

	_, err = server.UpdateSiteTheme(ctx, site.ID, domain.ThemeBold)
	require.NoError(t, err)
	assert.Equal(t, int64(500), server.TotalViews())
	assert.Equal(t, domain.PlanCreatorPro, server.User().Plan)

	reloaded := New(backend, Options{}, discardLogger())
	require.NoError(t, reloaded.Load(ctx))
	got, ok := reloaded.Site(ctx, site.ID)
	require.True(t, ok)
	assert.Equal(t, int64(500), got.Stats.Views)
	assert.Equal(t, int64(1234), got.Stats.Revenue)
	assert.Equal(t, domain.ThemeBold, got.Theme)
	assert.Equal(t, domain.PlanCreatorPro, reloaded.User().Plan)
	assert.Equal(t, domain.PlanCreatorPro, reloaded.Plan(ctx))
}

func TestUpdate_UnreadableStateKeepsMemoryCopy(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t, BrandingFreeze)
	site, err := s.CreateSite(ctx, youtubeSource("Kept"))
	require.NoError(t, err)

	require.NoError(t, storage.WriteAll(ctx, backend, storage.NewKeys("").State, []byte("{broken"), ""))
	_, err = s.RecordTraffic(ctx, site.ID, 1, 0)
	require.NoError(t, err)

	reloaded := New(backend, Options{}, discardLogger())
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, 1, reloaded.SiteCount())
	assert.Equal(t, int64(1), reloaded.TotalViews())
}

func TestRecordTraffic_RejectsNegative(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, BrandingFreeze)
	site, err := s.CreateSite(ctx, youtubeSource("Stats"))
	require.NoError(t, err)

	_, err = s.RecordTraffic(ctx, site.ID, -1, 0)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	_, err = s.RecordTraffic(ctx, site.ID, 0, -150)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	assert.Equal(t, int64(0), s.TotalRevenue())
}

func TestSetPlan_Unknown(t *testing.T) {
	s, _ := newTestStore(t, BrandingFreeze)
	err := s.SetPlan(context.Background(), domain.PlanID("platinum"))
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	assert.Equal(t, domain.PlanStarter, s.User().Plan)
}

func TestPlan_OverrideResolution(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t, BrandingFreeze)
	keys := storage.NewKeys("")

	require.NoError(t, storage.WriteAll(ctx, backend, keys.Plan, []byte("creatorPro"), ""))
	assert.Equal(t, domain.PlanCreatorPro, s.Plan(ctx))

	require.NoError(t, storage.WriteAll(ctx, backend, keys.Plan, []byte(`"creatorPro"`), ""))
	assert.Equal(t, domain.PlanCreatorPro, s.Plan(ctx))

	require.NoError(t, storage.WriteAll(ctx, backend, keys.Plan, []byte("{garbage"), ""))
	assert.Equal(t, domain.PlanStarter, s.Plan(ctx), "corrupt override falls back to the user plan")
}

func TestUsageOverride(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t, BrandingFreeze)
	keys := storage.NewKeys("")

	_, ok := s.UsageOverride(ctx)
	assert.False(t, ok)

	require.NoError(t, s.SetUsageOverride(ctx, domain.Usage{PostsThisPeriod: 7}))
	u, ok := s.UsageOverride(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(7), u.PostsThisPeriod)

	require.NoError(t, storage.WriteAll(ctx, backend, keys.Usage, []byte("[1,2"), ""))
	_, ok = s.UsageOverride(ctx)
	assert.False(t, ok)

	require.NoError(t, s.ClearUsageOverride(ctx))
	_, ok = s.UsageOverride(ctx)
	assert.False(t, ok)
}

func TestPersistRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryStorage("")
	clock := &fixedClock{t: time.Date(2026, 4, 10, 9, 30, 15, 123456789, time.UTC)}

	s := New(backend, Options{Now: clock.Now}, discardLogger())
	require.NoError(t, s.Load(ctx))
	site, err := s.CreateSite(ctx, youtubeSource("Round Trip"))
	require.NoError(t, err)
	require.NoError(t, s.VerifySite(ctx, site.ID, domain.VerificationDescription))
	post, err := s.AddPost(ctx, domain.CreatePostParams{SiteID: site.ID, Title: "t"})
	require.NoError(t, err)
	_, err = s.PublishPost(ctx, post.ID)
	require.NoError(t, err)

	reloaded := New(backend, Options{}, discardLogger())
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, s.Snapshot(), reloaded.Snapshot())

	raw, err := storage.ReadAll(ctx, backend, storage.NewKeys("").State)
	require.NoError(t, err)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Contains(t, doc, "user")
	assert.Contains(t, doc, "sites")
	assert.Contains(t, doc, "posts")
	assert.Contains(t, string(raw), `"createdAt":"2026-04-10T09:30:15.123456789Z"`)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t, BrandingFreeze)
	_, err := s.CreateSite(ctx, youtubeSource("Temp"))
	require.NoError(t, err)
	require.NoError(t, s.SetPlan(ctx, domain.PlanCreatorPro))

	require.NoError(t, s.Reset(ctx))
	assert.Equal(t, 0, backend.Len())

	_, err = s.CreateSite(ctx, youtubeSource("After reset"))
	assert.ErrorIs(t, err, ErrNotLoaded)

	require.NoError(t, s.Load(ctx))
	assert.Equal(t, 0, s.SiteCount())
}

// failingStorage fails every write once armed.
type failingStorage struct {
	storage.Storage
	fail bool
}

func (f *failingStorage) Put(ctx context.Context, key string, data io.Reader, opts storage.PutOptions) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.Storage.Put(ctx, key, data, opts)
}

func TestMutation_PersistFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	backend := &failingStorage{Storage: storage.NewMemoryStorage("")}
	s := New(backend, Options{}, discardLogger())
	require.NoError(t, s.Load(ctx))

	backend.fail = true
	_, err := s.CreateSite(ctx, youtubeSource("Nope"))
	assert.Error(t, err)
	assert.Equal(t, 0, s.SiteCount())
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Marques Brownlee":  "marques-brownlee",
		"Crème Brûlée":      "creme-brulee",
		"  --Hello__World ": "hello-world",
		"日本語":               "site",
		"":                  "site",
		"ＦＵＬＬ ｗｉｄｔｈ":       "full-width",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, Slugify(in))
		})
	}
}

func TestSlugify_AlwaysValidLabel(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := Slugify(rapid.String().Draw(t, "name"))
		assert.Regexp(t, `^[a-z0-9]+(-[a-z0-9]+)*$`, s)
		assert.LessOrEqual(t, len(s), maxSubdomainLen)
	})
}
