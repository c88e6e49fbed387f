package handler

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/streamtosite/internal/domain"
)

func TestPostLifecycle(t *testing.T) {
	f := newFixture(t)
	site := f.createSite(t, mkbhdURL)

	rec := f.do(t, "POST", "/api/posts", map[string]string{
		"siteId":  site.ID.String(),
		"title":   "  iPhone review  ",
		"content": "Long form thoughts.",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	post := decode[domain.Post](t, rec)
	assert.Equal(t, "iPhone review", post.Title)
	assert.Equal(t, domain.PostStatusDraft, post.Status)

	path := "/api/posts/" + post.ID.String()
	rec = f.do(t, "PUT", path, map[string]string{"excerpt": "The short version."})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "The short version.", decode[domain.Post](t, rec).Excerpt)
	assert.Equal(t, "iPhone review", decode[domain.Post](t, rec).Title, "omitted fields are kept")

	rec = f.do(t, "POST", path+"/publish", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	published := decode[domain.Post](t, rec)
	assert.Equal(t, domain.PostStatusPublished, published.Status)
	assert.NotNil(t, published.PublishedAt)

	got := decode[domain.Post](t, f.do(t, "GET", path, nil))
	assert.Equal(t, domain.PostStatusPublished, got.Status)

	list := decode[[]domain.Post](t, f.do(t, "GET", "/api/posts?siteId="+site.ID.String(), nil))
	assert.Len(t, list, 1)
}

func TestCreatePost_Validation(t *testing.T) {
	f := newFixture(t)
	site := f.createSite(t, mkbhdURL)

	rec := f.do(t, "POST", "/api/posts", map[string]string{"siteId": "abc", "title": ""})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decode[JSONError](t, rec).Fields
	assert.Equal(t, "must be a valid ID", fields["siteId"])
	assert.Equal(t, "is required", fields["title"])

	rec = f.do(t, "POST", "/api/posts", map[string]string{
		"siteId": site.ID.String(), "title": "x", "sourceVideoUrl": "not a url",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "must be a valid URL", decode[JSONError](t, rec).Fields["sourceVideoUrl"])

	rec = f.do(t, "POST", "/api/posts", map[string]string{"siteId": uuid.NewString(), "title": "Orphan"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePost_MonthlyLimit(t *testing.T) {
	f := newFixture(t)
	site := f.createSite(t, mkbhdURL)
	require.NoError(t, f.store.SetUsageOverride(t.Context(), domain.Usage{PostsThisPeriod: 10}))

	rec := f.do(t, "POST", "/api/posts", map[string]string{"siteId": site.ID.String(), "title": "Eleventh"})
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	body := decode[JSONError](t, rec)
	assert.Contains(t, body.Error, "10 posts per month")
	require.NotNil(t, body.Upgrade)
	assert.Contains(t, body.Upgrade.URL, "reason=maxPostsPerMonth")

	f.upgrade(t)
	rec = f.do(t, "POST", "/api/posts", map[string]string{"siteId": site.ID.String(), "title": "Eleventh"})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestPosts_NotFound(t *testing.T) {
	f := newFixture(t)
	missing := "/api/posts/" + uuid.NewString()

	assert.Equal(t, http.StatusNotFound, f.do(t, "GET", missing, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, "PUT", missing, map[string]string{"title": "x"}).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, "POST", missing+"/publish", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, "GET", "/api/posts/nope", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, "GET", "/api/posts?siteId="+uuid.NewString(), nil).Code)

	rec := f.do(t, "GET", "/api/posts?siteId=nope", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "must be a valid ID", decode[JSONError](t, rec).Fields["siteId"])

	rec = f.do(t, "GET", "/api/posts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestDraftPost(t *testing.T) {
	f := newFixture(t)
	site := f.createSite(t, mkbhdURL)
	path := "/api/sites/" + site.ID.String() + "/drafts"

	rec := f.do(t, "POST", path, map[string]string{"topic": "Pixel vs iPhone"})
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	body := decode[JSONError](t, rec)
	require.NotNil(t, body.Upgrade)
	assert.Contains(t, body.Upgrade.URL, "reason=aiCopilot")

	f.upgrade(t)

	rec = f.do(t, "POST", path, map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "is required", decode[JSONError](t, rec).Fields["topic"])

	rec = f.do(t, "POST", path, map[string]string{"topic": "Pixel vs iPhone", "tone": "casual"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	post := decode[domain.Post](t, rec)
	assert.Equal(t, site.ID, post.SiteID)
	assert.NotEmpty(t, post.Title)
	assert.Equal(t, domain.PostStatusDraft, post.Status)
}
