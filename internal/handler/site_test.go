package handler

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/streamtosite/internal/domain"
	"github.com/DukeRupert/streamtosite/internal/worker"
)

func TestDetectPlatform(t *testing.T) {
	f := newFixture(t)

	resp := decode[DetectPlatformResponse](t, f.do(t, "POST", "/api/platform/detect", map[string]string{"url": mkbhdURL}))
	assert.Equal(t, domain.PlatformYouTube, resp.Platform)
	assert.True(t, resp.Supported)
	assert.Equal(t, "mkbhd", resp.Value)

	resp = decode[DetectPlatformResponse](t, f.do(t, "POST", "/api/platform/detect", map[string]string{"url": "https://example.com"}))
	assert.False(t, resp.Supported)
}

func TestCreateSite_LimitReturnsUpgrade(t *testing.T) {
	f := newFixture(t)

	site := f.createSite(t, mkbhdURL)
	assert.Equal(t, "marques-brownlee", site.Subdomain)
	assert.True(t, site.BrandingEnabled)

	rec := f.do(t, "POST", "/api/sites", map[string]string{"channelUrl": veritasiumURL})
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	body := decode[JSONError](t, rec)
	assert.Equal(t, domain.EPAYMENT, body.Code)
	require.NotNil(t, body.Upgrade)
	assert.Equal(t, domain.PlanCreatorPro, body.Upgrade.Plan)
	assert.Contains(t, body.Upgrade.URL, "reason=maxSites")

	fetch, _ := f.channels.Calls()
	assert.Equal(t, 1, fetch, "denied requests never reach the provider")

	f.upgrade(t)
	f.createSite(t, veritasiumURL)
	list := decode[[]domain.Site](t, f.do(t, "GET", "/api/sites", nil))
	assert.Len(t, list, 2)
}

func TestCreateSite_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		body  string
		field string
		code  string
	}{
		{"empty body", ``, "channelUrl", domain.EINVALID},
		{"missing url", `{}`, "channelUrl", domain.EINVALID},
		{"unknown field", `{"channelUrl":"x","extra":1}`, "", domain.EINVALID},
		{"malformed json", `{"channelUrl":`, "", domain.EINVALID},
		{"unsupported platform", `{"channelUrl":"https://example.com/@someone"}`, "", domain.EINVALID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, "POST", "/api/sites", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			body := decode[JSONError](t, rec)
			assert.Equal(t, tt.code, body.Code)
			if tt.field != "" {
				assert.Equal(t, "is required", body.Fields[tt.field])
			}
		})
	}
	assert.Zero(t, f.store.SiteCount())
}

func TestGetSite(t *testing.T) {
	f := newFixture(t)
	site := f.createSite(t, mkbhdURL)

	got := decode[domain.Site](t, f.do(t, "GET", "/api/sites/"+site.ID.String(), nil))
	assert.Equal(t, site.ID, got.ID)

	assert.Equal(t, http.StatusNotFound, f.do(t, "GET", "/api/sites/not-a-uuid", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, "GET", "/api/sites/"+uuid.NewString(), nil).Code)
}

func TestDeleteSite_FreesSlot(t *testing.T) {
	f := newFixture(t)
	site := f.createSite(t, mkbhdURL)

	rec := f.do(t, "DELETE", "/api/sites/"+site.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, "DELETE", "/api/sites/"+site.ID.String(), nil).Code, "idempotent")

	f.createSite(t, veritasiumURL)
}

func TestAddSource(t *testing.T) {
	f := newFixture(t)
	site := f.createSite(t, mkbhdURL)

	rec := f.do(t, "POST", "/api/sites/"+site.ID.String()+"/sources", map[string]string{"channelUrl": veritasiumURL})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[domain.Site](t, rec)
	assert.Len(t, got.Sources, 2)
	assert.Equal(t, 1, f.store.SiteCount(), "sources do not count as sites")
}

func TestVerifySite(t *testing.T) {
	f := newFixture(t)
	site := f.createSite(t, mkbhdURL)
	path := "/api/sites/" + site.ID.String() + "/verify"

	rec := f.do(t, "POST", path, map[string]string{"method": "description"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[JSONError](t, rec).Error, site.VerificationCode)

	f.channels.PublishCode(site.PrimarySource().Channel.ID, site.VerificationCode)
	rec = f.do(t, "POST", path, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[domain.Site](t, rec).IsVerified)

	rec = f.do(t, "POST", path, map[string]string{"method": "carrier-pigeon"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[JSONError](t, rec).Fields["method"], "must be one of")
}

func TestUpdateTheme(t *testing.T) {
	f := newFixture(t)
	site := f.createSite(t, mkbhdURL)
	path := "/api/sites/" + site.ID.String() + "/theme"

	rec := f.do(t, "PUT", path, map[string]string{"theme": "magazine"})
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	body := decode[JSONError](t, rec)
	require.NotNil(t, body.Upgrade)
	assert.Contains(t, body.Upgrade.URL, "reason=premiumThemes")

	rec = f.do(t, "PUT", path, map[string]string{"theme": "neon"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.upgrade(t)
	rec = f.do(t, "PUT", path, map[string]string{"theme": "magazine"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.ThemeMagazine, decode[domain.Site](t, rec).Theme)
}

func TestCustomDomain(t *testing.T) {
	f := newFixture(t)
	site := f.createSite(t, mkbhdURL)
	path := "/api/sites/" + site.ID.String() + "/domain"

	rec := f.do(t, "PUT", path, map[string]string{"domain": "blog.mkbhd.com"})
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	body := decode[JSONError](t, rec)
	require.NotNil(t, body.Upgrade)
	assert.Equal(t, "/pricing?plan=creatorPro&reason=customDomain", body.Upgrade.URL)

	f.upgrade(t)
	rec = f.do(t, "PUT", path, map[string]string{"domain": "not a domain"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[JSONError](t, rec).Fields["domain"], "domain name")

	rec = f.do(t, "PUT", path, map[string]string{"domain": "Blog.MKBHD.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "blog.mkbhd.com", decode[domain.Site](t, rec).CustomDomain)

	// Clearing stays available after a downgrade.
	require.NoError(t, f.store.SetPlan(t.Context(), domain.PlanStarter))
	rec = f.do(t, "DELETE", path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[domain.Site](t, rec).CustomDomain)
}

func TestSync_InlineWithoutQueue(t *testing.T) {
	f := newFixture(t)
	site := f.createSite(t, mkbhdURL)
	path := "/api/sites/" + site.ID.String() + "/sync"

	rec := f.do(t, "POST", path, nil)
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Contains(t, decode[JSONError](t, rec).Upgrade.URL, "reason=autoSync")

	f.upgrade(t)
	rec = f.do(t, "POST", path, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[domain.Site](t, rec)
	assert.NotNil(t, got.PrimarySource().SyncedAt)

	assert.Equal(t, http.StatusNotFound, f.do(t, "POST", "/api/sites/"+uuid.NewString()+"/sync", nil).Code)
}

func TestSync_Queued(t *testing.T) {
	q := &fakeQueue{}
	f := newFixtureWith(t, fixtureConfig{queue: q})
	f.upgrade(t)
	site := f.createSite(t, mkbhdURL)
	path := "/api/sites/" + site.ID.String() + "/sync"

	rec := f.do(t, "POST", path, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	resp := decode[SyncQueuedResponse](t, rec)
	assert.Equal(t, site.ID.String(), resp.SiteID)

	jobs := q.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, worker.JobTypeSyncSources, jobs[0].Type)
	assert.Equal(t, jobs[0].ID.String(), resp.JobID)
	assert.Contains(t, string(jobs[0].Payload), site.ID.String())

	q.err = worker.ErrQueueFull
	rec = f.do(t, "POST", path, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	q.err = errors.New("closed")
	rec = f.do(t, "POST", path, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// =============================================================================
// Logo upload
// =============================================================================

func logoRequest(t *testing.T, path, field, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{B: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestUploadLogo(t *testing.T) {
	f := newFixture(t)
	site := f.createSite(t, mkbhdURL)
	path := "/api/sites/" + site.ID.String() + "/logo"

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, logoRequest(t, path, "logo", "logo.png", testPNG(t, 800, 400)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[domain.Site](t, rec)
	require.True(t, strings.HasPrefix(got.LogoURL, testBaseURL+"/files/sites/"+site.ID.String()), got.LogoURL)

	// The stored logo is served back through /files.
	rec = f.do(t, "GET", strings.TrimPrefix(got.LogoURL, testBaseURL), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	cfg, err := png.DecodeConfig(rec.Body)
	require.NoError(t, err)
	assert.LessOrEqual(t, cfg.Width, 512)
}

func TestUploadLogo_Rejections(t *testing.T) {
	f := newFixture(t)
	site := f.createSite(t, mkbhdURL)
	path := "/api/sites/" + site.ID.String() + "/logo"

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, logoRequest(t, path, "image", "logo.png", testPNG(t, 10, 10)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "is required", decode[JSONError](t, rec).Fields["logo"])

	rec = httptest.NewRecorder()
	f.mux.ServeHTTP(rec, logoRequest(t, path, "logo", "notes.txt", []byte("just some text")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	f.mux.ServeHTTP(rec, logoRequest(t, "/api/sites/"+uuid.NewString()+"/logo", "logo", "logo.png", testPNG(t, 10, 10)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
