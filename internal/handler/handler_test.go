package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	aimock "github.com/DukeRupert/streamtosite/internal/ai/mock"
	"github.com/DukeRupert/streamtosite/internal/billing"
	channelmock "github.com/DukeRupert/streamtosite/internal/channel/mock"
	"github.com/DukeRupert/streamtosite/internal/domain"
	"github.com/DukeRupert/streamtosite/internal/gate"
	"github.com/DukeRupert/streamtosite/internal/service"
	"github.com/DukeRupert/streamtosite/internal/storage"
	"github.com/DukeRupert/streamtosite/internal/store"
	"github.com/DukeRupert/streamtosite/internal/usage"
	"github.com/DukeRupert/streamtosite/internal/worker"
)

const (
	mkbhdURL      = "https://www.youtube.com/@mkbhd"
	veritasiumURL = "https://www.youtube.com/@veritasium"
	testBaseURL   = "http://localhost:8080"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func passthrough(h http.Handler) http.Handler { return h }

// fixtureConfig swaps optional collaborators into the fixture.
type fixtureConfig struct {
	queue   worker.Enqueuer
	billing billing.Service
}

type fixture struct {
	mux      *http.ServeMux
	store    *store.Store
	blobs    *storage.MemoryStorage
	channels *channelmock.Provider
	plans    service.PlanService
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, fixtureConfig{})
}

func newFixtureWith(t *testing.T, cfg fixtureConfig) *fixture {
	t.Helper()
	logger := discardLogger()
	now := func() time.Time { return time.Date(2026, 4, 10, 9, 30, 0, 0, time.UTC) }

	blobs := storage.NewMemoryStorage(testBaseURL + "/files")
	st := store.New(blobs, store.Options{Now: now}, logger)
	require.NoError(t, st.Load(context.Background()))

	channels := channelmock.New(logger, 0)
	tracker := usage.NewTracker(st, now, logger)
	quota := service.NewQuotaService(st, tracker, logger)
	sites := service.NewSiteService(st, quota, channels, blobs, service.NewImagingProcessor(), logger)
	posts := service.NewPostService(st, quota, aimock.New(logger), logger)
	plans := service.NewPlanService(st, cfg.billing, nil, logger)
	g := gate.New(st, tracker, logger)
	validate := NewValidator()

	mux := http.NewServeMux()
	NewPlanHandler(g, plans, st, logger).RegisterRoutes(mux)
	NewSiteHandler(sites, g, cfg.queue, validate, logger).RegisterRoutes(mux, passthrough)
	NewPostHandler(posts, g, validate, logger).RegisterRoutes(mux)
	NewBillingHandler(plans, testBaseURL, validate, logger).RegisterRoutes(mux, passthrough)
	NewWebhookHandler(cfg.billing, plans, logger).RegisterRoutes(mux)
	NewPageHandler(g, plans, st, sites, cfg.billing != nil, false, testBaseURL, "streamtosite.app", logger).RegisterRoutes(mux, passthrough)
	NewFileHandler(blobs, logger).RegisterRoutes(mux)

	return &fixture{
		mux:      mux,
		store:    st,
		blobs:    blobs,
		channels: channels,
		plans:    plans,
	}
}

// do sends a request through the mux. A string body is sent as is; any
// other non-nil body is encoded as JSON.
func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, r)
	if r != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) upgrade(t *testing.T) {
	t.Helper()
	require.NoError(t, f.store.SetPlan(context.Background(), domain.PlanCreatorPro))
}

// createSite imports url through the API and returns the new site.
func (f *fixture) createSite(t *testing.T, url string) domain.Site {
	t.Helper()
	rec := f.do(t, "POST", "/api/sites", map[string]string{"channelUrl": url})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[domain.Site](t, rec)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// fakeQueue records enqueued jobs.
type fakeQueue struct {
	mu   sync.Mutex
	jobs []worker.Job
	err  error
}

func (q *fakeQueue) Enqueue(ctx context.Context, jobType string, payload any, opts ...worker.EnqueueOption) (worker.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return worker.Job{}, q.err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return worker.Job{}, err
	}
	job := worker.Job{ID: uuid.New(), Type: jobType, Payload: data, EnqueuedAt: time.Now()}
	q.jobs = append(q.jobs, job)
	return job, nil
}

func (q *fakeQueue) Jobs() []worker.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]worker.Job(nil), q.jobs...)
}
