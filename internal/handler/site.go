// Package handler contains HTTP handlers for StreamToSite.
//
// This file implements the site API: import, sources, verification,
// settings, logos and source sync.
package handler

import (
	"bufio"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/DukeRupert/streamtosite/internal/channel"
	"github.com/DukeRupert/streamtosite/internal/domain"
	"github.com/DukeRupert/streamtosite/internal/gate"
	"github.com/DukeRupert/streamtosite/internal/service"
	"github.com/DukeRupert/streamtosite/internal/storage"
	"github.com/DukeRupert/streamtosite/internal/worker"
)

// Multipart requests above this size are refused before the plan's upload
// limit is checked.
const maxLogoRequest = 64 << 20

// =============================================================================
// Response Types
// =============================================================================

// DetectPlatformResponse reports which platform a URL belongs to.
type DetectPlatformResponse struct {
	Platform  domain.Platform `json:"platform"`
	Supported bool            `json:"supported"`
	Kind      string          `json:"kind,omitempty"`
	Value     string          `json:"value,omitempty"`
}

// SyncQueuedResponse acknowledges a queued sync.
type SyncQueuedResponse struct {
	JobID  string `json:"jobId"`
	SiteID string `json:"siteId"`
}

// =============================================================================
// Handler Configuration
// =============================================================================

// SiteHandler handles site-related HTTP requests.
type SiteHandler struct {
	sites    service.SiteService
	gate     *gate.Gate
	queue    worker.Enqueuer
	validate *validator.Validate
	logger   *slog.Logger
}

// NewSiteHandler creates a new SiteHandler. queue may be nil, in which case
// sync requests run inline.
func NewSiteHandler(
	sites service.SiteService,
	g *gate.Gate,
	queue worker.Enqueuer,
	validate *validator.Validate,
	logger *slog.Logger,
) *SiteHandler {
	return &SiteHandler{
		sites:    sites,
		gate:     g,
		queue:    queue,
		validate: validate,
		logger:   logger,
	}
}

// =============================================================================
// Route Registration
// =============================================================================

// RegisterRoutes registers site routes on the provided mux. limit wraps the
// mutating routes.
func (h *SiteHandler) RegisterRoutes(mux *http.ServeMux, limit func(http.Handler) http.Handler) {
	mux.HandleFunc("POST /api/platform/detect", h.DetectPlatform)
	mux.HandleFunc("GET /api/sites", h.List)
	mux.HandleFunc("GET /api/sites/{id}", h.Get)

	mux.Handle("POST /api/sites",
		limit(h.gate.RequireLimit(domain.LimitMaxSites)(http.HandlerFunc(h.Create))))
	mux.Handle("DELETE /api/sites/{id}", limit(http.HandlerFunc(h.Delete)))
	mux.Handle("POST /api/sites/{id}/sources", limit(http.HandlerFunc(h.AddSource)))
	mux.Handle("POST /api/sites/{id}/verify", limit(http.HandlerFunc(h.Verify)))
	mux.Handle("PUT /api/sites/{id}/theme", limit(http.HandlerFunc(h.UpdateTheme)))
	mux.Handle("PUT /api/sites/{id}/domain",
		limit(h.gate.RequireFeature(domain.FeatureCustomDomain)(http.HandlerFunc(h.SetDomain))))
	mux.Handle("DELETE /api/sites/{id}/domain", limit(http.HandlerFunc(h.ClearDomain)))
	mux.Handle("POST /api/sites/{id}/sync",
		limit(h.gate.RequireFeature(domain.FeatureAutoSync)(http.HandlerFunc(h.Sync))))
	mux.Handle("POST /api/sites/{id}/logo", limit(http.HandlerFunc(h.UploadLogo)))
}

// =============================================================================
// Handlers
// =============================================================================

// DetectPlatform classifies a channel URL without fetching it.
func (h *SiteHandler) DetectPlatform(w http.ResponseWriter, r *http.Request) {
	const op = "handler.DetectPlatform"

	var req DetectPlatformRequest
	if err := decodeJSON(w, r, h.validate, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	p := channel.DetectPlatform(req.URL)
	resp := DetectPlatformResponse{Platform: p, Supported: p.IsSupported()}
	if ref, ok := channel.ParseRef(req.URL); ok {
		resp.Kind = string(ref.Kind)
		resp.Value = ref.Value
	}
	writeJSON(w, http.StatusOK, resp)
}

// List returns every site.
func (h *SiteHandler) List(w http.ResponseWriter, r *http.Request) {
	sites, err := h.sites.List(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if sites == nil {
		sites = []domain.Site{}
	}
	writeJSON(w, http.StatusOK, sites)
}

// Get returns a single site.
func (h *SiteHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}
	site, err := h.sites.Get(r.Context(), id)
	h.respond(w, r, http.StatusOK, site, err)
}

// Create imports a channel as a new site.
func (h *SiteHandler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handler.CreateSite"

	var req CreateSiteRequest
	if err := decodeJSON(w, r, h.validate, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	site, err := h.sites.Create(r.Context(), req.ChannelURL)
	h.respond(w, r, http.StatusCreated, site, err)
}

// Delete removes a site. Deleting a missing site succeeds.
func (h *SiteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.sites.Delete(r.Context(), id); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddSource attaches another channel to a site.
func (h *SiteHandler) AddSource(w http.ResponseWriter, r *http.Request) {
	const op = "handler.AddSource"

	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}
	var req AddSourceRequest
	if err := decodeJSON(w, r, h.validate, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	site, err := h.sites.AddSource(r.Context(), id, req.ChannelURL)
	h.respond(w, r, http.StatusOK, site, err)
}

// Verify checks the site's verification code on its primary channel.
func (h *SiteHandler) Verify(w http.ResponseWriter, r *http.Request) {
	const op = "handler.VerifySite"

	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}
	var req VerifySiteRequest
	if err := decodeJSON(w, r, h.validate, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	site, err := h.sites.Verify(r.Context(), id, domain.VerificationMethod(req.Method))
	h.respond(w, r, http.StatusOK, site, err)
}

// UpdateTheme switches the site theme.
func (h *SiteHandler) UpdateTheme(w http.ResponseWriter, r *http.Request) {
	const op = "handler.UpdateTheme"

	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}
	var req UpdateThemeRequest
	if err := decodeJSON(w, r, h.validate, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	site, err := h.sites.UpdateTheme(r.Context(), id, domain.ThemeID(req.Theme))
	h.respond(w, r, http.StatusOK, site, err)
}

// SetDomain points a custom hostname at the site.
func (h *SiteHandler) SetDomain(w http.ResponseWriter, r *http.Request) {
	const op = "handler.SetDomain"

	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}
	var req SetDomainRequest
	if err := decodeJSON(w, r, h.validate, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	site, err := h.sites.SetCustomDomain(r.Context(), id, req.Domain)
	h.respond(w, r, http.StatusOK, site, err)
}

// ClearDomain removes the custom domain. It is not gated so a downgraded
// user can still detach a domain.
func (h *SiteHandler) ClearDomain(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}
	site, err := h.sites.SetCustomDomain(r.Context(), id, "")
	h.respond(w, r, http.StatusOK, site, err)
}

// Sync queues a metadata refresh for the site's sources.
func (h *SiteHandler) Sync(w http.ResponseWriter, r *http.Request) {
	const op = "handler.SyncSite"

	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}
	ctx := r.Context()

	if _, err := h.sites.Get(ctx, id); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if h.queue == nil {
		site, err := h.sites.SyncSources(ctx, id)
		h.respond(w, r, http.StatusOK, site, err)
		return
	}

	job, err := worker.EnqueueSyncSources(ctx, h.queue, id)
	if err != nil {
		if errors.Is(err, worker.ErrQueueFull) {
			ErrorResponse(w, r, h.logger, domain.Wrap(err, domain.ERATELIMIT, op, "Too many syncs are waiting. Try again shortly."))
			return
		}
		ErrorResponse(w, r, h.logger, domain.Internal(err, op, "Failed to queue sync"))
		return
	}
	writeJSON(w, http.StatusAccepted, SyncQueuedResponse{JobID: job.ID.String(), SiteID: id.String()})
}

// UploadLogo stores the "logo" file of a multipart form as the site logo.
func (h *SiteHandler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	const op = "handler.UploadLogo"

	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxLogoRequest)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ErrorResponse(w, r, h.logger, domain.Errorf(domain.ETOOLARGE, op, "Upload is too large."))
			return
		}
		ErrorResponse(w, r, h.logger, domain.Wrap(err, domain.EINVALID, op, "Failed to parse upload."))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("logo")
	if err != nil {
		ErrorResponse(w, r, h.logger, &domain.ValidationError{Op: op, Fields: map[string]string{"logo": "is required"}})
		return
	}
	defer file.Close()

	body := bufio.NewReader(file)
	head, _ := body.Peek(512)
	contentType := header.Header.Get("Content-Type")
	if contentType == "application/octet-stream" {
		contentType = ""
	}
	contentType = storage.DetectContentType(contentType, header.Filename, head)

	site, err := h.sites.UploadLogo(r.Context(), id, body, contentType)
	h.respond(w, r, http.StatusOK, site, err)
}

// =============================================================================
// Helpers
// =============================================================================

func (h *SiteHandler) respond(w http.ResponseWriter, r *http.Request, status int, site *domain.Site, err error) {
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, status, site)
}
