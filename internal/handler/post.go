// Package handler contains HTTP handlers for StreamToSite.
//
// This file implements post CRUD, publishing and AI drafts.
//
// Routes handled:
//   - GET  /api/posts               -> List (optional ?siteId=)
//   - POST /api/posts               -> Create
//   - GET  /api/posts/{id}          -> Get
//   - PUT  /api/posts/{id}          -> Update
//   - POST /api/posts/{id}/publish  -> Publish
//   - POST /api/sites/{id}/drafts   -> Draft (requires aiCopilot)
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/DukeRupert/streamtosite/internal/ai"
	"github.com/DukeRupert/streamtosite/internal/domain"
	"github.com/DukeRupert/streamtosite/internal/gate"
	"github.com/DukeRupert/streamtosite/internal/service"
)

// PostHandler handles post-related HTTP requests.
type PostHandler struct {
	posts    service.PostService
	gate     *gate.Gate
	validate *validator.Validate
	logger   *slog.Logger
}

// NewPostHandler creates a new PostHandler.
func NewPostHandler(posts service.PostService, g *gate.Gate, validate *validator.Validate, logger *slog.Logger) *PostHandler {
	return &PostHandler{
		posts:    posts,
		gate:     g,
		validate: validate,
		logger:   logger,
	}
}

// RegisterRoutes registers post routes on the provided mux.
func (h *PostHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/posts", h.List)
	mux.Handle("POST /api/posts",
		h.gate.RequireLimit(domain.LimitMaxPostsPerMonth)(http.HandlerFunc(h.Create)))
	mux.HandleFunc("GET /api/posts/{id}", h.Get)
	mux.HandleFunc("PUT /api/posts/{id}", h.Update)
	mux.HandleFunc("POST /api/posts/{id}/publish", h.Publish)
	mux.Handle("POST /api/sites/{id}/drafts",
		h.gate.RequireFeature(domain.FeatureAICopilot)(http.HandlerFunc(h.Draft)))
}

// List returns posts, optionally filtered to one site.
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handler.ListPosts"

	siteID := uuid.Nil
	if raw := r.URL.Query().Get("siteId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			ErrorResponse(w, r, h.logger, domain.NewValidationError(op, "siteId", "must be a valid ID"))
			return
		}
		siteID = id
	}

	posts, err := h.posts.List(r.Context(), siteID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if posts == nil {
		posts = []domain.Post{}
	}
	writeJSON(w, http.StatusOK, posts)
}

// Create adds a draft post.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handler.CreatePost"

	var req CreatePostRequest
	if err := decodeJSON(w, r, h.validate, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	post, err := h.posts.Create(r.Context(), domain.CreatePostParams{
		SiteID:         uuid.MustParse(req.SiteID),
		Title:          req.Title,
		Excerpt:        req.Excerpt,
		Content:        req.Content,
		SourceVideoURL: req.SourceVideoURL,
	})
	h.respond(w, r, http.StatusCreated, post, err)
}

// Get returns a single post.
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}
	post, err := h.posts.Get(r.Context(), id)
	h.respond(w, r, http.StatusOK, post, err)
}

// Update edits a post's text.
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handler.UpdatePost"

	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}
	var req UpdatePostRequest
	if err := decodeJSON(w, r, h.validate, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	post, err := h.posts.Update(r.Context(), id, domain.UpdatePostParams{
		Title:   req.Title,
		Excerpt: req.Excerpt,
		Content: req.Content,
	})
	h.respond(w, r, http.StatusOK, post, err)
}

// Publish makes a draft live.
func (h *PostHandler) Publish(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}
	post, err := h.posts.Publish(r.Context(), id)
	h.respond(w, r, http.StatusOK, post, err)
}

// Draft has the co-pilot write a post for the site.
func (h *PostHandler) Draft(w http.ResponseWriter, r *http.Request) {
	const op = "handler.DraftPost"

	siteID, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}
	var req DraftPostRequest
	if err := decodeJSON(w, r, h.validate, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	post, err := h.posts.Draft(r.Context(), service.DraftRequest{
		SiteID:   siteID,
		Topic:    req.Topic,
		VideoURL: req.VideoURL,
		Tone:     ai.Tone(req.Tone),
	})
	h.respond(w, r, http.StatusCreated, post, err)
}

func (h *PostHandler) respond(w http.ResponseWriter, r *http.Request, status int, post *domain.Post, err error) {
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, status, post)
}

// pathID parses the {id} path value. Malformed ids are reported as not
// found.
func pathID(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		NotFoundResponse(w, r, logger)
		return uuid.Nil, false
	}
	return id, true
}
