package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DukeRupert/streamtosite/internal/storage"
)

// Only blobs under this prefix are served; application state shares the
// backend and must stay private.
const publicBlobPrefix = "sites/"

// FileHandler serves stored blobs and the health check.
type FileHandler struct {
	storage storage.Storage
	logger  *slog.Logger
}

// NewFileHandler creates a new FileHandler.
func NewFileHandler(s storage.Storage, logger *slog.Logger) *FileHandler {
	return &FileHandler{storage: s, logger: logger}
}

// RegisterRoutes registers file routes on the provided mux.
func (h *FileHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /files/{key...}", h.Serve)
	mux.HandleFunc("GET /health", h.Health)
}

// Serve streams the blob at the key.
func (h *FileHandler) Serve(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if !strings.HasPrefix(key, publicBlobPrefix) || strings.Contains(key, "..") {
		http.NotFound(w, r)
		return
	}

	rc, info, err := h.storage.Get(r.Context(), key)
	if err != nil {
		if storage.IsNotFound(err) {
			http.NotFound(w, r)
			return
		}
		h.logger.Error("failed to read blob", "error", err, "key", key)
		http.Error(w, "Failed to read file", http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	if info.ETag != "" {
		w.Header().Set("ETag", info.ETag)
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("failed to stream blob", "error", err, "key", key)
	}
}

// Health reports whether the storage backend answers.
func (h *FileHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if _, err := h.storage.Exists(ctx, "health/probe"); err != nil {
		h.logger.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
