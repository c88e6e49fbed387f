// Package jobs contains the background job handlers and the scheduler that
// feeds them.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/DukeRupert/streamtosite/internal/domain"
	"github.com/DukeRupert/streamtosite/internal/worker"
)

// SourceSyncer refreshes the channels behind a site. service.SiteService
// implements it.
type SourceSyncer interface {
	SyncSources(ctx context.Context, id uuid.UUID) (*domain.Site, error)
}

// SyncSourcesHandler processes jobs that refresh a site's channel metadata.
type SyncSourcesHandler struct {
	sites  SourceSyncer
	logger *slog.Logger
}

// NewSyncSourcesHandler creates a new handler for source sync jobs.
func NewSyncSourcesHandler(sites SourceSyncer, logger *slog.Logger) *SyncSourcesHandler {
	return &SyncSourcesHandler{
		sites:  sites,
		logger: logger,
	}
}

// Type returns the job type identifier.
func (h *SyncSourcesHandler) Type() string {
	return worker.JobTypeSyncSources
}

// Handle executes the sync job. A site that is gone, or a plan that no
// longer includes auto-sync, ends the job without retries.
func (h *SyncSourcesHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.SyncSourcesPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.Permanentf("invalid payload: %w", err)
	}
	if p.SiteID == uuid.Nil {
		return worker.Permanentf("invalid payload: missing site_id")
	}

	h.logger.Info("Syncing sources", "site_id", p.SiteID)

	site, err := h.sites.SyncSources(ctx, p.SiteID)
	if err != nil {
		switch domain.ErrorCode(err) {
		case domain.EPAYMENT, domain.ENOTFOUND, domain.EINVALID:
			return worker.Permanentf("sync site %s: %w", p.SiteID, err)
		}
		return fmt.Errorf("sync site %s: %w", p.SiteID, err)
	}

	h.logger.Info("Sources synced", "site_id", site.ID, "sources", len(site.Sources))
	return nil
}
