package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/DukeRupert/streamtosite/internal/domain"
	"github.com/DukeRupert/streamtosite/internal/plan"
	"github.com/DukeRupert/streamtosite/internal/worker"
)

// SiteSource lists the sites to sync and the plan they run under.
type SiteSource interface {
	Plan(ctx context.Context) domain.PlanID
	Sites(ctx context.Context) []domain.Site
}

// Scheduler periodically enqueues a sync_sources job for every site while
// the active plan includes auto-sync.
type Scheduler struct {
	sites    SiteSource
	queue    worker.Enqueuer
	interval time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a scheduler that ticks every interval.
func NewScheduler(sites SiteSource, queue worker.Enqueuer, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		sites:    sites,
		queue:    queue,
		interval: interval,
		logger:   logger,
	}
}

// Run blocks, ticking until ctx is done. A non-positive interval disables
// the scheduler.
func (s *Scheduler) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("Source sync scheduler disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Source sync scheduler started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Source sync scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick enqueues one sync job per site and returns how many were enqueued.
func (s *Scheduler) Tick(ctx context.Context) int {
	id := s.sites.Plan(ctx)
	if !plan.HasFeatureAccess(id, domain.FeatureAutoSync) {
		s.logger.Debug("Skipping source sync, plan has no auto-sync", "plan", id)
		return 0
	}

	enqueued := 0
	for _, site := range s.sites.Sites(ctx) {
		if _, err := worker.EnqueueSyncSources(ctx, s.queue, site.ID); err != nil {
			s.logger.Warn("Failed to enqueue source sync", "site_id", site.ID, "error", err)
			continue
		}
		enqueued++
	}
	if enqueued > 0 {
		s.logger.Info("Enqueued source syncs", "count", enqueued)
	}
	return enqueued
}
