// Package usage derives plan consumption from the store's collections.
package usage

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/streamtosite/internal/domain"
)

// Source is the slice of the store the tracker reads.
type Source interface {
	User() domain.User
	Snapshot() domain.State
	UsageOverride(ctx context.Context) (domain.Usage, bool)
}

// Tracker computes usage for the current billing period.
type Tracker struct {
	src    Source
	now    func() time.Time
	logger *slog.Logger
}

// NewTracker creates a tracker. now defaults to time.Now.
func NewTracker(src Source, now func() time.Time, logger *slog.Logger) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{src: src, now: now, logger: logger}
}

// GetCurrentUsage counts the user's sites and the posts created on them in
// the current calendar month (UTC). A stored usage override can raise
// either counter but never lower it.
func (t *Tracker) GetCurrentUsage(ctx context.Context, userID uuid.UUID) (domain.Usage, error) {
	if err := ctx.Err(); err != nil {
		return domain.Usage{}, err
	}

	start, end := domain.BillingPeriodBounds(t.now())
	st := t.src.Snapshot()

	u := domain.Usage{PeriodStart: start, PeriodEnd: end}
	if userID != uuid.Nil && st.User.ID != userID {
		return u, nil
	}

	u.SitesCreated = int64(len(st.Sites))
	for _, p := range st.Posts {
		// Posts of deleted sites still count; they were created this period.
		if !p.CreatedAt.Before(start) && p.CreatedAt.Before(end) {
			u.PostsThisPeriod++
		}
	}

	if o, ok := t.src.UsageOverride(ctx); ok {
		if o.PostsThisPeriod > u.PostsThisPeriod {
			u.PostsThisPeriod = o.PostsThisPeriod
		}
		if o.SitesCreated > u.SitesCreated {
			u.SitesCreated = o.SitesCreated
		}
		t.logger.Debug("merged usage override", "posts", o.PostsThisPeriod, "sites", o.SitesCreated)
	}
	return u, nil
}
