// Package service contains the business logic layer.
//
// This file implements the quota service for checking and enforcing the
// usage limits of the active plan.
package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/DukeRupert/streamtosite/internal/domain"
	"github.com/DukeRupert/streamtosite/internal/metrics"
	"github.com/DukeRupert/streamtosite/internal/plan"
)

// PlanSource resolves the active plan and its owner.
type PlanSource interface {
	Plan(ctx context.Context) domain.PlanID
	User() domain.User
}

// UsageTracker reports consumption for the current billing period.
type UsageTracker interface {
	GetCurrentUsage(ctx context.Context, userID uuid.UUID) (domain.Usage, error)
}

// =============================================================================
// Interface Definition
// =============================================================================

// QuotaService defines operations for checking quota limits.
type QuotaService interface {
	// GetUsage returns the current period's usage for the workspace owner.
	GetUsage(ctx context.Context) (domain.Usage, error)

	// CheckPostQuota returns nil if another post fits in this period, or a
	// LimitExceeded error if not.
	CheckPostQuota(ctx context.Context) error

	// CheckSiteQuota returns nil if another site fits in the plan.
	CheckSiteQuota(ctx context.Context) error
}

// =============================================================================
// Implementation
// =============================================================================

type quotaService struct {
	plans  PlanSource
	usage  UsageTracker
	logger *slog.Logger
}

// NewQuotaService creates a new QuotaService.
func NewQuotaService(plans PlanSource, usage UsageTracker, logger *slog.Logger) QuotaService {
	return &quotaService{
		plans:  plans,
		usage:  usage,
		logger: logger,
	}
}

func (s *quotaService) GetUsage(ctx context.Context) (domain.Usage, error) {
	const op = "quota.get_usage"

	u, err := s.usage.GetCurrentUsage(ctx, s.plans.User().ID)
	if err != nil {
		return domain.Usage{}, domain.Internal(err, op, "failed to compute usage")
	}
	return u, nil
}

func (s *quotaService) CheckPostQuota(ctx context.Context) error {
	return s.check(ctx, "quota.check_posts", domain.LimitMaxPostsPerMonth)
}

func (s *quotaService) CheckSiteQuota(ctx context.Context) error {
	return s.check(ctx, "quota.check_sites", domain.LimitMaxSites)
}

func (s *quotaService) check(ctx context.Context, op string, key domain.LimitKey) error {
	id := s.plans.Plan(ctx)

	// Unlimited plans skip the usage scan entirely.
	if plan.GetLimit(id, key) == domain.Unlimited {
		return nil
	}

	u, err := s.GetUsage(ctx)
	if err != nil {
		return err
	}

	used := u.Value(key)
	if !plan.IsWithinLimit(id, key, used) {
		limit := plan.GetLimit(id, key)
		s.logger.Info("quota exceeded",
			"plan", id,
			"limit_key", key,
			"used", used,
			"limit", limit,
		)
		metrics.LimitDenials.WithLabelValues(string(key)).Inc()
		return domain.LimitExceeded(op, key, used, limit)
	}
	return nil
}
