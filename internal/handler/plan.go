// Package handler contains HTTP handlers for StreamToSite.
//
// This file implements the read-only plan and entitlement endpoints.
//
// Routes handled:
//   - GET /api/plans        -> ListPlans
//   - GET /api/entitlements -> Entitlements
//   - GET /api/usage        -> Usage
//   - GET /api/dashboard    -> Dashboard
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/streamtosite/internal/domain"
	"github.com/DukeRupert/streamtosite/internal/gate"
	"github.com/DukeRupert/streamtosite/internal/service"
)

// DashboardSource exposes the aggregate site figures shown on the dashboard.
type DashboardSource interface {
	Sites(ctx context.Context) []domain.Site
	VerifiedSiteCount() int
	TotalViews() int64
	TotalRevenue() int64
}

// PlansResponse lists the catalog and marks the active plan.
type PlansResponse struct {
	Current domain.PlanID `json:"current"`
	Plans   []domain.Plan `json:"plans"`
}

// UsageResponse reports consumption against the plan's limits.
type UsageResponse struct {
	Plan         domain.PlanID             `json:"plan"`
	Usage        domain.Usage              `json:"usage"`
	Limits       map[domain.LimitKey]int64 `json:"limits"`
	Remaining    map[domain.LimitKey]int64 `json:"remaining"`
	UsagePercent map[domain.LimitKey]int   `json:"usagePercent"`
}

// DashboardResponse is everything the dashboard needs in one call.
type DashboardResponse struct {
	Entitlements  gate.Result   `json:"entitlements"`
	Sites         []domain.Site `json:"sites"`
	VerifiedSites int           `json:"verifiedSites"`
	TotalViews    int64         `json:"totalViews"`
	TotalRevenue  int64         `json:"totalRevenue"`
}

// PlanHandler serves plan and entitlement information.
type PlanHandler struct {
	gate      *gate.Gate
	plans     service.PlanService
	dashboard DashboardSource
	logger    *slog.Logger
}

// NewPlanHandler creates a new PlanHandler.
func NewPlanHandler(g *gate.Gate, plans service.PlanService, dashboard DashboardSource, logger *slog.Logger) *PlanHandler {
	return &PlanHandler{
		gate:      g,
		plans:     plans,
		dashboard: dashboard,
		logger:    logger,
	}
}

// RegisterRoutes registers plan routes on the provided mux.
func (h *PlanHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/plans", h.ListPlans)
	mux.HandleFunc("GET /api/entitlements", h.Entitlements)
	mux.HandleFunc("GET /api/usage", h.Usage)
	mux.HandleFunc("GET /api/dashboard", h.Dashboard)
}

// ListPlans returns the plan catalog, cheapest first.
func (h *PlanHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	writeJSON(w, http.StatusOK, PlansResponse{
		Current: h.plans.Current(ctx).ID,
		Plans:   h.plans.Catalog(ctx),
	})
}

// Entitlements evaluates the gate. The optional feature query parameter
// takes a comma separated list; unknown features are reported as denied.
func (h *PlanHandler) Entitlements(w http.ResponseWriter, r *http.Request) {
	var features []domain.FeatureKey
	for _, f := range strings.Split(r.URL.Query().Get("feature"), ",") {
		if f = strings.TrimSpace(f); f != "" {
			features = append(features, domain.FeatureKey(f))
		}
	}

	res, err := h.gate.Evaluate(r.Context(), features...)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Usage reports the current billing period's consumption.
func (h *PlanHandler) Usage(w http.ResponseWriter, r *http.Request) {
	res, err := h.gate.Evaluate(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, UsageResponse{
		Plan:         res.PlanID,
		Usage:        res.Usage,
		Limits:       res.Limits,
		Remaining:    res.Remaining,
		UsagePercent: res.UsagePercent,
	})
}

// Dashboard returns entitlements together with the site aggregates.
func (h *PlanHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	res, err := h.gate.Evaluate(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	sites := h.dashboard.Sites(r.Context())
	if sites == nil {
		sites = []domain.Site{}
	}
	writeJSON(w, http.StatusOK, DashboardResponse{
		Entitlements:  res,
		Sites:         sites,
		VerifiedSites: h.dashboard.VerifiedSiteCount(),
		TotalViews:    h.dashboard.TotalViews(),
		TotalRevenue:  h.dashboard.TotalRevenue(),
	})
}
