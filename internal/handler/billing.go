// Package handler contains HTTP handlers for StreamToSite.
//
// This file implements plan upgrade and subscription management.
//
// Routes handled:
//   - POST /api/billing/checkout -> Checkout
//   - POST /api/billing/portal   -> Portal
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/DukeRupert/streamtosite/internal/domain"
	"github.com/DukeRupert/streamtosite/internal/plan"
	"github.com/DukeRupert/streamtosite/internal/service"
)

// PortalResponse carries the billing portal link.
type PortalResponse struct {
	URL string `json:"url"`
}

// BillingHandler handles plan changes.
type BillingHandler struct {
	plans    service.PlanService
	baseURL  string
	validate *validator.Validate
	logger   *slog.Logger
}

// NewBillingHandler creates a new BillingHandler. baseURL is used to build
// the checkout return links.
func NewBillingHandler(plans service.PlanService, baseURL string, validate *validator.Validate, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{
		plans:    plans,
		baseURL:  baseURL,
		validate: validate,
		logger:   logger,
	}
}

// RegisterRoutes registers billing routes on the provided mux.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux, limit func(http.Handler) http.Handler) {
	mux.Handle("POST /api/billing/checkout", limit(http.HandlerFunc(h.Checkout)))
	mux.Handle("POST /api/billing/portal", limit(http.HandlerFunc(h.Portal)))
}

// Checkout starts a plan change. The response either carries a checkout URL
// to redirect to or reports that the plan was applied immediately.
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	const op = "handler.Checkout"

	var req CheckoutRequest
	if err := decodeJSON(w, r, h.validate, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	id, ok := plan.ParseID(req.Plan)
	if !ok {
		ErrorResponse(w, r, h.logger, domain.NewValidationError(op, "plan", "is not a known plan"))
		return
	}

	result, err := h.plans.Upgrade(r.Context(), service.UpgradeRequest{
		Plan:       id,
		Period:     domain.BillingPeriod(req.Period),
		SuccessURL: h.baseURL + "/dashboard?upgraded=" + string(id) + "&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  h.baseURL + "/pricing",
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.logger.Info("plan change requested", "plan", id, "applied", result.Applied)
	writeJSON(w, http.StatusOK, result)
}

// Portal returns a billing portal link for the current subscription.
func (h *BillingHandler) Portal(w http.ResponseWriter, r *http.Request) {
	url, err := h.plans.Portal(r.Context(), h.baseURL+"/dashboard")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, PortalResponse{URL: url})
}
