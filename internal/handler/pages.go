// Package handler contains HTTP handlers for StreamToSite.
//
// This file implements the server-rendered pages.
//
// Routes handled:
//   - GET  /                 -> redirect to /dashboard
//   - GET  /dashboard        -> Dashboard
//   - POST /dashboard/sites  -> AddSite (form post, CSRF protected)
//   - GET  /pricing          -> Pricing
//   - POST /pricing/checkout -> PricingCheckout (form post, CSRF protected)
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/templ"

	"github.com/DukeRupert/streamtosite/internal/csrf"
	"github.com/DukeRupert/streamtosite/internal/domain"
	"github.com/DukeRupert/streamtosite/internal/gate"
	"github.com/DukeRupert/streamtosite/internal/plan"
	"github.com/DukeRupert/streamtosite/internal/service"
	"github.com/DukeRupert/streamtosite/internal/templ/pages/dashboard"
	"github.com/DukeRupert/streamtosite/internal/templ/pages/pricing"
	"github.com/DukeRupert/streamtosite/internal/templ/shared"
)

// SiteCreator creates a site from a channel URL.
type SiteCreator interface {
	Create(ctx context.Context, channelURL string) (*domain.Site, error)
}

// PageHandler renders HTML pages.
type PageHandler struct {
	gate       *gate.Gate
	plans      service.PlanService
	sites      DashboardSource
	creator    SiteCreator
	billingOn  bool
	isSecure   bool
	baseURL    string
	siteDomain string
	logger     *slog.Logger
}

// NewPageHandler creates a new PageHandler. siteDomain is the parent
// domain of generated site subdomains; isSecure marks cookies Secure.
func NewPageHandler(
	g *gate.Gate,
	plans service.PlanService,
	sites DashboardSource,
	creator SiteCreator,
	billingOn bool,
	isSecure bool,
	baseURL string,
	siteDomain string,
	logger *slog.Logger,
) *PageHandler {
	return &PageHandler{
		gate:       g,
		plans:      plans,
		sites:      sites,
		creator:    creator,
		billingOn:  billingOn,
		isSecure:   isSecure,
		baseURL:    baseURL,
		siteDomain: siteDomain,
		logger:     logger,
	}
}

// RegisterRoutes registers page routes on the provided mux.
func (h *PageHandler) RegisterRoutes(mux *http.ServeMux, limit func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	})
	mux.HandleFunc("GET /dashboard", h.Dashboard)
	mux.Handle("POST /dashboard/sites", limit(csrf.Protect(http.HandlerFunc(h.AddSite))))
	mux.HandleFunc("GET /pricing", h.Pricing)
	mux.Handle("POST /pricing/checkout", limit(csrf.Protect(http.HandlerFunc(h.PricingCheckout))))
}

// Dashboard renders the creator dashboard.
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	var flash *shared.Flash
	if upgraded := r.URL.Query().Get("upgraded"); upgraded != "" {
		flash = &shared.Flash{Type: "success", Message: "Thanks! Your plan will update as soon as payment is confirmed."}
		if current := h.plans.Current(r.Context()); current.ID == domain.PlanID(upgraded) {
			flash.Message = "You're now on " + current.Name + "."
		}
	}
	if r.URL.Query().Has("added") {
		flash = &shared.Flash{Type: "success", Message: "Site created. Add the verification code to your channel to publish it."}
	}
	h.renderDashboard(w, r, http.StatusOK, flash)
}

// AddSite handles the dashboard form that creates a site from a channel
// URL. A plan denial redirects to the pricing page.
func (h *PageHandler) AddSite(w http.ResponseWriter, r *http.Request) {
	channelURL := strings.TrimSpace(r.PostFormValue("channelUrl"))
	if channelURL == "" {
		h.renderDashboard(w, r, http.StatusBadRequest, &shared.Flash{Type: "error", Message: "Paste a channel URL to add a site."})
		return
	}

	_, err := h.creator.Create(r.Context(), channelURL)
	if err != nil {
		if d, ok := domain.ErrorDenial(err); ok {
			if up := upgradeFor(d); up != nil {
				http.Redirect(w, r, up.URL, http.StatusSeeOther)
				return
			}
		}
		code := domain.ErrorCode(err)
		status := ErrorCodeToHTTPStatus(code)
		if status >= http.StatusInternalServerError {
			h.renderError(w, r, err)
			return
		}
		h.renderDashboard(w, r, status, &shared.Flash{Type: "error", Message: domain.ErrorMessage(err)})
		return
	}
	http.Redirect(w, r, "/dashboard?added=1", http.StatusSeeOther)
}

func (h *PageHandler) renderDashboard(w http.ResponseWriter, r *http.Request, status int, flash *shared.Flash) {
	res, err := h.gate.Evaluate(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	token, err := csrf.EnsureToken(w, r, h.isSecure)
	if err != nil {
		h.renderError(w, r, domain.Internal(err, "page.dashboard", "Failed to issue form token"))
		return
	}

	data := dashboard.PageData{
		Entitlements:  res,
		VerifiedSites: h.sites.VerifiedSiteCount(),
		TotalViews:    h.sites.TotalViews(),
		TotalRevenue:  h.sites.TotalRevenue(),
		CSRFToken:     token,
		Flash:         flash,
	}
	for _, s := range h.sites.Sites(r.Context()) {
		data.Sites = append(data.Sites, dashboard.SiteRow{
			ID:               s.ID.String(),
			Name:             s.DisplayName(),
			Hostname:         s.Hostname(h.siteDomain),
			Theme:            string(s.Theme),
			IsVerified:       s.IsVerified,
			VerificationCode: s.VerificationCode,
			BrandingEnabled:  s.BrandingEnabled,
			SourceCount:      len(s.Sources),
			PostCount:        s.Stats.PostCount,
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	h.render(w, r, dashboard.Page(data))
}

// Pricing renders the plan comparison. ?plan= highlights a plan and
// ?reason= names the feature or limit that prompted the visit.
func (h *PageHandler) Pricing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	current := h.plans.Current(ctx).ID
	highlight := domain.PlanID(r.URL.Query().Get("plan"))

	token, err := csrf.EnsureToken(w, r, h.isSecure)
	if err != nil {
		h.renderError(w, r, domain.Internal(err, "page.pricing", "Failed to issue form token"))
		return
	}

	data := pricing.PageData{
		Reason:    r.URL.Query().Get("reason"),
		BillingOn: h.billingOn,
		CSRFToken: token,
	}
	for _, p := range h.plans.Catalog(ctx) {
		data.Plans = append(data.Plans, pricing.PlanCard{
			Plan:        p,
			IsCurrent:   p.ID == current,
			Highlighted: p.ID == highlight,
		})
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	h.render(w, r, pricing.Page(data))
}

// PricingCheckout handles the pricing page form and redirects to Stripe
// Checkout or back to the dashboard.
func (h *PageHandler) PricingCheckout(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	id, ok := plan.ParseID(r.PostFormValue("plan"))
	if !ok {
		http.Redirect(w, r, "/pricing", http.StatusSeeOther)
		return
	}

	result, err := h.plans.Upgrade(r.Context(), service.UpgradeRequest{
		Plan:       id,
		Period:     domain.BillingPeriod(r.PostFormValue("period")),
		SuccessURL: h.baseURL + "/dashboard?upgraded=" + string(id) + "&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  h.baseURL + "/pricing",
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	if result.CheckoutURL != "" {
		http.Redirect(w, r, result.CheckoutURL, http.StatusSeeOther)
		return
	}
	if result.PortalURL != "" {
		http.Redirect(w, r, result.PortalURL, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/dashboard?upgraded="+string(id), http.StatusSeeOther)
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	if err := c.Render(r.Context(), w); err != nil {
		h.logger.Error("failed to render page", "error", err, "path", r.URL.Path)
	}
}

func (h *PageHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	status := ErrorCodeToHTTPStatus(code)
	logError(h.logger, r, err, code, domain.ErrorOp(err), status)
	http.Error(w, domain.ErrorMessage(err), status)
}
