// Package handler contains HTTP handlers for StreamToSite.
//
// This file implements the Stripe webhook handler for processing billing events.
//
// Route:
//   - POST /webhooks/stripe -> HandleStripeWebhook
//
// Stripe calls this route directly. Requests are authenticated by the
// webhook signature.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v79"

	"github.com/DukeRupert/streamtosite/internal/billing"
	"github.com/DukeRupert/streamtosite/internal/domain"
	"github.com/DukeRupert/streamtosite/internal/service"
)

const maxWebhookBody = 65536

// WebhookHandler handles incoming webhook events from Stripe.
type WebhookHandler struct {
	billing billing.Service
	plans   service.PlanService
	logger  *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
// billingService may be nil when Stripe is not configured.
func NewWebhookHandler(billingService billing.Service, plans service.PlanService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		billing: billingService,
		plans:   plans,
		logger:  logger,
	}
}

// RegisterRoutes registers webhook routes on the provided mux.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook processes incoming Stripe webhook events. Events that
// fail for a transient reason answer 500 so Stripe retries them; everything
// else is acknowledged.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		h.logger.Warn("stripe webhook received but billing is not configured")
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	event, err := h.billing.VerifyWebhookSignature(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.logger.Info("stripe webhook received", "type", event.Type, "id", event.ID)

	// Stripe does not wait for slow handlers; finish the update even if
	// the connection drops.
	ctx := context.WithoutCancel(r.Context())

	switch event.Type {
	case "checkout.session.completed":
		err = h.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.created", "customer.subscription.updated":
		err = h.handleSubscriptionChanged(ctx, event)
	case "customer.subscription.deleted":
		err = h.handleSubscriptionDeleted(ctx, event)
	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
	}

	if err != nil {
		code := domain.ErrorCode(err)
		if code == domain.EINTERNAL {
			h.logger.Error("webhook processing failed", "error", err, "type", event.Type, "id", event.ID)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		h.logger.Warn("webhook event rejected", "error", err, "code", code, "type", event.Type, "id", event.ID)
	}
	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		h.logger.Error("failed to parse checkout session", "error", err)
		return nil
	}
	if session.Customer == nil {
		h.logger.Warn("checkout session missing customer", "session_id", session.ID)
		return nil
	}

	id := domain.PlanID(session.Metadata[billing.MetadataPlanKey])
	if !id.IsValid() {
		var ok bool
		if id, ok = billing.SubscriptionPlan(h.billing, session.Subscription); !ok {
			h.logger.Info("checkout session has no plan, waiting for subscription event",
				"session_id", session.ID, "customer_id", session.Customer.ID)
			return nil
		}
	}

	if err := h.plans.ApplySubscription(ctx, session.Customer.ID, id); err != nil {
		return err
	}
	h.logger.Info("checkout completed", "plan", id, "customer_id", session.Customer.ID)
	return nil
}

func (h *WebhookHandler) handleSubscriptionChanged(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("failed to parse subscription event", "error", err, "type", event.Type)
		return nil
	}
	if sub.Customer == nil {
		h.logger.Warn("subscription event missing customer", "subscription_id", sub.ID)
		return nil
	}

	switch sub.Status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusIncompleteExpired:
		h.logger.Info("subscription lapsed", "subscription_id", sub.ID, "status", sub.Status)
		return h.plans.Downgrade(ctx, sub.Customer.ID)
	default:
		// past_due and incomplete keep the current plan until Stripe
		// settles the subscription.
		h.logger.Info("subscription status unchanged", "subscription_id", sub.ID, "status", sub.Status)
		return nil
	}

	id, ok := billing.SubscriptionPlan(h.billing, &sub)
	if !ok {
		h.logger.Warn("subscription has no recognised plan", "subscription_id", sub.ID)
		return nil
	}
	if err := h.plans.ApplySubscription(ctx, sub.Customer.ID, id); err != nil {
		return err
	}
	h.logger.Info("subscription event processed",
		"subscription_id", sub.ID, "status", sub.Status, "plan", id)
	return nil
}

func (h *WebhookHandler) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("failed to parse subscription deleted event", "error", err)
		return nil
	}
	if sub.Customer == nil {
		h.logger.Warn("subscription deleted event missing customer", "subscription_id", sub.ID)
		return nil
	}

	if err := h.plans.Downgrade(ctx, sub.Customer.ID); err != nil {
		return err
	}
	h.logger.Info("subscription deleted", "subscription_id", sub.ID)
	return nil
}
