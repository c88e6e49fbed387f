package service

import (
	"context"
	"log/slog"

	"github.com/DukeRupert/streamtosite/internal/billing"
	"github.com/DukeRupert/streamtosite/internal/domain"
	"github.com/DukeRupert/streamtosite/internal/email"
	"github.com/DukeRupert/streamtosite/internal/metrics"
	"github.com/DukeRupert/streamtosite/internal/plan"
)

// PlanStore is the part of the state store the plan service needs.
type PlanStore interface {
	Plan(ctx context.Context) domain.PlanID
	User() domain.User
	SetPlan(ctx context.Context, id domain.PlanID) error
	SetStripeCustomerID(ctx context.Context, customerID string) error
}

// UpgradeRequest asks to move to a plan.
type UpgradeRequest struct {
	Plan       domain.PlanID
	Period     domain.BillingPeriod // month or year; defaults to month
	SuccessURL string
	CancelURL  string
}

// UpgradeResult reports how a plan change proceeds. CheckoutURL is set when
// the plan changes once payment completes. PortalURL is set when a paid
// subscription must be cancelled in the billing portal first; the webhook
// then downgrades. Otherwise Applied is true and the plan has changed.
type UpgradeResult struct {
	Plan        domain.PlanID `json:"plan"`
	CheckoutURL string        `json:"checkoutUrl,omitempty"`
	PortalURL   string        `json:"portalUrl,omitempty"`
	Applied     bool          `json:"applied"`
}

// PlanService defines plan catalog and subscription operations.
type PlanService interface {
	// Catalog lists every plan, cheapest first.
	Catalog(ctx context.Context) []domain.Plan

	// Current returns the active plan.
	Current(ctx context.Context) domain.Plan

	// Upgrade starts a change to a paid plan. Without billing configured the
	// change is applied immediately.
	Upgrade(ctx context.Context, req UpgradeRequest) (*UpgradeResult, error)

	// Portal returns a billing portal URL for managing the subscription.
	Portal(ctx context.Context, returnURL string) (string, error)

	// ApplySubscription activates the plan paid for by a billing customer.
	ApplySubscription(ctx context.Context, customerID string, id domain.PlanID) error

	// Downgrade returns the workspace to the free plan.
	Downgrade(ctx context.Context, customerID string) error
}

// planService implements PlanService.
type planService struct {
	store    PlanStore
	billing  billing.Service
	notifier email.Notifier
	logger   *slog.Logger
}

// NewPlanService creates a new PlanService. billingService may be nil when
// Stripe is not configured, notifier when SMTP is not.
func NewPlanService(st PlanStore, billingService billing.Service, notifier email.Notifier, logger *slog.Logger) PlanService {
	return &planService{
		store:    st,
		billing:  billingService,
		notifier: notifier,
		logger:   logger,
	}
}

func (s *planService) Catalog(ctx context.Context) []domain.Plan {
	return plan.All()
}

func (s *planService) Current(ctx context.Context) domain.Plan {
	return plan.Get(s.store.Plan(ctx))
}

func (s *planService) Upgrade(ctx context.Context, req UpgradeRequest) (*UpgradeResult, error) {
	const op = "PlanService.Upgrade"

	if !plan.Exists(req.Plan) {
		return nil, domain.Invalid(op, "Unknown plan.")
	}
	if req.Period == "" {
		req.Period = domain.BillingPeriodMonth
	}
	if req.Period != domain.BillingPeriodMonth && req.Period != domain.BillingPeriodYear {
		return nil, domain.Invalid(op, "Billing period must be month or year.")
	}

	target := plan.Get(req.Plan)
	user := s.store.User()

	// Dropping to the free plan while subscribed would leave Stripe billing
	// and the next subscription event would restore the paid plan.
	if target.IsFree() && s.billing != nil && user.StripeCustomerID != "" && s.store.Plan(ctx) != req.Plan {
		url, err := s.Portal(ctx, req.CancelURL)
		if err != nil {
			return nil, err
		}
		s.logger.Info("downgrade sent to billing portal", "plan", req.Plan)
		return &UpgradeResult{Plan: req.Plan, PortalURL: url}, nil
	}

	if target.IsFree() || s.billing == nil {
		if err := s.setPlan(ctx, op, req.Plan); err != nil {
			return nil, err
		}
		return &UpgradeResult{Plan: req.Plan, Applied: true}, nil
	}

	priceID, ok := s.billing.PriceID(req.Plan, req.Period)
	if !ok {
		return nil, domain.Invalid(op, "That plan is not available for the selected billing period.")
	}

	url, err := s.billing.CreateCheckoutSession(ctx, billing.CheckoutParams{
		CustomerID:    user.StripeCustomerID,
		CustomerEmail: user.Email,
		PriceID:       priceID,
		Plan:          req.Plan,
		ReferenceID:   user.ID.String(),
		SuccessURL:    req.SuccessURL,
		CancelURL:     req.CancelURL,
	})
	if err != nil {
		s.logger.Error("failed to create checkout session", "error", err, "op", op, "plan", req.Plan)
		return nil, domain.Internal(err, op, "Failed to start checkout")
	}

	s.logger.Info("checkout started", "plan", req.Plan, "period", req.Period)
	return &UpgradeResult{Plan: req.Plan, CheckoutURL: url}, nil
}

func (s *planService) Portal(ctx context.Context, returnURL string) (string, error) {
	const op = "PlanService.Portal"

	if s.billing == nil {
		return "", domain.Errorf(domain.ENOTIMPL, op, "Billing is not configured.")
	}
	customerID := s.store.User().StripeCustomerID
	if customerID == "" {
		return "", domain.Invalid(op, "There is no subscription to manage yet.")
	}
	url, err := s.billing.CreatePortalSession(ctx, customerID, returnURL)
	if err != nil {
		s.logger.Error("failed to create portal session", "error", err, "op", op)
		return "", domain.Internal(err, op, "Failed to open billing portal")
	}
	return url, nil
}

func (s *planService) ApplySubscription(ctx context.Context, customerID string, id domain.PlanID) error {
	const op = "PlanService.ApplySubscription"

	if !plan.Exists(id) {
		return domain.Invalid(op, "Unknown plan.")
	}
	if err := s.claimCustomer(ctx, op, customerID); err != nil {
		return err
	}
	return s.setPlan(ctx, op, id)
}

func (s *planService) Downgrade(ctx context.Context, customerID string) error {
	const op = "PlanService.Downgrade"

	if err := s.claimCustomer(ctx, op, customerID); err != nil {
		return err
	}
	return s.setPlan(ctx, op, plan.Default)
}

// claimCustomer ties a billing customer to the workspace owner. Events for
// a different customer are rejected.
func (s *planService) claimCustomer(ctx context.Context, op, customerID string) error {
	if customerID == "" {
		return nil
	}
	current := s.store.User().StripeCustomerID
	if current != "" && current != customerID {
		return domain.Forbidden(op, "Billing customer does not match this workspace.")
	}
	if current == "" {
		if err := s.store.SetStripeCustomerID(ctx, customerID); err != nil {
			return domain.Internal(err, op, "Failed to record billing customer")
		}
	}
	return nil
}

func (s *planService) setPlan(ctx context.Context, op string, id domain.PlanID) error {
	previous := s.store.Plan(ctx)
	if previous == id {
		return nil
	}
	if err := s.store.SetPlan(ctx, id); err != nil {
		if domain.ErrorCode(err) == domain.EINVALID {
			return err
		}
		s.logger.Error("failed to change plan", "error", err, "op", op, "plan", id)
		return domain.Internal(err, op, "Failed to change plan")
	}
	metrics.PlanChanges.WithLabelValues(string(id)).Inc()
	s.logger.Info("plan changed", "from", previous, "to", id)
	s.notify(ctx, previous, id)
	return nil
}

// notify emails the owner about a plan change. Delivery failures are logged
// and never undo the change.
func (s *planService) notify(ctx context.Context, previous, current domain.PlanID) {
	if s.notifier == nil {
		return
	}
	user := s.store.User()
	if user.Email == "" {
		return
	}
	change := email.PlanChange{Previous: plan.Get(previous), Current: plan.Get(current)}
	if err := s.notifier.SendPlanChangedEmail(ctx, user.Email, user.Name, change); err != nil {
		s.logger.Warn("failed to send plan change email", "error", err, "plan", current)
	}
}
