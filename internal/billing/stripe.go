// Package billing provides Stripe billing integration for plan upgrades.
package billing

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	billingportalsession "github.com/stripe/stripe-go/v79/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/subscription"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/DukeRupert/streamtosite/internal/domain"
)

// MetadataPlanKey tags checkout sessions and subscriptions with the plan
// they were created for.
const MetadataPlanKey = "plan"

// Service defines the interface for billing operations.
type Service interface {
	// CreateCustomer creates a new Stripe customer for the given email.
	CreateCustomer(ctx context.Context, email, name string) (string, error)

	// CreateCheckoutSession creates a Stripe Checkout session for a plan
	// price. Returns the checkout URL to redirect the user to.
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error)

	// CreatePortalSession creates a Stripe Customer Portal session.
	// Returns the portal URL to redirect the user to.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)

	// CancelSubscription sets a subscription to cancel at period end.
	CancelSubscription(ctx context.Context, subscriptionID string) error

	// VerifyWebhookSignature verifies the Stripe webhook signature and returns the event.
	VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error)

	// PriceID returns the Stripe price for a plan and billing period.
	PriceID(id domain.PlanID, period domain.BillingPeriod) (string, bool)

	// PlanForPriceID returns the plan a Stripe price belongs to.
	PlanForPriceID(priceID string) (domain.PlanID, bool)
}

// CheckoutParams describes a subscription checkout.
type CheckoutParams struct {
	CustomerID    string
	CustomerEmail string // used when there is no customer yet
	PriceID       string
	Plan          domain.PlanID
	ReferenceID   string // our user ID, echoed back on the session
	SuccessURL    string
	CancelURL     string
}

// PriceConfig holds the Stripe price IDs for each paid plan.
type PriceConfig struct {
	CreatorProMonthlyPriceID string
	CreatorProYearlyPriceID  string
}

type priceKey struct {
	plan   domain.PlanID
	period domain.BillingPeriod
}

// stripeService is the concrete implementation of Service.
type stripeService struct {
	webhookSecret string
	prices        map[priceKey]string
	priceToPlan   map[string]domain.PlanID
}

// NewStripeService creates a new Stripe billing service.
//
// The secretKey is used to authenticate Stripe API calls.
// The webhookSecret is used to verify incoming webhook signatures.
// The prices configure which Stripe price IDs map to which plans.
func NewStripeService(secretKey, webhookSecret string, prices PriceConfig) Service {
	stripe.Key = secretKey
	return newStripeService(webhookSecret, prices)
}

func newStripeService(webhookSecret string, prices PriceConfig) *stripeService {
	s := &stripeService{
		webhookSecret: webhookSecret,
		prices:        make(map[priceKey]string),
		priceToPlan:   make(map[string]domain.PlanID),
	}
	s.addPrice(domain.PlanCreatorPro, domain.BillingPeriodMonth, prices.CreatorProMonthlyPriceID)
	s.addPrice(domain.PlanCreatorPro, domain.BillingPeriodYear, prices.CreatorProYearlyPriceID)
	return s
}

func (s *stripeService) addPrice(id domain.PlanID, period domain.BillingPeriod, priceID string) {
	if priceID == "" {
		return
	}
	s.prices[priceKey{id, period}] = priceID
	s.priceToPlan[priceID] = id
}

func (s *stripeService) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	c, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create customer: %w", err)
	}
	return c.ID, nil
}

func (s *stripeService) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{MetadataPlanKey: string(p.Plan)},
		},
	}
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	} else if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}
	if p.ReferenceID != "" {
		params.ClientReferenceID = stripe.String(p.ReferenceID)
	}
	params.AddMetadata(MetadataPlanKey, string(p.Plan))
	params.Context = ctx

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create checkout session: %w", err)
	}
	return sess.URL, nil
}

func (s *stripeService) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	sess, err := billingportalsession.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create portal session: %w", err)
	}
	return sess.URL, nil
}

func (s *stripeService) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	params.Context = ctx
	_, err := subscription.Update(subscriptionID, params)
	if err != nil {
		return fmt.Errorf("stripe cancel subscription: %w", err)
	}
	return nil
}

func (s *stripeService) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("stripe webhook signature verification failed: %w", err)
	}
	return event, nil
}

func (s *stripeService) PriceID(id domain.PlanID, period domain.BillingPeriod) (string, bool) {
	price, ok := s.prices[priceKey{id, period}]
	return price, ok
}

func (s *stripeService) PlanForPriceID(priceID string) (domain.PlanID, bool) {
	id, ok := s.priceToPlan[priceID]
	return id, ok
}

// SubscriptionPlan resolves the plan a subscription grants, preferring the
// price on its first item and falling back to the plan metadata.
func SubscriptionPlan(svc Service, sub *stripe.Subscription) (domain.PlanID, bool) {
	if sub == nil {
		return "", false
	}
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item.Price == nil {
				continue
			}
			if id, ok := svc.PlanForPriceID(item.Price.ID); ok {
				return id, true
			}
		}
	}
	if id := domain.PlanID(sub.Metadata[MetadataPlanKey]); id.IsValid() {
		return id, true
	}
	return "", false
}
