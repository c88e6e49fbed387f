package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v79"

	"github.com/DukeRupert/streamtosite/internal/domain"
)

func TestPriceMapping(t *testing.T) {
	s := newStripeService("whsec_test", PriceConfig{
		CreatorProMonthlyPriceID: "price_month",
		CreatorProYearlyPriceID:  "price_year",
	})

	price, ok := s.PriceID(domain.PlanCreatorPro, domain.BillingPeriodYear)
	assert.True(t, ok)
	assert.Equal(t, "price_year", price)

	_, ok = s.PriceID(domain.PlanStarter, domain.BillingPeriodMonth)
	assert.False(t, ok, "the free plan has no price")

	id, ok := s.PlanForPriceID("price_month")
	assert.True(t, ok)
	assert.Equal(t, domain.PlanCreatorPro, id)

	_, ok = s.PlanForPriceID("price_unknown")
	assert.False(t, ok)
}

func TestPriceMapping_SkipsUnconfigured(t *testing.T) {
	s := newStripeService("", PriceConfig{CreatorProMonthlyPriceID: "price_month"})

	_, ok := s.PriceID(domain.PlanCreatorPro, domain.BillingPeriodYear)
	assert.False(t, ok)
	_, ok = s.PlanForPriceID("")
	assert.False(t, ok)
}

func TestSubscriptionPlan(t *testing.T) {
	s := newStripeService("", PriceConfig{CreatorProMonthlyPriceID: "price_month"})

	byPrice := &stripe.Subscription{Items: &stripe.SubscriptionItemList{
		Data: []*stripe.SubscriptionItem{{Price: &stripe.Price{ID: "price_month"}}},
	}}
	id, ok := SubscriptionPlan(s, byPrice)
	assert.True(t, ok)
	assert.Equal(t, domain.PlanCreatorPro, id)

	byMetadata := &stripe.Subscription{Metadata: map[string]string{MetadataPlanKey: "creatorPro"}}
	id, ok = SubscriptionPlan(s, byMetadata)
	assert.True(t, ok)
	assert.Equal(t, domain.PlanCreatorPro, id)

	_, ok = SubscriptionPlan(s, &stripe.Subscription{})
	assert.False(t, ok)
	_, ok = SubscriptionPlan(s, nil)
	assert.False(t, ok)
}
