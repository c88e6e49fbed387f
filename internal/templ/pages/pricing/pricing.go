// Package pricing renders the plan comparison page.
package pricing

import (
	"context"
	"fmt"
	"io"

	twmerge "github.com/Oudwins/tailwind-merge-go"
	"github.com/a-h/templ"

	"github.com/DukeRupert/streamtosite/internal/csrf"
	"github.com/DukeRupert/streamtosite/internal/domain"
	"github.com/DukeRupert/streamtosite/internal/templ/shared"
)

const cardClass = "flex flex-col rounded-xl border bg-white p-6"

// Page is the full pricing page.
func Page(data PageData) templ.Component {
	return shared.Layout("Pricing", data.Flash, content(data))
}

func content(data PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := shared.NewHTML(w)
		h.Raw(`<h1 class="mb-2 text-2xl font-bold">Plans</h1>`)
		if reason := reasonLabel(data.Reason); reason != "" {
			h.Rawf(`<p class="mb-6 text-sm text-slate-600" data-reason="%s">%s needs an upgrade.</p>`, data.Reason, reason)
		}
		h.Raw(`<div class="grid gap-6 md:grid-cols-2">`)
		for _, card := range data.Plans {
			planCard(h, card, data)
		}
		h.Raw(`</div>`)
		return h.Err()
	})
}

func planCard(h *shared.HTML, card PlanCard, data PageData) {
	p := card.Plan
	class := cardClass
	if card.Highlighted || p.Popular {
		class = twmerge.Merge(class, "border-2 border-sky-500")
	}
	h.Rawf(`<div class="%s" data-plan-card="%s">`, class, string(p.ID))
	h.Rawf(`<h2 class="text-xl font-semibold">%s</h2><p class="text-sm text-slate-600">%s</p>`, p.Name, p.Description)
	h.Rawf(`<p class="my-4 text-3xl font-bold">%s</p>`, price(p))
	h.Raw(`<ul class="mb-6 flex-1 space-y-1 text-sm">`)
	for _, line := range p.Highlights {
		h.Rawf(`<li>%s</li>`, line)
	}
	h.Raw(`</ul>`)

	switch {
	case card.IsCurrent:
		h.Raw(`<p class="text-center text-sm font-medium" data-current="true">Your current plan</p>`)
	case p.IsFree():
		openForm(h, p.ID, data.CSRFToken)
		h.Rawf(`<button class="w-full rounded border px-4 py-2" type="submit">Switch to %s</button></form>`, p.Name)
	default:
		label := "Upgrade"
		if !data.BillingOn {
			label = "Upgrade now"
		}
		openForm(h, p.ID, data.CSRFToken)
		if p.YearlyPrice > 0 {
			h.Rawf(`<select class="mb-2 w-full rounded border p-2" name="period">`+
				`<option value="month">Monthly</option><option value="year">Yearly (%s)</option></select>`,
				formatPrice(p.YearlyPrice, p.Currency))
		}
		h.Rawf(`<button class="w-full rounded bg-sky-600 px-4 py-2 text-white" type="submit">%s</button></form>`, label)
	}
	h.Raw(`</div>`)
}

func openForm(h *shared.HTML, id domain.PlanID, token string) {
	h.Rawf(`<form method="post" action="/pricing/checkout"><input type="hidden" name="plan" value="%s">`+
		`<input type="hidden" name="%s" value="%s">`, string(id), csrf.FormFieldName, token)
}

func price(p domain.Plan) string {
	if p.IsFree() {
		return "Free"
	}
	return formatPrice(p.Price, p.Currency) + "/" + string(p.Period)
}

func formatPrice(cents int64, currency string) string {
	symbol := "$"
	if currency != "" && currency != "usd" {
		symbol = currency + " "
	}
	if cents%100 == 0 {
		return fmt.Sprintf("%s%d", symbol, cents/100)
	}
	return fmt.Sprintf("%s%d.%02d", symbol, cents/100, cents%100)
}

func reasonLabel(reason string) string {
	if k := domain.FeatureKey(reason); k.IsValid() {
		return k.Label()
	}
	if k := domain.LimitKey(reason); k.IsValid() {
		return "More " + k.Label()
	}
	return ""
}
