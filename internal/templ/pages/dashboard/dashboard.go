// Package dashboard renders the creator dashboard.
package dashboard

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/DukeRupert/streamtosite/internal/csrf"
	"github.com/DukeRupert/streamtosite/internal/domain"
	"github.com/DukeRupert/streamtosite/internal/gate"
	"github.com/DukeRupert/streamtosite/internal/templ/shared"
)

// Page is the full dashboard.
func Page(data PageData) templ.Component {
	return shared.Layout("Dashboard", data.Flash, content(data))
}

func content(data PageData) templ.Component {
	ent := data.Entitlements
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := shared.NewHTML(w)
		h.Rawf(`<header class="mb-6 flex items-center justify-between"><h1 class="text-2xl font-bold">Dashboard</h1>`+
			`<span class="rounded bg-slate-200 px-2 py-1 text-sm" data-plan="%s">%s</span></header>`,
			string(ent.PlanID), ent.PlanName)

		h.Raw(`<section class="mb-8 grid grid-cols-2 gap-4 md:grid-cols-4">`)
		stat(h, "Sites", fmt.Sprintf("%d", len(data.Sites)))
		stat(h, "Verified", fmt.Sprintf("%d", data.VerifiedSites))
		stat(h, "Views", fmt.Sprintf("%d", data.TotalViews))
		stat(h, "Revenue", formatCents(data.TotalRevenue))
		h.Raw(`</section>`)

		h.Raw(`<section class="mb-8"><h2 class="mb-3 text-lg font-semibold">Usage</h2>`)
		for _, key := range []domain.LimitKey{domain.LimitMaxSites, domain.LimitMaxPostsPerMonth} {
			usageBar(h, ent, key)
		}
		h.Raw(`</section>`)

		h.Raw(`<section class="mb-8"><div class="mb-3 flex items-center justify-between">`)
		h.Raw(`<h2 class="text-lg font-semibold">Sites</h2>`)
		h.Component(ctx, gate.RequireLimit(ent, domain.LimitMaxSites, addSiteForm(data.CSRFToken), nil))
		h.Raw(`</div>`)
		siteTable(h, data.Sites)
		h.Raw(`</section>`)

		h.Raw(`<section class="grid gap-4 md:grid-cols-2">`)
		panel(ctx, h, "Custom domain", gate.RequireFeature(ent, domain.FeatureCustomDomain,
			note("Point your own domain at any site from its settings."), nil))
		panel(ctx, h, "AI co-pilot", gate.RequireFeature(ent, domain.FeatureAICopilot,
			note("Draft a post from a topic or a video in one click."), nil))
		panel(ctx, h, "Auto-sync", gate.RequireFeature(ent, domain.FeatureAutoSync,
			note("New videos are imported automatically."), nil))
		panel(ctx, h, "Analytics", gate.RequireFeature(ent, domain.FeatureRealtimeAnalytics,
			note("Real-time analytics are on."),
			note("Analytics refresh daily on your plan.")))
		h.Raw(`</section>`)
		return h.Err()
	})
}

func stat(h *shared.HTML, label, value string) {
	h.Rawf(`<div class="rounded-lg border bg-white p-4"><p class="text-xs uppercase text-slate-500">%s</p>`+
		`<p class="text-xl font-semibold">%s</p></div>`, label, value)
}

func usageBar(h *shared.HTML, ent gate.Result, key domain.LimitKey) {
	current := ent.Usage.Value(key)
	if ent.Unlimited(key) {
		h.Rawf(`<div class="mb-2 text-sm" data-limit="%s">%s: %d of unlimited</div>`,
			string(key), key.Label(), current)
		return
	}
	pct := ent.UsagePercent[key]
	bar := "bg-sky-500"
	if pct >= 100 {
		bar = "bg-red-500"
	} else if pct >= 80 {
		bar = "bg-amber-500"
	}
	h.Rawf(`<div class="mb-2 text-sm" data-limit="%s">%s: %d of %d`+
		`<div class="mt-1 h-2 rounded bg-slate-200"><div class="h-2 rounded %s" data-percent="%d"></div></div></div>`,
		string(key), key.Label(), current, ent.Limits[key], bar, pct)
}

func addSiteForm(token string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := shared.NewHTML(w)
		h.Rawf(`<form class="flex gap-2" method="post" action="/dashboard/sites">`+
			`<input type="hidden" name="%s" value="%s">`, csrf.FormFieldName, token)
		h.Raw(`<input class="rounded border px-2 py-1 text-sm" type="url" name="channelUrl" required ` +
			`placeholder="https://www.youtube.com/@channel">`)
		h.Raw(`<button class="rounded bg-sky-600 px-3 py-2 text-sm text-white" type="submit">Add site</button></form>`)
		return h.Err()
	})
}

func siteTable(h *shared.HTML, sites []SiteRow) {
	if len(sites) == 0 {
		h.Raw(`<p class="text-sm text-slate-500">No sites yet. Paste a channel URL to build your first one.</p>`)
		return
	}
	h.Raw(`<table class="w-full text-left text-sm"><thead><tr><th>Site</th><th>Address</th><th>Theme</th>` +
		`<th>Sources</th><th>Posts</th><th>Status</th></tr></thead><tbody>`)
	for _, s := range sites {
		h.Rawf(`<tr data-site="%s"><td>%s</td><td>%s</td><td>%s</td><td>%d</td><td>%d</td><td>`,
			s.ID, s.Name, s.Hostname, s.Theme, s.SourceCount, s.PostCount)
		if s.IsVerified {
			h.Raw(`Verified`)
		} else {
			h.Rawf(`Add <code>%s</code> to your channel to verify`, s.VerificationCode)
		}
		if s.BrandingEnabled {
			h.Raw(` <span class="text-xs text-slate-500">(branded)</span>`)
		}
		h.Raw(`</td></tr>`)
	}
	h.Raw(`</tbody></table>`)
}

func panel(ctx context.Context, h *shared.HTML, title string, body templ.Component) {
	h.Rawf(`<div class="rounded-lg border bg-white p-4"><h3 class="mb-2 font-semibold">%s</h3>`, title)
	h.Component(ctx, body)
	h.Raw(`</div>`)
}

func note(text string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<p class="text-sm">%s</p>`, templ.EscapeString(text))
		return err
	})
}

func formatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign, c = "-", -c
	}
	return fmt.Sprintf("%s$%d.%02d", sign, c/100, c%100)
}
