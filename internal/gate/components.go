package gate

import (
	"context"
	"fmt"
	"io"

	twmerge "github.com/Oudwins/tailwind-merge-go"
	"github.com/a-h/templ"

	"github.com/DukeRupert/streamtosite/internal/domain"
)

// RequireFeature renders children when the plan includes key and fallback
// otherwise. A nil fallback renders the default UpgradePrompt. The two
// branches are exclusive.
func RequireFeature(r Result, key domain.FeatureKey, children, fallback templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if r.Can(key) {
			return render(ctx, w, children)
		}
		if fallback != nil {
			return fallback.Render(ctx, w)
		}
		props := UpgradePromptProps{Title: fmt.Sprintf("Unlock %s", key.Label())}
		if up, ok := UpgradeForFeature(key); ok {
			props.Message = up.Reason
			props.Href = up.URL
			props.PlanName = up.Name
		}
		return UpgradePrompt(props).Render(ctx, w)
	})
}

// RequireLimit renders children while one more unit of key fits in the
// plan, fallback otherwise.
func RequireLimit(r Result, key domain.LimitKey, children, fallback templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if r.WithinLimit(key) {
			return render(ctx, w, children)
		}
		if fallback != nil {
			return fallback.Render(ctx, w)
		}
		current := r.Usage.Value(key)
		props := UpgradePromptProps{
			Title:   "You've reached your plan limit",
			Message: fmt.Sprintf("Your %s plan allows %d %s.", r.PlanName, r.Limits[key], key.Label()),
		}
		if up, ok := UpgradeForLimit(key, current); ok {
			props.Message += " " + up.Reason
			props.Href = up.URL
			props.PlanName = up.Name
		}
		return UpgradePrompt(props).Render(ctx, w)
	})
}

func render(ctx context.Context, w io.Writer, c templ.Component) error {
	if c == nil {
		return nil
	}
	return c.Render(ctx, w)
}

// UpgradePromptProps configures UpgradePrompt. Class is merged over the
// default classes, so callers can override spacing or colour.
type UpgradePromptProps struct {
	Title    string
	Message  string
	PlanName string
	Href     string
	Class    string
}

const upgradePromptClass = "rounded-lg border border-amber-300 bg-amber-50 p-4 text-sm text-amber-900"

// UpgradePrompt is the default presentation for locked content.
func UpgradePrompt(props UpgradePromptProps) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		class := twmerge.Merge(upgradePromptClass, props.Class)
		title := props.Title
		if title == "" {
			title = "Upgrade required"
		}
		if _, err := fmt.Fprintf(w, `<div class="%s" data-gate="upgrade"><p class="font-semibold">%s</p>`,
			templ.EscapeString(class), templ.EscapeString(title)); err != nil {
			return err
		}
		if props.Message != "" {
			if _, err := fmt.Fprintf(w, `<p class="mt-1">%s</p>`, templ.EscapeString(props.Message)); err != nil {
				return err
			}
		}
		if props.Href != "" {
			label := "Upgrade"
			if props.PlanName != "" {
				label = "Upgrade to " + props.PlanName
			}
			href := string(templ.URL(props.Href))
			if _, err := fmt.Fprintf(w, `<a class="mt-3 inline-block font-medium underline" href="%s">%s</a>`,
				templ.EscapeString(href), templ.EscapeString(label)); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</div>")
		return err
	})
}
