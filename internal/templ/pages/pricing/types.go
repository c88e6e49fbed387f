package pricing

import (
	"github.com/DukeRupert/streamtosite/internal/domain"
	"github.com/DukeRupert/streamtosite/internal/templ/shared"
)

// PageData contains data for the pricing page
type PageData struct {
	Plans     []PlanCard
	Reason    string // what sent the user here, e.g. "aiCopilot"
	BillingOn bool   // false when plan changes apply without checkout
	CSRFToken string
	Flash     *shared.Flash
}

// PlanCard is one plan column
type PlanCard struct {
	Plan        domain.Plan
	IsCurrent   bool
	Highlighted bool // the plan named in ?plan=
}
