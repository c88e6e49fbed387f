package dashboard

import (
	"github.com/DukeRupert/streamtosite/internal/gate"
	"github.com/DukeRupert/streamtosite/internal/templ/shared"
)

// PageData contains data for the dashboard page
type PageData struct {
	Entitlements  gate.Result
	Sites         []SiteRow
	VerifiedSites int
	TotalViews    int64
	TotalRevenue  int64 // cents
	CSRFToken     string
	Flash         *shared.Flash
}

// SiteRow is one site in the dashboard table
type SiteRow struct {
	ID               string
	Name             string
	Hostname         string
	Theme            string
	IsVerified       bool
	VerificationCode string
	BrandingEnabled  bool
	SourceCount      int
	PostCount        int64
}
