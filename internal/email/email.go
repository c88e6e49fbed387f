// Package email sends transactional email to the workspace owner.
//
// Only plan changes are announced today. The SMTP implementation works with
// Mailhog in development and any authenticated SMTP relay in production.
package email

import (
	"context"

	"github.com/DukeRupert/streamtosite/internal/domain"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Notifier sends transactional emails.
type Notifier interface {
	// SendPlanChangedEmail tells the owner which plan is now active and
	// which features were gained or lost.
	SendPlanChangedEmail(ctx context.Context, to, name string, change PlanChange) error
}

// =============================================================================
// Data Types
// =============================================================================

// Email represents a single email message.
type Email struct {
	To       string // Recipient email address
	Subject  string // Email subject line
	HTMLBody string // HTML content of the email
	TextBody string // Plain text fallback content
}

// PlanChange describes a move between two plans.
type PlanChange struct {
	Previous domain.Plan
	Current  domain.Plan
}

// IsUpgrade reports whether the new plan costs more than the old one.
func (c PlanChange) IsUpgrade() bool {
	return c.Current.Price > c.Previous.Price
}

// Gained lists the labels of features the new plan enables and the old did not.
func (c PlanChange) Gained() []string {
	return diffFeatures(c.Current.Features, c.Previous.Features)
}

// Lost lists the labels of features the old plan enabled and the new does not.
func (c PlanChange) Lost() []string {
	return diffFeatures(c.Previous.Features, c.Current.Features)
}

func diffFeatures(have, other domain.Features) []string {
	var out []string
	for _, key := range domain.FeatureKeys {
		if have.Enabled(key) && !other.Enabled(key) {
			out = append(out, key.Label())
		}
	}
	return out
}

// =============================================================================
// Configuration Types
// =============================================================================

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string // SMTP server hostname (e.g., "localhost" for Mailhog)
	Port     int    // SMTP server port (e.g., 1025 for Mailhog)
	Username string // SMTP authentication username (empty for Mailhog)
	Password string // SMTP authentication password (empty for Mailhog)
	From     string // Default sender email address
	FromName string // Default sender display name
}

const (
	DefaultFromEmail = "noreply@streamtosite.app"
	DefaultFromName  = "StreamToSite"
)
