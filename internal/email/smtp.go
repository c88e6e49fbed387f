package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"strings"
	"time"
)

// =============================================================================
// SMTP Email Service Implementation
// =============================================================================

// sendMailFunc matches smtp.SendMail.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPEmailService sends emails via SMTP.
type SMTPEmailService struct {
	config    SMTPConfig
	baseURL   string
	templates *template.Template
	sendMail  sendMailFunc
	logger    *slog.Logger
}

// NewSMTPEmailService creates a new SMTP-based email service. baseURL is the
// public address of the app, used for links back to the dashboard.
func NewSMTPEmailService(config SMTPConfig, baseURL string, logger *slog.Logger) (*SMTPEmailService, error) {
	if config.From == "" {
		config.From = DefaultFromEmail
	}
	if config.FromName == "" {
		config.FromName = DefaultFromName
	}

	templates, err := template.New("email").Funcs(emailTemplateFuncs()).Parse(planChangedTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	return &SMTPEmailService{
		config:    config,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		templates: templates,
		sendMail:  smtp.SendMail,
		logger:    logger,
	}, nil
}

// =============================================================================
// Notifier Implementation
// =============================================================================

// SendPlanChangedEmail announces a plan change to the owner.
func (s *SMTPEmailService) SendPlanChangedEmail(ctx context.Context, to, name string, change PlanChange) error {
	if name == "" {
		name = "there"
	}
	dashboardURL := s.baseURL + "/dashboard"
	pricingURL := s.baseURL + "/pricing"

	data := map[string]any{
		"Name":         name,
		"Plan":         change.Current.Name,
		"Upgrade":      change.IsUpgrade(),
		"Gained":       change.Gained(),
		"Lost":         change.Lost(),
		"DashboardURL": dashboardURL,
		"PricingURL":   pricingURL,
	}

	htmlBody, err := s.renderTemplate("plan_changed.html", data)
	if err != nil {
		return fmt.Errorf("failed to render plan changed email template: %w", err)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Hi %s,\n\nYour StreamToSite workspace is now on the %s plan.\n", name, change.Current.Name)
	if gained := change.Gained(); len(gained) > 0 {
		fmt.Fprintf(&text, "\nNow available: %s.\n", strings.Join(gained, ", "))
	}
	if lost := change.Lost(); len(lost) > 0 {
		fmt.Fprintf(&text, "\nNo longer included: %s.\nYou can upgrade again at any time: %s\n", strings.Join(lost, ", "), pricingURL)
	}
	fmt.Fprintf(&text, "\nOpen your dashboard: %s\n\nThanks,\nThe StreamToSite Team\n", dashboardURL)

	subject := "Your plan changed to " + change.Current.Name
	if change.IsUpgrade() {
		subject = "Welcome to " + change.Current.Name
	}

	return s.send(ctx, Email{
		To:       to,
		Subject:  subject,
		HTMLBody: htmlBody,
		TextBody: text.String(),
	})
}

// =============================================================================
// Internal Methods
// =============================================================================

func (s *SMTPEmailService) send(ctx context.Context, email Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := s.buildMessage(email)
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	// Mailhog accepts unauthenticated mail
	var auth smtp.Auth
	if s.config.Username != "" && s.config.Password != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	if err := s.sendMail(addr, auth, s.config.From, []string{email.To}, msg); err != nil {
		s.logger.Error("failed to send email",
			"to", email.To,
			"subject", email.Subject,
			"error", err,
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		"to", email.To,
		"subject", email.Subject,
	)
	return nil
}

const boundary = "===============STREAMTOSITE_BOUNDARY==============="

// buildMessage constructs a multipart/alternative message with text and HTML parts.
func (s *SMTPEmailService) buildMessage(email Email) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "From: %s <%s>\r\n", s.config.FromName, s.config.From)
	fmt.Fprintf(&buf, "To: %s\r\n", email.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", email.Subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", boundary)

	for _, part := range []struct{ contentType, body string }{
		{"text/plain", email.TextBody},
		{"text/html", email.HTMLBody},
	} {
		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		fmt.Fprintf(&buf, "Content-Type: %s; charset=utf-8\r\n\r\n", part.contentType)
		buf.WriteString(part.body)
		buf.WriteString("\r\n")
	}
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)

	return buf.Bytes()
}

func (s *SMTPEmailService) renderTemplate(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// =============================================================================
// Templates
// =============================================================================

func emailTemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"join": strings.Join,
		"currentYear": func() int {
			return time.Now().Year()
		},
	}
}

const planChangedTemplate = `{{define "plan_changed.html"}}<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #1f2937;">
<p>Hi {{.Name}},</p>
{{if .Upgrade}}<p>Thanks for upgrading. Your workspace is now on <strong>{{.Plan}}</strong>.</p>
{{else}}<p>Your workspace is now on the <strong>{{.Plan}}</strong> plan.</p>
{{end}}{{with .Gained}}<p>Now available:</p>
<ul>{{range .}}<li>{{.}}</li>{{end}}</ul>
{{end}}{{with .Lost}}<p>No longer included: {{join . ", "}}.</p>
<p><a href="{{$.PricingURL}}">See plans</a></p>
{{end}}<p><a href="{{.DashboardURL}}">Open your dashboard</a></p>
<p style="color: #6b7280; font-size: 12px;">&copy; {{currentYear}} StreamToSite</p>
</body>
</html>{{end}}`

var _ Notifier = (*SMTPEmailService)(nil)
