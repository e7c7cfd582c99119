// Package notify emails the administrator about ingest problems via Resend.
package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

// Alert describes an ingest run that needs attention.
type Alert struct {
	Subject   string
	Reason    string
	SourceURL string
	ReportID  string
	Err       error
	At        time.Time
}

// Notifier delivers alerts.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

type emailSender interface {
	Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// EmailNotifier sends alerts to a single admin address. Without an API key or
// recipient it only logs.
type EmailNotifier struct {
	emails    emailSender
	fromEmail string
	to        string
	logger    *slog.Logger
}

// NewEmailNotifier creates a notifier backed by Resend.
func NewEmailNotifier(apiKey, fromEmail, to string, logger *slog.Logger) *EmailNotifier {
	n := &EmailNotifier{fromEmail: fromEmail, to: to, logger: logger}
	if apiKey != "" {
		n.emails = resend.NewClient(apiKey).Emails
	}
	return n
}

// Notify sends the alert, or logs it when email is not configured.
func (n *EmailNotifier) Notify(ctx context.Context, alert Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if n.emails == nil || n.to == "" {
		n.logger.Warn("resend client not configured, skipping alert email",
			slog.String("subject", alert.Subject),
			slog.String("reason", alert.Reason),
		)
		return nil
	}

	_, err := n.emails.Send(&resend.SendEmailRequest{
		From:    n.fromEmail,
		To:      []string{n.to},
		Subject: alert.Subject,
		Html:    renderAlert(alert),
	})
	if err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}

	n.logger.Info("alert email sent", slog.String("subject", alert.Subject))
	return nil
}

func renderAlert(a Alert) string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html><html><body style=\"font-family: sans-serif;\">")
	fmt.Fprintf(&sb, "<h2>%s</h2>", html.EscapeString(a.Subject))
	fmt.Fprintf(&sb, "<p>%s</p><ul>", html.EscapeString(a.Reason))
	if !a.At.IsZero() {
		fmt.Fprintf(&sb, "<li>Time: %s</li>", a.At.UTC().Format(time.RFC3339))
	}
	if a.SourceURL != "" {
		fmt.Fprintf(&sb, "<li>Source: <a href=\"%[1]s\">%[1]s</a></li>", html.EscapeString(a.SourceURL))
	}
	if a.ReportID != "" {
		fmt.Fprintf(&sb, "<li>Report: %s</li>", html.EscapeString(a.ReportID))
	}
	if a.Err != nil {
		fmt.Fprintf(&sb, "<li>Error: <code>%s</code></li>", html.EscapeString(a.Err.Error()))
	}
	sb.WriteString("</ul></body></html>")
	return sb.String()
}
