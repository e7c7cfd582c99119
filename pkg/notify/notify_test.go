package notify

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []*resend.SendEmailRequest
	err  error
}

func (f *fakeSender) Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	f.sent = append(f.sent, params)
	if f.err != nil {
		return nil, f.err
	}
	return &resend.SendEmailResponse{Id: "email_1"}, nil
}

func TestEmailNotifier_Notify(t *testing.T) {
	sender := &fakeSender{}
	n := &EmailNotifier{emails: sender, fromEmail: "alerts@pricemon.local", to: "admin@example.com", logger: slog.Default()}

	err := n.Notify(context.Background(), Alert{
		Subject:   "Bulletin parsed with no tables",
		Reason:    "The parser found no <table> headers",
		SourceURL: "https://www.da.gov.ph/a.pdf",
		Err:       errors.New("empty report"),
		At:        time.Date(2025, 7, 26, 8, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	req := sender.sent[0]
	assert.Equal(t, []string{"admin@example.com"}, req.To)
	assert.Equal(t, "Bulletin parsed with no tables", req.Subject)
	assert.Contains(t, req.Html, "&lt;table&gt;")
	assert.Contains(t, req.Html, "https://www.da.gov.ph/a.pdf")
	assert.Contains(t, req.Html, "2025-07-26T08:00:00Z")
	assert.Contains(t, req.Html, "empty report")
}

func TestEmailNotifier_SendError(t *testing.T) {
	n := &EmailNotifier{emails: &fakeSender{err: errors.New("rate limited")}, to: "admin@example.com", logger: slog.Default()}

	err := n.Notify(context.Background(), Alert{Subject: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestEmailNotifier_NotConfigured(t *testing.T) {
	n := NewEmailNotifier("", "from@example.com", "admin@example.com", slog.Default())
	assert.NoError(t, n.Notify(context.Background(), Alert{Subject: "x"}))

	sender := &fakeSender{}
	n = &EmailNotifier{emails: sender, logger: slog.Default()}
	assert.NoError(t, n.Notify(context.Background(), Alert{Subject: "x"}))
	assert.Empty(t, sender.sent)
}
