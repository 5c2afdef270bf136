// Package notify delivers user-facing mail through an EmailJS-compatible
// HTTP gateway. Callers hand it a domain event; the package builds the
// message body and posts a single template request per mail.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"bynlora/internal/core"
)

// Config carries the gateway credentials. Endpoint defaults to the
// public EmailJS send URL when empty.
type Config struct {
	Endpoint   string
	ServiceID  string
	TemplateID string
	PublicKey  string
	PrivateKey string
	Timeout    time.Duration
}

const defaultEndpoint = "https://api.emailjs.com/api/v1.0/email/send"

// EmailClient sends templated mail over HTTP. The zero value is not
// usable; construct with NewEmailClient.
type EmailClient struct {
	cfg    Config
	client *http.Client
}

func NewEmailClient(cfg Config) *EmailClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &EmailClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// sendRequest is the gateway's wire format: one template invocation with
// free-form parameters.
type sendRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams map[string]string `json:"template_params"`
}

// SendBudgetAlert mails the threshold-crossing notice for a user's
// monthly budget.
func (c *EmailClient) SendBudgetAlert(ctx context.Context, user core.User, threshold, percentage int, spent, remaining core.Money) error {
	subject := fmt.Sprintf("Budget Alert: %d%% of your monthly budget used", threshold)
	body := BudgetAlertHTML(user, threshold, percentage, spent, remaining)
	if err := c.send(ctx, user.Email, subject, body); err != nil {
		return fmt.Errorf("budget alert for user %d: %w", user.ID, err)
	}
	slog.Info("Budget alert sent",
		"user_id", user.ID,
		"threshold", threshold,
		"percentage", percentage)
	return nil
}

// SendMonthlyReminder mails the start-of-month budget reminder.
func (c *EmailClient) SendMonthlyReminder(ctx context.Context, user core.User, month time.Month) error {
	subject := fmt.Sprintf("Your %s budget is ready", month)
	body := MonthlyReminderHTML(user, month)
	if err := c.send(ctx, user.Email, subject, body); err != nil {
		return fmt.Errorf("monthly reminder for user %d: %w", user.ID, err)
	}
	slog.Info("Monthly reminder sent", "user_id", user.ID, "month", month.String())
	return nil
}

func (c *EmailClient) send(ctx context.Context, to, subject, html string) error {
	payload := sendRequest{
		ServiceID:   c.cfg.ServiceID,
		TemplateID:  c.cfg.TemplateID,
		UserID:      c.cfg.PublicKey,
		AccessToken: c.cfg.PrivateKey,
		TemplateParams: map[string]string{
			"to_email":     to,
			"subject":      subject,
			"message_html": html,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// The gateway returns a short plain-text reason on failure.
		reason, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mail gateway returned %d: %s", resp.StatusCode, string(reason))
	}
	return nil
}
