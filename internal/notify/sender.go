// Package notify delivers renewal notifications that the store queued
// during renewal transactions.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/scholarscope/harvest-cli/internal/model"
)

// Sender delivers a single queued notification.
type Sender interface {
	Send(ctx context.Context, n model.Notification) error
}

// WebhookSender posts each notification as JSON to a configured endpoint,
// typically an email relay or chat integration.
type WebhookSender struct {
	url    string
	client *http.Client
}

func NewWebhookSender(url string, timeout time.Duration) *WebhookSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSender{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type webhookPayload struct {
	Email     string `json:"email"`
	RecordID  string `json:"record_id"`
	BatchYear int    `json:"batch_year"`
	Message   string `json:"message"`
}

func (s *WebhookSender) Send(ctx context.Context, n model.Notification) error {
	body, err := json.Marshal(webhookPayload{
		Email:     n.Email,
		RecordID:  n.RecordID,
		BatchYear: n.Year,
		Message:   n.Message,
	})
	if err != nil {
		return eris.Wrap(err, "notify: marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "notify: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: post webhook")
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return eris.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// LogSender writes notifications to the log instead of delivering them.
// Used when no webhook is configured, and in dry runs.
type LogSender struct{}

func (LogSender) Send(_ context.Context, n model.Notification) error {
	zap.L().Info("notification",
		zap.String("email", n.Email),
		zap.String("record_id", n.RecordID),
		zap.Int("batch_year", n.Year),
		zap.String("message", n.Message),
	)
	return nil
}
