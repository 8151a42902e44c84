package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rryowa/blog_admin/internal/util"
)

const (
	defaultHTTPStatusThreshold = 300

	EventSessionAnomaly = "session.ownership_mismatch"
)

// Notifier delivers a security alert to a user's registered address.
// Callers treat a returned error as best-effort failure and carry on.
type Notifier interface {
	Notify(ctx context.Context, address string) error
}

// NewNotifier picks the alert channel from configuration: webhook, then SMTP, then a logging no-op.
func NewNotifier(cfg *util.NotifierConfig, log *zap.SugaredLogger) Notifier {
	switch {
	case cfg.WebhookURL != "":
		log.Infow("Security alerts via webhook", "url", cfg.WebhookURL)
		return NewWebhookNotifier(log, cfg.WebhookURL, cfg.Timeout)
	case cfg.SMTPHost != "":
		log.Infow("Security alerts via SMTP", "host", cfg.SMTPHost)
		return NewMailNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFromName, cfg.SMTPSecure)
	default:
		log.Warn("No alert channel configured; security alerts will only be logged")
		return NoopNotifier{log: log}
	}
}

// AlertPayload is the JSON body posted by WebhookNotifier.
type AlertPayload struct {
	Event      string    `json:"event"`
	Address    string    `json:"address"`
	OccurredAt time.Time `json:"occurred_at"`
}

type WebhookNotifier struct {
	client     *http.Client
	log        *zap.SugaredLogger
	webhookURL string
}

func NewWebhookNotifier(log *zap.SugaredLogger, webhookURL string, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{
		client:     &http.Client{Timeout: timeout},
		log:        log,
		webhookURL: webhookURL,
	}
}

func (s *WebhookNotifier) Notify(ctx context.Context, address string) error {
	payload, err := json.Marshal(AlertPayload{
		Event:      EventSessionAnomaly,
		Address:    address,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= defaultHTTPStatusThreshold {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	s.log.Debugw("Security alert delivered", "status", resp.StatusCode)
	return nil
}

// NoopNotifier only logs the alert.
type NoopNotifier struct {
	log *zap.SugaredLogger
}

func (n NoopNotifier) Notify(_ context.Context, address string) error {
	if n.log != nil {
		n.log.Warnw("Security alert not delivered: no channel configured", "event", EventSessionAnomaly, "address", address)
	}
	return nil
}
