package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"solana-marketplace/internal/domain"
)

// Sink delivers one notification.
type Sink interface {
	Deliver(ctx context.Context, n *domain.Notification) error
}

// LogSink writes notifications to a logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a log sink. A nil logger uses slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Deliver logs n at info level.
func (s *LogSink) Deliver(_ context.Context, n *domain.Notification) error {
	s.logger.Info("notification",
		"id", n.ID,
		"kind", string(n.Kind),
		"recipient", n.Recipient,
		"payload", string(n.Payload),
	)
	return nil
}

// WebhookSink POSTs notifications as JSON.
type WebhookSink struct {
	url        string
	httpClient *http.Client
}

// NewWebhookSink creates a webhook sink.
func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSink{url: url, httpClient: &http.Client{Timeout: timeout}}
}

type webhookBody struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Recipient string          `json:"recipient"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Deliver posts n. Any non-2xx response is an error.
func (s *WebhookSink) Deliver(ctx context.Context, n *domain.Notification) error {
	body, err := json.Marshal(webhookBody{
		ID:        n.ID,
		Kind:      string(n.Kind),
		Recipient: n.Recipient,
		Payload:   n.Payload,
		CreatedAt: n.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", n.ID)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}

// MultiSink delivers to every sink and returns the first error.
type MultiSink []Sink

// Deliver calls each sink in order.
func (m MultiSink) Deliver(ctx context.Context, n *domain.Notification) error {
	var first error
	for _, s := range m {
		if err := s.Deliver(ctx, n); err != nil && first == nil {
			first = err
		}
	}
	return first
}
