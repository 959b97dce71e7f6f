// Package notify delivers submitter notifications over a webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/arbiter/internal/domain/model"
	"github.com/okian/arbiter/pkg/logger"
)

const (
	defaultTimeout   = 10 * time.Second
	maxErrorBodySize = 1024
)

// payload is the wire shape of a notification.
type payload struct {
	UserID   string         `json:"user_id"`
	Type     string         `json:"type"`
	Title    string         `json:"title,omitempty"`
	Message  string         `json:"message,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Webhook posts notifications to the platform's notification service.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a notifier posting to url.
func NewWebhook(url string, opts ...Option) *Webhook {
	w := &Webhook{
		url:    url,
		client: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Send posts one notification. Delivery is best-effort; the caller decides
// whether a failure is retried.
func (w *Webhook) Send(ctx context.Context, n model.Notification) error {
	body, err := json.Marshal(payload{
		UserID:   n.UserID,
		Type:     string(n.Type),
		Title:    n.Title,
		Message:  n.Message,
		Metadata: n.Metadata,
	})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return fmt.Errorf("notification rejected: status %d: %s", resp.StatusCode, snippet)
	}
	return nil
}

// LogNotifier writes notifications to the log instead of calling out. It is
// the fallback when no webhook URL is configured.
type LogNotifier struct {
	logger logger.Logger
}

// NewLogNotifier creates a notifier that only logs.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: logger.Get().Named("notify")}
}

// Send logs the notification and succeeds.
func (l *LogNotifier) Send(ctx context.Context, n model.Notification) error {
	l.logger.Info(ctx, "notification",
		logger.String("user_id", n.UserID),
		logger.String("type", string(n.Type)),
		logger.String("message", n.Message),
	)
	return nil
}
