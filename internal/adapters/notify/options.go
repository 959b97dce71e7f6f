package notify

import (
	"net/http"
	"time"
)

// Option applies a configuration option to the Webhook.
type Option func(*Webhook)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(w *Webhook) {
		if client != nil {
			w.client = client
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(w *Webhook) {
		if d > 0 {
			w.client.Timeout = d
		}
	}
}
