package ledger

import (
	"net/http"
	"time"
)

// Option applies a configuration option to the HTTPLedger.
type Option func(*HTTPLedger)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(l *HTTPLedger) {
		if client != nil {
			l.client = client
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(l *HTTPLedger) {
		if d > 0 {
			l.client.Timeout = d
		}
	}
}
