// Package ledger credits approved rewards to the platform's XP ledger.
//
// Grants are idempotent on the caller-supplied key, which is the action ID.
// The ledger is the one outbound dependency whose failure surfaces to the
// judgment caller, since a recorded approval without a credited reward must
// be visible for reconciliation.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/okian/arbiter/pkg/metrics"
)

const (
	defaultTimeout    = 10 * time.Second
	maxErrorBodySize  = 1024
	idempotencyHeader = "Idempotency-Key"
)

// Ledger posts an XP credit for a user.
type Ledger interface {
	// Grant credits xp to userID. Repeated calls with the same
	// idempotency key must credit at most once.
	Grant(ctx context.Context, userID string, xp int, idempotencyKey string) error
}

// grantRequest is the wire payload for a credit.
type grantRequest struct {
	UserID string `json:"user_id"`
	Amount int    `json:"amount"`
	Reason string `json:"reason"`
}

// HTTPLedger implements Ledger against the platform's ledger service.
type HTTPLedger struct {
	baseURL string
	client  *http.Client
}

// NewHTTPLedger creates a client for the ledger service at baseURL.
func NewHTTPLedger(baseURL string, opts ...Option) *HTTPLedger {
	l := &HTTPLedger{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Grant posts the credit. A 2xx response is success; anything else is an
// error carrying a bounded slice of the response body.
func (l *HTTPLedger) Grant(ctx context.Context, userID string, xp int, idempotencyKey string) error {
	metrics.RecordLedgerCall()

	body, err := json.Marshal(grantRequest{
		UserID: userID,
		Amount: xp,
		Reason: "evaluation-reward",
	})
	if err != nil {
		metrics.RecordLedgerError()
		return fmt.Errorf("encode grant: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/grants", bytes.NewReader(body))
	if err != nil {
		metrics.RecordLedgerError()
		return fmt.Errorf("build grant request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(idempotencyHeader, idempotencyKey)

	resp, err := l.client.Do(req)
	if err != nil {
		metrics.RecordLedgerError()
		return fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.RecordLedgerError()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return fmt.Errorf("%w: status %d: %s", ErrGrantRejected, resp.StatusCode, snippet)
	}
	return nil
}

// InMemoryLedger implements Ledger with a map of applied keys. It backs
// tests and the no-URL deployment mode.
type InMemoryLedger struct {
	mu      sync.Mutex
	applied map[string]int // idempotency key -> xp
	totals  map[string]int // user id -> xp
}

// NewInMemoryLedger creates an empty in-memory ledger.
func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{
		applied: make(map[string]int),
		totals:  make(map[string]int),
	}
}

// Grant credits xp at most once per idempotency key.
func (l *InMemoryLedger) Grant(_ context.Context, userID string, xp int, idempotencyKey string) error {
	metrics.RecordLedgerCall()

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, done := l.applied[idempotencyKey]; done {
		return nil
	}
	l.applied[idempotencyKey] = xp
	l.totals[userID] += xp
	return nil
}

// Total returns the XP credited to a user so far.
func (l *InMemoryLedger) Total(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totals[userID]
}
