// Package assign talks to the reviewer-assignment service.
//
// This engine never picks reviewers itself. When a first evaluation lands
// it asks the assignment service to make sure a second reviewer is queued
// for the action.
package assign

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/arbiter/pkg/logger"
)

const (
	defaultTimeout   = 10 * time.Second
	maxErrorBodySize = 1024
)

type escalateRequest struct {
	ActionID string `json:"action_id"`
	Slot     int    `json:"slot"`
}

// Client requests second-reviewer coverage from the assignment service.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for the assignment service at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnsureSecondReviewer asks the service to queue a second reviewer for the
// action. The call is idempotent on the service side.
func (c *Client) EnsureSecondReviewer(ctx context.Context, actionID string) error {
	body, err := json.Marshal(escalateRequest{ActionID: actionID, Slot: 2})
	if err != nil {
		return fmt.Errorf("encode escalation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/assignments", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build escalation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request second reviewer for %s: %w", actionID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return fmt.Errorf("escalation rejected for %s: status %d: %s", actionID, resp.StatusCode, snippet)
	}
	return nil
}

// LogEscalator logs escalations instead of calling out. It is the fallback
// when no assignment service URL is configured.
type LogEscalator struct {
	logger logger.Logger
}

// NewLogEscalator creates an escalator that only logs.
func NewLogEscalator() *LogEscalator {
	return &LogEscalator{logger: logger.Get().Named("assign")}
}

// EnsureSecondReviewer logs the request and succeeds.
func (l *LogEscalator) EnsureSecondReviewer(ctx context.Context, actionID string) error {
	l.logger.Info(ctx, "second reviewer requested", logger.String("action_id", actionID))
	return nil
}
