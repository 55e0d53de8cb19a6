// Package mock provides an in-process detection Trigger for tests and
// development.
package mock

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/DukeRupert/bwg/internal/detection"
	"github.com/DukeRupert/bwg/internal/domain"
)

// Trigger is a mock detection trigger.
type Trigger struct {
	logger *slog.Logger

	mu sync.Mutex

	// Configurable responses for testing
	Response *domain.WebhookResponse
	Err      error

	// Call tracking for testing
	Calls    int
	Payloads []detection.Payload
}

var _ detection.Trigger = (*Trigger)(nil)

// New creates a new mock trigger.
func New(logger *slog.Logger) *Trigger {
	return &Trigger{logger: logger}
}

// Trigger records the payload and returns the configured response, or a
// canned acknowledgement.
func (t *Trigger) Trigger(ctx context.Context, payload detection.Payload) (*domain.WebhookResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Calls++
	t.Payloads = append(t.Payloads, payload)

	if t.Err != nil {
		return nil, t.Err
	}
	if t.Response != nil {
		resp := *t.Response
		return &resp, nil
	}

	t.logger.Debug("mock detection triggered", "report_id", payload.ReportID)
	return &domain.WebhookResponse{
		WebhookID:   "mock-webhook",
		WorkflowID:  "mock-workflow",
		Status:      detection.StatusPending,
		RawResponse: json.RawMessage(`{"accepted":true}`),
		ProcessedAt: time.Now(),
	}, nil
}

// CallCount returns the number of Trigger calls.
func (t *Trigger) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Calls
}
