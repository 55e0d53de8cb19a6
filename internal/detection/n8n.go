package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/DukeRupert/bwg/internal/domain"
)

// Response headers set by the workflow on acknowledgement.
const (
	HeaderWebhookID  = "X-Webhook-Id"
	HeaderWorkflowID = "X-Workflow-Id"
)

// maxResponseBody caps how much of the workflow's reply is kept.
const maxResponseBody = 1 << 20

// N8NConfig configures the n8n webhook client.
type N8NConfig struct {
	WebhookURL string
	Secret     string // sent as X-Webhook-Secret when set
	Config
}

var _ Trigger = (*N8NClient)(nil)

// N8NClient implements Trigger by POSTing to an n8n webhook.
type N8NClient struct {
	config N8NConfig
	client *http.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewN8NClient creates a new n8n webhook client.
func NewN8NClient(config N8NConfig, logger *slog.Logger) (*N8NClient, error) {
	if config.WebhookURL == "" {
		return nil, fmt.Errorf("n8n webhook URL is required")
	}

	// Set defaults
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.RetryBaseDelay == 0 {
		config.RetryBaseDelay = 1 * time.Second
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 60 * time.Second
	}

	return &N8NClient{
		config: config,
		client: &http.Client{
			Timeout: config.RequestTimeout,
		},
		logger: logger,
		now:    time.Now,
	}, nil
}

// Trigger posts the payload with exponential backoff on transient errors.
func (c *N8NClient) Trigger(ctx context.Context, payload Payload) (*domain.WebhookResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError("marshal payload", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		resp, err := c.post(ctx, body)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		// Only retry on retryable errors
		if !IsRetryable(err) {
			return nil, WrapError("trigger", err)
		}

		if attempt >= c.config.MaxRetries {
			break
		}

		// Exponential: base * 2^(attempt-1)
		delay := c.config.RetryBaseDelay * time.Duration(1<<(attempt-1))
		c.logger.Info("retrying detection trigger",
			"report_id", payload.ReportID,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, WrapError("trigger", errors.Join(ErrTimeout, ctx.Err()))
		}
	}

	return nil, WrapError("trigger", lastErr)
}

// post executes a single request. The body is rebuilt on every attempt.
func (c *N8NClient) post(ctx context.Context, body []byte) (*domain.WebhookResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.Secret != "" {
		req.Header.Set("X-Webhook-Secret", c.config.Secret)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, ErrTimeout
		}
		// Network errors are typically retryable
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read response body: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, mapHTTPError(resp.StatusCode, raw)
	}

	status := StatusPending
	if resp.StatusCode == http.StatusOK {
		status = StatusCompleted
	}

	out := &domain.WebhookResponse{
		WebhookID:   resp.Header.Get(HeaderWebhookID),
		WorkflowID:  resp.Header.Get(HeaderWorkflowID),
		Status:      status,
		ProcessedAt: c.now(),
	}
	if len(raw) > 0 && json.Valid(raw) {
		out.RawResponse = json.RawMessage(raw)
	}
	return out, nil
}

// mapHTTPError maps HTTP status codes to sentinel errors
func mapHTTPError(statusCode int, body []byte) error {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusTooManyRequests:
		return ErrRateLimit
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ErrTimeout
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusInternalServerError:
		return ErrUnavailable
	default:
		return fmt.Errorf("%w (status %d): %s", ErrRejected, statusCode, truncateBody(body))
	}
}

func truncateBody(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
