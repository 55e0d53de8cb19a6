package detection

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/bwg/internal/domain"
)

// Field aliases accepted on callbacks, in lookup order.
var (
	reportIDKeys         = []string{"reportId", "report_id"}
	detectionResultsKeys = []string{"detectionResults", "detection_results"}
	trustScoreKeys       = []string{"aiTrustScore", "ai_trust_score", "trustScore"}
	probabilityKeys      = []string{"verificationProbability", "verification_probability", "probability"}
)

// Callback is a normalized detection workflow callback.
type Callback struct {
	ReportID                uuid.UUID       `json:"reportId"`
	DetectionResults        json.RawMessage `json:"detectionResults,omitempty"`
	AITrustScore            *float64        `json:"aiTrustScore,omitempty" validate:"omitempty,gte=0,lte=100"`
	VerificationProbability *float64        `json:"verificationProbability,omitempty" validate:"omitempty,gte=0,lte=100"`
	Status                  string          `json:"status,omitempty"`
	Error                   string          `json:"error,omitempty"`
	WebhookID               string          `json:"webhookId,omitempty"`
	WorkflowID              string          `json:"workflowId,omitempty"`
	Raw                     json.RawMessage `json:"-"`
}

// Succeeded returns true when the workflow reports a completed run without
// an error. A missing status counts as completed.
func (c *Callback) Succeeded() bool {
	return (c.Status == "" || c.Status == StatusCompleted) && c.Error == ""
}

// Response converts the callback into the stored workflow response.
func (c *Callback) Response(at time.Time) *domain.WebhookResponse {
	status := c.Status
	if status == "" {
		status = StatusCompleted
	}
	return &domain.WebhookResponse{
		WebhookID:               c.WebhookID,
		WorkflowID:              c.WorkflowID,
		Status:                  status,
		DetectionResults:        c.DetectionResults,
		AITrustScore:            c.AITrustScore,
		VerificationProbability: c.VerificationProbability,
		RawResponse:             c.Raw,
		ProcessedAt:             at,
		Error:                   c.Error,
	}
}

// ParseCallback decodes a callback body. Both camelCase and snake_case keys
// are accepted and scores may be JSON numbers or numeric strings. A missing
// or malformed report id, or a score outside 0..100, is a *domain.ValidationError.
func ParseCallback(body []byte, webhookID, workflowID string) (*Callback, error) {
	const op = "detection.parse_callback"

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, domain.NewValidationError(op, "body", "must be a JSON object")
	}

	cb := &Callback{
		WebhookID:  webhookID,
		WorkflowID: workflowID,
		Raw:        json.RawMessage(bytes.Clone(body)),
	}
	var verr *domain.ValidationError
	fieldError := func(field, message string) {
		if verr == nil {
			verr = domain.NewValidationError(op, field, message)
			return
		}
		verr.Fields[field] = message
	}

	rawID, ok := lookup(fields, reportIDKeys)
	if !ok {
		return nil, domain.NewValidationError(op, "reportId", "is required")
	}
	id, err := parseUUID(rawID)
	if err != nil {
		return nil, domain.NewValidationError(op, "reportId", "must be a valid UUID")
	}
	cb.ReportID = id

	if raw, ok := lookup(fields, detectionResultsKeys); ok {
		cb.DetectionResults = raw
	}

	if raw, ok := lookup(fields, trustScoreKeys); ok {
		if cb.AITrustScore, err = parseScore(raw); err != nil {
			fieldError("aiTrustScore", "must be a number")
		}
	}
	if raw, ok := lookup(fields, probabilityKeys); ok {
		if cb.VerificationProbability, err = parseScore(raw); err != nil {
			fieldError("verificationProbability", "must be a number")
		}
	}

	if raw, ok := fields["status"]; ok {
		cb.Status = strings.ToUpper(strings.TrimSpace(stringValue(raw)))
	}
	if raw, ok := fields["error"]; ok {
		cb.Error = stringValue(raw)
	}

	if verr != nil {
		return nil, verr
	}
	if err := domain.ValidateStruct(op, cb); err != nil {
		return nil, err
	}
	return cb, nil
}

// lookup returns the first alias present with a non-null value.
func lookup(fields map[string]json.RawMessage, keys []string) (json.RawMessage, bool) {
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok || isNull(raw) {
			continue
		}
		return raw, true
	}
	return nil, false
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func parseUUID(raw json.RawMessage) (uuid.UUID, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(strings.TrimSpace(s))
}

// parseScore accepts 87.5 or "87.5". An empty string means absent.
func parseScore(raw json.RawMessage) (*float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// stringValue returns a JSON string's value, or the raw JSON text for any
// other non-null value.
func stringValue(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}
