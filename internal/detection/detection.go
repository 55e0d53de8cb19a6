// Package detection talks to the external image-detection workflow (n8n).
//
// Outbound, a Trigger forwards a new report's evidence to the workflow.
// Inbound, ParseCallback normalizes the workflow's callback body before the
// reconciler merges it into the report.
package detection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/bwg/internal/domain"
)

// Trigger starts detection for one report.
type Trigger interface {
	// Trigger posts the payload to the workflow and returns the workflow's
	// acknowledgement. Failures are returned as one of the sentinel errors
	// below, wrapped with context.
	Trigger(ctx context.Context, payload Payload) (*domain.WebhookResponse, error)
}

// Payload is the body sent to the detection workflow.
type Payload struct {
	ReportID          uuid.UUID             `json:"reportId"`
	SocietyID         uuid.UUID             `json:"societyId"`
	ImageURLs         []string              `json:"imageUrls"`
	GPSMetadata       domain.GPSMetadata    `json:"gpsMetadata"`
	IoTSensorData     *domain.IoTSensorData `json:"iotSensorData,omitempty"`
	SubmittedBy       uuid.UUID             `json:"submittedBy"`
	SubmissionDate    time.Time             `json:"submissionDate"`
	GeoDistanceMeters *float64              `json:"geoDistanceMeters,omitempty"`
}

// NewPayload builds the trigger payload for a report.
func NewPayload(r *domain.Report) Payload {
	urls := make([]string, 0, len(r.SubmissionImages))
	for _, img := range r.SubmissionImages {
		urls = append(urls, img.URL)
	}
	return Payload{
		ReportID:          r.ID,
		SocietyID:         r.SocietyID,
		ImageURLs:         urls,
		GPSMetadata:       r.GPSMetadata,
		IoTSensorData:     r.IoTSensorData,
		SubmittedBy:       r.SubmitterID,
		SubmissionDate:    r.SubmissionDate,
		GeoDistanceMeters: r.GeoDistanceMeters,
	}
}

// Config contains retry and timeout settings for a Trigger.
type Config struct {
	MaxRetries     int           // Maximum attempts for transient errors
	RetryBaseDelay time.Duration // Base delay for exponential backoff
	RequestTimeout time.Duration // Timeout for each request
}

// Workflow status values.
const (
	StatusCompleted = "COMPLETED"
	StatusPending   = "PENDING"
	StatusError     = "ERROR"
)

// Sentinel errors for workflow calls.
var (
	// ErrRateLimit indicates the workflow is throttling requests
	ErrRateLimit = errors.New("detection workflow rate limit exceeded")

	// ErrTimeout indicates the request timed out
	ErrTimeout = errors.New("detection workflow timed out")

	// ErrUnavailable indicates the workflow is temporarily unavailable
	ErrUnavailable = errors.New("detection workflow temporarily unavailable")

	// ErrUnauthorized indicates the workflow rejected our credentials
	ErrUnauthorized = errors.New("detection workflow authentication failed")

	// ErrRejected indicates the workflow refused the payload
	ErrRejected = errors.New("detection workflow rejected the request")
)

// IsRetryable returns true if the error is a transient error that can be retried
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrUnavailable)
}

// WrapError wraps an error with context about the workflow operation
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("detection %s: %w", operation, err)
}

// FailureResponse records a failed trigger without changing report status.
func FailureResponse(err error, at time.Time) *domain.WebhookResponse {
	return &domain.WebhookResponse{
		Status:      StatusError,
		Error:       err.Error(),
		ProcessedAt: at,
	}
}
