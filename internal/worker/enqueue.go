package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DukeRupert/bwg/internal/domain"
	"github.com/google/uuid"
)

// Job type constants - these must match the JobHandler.Type() values
const (
	JobTypeTriggerDetection = "trigger_detection"
	JobTypeNotifyNewReport  = "notify_new_report"
)

// Priority constants for job scheduling
const (
	PriorityLow    = 0
	PriorityNormal = 10
	PriorityHigh   = 20
)

// Enqueuer is the write side of the job queue.
type Enqueuer interface {
	EnqueueJob(ctx context.Context, params domain.EnqueueJobParams) (*domain.Job, error)
}

// TriggerDetectionPayload is the payload for detection trigger jobs.
type TriggerDetectionPayload struct {
	ReportID uuid.UUID `json:"report_id"`
}

// NotifyNewReportPayload is the payload for new-report notification jobs.
type NotifyNewReportPayload struct {
	ReportID uuid.UUID `json:"report_id"`
}

// EnqueueOption is a functional option for customizing job enqueue parameters.
type EnqueueOption func(*domain.EnqueueJobParams)

// WithPriority sets the job priority.
func WithPriority(priority int32) EnqueueOption {
	return func(p *domain.EnqueueJobParams) {
		p.Priority = priority
	}
}

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(attempts int32) EnqueueOption {
	return func(p *domain.EnqueueJobParams) {
		p.MaxAttempts = attempts
	}
}

// WithDelay schedules the job to run after a delay.
func WithDelay(delay time.Duration) EnqueueOption {
	return func(p *domain.EnqueueJobParams) {
		p.ScheduledAt = p.ScheduledAt.Add(delay)
	}
}

// EnqueueJob marshals payload and enqueues a job of the given type.
func EnqueueJob(
	ctx context.Context,
	queue Enqueuer,
	jobType string,
	payload interface{},
	opts ...EnqueueOption,
) (*domain.Job, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	params := domain.EnqueueJobParams{
		JobType:     jobType,
		Payload:     payloadJSON,
		Priority:    PriorityNormal,
		MaxAttempts: 3,
		ScheduledAt: time.Now(),
	}
	for _, opt := range opts {
		opt(&params)
	}

	job, err := queue.EnqueueJob(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	return job, nil
}

// EnqueueTriggerDetection enqueues a job that forwards a new report to the
// detection workflow.
func EnqueueTriggerDetection(ctx context.Context, queue Enqueuer, reportID uuid.UUID, opts ...EnqueueOption) (*domain.Job, error) {
	return EnqueueJob(ctx, queue, JobTypeTriggerDetection, TriggerDetectionPayload{ReportID: reportID}, opts...)
}

// EnqueueNotifyNewReport enqueues a job that notifies officers about a new
// report. Notifications outrank detection triggers.
func EnqueueNotifyNewReport(ctx context.Context, queue Enqueuer, reportID uuid.UUID, opts ...EnqueueOption) (*domain.Job, error) {
	opts = append([]EnqueueOption{WithPriority(PriorityHigh)}, opts...)
	return EnqueueJob(ctx, queue, JobTypeNotifyNewReport, NotifyNewReportPayload{ReportID: reportID}, opts...)
}
