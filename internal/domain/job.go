package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNoJobs is returned by a job queue when nothing is due.
var ErrNoJobs = errors.New("no jobs available")

// JobStatus is the lifecycle state of a background job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job is a durable background job row.
type Job struct {
	ID           uuid.UUID
	JobType      string
	Payload      []byte
	Status       JobStatus
	Priority     int32
	Attempts     int32 // includes the current attempt once dequeued
	MaxAttempts  int32
	ScheduledAt  time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ErrorMessage string
	CreatedAt    time.Time
}

// CanRetry returns true if the job has attempts left.
func (j *Job) CanRetry() bool {
	return j.Attempts < j.MaxAttempts
}

// EnqueueJobParams contains parameters for enqueuing a job.
type EnqueueJobParams struct {
	JobType     string
	Payload     []byte
	Priority    int32
	MaxAttempts int32
	ScheduledAt time.Time
}
