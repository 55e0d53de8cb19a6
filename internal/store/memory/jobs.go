package memory

import (
	"context"
	"time"

	"github.com/DukeRupert/bwg/internal/domain"
	"github.com/google/uuid"
)

func (s *Store) EnqueueJob(_ context.Context, params domain.EnqueueJobParams) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := &domain.Job{
		ID:          uuid.New(),
		JobType:     params.JobType,
		Payload:     append([]byte(nil), params.Payload...),
		Status:      domain.JobStatusPending,
		Priority:    params.Priority,
		MaxAttempts: params.MaxAttempts,
		ScheduledAt: params.ScheduledAt,
		CreatedAt:   s.now(),
	}
	s.jobs[job.ID] = job
	copied := *job
	return &copied, nil
}

// DequeueJob claims the highest priority due job; ties go to the earliest
// scheduled.
func (s *Store) DequeueJob(_ context.Context) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var next *domain.Job
	for _, j := range s.jobs {
		if j.Status != domain.JobStatusPending || j.ScheduledAt.After(now) {
			continue
		}
		if next == nil ||
			j.Priority > next.Priority ||
			(j.Priority == next.Priority && j.ScheduledAt.Before(next.ScheduledAt)) {
			next = j
		}
	}
	if next == nil {
		return nil, domain.ErrNoJobs
	}

	next.Status = domain.JobStatusRunning
	next.StartedAt = &now
	next.Attempts++
	copied := *next
	return &copied, nil
}

func (s *Store) CompleteJob(_ context.Context, id uuid.UUID) error {
	return s.updateJob(id, func(j *domain.Job, now time.Time) {
		j.Status = domain.JobStatusCompleted
		j.CompletedAt = &now
		j.ErrorMessage = ""
	})
}

func (s *Store) RetryJob(_ context.Context, id uuid.UUID, errMsg string, runAt time.Time) error {
	return s.updateJob(id, func(j *domain.Job, _ time.Time) {
		j.Status = domain.JobStatusPending
		j.StartedAt = nil
		j.ScheduledAt = runAt
		j.ErrorMessage = errMsg
	})
}

func (s *Store) FailJob(_ context.Context, id uuid.UUID, errMsg string) error {
	return s.updateJob(id, func(j *domain.Job, now time.Time) {
		j.Status = domain.JobStatusFailed
		j.CompletedAt = &now
		j.ErrorMessage = errMsg
	})
}

func (s *Store) RecoverStaleJobs(_ context.Context, threshold time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-threshold)
	var count int64
	for _, j := range s.jobs {
		if j.Status == domain.JobStatusRunning && j.StartedAt != nil && j.StartedAt.Before(cutoff) {
			j.Status = domain.JobStatusPending
			j.StartedAt = nil
			count++
		}
	}
	return count, nil
}

// Job returns a copy of a job, for inspection in tests.
func (s *Store) Job(id uuid.UUID) (domain.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, false
	}
	return *j, true
}

// Jobs returns copies of all jobs of the given type.
func (s *Store) Jobs(jobType string) []domain.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var jobs []domain.Job
	for _, j := range s.jobs {
		if j.JobType == jobType {
			jobs = append(jobs, *j)
		}
	}
	return jobs
}

func (s *Store) updateJob(id uuid.UUID, fn func(j *domain.Job, now time.Time)) error {
	const op = "memory.update_job"

	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return domain.NotFound(op, "job", id.String())
	}
	fn(j, s.now())
	return nil
}
