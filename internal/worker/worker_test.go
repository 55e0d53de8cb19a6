package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DukeRupert/bwg/internal/domain"
	"github.com/DukeRupert/bwg/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	valid := DefaultConfig()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid default config", mutate: func(c *Config) {}, wantErr: false},
		{name: "concurrency too low", mutate: func(c *Config) { c.Concurrency = 0 }, wantErr: true},
		{name: "concurrency too high", mutate: func(c *Config) { c.Concurrency = 101 }, wantErr: true},
		{name: "poll interval too short", mutate: func(c *Config) { c.PollInterval = 500 * time.Millisecond }, wantErr: true},
		{name: "stale threshold too short", mutate: func(c *Config) { c.StaleJobThreshold = time.Second }, wantErr: true},
		{name: "retry cap below base", mutate: func(c *Config) { c.RetryMaxDelay = time.Second }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_RetryDelay(t *testing.T) {
	c := DefaultConfig()

	assert.Equal(t, 30*time.Second, c.retryDelay(1))
	assert.Equal(t, 60*time.Second, c.retryDelay(2))
	assert.Equal(t, 120*time.Second, c.retryDelay(3))
	assert.Equal(t, 30*time.Minute, c.retryDelay(20))
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "permanent error", err: NewPermanentError(context.Canceled), want: true},
		{name: "wrapped permanent error", err: errors.Join(errors.New("outer"), NewPermanentError(context.Canceled)), want: true},
		{name: "regular error", err: context.Canceled, want: false},
		{name: "nil error", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPermanent(tt.err))
		})
	}
}

// stubHandler records calls and returns the queued errors in order.
type stubHandler struct {
	jobType  string
	errs     []error
	calls    int
	payloads [][]byte
}

func (h *stubHandler) Type() string { return h.jobType }

func (h *stubHandler) Handle(_ context.Context, payload []byte) error {
	h.calls++
	h.payloads = append(h.payloads, payload)
	if len(h.errs) == 0 {
		return nil
	}
	err := h.errs[0]
	h.errs = h.errs[1:]
	return err
}

func newTestWorker(t *testing.T, store *memory.Store) *Worker {
	t.Helper()
	w, err := New(store, DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return w
}

func TestWorker_ProcessNext(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("completes job", func(t *testing.T) {
		store := memory.New().WithClock(func() time.Time { return now })
		w := newTestWorker(t, store)
		h := &stubHandler{jobType: JobTypeNotifyNewReport}
		w.Register(h)

		job, err := EnqueueJob(ctx, store, JobTypeNotifyNewReport, NotifyNewReportPayload{}, func(p *domain.EnqueueJobParams) {
			p.ScheduledAt = now
		})
		require.NoError(t, err)

		require.NoError(t, w.ProcessNext(ctx, nil))
		assert.Equal(t, 1, h.calls)

		got, ok := store.Job(job.ID)
		require.True(t, ok)
		assert.Equal(t, domain.JobStatusCompleted, got.Status)

		assert.ErrorIs(t, w.ProcessNext(ctx, nil), domain.ErrNoJobs)
	})

	t.Run("transient failure is retried with backoff", func(t *testing.T) {
		store := memory.New().WithClock(func() time.Time { return now })
		w := newTestWorker(t, store)
		w.now = func() time.Time { return now }
		h := &stubHandler{jobType: JobTypeTriggerDetection, errs: []error{errors.New("timeout")}}
		w.Register(h)

		job, err := store.EnqueueJob(ctx, domain.EnqueueJobParams{
			JobType: JobTypeTriggerDetection, Payload: []byte(`{}`), MaxAttempts: 3, ScheduledAt: now,
		})
		require.NoError(t, err)

		require.Error(t, w.ProcessNext(ctx, nil))

		got, ok := store.Job(job.ID)
		require.True(t, ok)
		assert.Equal(t, domain.JobStatusPending, got.Status)
		assert.Equal(t, now.Add(30*time.Second), got.ScheduledAt)
		assert.Equal(t, "timeout", got.ErrorMessage)
	})

	t.Run("permanent failure is not retried", func(t *testing.T) {
		store := memory.New().WithClock(func() time.Time { return now })
		w := newTestWorker(t, store)
		h := &stubHandler{jobType: JobTypeTriggerDetection, errs: []error{NewPermanentError(errors.New("bad payload"))}}
		w.Register(h)

		job, err := store.EnqueueJob(ctx, domain.EnqueueJobParams{
			JobType: JobTypeTriggerDetection, Payload: []byte(`{}`), MaxAttempts: 3, ScheduledAt: now,
		})
		require.NoError(t, err)

		require.Error(t, w.ProcessNext(ctx, nil))

		got, _ := store.Job(job.ID)
		assert.Equal(t, domain.JobStatusFailed, got.Status)
	})

	t.Run("last attempt fails job", func(t *testing.T) {
		store := memory.New().WithClock(func() time.Time { return now })
		w := newTestWorker(t, store)
		h := &stubHandler{jobType: JobTypeTriggerDetection, errs: []error{errors.New("unavailable")}}
		w.Register(h)

		job, err := store.EnqueueJob(ctx, domain.EnqueueJobParams{
			JobType: JobTypeTriggerDetection, Payload: []byte(`{}`), MaxAttempts: 1, ScheduledAt: now,
		})
		require.NoError(t, err)

		require.Error(t, w.ProcessNext(ctx, nil))

		got, _ := store.Job(job.ID)
		assert.Equal(t, domain.JobStatusFailed, got.Status)
	})

	t.Run("unknown job type fails permanently", func(t *testing.T) {
		store := memory.New().WithClock(func() time.Time { return now })
		w := newTestWorker(t, store)

		job, err := store.EnqueueJob(ctx, domain.EnqueueJobParams{
			JobType: "mystery", Payload: []byte(`{}`), MaxAttempts: 3, ScheduledAt: now,
		})
		require.NoError(t, err)

		require.Error(t, w.ProcessNext(ctx, nil))

		got, _ := store.Job(job.ID)
		assert.Equal(t, domain.JobStatusFailed, got.Status)
	})
}

func TestEnqueueNotifyNewReport_UsesHighPriority(t *testing.T) {
	store := memory.New()

	job, err := EnqueueNotifyNewReport(context.Background(), store, [16]byte{1})
	require.NoError(t, err)
	assert.Equal(t, int32(PriorityHigh), job.Priority)
	assert.Equal(t, JobTypeNotifyNewReport, job.JobType)
}
