package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/bwg/internal/domain"
	"github.com/DukeRupert/bwg/internal/lock"
	"github.com/DukeRupert/bwg/internal/notify"
	"github.com/DukeRupert/bwg/internal/store/memory"
)

var t0 = time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)

// sweepTime is one day after the default seven day window closes.
var sweepTime = t0.AddDate(0, 0, 8)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	store   *memory.Store
	society *domain.SocietyAccount
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New().WithClock(func() time.Time { return sweepTime })

	society := &domain.SocietyAccount{
		ID:                  uuid.New(),
		SocietyName:         "Lakeview Residency",
		PropertyTaxEstimate: decimal.NewFromInt(500000),
		WalletBalance:       decimal.Zero,
		TotalRebatesEarned:  decimal.Zero,
		IsActive:            true,
		IsVerified:          true,
	}
	require.NoError(t, store.CreateSociety(context.Background(), society))
	return &fixture{store: store, society: society}
}

func (f *fixture) report(t *testing.T, probability float64, expiresAt time.Time) *domain.Report {
	t.Helper()
	r := &domain.Report{
		ID:                      uuid.New(),
		SocietyID:               f.society.ID,
		SubmitterID:             uuid.New(),
		SubmissionDate:          t0,
		SubmissionImages:        []domain.ReportImage{{URL: "https://cdn.example.com/bin.jpg", UploadedAt: t0}},
		VerificationProbability: probability,
		VerificationStatus:      domain.StatusPending,
		ApprovalType:            domain.ApprovalNone,
		ExpiresAt:               expiresAt,
		CreatedAt:               t0,
	}
	require.NoError(t, f.store.CreateReport(context.Background(), r))
	return r
}

func newScheduler(t *testing.T, store domain.ReportStore, opts ...func(*Config)) *Scheduler {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Now = func() time.Time { return sweepTime }
	for _, opt := range opts {
		opt(&cfg)
	}
	s, err := New(store, nil, nil, cfg, discardLogger())
	require.NoError(t, err)
	return s
}

func get(t *testing.T, store domain.ReportStore, id uuid.UUID) *domain.Report {
	t.Helper()
	r, err := store.GetReport(context.Background(), id)
	require.NoError(t, err)
	return r
}

func TestRunExpirySweep_ThresholdBoundary(t *testing.T) {
	f := newFixture(t)
	atThreshold := f.report(t, 50, t0.AddDate(0, 0, 7))
	below := f.report(t, 49.99, t0.AddDate(0, 0, 7))

	result, err := newScheduler(t, f.store).RunExpirySweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.ProcessedCount)
	assert.Equal(t, 1, result.ApprovedCount)
	assert.Equal(t, 1, result.RejectedCount)
	assert.Zero(t, result.SkippedCount)
	assert.Empty(t, result.Errors)

	approved := get(t, f.store, atThreshold.ID)
	assert.Equal(t, domain.StatusAutoApproved, approved.VerificationStatus)
	assert.Equal(t, domain.ApprovalAutomatic, approved.ApprovalType)
	assert.Equal(t, domain.ProcessedByScheduler, approved.AutoProcessedBy)
	require.NotNil(t, approved.ApprovedDays)
	assert.Equal(t, 8, *approved.ApprovedDays)
	require.NotNil(t, approved.RebateAmount)
	assert.Equal(t, "547.95", approved.RebateAmount.StringFixed(2))

	rejected := get(t, f.store, below.ID)
	assert.Equal(t, domain.StatusRejected, rejected.VerificationStatus)
	assert.Equal(t, "Auto-rejected: verification probability (49.99%) below threshold (50%)", rejected.RejectionReason)

	account, err := f.store.GetSociety(context.Background(), f.society.ID)
	require.NoError(t, err)
	assert.Equal(t, "547.95", account.WalletBalance.StringFixed(2))
}

func TestRunExpirySweep_NeverReviewedLowProbability(t *testing.T) {
	f := newFixture(t)
	r := f.report(t, 30, t0.AddDate(0, 0, 7))

	result, err := newScheduler(t, f.store).RunExpirySweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.RejectedCount)

	got := get(t, f.store, r.ID)
	assert.Equal(t, domain.StatusRejected, got.VerificationStatus)
	assert.Equal(t, domain.ApprovalAutomatic, got.ApprovalType)
	assert.Nil(t, got.RebateAmount)
	assert.Nil(t, got.OfficerID)
	require.NotNil(t, got.AutoProcessedAt)
	assert.Equal(t, sweepTime, *got.AutoProcessedAt)
	assert.Equal(t, t0.AddDate(0, 0, 7), got.ExpiresAt)
}

func TestRunExpirySweep_IgnoresOpenAndResolvedReports(t *testing.T) {
	f := newFixture(t)
	open := f.report(t, 90, sweepTime.Add(time.Hour))
	done := f.report(t, 90, t0.AddDate(0, 0, 7))

	officerID := uuid.New()
	_, err := f.store.UpdateReport(context.Background(), done.ID, func(r *domain.Report, a *domain.SocietyAccount) (*domain.AccountDelta, error) {
		return r.Resolve(a, domain.Resolution{Outcome: domain.OutcomeReject, OfficerID: &officerID, At: t0.Add(time.Hour)})
	})
	require.NoError(t, err)

	result, err := newScheduler(t, f.store).RunExpirySweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.ProcessedCount)

	assert.Equal(t, domain.StatusPending, get(t, f.store, open.ID).VerificationStatus)
	assert.Equal(t, domain.ApprovalOfficer, get(t, f.store, done.ID).ApprovalType)
}

func TestRunExpirySweep_ThresholdIsConfigurable(t *testing.T) {
	f := newFixture(t)
	r := f.report(t, 70, t0.AddDate(0, 0, 7))

	s := newScheduler(t, f.store, func(c *Config) { c.Threshold = 80 })
	result, err := s.RunExpirySweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.RejectedCount)
	assert.Equal(t, "Auto-rejected: verification probability (70%) below threshold (80%)", get(t, f.store, r.ID).RejectionReason)
}

// failingStore fails updates for a single report.
type failingStore struct {
	domain.ReportStore
	failID uuid.UUID
}

func (s *failingStore) UpdateReport(ctx context.Context, id uuid.UUID, fn domain.UpdateReportFunc) (*domain.Report, error) {
	if id == s.failID {
		return nil, domain.Internal(errors.New("connection reset"), "test.update", "failed to update report")
	}
	return s.ReportStore.UpdateReport(ctx, id, fn)
}

func TestRunExpirySweep_ItemErrorsAreIsolated(t *testing.T) {
	f := newFixture(t)
	bad := f.report(t, 90, t0.AddDate(0, 0, 7))
	good := f.report(t, 90, t0.AddDate(0, 0, 7))

	s := newScheduler(t, &failingStore{ReportStore: f.store, failID: bad.ID})
	result, err := s.RunExpirySweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.ApprovedCount)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Error processing report "+bad.ID.String()+": test.update: failed to update report", result.Errors[0])
	assert.Equal(t, domain.StatusPending, get(t, f.store, bad.ID).VerificationStatus)
	assert.Equal(t, domain.StatusAutoApproved, get(t, f.store, good.ID).VerificationStatus)
}

// listFailingStore cannot list candidates.
type listFailingStore struct {
	domain.ReportStore
}

func (listFailingStore) ListExpiredPending(context.Context, time.Time) ([]domain.Report, error) {
	return nil, errors.New("database is down")
}

func TestRunExpirySweep_ListFailure(t *testing.T) {
	f := newFixture(t)

	_, err := newScheduler(t, listFailingStore{f.store}).RunExpirySweep(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
}

// racingStore resolves each report as an officer right before the sweep's
// update reaches the store.
type racingStore struct {
	domain.ReportStore
}

func (s racingStore) UpdateReport(ctx context.Context, id uuid.UUID, fn domain.UpdateReportFunc) (*domain.Report, error) {
	officerID := uuid.New()
	_, _ = s.ReportStore.UpdateReport(ctx, id, func(r *domain.Report, a *domain.SocietyAccount) (*domain.AccountDelta, error) {
		return r.Resolve(a, domain.Resolution{Outcome: domain.OutcomeApprove, OfficerID: &officerID, At: sweepTime})
	})
	return s.ReportStore.UpdateReport(ctx, id, fn)
}

func TestRunExpirySweep_ResolvedInFlightIsSkipped(t *testing.T) {
	f := newFixture(t)
	r := f.report(t, 10, t0.AddDate(0, 0, 7))

	result, err := newScheduler(t, racingStore{f.store}).RunExpirySweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.SkippedCount)
	assert.Zero(t, result.ProcessedCount)
	assert.Empty(t, result.Errors)
	assert.Equal(t, domain.StatusOfficerApproved, get(t, f.store, r.ID).VerificationStatus)
}

func TestRunExpirySweep_ConcurrentReviewResolvesOnce(t *testing.T) {
	f := newFixture(t)
	const n = 40
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = f.report(t, 75, t0.AddDate(0, 0, 7)).ID
	}

	var (
		wg       sync.WaitGroup
		officers atomic.Int32
		result   *SweepResult
		sweepErr error
	)
	s := newScheduler(t, f.store, func(c *Config) { c.Concurrency = 8 })

	wg.Add(1)
	go func() {
		defer wg.Done()
		result, sweepErr = s.RunExpirySweep(context.Background())
	}()
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			officerID := uuid.New()
			_, err := f.store.UpdateReport(context.Background(), id, func(r *domain.Report, a *domain.SocietyAccount) (*domain.AccountDelta, error) {
				return r.Resolve(a, domain.Resolution{Outcome: domain.OutcomeApprove, OfficerID: &officerID, At: sweepTime})
			})
			if err == nil {
				officers.Add(1)
			} else if !errors.Is(err, domain.ErrAlreadyResolved) {
				t.Errorf("unexpected review error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	require.NoError(t, sweepErr)
	assert.Equal(t, n, int(officers.Load())+result.ProcessedCount)
	assert.Empty(t, result.Errors)

	for _, id := range ids {
		assert.True(t, get(t, f.store, id).VerificationStatus.IsApproved())
	}

	account, err := f.store.GetSociety(context.Background(), f.society.ID)
	require.NoError(t, err)
	perReport := domain.Rebate(f.society.PropertyTaxEstimate, 8)
	assert.Equal(t, perReport.Mul(decimal.NewFromInt(n)).StringFixed(2), account.WalletBalance.StringFixed(2))
}

// busyLocker never grants the lock.
type busyLocker struct{}

func (busyLocker) Obtain(context.Context, string, time.Duration) (lock.Lease, error) {
	return nil, lock.ErrNotObtained
}

func TestLockedSweep_SkipsWhenLockHeld(t *testing.T) {
	f := newFixture(t)
	r := f.report(t, 90, t0.AddDate(0, 0, 7))

	cfg := DefaultConfig()
	cfg.Now = func() time.Time { return sweepTime }
	s, err := New(f.store, nil, busyLocker{}, cfg, discardLogger())
	require.NoError(t, err)

	s.lockedSweep(context.Background())
	assert.Equal(t, domain.StatusPending, get(t, f.store, r.ID).VerificationStatus)
}

type countingDispatcher struct {
	calls atomic.Int32
}

func (d *countingDispatcher) DispatchPending(context.Context) (*notify.DispatchResult, error) {
	d.calls.Add(1)
	return &notify.DispatchResult{}, nil
}

func TestScheduler_StartStop(t *testing.T) {
	f := newFixture(t)
	r := f.report(t, 90, t0.AddDate(0, 0, 7))
	dispatcher := &countingDispatcher{}

	cfg := DefaultConfig()
	cfg.Now = func() time.Time { return sweepTime }
	cfg.Interval = 10 * time.Millisecond
	cfg.NotifyInterval = 10 * time.Millisecond
	s, err := New(f.store, dispatcher, lock.LocalLocker{}, cfg, discardLogger())
	require.NoError(t, err)

	s.Start(context.Background())
	assert.Eventually(t, func() bool {
		return get(t, f.store, r.ID).VerificationStatus == domain.StatusAutoApproved && dispatcher.calls.Load() > 0
	}, 2*time.Second, 10*time.Millisecond)

	s.Stop()
	s.Stop()
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "threshold above 100", mutate: func(c *Config) { c.Threshold = 101 }, wantErr: true},
		{name: "zero interval", mutate: func(c *Config) { c.Interval = 0 }, wantErr: true},
		{name: "notify disabled", mutate: func(c *Config) { c.NotifyInterval = 0 }},
		{name: "zero concurrency", mutate: func(c *Config) { c.Concurrency = 0 }, wantErr: true},
		{name: "missing clock", mutate: func(c *Config) { c.Now = nil }, wantErr: true},
		{name: "missing lock key", mutate: func(c *Config) { c.LockKey = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
