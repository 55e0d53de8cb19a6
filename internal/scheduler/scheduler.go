// Package scheduler resolves reports whose review window has passed and
// drives the periodic officer notification dispatch.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DukeRupert/bwg/internal/domain"
	"github.com/DukeRupert/bwg/internal/lock"
	"github.com/DukeRupert/bwg/internal/metrics"
	"github.com/DukeRupert/bwg/internal/notify"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Dispatcher sends notifications for the reports still awaiting review.
type Dispatcher interface {
	DispatchPending(ctx context.Context) (*notify.DispatchResult, error)
}

// SweepResult summarizes one expiry sweep.
type SweepResult struct {
	ProcessedCount int      `json:"processedCount"`
	ApprovedCount  int      `json:"approvedCount"`
	RejectedCount  int      `json:"rejectedCount"`
	SkippedCount   int      `json:"skippedCount"`
	Errors         []string `json:"errors"`
}

// Scheduler periodically resolves expired PENDING reports.
type Scheduler struct {
	store      domain.ReportStore
	dispatcher Dispatcher
	locker     lock.Locker
	config     Config
	logger     *slog.Logger

	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a Scheduler. A nil dispatcher disables the notification
// ticker; a nil locker lets every replica sweep.
func New(store domain.ReportStore, dispatcher Dispatcher, locker lock.Locker, config Config, logger *slog.Logger) (*Scheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if locker == nil {
		locker = lock.LocalLocker{}
	}

	return &Scheduler{
		store:      store,
		dispatcher: dispatcher,
		locker:     locker,
		config:     config,
		logger:     logger,
		stopCh:     make(chan struct{}),
	}, nil
}

// Start launches the sweep loop and, if a dispatcher is set, the
// notification loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx, "expiry_sweep", s.config.Interval, s.lockedSweep)

	if s.dispatcher != nil && s.config.NotifyInterval > 0 {
		s.wg.Add(1)
		go s.loop(ctx, "notification_dispatch", s.config.NotifyInterval, s.dispatch)
	}

	s.logger.Info("Scheduler started",
		"interval", s.config.Interval,
		"notify_interval", s.config.NotifyInterval,
		"threshold", s.config.Threshold,
	)
}

// Stop signals both loops to exit and waits for an in-progress run.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping scheduler...")
		close(s.stopCh)
	})
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, run func(context.Context)) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.logger.Debug("Scheduler tick", "task", name)
			run(ctx)
		}
	}
}

func (s *Scheduler) lockedSweep(ctx context.Context) {
	lease, err := s.locker.Obtain(ctx, s.config.LockKey, s.config.LockTTL)
	if errors.Is(err, lock.ErrNotObtained) {
		metrics.SweepSkipped()
		s.logger.Debug("Expiry sweep held by another replica")
		return
	}
	if err != nil {
		s.logger.Error("Failed to obtain sweep lock", "error", err)
		return
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("Failed to release sweep lock", "error", err)
		}
	}()

	if _, err := s.RunExpirySweep(ctx); err != nil {
		s.logger.Error("Expiry sweep failed", "error", err)
	}
}

func (s *Scheduler) dispatch(ctx context.Context) {
	if _, err := s.dispatcher.DispatchPending(ctx); err != nil {
		s.logger.Error("Notification dispatch failed", "error", err)
	}
}

// RunExpirySweep resolves every PENDING report whose expiry has passed. A
// failure on one report is recorded in the result and does not stop the
// others. Reports resolved concurrently by someone else are skipped.
func (s *Scheduler) RunExpirySweep(ctx context.Context) (*SweepResult, error) {
	const op = "Scheduler.RunExpirySweep"

	start := s.config.Now()
	reports, err := s.store.ListExpiredPending(ctx, start)
	if err != nil {
		metrics.SweepFailed()
		return nil, domain.Internal(err, op, "failed to list expired reports")
	}

	var (
		approved, rejected, skipped atomic.Int32
		mu                          sync.Mutex
		itemErrors                  []string
		wg                          sync.WaitGroup
	)
	sem := make(chan struct{}, s.config.Concurrency)

	for _, r := range reports {
		wg.Add(1)
		sem <- struct{}{}

		go func(id uuid.UUID) {
			defer wg.Done()
			defer func() { <-sem }()

			status, err := s.resolveExpired(ctx, id)
			switch {
			case errors.Is(err, domain.ErrAlreadyResolved):
				skipped.Add(1)
				metrics.ResolutionConflict("scheduler")
				s.logger.Info("Report resolved before expiry sweep reached it", "report_id", id)
			case err != nil:
				s.logger.Error("Failed to process expired report", "report_id", id, "error", err)
				mu.Lock()
				itemErrors = append(itemErrors, fmt.Sprintf("Error processing report %s: %s", id, err))
				mu.Unlock()
			case status == domain.StatusAutoApproved:
				approved.Add(1)
			default:
				rejected.Add(1)
			}
		}(r.ID)
	}
	wg.Wait()

	result := &SweepResult{
		ApprovedCount: int(approved.Load()),
		RejectedCount: int(rejected.Load()),
		SkippedCount:  int(skipped.Load()),
		Errors:        itemErrors,
	}
	result.ProcessedCount = result.ApprovedCount + result.RejectedCount
	if result.Errors == nil {
		result.Errors = []string{}
	}

	metrics.SweepCompleted(s.config.Now().Sub(start), len(result.Errors))
	s.logger.Info("Expiry sweep completed",
		"candidates", len(reports),
		"approved", result.ApprovedCount,
		"rejected", result.RejectedCount,
		"skipped", result.SkippedCount,
		"errors", len(result.Errors),
	)
	return result, nil
}

// resolveExpired decides one report from its current verification
// probability, read under the store lock.
func (s *Scheduler) resolveExpired(ctx context.Context, id uuid.UUID) (domain.VerificationStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.ItemTimeout)
	defer cancel()

	threshold := s.config.Threshold
	updated, err := s.store.UpdateReport(ctx, id, func(r *domain.Report, account *domain.SocietyAccount) (*domain.AccountDelta, error) {
		res := domain.Resolution{
			Outcome:     domain.OutcomeApprove,
			ProcessedBy: domain.ProcessedByScheduler,
			At:          s.config.Now(),
		}
		if r.VerificationProbability < threshold {
			res.Outcome = domain.OutcomeReject
			res.RejectionReason = RejectionReason(r.VerificationProbability, threshold)
		}
		return r.Resolve(account, res)
	})
	if err != nil {
		return "", err
	}

	rebate := decimal.Zero
	if updated.RebateAmount != nil {
		rebate = *updated.RebateAmount
	}
	metrics.ReportResolved(string(updated.VerificationStatus), string(updated.ApprovalType), rebate)
	s.logger.Info("Expired report auto-processed",
		"report_id", id,
		"status", updated.VerificationStatus,
		"verification_probability", updated.VerificationProbability,
		"rebate", rebate.StringFixed(2),
	)
	return updated.VerificationStatus, nil
}

// RejectionReason is the reason recorded on reports rejected for a low
// verification probability.
func RejectionReason(probability, threshold float64) string {
	return fmt.Sprintf("Auto-rejected: verification probability (%s%%) below threshold (%s%%)",
		formatPercent(probability), formatPercent(threshold))
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
