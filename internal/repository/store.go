package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/DukeRupert/bwg/internal/domain"
	"github.com/google/uuid"
)

// Store implements domain.Store on PostgreSQL.
type Store struct {
	db      *sql.DB
	queries *Queries
}

var _ domain.Store = (*Store)(nil)

// NewStore creates a Store backed by db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, queries: New(db)}
}

// Queries exposes the underlying query set.
func (s *Store) Queries() *Queries {
	return s.queries
}

// =============================================================================
// Reports
// =============================================================================

func (s *Store) CreateReport(ctx context.Context, r *domain.Report) error {
	const op = "repository.create_report"

	params, err := createReportParams(r)
	if err != nil {
		return domain.Internal(err, op, "failed to encode report")
	}
	row, err := s.queries.CreateReport(ctx, params)
	if err != nil {
		return domain.Internal(err, op, "failed to create report")
	}
	r.CreatedAt = row.CreatedAt
	r.UpdatedAt = row.UpdatedAt
	return nil
}

func (s *Store) GetReport(ctx context.Context, id uuid.UUID) (*domain.Report, error) {
	const op = "repository.get_report"

	row, err := s.queries.GetReport(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "report", id.String())
		}
		return nil, domain.Internal(err, op, "failed to get report")
	}
	r, err := reportFromRow(row)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to decode report")
	}
	return r, nil
}

func (s *Store) ListReports(ctx context.Context, filter domain.ReportFilter) ([]domain.Report, int64, error) {
	const op = "repository.list_reports"

	var societyID, submitterID uuid.NullUUID
	if filter.SocietyID != nil {
		societyID = uuid.NullUUID{UUID: *filter.SocietyID, Valid: true}
	}
	if filter.SubmitterID != nil {
		submitterID = uuid.NullUUID{UUID: *filter.SubmitterID, Valid: true}
	}

	rows, err := s.queries.ListReports(ctx, ListReportsParams{
		Status:      string(filter.Status),
		SocietyID:   societyID,
		SubmitterID: submitterID,
		Limit:       int32(filter.Limit),
		Offset:      int32(filter.Offset),
	})
	if err != nil {
		return nil, 0, domain.Internal(err, op, "failed to list reports")
	}
	total, err := s.queries.CountReports(ctx, CountReportsParams{
		Status:      string(filter.Status),
		SocietyID:   societyID,
		SubmitterID: submitterID,
	})
	if err != nil {
		return nil, 0, domain.Internal(err, op, "failed to count reports")
	}

	reports, err := reportsFromRows(rows)
	if err != nil {
		return nil, 0, domain.Internal(err, op, "failed to decode reports")
	}
	return reports, total, nil
}

func (s *Store) ListExpiredPending(ctx context.Context, now time.Time) ([]domain.Report, error) {
	const op = "repository.list_expired_pending"

	rows, err := s.queries.ListExpiredPendingReports(ctx, now)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list expired reports")
	}
	reports, err := reportsFromRows(rows)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to decode reports")
	}
	return reports, nil
}

func (s *Store) ListPendingUnexpired(ctx context.Context, now time.Time) ([]domain.Report, error) {
	const op = "repository.list_pending_unexpired"

	rows, err := s.queries.ListPendingUnexpiredReports(ctx, now)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list pending reports")
	}
	reports, err := reportsFromRows(rows)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to decode reports")
	}
	return reports, nil
}

// UpdateReport runs fn on the report while holding its row lock. The report
// write is conditioned on the status read under the lock, and the account
// delta is applied with in-place increments in the same transaction.
func (s *Store) UpdateReport(ctx context.Context, id uuid.UUID, fn domain.UpdateReportFunc) (*domain.Report, error) {
	const op = "repository.update_report"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	row, err := qtx.GetReportForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "report", id.String())
		}
		return nil, domain.Internal(err, op, "failed to lock report")
	}
	report, err := reportFromRow(row)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to decode report")
	}
	prev := report.VerificationStatus

	var account *domain.SocietyAccount
	accountRow, err := qtx.GetSociety(ctx, report.SocietyID)
	switch {
	case err == nil:
		account = societyFromRow(accountRow)
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, domain.Internal(err, op, "failed to load society")
	}

	delta, err := fn(report, account)
	if err != nil {
		return nil, err
	}

	params, err := updateReportParams(report, prev)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to encode report")
	}
	n, err := qtx.UpdateReport(ctx, params)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to update report")
	}
	if n == 0 {
		// Unreachable while the row lock is held; kept as the status guard.
		return nil, domain.AlreadyResolved(op, prev)
	}

	if delta != nil && account != nil {
		if _, err := qtx.ApplyAccountDelta(ctx, ApplyAccountDeltaParams{
			ID:             account.ID,
			Rebate:         delta.Rebate,
			Approved:       delta.Approved,
			Rejected:       delta.Rejected,
			ComplianceDate: delta.ComplianceDate,
		}); err != nil {
			return nil, domain.Internal(err, op, "failed to update society account")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.Internal(err, op, "failed to commit report update")
	}
	return report, nil
}

func (s *Store) ListRebateLines(ctx context.Context, societyID uuid.UUID) ([]domain.RebateLine, error) {
	const op = "repository.list_rebate_lines"

	rows, err := s.queries.ListRebateLines(ctx, societyID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list rebates")
	}
	lines := make([]domain.RebateLine, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, domain.RebateLine{
			ReportID:           row.ID,
			SubmissionDate:     row.SubmissionDate,
			RebateAmount:       row.RebateAmount,
			ApprovedDays:       int(row.ApprovedDays),
			VerificationStatus: domain.VerificationStatus(row.VerificationStatus),
			ApprovalType:       domain.ApprovalType(row.ApprovalType),
		})
	}
	return lines, nil
}

func (s *Store) ListSocietyReportStats(ctx context.Context) ([]domain.SocietyReportStats, error) {
	const op = "repository.list_society_report_stats"

	rows, err := s.queries.ListSocietyReportStats(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to aggregate society stats")
	}
	stats := make([]domain.SocietyReportStats, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, domain.SocietyReportStats{
			SocietyID:          row.ID,
			SocietyName:        row.SocietyName,
			TotalReports:       int(row.TotalReports),
			ApprovedReports:    int(row.ApprovedReports),
			AvgVerification:    row.AvgVerification,
			ComplianceStreak:   int(row.ComplianceStreak),
			TotalRebatesEarned: row.TotalRebatesEarned,
			LastComplianceDate: timePtr(row.LastComplianceDate),
		})
	}
	return stats, nil
}

// =============================================================================
// Societies and officers
// =============================================================================

func (s *Store) CreateSociety(ctx context.Context, account *domain.SocietyAccount) error {
	const op = "repository.create_society"

	params := CreateSocietyParams{
		ID:                  account.ID,
		SocietyName:         account.SocietyName,
		Email:               account.Email,
		Phone:               account.Phone,
		AddressStreet:       account.Address.Street,
		AddressCity:         account.Address.City,
		AddressState:        account.Address.State,
		AddressPincode:      account.Address.Pincode,
		PropertyTaxEstimate: account.PropertyTaxEstimate,
		WalletBalance:       account.WalletBalance,
		TotalRebatesEarned:  account.TotalRebatesEarned,
		ComplianceStreak:    int32(account.ComplianceStreak),
		IsActive:            account.IsActive,
		IsVerified:          account.IsVerified,
	}
	if account.GeoLockCoordinates != nil {
		params.GeoLockLatitude = sql.NullFloat64{Float64: account.GeoLockCoordinates.Latitude, Valid: true}
		params.GeoLockLongitude = sql.NullFloat64{Float64: account.GeoLockCoordinates.Longitude, Valid: true}
	}

	row, err := s.queries.CreateSociety(ctx, params)
	if err != nil {
		return domain.Internal(err, op, "failed to create society")
	}
	account.CreatedAt = row.CreatedAt
	account.UpdatedAt = row.UpdatedAt
	return nil
}

func (s *Store) GetSociety(ctx context.Context, id uuid.UUID) (*domain.SocietyAccount, error) {
	const op = "repository.get_society"

	row, err := s.queries.GetSociety(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "society", id.String())
		}
		return nil, domain.Internal(err, op, "failed to get society")
	}
	return societyFromRow(row), nil
}

func (s *Store) CreateOfficer(ctx context.Context, o *domain.Officer) error {
	const op = "repository.create_officer"

	row, err := s.queries.CreateOfficer(ctx, CreateOfficerParams{
		ID:       o.ID,
		Name:     o.Name,
		Email:    o.Email,
		IsActive: o.IsActive,
	})
	if err != nil {
		return domain.Internal(err, op, "failed to create officer")
	}
	o.CreatedAt = row.CreatedAt
	return nil
}

func (s *Store) GetOfficer(ctx context.Context, id uuid.UUID) (*domain.Officer, error) {
	const op = "repository.get_officer"

	row, err := s.queries.GetOfficer(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "officer", id.String())
		}
		return nil, domain.Internal(err, op, "failed to get officer")
	}
	o := officerFromRow(row)
	return &o, nil
}

func (s *Store) ListActiveOfficers(ctx context.Context) ([]domain.Officer, error) {
	const op = "repository.list_active_officers"

	rows, err := s.queries.ListActiveOfficers(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list officers")
	}
	officers := make([]domain.Officer, 0, len(rows))
	for _, row := range rows {
		officers = append(officers, officerFromRow(row))
	}
	return officers, nil
}

// =============================================================================
// Notifications
// =============================================================================

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) error {
	const op = "repository.create_notification"

	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return domain.Internal(err, op, "failed to encode notification payload")
	}
	row, err := s.queries.CreateNotification(ctx, CreateNotificationParams{
		ID:        n.ID,
		OfficerID: n.OfficerID,
		Type:      string(n.Type),
		ReportID:  n.ReportID,
		Title:     n.Title,
		Message:   n.Message,
		Payload:   payload,
	})
	if err != nil {
		return domain.Internal(err, op, "failed to create notification")
	}
	n.CreatedAt = row.CreatedAt
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, officerID uuid.UUID, filter domain.NotificationFilter) ([]domain.Notification, int64, error) {
	const op = "repository.list_notifications"

	rows, err := s.queries.ListNotifications(ctx, ListNotificationsParams{
		OfficerID:  officerID,
		UnreadOnly: filter.UnreadOnly,
		Limit:      int32(filter.Limit),
		Offset:     int32(filter.Offset),
	})
	if err != nil {
		return nil, 0, domain.Internal(err, op, "failed to list notifications")
	}
	total, err := s.queries.CountNotifications(ctx, CountNotificationsParams{
		OfficerID:  officerID,
		UnreadOnly: filter.UnreadOnly,
	})
	if err != nil {
		return nil, 0, domain.Internal(err, op, "failed to count notifications")
	}

	notifications := make([]domain.Notification, 0, len(rows))
	for _, row := range rows {
		n, err := notificationFromRow(row)
		if err != nil {
			return nil, 0, domain.Internal(err, op, "failed to decode notification")
		}
		notifications = append(notifications, n)
	}
	return notifications, total, nil
}

func (s *Store) CountUnreadNotifications(ctx context.Context, officerID uuid.UUID) (int64, error) {
	const op = "repository.count_unread_notifications"

	count, err := s.queries.CountNotifications(ctx, CountNotificationsParams{
		OfficerID:  officerID,
		UnreadOnly: true,
	})
	if err != nil {
		return 0, domain.Internal(err, op, "failed to count notifications")
	}
	return count, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, officerID, id uuid.UUID) error {
	const op = "repository.mark_notification_read"

	n, err := s.queries.MarkNotificationRead(ctx, MarkNotificationReadParams{ID: id, OfficerID: officerID})
	if err != nil {
		return domain.Internal(err, op, "failed to mark notification read")
	}
	if n == 0 {
		return domain.NotFound(op, "notification", id.String())
	}
	return nil
}

// =============================================================================
// Jobs
// =============================================================================

func (s *Store) EnqueueJob(ctx context.Context, params domain.EnqueueJobParams) (*domain.Job, error) {
	row, err := s.queries.EnqueueJob(ctx, EnqueueJobParams{
		ID:          uuid.New(),
		JobType:     params.JobType,
		Payload:     params.Payload,
		Priority:    params.Priority,
		MaxAttempts: params.MaxAttempts,
		ScheduledAt: params.ScheduledAt,
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	return jobFromRow(row), nil
}

func (s *Store) DequeueJob(ctx context.Context) (*domain.Job, error) {
	row, err := s.queries.DequeueJob(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNoJobs
		}
		return nil, fmt.Errorf("dequeue job: %w", err)
	}
	return jobFromRow(row), nil
}

func (s *Store) CompleteJob(ctx context.Context, id uuid.UUID) error {
	if err := s.queries.UpdateJobCompleted(ctx, id); err != nil {
		return fmt.Errorf("update job completed: %w", err)
	}
	return nil
}

func (s *Store) RetryJob(ctx context.Context, id uuid.UUID, errMsg string, runAt time.Time) error {
	if err := s.queries.UpdateJobRetry(ctx, UpdateJobRetryParams{
		ID:           id,
		ScheduledAt:  runAt,
		ErrorMessage: nullString(errMsg),
	}); err != nil {
		return fmt.Errorf("update job retry: %w", err)
	}
	return nil
}

func (s *Store) FailJob(ctx context.Context, id uuid.UUID, errMsg string) error {
	if err := s.queries.UpdateJobFailed(ctx, UpdateJobFailedParams{
		ID:           id,
		ErrorMessage: nullString(errMsg),
	}); err != nil {
		return fmt.Errorf("update job failed: %w", err)
	}
	return nil
}

func (s *Store) RecoverStaleJobs(ctx context.Context, threshold time.Duration) (int64, error) {
	count, err := s.queries.RecoverStaleJobs(ctx, threshold.Seconds())
	if err != nil {
		return 0, fmt.Errorf("recover stale jobs: %w", err)
	}
	return count, nil
}
