package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UpdateReportFunc mutates a report loaded under the store's per-report
// lock. The account is the report's society, or nil if it does not exist.
// Returning an error aborts the update and nothing is persisted; a non-nil
// delta is applied to the society account in the same unit of work.
type UpdateReportFunc func(r *Report, account *SocietyAccount) (*AccountDelta, error)

// ReportStore persists reports. UpdateReport is the only way to modify an
// existing report and guarantees at-most-once resolution: two concurrent
// callers never both observe the same PENDING report.
type ReportStore interface {
	CreateReport(ctx context.Context, r *Report) error
	GetReport(ctx context.Context, id uuid.UUID) (*Report, error)
	ListReports(ctx context.Context, filter ReportFilter) ([]Report, int64, error)

	// ListExpiredPending returns PENDING reports whose expiry is before now.
	ListExpiredPending(ctx context.Context, now time.Time) ([]Report, error)

	// ListPendingUnexpired returns PENDING reports still inside their window.
	ListPendingUnexpired(ctx context.Context, now time.Time) ([]Report, error)

	UpdateReport(ctx context.Context, id uuid.UUID, fn UpdateReportFunc) (*Report, error)

	// ListRebateLines returns the society's approved reports with a rebate,
	// newest submission first.
	ListRebateLines(ctx context.Context, societyID uuid.UUID) ([]RebateLine, error)

	// ListSocietyReportStats aggregates reports per active, verified society.
	ListSocietyReportStats(ctx context.Context) ([]SocietyReportStats, error)
}

// SocietyStore persists society accounts.
type SocietyStore interface {
	CreateSociety(ctx context.Context, s *SocietyAccount) error
	GetSociety(ctx context.Context, id uuid.UUID) (*SocietyAccount, error)
}

// OfficerStore reads officers.
type OfficerStore interface {
	CreateOfficer(ctx context.Context, o *Officer) error
	GetOfficer(ctx context.Context, id uuid.UUID) (*Officer, error)
	ListActiveOfficers(ctx context.Context) ([]Officer, error)
}

// NotificationStore persists officer notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *Notification) error
	ListNotifications(ctx context.Context, officerID uuid.UUID, filter NotificationFilter) ([]Notification, int64, error)
	CountUnreadNotifications(ctx context.Context, officerID uuid.UUID) (int64, error)
	MarkNotificationRead(ctx context.Context, officerID, id uuid.UUID) error
}

// JobStore is the durable queue behind the background worker.
type JobStore interface {
	EnqueueJob(ctx context.Context, params EnqueueJobParams) (*Job, error)

	// DequeueJob claims the highest priority due job, marks it running and
	// increments its attempts. Returns ErrNoJobs if nothing is due.
	DequeueJob(ctx context.Context) (*Job, error)

	CompleteJob(ctx context.Context, id uuid.UUID) error

	// RetryJob returns a failed attempt to pending, scheduled at runAt.
	RetryJob(ctx context.Context, id uuid.UUID, errMsg string, runAt time.Time) error

	// FailJob marks the job permanently failed.
	FailJob(ctx context.Context, id uuid.UUID, errMsg string) error

	// RecoverStaleJobs resets jobs running longer than threshold to pending.
	RecoverStaleJobs(ctx context.Context, threshold time.Duration) (int64, error)
}

// Store is the full persistence surface.
type Store interface {
	ReportStore
	SocietyStore
	OfficerStore
	NotificationStore
	JobStore
}
