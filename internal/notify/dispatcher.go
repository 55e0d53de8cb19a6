// Package notify tells officers about reports awaiting review. Every
// notification is written to the officer's in-app inbox and, when an
// e-mail service is configured, mailed to them.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/bwg/internal/domain"
	"github.com/DukeRupert/bwg/internal/email"
	"github.com/DukeRupert/bwg/internal/metrics"
)

// Channel names recorded in metrics.
const (
	ChannelInApp = "in_app"
	ChannelEmail = "email"
)

// errUnchanged aborts a bookkeeping save that has nothing to write.
var errUnchanged = errors.New("report unchanged")

// Store is the persistence the dispatcher needs.
type Store interface {
	domain.ReportStore
	domain.SocietyStore
	domain.OfficerStore
	domain.NotificationStore
}

// Config holds dispatcher settings.
type Config struct {
	// ReminderAfter is how long after the last notification an officer is
	// reminded about a report that is still pending.
	// Default: 24 hours
	ReminderAfter time.Duration
}

// DispatchResult summarizes one dispatch run.
type DispatchResult struct {
	Reports    int `json:"reports"`
	NewReports int `json:"newReports"`
	Reminders  int `json:"reminders"`
	Failed     int `json:"failed"`
	Expired    int `json:"expired"`
}

func (r *DispatchResult) add(o DispatchResult) {
	r.Reports += o.Reports
	r.NewReports += o.NewReports
	r.Reminders += o.Reminders
	r.Failed += o.Failed
	r.Expired += o.Expired
}

// Dispatcher sends NEW_REPORT and REPORT_REMINDER notifications.
type Dispatcher struct {
	store  Store
	mailer email.EmailService
	config Config
	logger *slog.Logger
	now    func() time.Time
}

// NewDispatcher creates a Dispatcher. A nil mailer disables e-mail.
func NewDispatcher(store Store, mailer email.EmailService, config Config, logger *slog.Logger, now func() time.Time) *Dispatcher {
	if config.ReminderAfter <= 0 {
		config.ReminderAfter = 24 * time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		store:  store,
		mailer: mailer,
		config: config,
		logger: logger,
		now:    now,
	}
}

// NotifyNewReport notifies every active officer who has not yet seen the
// report. Reports that are no longer awaiting review are ignored.
func (d *Dispatcher) NotifyNewReport(ctx context.Context, reportID uuid.UUID) (*DispatchResult, error) {
	const op = "Dispatcher.NotifyNewReport"

	report, err := d.store.GetReport(ctx, reportID)
	if err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			return nil, err
		}
		return nil, domain.Internal(err, op, "failed to load report")
	}

	officers, err := d.store.ListActiveOfficers(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list officers")
	}

	result := d.notifyReport(ctx, report, officers, false)
	return &result, nil
}

// DispatchPending notifies officers about every PENDING report still inside
// its review window and sends reminders for reports left unreviewed.
func (d *Dispatcher) DispatchPending(ctx context.Context) (*DispatchResult, error) {
	const op = "Dispatcher.DispatchPending"

	reports, err := d.store.ListPendingUnexpired(ctx, d.now())
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list pending reports")
	}

	result := &DispatchResult{}
	if len(reports) == 0 {
		return result, nil
	}

	officers, err := d.store.ListActiveOfficers(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list officers")
	}

	for i := range reports {
		if ctx.Err() != nil {
			break
		}
		result.add(d.notifyReport(ctx, &reports[i], officers, true))
	}

	d.logger.Info("Notification dispatch completed",
		"reports", result.Reports,
		"new_reports", result.NewReports,
		"reminders", result.Reminders,
		"failed", result.Failed,
	)
	return result, nil
}

// notifyReport sends what is due for one report. Recipients are claimed on
// the report before anything is sent, so concurrent passes never notify the
// same officer twice. Claims whose delivery failed are released afterwards.
func (d *Dispatcher) notifyReport(ctx context.Context, report *domain.Report, officers []domain.Officer, reminders bool) DispatchResult {
	now := d.now()
	result := DispatchResult{}
	if !report.IsPending() || report.IsExpired(now) {
		return result
	}
	result.Reports = 1

	societyName := ""
	if society, err := d.store.GetSociety(ctx, report.SocietyID); err == nil {
		societyName = society.SocietyName
	}

	c, err := d.claimSends(ctx, report.ID, officers, reminders, now)
	if err != nil {
		d.logger.Error("Failed to claim notifications", "report_id", report.ID, "error", err)
		return result
	}
	if c.expired {
		result.Expired++
		return result
	}

	var failed []uuid.UUID
	for _, officer := range c.newReport {
		if d.send(ctx, officer, report, societyName, domain.NotificationNewReport, now) {
			result.NewReports++
		} else {
			failed = append(failed, officer.ID)
			result.Failed++
		}
	}
	for _, officer := range c.remind {
		if d.send(ctx, officer, report, societyName, domain.NotificationReminder, now) {
			result.Reminders++
		} else {
			result.Failed++
		}
	}

	reminderLost := len(c.remind) > 0 && result.Reminders == 0
	if len(failed) > 0 || reminderLost {
		if err := d.releaseClaims(ctx, report.ID, failed, reminderLost, c); err != nil {
			d.logger.Error("Failed to release notification claims", "report_id", report.ID, "error", err)
		}
	}
	return result
}

// reminderDue reports whether officers were last contacted about the report
// more than ReminderAfter ago.
func (d *Dispatcher) reminderDue(report *domain.Report, now time.Time) bool {
	last := report.LastReminderAt
	if last == nil {
		last = report.NotificationSentAt
	}
	return last != nil && now.Sub(*last) > d.config.ReminderAfter
}

// sendClaim is what one pass took responsibility for delivering.
type sendClaim struct {
	newReport []domain.Officer
	remind    []domain.Officer
	expired   bool

	prevReminderAt *time.Time
}

// claimSends records, on the current report, the officers about to be sent
// NEW_REPORT and the reminder about to go out. Officers already recorded by
// another pass are left out. A report whose window closed in the meantime is
// marked EXPIRED instead.
func (d *Dispatcher) claimSends(ctx context.Context, id uuid.UUID, officers []domain.Officer, reminders bool, now time.Time) (*sendClaim, error) {
	var c sendClaim
	_, err := d.store.UpdateReport(ctx, id, func(r *domain.Report, _ *domain.SocietyAccount) (*domain.AccountDelta, error) {
		c = sendClaim{prevReminderAt: r.LastReminderAt}
		if r.ExpireIfStale(now) {
			c.expired = true
			return nil, nil
		}
		if !r.IsPending() {
			return nil, errUnchanged
		}

		reminderDue := reminders && d.reminderDue(r, now)
		for _, officer := range officers {
			switch {
			case !r.HasNotified(officer.ID):
				c.newReport = append(c.newReport, officer)
			case reminderDue:
				c.remind = append(c.remind, officer)
			}
		}
		if len(c.newReport) == 0 && len(c.remind) == 0 {
			return nil, errUnchanged
		}

		for _, officer := range c.newReport {
			r.NotifiedOfficers = append(r.NotifiedOfficers, officer.ID)
		}
		if r.NotificationSentAt == nil && len(c.newReport) > 0 {
			r.NotificationSentAt = &now
			r.LastReminderAt = &now
		}
		if len(c.remind) > 0 {
			r.LastReminderAt = &now
		}
		return nil, nil
	})
	if errors.Is(err, errUnchanged) {
		return &sendClaim{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// releaseClaims gives back claims nothing was delivered for, so the next
// pass retries them.
func (d *Dispatcher) releaseClaims(ctx context.Context, id uuid.UUID, failed []uuid.UUID, reminderLost bool, c *sendClaim) error {
	_, err := d.store.UpdateReport(ctx, id, func(r *domain.Report, _ *domain.SocietyAccount) (*domain.AccountDelta, error) {
		if !r.IsPending() {
			return nil, errUnchanged
		}

		kept := make([]uuid.UUID, 0, len(r.NotifiedOfficers))
		for _, officerID := range r.NotifiedOfficers {
			if !slices.Contains(failed, officerID) {
				kept = append(kept, officerID)
			}
		}
		r.NotifiedOfficers = kept

		if len(r.NotifiedOfficers) == 0 {
			r.NotificationSentAt = nil
			r.LastReminderAt = nil
		} else if reminderLost {
			r.LastReminderAt = c.prevReminderAt
		}
		return nil, nil
	})
	if errors.Is(err, errUnchanged) {
		return nil
	}
	return err
}

// send delivers one notification on every channel. It returns true if at
// least one channel succeeded.
func (d *Dispatcher) send(ctx context.Context, officer domain.Officer, report *domain.Report, societyName string, typ domain.NotificationType, now time.Time) bool {
	days := domain.DaysUntil(now, report.ExpiresAt)
	n := &domain.Notification{
		ID:        uuid.New(),
		OfficerID: officer.ID,
		Type:      typ,
		ReportID:  report.ID,
		Title:     title(typ, societyName),
		Message:   message(typ, societyName, days),
		Payload: domain.NotificationPayload{
			SocietyID:               report.SocietyID,
			SocietyName:             societyName,
			VerificationProbability: report.VerificationProbability,
			AITrustScore:            report.AITrustScore,
			SubmissionDate:          report.SubmissionDate,
			ExpiresAt:               report.ExpiresAt,
			DaysUntilExpiry:         days,
		},
		CreatedAt: now,
	}

	delivered := false

	err := d.store.CreateNotification(ctx, n)
	metrics.Notification(string(typ), ChannelInApp, err)
	if err != nil {
		d.logger.Warn("Failed to store notification",
			"officer_id", officer.ID,
			"report_id", report.ID,
			"type", typ,
			"error", err,
		)
	} else {
		delivered = true
	}

	if d.mailer != nil && officer.Email != "" {
		err := d.mailer.SendReportNotification(ctx, officer.Email, email.ReportNotification{
			Reminder:                typ == domain.NotificationReminder,
			OfficerName:             officer.Name,
			ReportID:                report.ID,
			SocietyName:             societyName,
			VerificationProbability: report.VerificationProbability,
			AITrustScore:            report.AITrustScore,
			SubmissionDate:          report.SubmissionDate,
			ExpiresAt:               report.ExpiresAt,
			DaysUntilExpiry:         days,
		})
		metrics.Notification(string(typ), ChannelEmail, err)
		if err != nil {
			d.logger.Warn("Failed to e-mail notification",
				"officer_id", officer.ID,
				"report_id", report.ID,
				"type", typ,
				"error", err,
			)
		} else {
			delivered = true
		}
	}

	return delivered
}

func title(typ domain.NotificationType, societyName string) string {
	if societyName == "" {
		societyName = "a society"
	}
	if typ == domain.NotificationReminder {
		return fmt.Sprintf("Reminder: report from %s awaits review", societyName)
	}
	return fmt.Sprintf("New report from %s", societyName)
}

func message(typ domain.NotificationType, societyName string, days int) string {
	if societyName == "" {
		societyName = "A society"
	}
	if typ == domain.NotificationReminder {
		if days == 1 {
			return fmt.Sprintf("%s's report is resolved automatically in 1 day.", societyName)
		}
		return fmt.Sprintf("%s's report is resolved automatically in %d days.", societyName, days)
	}
	return fmt.Sprintf("%s submitted a composting report for review.", societyName)
}
