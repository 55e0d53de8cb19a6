package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/DukeRupert/bwg/internal/domain"
	"github.com/DukeRupert/bwg/internal/notify"
	"github.com/DukeRupert/bwg/internal/worker"
	"github.com/google/uuid"
)

// NewReportNotifier tells officers about a newly submitted report.
type NewReportNotifier interface {
	NotifyNewReport(ctx context.Context, reportID uuid.UUID) (*notify.DispatchResult, error)
}

// NotifyNewReportHandler processes jobs that notify officers about a new
// report. Officers missed here are picked up by the periodic dispatch.
type NotifyNewReportHandler struct {
	notifier NewReportNotifier
	logger   *slog.Logger
}

// NewNotifyNewReportHandler creates a new handler for new-report notification jobs.
func NewNotifyNewReportHandler(notifier NewReportNotifier, logger *slog.Logger) *NotifyNewReportHandler {
	return &NotifyNewReportHandler{
		notifier: notifier,
		logger:   logger,
	}
}

// Type returns the job type identifier.
func (h *NotifyNewReportHandler) Type() string {
	return worker.JobTypeNotifyNewReport
}

// Handle notifies every active officer not yet told about the report.
func (h *NotifyNewReportHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.NotifyNewReportPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}
	if p.ReportID == uuid.Nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: missing report_id"))
	}

	result, err := h.notifier.NotifyNewReport(ctx, p.ReportID)
	if err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			return worker.NewPermanentError(fmt.Errorf("report not found: %w", err))
		}
		return fmt.Errorf("notify new report: %w", err)
	}

	h.logger.Info("Officers notified of new report",
		"report_id", p.ReportID,
		"notified", result.NewReports,
		"failed", result.Failed,
	)
	return nil
}
