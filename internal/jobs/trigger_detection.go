// Package jobs contains the background job handlers run by the worker.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/DukeRupert/bwg/internal/domain"
	"github.com/DukeRupert/bwg/internal/worker"
	"github.com/google/uuid"
)

// DetectionTrigger forwards a report to the detection workflow.
type DetectionTrigger interface {
	TriggerDetection(ctx context.Context, reportID uuid.UUID) error
}

// TriggerDetectionHandler processes jobs that send a new report to the
// detection workflow. Status never changes here; the workflow answers on
// the callback endpoint.
type TriggerDetectionHandler struct {
	trigger DetectionTrigger
	logger  *slog.Logger
}

// NewTriggerDetectionHandler creates a new handler for detection trigger jobs.
func NewTriggerDetectionHandler(trigger DetectionTrigger, logger *slog.Logger) *TriggerDetectionHandler {
	return &TriggerDetectionHandler{
		trigger: trigger,
		logger:  logger,
	}
}

// Type returns the job type identifier.
func (h *TriggerDetectionHandler) Type() string {
	return worker.JobTypeTriggerDetection
}

// Handle executes one trigger attempt. A missing report is permanent;
// transport failures are retried by the worker.
func (h *TriggerDetectionHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.TriggerDetectionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}
	if p.ReportID == uuid.Nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: missing report_id"))
	}

	h.logger.Info("Triggering detection", "report_id", p.ReportID)

	if err := h.trigger.TriggerDetection(ctx, p.ReportID); err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			return worker.NewPermanentError(fmt.Errorf("report not found: %w", err))
		}
		return fmt.Errorf("trigger detection: %w", err)
	}
	return nil
}
