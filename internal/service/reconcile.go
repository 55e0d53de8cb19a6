package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/DukeRupert/bwg/internal/detection"
	"github.com/DukeRupert/bwg/internal/domain"
	"github.com/DukeRupert/bwg/internal/metrics"
)

// DefaultApprovalMinimum is the score both detection results must reach
// for a callback to approve a report.
const DefaultApprovalMinimum = 50.0

// errUnchanged aborts an UpdateReport without writing.
var errUnchanged = errors.New("report unchanged")

// CallbackResult is returned to the detection workflow.
type CallbackResult struct {
	ReportID                uuid.UUID                 `json:"reportId"`
	Status                  domain.VerificationStatus `json:"verificationStatus"`
	ApprovalType            domain.ApprovalType       `json:"approvalType"`
	AITrustScore            float64                   `json:"aiTrustScore"`
	VerificationProbability float64                   `json:"verificationProbability"`
	RebateAmount            *decimal.Decimal          `json:"rebateAmount,omitempty"`
	DetectionResults        json.RawMessage           `json:"detectionResults,omitempty"`
	Replayed                bool                      `json:"replayed"`
}

// CallbackView is the stored detection state of a report.
type CallbackView struct {
	ReportID                uuid.UUID                 `json:"reportId"`
	Status                  domain.VerificationStatus `json:"verificationStatus"`
	ApprovalType            domain.ApprovalType       `json:"approvalType"`
	AITrustScore            float64                   `json:"aiTrustScore"`
	VerificationProbability float64                   `json:"verificationProbability"`
	WebhookResponse         *domain.WebhookResponse   `json:"n8nWebhookResponse"`
	VerificationImages      []domain.ReportImage      `json:"verificationImages"`
}

// Reconciler merges detection workflow results into reports and forwards
// new reports to the workflow.
type Reconciler struct {
	store           domain.ReportStore
	trigger         detection.Trigger // nil when detection is disabled
	approvalMinimum float64
	logger          *slog.Logger
	now             Clock
}

// NewReconciler creates a new Reconciler. A nil trigger disables
// TriggerDetection.
func NewReconciler(store domain.ReportStore, trigger detection.Trigger, approvalMinimum float64, logger *slog.Logger, now Clock) *Reconciler {
	if approvalMinimum <= 0 {
		approvalMinimum = DefaultApprovalMinimum
	}
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		store:           store,
		trigger:         trigger,
		approvalMinimum: approvalMinimum,
		logger:          logger,
		now:             now,
	}
}

// HandleCallback merges a parsed callback into its report. Scores and the
// workflow response are overwritten while the report is PENDING. A
// successful callback with both scores at or above the minimum approves
// the report; low scores never reject. Callbacks for resolved reports
// change nothing and return the current state.
func (rc *Reconciler) HandleCallback(ctx context.Context, cb *detection.Callback) (*CallbackResult, error) {
	const op = "Reconciler.HandleCallback"

	now := rc.now()
	logger := rc.logger.With("report_id", cb.ReportID)

	var (
		current  domain.Report
		approved bool
	)
	report, err := rc.store.UpdateReport(ctx, cb.ReportID, func(r *domain.Report, account *domain.SocietyAccount) (*domain.AccountDelta, error) {
		if !r.IsPending() {
			current = *r
			return nil, errUnchanged
		}

		r.ApplyScores(cb.AITrustScore, cb.VerificationProbability)
		r.WebhookResponse = cb.Response(now)

		if !cb.Succeeded() || !rc.passes(cb) {
			return nil, nil
		}

		delta, err := r.Resolve(account, domain.Resolution{
			Outcome:     domain.OutcomeApprove,
			ProcessedBy: domain.ProcessedByWebhook,
			At:          now,
		})
		if err != nil {
			return nil, err
		}
		approved = true
		return delta, nil
	})

	switch {
	case errors.Is(err, errUnchanged):
		metrics.WebhookCallback("replayed")
		logger.Info("callback for resolved report ignored", "status", current.VerificationStatus)
		result := callbackResult(&current, cb)
		result.Replayed = true
		return result, nil
	case err != nil:
		return nil, storeError(rc.logger, err, op, "Failed to apply detection callback")
	}

	switch {
	case approved:
		metrics.WebhookCallback("approved")
		metrics.ReportResolved(report.VerificationStatus.String(), report.ApprovalType.String(), zeroIfNil(report.RebateAmount))
		logger.Info("report approved by detection workflow",
			"ai_trust_score", report.AITrustScore,
			"verification_probability", report.VerificationProbability,
		)
	case !cb.Succeeded():
		metrics.WebhookCallback("failed")
		logger.Warn("detection workflow reported an error", "status", cb.Status, "error", cb.Error)
	default:
		metrics.WebhookCallback("merged")
		logger.Info("detection scores merged",
			"ai_trust_score", report.AITrustScore,
			"verification_probability", report.VerificationProbability,
		)
	}

	return callbackResult(report, cb), nil
}

// passes reports whether both callback scores reach the approval minimum.
// A missing score counts as zero.
func (rc *Reconciler) passes(cb *detection.Callback) bool {
	return cb.AITrustScore != nil && *cb.AITrustScore >= rc.approvalMinimum &&
		cb.VerificationProbability != nil && *cb.VerificationProbability >= rc.approvalMinimum
}

func callbackResult(r *domain.Report, cb *detection.Callback) *CallbackResult {
	return &CallbackResult{
		ReportID:                r.ID,
		Status:                  r.VerificationStatus,
		ApprovalType:            r.ApprovalType,
		AITrustScore:            r.AITrustScore,
		VerificationProbability: r.VerificationProbability,
		RebateAmount:            r.RebateAmount,
		DetectionResults:        cb.DetectionResults,
	}
}

// GetCallback returns the stored detection state of a report.
func (rc *Reconciler) GetCallback(ctx context.Context, reportID uuid.UUID) (*CallbackView, error) {
	const op = "Reconciler.GetCallback"

	r, err := rc.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, storeError(rc.logger, err, op, "Failed to retrieve report")
	}

	images := r.VerificationImages
	if images == nil {
		images = []domain.ReportImage{}
	}
	return &CallbackView{
		ReportID:                r.ID,
		Status:                  r.VerificationStatus,
		ApprovalType:            r.ApprovalType,
		AITrustScore:            r.AITrustScore,
		VerificationProbability: r.VerificationProbability,
		WebhookResponse:         r.WebhookResponse,
		VerificationImages:      images,
	}, nil
}

// TriggerDetection forwards a PENDING report to the detection workflow and
// records the acknowledgement, or the failure, on the report. Status never
// changes here. The returned error is the trigger failure, for the caller
// to decide on retries.
func (rc *Reconciler) TriggerDetection(ctx context.Context, reportID uuid.UUID) error {
	const op = "Reconciler.TriggerDetection"

	if rc.trigger == nil {
		return nil
	}

	logger := rc.logger.With("report_id", reportID)

	r, err := rc.store.GetReport(ctx, reportID)
	if err != nil {
		return storeError(rc.logger, err, op, "Failed to retrieve report")
	}
	if !r.IsPending() {
		logger.Info("detection skipped, report already resolved", "status", r.VerificationStatus)
		return nil
	}

	started := rc.now()
	resp, triggerErr := rc.trigger.Trigger(ctx, detection.NewPayload(r))
	metrics.DetectionTriggered(triggerErr)
	if triggerErr != nil {
		logger.Warn("detection trigger failed", "error", triggerErr)
		resp = detection.FailureResponse(triggerErr, rc.now())
	}

	_, err = rc.store.UpdateReport(ctx, reportID, func(r *domain.Report, _ *domain.SocietyAccount) (*domain.AccountDelta, error) {
		// Resolved while the trigger was in flight: the report is frozen.
		if !r.IsPending() {
			return nil, errUnchanged
		}
		// A callback that landed while the trigger was in flight wins.
		if r.WebhookResponse != nil && !r.WebhookResponse.ProcessedAt.Before(started) {
			return nil, errUnchanged
		}
		r.WebhookResponse = resp
		return nil, nil
	})
	if err != nil && !errors.Is(err, errUnchanged) {
		return storeError(rc.logger, err, op, "Failed to record detection response")
	}

	if triggerErr != nil {
		return domain.Unavailable(triggerErr, op, "Detection workflow could not be reached")
	}
	logger.Info("detection triggered", "workflow_status", resp.Status, "webhook_id", resp.WebhookID)
	return nil
}
