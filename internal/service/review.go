package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/DukeRupert/bwg/internal/domain"
	"github.com/DukeRupert/bwg/internal/metrics"
)

// ReviewService records officer decisions on PENDING reports.
type ReviewService interface {
	// Review approves or rejects a report on behalf of an active officer.
	// A report that is no longer PENDING yields an ECONFLICT error wrapping
	// domain.ErrAlreadyResolved.
	Review(ctx context.Context, params domain.ReviewParams) (*domain.ReviewResult, error)
}

// reviewService implements ReviewService.
type reviewService struct {
	store  domain.Store
	logger *slog.Logger
	now    Clock
}

// NewReviewService creates a new ReviewService.
func NewReviewService(store domain.Store, logger *slog.Logger, now Clock) ReviewService {
	if now == nil {
		now = time.Now
	}
	return &reviewService{
		store:  store,
		logger: logger,
		now:    now,
	}
}

// Review approves or rejects a report.
func (s *reviewService) Review(ctx context.Context, params domain.ReviewParams) (*domain.ReviewResult, error) {
	const op = "ReviewService.Review"

	if err := validateReview(op, params); err != nil {
		return nil, err
	}

	officer, err := s.store.GetOfficer(ctx, params.OfficerID)
	if err != nil {
		return nil, storeError(s.logger, err, op, "Failed to load officer")
	}
	if !officer.IsActive {
		return nil, domain.Invalid(op, "officer account is not active")
	}

	officerID := officer.ID
	res := domain.Resolution{
		Outcome:            params.Action,
		OfficerID:          &officerID,
		At:                 s.now(),
		Comments:           params.Comments,
		VerificationImages: params.VerificationImages,
	}

	logger := s.logger.With("report_id", params.ReportID, "officer_id", officerID)

	report, err := s.store.UpdateReport(ctx, params.ReportID, func(r *domain.Report, account *domain.SocietyAccount) (*domain.AccountDelta, error) {
		return r.Resolve(account, res)
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyResolved) {
			metrics.ResolutionConflict("officer")
			logger.Info("review rejected, report already resolved", "error", err)
			return nil, err
		}
		return nil, storeError(s.logger, err, op, "Failed to review report")
	}

	rebate := zeroIfNil(report.RebateAmount)
	metrics.ReportResolved(report.VerificationStatus.String(), report.ApprovalType.String(), rebate)
	logger.Info("report reviewed",
		"action", params.Action,
		"status", report.VerificationStatus,
		"rebate", rebate.StringFixed(2),
	)

	return &domain.ReviewResult{
		ReportID:     report.ID,
		Status:       report.VerificationStatus,
		ApprovalType: report.ApprovalType,
		RebateAmount: report.RebateAmount,
		ApprovedDays: report.ApprovedDays,
	}, nil
}

func validateReview(op string, params domain.ReviewParams) error {
	var ve *domain.ValidationError
	add := func(field, message string) {
		if ve == nil {
			ve = domain.NewValidationError(op, field, message)
			return
		}
		ve.Fields[field] = message
	}

	if !params.Action.IsValid() {
		add("action", "must be APPROVE or REJECT")
	}
	if utf8.RuneCountInString(params.Comments) > domain.MaxOfficerCommentsLength {
		add("comments", fmt.Sprintf("must be at most %d characters", domain.MaxOfficerCommentsLength))
	}
	for i, img := range params.VerificationImages {
		if err := domain.ValidateStruct(op, img); err != nil {
			add(fmt.Sprintf("verificationImages[%d]", i), "is invalid")
		}
	}

	if ve != nil {
		return ve
	}
	return nil
}
