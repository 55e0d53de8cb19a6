package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/DukeRupert/bwg/internal/domain"
	"github.com/DukeRupert/bwg/internal/metrics"
	"github.com/DukeRupert/bwg/internal/worker"
)

// ReportService defines submission intake and report queries.
type ReportService interface {
	// Submit validates and stores a new PENDING report, then queues officer
	// notification and, when enabled, detection.
	Submit(ctx context.Context, params domain.CreateReportParams) (*domain.Report, error)

	// Get retrieves a report by ID.
	Get(ctx context.Context, id uuid.UUID) (*domain.Report, error)

	// List retrieves a page of reports, newest first.
	List(ctx context.Context, filter domain.ReportFilter) (*domain.ListReportsResult, error)

	// RebateSummary totals the rebates a society has earned.
	RebateSummary(ctx context.Context, societyID uuid.UUID) (*domain.RebateSummary, error)
}

// ReportServiceConfig contains intake settings.
type ReportServiceConfig struct {
	ExpiryDays       int  // review window for new reports
	DetectionEnabled bool // queue a detection trigger for each submission
}

// reportService implements ReportService.
type reportService struct {
	store  domain.Store
	config ReportServiceConfig
	logger *slog.Logger
	now    Clock
}

// NewReportService creates a new ReportService.
func NewReportService(store domain.Store, config ReportServiceConfig, logger *slog.Logger, now Clock) ReportService {
	if config.ExpiryDays <= 0 {
		config.ExpiryDays = 7
	}
	if now == nil {
		now = time.Now
	}
	return &reportService{
		store:  store,
		config: config,
		logger: logger,
		now:    now,
	}
}

// Submit validates and stores a new PENDING report.
func (s *reportService) Submit(ctx context.Context, params domain.CreateReportParams) (*domain.Report, error) {
	const op = "ReportService.Submit"

	if n := len(params.Images); n < domain.MinSubmissionImages || n > domain.MaxSubmissionImages {
		return nil, domain.NewValidationError(op, "images",
			fmt.Sprintf("between %d and %d images are required, got %d",
				domain.MinSubmissionImages, domain.MaxSubmissionImages, n))
	}
	if err := domain.ValidateStruct(op, params); err != nil {
		return nil, err
	}

	society, err := s.store.GetSociety(ctx, params.SocietyID)
	if err != nil {
		return nil, storeError(s.logger, err, op, "Failed to load society")
	}
	if !society.IsActive {
		return nil, domain.Invalid(op, "society account is not active")
	}

	now := s.now()
	images := make([]domain.ReportImage, len(params.Images))
	for i, img := range params.Images {
		if img.UploadedAt.IsZero() {
			img.UploadedAt = now
		}
		images[i] = img
	}

	report := &domain.Report{
		ID:                      uuid.New(),
		SocietyID:               society.ID,
		SubmitterID:             params.SubmitterID,
		SubmissionDate:          now,
		SubmissionImages:        images,
		VerificationImages:      []domain.ReportImage{},
		GPSMetadata:             *params.GPSMetadata,
		IoTSensorData:           params.IoTSensorData,
		GeoDistanceMeters:       geoDistance(society.GeoLockCoordinates, params.GPSMetadata),
		VerificationProbability: params.VerificationProbability,
		AITrustScore:            params.AITrustScore,
		VerificationStatus:      domain.StatusPending,
		ApprovalType:            domain.ApprovalNone,
		ExpiresAt:               now.Add(time.Duration(s.config.ExpiryDays) * 24 * time.Hour),
		NotifiedOfficers:        []uuid.UUID{},
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	if err := s.store.CreateReport(ctx, report); err != nil {
		return nil, storeError(s.logger, err, op, "Failed to create report")
	}
	metrics.ReportsSubmitted.Inc()

	logger := s.logger.With("report_id", report.ID, "society_id", society.ID)
	logger.Info("report submitted",
		"images", len(images),
		"expires_at", report.ExpiresAt,
	)

	// The report is stored; queue failures are logged and picked up by the
	// periodic notification dispatch instead.
	if _, err := worker.EnqueueNotifyNewReport(ctx, s.store, report.ID); err != nil {
		logger.Error("failed to enqueue officer notification", "error", err)
	}
	if s.config.DetectionEnabled {
		if _, err := worker.EnqueueTriggerDetection(ctx, s.store, report.ID); err != nil {
			logger.Error("failed to enqueue detection trigger", "error", err)
		}
	}

	return report, nil
}

// Get retrieves a report by ID.
func (s *reportService) Get(ctx context.Context, id uuid.UUID) (*domain.Report, error) {
	const op = "ReportService.Get"

	report, err := s.store.GetReport(ctx, id)
	if err != nil {
		return nil, storeError(s.logger, err, op, "Failed to retrieve report")
	}
	return report, nil
}

// List retrieves a page of reports.
func (s *reportService) List(ctx context.Context, filter domain.ReportFilter) (*domain.ListReportsResult, error) {
	const op = "ReportService.List"

	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, domain.NewValidationError(op, "status", "unknown verification status")
	}
	filter.Limit, filter.Offset = normalizePage(filter.Limit, filter.Offset)

	reports, total, err := s.store.ListReports(ctx, filter)
	if err != nil {
		return nil, storeError(s.logger, err, op, "Failed to list reports")
	}
	if reports == nil {
		reports = []domain.Report{}
	}

	return &domain.ListReportsResult{
		Reports: reports,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// RebateSummary totals the rebates a society has earned.
func (s *reportService) RebateSummary(ctx context.Context, societyID uuid.UUID) (*domain.RebateSummary, error) {
	const op = "ReportService.RebateSummary"

	society, err := s.store.GetSociety(ctx, societyID)
	if err != nil {
		return nil, storeError(s.logger, err, op, "Failed to load society")
	}

	lines, err := s.store.ListRebateLines(ctx, societyID)
	if err != nil {
		return nil, storeError(s.logger, err, op, "Failed to list rebates")
	}

	summary := domain.NewRebateSummary(society, lines)
	return &summary, nil
}

// geoDistance returns the great-circle distance in meters between the
// society's geo-lock and the submission fix, or nil without a geo-lock.
func geoDistance(lock *domain.GeoPoint, fix *domain.GPSMetadata) *float64 {
	if lock == nil || fix == nil {
		return nil
	}
	d := geo.Distance(
		orb.Point{lock.Longitude, lock.Latitude},
		orb.Point{fix.Longitude, fix.Latitude},
	)
	return &d
}
