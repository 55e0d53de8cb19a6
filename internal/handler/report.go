package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/DukeRupert/bwg/internal/domain"
	"github.com/DukeRupert/bwg/internal/service"
)

// ReportHandler handles report submission, queries and officer reviews.
type ReportHandler struct {
	reports     service.ReportService
	reviews     service.ReviewService
	leaderboard service.LeaderboardService
	logger      *slog.Logger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(
	reports service.ReportService,
	reviews service.ReviewService,
	leaderboard service.LeaderboardService,
	logger *slog.Logger,
) *ReportHandler {
	return &ReportHandler{
		reports:     reports,
		reviews:     reviews,
		leaderboard: leaderboard,
		logger:      logger,
	}
}

// RegisterRoutes registers report routes on the provided mux.
func (h *ReportHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/reports", h.Submit)
	mux.HandleFunc("GET /api/reports", h.List)
	mux.HandleFunc("GET /api/reports/{id}", h.Get)
	mux.HandleFunc("PATCH /api/officer/reports/{id}/review", h.Review)
	mux.HandleFunc("GET /api/societies/{id}/rebates", h.Rebates)
	mux.HandleFunc("GET /api/leaderboard", h.Leaderboard)
}

// submitReportRequest is the body of POST /api/reports. Images are already
// uploaded; only their URLs and metadata are sent.
type submitReportRequest struct {
	SocietyID               uuid.UUID             `json:"societyId"`
	SubmitterID             uuid.UUID             `json:"submitterId"`
	Images                  []domain.ReportImage  `json:"images"`
	GPSMetadata             *domain.GPSMetadata   `json:"gpsMetadata"`
	IoTSensorData           *domain.IoTSensorData `json:"iotSensorData"`
	VerificationProbability float64               `json:"verificationProbability"`
	AITrustScore            float64               `json:"aiTrustScore"`
}

// Submit creates a PENDING report.
func (h *ReportHandler) Submit(w http.ResponseWriter, r *http.Request) {
	const op = "ReportHandler.Submit"

	var req submitReportRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	report, err := h.reports.Submit(r.Context(), domain.CreateReportParams{
		SocietyID:               req.SocietyID,
		SubmitterID:             req.SubmitterID,
		Images:                  req.Images,
		GPSMetadata:             req.GPSMetadata,
		IoTSensorData:           req.IoTSensorData,
		VerificationProbability: req.VerificationProbability,
		AITrustScore:            req.AITrustScore,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, report)
}

// Get returns one report.
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "ReportHandler.Get"

	id, err := pathUUID(r, op, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	report, err := h.reports.Get(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// List returns a page of reports filtered by status, society or submitter.
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	const op = "ReportHandler.List"

	filter, err := parseReportFilter(r, op)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.reports.List(r.Context(), filter)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reports": result.Reports,
		"total":   result.Total,
		"limit":   result.Limit,
		"offset":  result.Offset,
		"hasMore": result.HasMore(),
	})
}

func parseReportFilter(r *http.Request, op string) (domain.ReportFilter, error) {
	var (
		filter domain.ReportFilter
		err    error
	)

	if raw := r.URL.Query().Get("status"); raw != "" {
		filter.Status = domain.VerificationStatus(strings.ToUpper(raw))
		if !filter.Status.IsValid() {
			return filter, domain.NewValidationError(op, "status", "must be one of PENDING, AUTO_APPROVED, OFFICER_APPROVED, REJECTED, EXPIRED")
		}
	}
	if filter.SocietyID, err = queryUUID(r, op, "societyId"); err != nil {
		return filter, err
	}
	if filter.SubmitterID, err = queryUUID(r, op, "submitterId"); err != nil {
		return filter, err
	}
	if filter.Limit, err = queryInt(r, op, "limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = queryInt(r, op, "offset"); err != nil {
		return filter, err
	}
	return filter, nil
}

// reviewRequest is the body of PATCH /api/officer/reports/{id}/review.
type reviewRequest struct {
	OfficerID          uuid.UUID            `json:"officerId"`
	Action             string               `json:"action"`
	Comments           string               `json:"comments"`
	VerificationImages []domain.ReportImage `json:"verificationImages"`
}

// Review records an officer's approval or rejection.
func (h *ReportHandler) Review(w http.ResponseWriter, r *http.Request) {
	const op = "ReportHandler.Review"

	id, err := pathUUID(r, op, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req reviewRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if req.OfficerID == uuid.Nil {
		ErrorResponse(w, r, h.logger, domain.NewValidationError(op, "officerId", "is required"))
		return
	}

	result, err := h.reviews.Review(r.Context(), domain.ReviewParams{
		ReportID:           id,
		OfficerID:          req.OfficerID,
		Action:             domain.Outcome(strings.ToUpper(strings.TrimSpace(req.Action))),
		Comments:           req.Comments,
		VerificationImages: req.VerificationImages,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Rebates returns a society's rebate summary.
func (h *ReportHandler) Rebates(w http.ResponseWriter, r *http.Request) {
	const op = "ReportHandler.Rebates"

	id, err := pathUUID(r, op, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	summary, err := h.reports.RebateSummary(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// Leaderboard returns the society compliance ranking.
func (h *ReportHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "ReportHandler.Leaderboard"

	limit, err := queryInt(r, op, "limit")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	offset, err := queryInt(r, op, "offset")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.leaderboard.Leaderboard(r.Context(), limit, offset)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
