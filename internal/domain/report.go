// Package domain contains core business types and interfaces.
//
// This file defines the Report type and its verification lifecycle. A report
// is created PENDING and leaves that state exactly once; every terminal state
// is final.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Verification Status
// =============================================================================

// VerificationStatus represents the lifecycle state of a report.
type VerificationStatus string

const (
	// StatusPending is the initial state. Only PENDING reports can be resolved.
	StatusPending VerificationStatus = "PENDING"

	// StatusAutoApproved is set by the scheduler or the detection callback.
	StatusAutoApproved VerificationStatus = "AUTO_APPROVED"

	// StatusOfficerApproved is set by an officer review.
	StatusOfficerApproved VerificationStatus = "OFFICER_APPROVED"

	// StatusRejected is set by an officer review or by the scheduler when
	// the verification probability is below the threshold.
	StatusRejected VerificationStatus = "REJECTED"

	// StatusExpired is only reached through the passive expiry on
	// bookkeeping saves; the scheduler always picks an outcome instead.
	StatusExpired VerificationStatus = "EXPIRED"
)

// String returns the string representation of the status.
func (s VerificationStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a recognized value.
func (s VerificationStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusAutoApproved, StatusOfficerApproved,
		StatusRejected, StatusExpired:
		return true
	}
	return false
}

// IsTerminal returns true for every status other than PENDING.
func (s VerificationStatus) IsTerminal() bool {
	return s.IsValid() && s != StatusPending
}

// IsApproved returns true for the two approved statuses.
func (s VerificationStatus) IsApproved() bool {
	return s == StatusAutoApproved || s == StatusOfficerApproved
}

// ApprovalType records who resolved a report.
type ApprovalType string

const (
	ApprovalNone      ApprovalType = "NONE"
	ApprovalOfficer   ApprovalType = "OFFICER"
	ApprovalAutomatic ApprovalType = "AUTOMATIC"
)

// String returns the string representation of the approval type.
func (a ApprovalType) String() string {
	return string(a)
}

// VibrationStatus is the composter vibration reading reported by IoT devices.
type VibrationStatus string

const (
	VibrationDetected    VibrationStatus = "DETECTED"
	VibrationNotDetected VibrationStatus = "NOT_DETECTED"
	VibrationNoData      VibrationStatus = "NO_DATA"
)

// IsValid returns true if the vibration status is a recognized value.
func (v VibrationStatus) IsValid() bool {
	switch v {
	case VibrationDetected, VibrationNotDetected, VibrationNoData:
		return true
	}
	return false
}

// Audit trail values for automatic resolutions.
const (
	ProcessedByScheduler = "SYSTEM_AUTO_PROCESSOR"
	ProcessedByWebhook   = "N8N_WORKFLOW"
)

// Image count bounds for a submission.
const (
	MinSubmissionImages = 1
	MaxSubmissionImages = 5
)

// Field length limits.
const (
	MaxOfficerCommentsLength = 1000
	MaxRejectionReasonLength = 500
)

// =============================================================================
// Value Types
// =============================================================================

// GPSMetadata is a GPS fix attached to a report or image.
type GPSMetadata struct {
	Latitude  float64   `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64   `json:"longitude" validate:"gte=-180,lte=180"`
	Accuracy  float64   `json:"accuracy" validate:"gte=0"`
	Timestamp time.Time `json:"timestamp" validate:"required"`
}

// ReportImage is one uploaded photo. The URL is produced by the upload
// collaborator; the core only stores it.
type ReportImage struct {
	URL         string       `json:"url" validate:"required,url"`
	UploadedAt  time.Time    `json:"uploadedAt"`
	GPSMetadata *GPSMetadata `json:"gpsMetadata,omitempty" validate:"omitempty"`
	Label       string       `json:"label,omitempty" validate:"max=100"`
}

// IoTSensorData is the optional composter sensor reading.
type IoTSensorData struct {
	DeviceID        string          `json:"deviceId" validate:"required"`
	DeviceType      string          `json:"deviceType" validate:"omitempty,oneof=VIBRATION_SENSOR CAMERA METER GATEWAY OTHER"`
	VibrationStatus VibrationStatus `json:"vibrationStatus" validate:"required,oneof=DETECTED NOT_DETECTED NO_DATA"`
	SensorValue     *float64        `json:"sensorValue,omitempty"`
	BatteryLevel    *float64        `json:"batteryLevel,omitempty" validate:"omitempty,gte=0,lte=100"`
	IsOnline        bool            `json:"isOnline"`
	Timestamp       time.Time       `json:"timestamp"`
}

// WebhookResponse is the last exchange with the detection workflow, either
// the trigger response or a callback.
type WebhookResponse struct {
	WebhookID               string          `json:"webhookId,omitempty"`
	WorkflowID              string          `json:"workflowId,omitempty"`
	Status                  string          `json:"status"`
	DetectionResults        json.RawMessage `json:"detectionResults,omitempty"`
	AITrustScore            *float64        `json:"aiTrustScore,omitempty"`
	VerificationProbability *float64        `json:"verificationProbability,omitempty"`
	RawResponse             json.RawMessage `json:"rawResponse,omitempty"`
	ProcessedAt             time.Time       `json:"processedAt"`
	Error                   string          `json:"error,omitempty"`
}

// =============================================================================
// Report Domain Type
// =============================================================================

// Report is one evidence submission for a compliance period.
type Report struct {
	ID                 uuid.UUID      `json:"id"`
	SocietyID          uuid.UUID      `json:"societyId"`
	SubmitterID        uuid.UUID      `json:"submitterId"`
	SubmissionDate     time.Time      `json:"submissionDate"`
	SubmissionImages   []ReportImage  `json:"submissionImages"`
	VerificationImages []ReportImage  `json:"verificationImages"`
	GPSMetadata        GPSMetadata    `json:"gpsMetadata"`
	IoTSensorData      *IoTSensorData `json:"iotSensorData,omitempty"`
	GeoDistanceMeters  *float64       `json:"geoDistanceMeters,omitempty"`

	VerificationProbability float64 `json:"verificationProbability"`
	AITrustScore            float64 `json:"aiTrustScore"`

	VerificationStatus VerificationStatus `json:"verificationStatus"`
	ApprovalType       ApprovalType       `json:"approvalType"`
	ExpiresAt          time.Time          `json:"expiresAt"`

	ReviewTimestamp *time.Time       `json:"reviewTimestamp,omitempty"`
	OfficerID       *uuid.UUID       `json:"officerId,omitempty"`
	OfficerComments string           `json:"officerComments,omitempty"`
	RejectionReason string           `json:"rejectionReason,omitempty"`
	RebateAmount    *decimal.Decimal `json:"rebateAmount,omitempty"`
	ApprovedDays    *int             `json:"approvedDays,omitempty"`

	NotifiedOfficers   []uuid.UUID `json:"notifiedOfficers"`
	NotificationSentAt *time.Time  `json:"notificationSentAt,omitempty"`
	LastReminderAt     *time.Time  `json:"lastReminderAt,omitempty"`

	AutoProcessedAt *time.Time `json:"autoProcessedAt,omitempty"`
	AutoProcessedBy string     `json:"autoProcessedBy,omitempty"`

	WebhookResponse *WebhookResponse `json:"n8nWebhookResponse,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsPending returns true if the report has not been resolved.
func (r *Report) IsPending() bool {
	return r.VerificationStatus == StatusPending
}

// IsExpired returns true if the review window has passed at now.
func (r *Report) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// HasNotified returns true if the officer already received the new-report
// notification.
func (r *Report) HasNotified(officerID uuid.UUID) bool {
	for _, id := range r.NotifiedOfficers {
		if id == officerID {
			return true
		}
	}
	return false
}

// ExpireIfStale marks a PENDING report past its expiry as EXPIRED and
// reports whether it did. Resolvers never call this; it only guards
// bookkeeping saves.
func (r *Report) ExpireIfStale(now time.Time) bool {
	if !r.IsPending() || !r.IsExpired(now) {
		return false
	}
	r.VerificationStatus = StatusExpired
	r.ApprovalType = ApprovalNone
	return true
}

// ApplyScores overwrites the detection scores. Scores are only mutable
// while the report is PENDING; the caller checks that first.
func (r *Report) ApplyScores(aiTrustScore, verificationProbability *float64) {
	if aiTrustScore != nil {
		r.AITrustScore = *aiTrustScore
	}
	if verificationProbability != nil {
		r.VerificationProbability = *verificationProbability
	}
}

// =============================================================================
// Resolution
// =============================================================================

// Outcome is the decision applied to a PENDING report.
type Outcome string

const (
	OutcomeApprove Outcome = "APPROVE"
	OutcomeReject  Outcome = "REJECT"
)

// IsValid returns true if the outcome is a recognized value.
func (o Outcome) IsValid() bool {
	return o == OutcomeApprove || o == OutcomeReject
}

// Resolution describes who resolves a report, how, and when.
// OfficerID set means a human review; otherwise ProcessedBy names the
// automatic actor.
type Resolution struct {
	Outcome            Outcome
	OfficerID          *uuid.UUID
	ProcessedBy        string
	At                 time.Time
	Comments           string
	RejectionReason    string
	VerificationImages []ReportImage
}

// IsAutomatic returns true if no officer is attached.
func (res Resolution) IsAutomatic() bool {
	return res.OfficerID == nil
}

// AccountDelta is the society account side effect of a resolution. It is
// applied with in-place increments in the same transaction as the report
// write.
type AccountDelta struct {
	SocietyID      uuid.UUID
	Rebate         decimal.Decimal
	Approved       bool // increments the compliance streak
	Rejected       bool // resets the compliance streak
	ComplianceDate time.Time
}

// Resolve moves a PENDING report to its terminal state. It fails with an
// ECONFLICT error wrapping ErrAlreadyResolved when the report is not PENDING
// and leaves the report untouched on any error.
func (r *Report) Resolve(account *SocietyAccount, res Resolution) (*AccountDelta, error) {
	const op = "report.resolve"

	if !r.IsPending() {
		return nil, AlreadyResolved(op, r.VerificationStatus)
	}
	if !res.Outcome.IsValid() {
		return nil, Invalid(op, "action must be APPROVE or REJECT")
	}
	if res.At.IsZero() {
		return nil, Invalid(op, "resolution time is required")
	}
	if res.IsAutomatic() && res.ProcessedBy == "" {
		return nil, Invalid(op, "automatic resolution requires an actor")
	}

	delta := &AccountDelta{
		SocietyID:      r.SocietyID,
		Rebate:         decimal.Zero,
		ComplianceDate: res.At,
	}

	at := res.At
	if res.IsAutomatic() {
		r.ApprovalType = ApprovalAutomatic
		r.AutoProcessedAt = &at
		r.AutoProcessedBy = res.ProcessedBy
	} else {
		officerID := *res.OfficerID
		r.ApprovalType = ApprovalOfficer
		r.OfficerID = &officerID
		r.ReviewTimestamp = &at
		r.OfficerComments = res.Comments
		r.VerificationImages = append(r.VerificationImages, res.VerificationImages...)
	}

	switch res.Outcome {
	case OutcomeApprove:
		if res.IsAutomatic() {
			r.VerificationStatus = StatusAutoApproved
		} else {
			r.VerificationStatus = StatusOfficerApproved
		}
		days := ApprovedDays(r.SubmissionDate, res.At)
		r.ApprovedDays = &days
		if account != nil && account.HasTaxBase() {
			rebate := Rebate(account.PropertyTaxEstimate, days)
			r.RebateAmount = &rebate
			delta.Rebate = rebate
		}
		delta.Approved = true
	case OutcomeReject:
		r.VerificationStatus = StatusRejected
		reason := res.RejectionReason
		if reason == "" {
			reason = res.Comments
		}
		if reason == "" {
			reason = "Rejected by officer"
		}
		r.RejectionReason = truncate(reason, MaxRejectionReasonLength)
		delta.Rejected = true
	}

	r.UpdatedAt = res.At
	return delta, nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// =============================================================================
// Service Parameters
// =============================================================================

// CreateReportParams contains the intake payload for a new report. Image
// URLs are already uploaded; GPS and IoT payloads are already parsed.
type CreateReportParams struct {
	SocietyID     uuid.UUID      `validate:"required"`
	SubmitterID   uuid.UUID      `validate:"required"`
	Images        []ReportImage  `validate:"dive"`
	GPSMetadata   *GPSMetadata   `validate:"required"`
	IoTSensorData *IoTSensorData `validate:"omitempty"`

	// Optional initial scores from an inline detector.
	VerificationProbability float64 `validate:"gte=0,lte=100"`
	AITrustScore            float64 `validate:"gte=0,lte=100"`
}

// ReviewParams contains an officer's decision for one report.
type ReviewParams struct {
	ReportID           uuid.UUID
	OfficerID          uuid.UUID
	Action             Outcome
	Comments           string
	VerificationImages []ReportImage
}

// ReviewResult is returned to the officer after a successful review.
type ReviewResult struct {
	ReportID     uuid.UUID          `json:"reportId"`
	Status       VerificationStatus `json:"verificationStatus"`
	ApprovalType ApprovalType       `json:"approvalType"`
	RebateAmount *decimal.Decimal   `json:"rebateAmount,omitempty"`
	ApprovedDays *int               `json:"approvedDays,omitempty"`
}

// ReportFilter narrows report listings. Zero values mean "any".
type ReportFilter struct {
	Status      VerificationStatus
	SocietyID   *uuid.UUID
	SubmitterID *uuid.UUID
	Limit       int
	Offset      int
}

// ListReportsResult contains a page of reports.
type ListReportsResult struct {
	Reports []Report `json:"reports"`
	Total   int64    `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}

// HasMore returns true if there are more results available.
func (r *ListReportsResult) HasMore() bool {
	return int64(r.Offset+r.Limit) < r.Total
}
