package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DukeRupert/bwg/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sqlc-dev/pqtype"
)

// =============================================================================
// Report
// =============================================================================

func reportFromRow(row Report) (*domain.Report, error) {
	r := &domain.Report{
		ID:                      row.ID,
		SocietyID:               row.SocietyID,
		SubmitterID:             row.SubmitterID,
		SubmissionDate:          row.SubmissionDate,
		VerificationProbability: row.VerificationProbability,
		AITrustScore:            row.AiTrustScore,
		VerificationStatus:      domain.VerificationStatus(row.VerificationStatus),
		ApprovalType:            domain.ApprovalType(row.ApprovalType),
		ExpiresAt:               row.ExpiresAt,
		ReviewTimestamp:         timePtr(row.ReviewTimestamp),
		OfficerComments:         row.OfficerComments,
		RejectionReason:         row.RejectionReason,
		NotificationSentAt:      timePtr(row.NotificationSentAt),
		LastReminderAt:          timePtr(row.LastReminderAt),
		AutoProcessedAt:         timePtr(row.AutoProcessedAt),
		AutoProcessedBy:         row.AutoProcessedBy,
		CreatedAt:               row.CreatedAt,
		UpdatedAt:               row.UpdatedAt,
	}

	if err := unmarshalJSON(row.SubmissionImages, &r.SubmissionImages); err != nil {
		return nil, fmt.Errorf("decode submission_images: %w", err)
	}
	if err := unmarshalJSON(row.VerificationImages, &r.VerificationImages); err != nil {
		return nil, fmt.Errorf("decode verification_images: %w", err)
	}
	if err := unmarshalJSON(row.GpsMetadata, &r.GPSMetadata); err != nil {
		return nil, fmt.Errorf("decode gps_metadata: %w", err)
	}
	if err := unmarshalJSON(row.NotifiedOfficers, &r.NotifiedOfficers); err != nil {
		return nil, fmt.Errorf("decode notified_officers: %w", err)
	}
	if row.IotSensorData.Valid {
		r.IoTSensorData = &domain.IoTSensorData{}
		if err := json.Unmarshal(row.IotSensorData.RawMessage, r.IoTSensorData); err != nil {
			return nil, fmt.Errorf("decode iot_sensor_data: %w", err)
		}
	}
	if row.N8nWebhookResponse.Valid {
		r.WebhookResponse = &domain.WebhookResponse{}
		if err := json.Unmarshal(row.N8nWebhookResponse.RawMessage, r.WebhookResponse); err != nil {
			return nil, fmt.Errorf("decode n8n_webhook_response: %w", err)
		}
	}
	if row.GeoDistanceMeters.Valid {
		d := row.GeoDistanceMeters.Float64
		r.GeoDistanceMeters = &d
	}
	if row.OfficerID.Valid {
		id := row.OfficerID.UUID
		r.OfficerID = &id
	}
	if row.RebateAmount.Valid {
		amount := row.RebateAmount.Decimal
		r.RebateAmount = &amount
	}
	if row.ApprovedDays.Valid {
		days := int(row.ApprovedDays.Int32)
		r.ApprovedDays = &days
	}

	if r.VerificationImages == nil {
		r.VerificationImages = []domain.ReportImage{}
	}
	if r.NotifiedOfficers == nil {
		r.NotifiedOfficers = []uuid.UUID{}
	}
	return r, nil
}

func reportsFromRows(rows []Report) ([]domain.Report, error) {
	reports := make([]domain.Report, 0, len(rows))
	for _, row := range rows {
		r, err := reportFromRow(row)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, nil
}

func createReportParams(r *domain.Report) (CreateReportParams, error) {
	submissionImages, err := json.Marshal(r.SubmissionImages)
	if err != nil {
		return CreateReportParams{}, fmt.Errorf("encode submission_images: %w", err)
	}
	verificationImages, err := marshalList(r.VerificationImages)
	if err != nil {
		return CreateReportParams{}, fmt.Errorf("encode verification_images: %w", err)
	}
	gps, err := json.Marshal(r.GPSMetadata)
	if err != nil {
		return CreateReportParams{}, fmt.Errorf("encode gps_metadata: %w", err)
	}
	iot, err := nullJSON(r.IoTSensorData)
	if err != nil {
		return CreateReportParams{}, fmt.Errorf("encode iot_sensor_data: %w", err)
	}
	notified, err := marshalList(r.NotifiedOfficers)
	if err != nil {
		return CreateReportParams{}, fmt.Errorf("encode notified_officers: %w", err)
	}

	return CreateReportParams{
		ID:                      r.ID,
		SocietyID:               r.SocietyID,
		SubmitterID:             r.SubmitterID,
		SubmissionDate:          r.SubmissionDate,
		SubmissionImages:        submissionImages,
		VerificationImages:      verificationImages,
		GpsMetadata:             gps,
		IotSensorData:           iot,
		GeoDistanceMeters:       nullFloat(r.GeoDistanceMeters),
		VerificationProbability: r.VerificationProbability,
		AiTrustScore:            r.AITrustScore,
		VerificationStatus:      string(r.VerificationStatus),
		ApprovalType:            string(r.ApprovalType),
		ExpiresAt:               r.ExpiresAt,
		NotifiedOfficers:        notified,
	}, nil
}

func updateReportParams(r *domain.Report, prev domain.VerificationStatus) (UpdateReportParams, error) {
	verificationImages, err := marshalList(r.VerificationImages)
	if err != nil {
		return UpdateReportParams{}, fmt.Errorf("encode verification_images: %w", err)
	}
	notified, err := marshalList(r.NotifiedOfficers)
	if err != nil {
		return UpdateReportParams{}, fmt.Errorf("encode notified_officers: %w", err)
	}
	webhook, err := nullJSON(r.WebhookResponse)
	if err != nil {
		return UpdateReportParams{}, fmt.Errorf("encode n8n_webhook_response: %w", err)
	}

	params := UpdateReportParams{
		ID:                      r.ID,
		PrevStatus:              string(prev),
		VerificationImages:      verificationImages,
		VerificationProbability: r.VerificationProbability,
		AiTrustScore:            r.AITrustScore,
		VerificationStatus:      string(r.VerificationStatus),
		ApprovalType:            string(r.ApprovalType),
		ReviewTimestamp:         nullTime(r.ReviewTimestamp),
		OfficerComments:         r.OfficerComments,
		RejectionReason:         r.RejectionReason,
		NotifiedOfficers:        notified,
		NotificationSentAt:      nullTime(r.NotificationSentAt),
		LastReminderAt:          nullTime(r.LastReminderAt),
		AutoProcessedAt:         nullTime(r.AutoProcessedAt),
		AutoProcessedBy:         r.AutoProcessedBy,
		N8nWebhookResponse:      webhook,
	}
	if r.OfficerID != nil {
		params.OfficerID = uuid.NullUUID{UUID: *r.OfficerID, Valid: true}
	}
	if r.RebateAmount != nil {
		params.RebateAmount = decimal.NullDecimal{Decimal: *r.RebateAmount, Valid: true}
	}
	if r.ApprovedDays != nil {
		params.ApprovedDays = sql.NullInt32{Int32: int32(*r.ApprovedDays), Valid: true}
	}
	return params, nil
}

// =============================================================================
// Society, officer, notification, job
// =============================================================================

func societyFromRow(row SocietyAccount) *domain.SocietyAccount {
	s := &domain.SocietyAccount{
		ID:          row.ID,
		SocietyName: row.SocietyName,
		Email:       row.Email,
		Phone:       row.Phone,
		Address: domain.Address{
			Street:  row.AddressStreet,
			City:    row.AddressCity,
			State:   row.AddressState,
			Pincode: row.AddressPincode,
		},
		PropertyTaxEstimate: row.PropertyTaxEstimate,
		WalletBalance:       row.WalletBalance,
		TotalRebatesEarned:  row.TotalRebatesEarned,
		ComplianceStreak:    int(row.ComplianceStreak),
		LastComplianceDate:  timePtr(row.LastComplianceDate),
		IsActive:            row.IsActive,
		IsVerified:          row.IsVerified,
		CreatedAt:           row.CreatedAt,
		UpdatedAt:           row.UpdatedAt,
	}
	if row.GeoLockLatitude.Valid && row.GeoLockLongitude.Valid {
		s.GeoLockCoordinates = &domain.GeoPoint{
			Latitude:  row.GeoLockLatitude.Float64,
			Longitude: row.GeoLockLongitude.Float64,
		}
	}
	return s
}

func officerFromRow(row Officer) domain.Officer {
	return domain.Officer{
		ID:        row.ID,
		Name:      row.Name,
		Email:     row.Email,
		IsActive:  row.IsActive,
		CreatedAt: row.CreatedAt,
	}
}

func notificationFromRow(row Notification) (domain.Notification, error) {
	n := domain.Notification{
		ID:        row.ID,
		OfficerID: row.OfficerID,
		Type:      domain.NotificationType(row.Type),
		ReportID:  row.ReportID,
		Title:     row.Title,
		Message:   row.Message,
		Read:      row.Read,
		CreatedAt: row.CreatedAt,
	}
	if err := unmarshalJSON(row.Payload, &n.Payload); err != nil {
		return domain.Notification{}, fmt.Errorf("decode notification payload: %w", err)
	}
	return n, nil
}

func jobFromRow(row Job) *domain.Job {
	return &domain.Job{
		ID:           row.ID,
		JobType:      row.JobType,
		Payload:      row.Payload,
		Status:       domain.JobStatus(row.Status),
		Priority:     row.Priority,
		Attempts:     row.Attempts,
		MaxAttempts:  row.MaxAttempts,
		ScheduledAt:  row.ScheduledAt,
		StartedAt:    timePtr(row.StartedAt),
		CompletedAt:  timePtr(row.CompletedAt),
		ErrorMessage: row.ErrorMessage.String,
		CreatedAt:    row.CreatedAt,
	}
}

// =============================================================================
// Helpers
// =============================================================================

func unmarshalJSON(data []byte, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// marshalList encodes a slice, writing an empty array instead of null.
func marshalList[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}

func nullJSON[T any](v *T) (pqtype.NullRawMessage, error) {
	if v == nil {
		return pqtype.NullRawMessage{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return pqtype.NullRawMessage{}, err
	}
	return pqtype.NullRawMessage{RawMessage: data, Valid: true}, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
