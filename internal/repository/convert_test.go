package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/bwg/internal/domain"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func sampleReport() *domain.Report {
	distance := 12.5
	battery := 80.0
	return &domain.Report{
		ID:             uuid.New(),
		SocietyID:      uuid.New(),
		SubmitterID:    uuid.New(),
		SubmissionDate: t0,
		SubmissionImages: []domain.ReportImage{
			{URL: "https://cdn.example.com/1.jpg", UploadedAt: t0},
			{URL: "https://cdn.example.com/2.jpg", UploadedAt: t0, Label: "bin"},
		},
		GPSMetadata: domain.GPSMetadata{Latitude: 12.97, Longitude: 77.59, Accuracy: 5, Timestamp: t0},
		IoTSensorData: &domain.IoTSensorData{
			DeviceID:        "dev-1",
			VibrationStatus: domain.VibrationDetected,
			BatteryLevel:    &battery,
			IsOnline:        true,
			Timestamp:       t0,
		},
		GeoDistanceMeters:       &distance,
		VerificationProbability: 72.5,
		AITrustScore:            64,
		VerificationStatus:      domain.StatusPending,
		ApprovalType:            domain.ApprovalNone,
		ExpiresAt:               t0.Add(7 * 24 * time.Hour),
	}
}

// rowFromCreate mirrors what the INSERT stores for a new report.
func rowFromCreate(p CreateReportParams) Report {
	return Report{
		ID:                      p.ID,
		SocietyID:               p.SocietyID,
		SubmitterID:             p.SubmitterID,
		SubmissionDate:          p.SubmissionDate,
		SubmissionImages:        p.SubmissionImages,
		VerificationImages:      p.VerificationImages,
		GpsMetadata:             p.GpsMetadata,
		IotSensorData:           p.IotSensorData,
		GeoDistanceMeters:       p.GeoDistanceMeters,
		VerificationProbability: p.VerificationProbability,
		AiTrustScore:            p.AiTrustScore,
		VerificationStatus:      p.VerificationStatus,
		ApprovalType:            p.ApprovalType,
		ExpiresAt:               p.ExpiresAt,
		NotifiedOfficers:        p.NotifiedOfficers,
	}
}

func TestCreateReportParams_DecodesBack(t *testing.T) {
	want := sampleReport()

	params, err := createReportParams(want)
	require.NoError(t, err)

	assert.JSONEq(t, "[]", string(params.VerificationImages))
	assert.JSONEq(t, "[]", string(params.NotifiedOfficers))
	assert.True(t, params.IotSensorData.Valid)
	assert.True(t, params.GeoDistanceMeters.Valid)

	got, err := reportFromRow(rowFromCreate(params))
	require.NoError(t, err)

	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.SubmissionImages, got.SubmissionImages)
	assert.Equal(t, want.GPSMetadata, got.GPSMetadata)
	require.NotNil(t, got.IoTSensorData)
	assert.Equal(t, "dev-1", got.IoTSensorData.DeviceID)
	assert.Equal(t, 80.0, *got.IoTSensorData.BatteryLevel)
	assert.Equal(t, 12.5, *got.GeoDistanceMeters)
	assert.Equal(t, domain.StatusPending, got.VerificationStatus)
	assert.Empty(t, got.VerificationImages)
	assert.NotNil(t, got.VerificationImages)
	assert.NotNil(t, got.NotifiedOfficers)
	assert.Nil(t, got.RebateAmount)
	assert.Nil(t, got.OfficerID)
}

func TestUpdateReportParams_ResolvedReport(t *testing.T) {
	r := sampleReport()
	officer := uuid.New()
	rebate := decimal.RequireFromString("547.95")
	days := 8
	reviewed := t0.Add(48 * time.Hour)

	r.VerificationStatus = domain.StatusOfficerApproved
	r.ApprovalType = domain.ApprovalOfficer
	r.OfficerID = &officer
	r.RebateAmount = &rebate
	r.ApprovedDays = &days
	r.ReviewTimestamp = &reviewed
	r.NotifiedOfficers = []uuid.UUID{officer}

	params, err := updateReportParams(r, domain.StatusPending)
	require.NoError(t, err)

	assert.Equal(t, string(domain.StatusPending), params.PrevStatus)
	assert.Equal(t, string(domain.StatusOfficerApproved), params.VerificationStatus)
	assert.Equal(t, uuid.NullUUID{UUID: officer, Valid: true}, params.OfficerID)
	assert.True(t, params.RebateAmount.Valid)
	assert.True(t, rebate.Equal(params.RebateAmount.Decimal))
	assert.Equal(t, int32(8), params.ApprovedDays.Int32)
	assert.True(t, params.ReviewTimestamp.Valid)
	assert.False(t, params.AutoProcessedAt.Valid)
	assert.False(t, params.N8nWebhookResponse.Valid)
	assert.JSONEq(t, `["`+officer.String()+`"]`, string(params.NotifiedOfficers))
}

func TestUpdateReportParams_PendingReportHasNullResolution(t *testing.T) {
	params, err := updateReportParams(sampleReport(), domain.StatusPending)
	require.NoError(t, err)

	assert.False(t, params.OfficerID.Valid)
	assert.False(t, params.RebateAmount.Valid)
	assert.False(t, params.ApprovedDays.Valid)
	assert.False(t, params.ReviewTimestamp.Valid)
}

func TestReportFromRow_CorruptJSON(t *testing.T) {
	params, err := createReportParams(sampleReport())
	require.NoError(t, err)

	row := rowFromCreate(params)
	row.SubmissionImages = []byte("{not json")

	_, err = reportFromRow(row)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "submission_images")
}

func TestSocietyFromRow_GeoLock(t *testing.T) {
	row := SocietyAccount{
		ID:                  uuid.New(),
		SocietyName:         "Green Meadows",
		PropertyTaxEstimate: decimal.NewFromInt(500000),
	}
	assert.Nil(t, societyFromRow(row).GeoLockCoordinates)

	row.GeoLockLatitude.Float64, row.GeoLockLatitude.Valid = 12.97, true
	row.GeoLockLongitude.Float64, row.GeoLockLongitude.Valid = 77.59, true

	got := societyFromRow(row)
	require.NotNil(t, got.GeoLockCoordinates)
	assert.Equal(t, 12.97, got.GeoLockCoordinates.Latitude)
	assert.Equal(t, 77.59, got.GeoLockCoordinates.Longitude)
}

func TestNullHelpers(t *testing.T) {
	assert.False(t, nullString("").Valid)
	assert.True(t, nullString("boom").Valid)
	assert.Nil(t, timePtr(nullTime(nil)))

	at := t0
	got := timePtr(nullTime(&at))
	require.NotNil(t, got)
	assert.True(t, at.Equal(*got))
}
