package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sqlc-dev/pqtype"
)

const reportColumns = `id, society_id, submitter_id, submission_date, submission_images,
	verification_images, gps_metadata, iot_sensor_data, geo_distance_meters,
	verification_probability, ai_trust_score, verification_status, approval_type,
	expires_at, review_timestamp, officer_id, officer_comments, rejection_reason,
	rebate_amount, approved_days, notified_officers, notification_sent_at,
	last_reminder_at, auto_processed_at, auto_processed_by, n8n_webhook_response,
	created_at, updated_at`

func scanReport(row rowScanner) (Report, error) {
	var i Report
	err := row.Scan(
		&i.ID,
		&i.SocietyID,
		&i.SubmitterID,
		&i.SubmissionDate,
		&i.SubmissionImages,
		&i.VerificationImages,
		&i.GpsMetadata,
		&i.IotSensorData,
		&i.GeoDistanceMeters,
		&i.VerificationProbability,
		&i.AiTrustScore,
		&i.VerificationStatus,
		&i.ApprovalType,
		&i.ExpiresAt,
		&i.ReviewTimestamp,
		&i.OfficerID,
		&i.OfficerComments,
		&i.RejectionReason,
		&i.RebateAmount,
		&i.ApprovedDays,
		&i.NotifiedOfficers,
		&i.NotificationSentAt,
		&i.LastReminderAt,
		&i.AutoProcessedAt,
		&i.AutoProcessedBy,
		&i.N8nWebhookResponse,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func scanReports(rows *sql.Rows) ([]Report, error) {
	defer rows.Close()
	var items []Report
	for rows.Next() {
		i, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createReport = `
INSERT INTO reports (
    id, society_id, submitter_id, submission_date, submission_images,
    verification_images, gps_metadata, iot_sensor_data, geo_distance_meters,
    verification_probability, ai_trust_score, verification_status, approval_type,
    expires_at, notified_officers
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
)
RETURNING ` + reportColumns

type CreateReportParams struct {
	ID                      uuid.UUID
	SocietyID               uuid.UUID
	SubmitterID             uuid.UUID
	SubmissionDate          time.Time
	SubmissionImages        []byte
	VerificationImages      []byte
	GpsMetadata             []byte
	IotSensorData           pqtype.NullRawMessage
	GeoDistanceMeters       sql.NullFloat64
	VerificationProbability float64
	AiTrustScore            float64
	VerificationStatus      string
	ApprovalType            string
	ExpiresAt               time.Time
	NotifiedOfficers        []byte
}

func (q *Queries) CreateReport(ctx context.Context, arg CreateReportParams) (Report, error) {
	row := q.db.QueryRowContext(ctx, createReport,
		arg.ID,
		arg.SocietyID,
		arg.SubmitterID,
		arg.SubmissionDate,
		arg.SubmissionImages,
		arg.VerificationImages,
		arg.GpsMetadata,
		arg.IotSensorData,
		arg.GeoDistanceMeters,
		arg.VerificationProbability,
		arg.AiTrustScore,
		arg.VerificationStatus,
		arg.ApprovalType,
		arg.ExpiresAt,
		arg.NotifiedOfficers,
	)
	return scanReport(row)
}

const getReport = `
SELECT ` + reportColumns + `
FROM reports
WHERE id = $1`

func (q *Queries) GetReport(ctx context.Context, id uuid.UUID) (Report, error) {
	return scanReport(q.db.QueryRowContext(ctx, getReport, id))
}

const getReportForUpdate = `
SELECT ` + reportColumns + `
FROM reports
WHERE id = $1
FOR UPDATE`

// GetReportForUpdate locks the report row until the surrounding transaction
// ends. Concurrent resolvers block here and then observe the committed
// status.
func (q *Queries) GetReportForUpdate(ctx context.Context, id uuid.UUID) (Report, error) {
	return scanReport(q.db.QueryRowContext(ctx, getReportForUpdate, id))
}

const listReports = `
SELECT ` + reportColumns + `
FROM reports
WHERE ($1::text = '' OR verification_status = $1)
  AND ($2::uuid IS NULL OR society_id = $2)
  AND ($3::uuid IS NULL OR submitter_id = $3)
ORDER BY submission_date DESC, id
LIMIT $4 OFFSET $5`

type ListReportsParams struct {
	Status      string
	SocietyID   uuid.NullUUID
	SubmitterID uuid.NullUUID
	Limit       int32
	Offset      int32
}

func (q *Queries) ListReports(ctx context.Context, arg ListReportsParams) ([]Report, error) {
	rows, err := q.db.QueryContext(ctx, listReports,
		arg.Status,
		arg.SocietyID,
		arg.SubmitterID,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	return scanReports(rows)
}

const countReports = `
SELECT COUNT(*)
FROM reports
WHERE ($1::text = '' OR verification_status = $1)
  AND ($2::uuid IS NULL OR society_id = $2)
  AND ($3::uuid IS NULL OR submitter_id = $3)`

type CountReportsParams struct {
	Status      string
	SocietyID   uuid.NullUUID
	SubmitterID uuid.NullUUID
}

func (q *Queries) CountReports(ctx context.Context, arg CountReportsParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, countReports, arg.Status, arg.SocietyID, arg.SubmitterID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const listExpiredPendingReports = `
SELECT ` + reportColumns + `
FROM reports
WHERE verification_status = 'PENDING'
  AND expires_at < $1
ORDER BY expires_at`

func (q *Queries) ListExpiredPendingReports(ctx context.Context, now time.Time) ([]Report, error) {
	rows, err := q.db.QueryContext(ctx, listExpiredPendingReports, now)
	if err != nil {
		return nil, err
	}
	return scanReports(rows)
}

const listPendingUnexpiredReports = `
SELECT ` + reportColumns + `
FROM reports
WHERE verification_status = 'PENDING'
  AND expires_at >= $1
ORDER BY submission_date`

func (q *Queries) ListPendingUnexpiredReports(ctx context.Context, now time.Time) ([]Report, error) {
	rows, err := q.db.QueryContext(ctx, listPendingUnexpiredReports, now)
	if err != nil {
		return nil, err
	}
	return scanReports(rows)
}

// expires_at and submission_date are deliberately absent from the SET list.
const updateReport = `
UPDATE reports SET
    verification_images = $3,
    verification_probability = $4,
    ai_trust_score = $5,
    verification_status = $6,
    approval_type = $7,
    review_timestamp = $8,
    officer_id = $9,
    officer_comments = $10,
    rejection_reason = $11,
    rebate_amount = $12,
    approved_days = $13,
    notified_officers = $14,
    notification_sent_at = $15,
    last_reminder_at = $16,
    auto_processed_at = $17,
    auto_processed_by = $18,
    n8n_webhook_response = $19,
    updated_at = NOW()
WHERE id = $1
  AND verification_status = $2`

type UpdateReportParams struct {
	ID                      uuid.UUID
	PrevStatus              string
	VerificationImages      []byte
	VerificationProbability float64
	AiTrustScore            float64
	VerificationStatus      string
	ApprovalType            string
	ReviewTimestamp         sql.NullTime
	OfficerID               uuid.NullUUID
	OfficerComments         string
	RejectionReason         string
	RebateAmount            decimal.NullDecimal
	ApprovedDays            sql.NullInt32
	NotifiedOfficers        []byte
	NotificationSentAt      sql.NullTime
	LastReminderAt          sql.NullTime
	AutoProcessedAt         sql.NullTime
	AutoProcessedBy         string
	N8nWebhookResponse      pqtype.NullRawMessage
}

func (q *Queries) UpdateReport(ctx context.Context, arg UpdateReportParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateReport,
		arg.ID,
		arg.PrevStatus,
		arg.VerificationImages,
		arg.VerificationProbability,
		arg.AiTrustScore,
		arg.VerificationStatus,
		arg.ApprovalType,
		arg.ReviewTimestamp,
		arg.OfficerID,
		arg.OfficerComments,
		arg.RejectionReason,
		arg.RebateAmount,
		arg.ApprovedDays,
		arg.NotifiedOfficers,
		arg.NotificationSentAt,
		arg.LastReminderAt,
		arg.AutoProcessedAt,
		arg.AutoProcessedBy,
		arg.N8nWebhookResponse,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listRebateLines = `
SELECT id, submission_date, rebate_amount, COALESCE(approved_days, 0), verification_status, approval_type
FROM reports
WHERE society_id = $1
  AND verification_status IN ('AUTO_APPROVED', 'OFFICER_APPROVED')
  AND rebate_amount > 0
ORDER BY submission_date DESC`

type ListRebateLinesRow struct {
	ID                 uuid.UUID
	SubmissionDate     time.Time
	RebateAmount       decimal.Decimal
	ApprovedDays       int32
	VerificationStatus string
	ApprovalType       string
}

func (q *Queries) ListRebateLines(ctx context.Context, societyID uuid.UUID) ([]ListRebateLinesRow, error) {
	rows, err := q.db.QueryContext(ctx, listRebateLines, societyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListRebateLinesRow
	for rows.Next() {
		var i ListRebateLinesRow
		if err := rows.Scan(
			&i.ID,
			&i.SubmissionDate,
			&i.RebateAmount,
			&i.ApprovedDays,
			&i.VerificationStatus,
			&i.ApprovalType,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listSocietyReportStats = `
SELECT
    s.id,
    s.society_name,
    s.compliance_streak,
    s.total_rebates_earned,
    s.last_compliance_date,
    COUNT(r.id) AS total_reports,
    COUNT(r.id) FILTER (WHERE r.verification_status IN ('AUTO_APPROVED', 'OFFICER_APPROVED')) AS approved_reports,
    COALESCE(AVG(r.verification_probability) FILTER (
        WHERE r.verification_status IN ('AUTO_APPROVED', 'OFFICER_APPROVED')
    ), 0)::float8 AS avg_verification
FROM society_accounts s
LEFT JOIN reports r ON r.society_id = s.id
WHERE s.is_active AND s.is_verified
GROUP BY s.id
ORDER BY s.society_name`

type ListSocietyReportStatsRow struct {
	ID                 uuid.UUID
	SocietyName        string
	ComplianceStreak   int32
	TotalRebatesEarned decimal.Decimal
	LastComplianceDate sql.NullTime
	TotalReports       int64
	ApprovedReports    int64
	AvgVerification    float64
}

func (q *Queries) ListSocietyReportStats(ctx context.Context) ([]ListSocietyReportStatsRow, error) {
	rows, err := q.db.QueryContext(ctx, listSocietyReportStats)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListSocietyReportStatsRow
	for rows.Next() {
		var i ListSocietyReportStatsRow
		if err := rows.Scan(
			&i.ID,
			&i.SocietyName,
			&i.ComplianceStreak,
			&i.TotalRebatesEarned,
			&i.LastComplianceDate,
			&i.TotalReports,
			&i.ApprovedReports,
			&i.AvgVerification,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
