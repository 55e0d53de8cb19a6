package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sqlc-dev/pqtype"
)

type Report struct {
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
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

type SocietyAccount struct {
	ID                  uuid.UUID
	SocietyName         string
	Email               string
	Phone               string
	AddressStreet       string
	AddressCity         string
	AddressState        string
	AddressPincode      string
	GeoLockLatitude     sql.NullFloat64
	GeoLockLongitude    sql.NullFloat64
	PropertyTaxEstimate decimal.Decimal
	WalletBalance       decimal.Decimal
	TotalRebatesEarned  decimal.Decimal
	ComplianceStreak    int32
	LastComplianceDate  sql.NullTime
	IsActive            bool
	IsVerified          bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type Officer struct {
	ID        uuid.UUID
	Name      string
	Email     string
	IsActive  bool
	CreatedAt time.Time
}

type Notification struct {
	ID        uuid.UUID
	OfficerID uuid.UUID
	Type      string
	ReportID  uuid.UUID
	Title     string
	Message   string
	Payload   []byte
	Read      bool
	CreatedAt time.Time
}

type Job struct {
	ID           uuid.UUID
	JobType      string
	Payload      []byte
	Status       string
	Priority     int32
	Attempts     int32
	MaxAttempts  int32
	ScheduledAt  time.Time
	StartedAt    sql.NullTime
	CompletedAt  sql.NullTime
	ErrorMessage sql.NullString
	CreatedAt    time.Time
}
