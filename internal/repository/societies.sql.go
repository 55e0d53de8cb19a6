package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const societyColumns = `id, society_name, email, phone, address_street, address_city,
	address_state, address_pincode, geo_lock_latitude, geo_lock_longitude,
	property_tax_estimate, wallet_balance, total_rebates_earned, compliance_streak,
	last_compliance_date, is_active, is_verified, created_at, updated_at`

func scanSociety(row rowScanner) (SocietyAccount, error) {
	var i SocietyAccount
	err := row.Scan(
		&i.ID,
		&i.SocietyName,
		&i.Email,
		&i.Phone,
		&i.AddressStreet,
		&i.AddressCity,
		&i.AddressState,
		&i.AddressPincode,
		&i.GeoLockLatitude,
		&i.GeoLockLongitude,
		&i.PropertyTaxEstimate,
		&i.WalletBalance,
		&i.TotalRebatesEarned,
		&i.ComplianceStreak,
		&i.LastComplianceDate,
		&i.IsActive,
		&i.IsVerified,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createSociety = `
INSERT INTO society_accounts (
    id, society_name, email, phone, address_street, address_city, address_state,
    address_pincode, geo_lock_latitude, geo_lock_longitude, property_tax_estimate,
    wallet_balance, total_rebates_earned, compliance_streak, is_active, is_verified
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
)
RETURNING ` + societyColumns

type CreateSocietyParams struct {
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
	IsActive            bool
	IsVerified          bool
}

func (q *Queries) CreateSociety(ctx context.Context, arg CreateSocietyParams) (SocietyAccount, error) {
	row := q.db.QueryRowContext(ctx, createSociety,
		arg.ID,
		arg.SocietyName,
		arg.Email,
		arg.Phone,
		arg.AddressStreet,
		arg.AddressCity,
		arg.AddressState,
		arg.AddressPincode,
		arg.GeoLockLatitude,
		arg.GeoLockLongitude,
		arg.PropertyTaxEstimate,
		arg.WalletBalance,
		arg.TotalRebatesEarned,
		arg.ComplianceStreak,
		arg.IsActive,
		arg.IsVerified,
	)
	return scanSociety(row)
}

const getSociety = `
SELECT ` + societyColumns + `
FROM society_accounts
WHERE id = $1`

func (q *Queries) GetSociety(ctx context.Context, id uuid.UUID) (SocietyAccount, error) {
	return scanSociety(q.db.QueryRowContext(ctx, getSociety, id))
}

const applyAccountDelta = `
UPDATE society_accounts SET
    wallet_balance = wallet_balance + $2,
    total_rebates_earned = total_rebates_earned + $2,
    compliance_streak = CASE
        WHEN $3::boolean THEN compliance_streak + 1
        WHEN $4::boolean THEN 0
        ELSE compliance_streak
    END,
    last_compliance_date = CASE
        WHEN $3::boolean THEN $5::timestamptz
        ELSE last_compliance_date
    END,
    updated_at = NOW()
WHERE id = $1`

type ApplyAccountDeltaParams struct {
	ID             uuid.UUID
	Rebate         decimal.Decimal
	Approved       bool
	Rejected       bool
	ComplianceDate time.Time
}

// ApplyAccountDelta increments balances in place so concurrent resolutions
// for the same society never overwrite each other.
func (q *Queries) ApplyAccountDelta(ctx context.Context, arg ApplyAccountDeltaParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, applyAccountDelta,
		arg.ID,
		arg.Rebate,
		arg.Approved,
		arg.Rejected,
		arg.ComplianceDate,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
