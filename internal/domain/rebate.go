package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// RebateRate is the annual share of the property tax credited for a
	// fully compliant year.
	RebateRate = decimal.RequireFromString("0.05")

	daysPerYear = decimal.NewFromInt(365)
)

// Rebate returns tax * 5% * days / 365 rounded half away from zero to two
// decimal places. Non-positive tax or days yield zero.
func Rebate(propertyTaxEstimate decimal.Decimal, approvedDays int) decimal.Decimal {
	if !propertyTaxEstimate.IsPositive() || approvedDays <= 0 {
		return decimal.Zero
	}
	return propertyTaxEstimate.
		Mul(RebateRate).
		Mul(decimal.NewFromInt(int64(approvedDays))).
		Div(daysPerYear).
		Round(2)
}

// ApprovedDays returns the whole days between submission and resolution,
// rounding partial days up. A non-positive span yields zero.
func ApprovedDays(submission, resolution time.Time) int {
	span := resolution.Sub(submission)
	if span <= 0 {
		return 0
	}
	return int(math.Ceil(float64(span) / float64(24*time.Hour)))
}
