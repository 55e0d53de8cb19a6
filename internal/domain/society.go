package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Address is a society's postal address.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}

// GeoPoint is a latitude/longitude pair.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SocietyAccount is the housing society whose wallet receives rebates.
// Balances only change through report resolutions.
type SocietyAccount struct {
	ID                  uuid.UUID       `json:"id"`
	SocietyName         string          `json:"societyName"`
	Email               string          `json:"email"`
	Phone               string          `json:"phone"`
	Address             Address         `json:"address"`
	GeoLockCoordinates  *GeoPoint       `json:"geoLockCoordinates,omitempty"`
	PropertyTaxEstimate decimal.Decimal `json:"propertyTaxEstimate"`
	WalletBalance       decimal.Decimal `json:"walletBalance"`
	TotalRebatesEarned  decimal.Decimal `json:"totalRebatesEarned"`
	ComplianceStreak    int             `json:"complianceStreak"`
	LastComplianceDate  *time.Time      `json:"lastComplianceDate,omitempty"`
	IsActive            bool            `json:"isActive"`
	IsVerified          bool            `json:"isVerified"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// HasTaxBase returns true if the society has a positive property tax
// estimate. Approvals without a tax base carry no rebate.
func (s *SocietyAccount) HasTaxBase() bool {
	return s.PropertyTaxEstimate.IsPositive()
}

// Apply adds a resolution delta to the account. Stores that can increment
// in place use the delta directly; this is for stores that hold values.
func (s *SocietyAccount) Apply(d *AccountDelta) {
	if d == nil {
		return
	}
	s.WalletBalance = s.WalletBalance.Add(d.Rebate)
	s.TotalRebatesEarned = s.TotalRebatesEarned.Add(d.Rebate)
	switch {
	case d.Approved:
		s.ComplianceStreak++
		at := d.ComplianceDate
		s.LastComplianceDate = &at
	case d.Rejected:
		s.ComplianceStreak = 0
	}
	s.UpdatedAt = d.ComplianceDate
}

// =============================================================================
// Rebate Summary
// =============================================================================

// RebateLine is one approved report in a rebate summary.
type RebateLine struct {
	ReportID           uuid.UUID          `json:"reportId"`
	SubmissionDate     time.Time          `json:"submissionDate"`
	RebateAmount       decimal.Decimal    `json:"rebateAmount"`
	ApprovedDays       int                `json:"approvedDays"`
	VerificationStatus VerificationStatus `json:"verificationStatus"`
	ApprovalType       ApprovalType       `json:"approvalType"`
}

// RebateSummary aggregates the rebates a society earned.
type RebateSummary struct {
	SocietyID              uuid.UUID       `json:"societyId"`
	SocietyName            string          `json:"societyName"`
	PropertyTaxEstimate    decimal.Decimal `json:"propertyTaxEstimate"`
	WalletBalance          decimal.Decimal `json:"walletBalance"`
	TotalRebatesEarned     decimal.Decimal `json:"totalRebatesEarned"`
	TotalApprovedReports   int             `json:"totalApprovedReports"`
	TotalApprovedDays      int             `json:"totalApprovedDays"`
	AverageRebatePerReport decimal.Decimal `json:"averageRebatePerReport"`
	Rebates                []RebateLine    `json:"rebates"`
}

// NewRebateSummary totals the given approved report lines.
func NewRebateSummary(account *SocietyAccount, lines []RebateLine) RebateSummary {
	summary := RebateSummary{
		SocietyID:              account.ID,
		SocietyName:            account.SocietyName,
		PropertyTaxEstimate:    account.PropertyTaxEstimate,
		WalletBalance:          account.WalletBalance,
		TotalRebatesEarned:     decimal.Zero,
		AverageRebatePerReport: decimal.Zero,
		Rebates:                lines,
	}
	if summary.Rebates == nil {
		summary.Rebates = []RebateLine{}
	}
	for _, l := range lines {
		summary.TotalRebatesEarned = summary.TotalRebatesEarned.Add(l.RebateAmount)
		summary.TotalApprovedDays += l.ApprovedDays
	}
	summary.TotalApprovedReports = len(lines)
	if len(lines) > 0 {
		summary.AverageRebatePerReport = summary.TotalRebatesEarned.
			Div(decimal.NewFromInt(int64(len(lines)))).
			Round(2)
	}
	return summary
}

// =============================================================================
// Leaderboard
// =============================================================================

// SocietyReportStats is the per-society aggregate the leaderboard is built
// from. Only active, verified societies are included.
type SocietyReportStats struct {
	SocietyID          uuid.UUID
	SocietyName        string
	TotalReports       int
	ApprovedReports    int
	AvgVerification    float64 // mean verification probability of approved reports
	ComplianceStreak   int
	TotalRebatesEarned decimal.Decimal
	LastComplianceDate *time.Time
}

// LeaderboardEntry is one ranked society.
type LeaderboardEntry struct {
	Rank                     int             `json:"rank"`
	SocietyID                uuid.UUID       `json:"societyId"`
	SocietyName              string          `json:"societyName"`
	TotalReports             int             `json:"totalReports"`
	ApprovedReports          int             `json:"approvedReports"`
	ConsistencyScore         float64         `json:"consistencyScore"`
	AverageVerificationScore float64         `json:"averageVerificationScore"`
	ComplianceStreak         int             `json:"complianceStreak"`
	TotalRebatesEarned       decimal.Decimal `json:"totalRebatesEarned"`
	OverallScore             int             `json:"overallScore"`
	LastComplianceDate       *time.Time      `json:"lastComplianceDate,omitempty"`
}

// Score computes the unranked leaderboard entry. The overall score weighs
// verification quality 50%, approval consistency 30% and the streak bonus
// (two points per period) 20%.
func (s SocietyReportStats) Score() LeaderboardEntry {
	consistency := 0.0
	if s.TotalReports > 0 {
		consistency = float64(s.ApprovedReports) / float64(s.TotalReports) * 100
	}
	bonus := float64(s.ComplianceStreak * 2)
	overall := math.Round(s.AvgVerification*0.5 + consistency*0.3 + bonus*0.2)

	return LeaderboardEntry{
		SocietyID:                s.SocietyID,
		SocietyName:              s.SocietyName,
		TotalReports:             s.TotalReports,
		ApprovedReports:          s.ApprovedReports,
		ConsistencyScore:         round2(consistency),
		AverageVerificationScore: round2(s.AvgVerification),
		ComplianceStreak:         s.ComplianceStreak,
		TotalRebatesEarned:       s.TotalRebatesEarned,
		OverallScore:             int(overall),
		LastComplianceDate:       s.LastComplianceDate,
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// LeaderboardResult is a page of ranked societies.
type LeaderboardResult struct {
	Entries []LeaderboardEntry `json:"leaderboard"`
	Total   int                `json:"total"`
	Limit   int                `json:"limit"`
	Offset  int                `json:"offset"`
}
