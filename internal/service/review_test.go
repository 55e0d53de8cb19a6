package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/bwg/internal/domain"
)

func TestReviewService_ApproveAfterTwoDays(t *testing.T) {
	f := newFixture(t)
	r := f.submit(t, 40)

	f.clock.Set(t0.Add(48 * time.Hour))
	svc := NewReviewService(f.store, discardLogger(), f.clock.Now)

	res, err := svc.Review(context.Background(), domain.ReviewParams{
		ReportID:  r.ID,
		OfficerID: f.officer.ID,
		Action:    domain.OutcomeApprove,
		Comments:  "Compost bins verified on site",
		VerificationImages: []domain.ReportImage{
			{URL: "https://cdn.example/site-visit.jpg", UploadedAt: t0.Add(48 * time.Hour)},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusOfficerApproved, res.Status)
	assert.Equal(t, domain.ApprovalOfficer, res.ApprovalType)
	require.NotNil(t, res.ApprovedDays)
	assert.Equal(t, 2, *res.ApprovedDays)
	require.NotNil(t, res.RebateAmount)
	assert.Equal(t, "136.99", res.RebateAmount.StringFixed(2))

	stored, err := f.store.GetReport(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, f.officer.ID, *stored.OfficerID)
	assert.Equal(t, "Compost bins verified on site", stored.OfficerComments)
	assert.Len(t, stored.VerificationImages, 1)
	assert.Equal(t, r.ExpiresAt, stored.ExpiresAt)

	account := f.account(t)
	assert.Equal(t, "136.99", account.WalletBalance.StringFixed(2))
	assert.Equal(t, "136.99", account.TotalRebatesEarned.StringFixed(2))
	assert.Equal(t, 1, account.ComplianceStreak)
}

func TestReviewService_Reject(t *testing.T) {
	tests := []struct {
		name       string
		comments   string
		wantReason string
	}{
		{name: "comments become the reason", comments: "Photos show an empty bin", wantReason: "Photos show an empty bin"},
		{name: "default reason", comments: "", wantReason: "Rejected by officer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			r := f.submit(t, 90)
			svc := NewReviewService(f.store, discardLogger(), f.clock.Now)

			res, err := svc.Review(context.Background(), domain.ReviewParams{
				ReportID:  r.ID,
				OfficerID: f.officer.ID,
				Action:    domain.OutcomeReject,
				Comments:  tt.comments,
			})
			require.NoError(t, err)
			assert.Equal(t, domain.StatusRejected, res.Status)
			assert.Nil(t, res.RebateAmount)

			stored, err := f.store.GetReport(context.Background(), r.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantReason, stored.RejectionReason)
			assert.True(t, f.account(t).WalletBalance.IsZero())
		})
	}
}

func TestReviewService_AlreadyResolved(t *testing.T) {
	f := newFixture(t)
	r := f.submit(t, 0)
	svc := NewReviewService(f.store, discardLogger(), f.clock.Now)

	params := domain.ReviewParams{ReportID: r.ID, OfficerID: f.officer.ID, Action: domain.OutcomeApprove}
	_, err := svc.Review(context.Background(), params)
	require.NoError(t, err)

	params.Action = domain.OutcomeReject
	_, err = svc.Review(context.Background(), params)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
	assert.Contains(t, domain.ErrorMessage(err), "already been reviewed")

	stored, err := f.store.GetReport(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOfficerApproved, stored.VerificationStatus)
	assert.Equal(t, 1, f.account(t).ComplianceStreak)
}

func TestReviewService_Invalid(t *testing.T) {
	f := newFixture(t)
	r := f.submit(t, 0)

	inactive := &domain.Officer{ID: uuid.New(), Name: "Retired", IsActive: false}
	require.NoError(t, f.store.CreateOfficer(context.Background(), inactive))

	tests := []struct {
		name     string
		params   domain.ReviewParams
		wantCode string
	}{
		{
			name:     "unknown action",
			params:   domain.ReviewParams{ReportID: r.ID, OfficerID: f.officer.ID, Action: "ESCALATE"},
			wantCode: domain.EINVALID,
		},
		{
			name:     "comments too long",
			params:   domain.ReviewParams{ReportID: r.ID, OfficerID: f.officer.ID, Action: domain.OutcomeApprove, Comments: strings.Repeat("x", 1001)},
			wantCode: domain.EINVALID,
		},
		{
			name: "bad verification image",
			params: domain.ReviewParams{
				ReportID: r.ID, OfficerID: f.officer.ID, Action: domain.OutcomeApprove,
				VerificationImages: []domain.ReportImage{{URL: "not a url"}},
			},
			wantCode: domain.EINVALID,
		},
		{
			name:     "unknown officer",
			params:   domain.ReviewParams{ReportID: r.ID, OfficerID: uuid.New(), Action: domain.OutcomeApprove},
			wantCode: domain.ENOTFOUND,
		},
		{
			name:     "inactive officer",
			params:   domain.ReviewParams{ReportID: r.ID, OfficerID: inactive.ID, Action: domain.OutcomeApprove},
			wantCode: domain.EINVALID,
		},
		{
			name:     "unknown report",
			params:   domain.ReviewParams{ReportID: uuid.New(), OfficerID: f.officer.ID, Action: domain.OutcomeApprove},
			wantCode: domain.ENOTFOUND,
		},
	}

	svc := NewReviewService(f.store, discardLogger(), f.clock.Now)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Review(context.Background(), tt.params)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, domain.ErrorCode(err))
		})
	}

	stored, err := f.store.GetReport(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.VerificationStatus)
}
