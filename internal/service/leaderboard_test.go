package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/bwg/internal/domain"
)

func TestLeaderboardService_Leaderboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reviews := NewReviewService(f.store, discardLogger(), f.clock.Now)

	runner := &domain.SocietyAccount{
		ID: uuid.New(), SocietyName: "Banyan Court", PropertyTaxEstimate: decimal.NewFromInt(100000),
		IsActive: true, IsVerified: true,
	}
	unverified := &domain.SocietyAccount{
		ID: uuid.New(), SocietyName: "Pending Heights", IsActive: true, IsVerified: false,
	}
	require.NoError(t, f.store.CreateSociety(ctx, runner))
	require.NoError(t, f.store.CreateSociety(ctx, unverified))

	// Green Meadows: two approvals at 90. Banyan Court: one approval, one rejection.
	for _, p := range []float64{90, 90} {
		r := f.submit(t, p)
		_, err := reviews.Review(ctx, domain.ReviewParams{ReportID: r.ID, OfficerID: f.officer.ID, Action: domain.OutcomeApprove})
		require.NoError(t, err)
	}
	for _, action := range []domain.Outcome{domain.OutcomeReject, domain.OutcomeApprove} {
		params := f.submitParams(1)
		params.SocietyID = runner.ID
		params.VerificationProbability = 60
		r, err := f.reportService(false).Submit(ctx, params)
		require.NoError(t, err)
		_, err = reviews.Review(ctx, domain.ReviewParams{ReportID: r.ID, OfficerID: f.officer.ID, Action: action})
		require.NoError(t, err)
	}

	svc := NewLeaderboardService(f.store, discardLogger())

	res, err := svc.Leaderboard(ctx, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 2, res.Total)
	require.Len(t, res.Entries, 2)

	first, second := res.Entries[0], res.Entries[1]
	assert.Equal(t, 1, first.Rank)
	assert.Equal(t, "Green Meadows CHS", first.SocietyName)
	// 90*0.5 + 100*0.3 + (2*2)*0.2 = 75.8
	assert.Equal(t, 76, first.OverallScore)
	assert.Equal(t, 2, second.Rank)
	assert.Equal(t, "Banyan Court", second.SocietyName)
	// 60*0.5 + 50*0.3 + (1*2)*0.2 = 45.4
	assert.Equal(t, 45, second.OverallScore)

	page, err := svc.Leaderboard(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, 2, page.Entries[0].Rank)

	empty, err := svc.Leaderboard(ctx, 10, 10)
	require.NoError(t, err)
	assert.Empty(t, empty.Entries)
	assert.NotNil(t, empty.Entries)
}
