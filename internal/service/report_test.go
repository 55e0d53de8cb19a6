package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/bwg/internal/domain"
	"github.com/DukeRupert/bwg/internal/worker"
)

func TestReportService_Submit_ImageCount(t *testing.T) {
	tests := []struct {
		name    string
		images  int
		wantErr bool
	}{
		{name: "no images", images: 0, wantErr: true},
		{name: "one image", images: 1},
		{name: "five images", images: 5},
		{name: "six images", images: 6, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			r, err := f.reportService(false).Submit(context.Background(), f.submitParams(tt.images))

			if tt.wantErr {
				require.Error(t, err)
				var ve *domain.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Contains(t, ve.Fields, "images")
				return
			}
			require.NoError(t, err)
			assert.Len(t, r.SubmissionImages, tt.images)
		})
	}
}

func TestReportService_Submit(t *testing.T) {
	f := newFixture(t)
	svc := f.reportService(true)

	r, err := svc.Submit(context.Background(), f.submitParams(2))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, r.VerificationStatus)
	assert.Equal(t, domain.ApprovalNone, r.ApprovalType)
	assert.Equal(t, t0, r.SubmissionDate)
	assert.Equal(t, t0.Add(7*24*time.Hour), r.ExpiresAt)
	assert.Empty(t, r.NotifiedOfficers)
	assert.Nil(t, r.RebateAmount)
	for _, img := range r.SubmissionImages {
		assert.Equal(t, t0, img.UploadedAt)
	}

	require.NotNil(t, r.GeoDistanceMeters)
	assert.InDelta(t, 62, *r.GeoDistanceMeters, 2)

	stored, err := svc.Get(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, stored.ID)

	assert.Len(t, f.store.Jobs(worker.JobTypeNotifyNewReport), 1)
	assert.Len(t, f.store.Jobs(worker.JobTypeTriggerDetection), 1)
}

func TestReportService_Submit_DetectionDisabled(t *testing.T) {
	f := newFixture(t)

	_, err := f.reportService(false).Submit(context.Background(), f.submitParams(1))
	require.NoError(t, err)

	assert.Len(t, f.store.Jobs(worker.JobTypeNotifyNewReport), 1)
	assert.Empty(t, f.store.Jobs(worker.JobTypeTriggerDetection))
}

func TestReportService_Submit_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(f *fixture, p *domain.CreateReportParams)
		wantCode string
	}{
		{
			name:     "missing gps",
			mutate:   func(f *fixture, p *domain.CreateReportParams) { p.GPSMetadata = nil },
			wantCode: domain.EINVALID,
		},
		{
			name:     "latitude out of range",
			mutate:   func(f *fixture, p *domain.CreateReportParams) { p.GPSMetadata.Latitude = 95 },
			wantCode: domain.EINVALID,
		},
		{
			name:     "image without url",
			mutate:   func(f *fixture, p *domain.CreateReportParams) { p.Images[0].URL = "" },
			wantCode: domain.EINVALID,
		},
		{
			name:     "score out of range",
			mutate:   func(f *fixture, p *domain.CreateReportParams) { p.VerificationProbability = 140 },
			wantCode: domain.EINVALID,
		},
		{
			name:     "unknown society",
			mutate:   func(f *fixture, p *domain.CreateReportParams) { p.SocietyID = uuid.New() },
			wantCode: domain.ENOTFOUND,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			params := f.submitParams(1)
			tt.mutate(f, &params)

			_, err := f.reportService(false).Submit(context.Background(), params)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, domain.ErrorCode(err))

			list, err := f.reportService(false).List(context.Background(), domain.ReportFilter{})
			require.NoError(t, err)
			assert.Zero(t, list.Total)
		})
	}
}

func TestReportService_Submit_InactiveSociety(t *testing.T) {
	f := newFixture(t)
	inactive := &domain.SocietyAccount{ID: uuid.New(), SocietyName: "Dormant Towers"}
	require.NoError(t, f.store.CreateSociety(context.Background(), inactive))

	params := f.submitParams(1)
	params.SocietyID = inactive.ID

	_, err := f.reportService(false).Submit(context.Background(), params)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestReportService_List(t *testing.T) {
	f := newFixture(t)
	svc := f.reportService(false)
	for i := 0; i < 3; i++ {
		f.clock.Set(t0.Add(time.Duration(i) * time.Hour))
		f.submit(t, 0)
	}

	t.Run("defaults", func(t *testing.T) {
		res, err := svc.List(context.Background(), domain.ReportFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), res.Total)
		assert.Equal(t, DefaultPageSize, res.Limit)
		assert.Len(t, res.Reports, 3)
	})

	t.Run("page", func(t *testing.T) {
		res, err := svc.List(context.Background(), domain.ReportFilter{Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.Len(t, res.Reports, 1)
		assert.False(t, res.HasMore())
	})

	t.Run("limit is capped", func(t *testing.T) {
		res, err := svc.List(context.Background(), domain.ReportFilter{Limit: 1000})
		require.NoError(t, err)
		assert.Equal(t, MaxPageSize, res.Limit)
	})

	t.Run("status filter", func(t *testing.T) {
		res, err := svc.List(context.Background(), domain.ReportFilter{Status: domain.StatusRejected})
		require.NoError(t, err)
		assert.Zero(t, res.Total)
		assert.NotNil(t, res.Reports)
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := svc.List(context.Background(), domain.ReportFilter{Status: "LOST"})
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	})
}

func TestReportService_RebateSummary(t *testing.T) {
	f := newFixture(t)
	reviews := NewReviewService(f.store, discardLogger(), f.clock.Now)

	for _, days := range []int{2, 30} {
		f.clock.Set(t0)
		r := f.submit(t, 80)
		f.clock.Set(t0.Add(time.Duration(days) * 24 * time.Hour))
		_, err := reviews.Review(context.Background(), domain.ReviewParams{
			ReportID: r.ID, OfficerID: f.officer.ID, Action: domain.OutcomeApprove,
		})
		require.NoError(t, err)
	}

	summary, err := f.reportService(false).RebateSummary(context.Background(), f.society.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.TotalApprovedReports)
	assert.Equal(t, 32, summary.TotalApprovedDays)
	assert.Equal(t, "2191.78", summary.TotalRebatesEarned.StringFixed(2))
	assert.Equal(t, "2191.78", summary.WalletBalance.StringFixed(2))
	assert.Equal(t, "1095.89", summary.AverageRebatePerReport.StringFixed(2))
}
