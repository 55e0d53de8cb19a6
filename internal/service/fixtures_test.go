package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/bwg/internal/domain"
	"github.com/DukeRupert/bwg/internal/store/memory"
)

// t0 is the submission time used across scenarios.
var t0 = time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)

// testClock is a settable clock shared by services and the store.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{now: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	store   *memory.Store
	clock   *testClock
	society *domain.SocietyAccount
	officer *domain.Officer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := newTestClock(t0)
	store := memory.New().WithClock(clock.Now)

	society := &domain.SocietyAccount{
		ID:                  uuid.New(),
		SocietyName:         "Green Meadows CHS",
		Email:               "secretary@greenmeadows.example",
		GeoLockCoordinates:  &domain.GeoPoint{Latitude: 12.9716, Longitude: 77.5946},
		PropertyTaxEstimate: decimal.NewFromInt(500000),
		WalletBalance:       decimal.Zero,
		TotalRebatesEarned:  decimal.Zero,
		IsActive:            true,
		IsVerified:          true,
	}
	require.NoError(t, store.CreateSociety(context.Background(), society))

	officer := &domain.Officer{ID: uuid.New(), Name: "R. Iyer", Email: "iyer@city.example", IsActive: true}
	require.NoError(t, store.CreateOfficer(context.Background(), officer))

	return &fixture{store: store, clock: clock, society: society, officer: officer}
}

func (f *fixture) reportService(detection bool) ReportService {
	return NewReportService(f.store, ReportServiceConfig{ExpiryDays: 7, DetectionEnabled: detection}, discardLogger(), f.clock.Now)
}

func (f *fixture) submitParams(images int) domain.CreateReportParams {
	imgs := make([]domain.ReportImage, images)
	for i := range imgs {
		imgs[i] = domain.ReportImage{URL: "https://cdn.example/compost-" + uuid.NewString() + ".jpg", Label: "bin"}
	}
	return domain.CreateReportParams{
		SocietyID:   f.society.ID,
		SubmitterID: uuid.New(),
		Images:      imgs,
		GPSMetadata: &domain.GPSMetadata{
			Latitude:  12.9720,
			Longitude: 77.5950,
			Accuracy:  8,
			Timestamp: t0,
		},
	}
}

// submit stores a PENDING report at the current clock time.
func (f *fixture) submit(t *testing.T, probability float64) *domain.Report {
	t.Helper()
	params := f.submitParams(1)
	params.VerificationProbability = probability
	r, err := f.reportService(false).Submit(context.Background(), params)
	require.NoError(t, err)
	return r
}

func (f *fixture) account(t *testing.T) *domain.SocietyAccount {
	t.Helper()
	a, err := f.store.GetSociety(context.Background(), f.society.ID)
	require.NoError(t, err)
	return a
}
