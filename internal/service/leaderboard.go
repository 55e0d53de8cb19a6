package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/DukeRupert/bwg/internal/domain"
)

// LeaderboardService ranks societies by compliance.
type LeaderboardService interface {
	// Leaderboard returns one page of societies ranked by overall score.
	Leaderboard(ctx context.Context, limit, offset int) (*domain.LeaderboardResult, error)
}

// leaderboardService implements LeaderboardService.
type leaderboardService struct {
	store  domain.ReportStore
	logger *slog.Logger
}

// NewLeaderboardService creates a new LeaderboardService.
func NewLeaderboardService(store domain.ReportStore, logger *slog.Logger) LeaderboardService {
	return &leaderboardService{
		store:  store,
		logger: logger,
	}
}

// Leaderboard ranks every active, verified society. Ties on overall score
// are broken by approved reports, then by name.
func (s *leaderboardService) Leaderboard(ctx context.Context, limit, offset int) (*domain.LeaderboardResult, error) {
	const op = "LeaderboardService.Leaderboard"

	limit, offset = normalizePage(limit, offset)

	stats, err := s.store.ListSocietyReportStats(ctx)
	if err != nil {
		return nil, storeError(s.logger, err, op, "Failed to build leaderboard")
	}

	entries := make([]domain.LeaderboardEntry, len(stats))
	for i, st := range stats {
		entries[i] = st.Score()
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.OverallScore != b.OverallScore {
			return a.OverallScore > b.OverallScore
		}
		if a.ApprovedReports != b.ApprovedReports {
			return a.ApprovedReports > b.ApprovedReports
		}
		return strings.ToLower(a.SocietyName) < strings.ToLower(b.SocietyName)
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}

	total := len(entries)
	page := []domain.LeaderboardEntry{}
	if offset < total {
		end := offset + limit
		if end > total {
			end = total
		}
		page = entries[offset:end]
	}

	return &domain.LeaderboardResult{
		Entries: page,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	}, nil
}
