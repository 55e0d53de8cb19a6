// Package memory implements domain.Store in process memory.
// Intended for development and tests; nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/DukeRupert/bwg/internal/domain"
	"github.com/google/uuid"
)

// Store keeps every entity in maps guarded by a single mutex. UpdateReport
// holds the write lock for the whole load, mutate and save sequence, so
// two resolvers can never both see a report as PENDING.
type Store struct {
	mu            sync.RWMutex
	reports       map[uuid.UUID]*domain.Report
	societies     map[uuid.UUID]*domain.SocietyAccount
	officers      map[uuid.UUID]*domain.Officer
	notifications []*domain.Notification
	jobs          map[uuid.UUID]*domain.Job

	now func() time.Time
}

var _ domain.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		reports:   make(map[uuid.UUID]*domain.Report),
		societies: make(map[uuid.UUID]*domain.SocietyAccount),
		officers:  make(map[uuid.UUID]*domain.Officer),
		jobs:      make(map[uuid.UUID]*domain.Job),
		now:       time.Now,
	}
}

// WithClock replaces the clock used for timestamps and job scheduling.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// =============================================================================
// Reports
// =============================================================================

func (s *Store) CreateReport(_ context.Context, r *domain.Report) error {
	const op = "memory.create_report"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reports[r.ID]; exists {
		return domain.Conflict(op, "report already exists")
	}
	now := s.now()
	r.CreatedAt = now
	r.UpdatedAt = now
	s.reports[r.ID] = cloneReport(r)
	return nil
}

func (s *Store) GetReport(_ context.Context, id uuid.UUID) (*domain.Report, error) {
	const op = "memory.get_report"

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[id]
	if !ok {
		return nil, domain.NotFound(op, "report", id.String())
	}
	return cloneReport(r), nil
}

func (s *Store) ListReports(_ context.Context, filter domain.ReportFilter) ([]domain.Report, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []domain.Report
	for _, r := range s.reports {
		if filter.Status != "" && r.VerificationStatus != filter.Status {
			continue
		}
		if filter.SocietyID != nil && r.SocietyID != *filter.SocietyID {
			continue
		}
		if filter.SubmitterID != nil && r.SubmitterID != *filter.SubmitterID {
			continue
		}
		matched = append(matched, *cloneReport(r))
	}

	// Sort by submission_date DESC.
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].SubmissionDate.Equal(matched[j].SubmissionDate) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].SubmissionDate.After(matched[j].SubmissionDate)
	})

	total := int64(len(matched))
	return paginate(matched, filter.Limit, filter.Offset), total, nil
}

func (s *Store) ListExpiredPending(_ context.Context, now time.Time) ([]domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []domain.Report
	for _, r := range s.reports {
		if r.IsPending() && r.ExpiresAt.Before(now) {
			matched = append(matched, *cloneReport(r))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ExpiresAt.Before(matched[j].ExpiresAt)
	})
	return matched, nil
}

func (s *Store) ListPendingUnexpired(_ context.Context, now time.Time) ([]domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []domain.Report
	for _, r := range s.reports {
		if r.IsPending() && !r.ExpiresAt.Before(now) {
			matched = append(matched, *cloneReport(r))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].SubmissionDate.Before(matched[j].SubmissionDate)
	})
	return matched, nil
}

func (s *Store) UpdateReport(_ context.Context, id uuid.UUID, fn domain.UpdateReportFunc) (*domain.Report, error) {
	const op = "memory.update_report"

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.reports[id]
	if !ok {
		return nil, domain.NotFound(op, "report", id.String())
	}

	working := cloneReport(stored)
	var account *domain.SocietyAccount
	if a, ok := s.societies[working.SocietyID]; ok {
		copied := *a
		account = &copied
	}

	delta, err := fn(working, account)
	if err != nil {
		return nil, err
	}

	// The creation-time fields are never rewritten.
	working.SubmissionDate = stored.SubmissionDate
	working.ExpiresAt = stored.ExpiresAt
	working.CreatedAt = stored.CreatedAt
	working.UpdatedAt = s.now()
	s.reports[id] = cloneReport(working)

	if delta != nil {
		if a, ok := s.societies[working.SocietyID]; ok {
			a.Apply(delta)
		}
	}
	return working, nil
}

func (s *Store) ListRebateLines(_ context.Context, societyID uuid.UUID) ([]domain.RebateLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var lines []domain.RebateLine
	for _, r := range s.reports {
		if r.SocietyID != societyID || !r.VerificationStatus.IsApproved() {
			continue
		}
		if r.RebateAmount == nil || !r.RebateAmount.IsPositive() {
			continue
		}
		line := domain.RebateLine{
			ReportID:           r.ID,
			SubmissionDate:     r.SubmissionDate,
			RebateAmount:       *r.RebateAmount,
			VerificationStatus: r.VerificationStatus,
			ApprovalType:       r.ApprovalType,
		}
		if r.ApprovedDays != nil {
			line.ApprovedDays = *r.ApprovedDays
		}
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].SubmissionDate.After(lines[j].SubmissionDate)
	})
	return lines, nil
}

func (s *Store) ListSocietyReportStats(_ context.Context) ([]domain.SocietyReportStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := make(map[uuid.UUID]*domain.SocietyReportStats)
	verificationSums := make(map[uuid.UUID]float64)
	for _, a := range s.societies {
		if !a.IsActive || !a.IsVerified {
			continue
		}
		byID[a.ID] = &domain.SocietyReportStats{
			SocietyID:          a.ID,
			SocietyName:        a.SocietyName,
			ComplianceStreak:   a.ComplianceStreak,
			TotalRebatesEarned: a.TotalRebatesEarned,
			LastComplianceDate: a.LastComplianceDate,
		}
	}
	for _, r := range s.reports {
		st, ok := byID[r.SocietyID]
		if !ok {
			continue
		}
		st.TotalReports++
		if r.VerificationStatus.IsApproved() {
			st.ApprovedReports++
			verificationSums[r.SocietyID] += r.VerificationProbability
		}
	}

	stats := make([]domain.SocietyReportStats, 0, len(byID))
	for id, st := range byID {
		if st.ApprovedReports > 0 {
			st.AvgVerification = verificationSums[id] / float64(st.ApprovedReports)
		}
		stats = append(stats, *st)
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].SocietyName < stats[j].SocietyName
	})
	return stats, nil
}

// =============================================================================
// Societies and officers
// =============================================================================

func (s *Store) CreateSociety(_ context.Context, a *domain.SocietyAccount) error {
	const op = "memory.create_society"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.societies[a.ID]; exists {
		return domain.Conflict(op, "society already exists")
	}
	now := s.now()
	a.CreatedAt = now
	a.UpdatedAt = now
	copied := *a
	s.societies[a.ID] = &copied
	return nil
}

func (s *Store) GetSociety(_ context.Context, id uuid.UUID) (*domain.SocietyAccount, error) {
	const op = "memory.get_society"

	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.societies[id]
	if !ok {
		return nil, domain.NotFound(op, "society", id.String())
	}
	copied := *a
	return &copied, nil
}

func (s *Store) CreateOfficer(_ context.Context, o *domain.Officer) error {
	const op = "memory.create_officer"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.officers[o.ID]; exists {
		return domain.Conflict(op, "officer already exists")
	}
	o.CreatedAt = s.now()
	copied := *o
	s.officers[o.ID] = &copied
	return nil
}

func (s *Store) GetOfficer(_ context.Context, id uuid.UUID) (*domain.Officer, error) {
	const op = "memory.get_officer"

	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.officers[id]
	if !ok {
		return nil, domain.NotFound(op, "officer", id.String())
	}
	copied := *o
	return &copied, nil
}

func (s *Store) ListActiveOfficers(_ context.Context) ([]domain.Officer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var officers []domain.Officer
	for _, o := range s.officers {
		if o.IsActive {
			officers = append(officers, *o)
		}
	}
	sort.Slice(officers, func(i, j int) bool {
		return officers[i].CreatedAt.Before(officers[j].CreatedAt)
	})
	return officers, nil
}

// =============================================================================
// Notifications
// =============================================================================

func (s *Store) CreateNotification(_ context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n.CreatedAt = s.now()
	copied := *n
	s.notifications = append(s.notifications, &copied)
	return nil
}

func (s *Store) ListNotifications(_ context.Context, officerID uuid.UUID, filter domain.NotificationFilter) ([]domain.Notification, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []domain.Notification
	// Newest first.
	for i := len(s.notifications) - 1; i >= 0; i-- {
		n := s.notifications[i]
		if n.OfficerID != officerID {
			continue
		}
		if filter.UnreadOnly && n.Read {
			continue
		}
		matched = append(matched, *n)
	}

	total := int64(len(matched))
	return paginate(matched, filter.Limit, filter.Offset), total, nil
}

func (s *Store) CountUnreadNotifications(_ context.Context, officerID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, n := range s.notifications {
		if n.OfficerID == officerID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, officerID, id uuid.UUID) error {
	const op = "memory.mark_notification_read"

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.notifications {
		if n.ID == id && n.OfficerID == officerID {
			n.Read = true
			return nil
		}
	}
	return domain.NotFound(op, "notification", id.String())
}

// =============================================================================
// Helpers
// =============================================================================

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// cloneReport deep-copies the mutable parts of a report so callers never
// share memory with the stored value.
func cloneReport(r *domain.Report) *domain.Report {
	c := *r
	c.SubmissionImages = append([]domain.ReportImage(nil), r.SubmissionImages...)
	c.VerificationImages = append([]domain.ReportImage{}, r.VerificationImages...)
	c.NotifiedOfficers = append([]uuid.UUID{}, r.NotifiedOfficers...)
	if r.IoTSensorData != nil {
		iot := *r.IoTSensorData
		c.IoTSensorData = &iot
	}
	if r.WebhookResponse != nil {
		wr := *r.WebhookResponse
		c.WebhookResponse = &wr
	}
	c.GeoDistanceMeters = copyPtr(r.GeoDistanceMeters)
	c.ReviewTimestamp = copyPtr(r.ReviewTimestamp)
	c.OfficerID = copyPtr(r.OfficerID)
	c.RebateAmount = copyPtr(r.RebateAmount)
	c.ApprovedDays = copyPtr(r.ApprovedDays)
	c.NotificationSentAt = copyPtr(r.NotificationSentAt)
	c.LastReminderAt = copyPtr(r.LastReminderAt)
	c.AutoProcessedAt = copyPtr(r.AutoProcessedAt)
	return &c
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
