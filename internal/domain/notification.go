package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// NotificationType identifies why an officer was notified.
type NotificationType string

const (
	NotificationNewReport NotificationType = "NEW_REPORT"
	NotificationReminder  NotificationType = "REPORT_REMINDER"
)

// String returns the string representation of the notification type.
func (t NotificationType) String() string {
	return string(t)
}

// NotificationPayload is the report summary carried by a notification.
type NotificationPayload struct {
	SocietyID               uuid.UUID `json:"societyId"`
	SocietyName             string    `json:"societyName,omitempty"`
	VerificationProbability float64   `json:"verificationProbability"`
	AITrustScore            float64   `json:"aiTrustScore"`
	SubmissionDate          time.Time `json:"submissionDate"`
	ExpiresAt               time.Time `json:"expiresAt"`
	DaysUntilExpiry         int       `json:"daysUntilExpiry"`
}

// Notification is one in-app message for an officer.
type Notification struct {
	ID        uuid.UUID           `json:"id"`
	OfficerID uuid.UUID           `json:"officerId"`
	Type      NotificationType    `json:"type"`
	ReportID  uuid.UUID           `json:"reportId"`
	Title     string              `json:"title"`
	Message   string              `json:"message"`
	Payload   NotificationPayload `json:"payload"`
	Read      bool                `json:"read"`
	CreatedAt time.Time           `json:"createdAt"`
}

// DaysUntil returns the whole days from now until t, rounding up and never
// negative.
func DaysUntil(now, t time.Time) int {
	span := t.Sub(now)
	if span <= 0 {
		return 0
	}
	return int(math.Ceil(float64(span) / float64(24*time.Hour)))
}

// NotificationFilter narrows an officer's inbox listing.
type NotificationFilter struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

// ListNotificationsResult contains a page of notifications.
type ListNotificationsResult struct {
	Notifications []Notification `json:"notifications"`
	Total         int64          `json:"total"`
	Unread        int64          `json:"unread"`
	Limit         int            `json:"limit"`
	Offset        int            `json:"offset"`
}
