package notify

import (
	"context"

	"github.com/google/uuid"

	"github.com/DukeRupert/bwg/internal/domain"
)

// Inbox pagination bounds.
const (
	DefaultInboxLimit = 50
	MaxInboxLimit     = 100
)

// Inbox reads and acknowledges an officer's in-app notifications.
type Inbox struct {
	store Store
}

// NewInbox creates an Inbox.
func NewInbox(store Store) *Inbox {
	return &Inbox{store: store}
}

// List returns a page of the officer's notifications, newest first.
func (i *Inbox) List(ctx context.Context, officerID uuid.UUID, filter domain.NotificationFilter) (*domain.ListNotificationsResult, error) {
	const op = "Inbox.List"

	if err := i.requireOfficer(ctx, op, officerID); err != nil {
		return nil, err
	}

	if filter.Limit <= 0 {
		filter.Limit = DefaultInboxLimit
	}
	if filter.Limit > MaxInboxLimit {
		filter.Limit = MaxInboxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	items, total, err := i.store.ListNotifications(ctx, officerID, filter)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list notifications")
	}
	unread, err := i.store.CountUnreadNotifications(ctx, officerID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to count unread notifications")
	}
	if items == nil {
		items = []domain.Notification{}
	}

	return &domain.ListNotificationsResult{
		Notifications: items,
		Total:         total,
		Unread:        unread,
		Limit:         filter.Limit,
		Offset:        filter.Offset,
	}, nil
}

// UnreadCount returns the number of unread notifications.
func (i *Inbox) UnreadCount(ctx context.Context, officerID uuid.UUID) (int64, error) {
	const op = "Inbox.UnreadCount"

	if err := i.requireOfficer(ctx, op, officerID); err != nil {
		return 0, err
	}
	n, err := i.store.CountUnreadNotifications(ctx, officerID)
	if err != nil {
		return 0, domain.Internal(err, op, "failed to count unread notifications")
	}
	return n, nil
}

// MarkRead marks one of the officer's notifications as read.
func (i *Inbox) MarkRead(ctx context.Context, officerID, notificationID uuid.UUID) error {
	const op = "Inbox.MarkRead"

	err := i.store.MarkNotificationRead(ctx, officerID, notificationID)
	if err == nil {
		return nil
	}
	if domain.ErrorCode(err) == domain.ENOTFOUND {
		return domain.NotFound(op, "notification", notificationID.String())
	}
	return domain.Internal(err, op, "failed to mark notification read")
}

func (i *Inbox) requireOfficer(ctx context.Context, op string, officerID uuid.UUID) error {
	_, err := i.store.GetOfficer(ctx, officerID)
	if err == nil {
		return nil
	}
	if domain.ErrorCode(err) == domain.ENOTFOUND {
		return domain.NotFound(op, "officer", officerID.String())
	}
	return domain.Internal(err, op, "failed to load officer")
}
