package repository

import (
	"context"

	"github.com/google/uuid"
)

const notificationColumns = `id, officer_id, type, report_id, title, message, payload, read, created_at`

func scanNotification(row rowScanner) (Notification, error) {
	var i Notification
	err := row.Scan(
		&i.ID,
		&i.OfficerID,
		&i.Type,
		&i.ReportID,
		&i.Title,
		&i.Message,
		&i.Payload,
		&i.Read,
		&i.CreatedAt,
	)
	return i, err
}

const createNotification = `
INSERT INTO notifications (id, officer_id, type, report_id, title, message, payload)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + notificationColumns

type CreateNotificationParams struct {
	ID        uuid.UUID
	OfficerID uuid.UUID
	Type      string
	ReportID  uuid.UUID
	Title     string
	Message   string
	Payload   []byte
}

func (q *Queries) CreateNotification(ctx context.Context, arg CreateNotificationParams) (Notification, error) {
	row := q.db.QueryRowContext(ctx, createNotification,
		arg.ID,
		arg.OfficerID,
		arg.Type,
		arg.ReportID,
		arg.Title,
		arg.Message,
		arg.Payload,
	)
	return scanNotification(row)
}

const listNotifications = `
SELECT ` + notificationColumns + `
FROM notifications
WHERE officer_id = $1
  AND (NOT $2::boolean OR NOT read)
ORDER BY created_at DESC, id
LIMIT $3 OFFSET $4`

type ListNotificationsParams struct {
	OfficerID  uuid.UUID
	UnreadOnly bool
	Limit      int32
	Offset     int32
}

func (q *Queries) ListNotifications(ctx context.Context, arg ListNotificationsParams) ([]Notification, error) {
	rows, err := q.db.QueryContext(ctx, listNotifications, arg.OfficerID, arg.UnreadOnly, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Notification
	for rows.Next() {
		i, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countNotifications = `
SELECT COUNT(*)
FROM notifications
WHERE officer_id = $1
  AND (NOT $2::boolean OR NOT read)`

type CountNotificationsParams struct {
	OfficerID  uuid.UUID
	UnreadOnly bool
}

func (q *Queries) CountNotifications(ctx context.Context, arg CountNotificationsParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, countNotifications, arg.OfficerID, arg.UnreadOnly)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const markNotificationRead = `
UPDATE notifications
SET read = TRUE
WHERE id = $1 AND officer_id = $2`

type MarkNotificationReadParams struct {
	ID        uuid.UUID
	OfficerID uuid.UUID
}

func (q *Queries) MarkNotificationRead(ctx context.Context, arg MarkNotificationReadParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, markNotificationRead, arg.ID, arg.OfficerID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
