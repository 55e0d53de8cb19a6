package repository

import (
	"context"

	"github.com/google/uuid"
)

const createOfficer = `
INSERT INTO officers (id, name, email, is_active)
VALUES ($1, $2, $3, $4)
RETURNING id, name, email, is_active, created_at`

type CreateOfficerParams struct {
	ID       uuid.UUID
	Name     string
	Email    string
	IsActive bool
}

func (q *Queries) CreateOfficer(ctx context.Context, arg CreateOfficerParams) (Officer, error) {
	row := q.db.QueryRowContext(ctx, createOfficer, arg.ID, arg.Name, arg.Email, arg.IsActive)
	var i Officer
	err := row.Scan(&i.ID, &i.Name, &i.Email, &i.IsActive, &i.CreatedAt)
	return i, err
}

const getOfficer = `
SELECT id, name, email, is_active, created_at
FROM officers
WHERE id = $1`

func (q *Queries) GetOfficer(ctx context.Context, id uuid.UUID) (Officer, error) {
	row := q.db.QueryRowContext(ctx, getOfficer, id)
	var i Officer
	err := row.Scan(&i.ID, &i.Name, &i.Email, &i.IsActive, &i.CreatedAt)
	return i, err
}

const listActiveOfficers = `
SELECT id, name, email, is_active, created_at
FROM officers
WHERE is_active
ORDER BY created_at`

func (q *Queries) ListActiveOfficers(ctx context.Context) ([]Officer, error) {
	rows, err := q.db.QueryContext(ctx, listActiveOfficers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Officer
	for rows.Next() {
		var i Officer
		if err := rows.Scan(&i.ID, &i.Name, &i.Email, &i.IsActive, &i.CreatedAt); err != nil {
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
