package database

import (
	"context"

	"github.com/google/uuid"
)

const countTables = `-- name: CountTables :one
SELECT count(*) FROM tables
`

func (q *Queries) CountTables(ctx context.Context) (int64, error) {
	row := q.db.QueryRow(ctx, countTables)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const createTable = `-- name: CreateTable :one
INSERT INTO tables (name) VALUES ($1)
RETURNING id, name, status, created_at, updated_at
`

func (q *Queries) CreateTable(ctx context.Context, name string) (Table, error) {
	row := q.db.QueryRow(ctx, createTable, name)
	var i Table
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const deleteTable = `-- name: DeleteTable :execrows
DELETE FROM tables WHERE id = $1
`

func (q *Queries) DeleteTable(ctx context.Context, id uuid.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, deleteTable, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const getTable = `-- name: GetTable :one
SELECT id, name, status, created_at, updated_at FROM tables WHERE id = $1
`

func (q *Queries) GetTable(ctx context.Context, id uuid.UUID) (Table, error) {
	row := q.db.QueryRow(ctx, getTable, id)
	var i Table
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getTableForUpdate = `-- name: GetTableForUpdate :one
SELECT id, name, status, created_at, updated_at FROM tables WHERE id = $1
FOR UPDATE
`

func (q *Queries) GetTableForUpdate(ctx context.Context, id uuid.UUID) (Table, error) {
	row := q.db.QueryRow(ctx, getTableForUpdate, id)
	var i Table
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const insertTable = `-- name: InsertTable :one
INSERT INTO tables (id, name, status) VALUES ($1, $2, $3)
RETURNING id, name, status, created_at, updated_at
`

type InsertTableParams struct {
	ID     uuid.UUID   `json:"id"`
	Name   string      `json:"name"`
	Status TableStatus `json:"status"`
}

func (q *Queries) InsertTable(ctx context.Context, arg InsertTableParams) (Table, error) {
	row := q.db.QueryRow(ctx, insertTable, arg.ID, arg.Name, arg.Status)
	var i Table
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listTables = `-- name: ListTables :many
SELECT id, name, status, created_at, updated_at FROM tables ORDER BY name, created_at
`

func (q *Queries) ListTables(ctx context.Context) ([]Table, error) {
	rows, err := q.db.Query(ctx, listTables)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Table
	for rows.Next() {
		var i Table
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Status,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listTablesByStatus = `-- name: ListTablesByStatus :many
SELECT id, name, status, created_at, updated_at FROM tables WHERE status = $1 ORDER BY name, created_at
`

func (q *Queries) ListTablesByStatus(ctx context.Context, status TableStatus) ([]Table, error) {
	rows, err := q.db.Query(ctx, listTablesByStatus, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Table
	for rows.Next() {
		var i Table
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Status,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateTableStatus = `-- name: UpdateTableStatus :one
UPDATE tables SET status = $2, updated_at = now() WHERE id = $1
RETURNING id, name, status, created_at, updated_at
`

type UpdateTableStatusParams struct {
	ID     uuid.UUID   `json:"id"`
	Status TableStatus `json:"status"`
}

func (q *Queries) UpdateTableStatus(ctx context.Context, arg UpdateTableStatusParams) (Table, error) {
	row := q.db.QueryRow(ctx, updateTableStatus, arg.ID, arg.Status)
	var i Table
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
