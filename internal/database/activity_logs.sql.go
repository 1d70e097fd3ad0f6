package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const createActivityLog = `-- name: CreateActivityLog :one
INSERT INTO activity_logs (operation, details, table_id, order_id, user_id, user_name)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, timestamp, operation, details, table_id, order_id, user_id, user_name
`

type CreateActivityLogParams struct {
	Operation string      `json:"operation"`
	Details   []byte      `json:"details"`
	TableID   pgtype.UUID `json:"table_id"`
	OrderID   pgtype.UUID `json:"order_id"`
	UserID    string      `json:"user_id"`
	UserName  string      `json:"user_name"`
}

func (q *Queries) CreateActivityLog(ctx context.Context, arg CreateActivityLogParams) (ActivityLog, error) {
	row := q.db.QueryRow(ctx, createActivityLog,
		arg.Operation,
		arg.Details,
		arg.TableID,
		arg.OrderID,
		arg.UserID,
		arg.UserName,
	)
	var i ActivityLog
	err := row.Scan(
		&i.ID,
		&i.Timestamp,
		&i.Operation,
		&i.Details,
		&i.TableID,
		&i.OrderID,
		&i.UserID,
		&i.UserName,
	)
	return i, err
}

const deleteAllActivityLogs = `-- name: DeleteAllActivityLogs :execrows
DELETE FROM activity_logs
`

func (q *Queries) DeleteAllActivityLogs(ctx context.Context) (int64, error) {
	result, err := q.db.Exec(ctx, deleteAllActivityLogs)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listActivityLogsBetween = `-- name: ListActivityLogsBetween :many
SELECT id, timestamp, operation, details, table_id, order_id, user_id, user_name
FROM activity_logs
WHERE timestamp >= $1 AND timestamp < $2
ORDER BY timestamp DESC
`

type ListActivityLogsBetweenParams struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (q *Queries) ListActivityLogsBetween(ctx context.Context, arg ListActivityLogsBetweenParams) ([]ActivityLog, error) {
	rows, err := q.db.Query(ctx, listActivityLogsBetween, arg.Start, arg.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ActivityLog
	for rows.Next() {
		var i ActivityLog
		if err := rows.Scan(
			&i.ID,
			&i.Timestamp,
			&i.Operation,
			&i.Details,
			&i.TableID,
			&i.OrderID,
			&i.UserID,
			&i.UserName,
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

const listActivityLogsByOrder = `-- name: ListActivityLogsByOrder :many
SELECT id, timestamp, operation, details, table_id, order_id, user_id, user_name
FROM activity_logs
WHERE order_id = $1
ORDER BY timestamp DESC
`

func (q *Queries) ListActivityLogsByOrder(ctx context.Context, orderID pgtype.UUID) ([]ActivityLog, error) {
	rows, err := q.db.Query(ctx, listActivityLogsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ActivityLog
	for rows.Next() {
		var i ActivityLog
		if err := rows.Scan(
			&i.ID,
			&i.Timestamp,
			&i.Operation,
			&i.Details,
			&i.TableID,
			&i.OrderID,
			&i.UserID,
			&i.UserName,
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

const listActivityLogsByTable = `-- name: ListActivityLogsByTable :many
SELECT id, timestamp, operation, details, table_id, order_id, user_id, user_name
FROM activity_logs
WHERE table_id = $1
ORDER BY timestamp DESC
`

func (q *Queries) ListActivityLogsByTable(ctx context.Context, tableID pgtype.UUID) ([]ActivityLog, error) {
	rows, err := q.db.Query(ctx, listActivityLogsByTable, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ActivityLog
	for rows.Next() {
		var i ActivityLog
		if err := rows.Scan(
			&i.ID,
			&i.Timestamp,
			&i.Operation,
			&i.Details,
			&i.TableID,
			&i.OrderID,
			&i.UserID,
			&i.UserName,
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
