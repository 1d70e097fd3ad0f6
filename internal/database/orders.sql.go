package database

import (
	"context"

	"github.com/google/uuid"
)

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (table_id, status) VALUES ($1, 'active')
RETURNING id, table_id, status, created_at, updated_at
`

func (q *Queries) CreateOrder(ctx context.Context, tableID uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder, tableID)
	var i Order
	err := row.Scan(
		&i.ID,
		&i.TableID,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getActiveOrderByTable = `-- name: GetActiveOrderByTable :one
SELECT id, table_id, status, created_at, updated_at FROM orders
WHERE table_id = $1 AND status = 'active'
ORDER BY created_at
LIMIT 1
`

func (q *Queries) GetActiveOrderByTable(ctx context.Context, tableID uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, getActiveOrderByTable, tableID)
	var i Order
	err := row.Scan(
		&i.ID,
		&i.TableID,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getOrder = `-- name: GetOrder :one
SELECT id, table_id, status, created_at, updated_at FROM orders WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, getOrder, id)
	var i Order
	err := row.Scan(
		&i.ID,
		&i.TableID,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT id, table_id, status, created_at, updated_at FROM orders WHERE id = $1
FOR NO KEY UPDATE
`

func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, getOrderForUpdate, id)
	var i Order
	err := row.Scan(
		&i.ID,
		&i.TableID,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listOrdersByTable = `-- name: ListOrdersByTable :many
SELECT id, table_id, status, created_at, updated_at FROM orders
WHERE table_id = $1
ORDER BY created_at
`

func (q *Queries) ListOrdersByTable(ctx context.Context, tableID uuid.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByTable, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		var i Order
		if err := rows.Scan(
			&i.ID,
			&i.TableID,
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

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders SET status = $2, updated_at = now() WHERE id = $1
RETURNING id, table_id, status, created_at, updated_at
`

type UpdateOrderStatusParams struct {
	ID     uuid.UUID   `json:"id"`
	Status OrderStatus `json:"status"`
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status)
	var i Order
	err := row.Scan(
		&i.ID,
		&i.TableID,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
