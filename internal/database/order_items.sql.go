package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const cancelActiveOrderItemsByOrder = `-- name: CancelActiveOrderItemsByOrder :execrows
UPDATE order_items SET status = 'cancelled', updated_at = now()
WHERE order_id = $1 AND status = 'active'
`

func (q *Queries) CancelActiveOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, cancelActiveOrderItemsByOrder, orderID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const countActiveOrderItemsByOrder = `-- name: CountActiveOrderItemsByOrder :one
SELECT count(*) FROM order_items WHERE order_id = $1 AND status = 'active'
`

func (q *Queries) CountActiveOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, countActiveOrderItemsByOrder, orderID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (order_id, product_id, variant_id, name, quantity, price)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, order_id, product_id, variant_id, name, quantity, price, assigned_to, status, method, created_at, updated_at
`

type CreateOrderItemParams struct {
	OrderID   uuid.UUID      `json:"order_id"`
	ProductID uuid.UUID      `json:"product_id"`
	VariantID pgtype.UUID    `json:"variant_id"`
	Name      string         `json:"name"`
	Quantity  int32          `json:"quantity"`
	Price     pgtype.Numeric `json:"price"`
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.ProductID,
		arg.VariantID,
		arg.Name,
		arg.Quantity,
		arg.Price,
	)
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.ProductID,
		&i.VariantID,
		&i.Name,
		&i.Quantity,
		&i.Price,
		&i.AssignedTo,
		&i.Status,
		&i.Method,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getOrderItem = `-- name: GetOrderItem :one
SELECT id, order_id, product_id, variant_id, name, quantity, price, assigned_to, status, method, created_at, updated_at
FROM order_items WHERE id = $1
`

func (q *Queries) GetOrderItem(ctx context.Context, id uuid.UUID) (OrderItem, error) {
	row := q.db.QueryRow(ctx, getOrderItem, id)
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.ProductID,
		&i.VariantID,
		&i.Name,
		&i.Quantity,
		&i.Price,
		&i.AssignedTo,
		&i.Status,
		&i.Method,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listActiveOrderItemsByAssignment = `-- name: ListActiveOrderItemsByAssignment :many
SELECT id, order_id, product_id, variant_id, name, quantity, price, assigned_to, status, method, created_at, updated_at
FROM order_items
WHERE order_id = $1 AND assigned_to = $2 AND status = 'active'
ORDER BY created_at
`

type ListActiveOrderItemsByAssignmentParams struct {
	OrderID    uuid.UUID `json:"order_id"`
	AssignedTo string    `json:"assigned_to"`
}

func (q *Queries) ListActiveOrderItemsByAssignment(ctx context.Context, arg ListActiveOrderItemsByAssignmentParams) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listActiveOrderItemsByAssignment, arg.OrderID, arg.AssignedTo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.ProductID,
			&i.VariantID,
			&i.Name,
			&i.Quantity,
			&i.Price,
			&i.AssignedTo,
			&i.Status,
			&i.Method,
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

const listOrderItemsByOrder = `-- name: ListOrderItemsByOrder :many
SELECT id, order_id, product_id, variant_id, name, quantity, price, assigned_to, status, method, created_at, updated_at
FROM order_items
WHERE order_id = $1
ORDER BY created_at
`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.ProductID,
			&i.VariantID,
			&i.Name,
			&i.Quantity,
			&i.Price,
			&i.AssignedTo,
			&i.Status,
			&i.Method,
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

const updateOrderItemAssignment = `-- name: UpdateOrderItemAssignment :one
UPDATE order_items SET assigned_to = $2, updated_at = now() WHERE id = $1
RETURNING id, order_id, product_id, variant_id, name, quantity, price, assigned_to, status, method, created_at, updated_at
`

type UpdateOrderItemAssignmentParams struct {
	ID         uuid.UUID   `json:"id"`
	AssignedTo pgtype.Text `json:"assigned_to"`
}

func (q *Queries) UpdateOrderItemAssignment(ctx context.Context, arg UpdateOrderItemAssignmentParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, updateOrderItemAssignment, arg.ID, arg.AssignedTo)
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.ProductID,
		&i.VariantID,
		&i.Name,
		&i.Quantity,
		&i.Price,
		&i.AssignedTo,
		&i.Status,
		&i.Method,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const updateOrderItemMethod = `-- name: UpdateOrderItemMethod :one
UPDATE order_items SET method = $2, updated_at = now() WHERE id = $1
RETURNING id, order_id, product_id, variant_id, name, quantity, price, assigned_to, status, method, created_at, updated_at
`

type UpdateOrderItemMethodParams struct {
	ID     uuid.UUID   `json:"id"`
	Method pgtype.Text `json:"method"`
}

func (q *Queries) UpdateOrderItemMethod(ctx context.Context, arg UpdateOrderItemMethodParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, updateOrderItemMethod, arg.ID, arg.Method)
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.ProductID,
		&i.VariantID,
		&i.Name,
		&i.Quantity,
		&i.Price,
		&i.AssignedTo,
		&i.Status,
		&i.Method,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const updateOrderItemStatus = `-- name: UpdateOrderItemStatus :one
UPDATE order_items SET status = $2, updated_at = now() WHERE id = $1
RETURNING id, order_id, product_id, variant_id, name, quantity, price, assigned_to, status, method, created_at, updated_at
`

type UpdateOrderItemStatusParams struct {
	ID     uuid.UUID       `json:"id"`
	Status OrderItemStatus `json:"status"`
}

func (q *Queries) UpdateOrderItemStatus(ctx context.Context, arg UpdateOrderItemStatusParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, updateOrderItemStatus, arg.ID, arg.Status)
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.ProductID,
		&i.VariantID,
		&i.Name,
		&i.Quantity,
		&i.Price,
		&i.AssignedTo,
		&i.Status,
		&i.Method,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
