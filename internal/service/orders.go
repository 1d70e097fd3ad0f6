package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/masapos/api/internal/activity"
	"github.com/masapos/api/internal/database"
	"github.com/masapos/api/internal/enum"
)

// OrderResult is an order after a transition, with the table it touched.
type OrderResult struct {
	Order database.Order
	// Table is nil when the table was not touched or no longer exists.
	Table    *database.Table
	Warnings []string
}

// OrderDetail is an order with its items and payments.
type OrderDetail struct {
	Order    database.Order
	Items    []database.OrderItem
	Payments []database.Payment
}

// CreateOrder opens an order on the table and marks the table occupied.
// A missing table only skips the status update.
func (s *Engine) CreateOrder(ctx context.Context, tableID uuid.UUID, actor activity.Actor) (*OrderResult, error) {
	fx := newSideEffects(actor)
	res := &OrderResult{}
	err := s.inTx(ctx, func(store EngineStore) error {
		if _, err := lockTable(ctx, store, tableID); err != nil {
			return err
		}
		if _, err := store.GetActiveOrderByTable(ctx, tableID); err == nil {
			return ErrActiveOrderExists
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("get active order: %w", err)
		}

		order, err := createOrderTx(ctx, store, fx, tableID)
		if err != nil {
			return err
		}
		res.Order = order

		res.Table, err = reconcileTx(ctx, store, fx, tableID)
		return err
	})
	if err != nil {
		if isActiveOrderConflict(err) {
			return nil, ErrActiveOrderExists
		}
		return nil, err
	}

	res.Warnings = s.apply(ctx, fx)
	return res, nil
}

// GetOrder returns an order with all its items and payments.
func (s *Engine) GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error) {
	detail := &OrderDetail{}
	err := s.inTx(ctx, func(store EngineStore) error {
		order, err := store.GetOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("get order: %w", err)
		}
		detail.Order = order

		detail.Items, err = store.ListOrderItemsByOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("list order items: %w", err)
		}
		detail.Payments, err = store.ListPaymentsByOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("list payments: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// CompleteOrder moves an active order to completed and releases the table
// when no other order on it is active. Completing a completed order returns
// it unchanged.
func (s *Engine) CompleteOrder(ctx context.Context, orderID uuid.UUID, actor activity.Actor) (*OrderResult, error) {
	fx := newSideEffects(actor)
	res := &OrderResult{}
	err := s.inTx(ctx, func(store EngineStore) error {
		order, err := lockOrder(ctx, store, orderID)
		if err != nil {
			return err
		}
		res.Order, res.Table, err = completeOrderTx(ctx, store, fx, order)
		return err
	})
	if err != nil {
		return nil, err
	}

	res.Warnings = s.apply(ctx, fx)
	return res, nil
}

// CancelOrder cancels an active order and its remaining active items.
func (s *Engine) CancelOrder(ctx context.Context, orderID uuid.UUID, actor activity.Actor) (*OrderResult, error) {
	fx := newSideEffects(actor)
	res := &OrderResult{}
	err := s.inTx(ctx, func(store EngineStore) error {
		order, err := lockOrder(ctx, store, orderID)
		if err != nil {
			return err
		}
		if order.Status != database.OrderStatusActive {
			return ErrOrderNotActive
		}

		cancelled, err := store.CancelActiveOrderItemsByOrder(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("cancel order items: %w", err)
		}
		res.Order, err = store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
			ID:     order.ID,
			Status: database.OrderStatusCancelled,
		})
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		fx.log(enum.OpOrderCancel, uuidRef(order.TableID), uuidRef(order.ID), map[string]any{
			"cancelled_items": cancelled,
		})
		fx.publish(enum.EventOrderUpdated, order.TableID, uuidRef(order.ID), res.Order)

		res.Table, err = reconcileTx(ctx, store, fx, order.TableID)
		return err
	})
	if err != nil {
		return nil, err
	}

	res.Warnings = s.apply(ctx, fx)
	return res, nil
}

// createOrderTx inserts an active order for the table.
func createOrderTx(ctx context.Context, store EngineStore, fx *sideEffects, tableID uuid.UUID) (database.Order, error) {
	order, err := store.CreateOrder(ctx, tableID)
	if err != nil {
		return database.Order{}, fmt.Errorf("create order: %w", err)
	}
	fx.log(enum.OpOrderCreate, uuidRef(tableID), uuidRef(order.ID), nil)
	fx.publish(enum.EventOrderUpdated, tableID, uuidRef(order.ID), order)
	return order, nil
}

// completeOrderTx completes the order and reconciles its table. An order
// that is already completed is returned unchanged with no side effects.
func completeOrderTx(ctx context.Context, store EngineStore, fx *sideEffects, order database.Order) (database.Order, *database.Table, error) {
	switch order.Status {
	case database.OrderStatusCompleted:
		return order, nil, nil
	case database.OrderStatusCancelled:
		return database.Order{}, nil, ErrOrderNotActive
	}

	completed, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:     order.ID,
		Status: database.OrderStatusCompleted,
	})
	if err != nil {
		return database.Order{}, nil, fmt.Errorf("update order status: %w", err)
	}
	fx.log(enum.OpOrderComplete, uuidRef(order.TableID), uuidRef(order.ID), nil)
	fx.publish(enum.EventOrderUpdated, order.TableID, uuidRef(order.ID), completed)

	table, err := reconcileTx(ctx, store, fx, order.TableID)
	if err != nil {
		return database.Order{}, nil, err
	}
	return completed, table, nil
}

// completeIfSettled completes the order when it has no active items left.
func completeIfSettled(ctx context.Context, store EngineStore, fx *sideEffects, order database.Order) (database.Order, bool, error) {
	remaining, err := store.CountActiveOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return database.Order{}, false, fmt.Errorf("count active items: %w", err)
	}
	if remaining > 0 {
		return order, false, nil
	}
	completed, _, err := completeOrderTx(ctx, store, fx, order)
	if err != nil {
		return database.Order{}, false, err
	}
	return completed, true, nil
}

// lockTable takes the table's row lock. A missing table returns (false, nil).
func lockTable(ctx context.Context, store EngineStore, tableID uuid.UUID) (bool, error) {
	if _, err := store.GetTableForUpdate(ctx, tableID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("lock table: %w", err)
	}
	return true, nil
}

// lockOrder takes the lock of the order's table, then the order's own row
// lock. Every transition locks table before order; an order's table_id
// never changes, so reading it unlocked is safe.
func lockOrder(ctx context.Context, store EngineStore, orderID uuid.UUID) (database.Order, error) {
	order, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if _, err := lockTable(ctx, store, order.TableID); err != nil {
		return database.Order{}, err
	}

	order, err = store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("lock order: %w", err)
	}
	return order, nil
}
