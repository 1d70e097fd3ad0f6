package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/masapos/api/internal/activity"
	"github.com/masapos/api/internal/catalog"
	"github.com/masapos/api/internal/database"
	"github.com/masapos/api/internal/enum"
)

const maxTokenAttempts = 10

// AddItemRequest is the input for adding one product to a table's order.
type AddItemRequest struct {
	TableID   uuid.UUID
	ProductID uuid.UUID
	// VariantID is optional; a product with variants defaults to its first one.
	VariantID *uuid.UUID
	// Quantity defaults to 1 when zero.
	Quantity int32
	Actor    activity.Actor
}

// ItemResult is an item after a transition, with its order.
type ItemResult struct {
	Item           database.OrderItem
	Order          database.Order
	OrderCreated   bool
	OrderCompleted bool
	Warnings       []string
}

// AddItem adds one row to the table's active order, creating the order in
// the same transaction when the table has none. Repeated adds of the same
// product produce separate rows.
func (s *Engine) AddItem(ctx context.Context, req AddItemRequest) (*ItemResult, error) {
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 {
		return nil, ErrInvalidQuantity
	}

	params, err := s.resolveItem(ctx, req)
	if err != nil {
		return nil, err
	}

	// Retry loop: a concurrent add on the same table may win the
	// one-active-order index; the retry then joins that order.
	var lastErr error
	for attempt := 0; attempt < maxActiveOrderRetries; attempt++ {
		res, err := s.addItemTx(ctx, req, params)
		if err == nil {
			return res, nil
		}
		if isActiveOrderConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("%w: %w", ErrActiveOrderExists, lastErr)
}

// resolveItem snapshots the product (or variant) name and price.
func (s *Engine) resolveItem(ctx context.Context, req AddItemRequest) (database.CreateOrderItemParams, error) {
	product, err := s.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		return database.CreateOrderItemParams{}, err
	}
	variants, err := s.catalog.GetVariants(ctx, req.ProductID)
	if err != nil {
		return database.CreateOrderItemParams{}, err
	}

	params := database.CreateOrderItemParams{
		ProductID: product.ID,
		Name:      product.Name,
		Quantity:  req.Quantity,
		Price:     catalog.DecimalToNumeric(product.Price),
	}

	var variant *catalog.Variant
	switch {
	case req.VariantID != nil:
		for i := range variants {
			if variants[i].ID == *req.VariantID {
				variant = &variants[i]
				break
			}
		}
		if variant == nil {
			return database.CreateOrderItemParams{}, ErrVariantNotFound
		}
	case len(variants) > 0:
		variant = &variants[0]
	}

	if variant != nil {
		params.VariantID = pgtype.UUID{Bytes: variant.ID, Valid: true}
		params.Name = fmt.Sprintf("%s (%s)", product.Name, variant.Name)
		params.Price = catalog.DecimalToNumeric(variant.Price)
	}
	return params, nil
}

func (s *Engine) addItemTx(ctx context.Context, req AddItemRequest, params database.CreateOrderItemParams) (*ItemResult, error) {
	fx := newSideEffects(req.Actor)
	res := &ItemResult{}
	err := s.inTx(ctx, func(store EngineStore) error {
		if _, err := lockTable(ctx, store, req.TableID); err != nil {
			return err
		}

		order, err := store.GetActiveOrderByTable(ctx, req.TableID)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			order, err = createOrderTx(ctx, store, fx, req.TableID)
			if err != nil {
				return err
			}
			res.OrderCreated = true
		case err != nil:
			return fmt.Errorf("get active order: %w", err)
		default:
			// A settle that committed after the read has completed it.
			order, err = lockOrder(ctx, store, order.ID)
			if err != nil {
				return err
			}
			if order.Status != database.OrderStatusActive {
				order, err = createOrderTx(ctx, store, fx, req.TableID)
				if err != nil {
					return err
				}
				res.OrderCreated = true
			}
		}
		res.Order = order

		params.OrderID = order.ID
		item, err := store.CreateOrderItem(ctx, params)
		if err != nil {
			return fmt.Errorf("create order item: %w", err)
		}
		res.Item = item

		fx.log(enum.OpProductAdd, uuidRef(req.TableID), uuidRef(order.ID), map[string]any{
			"item_id":    item.ID,
			"product_id": item.ProductID,
			"name":       item.Name,
			"price":      catalog.NumericToDecimal(item.Price).StringFixed(2),
			"quantity":   item.Quantity,
		})
		fx.publish(enum.EventItemsChanged, req.TableID, uuidRef(order.ID), item)

		_, err = reconcileTx(ctx, store, fx, req.TableID)
		return err
	})
	if err != nil {
		return nil, err
	}

	res.Warnings = s.apply(ctx, fx)
	return res, nil
}

// RemoveItem cancels an active item. The order completes when it was the
// last active item.
func (s *Engine) RemoveItem(ctx context.Context, itemID uuid.UUID, actor activity.Actor) (*ItemResult, error) {
	return s.closeItem(ctx, itemID, database.OrderItemStatusCancelled, enum.OpProductRemove, actor)
}

// CompleteItem marks an active item completed without a payment. The order
// completes when it was the last active item.
func (s *Engine) CompleteItem(ctx context.Context, itemID uuid.UUID, actor activity.Actor) (*ItemResult, error) {
	return s.closeItem(ctx, itemID, database.OrderItemStatusCompleted, enum.OpItemComplete, actor)
}

func (s *Engine) closeItem(ctx context.Context, itemID uuid.UUID, status database.OrderItemStatus, op string, actor activity.Actor) (*ItemResult, error) {
	fx := newSideEffects(actor)
	res := &ItemResult{}
	err := s.inTx(ctx, func(store EngineStore) error {
		item, order, err := lockItem(ctx, store, itemID)
		if err != nil {
			return err
		}

		res.Item, err = store.UpdateOrderItemStatus(ctx, database.UpdateOrderItemStatusParams{
			ID:     item.ID,
			Status: status,
		})
		if err != nil {
			return fmt.Errorf("update order item status: %w", err)
		}
		fx.log(op, uuidRef(order.TableID), uuidRef(order.ID), map[string]any{
			"item_id": item.ID,
			"name":    item.Name,
		})
		fx.publish(enum.EventItemsChanged, order.TableID, uuidRef(order.ID), res.Item)

		res.Order, res.OrderCompleted, err = completeIfSettled(ctx, store, fx, order)
		return err
	})
	if err != nil {
		return nil, err
	}

	res.Warnings = s.apply(ctx, fx)
	return res, nil
}

// AssignItem moves an active item into the distribution group named by
// token, or back to the open bucket when token is nil or blank.
func (s *Engine) AssignItem(ctx context.Context, itemID uuid.UUID, token *string, actor activity.Actor) (*ItemResult, error) {
	assigned := pgtype.Text{}
	if token != nil && strings.TrimSpace(*token) != "" {
		assigned = pgtype.Text{String: strings.TrimSpace(*token), Valid: true}
	}

	fx := newSideEffects(actor)
	res := &ItemResult{}
	err := s.inTx(ctx, func(store EngineStore) error {
		item, order, err := lockItem(ctx, store, itemID)
		if err != nil {
			return err
		}
		res.Order = order

		res.Item, err = store.UpdateOrderItemAssignment(ctx, database.UpdateOrderItemAssignmentParams{
			ID:         item.ID,
			AssignedTo: assigned,
		})
		if err != nil {
			return fmt.Errorf("update order item assignment: %w", err)
		}

		fx.log(enum.OpDistribution, uuidRef(order.TableID), uuidRef(order.ID), map[string]any{
			"item_id": item.ID,
			"from":    textOrNil(item.AssignedTo),
			"to":      textOrNil(assigned),
		})
		fx.publish(enum.EventItemsChanged, order.TableID, uuidRef(order.ID), res.Item)
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.Warnings = s.apply(ctx, fx)
	return res, nil
}

// NewDistribution returns a fresh token not used by any active item of the order.
func (s *Engine) NewDistribution(ctx context.Context, orderID uuid.UUID) (string, error) {
	var token string
	err := s.inTx(ctx, func(store EngineStore) error {
		order, err := store.GetOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("get order: %w", err)
		}
		if order.Status != database.OrderStatusActive {
			return ErrOrderNotActive
		}

		items, err := store.ListOrderItemsByOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("list order items: %w", err)
		}
		used := make(map[string]bool)
		for _, it := range items {
			if it.Status == database.OrderItemStatusActive && it.AssignedTo.Valid {
				used[it.AssignedTo.String] = true
			}
		}

		for attempt := 0; attempt < maxTokenAttempts; attempt++ {
			token = s.token()
			if !used[token] {
				return nil
			}
		}
		return fmt.Errorf("%w after %d attempts", ErrNoFreeToken, maxTokenAttempts)
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// NewDistributionToken returns a 4-digit numeric code between 1000 and 9999.
func NewDistributionToken() string {
	return strconv.Itoa(1000 + rand.IntN(9000))
}

// lockItem loads an active item and takes its order's row lock. The item is
// re-read after the lock so its status cannot change underneath the caller.
func lockItem(ctx context.Context, store EngineStore, itemID uuid.UUID) (database.OrderItem, database.Order, error) {
	item, err := store.GetOrderItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.OrderItem{}, database.Order{}, ErrItemNotFound
		}
		return database.OrderItem{}, database.Order{}, fmt.Errorf("get order item: %w", err)
	}

	order, err := lockOrder(ctx, store, item.OrderID)
	if err != nil {
		return database.OrderItem{}, database.Order{}, err
	}

	item, err = store.GetOrderItem(ctx, itemID)
	if err != nil {
		return database.OrderItem{}, database.Order{}, fmt.Errorf("get order item: %w", err)
	}
	if item.Status != database.OrderItemStatusActive {
		return database.OrderItem{}, database.Order{}, ErrItemNotActive
	}
	if order.Status != database.OrderStatusActive {
		return database.OrderItem{}, database.Order{}, ErrOrderNotActive
	}
	return item, order, nil
}

func textOrNil(t pgtype.Text) any {
	if !t.Valid {
		return nil
	}
	return t.String
}
