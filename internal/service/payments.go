package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/masapos/api/internal/activity"
	"github.com/masapos/api/internal/catalog"
	"github.com/masapos/api/internal/database"
	"github.com/masapos/api/internal/enum"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// PayGroupRequest settles one distribution group.
type PayGroupRequest struct {
	OrderID uuid.UUID
	Token   string
	// Amount is recorded as given; it is not checked against the items' total.
	Amount decimal.Decimal
	Method string
	// CurrentToken is the distribution the terminal is showing. When empty,
	// the order's current distribution is used.
	CurrentToken string
	Actor        activity.Actor
}

// PayOrderRequest settles every active item of an order.
type PayOrderRequest struct {
	OrderID uuid.UUID
	Amount  decimal.Decimal
	Method  string
	Actor   activity.Actor
}

// PaymentResult is the outcome of a settlement.
type PaymentResult struct {
	Payment database.Payment
	Order   database.Order
	// Items are the items settled by this payment.
	Items          []database.OrderItem
	OrderCompleted bool
	// DistributionCleared is true when the settled group was the current distribution.
	DistributionCleared bool
	Warnings            []string
}

// PayGroup completes every active item assigned to the token, records one
// payment, and completes the order when nothing active remains.
func (s *Engine) PayGroup(ctx context.Context, req PayGroupRequest) (*PaymentResult, error) {
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		return nil, ErrEmptyToken
	}
	method, err := validatePayment(req.Amount, req.Method)
	if err != nil {
		return nil, err
	}

	fx := newSideEffects(req.Actor)
	res := &PaymentResult{}
	err = s.inTx(ctx, func(store EngineStore) error {
		order, err := lockOrder(ctx, store, req.OrderID)
		if err != nil {
			return err
		}
		if order.Status != database.OrderStatusActive {
			return ErrOrderNotActive
		}

		current := req.CurrentToken
		if current == "" {
			all, err := store.ListOrderItemsByOrder(ctx, order.ID)
			if err != nil {
				return fmt.Errorf("list order items: %w", err)
			}
			if _, groups, _, _ := summarizeItems(all); len(groups) > 0 {
				current = groups[0].Token
			}
		}

		group, err := store.ListActiveOrderItemsByAssignment(ctx, database.ListActiveOrderItemsByAssignmentParams{
			OrderID:    order.ID,
			AssignedTo: req.Token,
		})
		if err != nil {
			return fmt.Errorf("list distribution items: %w", err)
		}
		if len(group) == 0 {
			return ErrEmptyDistribution
		}

		if err := s.settleTx(ctx, store, fx, order, group, req.Amount, method, res); err != nil {
			return err
		}
		res.DistributionCleared = current == req.Token

		res.Order, res.OrderCompleted, err = completeIfSettled(ctx, store, fx, order)
		return err
	})
	if err != nil {
		return nil, err
	}

	fx.payments = append(fx.payments, activity.PaymentEntry{
		Amount:  req.Amount,
		Method:  string(method),
		OrderID: res.Order.ID,
		TableID: uuidRef(res.Order.TableID),
		Token:   req.Token,
		Actor:   req.Actor,
	})
	res.Warnings = append(s.stampMethods(ctx, res.Items, method), s.apply(ctx, fx)...)
	return res, nil
}

// PayOrder completes every active item of the order regardless of
// assignment, records one payment, and completes the order.
func (s *Engine) PayOrder(ctx context.Context, req PayOrderRequest) (*PaymentResult, error) {
	method, err := validatePayment(req.Amount, req.Method)
	if err != nil {
		return nil, err
	}

	fx := newSideEffects(req.Actor)
	res := &PaymentResult{}
	err = s.inTx(ctx, func(store EngineStore) error {
		order, err := lockOrder(ctx, store, req.OrderID)
		if err != nil {
			return err
		}
		if order.Status != database.OrderStatusActive {
			return ErrOrderNotActive
		}

		all, err := store.ListOrderItemsByOrder(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("list order items: %w", err)
		}
		var active []database.OrderItem
		for _, it := range all {
			if it.Status == database.OrderItemStatusActive {
				active = append(active, it)
			}
		}

		if err := s.settleTx(ctx, store, fx, order, active, req.Amount, method, res); err != nil {
			return err
		}
		res.DistributionCleared = true

		res.Order, _, err = completeOrderTx(ctx, store, fx, order)
		if err != nil {
			return err
		}
		res.OrderCompleted = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	fx.payments = append(fx.payments, activity.PaymentEntry{
		Amount:  req.Amount,
		Method:  string(method),
		OrderID: res.Order.ID,
		TableID: uuidRef(res.Order.TableID),
		Actor:   req.Actor,
	})
	res.Warnings = append(s.stampMethods(ctx, res.Items, method), s.apply(ctx, fx)...)
	return res, nil
}

// ListPayments returns the order's payments, oldest first.
func (s *Engine) ListPayments(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error) {
	detail, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return detail.Payments, nil
}

// settleTx completes the items and inserts exactly one payment.
func (s *Engine) settleTx(ctx context.Context, store EngineStore, fx *sideEffects, order database.Order, items []database.OrderItem, amount decimal.Decimal, method database.PaymentMethod, res *PaymentResult) error {
	for _, it := range items {
		done, err := store.UpdateOrderItemStatus(ctx, database.UpdateOrderItemStatusParams{
			ID:     it.ID,
			Status: database.OrderItemStatusCompleted,
		})
		if err != nil {
			return fmt.Errorf("complete order item: %w", err)
		}
		res.Items = append(res.Items, done)
	}

	payment, err := store.CreatePayment(ctx, database.CreatePaymentParams{
		OrderID: order.ID,
		Amount:  catalog.DecimalToNumeric(amount),
		Method:  method,
	})
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	res.Payment = payment

	fx.publish(enum.EventItemsChanged, order.TableID, uuidRef(order.ID), res.Items)
	fx.publish(enum.EventPaymentRecorded, order.TableID, uuidRef(order.ID), payment)
	return nil
}

// stampMethods records the payment method on settled items after the
// settlement committed. A failure leaves the items completed without a
// method and is returned as a warning.
func (s *Engine) stampMethods(ctx context.Context, items []database.OrderItem, method database.PaymentMethod) []string {
	if len(items) == 0 {
		return nil
	}
	stamped := make([]database.OrderItem, 0, len(items))
	err := s.inTx(ctx, func(store EngineStore) error {
		for _, it := range items {
			updated, err := store.UpdateOrderItemMethod(ctx, database.UpdateOrderItemMethodParams{
				ID:     it.ID,
				Method: pgtype.Text{String: string(method), Valid: true},
			})
			if err != nil {
				return fmt.Errorf("item %s: %w", it.ID, err)
			}
			stamped = append(stamped, updated)
		}
		return nil
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"method": method,
			"items":  len(items),
			"error":  err,
		}).Error("stamp payment method failed")
		return []string{fmt.Sprintf("stamp payment method: %v", err)}
	}
	copy(items, stamped)
	return nil
}

// maxPaymentAmount is the largest value payments.amount NUMERIC(12,2) holds.
var maxPaymentAmount = decimal.RequireFromString("9999999999.99")

// validatePayment accepts whole-cent amounts in (0, maxPaymentAmount].
func validatePayment(amount decimal.Decimal, method string) (database.PaymentMethod, error) {
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) || amount.GreaterThan(maxPaymentAmount) {
		return "", ErrInvalidAmount
	}
	switch m := database.PaymentMethod(method); m {
	case database.PaymentMethodCash, database.PaymentMethodCreditCard,
		database.PaymentMethodDebitCard, database.PaymentMethodOther:
		return m, nil
	}
	return "", ErrInvalidPaymentMethod
}
