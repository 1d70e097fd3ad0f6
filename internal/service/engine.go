package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/masapos/api/internal/activity"
	"github.com/masapos/api/internal/catalog"
	"github.com/masapos/api/internal/database"
	"github.com/masapos/api/internal/enum"
	"github.com/masapos/api/internal/events"
	"github.com/sirupsen/logrus"
)

const maxActiveOrderRetries = 3

// Errors returned by the order engine.
var (
	ErrTableNotFound        = errors.New("table not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrItemNotFound         = errors.New("order item not found")
	ErrProductNotFound      = catalog.ErrProductNotFound
	ErrVariantNotFound      = errors.New("variant not found for product")
	ErrEmptyTableName       = errors.New("table name is required")
	ErrInvalidAmount        = errors.New("amount must be > 0, in whole cents and at most 9999999999.99")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidQuantity      = errors.New("quantity must be > 0")
	ErrEmptyToken           = errors.New("distribution token is required")
	ErrEmptyDistribution    = errors.New("no active items in distribution")
	ErrItemNotActive        = errors.New("order item is not active")
	ErrOrderNotActive       = errors.New("order is not active")
	ErrActiveOrderExists    = errors.New("table already has an active order")
	ErrNoFreeToken          = errors.New("no free distribution token")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// EngineStore defines the DB methods needed by the order engine.
// Satisfied by *database.Queries (and its WithTx variant).
type EngineStore interface {
	CreateTable(ctx context.Context, name string) (database.Table, error)
	DeleteTable(ctx context.Context, id uuid.UUID) (int64, error)
	GetTable(ctx context.Context, id uuid.UUID) (database.Table, error)
	GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.Table, error)
	ListTables(ctx context.Context) ([]database.Table, error)
	ListTablesByStatus(ctx context.Context, status database.TableStatus) ([]database.Table, error)
	UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.Table, error)

	CreateOrder(ctx context.Context, tableID uuid.UUID) (database.Order, error)
	GetActiveOrderByTable(ctx context.Context, tableID uuid.UUID) (database.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrdersByTable(ctx context.Context, tableID uuid.UUID) ([]database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)

	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrderItem(ctx context.Context, id uuid.UUID) (database.OrderItem, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListActiveOrderItemsByAssignment(ctx context.Context, arg database.ListActiveOrderItemsByAssignmentParams) ([]database.OrderItem, error)
	CountActiveOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
	CancelActiveOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
	UpdateOrderItemStatus(ctx context.Context, arg database.UpdateOrderItemStatusParams) (database.OrderItem, error)
	UpdateOrderItemAssignment(ctx context.Context, arg database.UpdateOrderItemAssignmentParams) (database.OrderItem, error)
	UpdateOrderItemMethod(ctx context.Context, arg database.UpdateOrderItemMethodParams) (database.OrderItem, error)

	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
}

// NewEngineStore creates an EngineStore from a DBTX (pool or tx).
type NewEngineStore func(db database.DBTX) EngineStore

// Catalog resolves product names and prices at item-add time.
type Catalog interface {
	GetProduct(ctx context.Context, id uuid.UUID) (catalog.Product, error)
	GetVariants(ctx context.Context, productID uuid.UUID) ([]catalog.Variant, error)
}

// Recorder receives activity facts and payments. Failures are reported as warnings.
type Recorder interface {
	Log(ctx context.Context, e activity.Entry) error
	LogPayment(ctx context.Context, p activity.PaymentEntry) error
}

// Engine runs order, item, distribution and payment transitions and keeps
// every table's status equal to "has an active order".
type Engine struct {
	pool      TxBeginner
	newStore  NewEngineStore
	catalog   Catalog
	recorder  Recorder
	publisher events.Publisher
	now       func() time.Time
	token     func() string
}

// NewEngine creates a new Engine.
func NewEngine(pool TxBeginner, newStore NewEngineStore, catalog Catalog, recorder Recorder, publisher events.Publisher) *Engine {
	return &Engine{
		pool:      pool,
		newStore:  newStore,
		catalog:   catalog,
		recorder:  recorder,
		publisher: publisher,
		now:       time.Now,
		token:     NewDistributionToken,
	}
}

// inTx runs fn in one transaction and commits when fn succeeds.
func (s *Engine) inTx(ctx context.Context, fn func(store EngineStore) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(s.newStore(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// sideEffects collects what an operation must record and publish once its
// transaction has committed.
type sideEffects struct {
	actor    activity.Actor
	logs     []activity.Entry
	payments []activity.PaymentEntry
	events   []events.Event
	verify   []uuid.UUID
	warnings []string
}

func newSideEffects(actor activity.Actor) *sideEffects {
	return &sideEffects{actor: actor}
}

func (fx *sideEffects) log(op string, tableID, orderID *uuid.UUID, details map[string]any) {
	fx.logs = append(fx.logs, activity.Entry{
		Operation: op,
		Details:   details,
		TableID:   tableID,
		OrderID:   orderID,
		Actor:     fx.actor,
	})
}

func (fx *sideEffects) publish(eventType string, tableID uuid.UUID, orderID *uuid.UUID, data any) {
	fx.events = append(fx.events, events.Event{
		Type:    eventType,
		TableID: tableID,
		OrderID: orderID,
		Data:    data,
	})
}

func (fx *sideEffects) warn(format string, args ...any) {
	fx.warnings = append(fx.warnings, fmt.Sprintf(format, args...))
}

// verifyTable asks for a post-commit check of the table's status.
func (fx *sideEffects) verifyTable(tableID uuid.UUID) {
	for _, id := range fx.verify {
		if id == tableID {
			return
		}
	}
	fx.verify = append(fx.verify, tableID)
}

// tableChanged records a committed status transition of a table.
func (fx *sideEffects) tableChanged(from database.TableStatus, table database.Table) {
	id := table.ID
	fx.log(enum.OpTableStatusChange, &id, nil, map[string]any{
		"from": string(from),
		"to":   string(table.Status),
	})
	fx.publish(enum.EventTableStatusChanged, id, nil, table)
}

// apply runs the side effects of a committed operation and returns every
// failure as a warning. It never fails the operation.
func (s *Engine) apply(ctx context.Context, fx *sideEffects) []string {
	warnings := append([]string(nil), fx.warnings...)

	for _, tableID := range fx.verify {
		table, corrected, err := s.confirmTable(ctx, tableID)
		if err != nil {
			if !errors.Is(err, ErrTableNotFound) {
				warnings = append(warnings, fmt.Sprintf("verify table %s: %v", tableID, err))
			}
			continue
		}
		if corrected {
			warnings = append(warnings, fmt.Sprintf("table %s status corrected to %s after commit", tableID, table.Status))
			fx.tableChanged(oppositeStatus(table.Status), table)
		}
	}

	for _, p := range fx.payments {
		if err := s.recorder.LogPayment(ctx, p); err != nil {
			warnings = append(warnings, fmt.Sprintf("record payment: %v", err))
		}
	}
	for _, e := range fx.logs {
		if err := s.recorder.Log(ctx, e); err != nil {
			warnings = append(warnings, fmt.Sprintf("activity log %s: %v", e.Operation, err))
		}
	}
	for _, e := range fx.events {
		e.At = s.now()
		if err := s.publisher.Publish(ctx, e); err != nil {
			warnings = append(warnings, fmt.Sprintf("publish %s: %v", e.Type, err))
		}
	}

	for _, w := range warnings {
		logrus.WithField("actor", fx.actor.UserID).Warn(w)
	}
	return warnings
}

// confirmTable re-reads the table after a commit and rewrites its status in
// a new transaction when it no longer matches its orders.
func (s *Engine) confirmTable(ctx context.Context, tableID uuid.UUID) (database.Table, bool, error) {
	var (
		table   database.Table
		changed bool
	)
	err := s.inTx(ctx, func(store EngineStore) error {
		var err error
		table, changed, err = reconcileTableTx(ctx, store, tableID, true)
		return err
	})
	return table, changed, err
}

// reconcileTx recomputes the table's status inside the current transaction
// and records the transition. A missing table is tolerated with a warning.
func reconcileTx(ctx context.Context, store EngineStore, fx *sideEffects, tableID uuid.UUID) (*database.Table, error) {
	table, changed, err := reconcileTableTx(ctx, store, tableID, false)
	if err != nil {
		if errors.Is(err, ErrTableNotFound) {
			fx.warn("table %s not found; status not updated", tableID)
			return nil, nil
		}
		return nil, err
	}
	if changed {
		fx.tableChanged(oppositeStatus(table.Status), table)
	}
	fx.verifyTable(tableID)
	return &table, nil
}

// reconcileTableTx derives the table's status from its orders and writes it
// when the stored value differs.
func reconcileTableTx(ctx context.Context, store EngineStore, tableID uuid.UUID, lock bool) (database.Table, bool, error) {
	get := store.GetTable
	if lock {
		get = store.GetTableForUpdate
	}
	table, err := get(ctx, tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Table{}, false, ErrTableNotFound
		}
		return database.Table{}, false, fmt.Errorf("get table: %w", err)
	}

	orders, err := store.ListOrdersByTable(ctx, tableID)
	if err != nil {
		return database.Table{}, false, fmt.Errorf("list orders by table: %w", err)
	}
	want := statusFor(orders)
	if table.Status == want {
		return table, false, nil
	}

	updated, err := store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
		ID:     tableID,
		Status: want,
	})
	if err != nil {
		return database.Table{}, false, fmt.Errorf("update table status: %w", err)
	}
	return updated, true, nil
}

// statusFor is occupied iff at least one order is active.
func statusFor(orders []database.Order) database.TableStatus {
	for _, o := range orders {
		if o.Status == database.OrderStatusActive {
			return database.TableStatusOccupied
		}
	}
	return database.TableStatusAvailable
}

func oppositeStatus(s database.TableStatus) database.TableStatus {
	if s == database.TableStatusOccupied {
		return database.TableStatusAvailable
	}
	return database.TableStatusOccupied
}

// isActiveOrderConflict checks if the error is a unique violation of the
// one-active-order-per-table index (pgconn error code 23505).
func isActiveOrderConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_one_active_per_table"
	}
	return false
}

func uuidRef(id uuid.UUID) *uuid.UUID {
	return &id
}
