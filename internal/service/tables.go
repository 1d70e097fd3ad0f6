package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/masapos/api/internal/activity"
	"github.com/masapos/api/internal/catalog"
	"github.com/masapos/api/internal/database"
	"github.com/masapos/api/internal/enum"
	"github.com/shopspring/decimal"
)

// TableResult is a table after a mutation.
type TableResult struct {
	Table    database.Table
	Changed  bool
	Warnings []string
}

// Distribution is one payment group: the active items sharing a token.
type Distribution struct {
	Token string
	Items []database.OrderItem
	Total decimal.Decimal
}

// TableDetail is everything a floor terminal shows for one table.
type TableDetail struct {
	Table database.Table
	// Order is nil when the table has no active order.
	Order *database.Order
	// Items holds every item of the active order, settled ones included.
	Items         []database.OrderItem
	OpenItems     []database.OrderItem
	Distributions []Distribution
	// CurrentDistribution is the token of the earliest active assigned item.
	CurrentDistribution *string
	OpenTotal           decimal.Decimal
	Total               decimal.Decimal
	Payments            []database.Payment
}

// ReconcileReport summarizes a sweep over all tables.
type ReconcileReport struct {
	Checked   int
	Corrected []database.Table
	Warnings  []string
}

// CreateTable adds a table with status available.
func (s *Engine) CreateTable(ctx context.Context, name string, actor activity.Actor) (*TableResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyTableName
	}

	fx := newSideEffects(actor)
	var table database.Table
	err := s.inTx(ctx, func(store EngineStore) error {
		var err error
		table, err = store.CreateTable(ctx, name)
		if err != nil {
			return fmt.Errorf("create table: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fx.log(enum.OpTableCreate, uuidRef(table.ID), nil, map[string]any{"name": table.Name})
	fx.publish(enum.EventTableStatusChanged, table.ID, nil, table)
	return &TableResult{Table: table, Changed: true, Warnings: s.apply(ctx, fx)}, nil
}

// DeleteTable removes a table. Its orders are kept.
func (s *Engine) DeleteTable(ctx context.Context, tableID uuid.UUID, actor activity.Actor) ([]string, error) {
	fx := newSideEffects(actor)
	err := s.inTx(ctx, func(store EngineStore) error {
		n, err := store.DeleteTable(ctx, tableID)
		if err != nil {
			return fmt.Errorf("delete table: %w", err)
		}
		if n == 0 {
			return ErrTableNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fx.log(enum.OpTableDelete, uuidRef(tableID), nil, nil)
	return s.apply(ctx, fx), nil
}

// ListTables returns all tables ordered by name.
func (s *Engine) ListTables(ctx context.Context) ([]database.Table, error) {
	var tables []database.Table
	err := s.inTx(ctx, func(store EngineStore) error {
		var err error
		tables, err = store.ListTables(ctx)
		if err != nil {
			return fmt.Errorf("list tables: %w", err)
		}
		return nil
	})
	return tables, err
}

// ListTablesByStatus returns the tables currently in the given status.
func (s *Engine) ListTablesByStatus(ctx context.Context, status database.TableStatus) ([]database.Table, error) {
	var tables []database.Table
	err := s.inTx(ctx, func(store EngineStore) error {
		var err error
		tables, err = store.ListTablesByStatus(ctx, status)
		if err != nil {
			return fmt.Errorf("list tables by status: %w", err)
		}
		return nil
	})
	return tables, err
}

// GetTableDetail returns the table, its active order and the order's
// open bucket, distribution groups, totals and payments.
func (s *Engine) GetTableDetail(ctx context.Context, tableID uuid.UUID) (*TableDetail, error) {
	detail := &TableDetail{OpenTotal: decimal.Zero, Total: decimal.Zero}
	err := s.inTx(ctx, func(store EngineStore) error {
		table, err := store.GetTable(ctx, tableID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrTableNotFound
			}
			return fmt.Errorf("get table: %w", err)
		}
		detail.Table = table

		order, err := store.GetActiveOrderByTable(ctx, tableID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("get active order: %w", err)
		}
		detail.Order = &order

		items, err := store.ListOrderItemsByOrder(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("list order items: %w", err)
		}
		detail.Items = items
		detail.OpenItems, detail.Distributions, detail.OpenTotal, detail.Total = summarizeItems(items)
		if len(detail.Distributions) > 0 {
			detail.CurrentDistribution = &detail.Distributions[0].Token
		}

		payments, err := store.ListPaymentsByOrder(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("list payments: %w", err)
		}
		detail.Payments = payments
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// summarizeItems splits active items into the open bucket and distribution
// groups (in order of first assignment) and totals price * quantity.
func summarizeItems(items []database.OrderItem) ([]database.OrderItem, []Distribution, decimal.Decimal, decimal.Decimal) {
	var open []database.OrderItem
	var groups []Distribution
	index := make(map[string]int)
	openTotal, total := decimal.Zero, decimal.Zero

	for _, item := range items {
		if item.Status != database.OrderItemStatusActive {
			continue
		}
		line := lineTotal(item)
		total = total.Add(line)

		if !item.AssignedTo.Valid {
			open = append(open, item)
			openTotal = openTotal.Add(line)
			continue
		}
		i, ok := index[item.AssignedTo.String]
		if !ok {
			i = len(groups)
			index[item.AssignedTo.String] = i
			groups = append(groups, Distribution{Token: item.AssignedTo.String, Total: decimal.Zero})
		}
		groups[i].Items = append(groups[i].Items, item)
		groups[i].Total = groups[i].Total.Add(line)
	}
	return open, groups, openTotal, total
}

func lineTotal(item database.OrderItem) decimal.Decimal {
	return catalog.NumericToDecimal(item.Price).Mul(decimal.NewFromInt32(item.Quantity))
}

// ReconcileTable recomputes one table's status from its orders.
func (s *Engine) ReconcileTable(ctx context.Context, tableID uuid.UUID, actor activity.Actor) (*TableResult, error) {
	fx := newSideEffects(actor)
	var (
		table   database.Table
		changed bool
	)
	err := s.inTx(ctx, func(store EngineStore) error {
		var err error
		table, changed, err = reconcileTableTx(ctx, store, tableID, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		fx.tableChanged(oppositeStatus(table.Status), table)
	}
	return &TableResult{Table: table, Changed: changed, Warnings: s.apply(ctx, fx)}, nil
}

// ReconcileAllTables runs ReconcileTable over every table. A failure on one
// table is reported as a warning and the sweep continues.
func (s *Engine) ReconcileAllTables(ctx context.Context, actor activity.Actor) (*ReconcileReport, error) {
	tables, err := s.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{}
	for _, t := range tables {
		res, err := s.ReconcileTable(ctx, t.ID, actor)
		if err != nil {
			if errors.Is(err, ErrTableNotFound) {
				continue
			}
			report.Warnings = append(report.Warnings, fmt.Sprintf("table %s: %v", t.ID, err))
			continue
		}
		report.Checked++
		if res.Changed {
			report.Corrected = append(report.Corrected, res.Table)
		}
		report.Warnings = append(report.Warnings, res.Warnings...)
	}
	return report, nil
}
