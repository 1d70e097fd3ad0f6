package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const deleteAllDailySalesReports = `-- name: DeleteAllDailySalesReports :execrows
DELETE FROM daily_sales_reports
`

func (q *Queries) DeleteAllDailySalesReports(ctx context.Context) (int64, error) {
	result, err := q.db.Exec(ctx, deleteAllDailySalesReports)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const foldDailySales = `-- name: FoldDailySales :one
INSERT INTO daily_sales_reports (date, total_sales, total_orders, cash_sales, credit_card_sales, debit_card_sales, other_sales)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (date) DO UPDATE SET
    total_sales       = daily_sales_reports.total_sales + EXCLUDED.total_sales,
    total_orders      = daily_sales_reports.total_orders + EXCLUDED.total_orders,
    cash_sales        = daily_sales_reports.cash_sales + EXCLUDED.cash_sales,
    credit_card_sales = daily_sales_reports.credit_card_sales + EXCLUDED.credit_card_sales,
    debit_card_sales  = daily_sales_reports.debit_card_sales + EXCLUDED.debit_card_sales,
    other_sales       = daily_sales_reports.other_sales + EXCLUDED.other_sales,
    updated_at        = now()
RETURNING id, date, total_sales, total_orders, cash_sales, credit_card_sales, debit_card_sales, other_sales, created_at, updated_at
`

type FoldDailySalesParams struct {
	Date            pgtype.Date    `json:"date"`
	TotalSales      pgtype.Numeric `json:"total_sales"`
	TotalOrders     int32          `json:"total_orders"`
	CashSales       pgtype.Numeric `json:"cash_sales"`
	CreditCardSales pgtype.Numeric `json:"credit_card_sales"`
	DebitCardSales  pgtype.Numeric `json:"debit_card_sales"`
	OtherSales      pgtype.Numeric `json:"other_sales"`
}

// FoldDailySales adds the given amounts onto the report for Date, creating the
// row on first use. Concurrent folds commute.
func (q *Queries) FoldDailySales(ctx context.Context, arg FoldDailySalesParams) (DailySalesReport, error) {
	row := q.db.QueryRow(ctx, foldDailySales,
		arg.Date,
		arg.TotalSales,
		arg.TotalOrders,
		arg.CashSales,
		arg.CreditCardSales,
		arg.DebitCardSales,
		arg.OtherSales,
	)
	var i DailySalesReport
	err := row.Scan(
		&i.ID,
		&i.Date,
		&i.TotalSales,
		&i.TotalOrders,
		&i.CashSales,
		&i.CreditCardSales,
		&i.DebitCardSales,
		&i.OtherSales,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getDailySalesReportByDate = `-- name: GetDailySalesReportByDate :one
SELECT id, date, total_sales, total_orders, cash_sales, credit_card_sales, debit_card_sales, other_sales, created_at, updated_at
FROM daily_sales_reports WHERE date = $1
`

func (q *Queries) GetDailySalesReportByDate(ctx context.Context, date pgtype.Date) (DailySalesReport, error) {
	row := q.db.QueryRow(ctx, getDailySalesReportByDate, date)
	var i DailySalesReport
	err := row.Scan(
		&i.ID,
		&i.Date,
		&i.TotalSales,
		&i.TotalOrders,
		&i.CashSales,
		&i.CreditCardSales,
		&i.DebitCardSales,
		&i.OtherSales,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listDailySalesReports = `-- name: ListDailySalesReports :many
SELECT id, date, total_sales, total_orders, cash_sales, credit_card_sales, debit_card_sales, other_sales, created_at, updated_at
FROM daily_sales_reports
ORDER BY date DESC
`

func (q *Queries) ListDailySalesReports(ctx context.Context) ([]DailySalesReport, error) {
	rows, err := q.db.Query(ctx, listDailySalesReports)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DailySalesReport
	for rows.Next() {
		var i DailySalesReport
		if err := rows.Scan(
			&i.ID,
			&i.Date,
			&i.TotalSales,
			&i.TotalOrders,
			&i.CashSales,
			&i.CreditCardSales,
			&i.DebitCardSales,
			&i.OtherSales,
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
