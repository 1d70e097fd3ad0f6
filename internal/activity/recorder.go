package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/masapos/api/internal/catalog"
	"github.com/masapos/api/internal/database"
	"github.com/masapos/api/internal/enum"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DefaultMirrorSize is the number of entries kept in memory when no size is configured.
const DefaultMirrorSize = 100

// ErrReportNotFound is returned when no payment was recorded on the requested date.
var ErrReportNotFound = errors.New("sales report not found")

// Store defines the DB methods the recorder needs.
// Satisfied by *database.Queries.
type Store interface {
	CreateActivityLog(ctx context.Context, arg database.CreateActivityLogParams) (database.ActivityLog, error)
	ListActivityLogsBetween(ctx context.Context, arg database.ListActivityLogsBetweenParams) ([]database.ActivityLog, error)
	ListActivityLogsByTable(ctx context.Context, tableID pgtype.UUID) ([]database.ActivityLog, error)
	ListActivityLogsByOrder(ctx context.Context, orderID pgtype.UUID) ([]database.ActivityLog, error)
	DeleteAllActivityLogs(ctx context.Context) (int64, error)
	FoldDailySales(ctx context.Context, arg database.FoldDailySalesParams) (database.DailySalesReport, error)
	GetDailySalesReportByDate(ctx context.Context, date pgtype.Date) (database.DailySalesReport, error)
	ListDailySalesReports(ctx context.Context) ([]database.DailySalesReport, error)
	DeleteAllDailySalesReports(ctx context.Context) (int64, error)
}

// Actor identifies who performed an operation.
type Actor struct {
	UserID   string
	UserName string
}

// System is the actor used for background work such as the reconciliation sweep.
var System = Actor{UserID: "system", UserName: "System"}

// Entry is a single activity fact to record.
type Entry struct {
	Operation string
	Details   map[string]any
	TableID   *uuid.UUID
	OrderID   *uuid.UUID
	Actor     Actor
}

// PaymentEntry is a settled payment to record and fold into the daily report.
type PaymentEntry struct {
	Amount  decimal.Decimal
	Method  string
	OrderID uuid.UUID
	TableID *uuid.UUID
	Token   string
	Actor   Actor
}

// Recorder appends activity logs and keeps the per-day sales aggregate.
type Recorder struct {
	store  Store
	mirror *mirror
	now    func() time.Time
}

// NewRecorder creates a new Recorder. A non-positive mirrorSize uses DefaultMirrorSize.
func NewRecorder(store Store, mirrorSize int) *Recorder {
	if mirrorSize <= 0 {
		mirrorSize = DefaultMirrorSize
	}
	return &Recorder{store: store, mirror: newMirror(mirrorSize), now: time.Now}
}

// Log appends one activity entry.
func (r *Recorder) Log(ctx context.Context, e Entry) error {
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}

	actor := e.Actor
	if actor.UserID == "" {
		actor = System
	}

	entry, err := r.store.CreateActivityLog(ctx, database.CreateActivityLogParams{
		Operation: e.Operation,
		Details:   raw,
		TableID:   toPgUUID(e.TableID),
		OrderID:   toPgUUID(e.OrderID),
		UserID:    actor.UserID,
		UserName:  actor.UserName,
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"operation": e.Operation,
			"error":     err,
		}).Error("activity log write failed")
		return fmt.Errorf("create activity log: %w", err)
	}
	r.mirror.push(entry)
	return nil
}

// LogPayment logs the payment and folds its amount into today's sales report.
// Unknown methods are folded into the "other" bucket.
func (r *Recorder) LogPayment(ctx context.Context, p PaymentEntry) error {
	bucket := normalizeMethod(p.Method)

	fold := database.FoldDailySalesParams{
		Date:            toPgDate(r.now()),
		TotalSales:      catalog.DecimalToNumeric(p.Amount),
		TotalOrders:     1,
		CashSales:       catalog.DecimalToNumeric(decimal.Zero),
		CreditCardSales: catalog.DecimalToNumeric(decimal.Zero),
		DebitCardSales:  catalog.DecimalToNumeric(decimal.Zero),
		OtherSales:      catalog.DecimalToNumeric(decimal.Zero),
	}
	switch bucket {
	case database.PaymentMethodCash:
		fold.CashSales = fold.TotalSales
	case database.PaymentMethodCreditCard:
		fold.CreditCardSales = fold.TotalSales
	case database.PaymentMethodDebitCard:
		fold.DebitCardSales = fold.TotalSales
	default:
		fold.OtherSales = fold.TotalSales
	}

	details := map[string]any{
		"amount": p.Amount.StringFixed(2),
		"method": p.Method,
	}
	if p.Token != "" {
		details["distribution"] = p.Token
	}
	orderID := p.OrderID
	logErr := r.Log(ctx, Entry{
		Operation: enum.OpPayment,
		Details:   details,
		TableID:   p.TableID,
		OrderID:   &orderID,
		Actor:     p.Actor,
	})

	// The audit entry is written even when the report fold fails.
	var foldErr error
	if _, err := r.store.FoldDailySales(ctx, fold); err != nil {
		logrus.WithFields(logrus.Fields{
			"order_id": p.OrderID,
			"amount":   p.Amount.StringFixed(2),
			"error":    err,
		}).Error("daily sales fold failed")
		foldErr = fmt.Errorf("fold daily sales: %w", err)
	}
	return errors.Join(logErr, foldErr)
}

// Recent returns the in-memory mirror, newest first.
func (r *Recorder) Recent() []database.ActivityLog {
	return r.mirror.snapshot()
}

// LogsByDate returns the logs of one UTC calendar day, newest first.
func (r *Recorder) LogsByDate(ctx context.Context, day time.Time) ([]database.ActivityLog, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	logs, err := r.store.ListActivityLogsBetween(ctx, database.ListActivityLogsBetweenParams{
		Start: start,
		End:   start.AddDate(0, 0, 1),
	})
	if err != nil {
		return nil, fmt.Errorf("list activity logs: %w", err)
	}
	return logs, nil
}

// LogsByTable returns every log attached to the table, newest first.
func (r *Recorder) LogsByTable(ctx context.Context, tableID uuid.UUID) ([]database.ActivityLog, error) {
	logs, err := r.store.ListActivityLogsByTable(ctx, toPgUUID(&tableID))
	if err != nil {
		return nil, fmt.Errorf("list activity logs by table: %w", err)
	}
	return logs, nil
}

// LogsByOrder returns every log attached to the order, newest first.
func (r *Recorder) LogsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.ActivityLog, error) {
	logs, err := r.store.ListActivityLogsByOrder(ctx, toPgUUID(&orderID))
	if err != nil {
		return nil, fmt.Errorf("list activity logs by order: %w", err)
	}
	return logs, nil
}

// ClearLogs deletes the durable log and empties the mirror.
func (r *Recorder) ClearLogs(ctx context.Context) (int64, error) {
	n, err := r.store.DeleteAllActivityLogs(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete activity logs: %w", err)
	}
	r.mirror.reset()
	return n, nil
}

// Reports lists all daily sales reports, newest date first.
func (r *Recorder) Reports(ctx context.Context) ([]database.DailySalesReport, error) {
	reports, err := r.store.ListDailySalesReports(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sales reports: %w", err)
	}
	return reports, nil
}

// ReportByDate returns the sales report of one calendar date.
func (r *Recorder) ReportByDate(ctx context.Context, day time.Time) (database.DailySalesReport, error) {
	report, err := r.store.GetDailySalesReportByDate(ctx, toPgDate(day))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.DailySalesReport{}, ErrReportNotFound
		}
		return database.DailySalesReport{}, fmt.Errorf("get sales report: %w", err)
	}
	return report, nil
}

// ClearReports deletes every daily sales report.
func (r *Recorder) ClearReports(ctx context.Context) (int64, error) {
	n, err := r.store.DeleteAllDailySalesReports(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete sales reports: %w", err)
	}
	return n, nil
}

func normalizeMethod(method string) database.PaymentMethod {
	switch m := database.PaymentMethod(method); m {
	case database.PaymentMethodCash, database.PaymentMethodCreditCard, database.PaymentMethodDebitCard:
		return m
	}
	return database.PaymentMethodOther
}

func toPgUUID(id *uuid.UUID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: *id, Valid: true}
}

func toPgDate(t time.Time) pgtype.Date {
	t = t.UTC()
	return pgtype.Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), Valid: true}
}

// mirror keeps the newest entries in a fixed-size ring.
type mirror struct {
	mu      sync.Mutex
	entries []database.ActivityLog
	next    int
	full    bool
}

func newMirror(size int) *mirror {
	return &mirror{entries: make([]database.ActivityLog, size)}
}

func (m *mirror) push(e database.ActivityLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[m.next] = e
	m.next = (m.next + 1) % len(m.entries)
	if m.next == 0 {
		m.full = true
	}
}

func (m *mirror) snapshot() []database.ActivityLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.next
	if m.full {
		n = len(m.entries)
	}
	out := make([]database.ActivityLog, 0, n)
	for i := 1; i <= n; i++ {
		idx := (m.next - i + len(m.entries)) % len(m.entries)
		out = append(out, m.entries[idx])
	}
	return out
}

func (m *mirror) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make([]database.ActivityLog, len(m.entries))
	m.next = 0
	m.full = false
}
