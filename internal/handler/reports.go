package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/masapos/api/internal/database"
)

// ActivityReader defines the recorder methods needed by report handlers.
// Satisfied by *activity.Recorder; narrow interface for testability.
type ActivityReader interface {
	Recent() []database.ActivityLog
	LogsByDate(ctx context.Context, day time.Time) ([]database.ActivityLog, error)
	LogsByTable(ctx context.Context, tableID uuid.UUID) ([]database.ActivityLog, error)
	LogsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.ActivityLog, error)
	ClearLogs(ctx context.Context) (int64, error)
	Reports(ctx context.Context) ([]database.DailySalesReport, error)
	ReportByDate(ctx context.Context, day time.Time) (database.DailySalesReport, error)
	ClearReports(ctx context.Context) (int64, error)
}

// ReportsHandler handles activity log and daily sales report endpoints.
type ReportsHandler struct {
	recorder ActivityReader
}

// NewReportsHandler creates a new ReportsHandler.
func NewReportsHandler(recorder ActivityReader) *ReportsHandler {
	return &ReportsHandler{recorder: recorder}
}

// RegisterActivityRoutes registers activity log endpoints.
// Expected to be mounted at /activity-logs.
func (h *ReportsHandler) RegisterActivityRoutes(r chi.Router) {
	r.Get("/", h.ListLogs)
	r.Get("/recent", h.RecentLogs)
	r.Delete("/", h.ClearLogs)
}

// RegisterSalesRoutes registers daily sales report endpoints.
// Expected to be mounted at /sales-reports.
func (h *ReportsHandler) RegisterSalesRoutes(r chi.Router) {
	r.Get("/", h.ListReports)
	r.Get("/{date}", h.GetReport)
	r.Delete("/", h.ClearReports)
}

// --- Response types ---

type activityLogResponse struct {
	ID        uuid.UUID       `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Operation string          `json:"operation"`
	Details   json.RawMessage `json:"details"`
	TableID   *string         `json:"table_id"`
	OrderID   *string         `json:"order_id"`
	UserID    string          `json:"user_id"`
	UserName  string          `json:"user_name"`
}

type salesReportResponse struct {
	Date            string `json:"date"`
	TotalSales      string `json:"total_sales"`
	TotalOrders     int32  `json:"total_orders"`
	CashSales       string `json:"cash_sales"`
	CreditCardSales string `json:"credit_card_sales"`
	DebitCardSales  string `json:"debit_card_sales"`
	OtherSales      string `json:"other_sales"`
}

// --- Handlers ---

// ListLogs handles GET /activity-logs. Exactly one of date, table_id or
// order_id selects the logs; date is YYYY-MM-DD in UTC.
func (h *ReportsHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		logs []database.ActivityLog
		err  error
	)
	switch {
	case q.Get("table_id") != "":
		tableID, perr := uuid.Parse(q.Get("table_id"))
		if perr != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table_id"})
			return
		}
		logs, err = h.recorder.LogsByTable(r.Context(), tableID)
	case q.Get("order_id") != "":
		orderID, perr := uuid.Parse(q.Get("order_id"))
		if perr != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order_id"})
			return
		}
		logs, err = h.recorder.LogsByOrder(r.Context(), orderID)
	default:
		day := time.Now().UTC()
		if s := q.Get("date"); s != "" {
			var perr error
			day, perr = time.Parse("2006-01-02", s)
			if perr != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date format, use YYYY-MM-DD"})
				return
			}
		}
		logs, err = h.recorder.LogsByDate(r.Context(), day)
	}
	if err != nil {
		writeEngineError(w, "list activity logs", err)
		return
	}

	writeJSON(w, http.StatusOK, toActivityLogResponses(logs))
}

// RecentLogs handles GET /activity-logs/recent, served from memory.
func (h *ReportsHandler) RecentLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toActivityLogResponses(h.recorder.Recent()))
}

// ClearLogs handles DELETE /activity-logs.
func (h *ReportsHandler) ClearLogs(w http.ResponseWriter, r *http.Request) {
	n, err := h.recorder.ClearLogs(r.Context())
	if err != nil {
		writeEngineError(w, "clear activity logs", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// ListReports handles GET /sales-reports.
func (h *ReportsHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.recorder.Reports(r.Context())
	if err != nil {
		writeEngineError(w, "list sales reports", err)
		return
	}

	resp := make([]salesReportResponse, len(reports))
	for i, rep := range reports {
		resp[i] = toSalesReportResponse(rep)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetReport handles GET /sales-reports/{date}.
func (h *ReportsHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	day, err := time.Parse("2006-01-02", chi.URLParam(r, "date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date format, use YYYY-MM-DD"})
		return
	}

	rep, err := h.recorder.ReportByDate(r.Context(), day)
	if err != nil {
		writeEngineError(w, "get sales report", err)
		return
	}
	writeJSON(w, http.StatusOK, toSalesReportResponse(rep))
}

// ClearReports handles DELETE /sales-reports.
func (h *ReportsHandler) ClearReports(w http.ResponseWriter, r *http.Request) {
	n, err := h.recorder.ClearReports(r.Context())
	if err != nil {
		writeEngineError(w, "clear sales reports", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// --- Helpers ---

func toActivityLogResponses(logs []database.ActivityLog) []activityLogResponse {
	resp := make([]activityLogResponse, len(logs))
	for i, l := range logs {
		details := json.RawMessage(l.Details)
		if len(details) == 0 {
			details = json.RawMessage("{}")
		}
		resp[i] = activityLogResponse{
			ID:        l.ID,
			Timestamp: l.Timestamp,
			Operation: l.Operation,
			Details:   details,
			TableID:   uuidToString(l.TableID),
			OrderID:   uuidToString(l.OrderID),
			UserID:    l.UserID,
			UserName:  l.UserName,
		}
	}
	return resp
}

func toSalesReportResponse(rep database.DailySalesReport) salesReportResponse {
	var date string
	if rep.Date.Valid {
		date = rep.Date.Time.Format("2006-01-02")
	}
	return salesReportResponse{
		Date:            date,
		TotalSales:      numericToString(rep.TotalSales),
		TotalOrders:     rep.TotalOrders,
		CashSales:       numericToString(rep.CashSales),
		CreditCardSales: numericToString(rep.CreditCardSales),
		DebitCardSales:  numericToString(rep.DebitCardSales),
		OtherSales:      numericToString(rep.OtherSales),
	}
}
