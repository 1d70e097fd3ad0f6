package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/masapos/api/internal/activity"
	"github.com/masapos/api/internal/catalog"
	"github.com/masapos/api/internal/database"
	"github.com/masapos/api/internal/service"
	"github.com/sirupsen/logrus"
)

// --- Response types ---

type tableResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type orderResponse struct {
	ID        uuid.UUID `json:"id"`
	TableID   uuid.UUID `json:"table_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type itemResponse struct {
	ID         uuid.UUID `json:"id"`
	OrderID    uuid.UUID `json:"order_id"`
	ProductID  uuid.UUID `json:"product_id"`
	VariantID  *string   `json:"variant_id"`
	Name       string    `json:"name"`
	Quantity   int32     `json:"quantity"`
	Price      string    `json:"price"`
	AssignedTo *string   `json:"assigned_to"`
	Status     string    `json:"status"`
	Method     *string   `json:"method"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type paymentResponse struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"order_id"`
	Amount    string    `json:"amount"`
	Method    string    `json:"method"`
	CreatedAt time.Time `json:"created_at"`
}

func toTableResponse(t database.Table) tableResponse {
	return tableResponse{
		ID:        t.ID,
		Name:      t.Name,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func toOrderResponse(o database.Order) orderResponse {
	return orderResponse{
		ID:        o.ID,
		TableID:   o.TableID,
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func toItemResponse(it database.OrderItem) itemResponse {
	return itemResponse{
		ID:         it.ID,
		OrderID:    it.OrderID,
		ProductID:  it.ProductID,
		VariantID:  uuidToString(it.VariantID),
		Name:       it.Name,
		Quantity:   it.Quantity,
		Price:      numericToString(it.Price),
		AssignedTo: textToString(it.AssignedTo),
		Status:     string(it.Status),
		Method:     textToString(it.Method),
		CreatedAt:  it.CreatedAt,
		UpdatedAt:  it.UpdatedAt,
	}
}

func toItemResponses(items []database.OrderItem) []itemResponse {
	resp := make([]itemResponse, len(items))
	for i, it := range items {
		resp[i] = toItemResponse(it)
	}
	return resp
}

func toPaymentResponse(p database.Payment) paymentResponse {
	return paymentResponse{
		ID:        p.ID,
		OrderID:   p.OrderID,
		Amount:    numericToString(p.Amount),
		Method:    string(p.Method),
		CreatedAt: p.CreatedAt,
	}
}

func toPaymentResponses(payments []database.Payment) []paymentResponse {
	resp := make([]paymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = toPaymentResponse(p)
	}
	return resp
}

// --- Error mapping ---

// writeEngineError maps engine and recorder errors to HTTP statuses. Unknown
// errors are logged and reported as 500.
func writeEngineError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrTableNotFound),
		errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrItemNotFound),
		errors.Is(err, activity.ErrReportNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrEmptyTableName),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidPaymentMethod),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrEmptyToken),
		errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrVariantNotFound):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrEmptyDistribution),
		errors.Is(err, service.ErrItemNotActive),
		errors.Is(err, service.ErrOrderNotActive),
		errors.Is(err, service.ErrActiveOrderExists),
		errors.Is(err, service.ErrNoFreeToken):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		logrus.WithError(err).Errorf("%s failed", op)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Error("failed to encode JSON response")
	}
}

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

func numericToString(n pgtype.Numeric) string {
	return catalog.NumericToDecimal(n).StringFixed(2)
}

func uuidToString(u pgtype.UUID) *string {
	if !u.Valid {
		return nil
	}
	s := uuid.UUID(u.Bytes).String()
	return &s
}

func textToString(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

// warningsOrEmpty keeps the warnings field an array in responses.
func warningsOrEmpty(w []string) []string {
	if w == nil {
		return []string{}
	}
	return w
}
