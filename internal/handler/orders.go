package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/masapos/api/internal/activity"
	"github.com/masapos/api/internal/database"
	"github.com/masapos/api/internal/middleware"
	"github.com/masapos/api/internal/service"
	"github.com/shopspring/decimal"
)

// OrderEngine defines the engine methods needed by order handlers.
// Satisfied by *service.Engine; narrow interface for testability.
type OrderEngine interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (*service.OrderDetail, error)
	CompleteOrder(ctx context.Context, orderID uuid.UUID, actor activity.Actor) (*service.OrderResult, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID, actor activity.Actor) (*service.OrderResult, error)
	NewDistribution(ctx context.Context, orderID uuid.UUID) (string, error)
	PayOrder(ctx context.Context, req service.PayOrderRequest) (*service.PaymentResult, error)
	PayGroup(ctx context.Context, req service.PayGroupRequest) (*service.PaymentResult, error)
	ListPayments(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
}

// OrderHandler handles order, distribution and payment endpoints.
type OrderHandler struct {
	engine OrderEngine
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(engine OrderEngine) *OrderHandler {
	return &OrderHandler{engine: engine}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted at /orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{id}", h.Get)
	r.Post("/{id}/complete", h.Complete)
	r.Post("/{id}/cancel", h.Cancel)
	r.Post("/{id}/distributions", h.NewDistribution)
	r.Post("/{id}/distributions/{token}/payments", h.PayGroup)
	r.Post("/{id}/payments", h.PayOrder)
	r.Get("/{id}/payments", h.ListPayments)
}

// --- Request / Response types ---

type orderDetailResponse struct {
	orderResponse
	Items    []itemResponse    `json:"items"`
	Payments []paymentResponse `json:"payments"`
}

type paymentRequest struct {
	Amount string `json:"amount"`
	Method string `json:"method"`
	// CurrentToken is the distribution the terminal is showing, if any.
	CurrentToken string `json:"current_token"`
}

type paymentResultResponse struct {
	Payment             paymentResponse `json:"payment"`
	Order               orderResponse   `json:"order"`
	Items               []itemResponse  `json:"items"`
	OrderCompleted      bool            `json:"order_completed"`
	DistributionCleared bool            `json:"distribution_cleared"`
	Warnings            []string        `json:"warnings"`
}

// --- Handlers ---

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseUUIDParam(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	detail, err := h.engine.GetOrder(r.Context(), orderID)
	if err != nil {
		writeEngineError(w, "get order", err)
		return
	}

	writeJSON(w, http.StatusOK, orderDetailResponse{
		orderResponse: toOrderResponse(detail.Order),
		Items:         toItemResponses(detail.Items),
		Payments:      toPaymentResponses(detail.Payments),
	})
}

// Complete handles POST /orders/{id}/complete.
func (h *OrderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseUUIDParam(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	result, err := h.engine.CompleteOrder(r.Context(), orderID, middleware.ActorFromContext(r.Context()))
	if err != nil {
		writeEngineError(w, "complete order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResultResponse(result))
}

// Cancel handles POST /orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseUUIDParam(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	result, err := h.engine.CancelOrder(r.Context(), orderID, middleware.ActorFromContext(r.Context()))
	if err != nil {
		writeEngineError(w, "cancel order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResultResponse(result))
}

// NewDistribution handles POST /orders/{id}/distributions.
func (h *OrderHandler) NewDistribution(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseUUIDParam(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	token, err := h.engine.NewDistribution(r.Context(), orderID)
	if err != nil {
		writeEngineError(w, "new distribution", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"token": token})
}

// PayOrder handles POST /orders/{id}/payments.
func (h *OrderHandler) PayOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseUUIDParam(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	req, amount, ok := decodePaymentRequest(w, r)
	if !ok {
		return
	}

	result, err := h.engine.PayOrder(r.Context(), service.PayOrderRequest{
		OrderID: orderID,
		Amount:  amount,
		Method:  req.Method,
		Actor:   middleware.ActorFromContext(r.Context()),
	})
	if err != nil {
		writeEngineError(w, "pay order", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentResultResponse(result))
}

// PayGroup handles POST /orders/{id}/distributions/{token}/payments.
func (h *OrderHandler) PayGroup(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseUUIDParam(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	req, amount, ok := decodePaymentRequest(w, r)
	if !ok {
		return
	}

	result, err := h.engine.PayGroup(r.Context(), service.PayGroupRequest{
		OrderID:      orderID,
		Token:        chi.URLParam(r, "token"),
		Amount:       amount,
		Method:       req.Method,
		CurrentToken: req.CurrentToken,
		Actor:        middleware.ActorFromContext(r.Context()),
	})
	if err != nil {
		writeEngineError(w, "pay distribution", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentResultResponse(result))
}

// ListPayments handles GET /orders/{id}/payments.
func (h *OrderHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseUUIDParam(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	payments, err := h.engine.ListPayments(r.Context(), orderID)
	if err != nil {
		writeEngineError(w, "list payments", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponses(payments))
}

// --- Helpers ---

func decodePaymentRequest(w http.ResponseWriter, r *http.Request) (paymentRequest, decimal.Decimal, bool) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return req, decimal.Zero, false
	}

	if req.Amount == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount is required"})
		return req, decimal.Zero, false
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid amount"})
		return req, decimal.Zero, false
	}
	return req, amount, true
}

func toPaymentResultResponse(result *service.PaymentResult) paymentResultResponse {
	return paymentResultResponse{
		Payment:             toPaymentResponse(result.Payment),
		Order:               toOrderResponse(result.Order),
		Items:               toItemResponses(result.Items),
		OrderCompleted:      result.OrderCompleted,
		DistributionCleared: result.DistributionCleared,
		Warnings:            warningsOrEmpty(result.Warnings),
	}
}
