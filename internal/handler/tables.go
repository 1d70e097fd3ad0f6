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
)

// TableEngine defines the engine methods needed by table handlers.
// Satisfied by *service.Engine; narrow interface for testability.
type TableEngine interface {
	CreateTable(ctx context.Context, name string, actor activity.Actor) (*service.TableResult, error)
	DeleteTable(ctx context.Context, tableID uuid.UUID, actor activity.Actor) ([]string, error)
	ListTables(ctx context.Context) ([]database.Table, error)
	ListTablesByStatus(ctx context.Context, status database.TableStatus) ([]database.Table, error)
	GetTableDetail(ctx context.Context, tableID uuid.UUID) (*service.TableDetail, error)
	ReconcileTable(ctx context.Context, tableID uuid.UUID, actor activity.Actor) (*service.TableResult, error)
	ReconcileAllTables(ctx context.Context, actor activity.Actor) (*service.ReconcileReport, error)
	CreateOrder(ctx context.Context, tableID uuid.UUID, actor activity.Actor) (*service.OrderResult, error)
	AddItem(ctx context.Context, req service.AddItemRequest) (*service.ItemResult, error)
}

// TableHandler handles table endpoints, including the order and item
// operations that start from a table.
type TableHandler struct {
	engine TableEngine
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(engine TableEngine) *TableHandler {
	return &TableHandler{engine: engine}
}

// RegisterRoutes registers table endpoints on the given Chi router.
// Expected to be mounted at /tables.
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/reconcile", h.ReconcileAll)
	r.Get("/{tid}", h.Get)
	r.Delete("/{tid}", h.Delete)
	r.Post("/{tid}/orders", h.CreateOrder)
	r.Post("/{tid}/items", h.AddItem)
	r.Post("/{tid}/reconcile", h.Reconcile)
}

// --- Request / Response types ---

type createTableRequest struct {
	Name string `json:"name"`
}

type addItemRequest struct {
	ProductID string  `json:"product_id"`
	VariantID *string `json:"variant_id"`
	Quantity  int32   `json:"quantity"`
}

type tableResultResponse struct {
	Table    tableResponse `json:"table"`
	Changed  bool          `json:"changed"`
	Warnings []string      `json:"warnings"`
}

type distributionResponse struct {
	Token string         `json:"token"`
	Items []itemResponse `json:"items"`
	Total string         `json:"total"`
}

type tableDetailResponse struct {
	Table               tableResponse          `json:"table"`
	Order               *orderResponse         `json:"order"`
	Items               []itemResponse         `json:"items"`
	OpenItems           []itemResponse         `json:"open_items"`
	Distributions       []distributionResponse `json:"distributions"`
	CurrentDistribution *string                `json:"current_distribution"`
	OpenTotal           string                 `json:"open_total"`
	Total               string                 `json:"total"`
	Payments            []paymentResponse      `json:"payments"`
}

type orderResultResponse struct {
	Order    orderResponse  `json:"order"`
	Table    *tableResponse `json:"table"`
	Warnings []string       `json:"warnings"`
}

type itemResultResponse struct {
	Item           itemResponse  `json:"item"`
	Order          orderResponse `json:"order"`
	OrderCreated   bool          `json:"order_created"`
	OrderCompleted bool          `json:"order_completed"`
	Warnings       []string      `json:"warnings"`
}

type reconcileReportResponse struct {
	Checked   int             `json:"checked"`
	Corrected []tableResponse `json:"corrected"`
	Warnings  []string        `json:"warnings"`
}

// --- Handlers ---

// List handles GET /tables, optionally filtered by ?status=.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		tables []database.Table
		err    error
	)
	switch status := database.TableStatus(r.URL.Query().Get("status")); status {
	case "":
		tables, err = h.engine.ListTables(r.Context())
	case database.TableStatusAvailable, database.TableStatusOccupied:
		tables, err = h.engine.ListTablesByStatus(r.Context(), status)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status must be available or occupied"})
		return
	}
	if err != nil {
		writeEngineError(w, "list tables", err)
		return
	}

	resp := make([]tableResponse, len(tables))
	for i, t := range tables {
		resp[i] = toTableResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /tables.
func (h *TableHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.engine.CreateTable(r.Context(), req.Name, middleware.ActorFromContext(r.Context()))
	if err != nil {
		writeEngineError(w, "create table", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTableResultResponse(result))
}

// Get handles GET /tables/{tid}.
func (h *TableHandler) Get(w http.ResponseWriter, r *http.Request) {
	tableID, ok := parseUUIDParam(r, "tid")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	detail, err := h.engine.GetTableDetail(r.Context(), tableID)
	if err != nil {
		writeEngineError(w, "get table", err)
		return
	}

	resp := tableDetailResponse{
		Table:               toTableResponse(detail.Table),
		Items:               toItemResponses(detail.Items),
		OpenItems:           toItemResponses(detail.OpenItems),
		Distributions:       make([]distributionResponse, len(detail.Distributions)),
		CurrentDistribution: detail.CurrentDistribution,
		OpenTotal:           detail.OpenTotal.StringFixed(2),
		Total:               detail.Total.StringFixed(2),
		Payments:            toPaymentResponses(detail.Payments),
	}
	if detail.Order != nil {
		o := toOrderResponse(*detail.Order)
		resp.Order = &o
	}
	for i, d := range detail.Distributions {
		resp.Distributions[i] = distributionResponse{
			Token: d.Token,
			Items: toItemResponses(d.Items),
			Total: d.Total.StringFixed(2),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /tables/{tid}.
func (h *TableHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tableID, ok := parseUUIDParam(r, "tid")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	warnings, err := h.engine.DeleteTable(r.Context(), tableID, middleware.ActorFromContext(r.Context()))
	if err != nil {
		writeEngineError(w, "delete table", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"warnings": warningsOrEmpty(warnings)})
}

// CreateOrder handles POST /tables/{tid}/orders.
func (h *TableHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	tableID, ok := parseUUIDParam(r, "tid")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	result, err := h.engine.CreateOrder(r.Context(), tableID, middleware.ActorFromContext(r.Context()))
	if err != nil {
		writeEngineError(w, "create order", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResultResponse(result))
}

// AddItem handles POST /tables/{tid}/items.
func (h *TableHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	tableID, ok := parseUUIDParam(r, "tid")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product_id"})
		return
	}

	svcReq := service.AddItemRequest{
		TableID:   tableID,
		ProductID: productID,
		Quantity:  req.Quantity,
		Actor:     middleware.ActorFromContext(r.Context()),
	}
	if req.VariantID != nil && *req.VariantID != "" {
		variantID, err := uuid.Parse(*req.VariantID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid variant_id"})
			return
		}
		svcReq.VariantID = &variantID
	}

	result, err := h.engine.AddItem(r.Context(), svcReq)
	if err != nil {
		writeEngineError(w, "add item", err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemResultResponse(result))
}

// Reconcile handles POST /tables/{tid}/reconcile.
func (h *TableHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	tableID, ok := parseUUIDParam(r, "tid")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	result, err := h.engine.ReconcileTable(r.Context(), tableID, middleware.ActorFromContext(r.Context()))
	if err != nil {
		writeEngineError(w, "reconcile table", err)
		return
	}
	writeJSON(w, http.StatusOK, toTableResultResponse(result))
}

// ReconcileAll handles POST /tables/reconcile.
func (h *TableHandler) ReconcileAll(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.ReconcileAllTables(r.Context(), middleware.ActorFromContext(r.Context()))
	if err != nil {
		writeEngineError(w, "reconcile tables", err)
		return
	}

	resp := reconcileReportResponse{
		Checked:   report.Checked,
		Corrected: make([]tableResponse, len(report.Corrected)),
		Warnings:  warningsOrEmpty(report.Warnings),
	}
	for i, t := range report.Corrected {
		resp.Corrected[i] = toTableResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func toTableResultResponse(result *service.TableResult) tableResultResponse {
	return tableResultResponse{
		Table:    toTableResponse(result.Table),
		Changed:  result.Changed,
		Warnings: warningsOrEmpty(result.Warnings),
	}
}

func toOrderResultResponse(result *service.OrderResult) orderResultResponse {
	resp := orderResultResponse{
		Order:    toOrderResponse(result.Order),
		Warnings: warningsOrEmpty(result.Warnings),
	}
	if result.Table != nil {
		t := toTableResponse(*result.Table)
		resp.Table = &t
	}
	return resp
}

func toItemResultResponse(result *service.ItemResult) itemResultResponse {
	return itemResultResponse{
		Item:           toItemResponse(result.Item),
		Order:          toOrderResponse(result.Order),
		OrderCreated:   result.OrderCreated,
		OrderCompleted: result.OrderCompleted,
		Warnings:       warningsOrEmpty(result.Warnings),
	}
}
