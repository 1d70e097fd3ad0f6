package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/masapos/api/internal/activity"
	"github.com/masapos/api/internal/middleware"
	"github.com/masapos/api/internal/service"
)

// ItemEngine defines the engine methods needed by item handlers.
// Satisfied by *service.Engine; narrow interface for testability.
type ItemEngine interface {
	RemoveItem(ctx context.Context, itemID uuid.UUID, actor activity.Actor) (*service.ItemResult, error)
	CompleteItem(ctx context.Context, itemID uuid.UUID, actor activity.Actor) (*service.ItemResult, error)
	AssignItem(ctx context.Context, itemID uuid.UUID, token *string, actor activity.Actor) (*service.ItemResult, error)
}

// ItemHandler handles order item endpoints.
type ItemHandler struct {
	engine ItemEngine
}

// NewItemHandler creates a new ItemHandler.
func NewItemHandler(engine ItemEngine) *ItemHandler {
	return &ItemHandler{engine: engine}
}

// RegisterRoutes registers item endpoints on the given Chi router.
// Expected to be mounted at /items.
func (h *ItemHandler) RegisterRoutes(r chi.Router) {
	r.Delete("/{id}", h.Remove)
	r.Post("/{id}/complete", h.Complete)
	r.Put("/{id}/assignment", h.Assign)
}

type assignItemRequest struct {
	// AssignedTo is a distribution token, or null to move the item back to
	// the open bucket.
	AssignedTo *string `json:"assigned_to"`
}

// Remove handles DELETE /items/{id}. The row is kept with status cancelled.
func (h *ItemHandler) Remove(w http.ResponseWriter, r *http.Request) {
	itemID, ok := parseUUIDParam(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	result, err := h.engine.RemoveItem(r.Context(), itemID, middleware.ActorFromContext(r.Context()))
	if err != nil {
		writeEngineError(w, "remove item", err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResultResponse(result))
}

// Complete handles POST /items/{id}/complete.
func (h *ItemHandler) Complete(w http.ResponseWriter, r *http.Request) {
	itemID, ok := parseUUIDParam(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	result, err := h.engine.CompleteItem(r.Context(), itemID, middleware.ActorFromContext(r.Context()))
	if err != nil {
		writeEngineError(w, "complete item", err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResultResponse(result))
}

// Assign handles PUT /items/{id}/assignment.
func (h *ItemHandler) Assign(w http.ResponseWriter, r *http.Request) {
	itemID, ok := parseUUIDParam(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	var req assignItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.engine.AssignItem(r.Context(), itemID, req.AssignedTo, middleware.ActorFromContext(r.Context()))
	if err != nil {
		writeEngineError(w, "assign item", err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResultResponse(result))
}
