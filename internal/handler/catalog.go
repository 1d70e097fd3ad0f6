package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/masapos/api/internal/database"
	"github.com/sirupsen/logrus"
)

// CatalogStore defines the database methods needed by catalog handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type CatalogStore interface {
	ListCategories(ctx context.Context) ([]database.Category, error)
	ListProducts(ctx context.Context, categoryID pgtype.UUID) ([]database.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	ListVariantsByProduct(ctx context.Context, productID uuid.UUID) ([]database.ProductVariant, error)
}

// CatalogHandler serves the read-only product catalog.
type CatalogHandler struct {
	store CatalogStore
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(store CatalogStore) *CatalogHandler {
	return &CatalogHandler{store: store}
}

// RegisterRoutes registers catalog endpoints on the given Chi router.
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Get("/categories", h.ListCategories)
	r.Get("/products", h.ListProducts)
	r.Get("/products/{pid}/variants", h.ListVariants)
}

// --- Response types ---

type categoryResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	ParentID  *string   `json:"parent_id"`
	CreatedAt time.Time `json:"created_at"`
}

type productResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Price      string    `json:"price"`
	CategoryID *string   `json:"category_id"`
	IsWeighted bool      `json:"is_weighted"`
	CreatedAt  time.Time `json:"created_at"`
}

type variantResponse struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Price     string    `json:"price"`
}

// --- Handlers ---

// ListCategories handles GET /categories.
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		logrus.WithError(err).Error("list categories failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]categoryResponse, len(categories))
	for i, c := range categories {
		resp[i] = categoryResponse{
			ID:        c.ID,
			Name:      c.Name,
			ParentID:  uuidToString(c.ParentID),
			CreatedAt: c.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListProducts handles GET /products, optionally filtered by ?category_id=.
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	var categoryID pgtype.UUID
	if s := r.URL.Query().Get("category_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid category_id"})
			return
		}
		categoryID = pgtype.UUID{Bytes: id, Valid: true}
	}

	products, err := h.store.ListProducts(r.Context(), categoryID)
	if err != nil {
		logrus.WithError(err).Error("list products failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = productResponse{
			ID:         p.ID,
			Name:       p.Name,
			Price:      numericToString(p.Price),
			CategoryID: uuidToString(p.CategoryID),
			IsWeighted: p.IsWeighted,
			CreatedAt:  p.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListVariants handles GET /products/{pid}/variants.
func (h *CatalogHandler) ListVariants(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseUUIDParam(r, "pid")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	if _, err := h.store.GetProduct(r.Context(), productID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		logrus.WithError(err).Error("get product failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	variants, err := h.store.ListVariantsByProduct(r.Context(), productID)
	if err != nil {
		logrus.WithError(err).Error("list variants failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]variantResponse, len(variants))
	for i, v := range variants {
		resp[i] = variantResponse{
			ID:        v.ID,
			ProductID: v.ProductID,
			Name:      v.Name,
			Price:     numericToString(v.Price),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
