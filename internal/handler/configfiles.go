package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/masapos/api/internal/filestore"
	"github.com/sirupsen/logrus"
)

// SnapshotStore persists whole-file JSON snapshots.
// Satisfied by *filestore.Store.
type SnapshotStore interface {
	Replace(name string, v any) error
	Load(name string, v any) error
}

// ConfigFileHandler saves and serves the categories, products and tables
// snapshot files edited from the management pages.
type ConfigFileHandler struct {
	files SnapshotStore
}

// NewConfigFileHandler creates a new ConfigFileHandler.
func NewConfigFileHandler(files SnapshotStore) *ConfigFileHandler {
	return &ConfigFileHandler{files: files}
}

// RegisterRoutes registers config file endpoints.
// Expected to be mounted at /api.
func (h *ConfigFileHandler) RegisterRoutes(r chi.Router) {
	r.Post("/save-categories", h.SaveCategories)
	r.Post("/save-products", h.SaveProducts)
	r.Post("/save-tables", h.SaveTables)
	r.Get("/data/{name}", h.Get)
}

type saveResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SaveCategories handles POST /api/save-categories.
func (h *ConfigFileHandler) SaveCategories(w http.ResponseWriter, r *http.Request) {
	var records []filestore.CategoryRecord
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		writeJSON(w, http.StatusBadRequest, saveResponse{Message: "invalid request body"})
		return
	}
	h.save(w, filestore.Categories, records)
}

// SaveProducts handles POST /api/save-products.
func (h *ConfigFileHandler) SaveProducts(w http.ResponseWriter, r *http.Request) {
	var records []filestore.ProductRecord
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		writeJSON(w, http.StatusBadRequest, saveResponse{Message: "invalid request body"})
		return
	}
	h.save(w, filestore.Products, records)
}

// SaveTables handles POST /api/save-tables.
func (h *ConfigFileHandler) SaveTables(w http.ResponseWriter, r *http.Request) {
	var records []filestore.TableRecord
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		writeJSON(w, http.StatusBadRequest, saveResponse{Message: "invalid request body"})
		return
	}
	h.save(w, filestore.Tables, records)
}

// Get handles GET /api/data/{name} and returns the saved snapshot as-is.
func (h *ConfigFileHandler) Get(w http.ResponseWriter, r *http.Request) {
	var v json.RawMessage
	err := h.files.Load(chi.URLParam(r, "name"), &v)
	if err != nil {
		switch {
		case errors.Is(err, filestore.ErrUnknownSnapshot), errors.Is(err, filestore.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "snapshot not found"})
		default:
			logrus.WithError(err).Error("load snapshot failed")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *ConfigFileHandler) save(w http.ResponseWriter, name string, v any) {
	if err := h.files.Replace(name, v); err != nil {
		logrus.WithError(err).WithField("snapshot", name).Error("save snapshot failed")
		writeJSON(w, http.StatusInternalServerError, saveResponse{Message: name + " could not be saved"})
		return
	}
	writeJSON(w, http.StatusOK, saveResponse{Success: true, Message: name + " saved"})
}
