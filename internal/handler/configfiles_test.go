package handler_test

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/masapos/api/internal/filestore"
	"github.com/masapos/api/internal/handler"
)

func configFileRouter(t *testing.T) (*chi.Mux, *filestore.Store) {
	files := filestore.New(t.TempDir())
	h := handler.NewConfigFileHandler(files)
	return newRouter(func(r chi.Router) {
		r.Route("/api", h.RegisterRoutes)
	}), files
}

func TestSaveProducts(t *testing.T) {
	router, files := configFileRouter(t)

	rr := doRequest(t, router, "POST", "/api/save-products", `[
		{"id":"1","name":"Çay","price":15,"categoryId":"c1","isWeighted":false},
		{"id":"2","name":"Peynir","price":120.5,"categoryId":null,"isWeighted":true}
	]`)
	assertStatus(t, rr, http.StatusOK)

	var resp map[string]interface{}
	decodeBody(t, rr, &resp)
	if resp["success"] != true {
		t.Errorf("success: got %v", resp)
	}

	var saved []filestore.ProductRecord
	if err := files.Load(filestore.Products, &saved); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(saved) != 2 || saved[1].Price.String() != "120.5" || saved[1].CategoryID != nil {
		t.Errorf("saved: got %+v", saved)
	}
}

func TestSaveTables_ThenGet(t *testing.T) {
	router, _ := configFileRouter(t)

	assertStatus(t, doRequest(t, router, "POST", "/api/save-tables", `[{"id":"1","name":"Masa 1","status":"available"}]`), http.StatusOK)

	rr := doRequest(t, router, "GET", "/api/data/tables", nil)
	assertStatus(t, rr, http.StatusOK)
	var tables []map[string]interface{}
	decodeBody(t, rr, &tables)
	if len(tables) != 1 || tables[0]["name"] != "Masa 1" {
		t.Errorf("tables: got %v", tables)
	}
}

func TestSaveCategories_InvalidBody(t *testing.T) {
	router, _ := configFileRouter(t)

	rr := doRequest(t, router, "POST", "/api/save-categories", `{"id":"1"}`)
	assertStatus(t, rr, http.StatusBadRequest)

	var resp map[string]interface{}
	decodeBody(t, rr, &resp)
	if resp["success"] != false {
		t.Errorf("success: got %v", resp["success"])
	}
}

func TestGetSnapshot_NotFound(t *testing.T) {
	router, _ := configFileRouter(t)
	assertStatus(t, doRequest(t, router, "GET", "/api/data/categories", nil), http.StatusNotFound)
	assertStatus(t, doRequest(t, router, "GET", "/api/data/orders", nil), http.StatusNotFound)
}
