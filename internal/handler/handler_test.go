package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/masapos/api/internal/activity"
	"github.com/masapos/api/internal/auth"
	"github.com/masapos/api/internal/catalog"
	"github.com/masapos/api/internal/database"
	"github.com/masapos/api/internal/middleware"
	"github.com/masapos/api/internal/service"
	"github.com/shopspring/decimal"
)

// --- Mock engine ---

// mockEngine satisfies TableEngine, OrderEngine and ItemEngine. Unset
// functions fail the test when called.
type mockEngine struct {
	t *testing.T

	createTableFn        func(ctx context.Context, name string, actor activity.Actor) (*service.TableResult, error)
	deleteTableFn        func(ctx context.Context, tableID uuid.UUID, actor activity.Actor) ([]string, error)
	listTablesFn         func(ctx context.Context) ([]database.Table, error)
	listTablesByStatusFn func(ctx context.Context, status database.TableStatus) ([]database.Table, error)
	getTableDetailFn     func(ctx context.Context, tableID uuid.UUID) (*service.TableDetail, error)
	reconcileFn          func(ctx context.Context, tableID uuid.UUID, actor activity.Actor) (*service.TableResult, error)
	reconcileAllFn       func(ctx context.Context, actor activity.Actor) (*service.ReconcileReport, error)
	createOrderFn        func(ctx context.Context, tableID uuid.UUID, actor activity.Actor) (*service.OrderResult, error)
	addItemFn            func(ctx context.Context, req service.AddItemRequest) (*service.ItemResult, error)

	getOrderFn        func(ctx context.Context, orderID uuid.UUID) (*service.OrderDetail, error)
	completeOrderFn   func(ctx context.Context, orderID uuid.UUID, actor activity.Actor) (*service.OrderResult, error)
	cancelOrderFn     func(ctx context.Context, orderID uuid.UUID, actor activity.Actor) (*service.OrderResult, error)
	newDistributionFn func(ctx context.Context, orderID uuid.UUID) (string, error)
	payOrderFn        func(ctx context.Context, req service.PayOrderRequest) (*service.PaymentResult, error)
	payGroupFn        func(ctx context.Context, req service.PayGroupRequest) (*service.PaymentResult, error)
	listPaymentsFn    func(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)

	removeItemFn   func(ctx context.Context, itemID uuid.UUID, actor activity.Actor) (*service.ItemResult, error)
	completeItemFn func(ctx context.Context, itemID uuid.UUID, actor activity.Actor) (*service.ItemResult, error)
	assignItemFn   func(ctx context.Context, itemID uuid.UUID, token *string, actor activity.Actor) (*service.ItemResult, error)
}

func (m *mockEngine) unexpected(name string) {
	m.t.Helper()
	m.t.Fatalf("unexpected call to %s", name)
}

func (m *mockEngine) CreateTable(ctx context.Context, name string, actor activity.Actor) (*service.TableResult, error) {
	if m.createTableFn == nil {
		m.unexpected("CreateTable")
	}
	return m.createTableFn(ctx, name, actor)
}

func (m *mockEngine) DeleteTable(ctx context.Context, tableID uuid.UUID, actor activity.Actor) ([]string, error) {
	if m.deleteTableFn == nil {
		m.unexpected("DeleteTable")
	}
	return m.deleteTableFn(ctx, tableID, actor)
}

func (m *mockEngine) ListTables(ctx context.Context) ([]database.Table, error) {
	if m.listTablesFn == nil {
		m.unexpected("ListTables")
	}
	return m.listTablesFn(ctx)
}

func (m *mockEngine) ListTablesByStatus(ctx context.Context, status database.TableStatus) ([]database.Table, error) {
	if m.listTablesByStatusFn == nil {
		m.unexpected("ListTablesByStatus")
	}
	return m.listTablesByStatusFn(ctx, status)
}

func (m *mockEngine) GetTableDetail(ctx context.Context, tableID uuid.UUID) (*service.TableDetail, error) {
	if m.getTableDetailFn == nil {
		m.unexpected("GetTableDetail")
	}
	return m.getTableDetailFn(ctx, tableID)
}

func (m *mockEngine) ReconcileTable(ctx context.Context, tableID uuid.UUID, actor activity.Actor) (*service.TableResult, error) {
	if m.reconcileFn == nil {
		m.unexpected("ReconcileTable")
	}
	return m.reconcileFn(ctx, tableID, actor)
}

func (m *mockEngine) ReconcileAllTables(ctx context.Context, actor activity.Actor) (*service.ReconcileReport, error) {
	if m.reconcileAllFn == nil {
		m.unexpected("ReconcileAllTables")
	}
	return m.reconcileAllFn(ctx, actor)
}

func (m *mockEngine) CreateOrder(ctx context.Context, tableID uuid.UUID, actor activity.Actor) (*service.OrderResult, error) {
	if m.createOrderFn == nil {
		m.unexpected("CreateOrder")
	}
	return m.createOrderFn(ctx, tableID, actor)
}

func (m *mockEngine) AddItem(ctx context.Context, req service.AddItemRequest) (*service.ItemResult, error) {
	if m.addItemFn == nil {
		m.unexpected("AddItem")
	}
	return m.addItemFn(ctx, req)
}

func (m *mockEngine) GetOrder(ctx context.Context, orderID uuid.UUID) (*service.OrderDetail, error) {
	if m.getOrderFn == nil {
		m.unexpected("GetOrder")
	}
	return m.getOrderFn(ctx, orderID)
}

func (m *mockEngine) CompleteOrder(ctx context.Context, orderID uuid.UUID, actor activity.Actor) (*service.OrderResult, error) {
	if m.completeOrderFn == nil {
		m.unexpected("CompleteOrder")
	}
	return m.completeOrderFn(ctx, orderID, actor)
}

func (m *mockEngine) CancelOrder(ctx context.Context, orderID uuid.UUID, actor activity.Actor) (*service.OrderResult, error) {
	if m.cancelOrderFn == nil {
		m.unexpected("CancelOrder")
	}
	return m.cancelOrderFn(ctx, orderID, actor)
}

func (m *mockEngine) NewDistribution(ctx context.Context, orderID uuid.UUID) (string, error) {
	if m.newDistributionFn == nil {
		m.unexpected("NewDistribution")
	}
	return m.newDistributionFn(ctx, orderID)
}

func (m *mockEngine) PayOrder(ctx context.Context, req service.PayOrderRequest) (*service.PaymentResult, error) {
	if m.payOrderFn == nil {
		m.unexpected("PayOrder")
	}
	return m.payOrderFn(ctx, req)
}

func (m *mockEngine) PayGroup(ctx context.Context, req service.PayGroupRequest) (*service.PaymentResult, error) {
	if m.payGroupFn == nil {
		m.unexpected("PayGroup")
	}
	return m.payGroupFn(ctx, req)
}

func (m *mockEngine) ListPayments(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error) {
	if m.listPaymentsFn == nil {
		m.unexpected("ListPayments")
	}
	return m.listPaymentsFn(ctx, orderID)
}

func (m *mockEngine) RemoveItem(ctx context.Context, itemID uuid.UUID, actor activity.Actor) (*service.ItemResult, error) {
	if m.removeItemFn == nil {
		m.unexpected("RemoveItem")
	}
	return m.removeItemFn(ctx, itemID, actor)
}

func (m *mockEngine) CompleteItem(ctx context.Context, itemID uuid.UUID, actor activity.Actor) (*service.ItemResult, error) {
	if m.completeItemFn == nil {
		m.unexpected("CompleteItem")
	}
	return m.completeItemFn(ctx, itemID, actor)
}

func (m *mockEngine) AssignItem(ctx context.Context, itemID uuid.UUID, token *string, actor activity.Actor) (*service.ItemResult, error) {
	if m.assignItemFn == nil {
		m.unexpected("AssignItem")
	}
	return m.assignItemFn(ctx, itemID, token, actor)
}

// --- Helpers ---

var testActor = activity.Actor{UserID: "garson1", UserName: "Garson 1"}

// withActor injects claims the way the Authenticate middleware does.
func withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := middleware.WithClaims(r.Context(), &auth.Claims{UserID: testActor.UserID, UserName: testActor.UserName})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newRouter(mount func(r chi.Router)) *chi.Mux {
	r := chi.NewRouter()
	r.Use(withActor)
	mount(r)
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rr.Body.String())
	}
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status: got %d, want %d (body: %s)", rr.Code, want, rr.Body.String())
	}
}

func numeric(s string) pgtype.Numeric {
	return catalog.DecimalToNumeric(decimal.RequireFromString(s))
}

var testTime = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func testTable(status database.TableStatus) database.Table {
	return database.Table{ID: uuid.New(), Name: "Masa 4", Status: status, CreatedAt: testTime, UpdatedAt: testTime}
}

func testOrder(tableID uuid.UUID, status database.OrderStatus) database.Order {
	return database.Order{ID: uuid.New(), TableID: tableID, Status: status, CreatedAt: testTime, UpdatedAt: testTime}
}

func testItem(orderID uuid.UUID, price string, token string) database.OrderItem {
	it := database.OrderItem{
		ID:        uuid.New(),
		OrderID:   orderID,
		ProductID: uuid.New(),
		Name:      "Çay",
		Quantity:  1,
		Price:     numeric(price),
		Status:    database.OrderItemStatusActive,
		CreatedAt: testTime,
		UpdatedAt: testTime,
	}
	if token != "" {
		it.AssignedTo = pgtype.Text{String: token, Valid: true}
	}
	return it
}
