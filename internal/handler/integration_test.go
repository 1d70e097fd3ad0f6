//go:build integration

package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/masapos/api/internal/activity"
	"github.com/masapos/api/internal/catalog"
	"github.com/masapos/api/internal/config"
	"github.com/masapos/api/internal/database"
	"github.com/masapos/api/internal/events"
	"github.com/masapos/api/internal/filestore"
	"github.com/masapos/api/internal/router"
	"github.com/masapos/api/internal/service"
	"github.com/masapos/api/internal/ws"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestIntegrationFlow drives a table through ordering, a split payment and
// settlement against a real PostgreSQL database.
func TestIntegrationFlow(t *testing.T) {
	ctx := context.Background()

	connStr, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	runMigrations(t, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	cfg := &config.Config{
		JWTSecret:   "integration-test-secret",
		CORSOrigins: []string{"http://localhost:5173"},
	}
	queries := database.New(pool)
	hub := ws.NewHub()
	// Hub has no shutdown; the goroutine ends with the test binary.
	go hub.Run()

	recorder := activity.NewRecorder(queries, 100)
	engine := service.NewEngine(
		pool,
		func(db database.DBTX) service.EngineStore { return database.New(db) },
		catalog.NewResolver(queries),
		recorder,
		events.Multi{events.NewHubPublisher(hub)},
	)

	server := httptest.NewServer(router.New(cfg, router.Deps{
		Queries:  queries,
		Engine:   engine,
		Recorder: recorder,
		Files:    filestore.New(t.TempDir()),
		Hub:      hub,
	}))
	defer server.Close()

	teaID, toastID := seedCatalog(t, ctx, queries)
	token := login(t, server)

	// --- 1. Create a table ---
	tableResp := httpJSON(t, server, "POST", "/tables", map[string]interface{}{"name": "Masa 1"}, token, http.StatusCreated)
	table := tableResp["table"].(map[string]interface{})
	tableID := table["id"].(string)
	if table["status"] != "available" {
		t.Fatalf("new table status: got %v, want available", table["status"])
	}

	// --- 2. First item opens the order and occupies the table ---
	first := httpJSON(t, server, "POST", "/tables/"+tableID+"/items", map[string]interface{}{"product_id": teaID.String()}, token, http.StatusCreated)
	if first["order_created"] != true {
		t.Fatalf("expected order to be created by first item")
	}
	orderID := first["order"].(map[string]interface{})["id"].(string)
	teaItemID := first["item"].(map[string]interface{})["id"].(string)
	assertTableStatus(t, server, tableID, token, "occupied")

	// --- 3. Second item joins the same order ---
	second := httpJSON(t, server, "POST", "/tables/"+tableID+"/items", map[string]interface{}{"product_id": toastID.String()}, token, http.StatusCreated)
	if second["order_created"] != false || second["order"].(map[string]interface{})["id"] != orderID {
		t.Fatalf("second item should join the active order: %v", second)
	}
	toastItem := second["item"].(map[string]interface{})
	if toastItem["name"] != "Tost (Kaşarlı)" || toastItem["price"] != "60.00" {
		t.Errorf("variant snapshot: got %v", toastItem)
	}

	// --- 4. Split: tea goes to a distribution and is paid on its own ---
	dist := httpJSON(t, server, "POST", "/orders/"+orderID+"/distributions", nil, token, http.StatusCreated)
	distToken := dist["token"].(string)
	httpJSON(t, server, "PUT", "/items/"+teaItemID+"/assignment", map[string]interface{}{"assigned_to": distToken}, token, http.StatusOK)

	groupPay := httpJSON(t, server, "POST", "/orders/"+orderID+"/distributions/"+distToken+"/payments",
		map[string]interface{}{"amount": "15.00", "method": "cash"}, token, http.StatusCreated)
	if groupPay["order_completed"] != false {
		t.Fatalf("order should stay active while toast is open")
	}
	assertTableStatus(t, server, tableID, token, "occupied")

	// --- 5. Paying the rest completes the order and frees the table ---
	rest := httpJSON(t, server, "POST", "/orders/"+orderID+"/payments",
		map[string]interface{}{"amount": "60.00", "method": "credit_card"}, token, http.StatusCreated)
	if rest["order_completed"] != true {
		t.Fatalf("expected order to complete after final payment: %v", rest)
	}
	assertTableStatus(t, server, tableID, token, "available")

	order := httpJSON(t, server, "GET", "/orders/"+orderID, nil, token, http.StatusOK)
	for _, it := range order["items"].([]interface{}) {
		item := it.(map[string]interface{})
		if item["status"] != "completed" || item["method"] == nil {
			t.Errorf("item not settled with method: %v", item)
		}
	}

	// --- 6. Payments are folded into today's sales report ---
	today := time.Now().UTC().Format("2006-01-02")
	report := httpJSON(t, server, "GET", "/sales-reports/"+today, nil, token, http.StatusOK)
	if report["total_sales"] != "75.00" || report["cash_sales"] != "15.00" || report["credit_card_sales"] != "60.00" {
		t.Errorf("sales report: got %v", report)
	}
	if report["total_orders"] != float64(2) {
		t.Errorf("total_orders: got %v, want 2", report["total_orders"])
	}

	logs := httpJSONList(t, server, "/activity-logs?order_id="+orderID, token)
	if len(logs) == 0 {
		t.Error("expected activity logs for the order")
	}

	// --- 7. Concurrent first items on a fresh table share one order ---
	busy := httpJSON(t, server, "POST", "/tables", map[string]interface{}{"name": "Masa 2"}, token, http.StatusCreated)
	busyID := uuid.MustParse(busy["table"].(map[string]interface{})["id"].(string))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := engine.AddItem(ctx, service.AddItemRequest{TableID: busyID, ProductID: teaID}); err != nil {
				t.Errorf("concurrent add item: %v", err)
			}
		}()
	}
	wg.Wait()

	var active int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM orders WHERE table_id = $1 AND status = 'active'`, busyID).Scan(&active); err != nil {
		t.Fatalf("count active orders: %v", err)
	}
	if active != 1 {
		t.Errorf("active orders on table: got %d, want 1", active)
	}
	var items int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM order_items oi JOIN orders o ON o.id = oi.order_id WHERE o.table_id = $1`, busyID).Scan(&items); err != nil {
		t.Fatalf("count items: %v", err)
	}
	if items != 5 {
		t.Errorf("items on table: got %d, want 5", items)
	}

	// --- 8. A sweep finds nothing to correct ---
	sweep := httpJSON(t, server, "POST", "/tables/reconcile", nil, token, http.StatusOK)
	if len(sweep["corrected"].([]interface{})) != 0 {
		t.Errorf("expected no corrections, got %v", sweep["corrected"])
	}
}

// --- Setup helpers ---

func setupPostgresContainer(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("pos_test"),
		tcpostgres.WithUsername("pos"),
		tcpostgres.WithPassword("pos"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	cleanup := func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}

	return connStr, cleanup
}

func runMigrations(t *testing.T, connStr string) {
	t.Helper()

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("open db for migrations: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		t.Fatalf("create migrate driver: %v", err)
	}

	// Go test sets cwd to the package directory.
	m, err := migrate.NewWithDatabaseInstance("file://../database/migrations", "postgres", driver)
	if err != nil {
		t.Fatalf("create migrate instance: %v", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("run migrations: %v", err)
	}
}

func seedCatalog(t *testing.T, ctx context.Context, q *database.Queries) (teaID, toastID uuid.UUID) {
	t.Helper()

	drinks, err := q.InsertCategory(ctx, database.InsertCategoryParams{ID: uuid.New(), Name: "İçecekler"})
	if err != nil {
		t.Fatalf("insert category: %v", err)
	}
	category := pgtype.UUID{Bytes: drinks.ID, Valid: true}

	tea, err := q.InsertProduct(ctx, database.InsertProductParams{
		ID: uuid.New(), Name: "Çay", Price: catalog.DecimalToNumeric(decimal.NewFromInt(15)), CategoryID: category,
	})
	if err != nil {
		t.Fatalf("insert tea: %v", err)
	}

	toast, err := q.InsertProduct(ctx, database.InsertProductParams{
		ID: uuid.New(), Name: "Tost", Price: catalog.DecimalToNumeric(decimal.NewFromInt(50)),
	})
	if err != nil {
		t.Fatalf("insert toast: %v", err)
	}
	if _, err := q.InsertProductVariant(ctx, database.InsertProductVariantParams{
		ProductID: toast.ID, Name: "Kaşarlı", Price: catalog.DecimalToNumeric(decimal.NewFromInt(60)),
	}); err != nil {
		t.Fatalf("insert variant: %v", err)
	}

	return tea.ID, toast.ID
}

func login(t *testing.T, server *httptest.Server) string {
	t.Helper()
	resp := httpJSON(t, server, "POST", "/auth/login", map[string]interface{}{"username": "kasa", "password": "1234"}, "", http.StatusOK)
	return resp["access_token"].(string)
}

func assertTableStatus(t *testing.T, server *httptest.Server, tableID, token, want string) {
	t.Helper()
	detail := httpJSON(t, server, "GET", "/tables/"+tableID, nil, token, http.StatusOK)
	if got := detail["table"].(map[string]interface{})["status"]; got != want {
		t.Fatalf("table status: got %v, want %s", got, want)
	}
}

// --- HTTP helpers ---

func doHTTP(t *testing.T, server *httptest.Server, method, path string, body map[string]interface{}, token string) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func httpJSON(t *testing.T, server *httptest.Server, method, path string, body map[string]interface{}, token string, want int) map[string]interface{} {
	t.Helper()
	resp := doHTTP(t, server, method, path, body, token)
	defer resp.Body.Close()

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("%s %s: decode response: %v", method, path, err)
	}
	if resp.StatusCode != want {
		t.Fatalf("%s %s: status %d, want %d, body: %v", method, path, resp.StatusCode, want, result)
	}
	return result
}

func httpJSONList(t *testing.T, server *httptest.Server, path, token string) []interface{} {
	t.Helper()
	resp := doHTTP(t, server, "GET", path, nil, token)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", path, resp.StatusCode)
	}
	var result []interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(fmt.Errorf("GET %s: decode response: %w", path, err))
	}
	return result
}
