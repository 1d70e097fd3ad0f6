package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/masapos/api/internal/activity"
	"github.com/masapos/api/internal/catalog"
	"github.com/masapos/api/internal/database"
	"github.com/masapos/api/internal/events"
	"github.com/shopspring/decimal"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr   error
	rollbackErr error
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error          { return m.commitErr }
func (m *mockTx) Rollback(ctx context.Context) error        { return m.rollbackErr }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx     pgx.Tx
	err    error
	begins int
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	m.begins++
	return m.tx, m.err
}

// memStore is an in-memory EngineStore. Writes apply immediately; the
// mockTx commit/rollback do not undo them.
type memStore struct {
	mu       sync.Mutex
	clock    time.Time
	tables   map[uuid.UUID]database.Table
	orders   []database.Order
	items    []database.OrderItem
	payments []database.Payment

	// fail injects an error for the named method.
	fail map[string]error
	// lostTableWrites makes the next n UpdateTableStatus calls report
	// success without persisting.
	lostTableWrites int
	// locks records FOR UPDATE reads in call order as "table" or "order".
	locks []string
	// afterActiveOrderRead runs after GetActiveOrderByTable returns an
	// order, standing in for a concurrent transaction that commits there.
	afterActiveOrderRead func(database.Order)
}

func newMemStore() *memStore {
	return &memStore{
		clock:  time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		tables: make(map[uuid.UUID]database.Table),
		fail:   make(map[string]error),
	}
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) addTable(name string, status database.TableStatus) database.Table {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := database.Table{ID: uuid.New(), Name: name, Status: status, CreatedAt: m.tick()}
	m.tables[t.ID] = t
	return t
}

func (m *memStore) table(id uuid.UUID) database.Table {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tables[id]
}

func (m *memStore) order(id uuid.UUID) database.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ID == id {
			return o
		}
	}
	return database.Order{}
}

func (m *memStore) item(id uuid.UUID) database.OrderItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if it.ID == id {
			return it
		}
	}
	return database.OrderItem{}
}

func (m *memStore) CreateTable(ctx context.Context, name string) (database.Table, error) {
	if err := m.fail["CreateTable"]; err != nil {
		return database.Table{}, err
	}
	return m.addTable(name, database.TableStatusAvailable), nil
}

func (m *memStore) DeleteTable(ctx context.Context, id uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[id]; !ok {
		return 0, nil
	}
	delete(m.tables, id)
	return 1, nil
}

func (m *memStore) GetTable(ctx context.Context, id uuid.UUID) (database.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[id]
	if !ok {
		return database.Table{}, pgx.ErrNoRows
	}
	return t, nil
}

func (m *memStore) GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.Table, error) {
	m.recordLock("table")
	return m.GetTable(ctx, id)
}

func (m *memStore) recordLock(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks = append(m.locks, kind)
}

func (m *memStore) setOrderStatus(id uuid.UUID, status database.OrderStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.orders {
		if m.orders[i].ID == id {
			m.orders[i].Status = status
		}
	}
}

func (m *memStore) ListTables(ctx context.Context) ([]database.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.Table
	for _, t := range m.tables {
		out = append(out, t)
	}
	return out, nil
}

func (m *memStore) ListTablesByStatus(ctx context.Context, status database.TableStatus) ([]database.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.Table
	for _, t := range m.tables {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.Table, error) {
	if err := m.fail["UpdateTableStatus"]; err != nil {
		return database.Table{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[arg.ID]
	if !ok {
		return database.Table{}, pgx.ErrNoRows
	}
	t.Status = arg.Status
	t.UpdatedAt = m.tick()
	if m.lostTableWrites > 0 {
		m.lostTableWrites--
		return t, nil
	}
	m.tables[arg.ID] = t
	return t, nil
}

func (m *memStore) CreateOrder(ctx context.Context, tableID uuid.UUID) (database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.TableID == tableID && o.Status == database.OrderStatusActive {
			return database.Order{}, &pgconn.PgError{Code: "23505", ConstraintName: "orders_one_active_per_table"}
		}
	}
	now := m.tick()
	o := database.Order{ID: uuid.New(), TableID: tableID, Status: database.OrderStatusActive, CreatedAt: now, UpdatedAt: now}
	m.orders = append(m.orders, o)
	return o, nil
}

func (m *memStore) GetActiveOrderByTable(ctx context.Context, tableID uuid.UUID) (database.Order, error) {
	order, err := m.activeOrder(tableID)
	if err == nil && m.afterActiveOrderRead != nil {
		m.afterActiveOrderRead(order)
	}
	return order, err
}

func (m *memStore) activeOrder(tableID uuid.UUID) (database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.TableID == tableID && o.Status == database.OrderStatusActive {
			return o, nil
		}
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *memStore) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *memStore) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error) {
	m.recordLock("order")
	return m.GetOrder(ctx, id)
}

func (m *memStore) ListOrdersByTable(ctx context.Context, tableID uuid.UUID) ([]database.Order, error) {
	if err := m.fail["ListOrdersByTable"]; err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.Order
	for _, o := range m.orders {
		if o.TableID == tableID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	if err := m.fail["UpdateOrderStatus"]; err != nil {
		return database.Order{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, o := range m.orders {
		if o.ID == arg.ID {
			m.orders[i].Status = arg.Status
			m.orders[i].UpdatedAt = m.tick()
			return m.orders[i], nil
		}
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *memStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	if err := m.fail["CreateOrderItem"]; err != nil {
		return database.OrderItem{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.tick()
	it := database.OrderItem{
		ID:        uuid.New(),
		OrderID:   arg.OrderID,
		ProductID: arg.ProductID,
		VariantID: arg.VariantID,
		Name:      arg.Name,
		Quantity:  arg.Quantity,
		Price:     arg.Price,
		Status:    database.OrderItemStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.items = append(m.items, it)
	return it, nil
}

func (m *memStore) GetOrderItem(ctx context.Context, id uuid.UUID) (database.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if it.ID == id {
			return it, nil
		}
	}
	return database.OrderItem{}, pgx.ErrNoRows
}

func (m *memStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.OrderItem
	for _, it := range m.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memStore) ListActiveOrderItemsByAssignment(ctx context.Context, arg database.ListActiveOrderItemsByAssignmentParams) ([]database.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.OrderItem
	for _, it := range m.items {
		if it.OrderID == arg.OrderID && it.Status == database.OrderItemStatusActive &&
			it.AssignedTo.Valid && it.AssignedTo.String == arg.AssignedTo {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memStore) CountActiveOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, it := range m.items {
		if it.OrderID == orderID && it.Status == database.OrderItemStatusActive {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CancelActiveOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i, it := range m.items {
		if it.OrderID == orderID && it.Status == database.OrderItemStatusActive {
			m.items[i].Status = database.OrderItemStatusCancelled
			n++
		}
	}
	return n, nil
}

func (m *memStore) updateItem(id uuid.UUID, fn func(*database.OrderItem)) (database.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id {
			fn(&m.items[i])
			m.items[i].UpdatedAt = m.tick()
			return m.items[i], nil
		}
	}
	return database.OrderItem{}, pgx.ErrNoRows
}

func (m *memStore) UpdateOrderItemStatus(ctx context.Context, arg database.UpdateOrderItemStatusParams) (database.OrderItem, error) {
	return m.updateItem(arg.ID, func(it *database.OrderItem) { it.Status = arg.Status })
}

func (m *memStore) UpdateOrderItemAssignment(ctx context.Context, arg database.UpdateOrderItemAssignmentParams) (database.OrderItem, error) {
	return m.updateItem(arg.ID, func(it *database.OrderItem) { it.AssignedTo = arg.AssignedTo })
}

func (m *memStore) UpdateOrderItemMethod(ctx context.Context, arg database.UpdateOrderItemMethodParams) (database.OrderItem, error) {
	if err := m.fail["UpdateOrderItemMethod"]; err != nil {
		return database.OrderItem{}, err
	}
	return m.updateItem(arg.ID, func(it *database.OrderItem) { it.Method = arg.Method })
}

func (m *memStore) CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
	if err := m.fail["CreatePayment"]; err != nil {
		return database.Payment{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.tick()
	p := database.Payment{ID: uuid.New(), OrderID: arg.OrderID, Amount: arg.Amount, Method: arg.Method, CreatedAt: now, UpdatedAt: now}
	m.payments = append(m.payments, p)
	return p, nil
}

func (m *memStore) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.Payment
	for _, p := range m.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

// mockCatalog implements Catalog.
type mockCatalog struct {
	products map[uuid.UUID]catalog.Product
	variants map[uuid.UUID][]catalog.Variant
}

func (m *mockCatalog) GetProduct(ctx context.Context, id uuid.UUID) (catalog.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

func (m *mockCatalog) GetVariants(ctx context.Context, productID uuid.UUID) ([]catalog.Variant, error) {
	return m.variants[productID], nil
}

// mockRecorder implements Recorder.
type mockRecorder struct {
	logs       []activity.Entry
	payments   []activity.PaymentEntry
	logErr     error
	paymentErr error
}

func (m *mockRecorder) Log(ctx context.Context, e activity.Entry) error {
	if m.logErr != nil {
		return m.logErr
	}
	m.logs = append(m.logs, e)
	return nil
}

func (m *mockRecorder) LogPayment(ctx context.Context, p activity.PaymentEntry) error {
	if m.paymentErr != nil {
		return m.paymentErr
	}
	m.payments = append(m.payments, p)
	return nil
}

func (m *mockRecorder) count(op string) int {
	n := 0
	for _, e := range m.logs {
		if e.Operation == op {
			n++
		}
	}
	return n
}

// mockPublisher implements events.Publisher.
type mockPublisher struct {
	events []events.Event
	err    error
}

func (m *mockPublisher) Publish(ctx context.Context, e events.Event) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, e)
	return nil
}

// --- Test helpers ---

type testEnv struct {
	engine    *Engine
	store     *memStore
	pool      *mockTxBeginner
	tx        *mockTx
	catalog   *mockCatalog
	recorder  *mockRecorder
	publisher *mockPublisher
	actor     activity.Actor
}

func newTestEnv() *testEnv {
	store := newMemStore()
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	cat := &mockCatalog{products: map[uuid.UUID]catalog.Product{}, variants: map[uuid.UUID][]catalog.Variant{}}
	rec := &mockRecorder{}
	pub := &mockPublisher{}
	newStore := func(db database.DBTX) EngineStore { return store }
	return &testEnv{
		engine:    NewEngine(pool, newStore, cat, rec, pub),
		store:     store,
		pool:      pool,
		tx:        tx,
		catalog:   cat,
		recorder:  rec,
		publisher: pub,
		actor:     activity.Actor{UserID: "u1", UserName: "Ayşe"},
	}
}

func (e *testEnv) addProduct(name, price string) uuid.UUID {
	id := uuid.New()
	e.catalog.products[id] = catalog.Product{ID: id, Name: name, Price: decimal.RequireFromString(price)}
	return id
}

func (e *testEnv) addItem(t *testing.T, tableID, productID uuid.UUID) *ItemResult {
	t.Helper()
	res, err := e.engine.AddItem(context.Background(), AddItemRequest{
		TableID:   tableID,
		ProductID: productID,
		Actor:     e.actor,
	})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	return res
}

// assertInvariant checks occupied <=> has an active order for every table.
func assertInvariant(t *testing.T, store *memStore) {
	t.Helper()
	store.mu.Lock()
	defer store.mu.Unlock()
	for id, table := range store.tables {
		active := false
		for _, o := range store.orders {
			if o.TableID == id && o.Status == database.OrderStatusActive {
				active = true
			}
		}
		want := database.TableStatusAvailable
		if active {
			want = database.TableStatusOccupied
		}
		if table.Status != want {
			t.Errorf("table %s: status %s, want %s", table.Name, table.Status, want)
		}
	}
}

func strPtr(s string) *string { return &s }
