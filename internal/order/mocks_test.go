package order

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/comandaclub/comanda/internal/fault"
	"github.com/comandaclub/comanda/internal/kitchen"
	"github.com/comandaclub/comanda/internal/tables"
	"github.com/comandaclub/comanda/pkg/enums/tablestatus"
)

// MockOrderRepo is a map-backed OrderRepo honoring the version guard.
type MockOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*Order

	CreateErr error
	SaveFunc  func(ctx context.Context, order *Order) error
}

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{orders: make(map[uuid.UUID]*Order)}
}

func (m *MockOrderRepo) Create(ctx context.Context, order *Order) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *order
	cp.ModelVersion = 1
	order.ModelVersion = 1
	m.orders[order.ID] = &cp
	return nil
}

func (m *MockOrderRepo) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *order
	return &cp, nil
}

func (m *MockOrderRepo) List(ctx context.Context, filter OrderFilter) ([]*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Order
	for _, order := range m.orders {
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		if filter.TableID != nil && order.TableID != *filter.TableID {
			continue
		}
		cp := *order
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockOrderRepo) ListOpenByTable(ctx context.Context, tableID uuid.UUID) ([]*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Order
	for _, order := range m.orders {
		if order.TableID != tableID || !order.Open() {
			continue
		}
		cp := *order
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockOrderRepo) Save(ctx context.Context, order *Order) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, order)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.orders[order.ID]
	if !ok {
		return fault.ErrNotFound
	}
	if current.ModelVersion != order.ModelVersion {
		return fault.ErrVersionConflict
	}
	cp := *order
	cp.ModelVersion++
	order.ModelVersion = cp.ModelVersion
	m.orders[order.ID] = &cp
	return nil
}

func (m *MockOrderRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.orders, id)
	return nil
}

// MockOrderItemRepo is a map-backed OrderItemRepo.
type MockOrderItemRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*OrderItem

	CreateErr error
}

func NewMockOrderItemRepo() *MockOrderItemRepo {
	return &MockOrderItemRepo{items: make(map[uuid.UUID]*OrderItem)}
}

func (m *MockOrderItemRepo) Create(ctx context.Context, item *OrderItem) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *MockOrderItemRepo) Get(ctx context.Context, id uuid.UUID) (*OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	cp := *item
	return &cp, nil
}

func (m *MockOrderItemRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*OrderItem
	for _, item := range m.items {
		if item.OrderID != orderID {
			continue
		}
		cp := *item
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockOrderItemRepo) Save(ctx context.Context, item *OrderItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; !ok {
		return fault.ErrNotFound
	}
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *MockOrderItemRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

func (m *MockOrderItemRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// MockTableRegistry tracks table statuses in memory.
type MockTableRegistry struct {
	mu      sync.Mutex
	tables  map[uuid.UUID]*tables.Table
	freed   []uuid.UUID
	FreeErr error
}

func NewMockTableRegistry() *MockTableRegistry {
	return &MockTableRegistry{tables: make(map[uuid.UUID]*tables.Table)}
}

func (m *MockTableRegistry) AddTable(number string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := tables.NewTable()
	table.Number = number
	table.Status = tablestatus.Statuses.Available.Name
	m.tables[table.ID] = table
	return table.ID
}

func (m *MockTableRegistry) Get(ctx context.Context, tableID uuid.UUID) (*tables.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table, ok := m.tables[tableID]
	if !ok {
		return nil, fault.ErrNotFound
	}
	cp := *table
	return &cp, nil
}

func (m *MockTableRegistry) Occupy(ctx context.Context, tableID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	table, ok := m.tables[tableID]
	if !ok {
		return fault.ErrNotFound
	}
	if table.Status != tablestatus.Statuses.Available.Name {
		return fault.ErrTableUnavailable
	}
	table.Status = tablestatus.Statuses.Occupied.Name
	return nil
}

func (m *MockTableRegistry) Free(ctx context.Context, tableID uuid.UUID) error {
	if m.FreeErr != nil {
		return m.FreeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	table, ok := m.tables[tableID]
	if !ok {
		return fault.ErrNotFound
	}
	table.Status = tablestatus.Statuses.Available.Name
	m.freed = append(m.freed, tableID)
	return nil
}

func (m *MockTableRegistry) StatusOf(tableID uuid.UUID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if table, ok := m.tables[tableID]; ok {
		return table.Status
	}
	return ""
}

func (m *MockTableRegistry) FreedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.freed)
}

// MockStockLedger records reservation traffic per order.
type MockStockLedger struct {
	mu       sync.Mutex
	reserved map[uuid.UUID]map[uuid.UUID]decimal.Decimal
	released []uuid.UUID
	consumed []uuid.UUID

	// ReserveErrOn fails Reserve for one ingredient.
	ReserveErrOn uuid.UUID
	ReserveErr   error
}

func NewMockStockLedger() *MockStockLedger {
	return &MockStockLedger{reserved: make(map[uuid.UUID]map[uuid.UUID]decimal.Decimal)}
}

func (m *MockStockLedger) Reserve(ctx context.Context, orderID, ingredientID uuid.UUID, qty decimal.Decimal) error {
	if m.ReserveErr != nil && ingredientID == m.ReserveErrOn {
		return m.ReserveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reserved[orderID] == nil {
		m.reserved[orderID] = make(map[uuid.UUID]decimal.Decimal)
	}
	m.reserved[orderID][ingredientID] = m.reserved[orderID][ingredientID].Add(qty)
	return nil
}

func (m *MockStockLedger) ReleaseOrder(ctx context.Context, orderID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reserved, orderID)
	m.released = append(m.released, orderID)
	return nil
}

func (m *MockStockLedger) ConsumeOrder(ctx context.Context, orderID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reserved, orderID)
	m.consumed = append(m.consumed, orderID)
	return nil
}

func (m *MockStockLedger) ReservedFor(orderID, ingredientID uuid.UUID) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reserved[orderID] == nil {
		return decimal.Zero
	}
	return m.reserved[orderID][ingredientID]
}

func (m *MockStockLedger) ReleaseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.released)
}

func (m *MockStockLedger) ConsumeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.consumed)
}

// MockKitchenQueue collects queue entries in memory.
type MockKitchenQueue struct {
	mu        sync.Mutex
	entries   []*kitchen.QueueEntry
	removed   []uuid.UUID
	cancelled []uuid.UUID

	// EnqueueErrAfter fails Enqueue once this many entries are in.
	EnqueueErrAfter int
	EnqueueErr      error
}

func NewMockKitchenQueue() *MockKitchenQueue {
	return &MockKitchenQueue{}
}

func (m *MockKitchenQueue) Enqueue(ctx context.Context, entry *kitchen.QueueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EnqueueErr != nil && len(m.entries) >= m.EnqueueErrAfter {
		return m.EnqueueErr
	}
	cp := *entry
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *MockKitchenQueue) RemoveForOrder(ctx context.Context, orderID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*kitchen.QueueEntry
	for _, entry := range m.entries {
		if entry.OrderID != orderID {
			kept = append(kept, entry)
		}
	}
	m.entries = kept
	m.removed = append(m.removed, orderID)
	return nil
}

func (m *MockKitchenQueue) CancelForOrder(ctx context.Context, orderID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, orderID)
	return nil
}

func (m *MockKitchenQueue) Entries() []*kitchen.QueueEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*kitchen.QueueEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

func (m *MockKitchenQueue) RemovedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.removed)
}

func (m *MockKitchenQueue) CancelledCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cancelled)
}

// MockDishLookup serves dishes from a fixed map.
type MockDishLookup struct {
	dishes map[uuid.UUID]*Dish
}

func NewMockDishLookup() *MockDishLookup {
	return &MockDishLookup{dishes: make(map[uuid.UUID]*Dish)}
}

func (m *MockDishLookup) AddDish(name, price string, reqs ...IngredientRequirement) uuid.UUID {
	id := uuid.New()
	p, _ := decimal.NewFromString(price)
	m.dishes[id] = &Dish{
		ID:           id,
		Name:         name,
		Price:        p,
		Cost:         p.Div(decimal.NewFromInt(3)).Round(2),
		Requirements: reqs,
	}
	return id
}

func (m *MockDishLookup) Dish(ctx context.Context, dishID uuid.UUID) (*Dish, error) {
	dish, ok := m.dishes[dishID]
	if !ok {
		return nil, fault.ErrNotFound
	}
	cp := *dish
	return &cp, nil
}

// MockStaffLookup accepts every ID unless told otherwise.
type MockStaffLookup struct {
	Missing map[uuid.UUID]bool
}

func NewMockStaffLookup() *MockStaffLookup {
	return &MockStaffLookup{Missing: make(map[uuid.UUID]bool)}
}

func (m *MockStaffLookup) Exists(ctx context.Context, employeeID uuid.UUID) (bool, error) {
	return !m.Missing[employeeID], nil
}

// MockPublisher captures published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent
}

type PublishedEvent struct {
	Topic string
	Data  []byte
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, PublishedEvent{Topic: topic, Data: data})
	return nil
}

func (m *MockPublisher) Events() []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PublishedEvent, len(m.events))
	copy(out, m.events)
	return out
}

// MockBillChecker reports bill presence per order.
type MockBillChecker struct {
	mu    sync.Mutex
	bills map[uuid.UUID]bool
}

func NewMockBillChecker() *MockBillChecker {
	return &MockBillChecker{bills: make(map[uuid.UUID]bool)}
}

func (m *MockBillChecker) IssueBill(orderID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bills[orderID] = true
}

func (m *MockBillChecker) HasBill(ctx context.Context, orderID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bills[orderID], nil
}

func openTestOrder(workflow *Workflow, registry *MockTableRegistry) (*Order, uuid.UUID) {
	tableID := registry.AddTable("7")
	order, err := workflow.Open(context.Background(), tableID, uuid.New())
	if err != nil {
		panic(err)
	}
	return order, tableID
}
