package billing

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/comandaclub/comanda/internal/fault"
	"github.com/comandaclub/comanda/internal/order"
	"github.com/comandaclub/comanda/pkg/enums/orderstatus"
)

// MockBillRepo is a map-backed BillRepo enforcing one bill per order, the
// way the unique index does in storage.
type MockBillRepo struct {
	mu      sync.Mutex
	bills   map[uuid.UUID]*Bill
	byOrder map[uuid.UUID]uuid.UUID
}

func NewMockBillRepo() *MockBillRepo {
	return &MockBillRepo{
		bills:   make(map[uuid.UUID]*Bill),
		byOrder: make(map[uuid.UUID]uuid.UUID),
	}
}

func (m *MockBillRepo) Create(ctx context.Context, bill *Bill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byOrder[bill.OrderID]; exists {
		return fault.ErrBillAlreadyExists
	}
	cp := *bill
	m.bills[bill.ID] = &cp
	m.byOrder[bill.OrderID] = bill.ID
	return nil
}

func (m *MockBillRepo) Get(ctx context.Context, id uuid.UUID) (*Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bill, ok := m.bills[id]
	if !ok {
		return nil, nil
	}
	cp := *bill
	return &cp, nil
}

func (m *MockBillRepo) GetByOrder(ctx context.Context, orderID uuid.UUID) (*Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	billID, ok := m.byOrder[orderID]
	if !ok {
		return nil, nil
	}
	cp := *m.bills[billID]
	return &cp, nil
}

func (m *MockBillRepo) List(ctx context.Context, limit, offset int) ([]*Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Bill
	for _, bill := range m.bills {
		cp := *bill
		out = append(out, &cp)
	}
	return out, nil
}

// MockOrderService serves a fixed set of orders and records deliveries.
type MockOrderService struct {
	mu        sync.Mutex
	orders    map[uuid.UUID]*order.Order
	delivered []uuid.UUID
}

func NewMockOrderService() *MockOrderService {
	return &MockOrderService{orders: make(map[uuid.UUID]*order.Order)}
}

func (m *MockOrderService) AddOrder(status, total string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	ord := order.NewOrder()
	ord.Status = status
	ord.Total = decimal.RequireFromString(total)
	m.orders[ord.ID] = ord
	return ord.ID
}

func (m *MockOrderService) Get(ctx context.Context, orderID uuid.UUID) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ord, ok := m.orders[orderID]
	if !ok {
		return nil, fault.ErrNotFound
	}
	cp := *ord
	return &cp, nil
}

func (m *MockOrderService) MarkDelivered(ctx context.Context, orderID uuid.UUID) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ord, ok := m.orders[orderID]
	if !ok {
		return nil, fault.ErrNotFound
	}
	ord.Status = orderstatus.Statuses.Delivered.Name
	m.delivered = append(m.delivered, orderID)
	cp := *ord
	return &cp, nil
}

func (m *MockOrderService) DeliveredCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.delivered)
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
