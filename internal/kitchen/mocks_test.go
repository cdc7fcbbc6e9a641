package kitchen

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/comandaclub/comanda/internal/fault"
)

// MockEntryRepo is a map-backed test double for EntryRepo. Save honors the
// version guard.
type MockEntryRepo struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*QueueEntry
}

func NewMockEntryRepo() *MockEntryRepo {
	return &MockEntryRepo{entries: make(map[uuid.UUID]*QueueEntry)}
}

func (m *MockEntryRepo) Create(ctx context.Context, entry *QueueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ModelVersion = 1
	cp := *entry
	m.entries[entry.ID] = &cp
	return nil
}

func (m *MockEntryRepo) Get(ctx context.Context, id uuid.UUID) (*QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (m *MockEntryRepo) GetByOrderItem(ctx context.Context, orderItemID uuid.UUID) (*QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.OrderItemID == orderItemID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockEntryRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*QueueEntry
	for _, e := range m.entries {
		if e.OrderID == orderID {
			cp := *e
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *MockEntryRepo) List(ctx context.Context, filter EntryFilter) ([]*QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*QueueEntry
	for _, e := range m.entries {
		if filter.OrderID != nil && e.OrderID != *filter.OrderID {
			continue
		}
		if filter.Status != nil && e.Status != *filter.Status {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (m *MockEntryRepo) Save(ctx context.Context, entry *QueueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.entries[entry.ID]
	if !ok {
		return fault.ErrNotFound
	}
	if current.ModelVersion != entry.ModelVersion {
		return fault.ErrVersionConflict
	}
	entry.ModelVersion++
	cp := *entry
	m.entries[entry.ID] = &cp
	return nil
}

func (m *MockEntryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

func (m *MockEntryRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// MockAdvancer records order-advance notifications.
type MockAdvancer struct {
	mu       sync.Mutex
	Advanced []uuid.UUID
	Err      error
}

func (m *MockAdvancer) AdvanceToPreparing(ctx context.Context, orderID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Advanced = append(m.Advanced, orderID)
	return nil
}

func (m *MockAdvancer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Advanced)
}

// MockPublisher is a test mock for events.Publisher
type MockPublisher struct {
	mu              sync.Mutex
	PublishedEvents []PublishedEvent
}

type PublishedEvent struct {
	Topic string
	Data  []byte
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{PublishedEvents: make([]PublishedEvent, 0)}
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishedEvents = append(m.PublishedEvents, PublishedEvent{Topic: topic, Data: data})
	return nil
}

func (m *MockPublisher) Events() []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PublishedEvent, len(m.PublishedEvents))
	copy(out, m.PublishedEvents)
	return out
}
