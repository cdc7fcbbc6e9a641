package tables

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/comandaclub/comanda/internal/fault"
)

// MockTableRepo is a test double for TableRepo. Save honors the version
// guard so concurrency behavior can be exercised without a database.
type MockTableRepo struct {
	mu       sync.Mutex
	tables   map[uuid.UUID]*Table
	GetFunc  func(ctx context.Context, id uuid.UUID) (*Table, error)
	SaveFunc func(ctx context.Context, table *Table) error
}

func NewMockTableRepo() *MockTableRepo {
	return &MockTableRepo{tables: make(map[uuid.UUID]*Table)}
}

func (m *MockTableRepo) Create(ctx context.Context, table *Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	table.ModelVersion = 1
	cp := *table
	m.tables[table.ID] = &cp
	return nil
}

func (m *MockTableRepo) Get(ctx context.Context, id uuid.UUID) (*Table, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *MockTableRepo) GetByNumber(ctx context.Context, number string) (*Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tables {
		if t.Number == number {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockTableRepo) List(ctx context.Context) ([]*Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*Table, 0, len(m.tables))
	for _, t := range m.tables {
		cp := *t
		result = append(result, &cp)
	}
	return result, nil
}

func (m *MockTableRepo) Save(ctx context.Context, table *Table) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, table)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.tables[table.ID]
	if !ok {
		return fault.ErrNotFound
	}
	if current.ModelVersion != table.ModelVersion {
		return fault.ErrVersionConflict
	}
	table.ModelVersion++
	cp := *table
	m.tables[table.ID] = &cp
	return nil
}

func (m *MockTableRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tables, id)
	return nil
}

// AddTable seeds the mock repository.
func (m *MockTableRepo) AddTable(t *Table) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ModelVersion == 0 {
		t.ModelVersion = 1
	}
	cp := *t
	m.tables[t.ID] = &cp
}

// MockPublisher is a test mock for events.Publisher
type MockPublisher struct {
	mu              sync.Mutex
	PublishedEvents []PublishedEvent
	PublishFunc     func(ctx context.Context, topic string, data []byte) error
}

type PublishedEvent struct {
	Topic string
	Data  []byte
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{PublishedEvents: make([]PublishedEvent, 0)}
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, data []byte) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topic, data)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishedEvents = append(m.PublishedEvents, PublishedEvent{Topic: topic, Data: data})
	return nil
}
