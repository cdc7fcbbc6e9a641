package inventory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/comandaclub/comanda/internal/fault"
)

// MockBatchRepo is a map-backed test double for BatchRepo. Save honors the
// version guard so contention scenarios behave like the real store.
type MockBatchRepo struct {
	mu       sync.Mutex
	batches  map[uuid.UUID]*Batch
	SaveFunc func(ctx context.Context, batch *Batch) error
}

func NewMockBatchRepo() *MockBatchRepo {
	return &MockBatchRepo{batches: make(map[uuid.UUID]*Batch)}
}

func (m *MockBatchRepo) Create(ctx context.Context, batch *Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch.ModelVersion = 1
	cp := *batch
	m.batches[batch.ID] = &cp
	return nil
}

func (m *MockBatchRepo) Get(ctx context.Context, id uuid.UUID) (*Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (m *MockBatchRepo) ListByIngredient(ctx context.Context, ingredientID uuid.UUID) ([]*Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Batch
	for _, b := range m.batches {
		if b.IngredientID == ingredientID {
			cp := *b
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ExpiresAt.Before(result[j].ExpiresAt)
	})
	return result, nil
}

func (m *MockBatchRepo) List(ctx context.Context) ([]*Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*Batch, 0, len(m.batches))
	for _, b := range m.batches {
		cp := *b
		result = append(result, &cp)
	}
	return result, nil
}

func (m *MockBatchRepo) ListExpiringBefore(ctx context.Context, cutoff time.Time) ([]*Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Batch
	for _, b := range m.batches {
		if b.ExpiresAt.Before(cutoff) {
			cp := *b
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *MockBatchRepo) Save(ctx context.Context, batch *Batch) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, batch)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.batches[batch.ID]
	if !ok {
		return fault.ErrNotFound
	}
	if current.ModelVersion != batch.ModelVersion {
		return fault.ErrVersionConflict
	}
	batch.ModelVersion++
	cp := *batch
	m.batches[batch.ID] = &cp
	return nil
}

func (m *MockBatchRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.batches, id)
	return nil
}

// AddBatch seeds the mock repository.
func (m *MockBatchRepo) AddBatch(b *Batch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ModelVersion == 0 {
		b.ModelVersion = 1
	}
	cp := *b
	m.batches[b.ID] = &cp
}

// MockReservationRepo is a map-backed test double for ReservationRepo.
type MockReservationRepo struct {
	mu         sync.Mutex
	rows       map[uuid.UUID]*Reservation
	CreateFunc func(ctx context.Context, res *Reservation) error
}

func NewMockReservationRepo() *MockReservationRepo {
	return &MockReservationRepo{rows: make(map[uuid.UUID]*Reservation)}
}

func (m *MockReservationRepo) Create(ctx context.Context, res *Reservation) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, res)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *res
	m.rows[res.ID] = &cp
	return nil
}

func (m *MockReservationRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Reservation
	for _, row := range m.rows {
		if row.OrderID == orderID {
			cp := *row
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MockReservationRepo) ListByOrderAndIngredient(ctx context.Context, orderID, ingredientID uuid.UUID) ([]*Reservation, error) {
	rows, err := m.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	var result []*Reservation
	for _, row := range rows {
		if row.IngredientID == ingredientID {
			result = append(result, row)
		}
	}
	return result, nil
}

func (m *MockReservationRepo) Save(ctx context.Context, res *Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[res.ID]; !ok {
		return fault.ErrNotFound
	}
	cp := *res
	m.rows[res.ID] = &cp
	return nil
}

func (m *MockReservationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

func (m *MockReservationRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
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
