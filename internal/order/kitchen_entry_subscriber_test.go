package order

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/google/uuid"

	"github.com/comandaclub/comanda/pkg/event"
)

// MockSubscriber hands delivered messages straight to the registered handler.
type MockSubscriber struct {
	topic   string
	handler events.HandlerFunc
}

func (m *MockSubscriber) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	m.topic = topic
	m.handler = handler
	return nil
}

func (m *MockSubscriber) Deliver(t *testing.T, payload interface{}) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("cannot marshal payload: %v", err)
	}
	if err := m.handler(context.Background(), data); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
}

func statusChangeEvent(itemID uuid.UUID, newStatus string) event.KitchenEntryStatusChangedEvent {
	return event.KitchenEntryStatusChangedEvent{
		KitchenEntryEventMetadata: event.KitchenEntryEventMetadata{
			EventType:   event.EventKitchenEntryStatusChange,
			OccurredAt:  time.Now(),
			EntryID:     uuid.NewString(),
			OrderID:     uuid.NewString(),
			OrderItemID: itemID.String(),
		},
		NewStatus: newStatus,
	}
}

func TestKitchenEntrySubscriberMirrorsStatus(t *testing.T) {
	items := NewMockOrderItemRepo()
	sub := &MockSubscriber{}
	subscriber := NewKitchenEntrySubscriber(sub, items, apt.NewNoopLogger())

	if err := subscriber.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if sub.topic != event.KitchenEntriesTopic {
		t.Fatalf("expected subscription on %s, got %s", event.KitchenEntriesTopic, sub.topic)
	}

	item := NewOrderItem()
	item.OrderID = uuid.New()
	item.DishName = "Risotto"
	item.BeforeCreate()
	if err := items.Create(context.Background(), item); err != nil {
		t.Fatalf("seed item failed: %v", err)
	}

	steps := []struct {
		kitchenStatus string
		wantItem      string
	}{
		{"in_progress", "preparing"},
		{"ready", "ready"},
		{"served", "delivered"},
	}
	for _, step := range steps {
		sub.Deliver(t, statusChangeEvent(item.ID, step.kitchenStatus))
		got, _ := items.Get(context.Background(), item.ID)
		if got.Status != step.wantItem {
			t.Errorf("after kitchen %s: expected item %s, got %s", step.kitchenStatus, step.wantItem, got.Status)
		}
	}
	got, _ := items.Get(context.Background(), item.ID)
	if got.DeliveredAt == nil {
		t.Error("expected delivered_at to be stamped")
	}
}

func TestKitchenEntrySubscriberCancellation(t *testing.T) {
	items := NewMockOrderItemRepo()
	sub := &MockSubscriber{}
	subscriber := NewKitchenEntrySubscriber(sub, items, apt.NewNoopLogger())
	if err := subscriber.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	item := NewOrderItem()
	item.OrderID = uuid.New()
	item.BeforeCreate()
	if err := items.Create(context.Background(), item); err != nil {
		t.Fatalf("seed item failed: %v", err)
	}

	sub.Deliver(t, statusChangeEvent(item.ID, "cancelled"))
	got, _ := items.Get(context.Background(), item.ID)
	if got.Status != "cancelled" {
		t.Errorf("expected cancelled, got %s", got.Status)
	}
}

func TestKitchenEntrySubscriberIgnoresNoise(t *testing.T) {
	items := NewMockOrderItemRepo()
	sub := &MockSubscriber{}
	subscriber := NewKitchenEntrySubscriber(sub, items, apt.NewNoopLogger())
	if err := subscriber.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Created events, unknown items and garbage must not error the handler.
	sub.Deliver(t, event.KitchenEntryCreatedEvent{
		KitchenEntryEventMetadata: event.KitchenEntryEventMetadata{
			EventType: event.EventKitchenEntryCreated,
			EntryID:   uuid.NewString(),
		},
	})
	sub.Deliver(t, statusChangeEvent(uuid.New(), "ready"))
	if err := sub.handler(context.Background(), []byte("not json")); err != nil {
		t.Fatalf("garbage payload must not fail: %v", err)
	}
}
