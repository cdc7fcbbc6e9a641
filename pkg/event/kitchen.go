package event

import "time"

const (
	KitchenEntriesTopic           = "kitchen.entries"
	EventKitchenEntryCreated      = "kitchen.entry.created"
	EventKitchenEntryStatusChange = "kitchen.entry.status_changed"
)

type KitchenEntryEventMetadata struct {
	EventType   string    `json:"event_type"`
	OccurredAt  time.Time `json:"occurred_at"`
	EntryID     string    `json:"entry_id"`
	OrderID     string    `json:"order_id"`
	OrderItemID string    `json:"order_item_id,omitempty"`

	// Denormalized data for display (expo board)
	DishName    string `json:"dish_name,omitempty"`
	TableNumber string `json:"table_number,omitempty"`
}

type KitchenEntryCreatedEvent struct {
	KitchenEntryEventMetadata
	Status   string `json:"status"`
	Quantity int    `json:"quantity"`
	Note     string `json:"note,omitempty"`
}

type KitchenEntryStatusChangedEvent struct {
	KitchenEntryEventMetadata
	NewStatus      string     `json:"new_status"`
	PreviousStatus string     `json:"previous_status"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}
