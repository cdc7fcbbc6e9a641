package event

import "time"

const (
	OrdersTopic             = "orders.lifecycle"
	EventOrderOpened        = "order.opened"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderClosed        = "order.closed"
	EventOrderCancelled     = "order.cancelled"
)

// OrderLifecycleEvent announces a status change on an order. It is consumed
// by display surfaces and by reporting; the core never depends on it for
// correctness.
type OrderLifecycleEvent struct {
	EventType      string    `json:"event_type"`
	OccurredAt     time.Time `json:"occurred_at"`
	OrderID        string    `json:"order_id"`
	TableID        string    `json:"table_id,omitempty"`
	NewStatus      string    `json:"new_status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Total          string    `json:"total,omitempty"`
}
