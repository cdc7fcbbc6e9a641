package event

import "time"

const (
	InventoryTopic         = "inventory.stock"
	EventStockLow          = "inventory.stock.low"
	EventBatchExpiringSoon = "inventory.batch.expiring"
)

// StockLevelEvent is published after consumption drops an ingredient's
// unreserved stock under the configured threshold.
type StockLevelEvent struct {
	EventType    string    `json:"event_type"`
	OccurredAt   time.Time `json:"occurred_at"`
	IngredientID string    `json:"ingredient_id"`
	Available    string    `json:"available"`
	Threshold    string    `json:"threshold,omitempty"`
}

// BatchExpiringEvent flags a batch approaching its expiry date.
type BatchExpiringEvent struct {
	EventType    string    `json:"event_type"`
	OccurredAt   time.Time `json:"occurred_at"`
	BatchID      string    `json:"batch_id"`
	IngredientID string    `json:"ingredient_id"`
	ExpiresAt    time.Time `json:"expires_at"`
	Quantity     string    `json:"quantity"`
}
