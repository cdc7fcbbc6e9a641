package kitchen

import (
	"time"

	"github.com/appetiteclub/apt"
	"github.com/google/uuid"

	"github.com/comandaclub/comanda/pkg/enums/queuestatus"
)

// QueueEntry is one dish to prepare, derived from an order item when the
// order is sent to the kitchen. Its lifecycle ends at served or cancelled.
type QueueEntry struct {
	ID          uuid.UUID `bson:"_id" json:"id"`
	OrderID     uuid.UUID `bson:"order_id" json:"order_id"`
	OrderItemID uuid.UUID `bson:"order_item_id" json:"order_item_id"`
	DishID      uuid.UUID `bson:"dish_id" json:"dish_id"`
	Quantity    int       `bson:"quantity" json:"quantity"`
	Status      string    `bson:"status" json:"status"`
	Note        string    `bson:"note,omitempty" json:"note,omitempty"`

	// Denormalized data for display purposes
	DishName    string `bson:"dish_name,omitempty" json:"dish_name,omitempty"`
	TableNumber string `bson:"table_number,omitempty" json:"table_number,omitempty"`

	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
	StartedAt   *time.Time `bson:"started_at,omitempty" json:"started_at,omitempty"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	ServedAt    *time.Time `bson:"served_at,omitempty" json:"served_at,omitempty"`

	ModelVersion int `bson:"model_version" json:"model_version"`
}

func NewQueueEntry() *QueueEntry {
	return &QueueEntry{
		ID:     apt.GenerateNewID(),
		Status: queuestatus.Statuses.Pending.Name,
	}
}

func (e *QueueEntry) GetID() uuid.UUID {
	return e.ID
}

func (e *QueueEntry) SetID(id uuid.UUID) {
	e.ID = id
}

func (e *QueueEntry) ResourceType() string {
	return "kitchen-entry"
}

func (e *QueueEntry) EnsureID() {
	if e.ID == uuid.Nil {
		e.ID = apt.GenerateNewID()
	}
}

func (e *QueueEntry) BeforeCreate() {
	e.EnsureID()
	now := time.Now()
	e.CreatedAt = now
	e.UpdatedAt = now
	if e.Status == "" {
		e.Status = queuestatus.Statuses.Pending.Name
	}
}

func (e *QueueEntry) BeforeUpdate() {
	e.UpdatedAt = time.Now()
}

// Done reports whether the entry needs no more kitchen work.
func (e *QueueEntry) Done() bool {
	return queuestatus.Done(e.Status) || e.Status == queuestatus.Statuses.Cancelled.Name
}
