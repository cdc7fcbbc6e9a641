package order

import (
	"time"

	"github.com/appetiteclub/apt"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/comandaclub/comanda/pkg/enums/orderstatus"
)

// Order is the aggregate root of one table visit. Total always equals the
// sum of line totals over the current items; every item mutation recomputes
// it under the order's version guard.
type Order struct {
	ID       uuid.UUID       `bson:"_id" json:"id"`
	TableID  uuid.UUID       `bson:"table_id" json:"table_id"`
	WaiterID uuid.UUID       `bson:"waiter_id" json:"waiter_id"`
	Status   string          `bson:"status" json:"status"`
	Total    decimal.Decimal `bson:"total" json:"total"`

	// Denormalized for display
	TableNumber string `bson:"table_number,omitempty" json:"table_number,omitempty"`

	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
	ClosedAt  *time.Time `bson:"closed_at,omitempty" json:"closed_at,omitempty"`

	ModelVersion int `bson:"model_version" json:"model_version"`
}

func NewOrder() *Order {
	return &Order{
		ID:     apt.GenerateNewID(),
		Status: orderstatus.Statuses.Created.Name,
		Total:  decimal.Zero,
	}
}

func (o *Order) GetID() uuid.UUID {
	return o.ID
}

func (o *Order) SetID(id uuid.UUID) {
	o.ID = id
}

func (o *Order) ResourceType() string {
	return "order"
}

func (o *Order) EnsureID() {
	if o.ID == uuid.Nil {
		o.ID = apt.GenerateNewID()
	}
}

func (o *Order) BeforeCreate() {
	o.EnsureID()
	now := time.Now()
	o.CreatedAt = now
	o.UpdatedAt = now
	if o.Status == "" {
		o.Status = orderstatus.Statuses.Created.Name
	}
}

func (o *Order) BeforeUpdate() {
	o.UpdatedAt = time.Now()
}

// CanMutateItems reports whether items may still be added or removed.
func (o *Order) CanMutateItems() bool {
	return o.Status == orderstatus.Statuses.Created.Name ||
		o.Status == orderstatus.Statuses.InKitchen.Name
}

// Open reports whether the order is still active.
func (o *Order) Open() bool {
	return orderstatus.Open(o.Status)
}
