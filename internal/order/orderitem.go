package order

import (
	"time"

	"github.com/appetiteclub/apt"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IngredientRequirement is one ingredient line of a dish recipe, snapshotted
// onto the item at order time so later recipe edits do not shift what was
// promised to the kitchen.
type IngredientRequirement struct {
	IngredientID uuid.UUID       `bson:"ingredient_id" json:"ingredient_id"`
	Quantity     decimal.Decimal `bson:"quantity" json:"quantity"`
}

// OrderItem is one dish line on an order. Dish name, price and cost are
// denormalized at the time of ordering.
type OrderItem struct {
	ID       uuid.UUID       `bson:"_id" json:"id"`
	OrderID  uuid.UUID       `bson:"order_id" json:"order_id"`
	DishID   uuid.UUID       `bson:"dish_id" json:"dish_id"`
	DishName string          `bson:"dish_name" json:"dish_name"`
	Quantity int             `bson:"quantity" json:"quantity"`
	Price    decimal.Decimal `bson:"price" json:"price"`
	Cost     decimal.Decimal `bson:"cost" json:"cost"`
	Note     string          `bson:"note,omitempty" json:"note,omitempty"`
	Status   string          `bson:"status" json:"status"`

	Requirements []IngredientRequirement `bson:"requirements,omitempty" json:"requirements,omitempty"`

	DeliveredAt *time.Time `bson:"delivered_at,omitempty" json:"delivered_at,omitempty"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
}

func NewOrderItem() *OrderItem {
	return &OrderItem{
		ID:     apt.GenerateNewID(),
		Status: "pending",
	}
}

func (oi *OrderItem) GetID() uuid.UUID {
	return oi.ID
}

func (oi *OrderItem) SetID(id uuid.UUID) {
	oi.ID = id
}

func (oi *OrderItem) ResourceType() string {
	return "order-item"
}

func (oi *OrderItem) EnsureID() {
	if oi.ID == uuid.Nil {
		oi.ID = apt.GenerateNewID()
	}
}

func (oi *OrderItem) BeforeCreate() {
	oi.EnsureID()
	now := time.Now()
	oi.CreatedAt = now
	oi.UpdatedAt = now
	if oi.Status == "" {
		oi.Status = "pending"
	}
}

func (oi *OrderItem) BeforeUpdate() {
	oi.UpdatedAt = time.Now()
}

// LineTotal is price times quantity, exact.
func (oi *OrderItem) LineTotal() decimal.Decimal {
	return oi.Price.Mul(decimal.NewFromInt(int64(oi.Quantity)))
}

func (oi *OrderItem) MarkAsPreparing() {
	oi.Status = "preparing"
	oi.UpdatedAt = time.Now()
}

func (oi *OrderItem) MarkAsReady() {
	oi.Status = "ready"
	oi.UpdatedAt = time.Now()
}

func (oi *OrderItem) MarkAsDelivered() {
	now := time.Now()
	oi.Status = "delivered"
	oi.DeliveredAt = &now
	oi.UpdatedAt = now
}

func (oi *OrderItem) Cancel() {
	oi.Status = "cancelled"
	oi.UpdatedAt = time.Now()
}
