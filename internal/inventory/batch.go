package inventory

import (
	"time"

	"github.com/appetiteclub/apt"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Batch is one delivery lot of an ingredient. Quantities are decimals; many
// small reservations against the same lot must never accumulate rounding
// drift. Reserved tracks soft holds that have not been deducted yet.
type Batch struct {
	ID           uuid.UUID       `json:"id" bson:"_id"`
	IngredientID uuid.UUID       `json:"ingredient_id" bson:"ingredient_id"`
	Quantity     decimal.Decimal `json:"quantity" bson:"quantity"`
	Reserved     decimal.Decimal `json:"reserved" bson:"reserved"`
	UnitPrice    decimal.Decimal `json:"unit_price" bson:"unit_price"`
	ExpiresAt    time.Time       `json:"expires_at" bson:"expires_at"`
	ReceivedAt   time.Time       `json:"received_at" bson:"received_at"`
	CreatedAt    time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" bson:"updated_at"`

	ModelVersion int `json:"model_version" bson:"model_version"`
}

func (b *Batch) GetID() uuid.UUID {
	return b.ID
}

func (b *Batch) ResourceType() string {
	return "batch"
}

func (b *Batch) SetID(id uuid.UUID) {
	b.ID = id
}

func NewBatch() *Batch {
	return &Batch{
		ID: apt.GenerateNewID(),
	}
}

func (b *Batch) EnsureID() {
	if b.ID == uuid.Nil {
		b.ID = apt.GenerateNewID()
	}
}

func (b *Batch) BeforeCreate() {
	b.EnsureID()
	b.CreatedAt = time.Now()
	b.UpdatedAt = time.Now()
	if b.ReceivedAt.IsZero() {
		b.ReceivedAt = b.CreatedAt
	}
}

func (b *Batch) BeforeUpdate() {
	b.UpdatedAt = time.Now()
}

// Available is the quantity not yet held by a reservation.
func (b *Batch) Available() decimal.Decimal {
	return b.Quantity.Sub(b.Reserved)
}

// Reservation records which batch covers how much of an order's hold on an
// ingredient. Rows exist only between reserve and the matching consume or
// release.
type Reservation struct {
	ID           uuid.UUID       `json:"id" bson:"_id"`
	OrderID      uuid.UUID       `json:"order_id" bson:"order_id"`
	IngredientID uuid.UUID       `json:"ingredient_id" bson:"ingredient_id"`
	BatchID      uuid.UUID       `json:"batch_id" bson:"batch_id"`
	Quantity     decimal.Decimal `json:"quantity" bson:"quantity"`
	CreatedAt    time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" bson:"updated_at"`
}

func NewReservation(orderID, ingredientID, batchID uuid.UUID, qty decimal.Decimal) *Reservation {
	now := time.Now()
	return &Reservation{
		ID:           apt.GenerateNewID(),
		OrderID:      orderID,
		IngredientID: ingredientID,
		BatchID:      batchID,
		Quantity:     qty,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
