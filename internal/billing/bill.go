package billing

import (
	"time"

	"github.com/appetiteclub/apt"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bill is the single immutable settlement document for an order. One bill
// per order, enforced by a unique index on order_id.
type Bill struct {
	ID       uuid.UUID       `json:"id" bson:"_id"`
	OrderID  uuid.UUID       `json:"order_id" bson:"order_id"`
	Subtotal decimal.Decimal `json:"subtotal" bson:"subtotal"`
	Discount decimal.Decimal `json:"discount" bson:"discount"`
	Tax      decimal.Decimal `json:"tax" bson:"tax"`
	Total    decimal.Decimal `json:"total" bson:"total"`
	Notes    string          `json:"notes,omitempty" bson:"notes,omitempty"`
	IssuedAt time.Time       `json:"issued_at" bson:"issued_at"`
}

func (b *Bill) GetID() uuid.UUID {
	return b.ID
}

func (b *Bill) ResourceType() string {
	return "bill"
}

func (b *Bill) SetID(id uuid.UUID) {
	b.ID = id
}

func NewBill() *Bill {
	return &Bill{
		ID: apt.GenerateNewID(),
	}
}

func (b *Bill) EnsureID() {
	if b.ID == uuid.Nil {
		b.ID = apt.GenerateNewID()
	}
}

func (b *Bill) BeforeCreate() {
	b.EnsureID()
	if b.IssuedAt.IsZero() {
		b.IssuedAt = time.Now()
	}
}
