package order

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/comandaclub/comanda/internal/kitchen"
	"github.com/comandaclub/comanda/internal/tables"
)

type OrderFilter struct {
	Status  *string
	TableID *uuid.UUID
	Limit   int
	Offset  int
}

type OrderRepo interface {
	Create(ctx context.Context, order *Order) error
	Get(ctx context.Context, id uuid.UUID) (*Order, error)
	List(ctx context.Context, filter OrderFilter) ([]*Order, error)
	// ListOpenByTable returns orders on the table that are not closed or
	// cancelled. Backs the one-open-order-per-table check.
	ListOpenByTable(ctx context.Context, tableID uuid.UUID) ([]*Order, error)
	// Save persists the order guarded by its ModelVersion and increments it.
	// A stale version yields fault.ErrVersionConflict.
	Save(ctx context.Context, order *Order) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type OrderItemRepo interface {
	Create(ctx context.Context, item *OrderItem) error
	Get(ctx context.Context, id uuid.UUID) (*OrderItem, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*OrderItem, error)
	Save(ctx context.Context, item *OrderItem) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Collaborator surfaces the workflow drives. Concrete implementations live
// in their own packages; the workflow only needs these slices of them.

type TableRegistry interface {
	Get(ctx context.Context, tableID uuid.UUID) (*tables.Table, error)
	Occupy(ctx context.Context, tableID uuid.UUID) error
	Free(ctx context.Context, tableID uuid.UUID) error
}

type StockLedger interface {
	Reserve(ctx context.Context, orderID, ingredientID uuid.UUID, qty decimal.Decimal) error
	ReleaseOrder(ctx context.Context, orderID uuid.UUID) error
	ConsumeOrder(ctx context.Context, orderID uuid.UUID) error
}

type KitchenQueue interface {
	Enqueue(ctx context.Context, entry *kitchen.QueueEntry) error
	RemoveForOrder(ctx context.Context, orderID uuid.UUID) error
	CancelForOrder(ctx context.Context, orderID uuid.UUID) error
}

// BillChecker is the workflow's view of billing; closing an order requires
// an issued bill. Satisfied by billing.Finalizer.
type BillChecker interface {
	HasBill(ctx context.Context, orderID uuid.UUID) (bool, error)
}
