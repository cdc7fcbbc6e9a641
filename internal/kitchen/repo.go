package kitchen

import (
	"context"

	"github.com/google/uuid"
)

type EntryFilter struct {
	OrderID *uuid.UUID
	Status  *string
	Limit   int
	Offset  int
}

type EntryRepo interface {
	Create(ctx context.Context, entry *QueueEntry) error
	Get(ctx context.Context, id uuid.UUID) (*QueueEntry, error)
	GetByOrderItem(ctx context.Context, orderItemID uuid.UUID) (*QueueEntry, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*QueueEntry, error)
	List(ctx context.Context, filter EntryFilter) ([]*QueueEntry, error)
	// Save writes the entry guarded by its ModelVersion and increments it.
	// A stale version yields fault.ErrVersionConflict.
	Save(ctx context.Context, entry *QueueEntry) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// OrderAdvancer is the queue's view of the order workflow. Satisfied by
// order.Workflow; kept local so the packages do not import each other.
type OrderAdvancer interface {
	AdvanceToPreparing(ctx context.Context, orderID uuid.UUID) error
}
