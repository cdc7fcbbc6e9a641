package billing

import (
	"context"

	"github.com/google/uuid"
)

type BillRepo interface {
	// Create inserts the bill. A second bill for the same order fails with
	// fault.ErrBillAlreadyExists; the unique order_id index backs this.
	Create(ctx context.Context, bill *Bill) error
	Get(ctx context.Context, id uuid.UUID) (*Bill, error)
	// GetByOrder returns the order's bill, or nil when none was issued.
	GetByOrder(ctx context.Context, orderID uuid.UUID) (*Bill, error)
	List(ctx context.Context, limit, offset int) ([]*Bill, error)
}
