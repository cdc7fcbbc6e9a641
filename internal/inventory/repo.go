package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type BatchRepo interface {
	Create(ctx context.Context, batch *Batch) error
	Get(ctx context.Context, id uuid.UUID) (*Batch, error)
	// ListByIngredient returns the ingredient's batches ordered by ascending
	// expiry date. Reservation walks them in this order (FEFO).
	ListByIngredient(ctx context.Context, ingredientID uuid.UUID) ([]*Batch, error)
	List(ctx context.Context) ([]*Batch, error)
	ListExpiringBefore(ctx context.Context, cutoff time.Time) ([]*Batch, error)
	// Save persists the batch only when the stored model_version still
	// matches; a stale version yields fault.ErrVersionConflict.
	Save(ctx context.Context, batch *Batch) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type ReservationRepo interface {
	Create(ctx context.Context, res *Reservation) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*Reservation, error)
	ListByOrderAndIngredient(ctx context.Context, orderID, ingredientID uuid.UUID) ([]*Reservation, error)
	Save(ctx context.Context, res *Reservation) error
	Delete(ctx context.Context, id uuid.UUID) error
}
