package tables

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/google/uuid"

	"github.com/comandaclub/comanda/internal/fault"
	"github.com/comandaclub/comanda/pkg/event"
	"github.com/comandaclub/comanda/pkg/enums/tablestatus"
)

const (
	maxAttempts  = 3
	retryBackoff = 10 * time.Millisecond
)

// Registry guards table occupancy with optimistic concurrency. Occupy and
// Free are the only paths that flip a table between available and occupied;
// the order workflow is their caller, so version conflicts here are retried
// locally and never shown to the end client as business errors.
type Registry struct {
	repo      TableRepo
	publisher events.Publisher
	logger    apt.Logger
}

func NewRegistry(repo TableRepo, publisher events.Publisher, logger apt.Logger) *Registry {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Registry{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

// Get returns one table.
func (r *Registry) Get(ctx context.Context, tableID uuid.UUID) (*Table, error) {
	table, err := r.repo.Get(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if table == nil {
		return nil, fault.ErrNotFound
	}
	return table, nil
}

// Occupy flips an available table to occupied. A table in any other status
// yields fault.ErrTableUnavailable.
func (r *Registry) Occupy(ctx context.Context, tableID uuid.UUID) error {
	return r.transition(ctx, tableID, func(t *Table) error {
		if t.Status != tablestatus.Statuses.Available.Name {
			return fault.ErrTableUnavailable
		}
		t.Occupy()
		return nil
	})
}

// Free releases a table unconditionally. Legal from occupied or reserved;
// freeing an already available table is a no-op.
func (r *Registry) Free(ctx context.Context, tableID uuid.UUID) error {
	return r.transition(ctx, tableID, func(t *Table) error {
		if t.Status == tablestatus.Statuses.Available.Name {
			return nil
		}
		t.Free()
		return nil
	})
}

// Reserve holds an available table for a future party.
func (r *Registry) Reserve(ctx context.Context, tableID uuid.UUID) error {
	return r.transition(ctx, tableID, func(t *Table) error {
		if t.Status != tablestatus.Statuses.Available.Name {
			return fault.ErrTableUnavailable
		}
		t.Reserve()
		return nil
	})
}

// transition runs a read-mutate-save cycle under the table's version guard,
// re-reading on conflict up to maxAttempts.
func (r *Registry) transition(ctx context.Context, tableID uuid.UUID, mutate func(*Table) error) error {
	if tableID == uuid.Nil {
		return fault.Validation([]string{"table id is required"})
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		table, err := r.repo.Get(ctx, tableID)
		if err != nil {
			return err
		}
		if table == nil {
			return fault.ErrNotFound
		}

		previous := table.Status
		if err := mutate(table); err != nil {
			return err
		}
		if table.Status == previous {
			return nil
		}

		if err := r.repo.Save(ctx, table); err != nil {
			if errors.Is(err, fault.ErrVersionConflict) {
				lastErr = err
				time.Sleep(retryBackoff + time.Duration(rand.Intn(int(retryBackoff))))
				continue
			}
			return err
		}

		r.publishStatusChange(ctx, table, previous)
		return nil
	}

	r.logger.Info("table transition exhausted retries", "table_id", tableID.String())
	return lastErr
}

func (r *Registry) publishStatusChange(ctx context.Context, table *Table, previous string) {
	if r.publisher == nil {
		return
	}

	evt := event.TableStatusEvent{
		EventType:      event.EventTableStatusChanged,
		TableID:        table.ID.String(),
		Status:         table.Status,
		PreviousStatus: previous,
		Source:         "registry",
		OccurredAt:     time.Now(),
	}

	payload, _ := json.Marshal(evt)
	if err := r.publisher.Publish(ctx, event.TableStatusTopic, payload); err != nil {
		r.logger.Errorf("Failed to publish table status event: %v", err)
	}
}
