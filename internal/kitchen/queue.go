package kitchen

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/google/uuid"

	"github.com/comandaclub/comanda/internal/fault"
	"github.com/comandaclub/comanda/pkg/enums/queuestatus"
	"github.com/comandaclub/comanda/pkg/event"
)

const (
	maxAttempts  = 3
	retryBackoff = 10 * time.Millisecond
)

// Queue tracks per-dish preparation state and feeds the aggregate signal
// back into the order workflow: once every entry of an order is done, the
// order moves to preparing.
//
// The aggregate check is the one spot needing real mutual exclusion. Two
// dishes finishing at the same instant must not both read a stale "not all
// ready" snapshot, so the check-and-advance runs under a per-order lock.
type Queue struct {
	entries   EntryRepo
	advancer  OrderAdvancer
	publisher events.Publisher
	logger    apt.Logger

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewQueue(entries EntryRepo, advancer OrderAdvancer, publisher events.Publisher, logger apt.Logger) *Queue {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Queue{
		entries:   entries,
		advancer:  advancer,
		publisher: publisher,
		logger:    logger,
		locks:     make(map[uuid.UUID]*sync.Mutex),
	}
}

// SetAdvancer wires the order workflow in after construction. The queue and
// the workflow reference each other, so one side is attached late.
func (q *Queue) SetAdvancer(advancer OrderAdvancer) {
	q.advancer = advancer
}

// Enqueue registers a pending entry for one order item.
func (q *Queue) Enqueue(ctx context.Context, entry *QueueEntry) error {
	var problems []string
	if entry.OrderID == uuid.Nil {
		problems = append(problems, "order_id is required")
	}
	if entry.OrderItemID == uuid.Nil {
		problems = append(problems, "order_item_id is required")
	}
	if entry.Quantity <= 0 {
		problems = append(problems, "quantity must be greater than 0")
	}
	if err := fault.Validation(problems); err != nil {
		return err
	}

	entry.Status = queuestatus.Statuses.Pending.Name
	entry.BeforeCreate()
	if err := q.entries.Create(ctx, entry); err != nil {
		return err
	}

	q.publishCreated(ctx, entry)
	return nil
}

// RemoveForOrder deletes the order's entries. Used to unwind a partially
// seeded queue when sending the order to the kitchen fails midway.
func (q *Queue) RemoveForOrder(ctx context.Context, orderID uuid.UUID) error {
	entries, err := q.entries.ListByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := q.entries.Delete(ctx, e.ID); err != nil {
			return err
		}
	}
	return nil
}

// Start moves a pending entry to in_progress and stamps StartedAt. Calling
// it again on an entry already in progress is a no-op, the original stamp
// stays.
func (q *Queue) Start(ctx context.Context, entryID uuid.UUID) (*QueueEntry, error) {
	return q.applyOnEntry(ctx, entryID, func(e *QueueEntry) error {
		switch e.Status {
		case queuestatus.Statuses.InProgress.Name:
			return nil
		case queuestatus.Statuses.Pending.Name:
			e.Status = queuestatus.Statuses.InProgress.Name
			if e.StartedAt == nil {
				now := time.Now()
				e.StartedAt = &now
			}
			return nil
		default:
			return fault.IllegalTransition("kitchen entry", e.Status, queuestatus.Statuses.InProgress.Name)
		}
	})
}

// MarkReady completes an entry and runs the aggregate check: when every
// sibling entry of the order is done, the order workflow is told to advance.
func (q *Queue) MarkReady(ctx context.Context, entryID uuid.UUID) (*QueueEntry, error) {
	entry, err := q.applyOnEntry(ctx, entryID, func(e *QueueEntry) error {
		switch e.Status {
		case queuestatus.Statuses.Ready.Name:
			return nil
		case queuestatus.Statuses.Pending.Name, queuestatus.Statuses.InProgress.Name:
			e.Status = queuestatus.Statuses.Ready.Name
			if e.CompletedAt == nil {
				now := time.Now()
				e.CompletedAt = &now
			}
			return nil
		default:
			return fault.IllegalTransition("kitchen entry", e.Status, queuestatus.Statuses.Ready.Name)
		}
	})
	if err != nil {
		return nil, err
	}

	if err := q.checkOrderReady(ctx, entry.OrderID); err != nil {
		q.logger.Errorf("aggregate check failed for order %s: %v", entry.OrderID, err)
	}
	return entry, nil
}

// Serve hands a ready entry to the table, ending its lifecycle.
func (q *Queue) Serve(ctx context.Context, entryID uuid.UUID) (*QueueEntry, error) {
	return q.applyOnEntry(ctx, entryID, func(e *QueueEntry) error {
		switch e.Status {
		case queuestatus.Statuses.Served.Name:
			return nil
		case queuestatus.Statuses.Ready.Name:
			e.Status = queuestatus.Statuses.Served.Name
			if e.ServedAt == nil {
				now := time.Now()
				e.ServedAt = &now
			}
			return nil
		default:
			return fault.IllegalTransition("kitchen entry", e.Status, queuestatus.Statuses.Served.Name)
		}
	})
}

// CancelForOrder cancels every entry of the order that still needs work.
// Entries already ready or served keep their status.
func (q *Queue) CancelForOrder(ctx context.Context, orderID uuid.UUID) error {
	entries, err := q.entries.ListByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if queuestatus.Done(e.Status) || e.Status == queuestatus.Statuses.Cancelled.Name {
			continue
		}
		if _, err := q.applyOnEntry(ctx, e.ID, func(entry *QueueEntry) error {
			if queuestatus.Done(entry.Status) || entry.Status == queuestatus.Statuses.Cancelled.Name {
				return nil
			}
			entry.Status = queuestatus.Statuses.Cancelled.Name
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// Get returns one entry.
func (q *Queue) Get(ctx context.Context, entryID uuid.UUID) (*QueueEntry, error) {
	entry, err := q.entries.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fault.ErrNotFound
	}
	return entry, nil
}

// List returns entries matching the filter.
func (q *Queue) List(ctx context.Context, filter EntryFilter) ([]*QueueEntry, error) {
	return q.entries.List(ctx, filter)
}

// checkOrderReady snapshots the order's entries under the per-order lock and
// advances the order once all of them are done. The lock serializes
// concurrent completions; the order's own version guard makes the advance
// idempotent on top of that.
func (q *Queue) checkOrderReady(ctx context.Context, orderID uuid.UUID) error {
	if q.advancer == nil {
		return nil
	}

	lock := q.orderLock(orderID)
	lock.Lock()
	defer lock.Unlock()

	entries, err := q.entries.ListByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if !e.Done() {
			return nil
		}
	}

	return q.advancer.AdvanceToPreparing(ctx, orderID)
}

func (q *Queue) orderLock(orderID uuid.UUID) *sync.Mutex {
	q.mu.Lock()
	defer q.mu.Unlock()
	lock, ok := q.locks[orderID]
	if !ok {
		lock = &sync.Mutex{}
		q.locks[orderID] = lock
	}
	return lock
}

// applyOnEntry runs a read-mutate-save cycle on one entry, re-reading on
// version conflict up to maxAttempts. It publishes a status change event
// when the mutation changed the status.
func (q *Queue) applyOnEntry(ctx context.Context, entryID uuid.UUID, mutate func(*QueueEntry) error) (*QueueEntry, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		entry, err := q.entries.Get(ctx, entryID)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			return nil, fault.ErrNotFound
		}

		previous := entry.Status
		if err := mutate(entry); err != nil {
			return nil, err
		}
		if entry.Status == previous {
			return entry, nil
		}
		entry.BeforeUpdate()

		err = q.entries.Save(ctx, entry)
		if err == nil {
			q.publishStatusChange(ctx, entry, previous)
			return entry, nil
		}
		if !errors.Is(err, fault.ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
		time.Sleep(retryBackoff + time.Duration(rand.Intn(int(retryBackoff))))
	}
	return nil, lastErr
}

func (q *Queue) publishCreated(ctx context.Context, entry *QueueEntry) {
	if q.publisher == nil {
		return
	}
	evt := event.KitchenEntryCreatedEvent{
		KitchenEntryEventMetadata: event.KitchenEntryEventMetadata{
			EventType:   event.EventKitchenEntryCreated,
			OccurredAt:  time.Now(),
			EntryID:     entry.ID.String(),
			OrderID:     entry.OrderID.String(),
			OrderItemID: entry.OrderItemID.String(),
			DishName:    entry.DishName,
			TableNumber: entry.TableNumber,
		},
		Status:   entry.Status,
		Quantity: entry.Quantity,
		Note:     entry.Note,
	}
	payload, _ := json.Marshal(evt)
	if err := q.publisher.Publish(ctx, event.KitchenEntriesTopic, payload); err != nil {
		q.logger.Errorf("Failed to publish entry created event: %v", err)
	}
}

func (q *Queue) publishStatusChange(ctx context.Context, entry *QueueEntry, previousStatus string) {
	if q.publisher == nil {
		return
	}
	evt := event.KitchenEntryStatusChangedEvent{
		KitchenEntryEventMetadata: event.KitchenEntryEventMetadata{
			EventType:   event.EventKitchenEntryStatusChange,
			OccurredAt:  time.Now(),
			EntryID:     entry.ID.String(),
			OrderID:     entry.OrderID.String(),
			OrderItemID: entry.OrderItemID.String(),
			DishName:    entry.DishName,
			TableNumber: entry.TableNumber,
		},
		NewStatus:      entry.Status,
		PreviousStatus: previousStatus,
		StartedAt:      entry.StartedAt,
		CompletedAt:    entry.CompletedAt,
	}
	payload, _ := json.Marshal(evt)
	if err := q.publisher.Publish(ctx, event.KitchenEntriesTopic, payload); err != nil {
		q.logger.Errorf("Failed to publish status change event: %v", err)
	}
}
