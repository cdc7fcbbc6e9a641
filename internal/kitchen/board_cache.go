package kitchen

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/google/uuid"

	"github.com/comandaclub/comanda/pkg/enums/queuestatus"
	"github.com/comandaclub/comanda/pkg/event"
)

// BoardCache keeps the active queue in memory, indexed by status and by
// order, so the expo board can be served without hitting the store on every
// poll. It warms from the persistent event stream and falls back to the
// repository when the stream is unavailable.
type BoardCache struct {
	mu sync.RWMutex
	// entries indexed by entry id
	entries map[uuid.UUID]*QueueEntry
	// index by status code -> entry id
	byStatus map[string][]uuid.UUID
	// index by order id -> entry id
	byOrder map[uuid.UUID][]uuid.UUID

	stream events.StreamConsumer
	repo   EntryRepo
	logger apt.Logger
}

func NewBoardCache(stream events.StreamConsumer, repo EntryRepo, logger apt.Logger) *BoardCache {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &BoardCache{
		entries:  make(map[uuid.UUID]*QueueEntry),
		byStatus: make(map[string][]uuid.UUID),
		byOrder:  make(map[uuid.UUID][]uuid.UUID),
		stream:   stream,
		repo:     repo,
		logger:   logger,
	}
}

// Warm loads entries into the cache by replaying the event stream, falling
// back to the repository when no stream is configured or replay fails.
func (c *BoardCache) Warm(ctx context.Context) error {
	if c.stream != nil {
		if err := c.warmFromStream(ctx); err != nil {
			c.logger.Info("stream replay failed, falling back to repository", "error", err)
		} else {
			c.dropFinished()
			return nil
		}
	}

	if c.repo == nil {
		c.logger.Info("neither stream nor repository configured, board cache remains empty")
		return nil
	}
	return c.warmFromRepo(ctx)
}

func (c *BoardCache) warmFromStream(ctx context.Context) error {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Info("stream panic recovered, falling back to repository", "panic", r)
		}
	}()

	c.logger.Info("warming board cache from event stream")

	messages, err := c.stream.Fetch(ctx, 10000)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, msg := range messages {
		c.applyEventLocked(msg.Data)
	}

	c.logger.Info("board cache warmed from stream", "entries", len(c.entries))
	return nil
}

func (c *BoardCache) warmFromRepo(ctx context.Context) error {
	c.logger.Info("warming board cache from repository")

	entries, err := c.repo.List(ctx, EntryFilter{})
	if err != nil {
		c.logger.Info("cannot warm board cache from repository, cache remains empty", "error", err)
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range entries {
		if entry.Done() {
			continue
		}
		c.setLocked(entry)
	}

	c.logger.Info("board cache warmed from repository", "count", len(c.entries))
	return nil
}

// Apply folds one live event into the cache. Wired as the subscriber
// handler for the kitchen entries topic.
func (c *BoardCache) Apply(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyEventLocked(data)
}

func (c *BoardCache) applyEventLocked(data []byte) {
	var baseEvent struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(data, &baseEvent); err != nil {
		c.logger.Error("cannot unmarshal event type", "error", err)
		return
	}

	switch baseEvent.EventType {
	case event.EventKitchenEntryCreated:
		c.handleCreatedLocked(data)
	case event.EventKitchenEntryStatusChange:
		c.handleStatusChangedLocked(data)
	default:
		// Unknown event types are ignored for forward compatibility.
	}
}

func (c *BoardCache) handleCreatedLocked(data []byte) {
	var evt event.KitchenEntryCreatedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		c.logger.Error("cannot unmarshal entry created event", "error", err)
		return
	}

	entryID, _ := uuid.Parse(evt.EntryID)
	orderID, _ := uuid.Parse(evt.OrderID)
	orderItemID, _ := uuid.Parse(evt.OrderItemID)

	c.setLocked(&QueueEntry{
		ID:          entryID,
		OrderID:     orderID,
		OrderItemID: orderItemID,
		Status:      evt.Status,
		Quantity:    evt.Quantity,
		Note:        evt.Note,
		DishName:    evt.DishName,
		TableNumber: evt.TableNumber,
		CreatedAt:   evt.OccurredAt,
		UpdatedAt:   evt.OccurredAt,
	})
}

func (c *BoardCache) handleStatusChangedLocked(data []byte) {
	var evt event.KitchenEntryStatusChangedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		c.logger.Error("cannot unmarshal status change event", "error", err)
		return
	}

	entryID, _ := uuid.Parse(evt.EntryID)
	entry := c.entries[entryID]
	if entry == nil {
		orderID, _ := uuid.Parse(evt.OrderID)
		orderItemID, _ := uuid.Parse(evt.OrderItemID)
		entry = &QueueEntry{
			ID:          entryID,
			OrderID:     orderID,
			OrderItemID: orderItemID,
			DishName:    evt.DishName,
			TableNumber: evt.TableNumber,
			CreatedAt:   evt.OccurredAt,
		}
	}

	entry.Status = evt.NewStatus
	entry.UpdatedAt = evt.OccurredAt
	entry.StartedAt = evt.StartedAt
	entry.CompletedAt = evt.CompletedAt

	c.setLocked(entry)
}

// dropFinished removes served and cancelled entries after a stream replay so
// the board only shows work still in flight.
func (c *BoardCache) dropFinished() {
	c.mu.Lock()
	defer c.mu.Unlock()

	var removed int
	for id, entry := range c.entries {
		if entry.Status == queuestatus.Statuses.Served.Name || entry.Status == queuestatus.Statuses.Cancelled.Name {
			c.removeLocked(id)
			removed++
		}
	}
	c.logger.Info("dropped finished entries from board cache", "count", removed)
}

// Set updates or adds an entry.
func (c *BoardCache) Set(entry *QueueEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(entry)
}

func (c *BoardCache) setLocked(entry *QueueEntry) {
	if entry == nil {
		return
	}

	if old, exists := c.entries[entry.ID]; exists {
		c.removeFromStatusIndex(old.Status, entry.ID)
		c.removeFromOrderIndex(old.OrderID, entry.ID)
	}

	c.entries[entry.ID] = entry
	c.byStatus[entry.Status] = append(c.byStatus[entry.Status], entry.ID)
	c.byOrder[entry.OrderID] = append(c.byOrder[entry.OrderID], entry.ID)
}

// Get retrieves an entry by ID, or nil.
func (c *BoardCache) Get(entryID uuid.UUID) *QueueEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[entryID]
}

// ByStatus returns the cached entries holding the given status.
func (c *BoardCache) ByStatus(status string) []*QueueEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collect(c.byStatus[status])
}

// ByOrder returns the cached entries of one order.
func (c *BoardCache) ByOrder(orderID uuid.UUID) []*QueueEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collect(c.byOrder[orderID])
}

// All returns every cached entry.
func (c *BoardCache) All() []*QueueEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*QueueEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		result = append(result, entry)
	}
	return result
}

// Remove deletes an entry from the cache.
func (c *BoardCache) Remove(entryID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(entryID)
}

// Count returns the number of cached entries.
func (c *BoardCache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *BoardCache) collect(ids []uuid.UUID) []*QueueEntry {
	result := make([]*QueueEntry, 0, len(ids))
	for _, id := range ids {
		if entry := c.entries[id]; entry != nil {
			result = append(result, entry)
		}
	}
	return result
}

func (c *BoardCache) removeLocked(entryID uuid.UUID) {
	entry := c.entries[entryID]
	if entry == nil {
		return
	}
	c.removeFromStatusIndex(entry.Status, entryID)
	c.removeFromOrderIndex(entry.OrderID, entryID)
	delete(c.entries, entryID)
}

func (c *BoardCache) removeFromStatusIndex(status string, entryID uuid.UUID) {
	ids := c.byStatus[status]
	for i, id := range ids {
		if id == entryID {
			c.byStatus[status] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

func (c *BoardCache) removeFromOrderIndex(orderID, entryID uuid.UUID) {
	ids := c.byOrder[orderID]
	for i, id := range ids {
		if id == entryID {
			c.byOrder[orderID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}
