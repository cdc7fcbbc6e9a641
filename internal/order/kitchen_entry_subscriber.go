package order

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/google/uuid"

	"github.com/comandaclub/comanda/pkg/enums/queuestatus"
	"github.com/comandaclub/comanda/pkg/event"
)

// KitchenEntrySubscriber mirrors kitchen queue entry status onto the owning
// order item, so waiters see per-dish progress without polling the kitchen.
type KitchenEntrySubscriber struct {
	subscriber events.Subscriber
	items      OrderItemRepo
	logger     apt.Logger
}

func NewKitchenEntrySubscriber(sub events.Subscriber, items OrderItemRepo, logger apt.Logger) *KitchenEntrySubscriber {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &KitchenEntrySubscriber{
		subscriber: sub,
		items:      items,
		logger:     logger,
	}
}

func (s *KitchenEntrySubscriber) Start(ctx context.Context) error {
	s.log().Info("starting kitchen entry subscriber", "topic", event.KitchenEntriesTopic)
	if s.subscriber == nil {
		return fmt.Errorf("kitchen entry subscriber not configured")
	}
	return s.subscriber.Subscribe(ctx, event.KitchenEntriesTopic, s.handleEvent)
}

func (s *KitchenEntrySubscriber) handleEvent(ctx context.Context, msg []byte) error {
	var metadata event.KitchenEntryEventMetadata
	if err := json.Unmarshal(msg, &metadata); err != nil {
		s.log().Info("invalid kitchen entry event", "error", err)
		return nil
	}

	switch metadata.EventType {
	case event.EventKitchenEntryStatusChange:
		return s.handleStatusChange(ctx, msg)
	case event.EventKitchenEntryCreated:
		// Entry creation was triggered by our own send-to-kitchen.
		return nil
	default:
		s.log().Debug("unknown kitchen entry event type", "event_type", metadata.EventType)
		return nil
	}
}

func (s *KitchenEntrySubscriber) handleStatusChange(ctx context.Context, msg []byte) error {
	var evt event.KitchenEntryStatusChangedEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		s.log().Info("invalid status change event", "error", err)
		return nil
	}

	if evt.OrderItemID == "" {
		s.logger.Debug("status change event missing order_item_id", "entry_id", evt.EntryID)
		return nil
	}

	itemID, err := uuid.Parse(evt.OrderItemID)
	if err != nil {
		s.logger.Info("invalid order_item_id in event", "order_item_id", evt.OrderItemID)
		return nil
	}

	item, err := s.items.Get(ctx, itemID)
	if err != nil || item == nil {
		s.logger.Info("cannot find order item for entry", "order_item_id", itemID, "error", err)
		return nil
	}

	oldStatus := item.Status
	switch evt.NewStatus {
	case queuestatus.Statuses.InProgress.Name:
		item.MarkAsPreparing()
	case queuestatus.Statuses.Ready.Name:
		item.MarkAsReady()
	case queuestatus.Statuses.Served.Name:
		item.MarkAsDelivered()
	case queuestatus.Statuses.Cancelled.Name:
		item.Cancel()
	default:
		s.logger.Debug("no item mapping for kitchen status", "status", evt.NewStatus)
		return nil
	}

	if err := s.items.Save(ctx, item); err != nil {
		s.logger.Info("failed to update order item status", "order_item_id", itemID, "error", err)
		return err
	}

	s.logger.Info("order item status updated from kitchen event",
		"order_item_id", itemID,
		"old_status", oldStatus,
		"new_status", item.Status,
		"entry_id", evt.EntryID,
	)
	return nil
}

func (s *KitchenEntrySubscriber) log() apt.Logger {
	return s.logger.With("component", "KitchenEntrySubscriber")
}
