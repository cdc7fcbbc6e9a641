package order

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/comandaclub/comanda/internal/fault"
	"github.com/comandaclub/comanda/internal/kitchen"
	"github.com/comandaclub/comanda/pkg/enums/orderstatus"
	"github.com/comandaclub/comanda/pkg/event"
)

const (
	maxAttempts  = 3
	retryBackoff = 10 * time.Millisecond
)

// Deps bundles the workflow's collaborators.
type Deps struct {
	Orders    OrderRepo
	Items     OrderItemRepo
	Tables    TableRegistry
	Ledger    StockLedger
	Queue     KitchenQueue
	Dishes    DishLookup
	Staff     StaffLookup
	Publisher events.Publisher
}

// Workflow owns the order aggregate and drives the table registry, the
// inventory ledger and the kitchen queue through the order's lifecycle.
// Multi-step operations compensate their own partial effects: a failure
// midway unwinds what this call did and leaves no residue.
type Workflow struct {
	orders    OrderRepo
	items     OrderItemRepo
	tables    TableRegistry
	ledger    StockLedger
	queue     KitchenQueue
	bills     BillChecker
	dishes    DishLookup
	staff     StaffLookup
	publisher events.Publisher
	logger    apt.Logger
}

func NewWorkflow(deps Deps, logger apt.Logger) *Workflow {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Workflow{
		orders:    deps.Orders,
		items:     deps.Items,
		tables:    deps.Tables,
		ledger:    deps.Ledger,
		queue:     deps.Queue,
		dishes:    deps.Dishes,
		staff:     deps.Staff,
		publisher: deps.Publisher,
		logger:    logger,
	}
}

// SetBillChecker wires billing in after construction; billing is built on
// top of the workflow, so one side attaches late.
func (w *Workflow) SetBillChecker(bills BillChecker) {
	w.bills = bills
}

// Open starts an order on a table, occupying it in the same logical step.
// The table flip happens first; a failed order insert frees it again.
func (w *Workflow) Open(ctx context.Context, tableID, waiterID uuid.UUID) (*Order, error) {
	var problems []string
	if tableID == uuid.Nil {
		problems = append(problems, "table_id is required")
	}
	if waiterID == uuid.Nil {
		problems = append(problems, "waiter_id is required")
	}
	if err := fault.Validation(problems); err != nil {
		return nil, err
	}

	if w.staff != nil {
		exists, err := w.staff.Exists(ctx, waiterID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fault.Validation([]string{"waiter does not exist"})
		}
	}

	table, err := w.tables.Get(ctx, tableID)
	if err != nil {
		return nil, err
	}

	// The table flip is the real guard; this catches a table freed by hand
	// while its order is still open.
	open, err := w.orders.ListOpenByTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if len(open) > 0 {
		return nil, fault.ErrTableUnavailable
	}

	if err := w.tables.Occupy(ctx, tableID); err != nil {
		return nil, err
	}

	order := NewOrder()
	order.TableID = tableID
	order.WaiterID = waiterID
	order.TableNumber = table.Number
	order.BeforeCreate()

	if err := w.orders.Create(ctx, order); err != nil {
		if freeErr := w.tables.Free(ctx, tableID); freeErr != nil {
			w.logger.Errorf("cannot free table %s after failed order insert: %v", tableID, freeErr)
		}
		return nil, err
	}

	w.publishLifecycle(ctx, order, event.EventOrderOpened, "")
	return order, nil
}

// Get returns one order.
func (w *Workflow) Get(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	order, err := w.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fault.ErrNotFound
	}
	return order, nil
}

// List returns orders matching the filter.
func (w *Workflow) List(ctx context.Context, filter OrderFilter) ([]*Order, error) {
	return w.orders.List(ctx, filter)
}

// Items returns the order's current items.
func (w *Workflow) Items(ctx context.Context, orderID uuid.UUID) ([]*OrderItem, error) {
	if _, err := w.Get(ctx, orderID); err != nil {
		return nil, err
	}
	return w.items.ListByOrder(ctx, orderID)
}

// AddItem appends a dish line, snapshotting name, price, cost and the
// recipe's ingredient requirements. Allowed while the order is created or
// in_kitchen; the total is recomputed under the order's version guard.
func (w *Workflow) AddItem(ctx context.Context, orderID, dishID uuid.UUID, quantity int, note string) (*OrderItem, error) {
	var problems []string
	if dishID == uuid.Nil {
		problems = append(problems, "dish_id is required")
	}
	if quantity <= 0 {
		problems = append(problems, "quantity must be greater than 0")
	}
	if err := fault.Validation(problems); err != nil {
		return nil, err
	}

	order, err := w.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.CanMutateItems() {
		return nil, fault.IllegalTransition("order", order.Status, "item_change")
	}

	dish, err := w.dishes.Dish(ctx, dishID)
	if err != nil {
		return nil, err
	}

	item := NewOrderItem()
	item.OrderID = orderID
	item.DishID = dishID
	item.DishName = dish.Name
	item.Quantity = quantity
	item.Price = dish.Price
	item.Cost = dish.Cost
	item.Note = note
	item.Requirements = dish.Requirements
	item.BeforeCreate()

	if err := w.items.Create(ctx, item); err != nil {
		return nil, err
	}

	if err := w.recomputeTotal(ctx, orderID); err != nil {
		if delErr := w.items.Delete(ctx, item.ID); delErr != nil {
			w.logger.Errorf("cannot undo item %s after failed total recompute: %v", item.ID, delErr)
		}
		return nil, err
	}

	return item, nil
}

// RemoveItem deletes a line and recomputes the total. An item removed after
// the order went to the kitchen keeps its queue entry and its reservation;
// the kitchen cancels it by hand. Behavior kept from the original flow.
func (w *Workflow) RemoveItem(ctx context.Context, orderID, itemID uuid.UUID) error {
	order, err := w.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if !order.CanMutateItems() {
		return fault.IllegalTransition("order", order.Status, "item_change")
	}

	item, err := w.items.Get(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil || item.OrderID != orderID {
		return fault.ErrNotFound
	}

	if err := w.items.Delete(ctx, itemID); err != nil {
		return err
	}
	return w.recomputeTotal(ctx, orderID)
}

// SendToKitchen reserves stock for every item's ingredients, seeds one queue
// entry per item and moves the order to in_kitchen. Any failing step unwinds
// the previous ones: a shortfall on the third ingredient releases the first
// two, a failed status flip removes the queue entries again.
func (w *Workflow) SendToKitchen(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	order, err := w.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != orderstatus.Statuses.Created.Name {
		return nil, fault.IllegalTransition("order", order.Status, orderstatus.Statuses.InKitchen.Name)
	}

	items, err := w.items.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fault.Validation([]string{"order has no items"})
	}

	if err := w.reserveForItems(ctx, orderID, items); err != nil {
		return nil, err
	}

	for _, item := range items {
		entry := kitchen.NewQueueEntry()
		entry.OrderID = orderID
		entry.OrderItemID = item.ID
		entry.DishID = item.DishID
		entry.Quantity = item.Quantity
		entry.Note = item.Note
		entry.DishName = item.DishName
		entry.TableNumber = order.TableNumber
		if err := w.queue.Enqueue(ctx, entry); err != nil {
			w.unwindKitchen(ctx, orderID)
			return nil, err
		}
	}

	updated, err := w.transition(ctx, orderID, func(o *Order) error {
		if o.Status != orderstatus.Statuses.Created.Name {
			return fault.IllegalTransition("order", o.Status, orderstatus.Statuses.InKitchen.Name)
		}
		o.Status = orderstatus.Statuses.InKitchen.Name
		return nil
	})
	if err != nil {
		w.unwindKitchen(ctx, orderID)
		return nil, err
	}

	w.publishLifecycle(ctx, updated, event.EventOrderStatusChanged, orderstatus.Statuses.Created.Name)
	return updated, nil
}

// AdvanceToPreparing moves in_kitchen to preparing. Driven by the kitchen
// aggregate signal, never by a client call; an order already preparing is a
// no-op so concurrent completions collapse to one transition.
func (w *Workflow) AdvanceToPreparing(ctx context.Context, orderID uuid.UUID) error {
	var previous string
	updated, err := w.transition(ctx, orderID, func(o *Order) error {
		switch o.Status {
		case orderstatus.Statuses.Preparing.Name:
			return nil
		case orderstatus.Statuses.InKitchen.Name:
			previous = o.Status
			o.Status = orderstatus.Statuses.Preparing.Name
			return nil
		default:
			return fault.IllegalTransition("order", o.Status, orderstatus.Statuses.Preparing.Name)
		}
	})
	if err != nil {
		return err
	}
	if previous != "" {
		w.publishLifecycle(ctx, updated, event.EventOrderStatusChanged, previous)
	}
	return nil
}

// MarkReady flags the order fully prepared. Normally follows preparing;
// in_kitchen is accepted as an operational shortcut.
func (w *Workflow) MarkReady(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	var previous string
	updated, err := w.transition(ctx, orderID, func(o *Order) error {
		switch o.Status {
		case orderstatus.Statuses.Ready.Name:
			return nil
		case orderstatus.Statuses.Preparing.Name, orderstatus.Statuses.InKitchen.Name:
			previous = o.Status
			o.Status = orderstatus.Statuses.Ready.Name
			return nil
		default:
			return fault.IllegalTransition("order", o.Status, orderstatus.Statuses.Ready.Name)
		}
	})
	if err != nil {
		return nil, err
	}
	if previous != "" {
		w.publishLifecycle(ctx, updated, event.EventOrderStatusChanged, previous)
	}
	return updated, nil
}

// MarkDelivered hands the order to the table and converts its reservations
// into real stock deductions.
func (w *Workflow) MarkDelivered(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	var previous string
	updated, err := w.transition(ctx, orderID, func(o *Order) error {
		switch o.Status {
		case orderstatus.Statuses.Delivered.Name:
			return nil
		case orderstatus.Statuses.Ready.Name:
			previous = o.Status
			o.Status = orderstatus.Statuses.Delivered.Name
			return nil
		default:
			return fault.IllegalTransition("order", o.Status, orderstatus.Statuses.Delivered.Name)
		}
	})
	if err != nil {
		return nil, err
	}
	if previous == "" {
		return updated, nil
	}

	if err := w.ledger.ConsumeOrder(ctx, orderID); err != nil {
		w.logger.Errorf("cannot consume reservations for order %s: %v", orderID, err)
		return nil, err
	}

	w.publishLifecycle(ctx, updated, event.EventOrderStatusChanged, previous)
	return updated, nil
}

// Close ends the order: requires an issued bill, stamps closed_at and frees
// the table. Terminal; nothing leaves closed.
func (w *Workflow) Close(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	order, err := w.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != orderstatus.Statuses.Ready.Name && order.Status != orderstatus.Statuses.Delivered.Name {
		return nil, fault.IllegalTransition("order", order.Status, orderstatus.Statuses.Closed.Name)
	}

	if w.bills != nil {
		issued, err := w.bills.HasBill(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if !issued {
			return nil, fault.ErrBillNotIssued
		}
	}

	var previous string
	updated, err := w.transition(ctx, orderID, func(o *Order) error {
		switch o.Status {
		case orderstatus.Statuses.Closed.Name:
			return nil
		case orderstatus.Statuses.Ready.Name, orderstatus.Statuses.Delivered.Name:
			previous = o.Status
			o.Status = orderstatus.Statuses.Closed.Name
			now := time.Now()
			o.ClosedAt = &now
			return nil
		default:
			return fault.IllegalTransition("order", o.Status, orderstatus.Statuses.Closed.Name)
		}
	})
	if err != nil {
		return nil, err
	}

	if err := w.tables.Free(ctx, updated.TableID); err != nil {
		w.logger.Errorf("cannot free table %s for closed order %s: %v", updated.TableID, orderID, err)
	}

	if previous != "" {
		w.publishLifecycle(ctx, updated, event.EventOrderClosed, previous)
	}
	return updated, nil
}

// Cancel aborts an order that has not reached preparation: releases its
// reservations, cancels its queue entries and frees the table.
func (w *Workflow) Cancel(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	order, err := w.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != orderstatus.Statuses.Created.Name && order.Status != orderstatus.Statuses.InKitchen.Name {
		return nil, fault.IllegalTransition("order", order.Status, orderstatus.Statuses.Cancelled.Name)
	}

	if err := w.ledger.ReleaseOrder(ctx, orderID); err != nil {
		return nil, err
	}
	if err := w.queue.CancelForOrder(ctx, orderID); err != nil {
		return nil, err
	}

	var previous string
	updated, err := w.transition(ctx, orderID, func(o *Order) error {
		switch o.Status {
		case orderstatus.Statuses.Cancelled.Name:
			return nil
		case orderstatus.Statuses.Created.Name, orderstatus.Statuses.InKitchen.Name:
			previous = o.Status
			o.Status = orderstatus.Statuses.Cancelled.Name
			return nil
		default:
			return fault.IllegalTransition("order", o.Status, orderstatus.Statuses.Cancelled.Name)
		}
	})
	if err != nil {
		return nil, err
	}

	if err := w.tables.Free(ctx, updated.TableID); err != nil {
		w.logger.Errorf("cannot free table %s for cancelled order %s: %v", updated.TableID, orderID, err)
	}

	if previous != "" {
		w.publishLifecycle(ctx, updated, event.EventOrderCancelled, previous)
	}
	return updated, nil
}

// reserveForItems aggregates ingredient requirements across items and
// reserves per ingredient. Failure releases everything this order holds.
func (w *Workflow) reserveForItems(ctx context.Context, orderID uuid.UUID, items []*OrderItem) error {
	var ingredientIDs []uuid.UUID
	totals := make(map[uuid.UUID]decimal.Decimal)
	for _, item := range items {
		factor := decimal.NewFromInt(int64(item.Quantity))
		for _, req := range item.Requirements {
			if _, seen := totals[req.IngredientID]; !seen {
				ingredientIDs = append(ingredientIDs, req.IngredientID)
			}
			totals[req.IngredientID] = totals[req.IngredientID].Add(req.Quantity.Mul(factor))
		}
	}

	for _, ingredientID := range ingredientIDs {
		if err := w.ledger.Reserve(ctx, orderID, ingredientID, totals[ingredientID]); err != nil {
			if relErr := w.ledger.ReleaseOrder(ctx, orderID); relErr != nil {
				w.logger.Errorf("cannot release reservations for order %s: %v", orderID, relErr)
			}
			return err
		}
	}
	return nil
}

// unwindKitchen drops queue entries and reservations after a failed
// send-to-kitchen.
func (w *Workflow) unwindKitchen(ctx context.Context, orderID uuid.UUID) {
	if err := w.queue.RemoveForOrder(ctx, orderID); err != nil {
		w.logger.Errorf("cannot remove queue entries for order %s: %v", orderID, err)
	}
	if err := w.ledger.ReleaseOrder(ctx, orderID); err != nil {
		w.logger.Errorf("cannot release reservations for order %s: %v", orderID, err)
	}
}

// recomputeTotal rewrites the order total as the exact sum of line totals,
// under the order's version guard.
func (w *Workflow) recomputeTotal(ctx context.Context, orderID uuid.UUID) error {
	_, err := w.transition(ctx, orderID, func(o *Order) error {
		if !o.CanMutateItems() {
			return fault.IllegalTransition("order", o.Status, "item_change")
		}
		items, err := w.items.ListByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		total := decimal.Zero
		for _, item := range items {
			total = total.Add(item.LineTotal())
		}
		o.Total = total
		return nil
	})
	return err
}

// transition runs a read-mutate-save cycle on the order, re-reading on
// version conflict up to maxAttempts. A mutation that leaves the order
// unchanged skips the save.
func (w *Workflow) transition(ctx context.Context, orderID uuid.UUID, mutate func(*Order) error) (*Order, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		order, err := w.orders.Get(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if order == nil {
			return nil, fault.ErrNotFound
		}

		previousStatus := order.Status
		previousTotal := order.Total
		if err := mutate(order); err != nil {
			return nil, err
		}
		if order.Status == previousStatus && order.Total.Equal(previousTotal) {
			return order, nil
		}
		order.BeforeUpdate()

		err = w.orders.Save(ctx, order)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, fault.ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
		time.Sleep(retryBackoff + time.Duration(rand.Intn(int(retryBackoff))))
	}
	return nil, lastErr
}

func (w *Workflow) publishLifecycle(ctx context.Context, order *Order, eventType, previousStatus string) {
	if w.publisher == nil {
		return
	}
	evt := event.OrderLifecycleEvent{
		EventType:      eventType,
		OccurredAt:     time.Now(),
		OrderID:        order.ID.String(),
		TableID:        order.TableID.String(),
		NewStatus:      order.Status,
		PreviousStatus: previousStatus,
		Total:          order.Total.String(),
	}
	payload, _ := json.Marshal(evt)
	if err := w.publisher.Publish(ctx, event.OrdersTopic, payload); err != nil {
		w.logger.Errorf("Failed to publish order lifecycle event: %v", err)
	}
}
