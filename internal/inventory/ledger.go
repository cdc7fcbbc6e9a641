package inventory

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
	"github.com/comandaclub/comanda/pkg/event"
)

const (
	maxAttempts  = 3
	retryBackoff = 10 * time.Millisecond
)

// Ledger tracks perishable stock batches and arbitrates concurrent
// reservation and consumption. Batches are the synchronization point: every
// write is a version-guarded compare-and-swap, retried a bounded number of
// times before the conflict surfaces as transient.
//
// A reservation is a soft hold (batch.Reserved), spread over the
// ingredient's batches earliest-expiry-first. Consumption converts the hold
// into a real deduction. The hold-to-batch mapping is kept explicitly as
// Reservation rows keyed by order, so release and consume never have to
// re-derive which lot was promised to whom.
type Ledger struct {
	batches      BatchRepo
	reservations ReservationRepo
	publisher    events.Publisher
	logger       apt.Logger

	lowStockThreshold decimal.Decimal
}

func NewLedger(batches BatchRepo, reservations ReservationRepo, publisher events.Publisher, logger apt.Logger) *Ledger {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Ledger{
		batches:      batches,
		reservations: reservations,
		publisher:    publisher,
		logger:       logger,
	}
}

// SetLowStockThreshold enables low-stock events once an ingredient's
// unreserved total drops under the given value. Zero disables the check.
func (l *Ledger) SetLowStockThreshold(threshold decimal.Decimal) {
	l.lowStockThreshold = threshold
}

// AddBatch registers a new delivery lot.
func (l *Ledger) AddBatch(ctx context.Context, batch *Batch) error {
	var problems []string
	if batch.IngredientID == uuid.Nil {
		problems = append(problems, "ingredient_id is required")
	}
	if batch.Quantity.IsNegative() {
		problems = append(problems, "quantity cannot be negative")
	}
	if batch.UnitPrice.IsNegative() {
		problems = append(problems, "unit_price cannot be negative")
	}
	if batch.ExpiresAt.IsZero() {
		problems = append(problems, "expires_at is required")
	}
	if err := fault.Validation(problems); err != nil {
		return err
	}

	batch.Reserved = decimal.Zero
	batch.BeforeCreate()
	return l.batches.Create(ctx, batch)
}

// Adjust corrects a batch's quantity on hand (delivery correction, waste).
// The adjusted quantity may not drop under the reserved amount.
func (l *Ledger) Adjust(ctx context.Context, batchID uuid.UUID, delta decimal.Decimal) (*Batch, error) {
	var adjusted *Batch
	err := l.applyOnBatch(ctx, batchID, func(b *Batch) error {
		next := b.Quantity.Add(delta)
		if next.IsNegative() || next.LessThan(b.Reserved) {
			return fault.Validation([]string{"adjustment would drop quantity below reserved stock"})
		}
		b.Quantity = next
		adjusted = b
		return nil
	})
	return adjusted, err
}

// Reserve places a soft hold of qty on the ingredient, walking batches
// earliest-expiry-first. The operation is all-or-nothing: when the batches
// cannot cover the full quantity, every hold taken during this call is
// rolled back and no reservation rows are written.
func (l *Ledger) Reserve(ctx context.Context, orderID, ingredientID uuid.UUID, qty decimal.Decimal) error {
	var problems []string
	if orderID == uuid.Nil {
		problems = append(problems, "order_id is required")
	}
	if ingredientID == uuid.Nil {
		problems = append(problems, "ingredient_id is required")
	}
	if !qty.IsPositive() {
		problems = append(problems, "quantity must be greater than 0")
	}
	if err := fault.Validation(problems); err != nil {
		return err
	}

	batches, err := l.batches.ListByIngredient(ctx, ingredientID)
	if err != nil {
		return err
	}

	remaining := qty
	var journal []hold
	for _, b := range batches {
		if !remaining.IsPositive() {
			break
		}
		took, err := l.holdOnBatch(ctx, b.ID, remaining)
		if err != nil {
			l.undoHolds(ctx, journal)
			return err
		}
		if took.IsPositive() {
			journal = append(journal, hold{batchID: b.ID, qty: took})
			remaining = remaining.Sub(took)
		}
	}

	if remaining.IsPositive() {
		l.undoHolds(ctx, journal)
		return fault.InsufficientStock(ingredientID, qty.String(), qty.Sub(remaining).String())
	}

	var created []*Reservation
	for _, h := range journal {
		res := NewReservation(orderID, ingredientID, h.batchID, h.qty)
		if err := l.reservations.Create(ctx, res); err != nil {
			for _, r := range created {
				if delErr := l.reservations.Delete(ctx, r.ID); delErr != nil {
					l.logger.Errorf("cannot undo reservation row %s: %v", r.ID, delErr)
				}
			}
			l.undoHolds(ctx, journal)
			return err
		}
		created = append(created, res)
	}

	return nil
}

// Release gives back part of an order's hold on an ingredient without
// consuming it. Used when an order is cancelled between reservation and
// consumption. Releasing more than the order holds is a contract violation.
func (l *Ledger) Release(ctx context.Context, orderID, ingredientID uuid.UUID, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return fault.Validation([]string{"quantity must be greater than 0"})
	}

	rows, err := l.reservations.ListByOrderAndIngredient(ctx, orderID, ingredientID)
	if err != nil {
		return err
	}
	if reservedTotal(rows).LessThan(qty) {
		return fault.Invariant("releasing %s of ingredient %s but order %s holds %s",
			qty, ingredientID, orderID, reservedTotal(rows))
	}

	remaining := qty
	for _, row := range rows {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(row.Quantity, remaining)
		if err := l.settleRow(ctx, row, take, false); err != nil {
			return err
		}
		remaining = remaining.Sub(take)
	}
	return nil
}

// ReleaseOrder drops every hold the order still has.
func (l *Ledger) ReleaseOrder(ctx context.Context, orderID uuid.UUID) error {
	rows, err := l.reservations.ListByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := l.settleRow(ctx, row, row.Quantity, false); err != nil {
			return err
		}
	}
	return nil
}

// Consume converts qty of the order's hold into a permanent stock
// deduction. Consuming more than the order has reserved is a programming
// error, not a business failure.
func (l *Ledger) Consume(ctx context.Context, orderID, ingredientID uuid.UUID, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return fault.Validation([]string{"quantity must be greater than 0"})
	}

	rows, err := l.reservations.ListByOrderAndIngredient(ctx, orderID, ingredientID)
	if err != nil {
		return err
	}
	if reservedTotal(rows).LessThan(qty) {
		return fault.Invariant("consuming %s of ingredient %s but order %s reserved only %s",
			qty, ingredientID, orderID, reservedTotal(rows))
	}

	remaining := qty
	for _, row := range rows {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(row.Quantity, remaining)
		if err := l.settleRow(ctx, row, take, true); err != nil {
			return err
		}
		remaining = remaining.Sub(take)
	}

	l.checkLowStock(ctx, ingredientID)
	return nil
}

// ConsumeOrder settles every hold the order still has, deducting stock.
// Called when the order is delivered.
func (l *Ledger) ConsumeOrder(ctx context.Context, orderID uuid.UUID) error {
	rows, err := l.reservations.ListByOrder(ctx, orderID)
	if err != nil {
		return err
	}

	touched := make(map[uuid.UUID]struct{})
	for _, row := range rows {
		if err := l.settleRow(ctx, row, row.Quantity, true); err != nil {
			return err
		}
		touched[row.IngredientID] = struct{}{}
	}

	for ingredientID := range touched {
		l.checkLowStock(ctx, ingredientID)
	}
	return nil
}

// ReservedForOrder reports the order's current hold on one ingredient.
func (l *Ledger) ReservedForOrder(ctx context.Context, orderID, ingredientID uuid.UUID) (decimal.Decimal, error) {
	rows, err := l.reservations.ListByOrderAndIngredient(ctx, orderID, ingredientID)
	if err != nil {
		return decimal.Zero, err
	}
	return reservedTotal(rows), nil
}

// ListExpiring returns batches whose expiry falls inside the window.
func (l *Ledger) ListExpiring(ctx context.Context, window time.Duration) ([]*Batch, error) {
	return l.batches.ListExpiringBefore(ctx, time.Now().Add(window))
}

// StockLevel is an ingredient's unreserved total across batches.
type StockLevel struct {
	IngredientID uuid.UUID       `json:"ingredient_id"`
	Available    decimal.Decimal `json:"available"`
}

// ListLowStock returns ingredients whose unreserved total sits under the
// configured threshold.
func (l *Ledger) ListLowStock(ctx context.Context) ([]StockLevel, error) {
	if l.lowStockThreshold.IsZero() {
		return nil, nil
	}

	batches, err := l.batches.List(ctx)
	if err != nil {
		return nil, err
	}

	totals := make(map[uuid.UUID]decimal.Decimal)
	for _, b := range batches {
		totals[b.IngredientID] = totals[b.IngredientID].Add(b.Available())
	}

	var result []StockLevel
	for ingredientID, available := range totals {
		if available.LessThan(l.lowStockThreshold) {
			result = append(result, StockLevel{IngredientID: ingredientID, Available: available})
		}
	}
	return result, nil
}

type hold struct {
	batchID uuid.UUID
	qty     decimal.Decimal
}

// holdOnBatch reserves up to want on one batch under its version guard.
// Returns how much was actually taken; zero when the batch has nothing
// available.
func (l *Ledger) holdOnBatch(ctx context.Context, batchID uuid.UUID, want decimal.Decimal) (decimal.Decimal, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		b, err := l.batches.Get(ctx, batchID)
		if err != nil {
			return decimal.Zero, err
		}
		if b == nil {
			return decimal.Zero, nil
		}

		available := b.Available()
		if !available.IsPositive() {
			return decimal.Zero, nil
		}

		take := decimal.Min(available, want)
		b.Reserved = b.Reserved.Add(take)
		b.BeforeUpdate()

		err = l.batches.Save(ctx, b)
		if err == nil {
			return take, nil
		}
		if !errors.Is(err, fault.ErrVersionConflict) {
			return decimal.Zero, err
		}
		sleepJitter()
	}
	return decimal.Zero, fault.ErrVersionConflict
}

// undoHolds walks back every hold taken during a failed reservation. A
// rollback that itself keeps conflicting is logged; the reserved counter is
// never left silently inflated without a trace.
func (l *Ledger) undoHolds(ctx context.Context, journal []hold) {
	for _, h := range journal {
		err := l.applyOnBatch(ctx, h.batchID, func(b *Batch) error {
			b.Reserved = b.Reserved.Sub(h.qty)
			if b.Reserved.IsNegative() {
				return fault.Invariant("rollback drove batch %s reserved negative", b.ID)
			}
			return nil
		})
		if err != nil {
			l.logger.Errorf("cannot roll back hold of %s on batch %s: %v", h.qty, h.batchID, err)
		}
	}
}

// settleRow settles take units of one reservation row: always decrements the
// batch's reserved counter, and when consume is set also deducts quantity on
// hand. The row shrinks, or disappears once fully settled.
func (l *Ledger) settleRow(ctx context.Context, row *Reservation, take decimal.Decimal, consume bool) error {
	if take.GreaterThan(row.Quantity) {
		return fault.Invariant("settling %s against reservation row %s holding %s", take, row.ID, row.Quantity)
	}

	err := l.applyOnBatch(ctx, row.BatchID, func(b *Batch) error {
		b.Reserved = b.Reserved.Sub(take)
		if b.Reserved.IsNegative() {
			return fault.Invariant("batch %s reserved would go negative", b.ID)
		}
		if consume {
			b.Quantity = b.Quantity.Sub(take)
			if b.Quantity.IsNegative() {
				return fault.Invariant("batch %s quantity would go negative", b.ID)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	row.Quantity = row.Quantity.Sub(take)
	if row.Quantity.IsZero() {
		return l.reservations.Delete(ctx, row.ID)
	}
	row.UpdatedAt = time.Now()
	return l.reservations.Save(ctx, row)
}

// applyOnBatch runs a read-mutate-save cycle on one batch, re-reading on
// version conflict up to maxAttempts.
func (l *Ledger) applyOnBatch(ctx context.Context, batchID uuid.UUID, mutate func(*Batch) error) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		b, err := l.batches.Get(ctx, batchID)
		if err != nil {
			return err
		}
		if b == nil {
			return fault.ErrNotFound
		}

		if err := mutate(b); err != nil {
			return err
		}
		b.BeforeUpdate()

		err = l.batches.Save(ctx, b)
		if err == nil {
			return nil
		}
		if !errors.Is(err, fault.ErrVersionConflict) {
			return err
		}
		lastErr = err
		sleepJitter()
	}
	return lastErr
}

func (l *Ledger) checkLowStock(ctx context.Context, ingredientID uuid.UUID) {
	if l.publisher == nil || l.lowStockThreshold.IsZero() {
		return
	}

	batches, err := l.batches.ListByIngredient(ctx, ingredientID)
	if err != nil {
		l.logger.Errorf("cannot check stock level for %s: %v", ingredientID, err)
		return
	}

	available := decimal.Zero
	for _, b := range batches {
		available = available.Add(b.Available())
	}
	if available.GreaterThanOrEqual(l.lowStockThreshold) {
		return
	}

	evt := event.StockLevelEvent{
		EventType:    event.EventStockLow,
		OccurredAt:   time.Now(),
		IngredientID: ingredientID.String(),
		Available:    available.String(),
		Threshold:    l.lowStockThreshold.String(),
	}
	payload, _ := json.Marshal(evt)
	if err := l.publisher.Publish(ctx, event.InventoryTopic, payload); err != nil {
		l.logger.Errorf("Failed to publish low stock event: %v", err)
	}
}

func reservedTotal(rows []*Reservation) decimal.Decimal {
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Quantity)
	}
	return total
}

func sleepJitter() {
	time.Sleep(retryBackoff + time.Duration(rand.Intn(int(retryBackoff))))
}
