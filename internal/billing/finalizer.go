package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/comandaclub/comanda/internal/fault"
	"github.com/comandaclub/comanda/internal/order"
	"github.com/comandaclub/comanda/pkg/enums/orderstatus"
	"github.com/comandaclub/comanda/pkg/event"
)

const defaultTaxRate = "0.10"

// OrderService is the finalizer's view of the order workflow.
type OrderService interface {
	Get(ctx context.Context, orderID uuid.UUID) (*order.Order, error)
	MarkDelivered(ctx context.Context, orderID uuid.UUID) (*order.Order, error)
}

// Finalizer issues bills. A bill freezes the order's total at issue time;
// issuing also pushes a ready order to delivered, since settling at the
// table implies the food arrived. Closing stays the workflow's job.
type Finalizer struct {
	bills     BillRepo
	orders    OrderService
	taxRate   decimal.Decimal
	publisher events.Publisher
	logger    apt.Logger
}

func NewFinalizer(bills BillRepo, orders OrderService, config *apt.Config, publisher events.Publisher, logger apt.Logger) (*Finalizer, error) {
	rateStr := config.GetStringOrDef("billing.tax_rate", defaultTaxRate)
	rate, err := decimal.NewFromString(rateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid billing.tax_rate %q: %w", rateStr, err)
	}
	if rate.IsNegative() {
		return nil, fmt.Errorf("billing.tax_rate must not be negative, got %s", rateStr)
	}

	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Finalizer{
		bills:     bills,
		orders:    orders,
		taxRate:   rate,
		publisher: publisher,
		logger:    logger,
	}, nil
}

// Finalize issues the bill for an order in ready or delivered state.
// Subtotal is the order total minus the discount; tax is applied on the
// discounted subtotal and rounded to 2 places.
func (f *Finalizer) Finalize(ctx context.Context, orderID uuid.UUID, discount decimal.Decimal, notes string) (*Bill, error) {
	ord, err := f.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if ord.Status != orderstatus.Statuses.Ready.Name && ord.Status != orderstatus.Statuses.Delivered.Name {
		return nil, fault.IllegalTransition("order", ord.Status, "billed")
	}

	existing, err := f.bills.GetByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fault.ErrBillAlreadyExists
	}

	if discount.IsNegative() || discount.GreaterThan(ord.Total) {
		return nil, fault.ErrInvalidDiscount
	}

	subtotal := ord.Total.Sub(discount)
	tax := subtotal.Mul(f.taxRate).Round(2)

	bill := NewBill()
	bill.OrderID = orderID
	bill.Subtotal = subtotal
	bill.Discount = discount
	bill.Tax = tax
	bill.Total = subtotal.Add(tax)
	bill.Notes = notes
	bill.BeforeCreate()

	// The unique index closes the race two concurrent finalize calls leave
	// open after the GetByOrder check.
	if err := f.bills.Create(ctx, bill); err != nil {
		return nil, err
	}

	if ord.Status == orderstatus.Statuses.Ready.Name {
		if _, err := f.orders.MarkDelivered(ctx, orderID); err != nil {
			f.logger.Errorf("cannot mark order %s delivered after billing: %v", orderID, err)
		}
	}

	f.publishIssued(ctx, bill)
	return bill, nil
}

// ByOrder returns the bill issued for an order.
func (f *Finalizer) ByOrder(ctx context.Context, orderID uuid.UUID) (*Bill, error) {
	bill, err := f.bills.GetByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if bill == nil {
		return nil, fault.ErrNotFound
	}
	return bill, nil
}

// HasBill reports whether a bill was issued for the order. Satisfies the
// workflow's close-time check.
func (f *Finalizer) HasBill(ctx context.Context, orderID uuid.UUID) (bool, error) {
	bill, err := f.bills.GetByOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	return bill != nil, nil
}

func (f *Finalizer) publishIssued(ctx context.Context, bill *Bill) {
	if f.publisher == nil {
		return
	}
	evt := event.BillIssuedEvent{
		EventType:  event.EventBillIssued,
		OccurredAt: time.Now(),
		BillID:     bill.ID.String(),
		OrderID:    bill.OrderID.String(),
		Subtotal:   bill.Subtotal.String(),
		Discount:   bill.Discount.String(),
		Tax:        bill.Tax.String(),
		Total:      bill.Total.String(),
	}
	payload, _ := json.Marshal(evt)
	if err := f.publisher.Publish(ctx, event.BillsTopic, payload); err != nil {
		f.logger.Errorf("Failed to publish bill issued event: %v", err)
	}
}
