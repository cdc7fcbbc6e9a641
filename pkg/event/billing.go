package event

import "time"

const (
	BillsTopic      = "billing.bills"
	EventBillIssued = "billing.bill.issued"
)

// BillIssuedEvent announces a finalized bill for an order.
type BillIssuedEvent struct {
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	BillID     string    `json:"bill_id"`
	OrderID    string    `json:"order_id"`
	Subtotal   string    `json:"subtotal"`
	Discount   string    `json:"discount,omitempty"`
	Tax        string    `json:"tax"`
	Total      string    `json:"total"`
}
