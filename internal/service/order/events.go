package order

import (
	"time"
)

// Lifecycle event types published after successful transitions. External
// collaborators (invoice generation, notifications) subscribe to these; the
// workflow never waits for them.
const (
	EventTypeCreated              = "order.created"
	EventTypeApproved             = "order.approved"
	EventTypeDownpaymentConfirmed = "order.downpayment_confirmed"
	EventTypeConfirmed            = "order.confirmed"
	EventTypeShipped              = "order.shipped"
	EventTypeCancelled            = "order.cancelled"
)

// LifecycleEvent is emitted on the bus after a transition commits. It carries
// enough data for document generation and notification content without a
// read-back.
type LifecycleEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`

	OrderID    int64  `json:"order_id"`
	CustomerID int64  `json:"customer_id"`
	BucketID   int64  `json:"bucket_id"`
	Quantity   int    `json:"quantity"`
	Status     string `json:"status"`

	Total               string `json:"total,omitempty"`
	DownpaymentAmount   string `json:"downpayment_amount,omitempty"`
	DownpaymentRef      string `json:"downpayment_ref,omitempty"`
	DownpaymentDeadline string `json:"downpayment_deadline,omitempty"`
	FullpaymentAmount   string `json:"fullpayment_amount,omitempty"`
	FullpaymentRef      string `json:"fullpayment_ref,omitempty"`
	FullpaymentDeadline string `json:"fullpayment_deadline,omitempty"`
	ExpectedShipDate    string `json:"expected_ship_date,omitempty"`
}
