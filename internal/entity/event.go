package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// EventKind enumerates the audit event types recognized across the platform.
// External collaborators (login handling, proof uploads) record against the
// same set so the audit trail stays interoperable.
type EventKind string

const (
	EventLogin               EventKind = "LOGIN"
	EventLogout              EventKind = "LOGOUT"
	EventOrderCreated        EventKind = "ORDER_CREATED"
	EventOrderApproved       EventKind = "ORDER_APPROVED"
	EventOrderCancelled      EventKind = "ORDER_CANCELLED"
	EventDownPaymentUploaded EventKind = "DOWN_PAYMENT_UPLOADED"
	EventFullPaymentUploaded EventKind = "FULL_PAYMENT_UPLOADED"
	EventDownPaymentVerified EventKind = "DOWN_PAYMENT_VERIFIED"
	EventFullPaymentVerified EventKind = "FULL_PAYMENT_VERIFIED"
	EventOrderShipped        EventKind = "ORDER_SHIPPED"
)

// Valid reports whether k is a recognized audit kind.
func (k EventKind) Valid() bool {
	switch k {
	case EventLogin, EventLogout, EventOrderCreated, EventOrderApproved,
		EventOrderCancelled, EventDownPaymentUploaded, EventFullPaymentUploaded,
		EventDownPaymentVerified, EventFullPaymentVerified, EventOrderShipped:
		return true
	}
	return false
}

// CustomerEvent is one immutable audit record. Rows are only ever inserted.
type CustomerEvent struct {
	bun.BaseModel `bun:"table:customer_events"`

	ID         int64          `bun:",pk,autoincrement"`
	UserID     int64          `bun:"user_id,notnull"`
	Kind       EventKind      `bun:"kind,notnull"`
	OccurredAt time.Time      `bun:"occurred_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	OrderID    *int64         `bun:"order_id,nullzero"`
	Metadata   map[string]any `bun:"metadata,nullzero"`

	User *User `bun:"rel:belongs-to,join:user_id=id"`
}
