package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Order represents one customer's claim against an availability bucket,
// carried through the payment checkpoints to shipment.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID         int64       `bun:",pk,autoincrement"`
	CustomerID int64       `bun:"customer_id,notnull"`
	BucketID   int64       `bun:"bucket_id,notnull"`
	Quantity   int         `bun:"quantity,notnull"`
	Status     OrderStatus `bun:"status,notnull"`
	CreatedAt  time.Time   `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`

	// ConfirmedAt is set exactly once, when full payment is verified.
	ConfirmedAt *time.Time `bun:"confirmed_at,nullzero"`

	// Money columns stay NOT NULL with a zero default: a pending order has
	// no financial figures yet, and decimal.Decimal cannot scan SQL NULL.
	DownpaymentAmount   decimal.Decimal `bun:"downpayment_amount,notnull,default:0"`
	DownpaymentDeadline *time.Time      `bun:"downpayment_deadline,nullzero"`
	DownpaymentTxnRef   string          `bun:"downpayment_txn_ref,nullzero"`
	DownpaymentProofKey string          `bun:"downpayment_proof_key,nullzero"`

	FullpaymentAmount   decimal.Decimal `bun:"fullpayment_amount,notnull,default:0"`
	FullpaymentDeadline *time.Time      `bun:"fullpayment_deadline,nullzero"`
	FullpaymentTxnRef   string          `bun:"fullpayment_txn_ref,nullzero"`
	FullpaymentProofKey string          `bun:"fullpayment_proof_key,nullzero"`

	CommissionRate decimal.Decimal `bun:"commission_rate,notnull,default:0"`
	TransportCost  decimal.Decimal `bun:"transport_cost,notnull,default:0"`
	Notes          string          `bun:"notes,nullzero"`

	Customer *User               `bun:"rel:belongs-to,join:customer_id=id"`
	Bucket   *AvailabilityBucket `bun:"rel:belongs-to,join:bucket_id=id"`
}
