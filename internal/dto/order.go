package dto

import (
	"time"

	"github.com/aquacrest/hatchflow/internal/entity"
	"github.com/aquacrest/hatchflow/internal/finance"
)

// OrderResponse represents an order as exposed via transport layers. Money
// fields are fixed-point strings so clients never see float drift.
type OrderResponse struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customer_id"`
	BucketID   int64     `json:"bucket_id"`
	Quantity   int       `json:"quantity"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`

	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`

	Total            string `json:"total,omitempty"`
	TransportCost    string `json:"transport_cost,omitempty"`
	CommissionRate   string `json:"commission_rate,omitempty"`
	RemainingBalance string `json:"remaining_balance,omitempty"`

	Downpayment *PaymentLeg `json:"downpayment,omitempty"`
	Fullpayment *PaymentLeg `json:"fullpayment,omitempty"`

	Product *ProductResponse `json:"product,omitempty"`
	Notes   string           `json:"notes,omitempty"`
}

// PaymentLeg is one payment checkpoint on an order.
type PaymentLeg struct {
	Amount         string     `json:"amount"`
	Deadline       *time.Time `json:"deadline,omitempty"`
	TransactionRef string     `json:"transaction_ref,omitempty"`
	ProofKey       string     `json:"proof_key,omitempty"`
}

// NewOrderResponse maps an order entity onto its transport shape. Financial
// fields appear only once the order has been approved and they exist.
func NewOrderResponse(o *entity.Order) OrderResponse {
	resp := OrderResponse{
		ID:          o.ID,
		CustomerID:  o.CustomerID,
		BucketID:    o.BucketID,
		Quantity:    o.Quantity,
		Status:      o.Status.String(),
		CreatedAt:   o.CreatedAt,
		ConfirmedAt: o.ConfirmedAt,
		Notes:       o.Notes,
	}

	if !o.DownpaymentAmount.IsZero() {
		resp.TransportCost = o.TransportCost.StringFixed(2)
		resp.CommissionRate = o.CommissionRate.String()
		resp.Downpayment = &PaymentLeg{
			Amount:         o.DownpaymentAmount.StringFixed(2),
			Deadline:       o.DownpaymentDeadline,
			TransactionRef: o.DownpaymentTxnRef,
			ProofKey:       o.DownpaymentProofKey,
		}
		if o.Bucket != nil && o.Bucket.Product != nil {
			total := finance.OrderTotal(o)
			resp.Total = total.StringFixed(2)
			resp.RemainingBalance = finance.RemainingBalance(total, o.DownpaymentAmount).StringFixed(2)
		}
	}
	if !o.FullpaymentAmount.IsZero() {
		resp.Fullpayment = &PaymentLeg{
			Amount:         o.FullpaymentAmount.StringFixed(2),
			Deadline:       o.FullpaymentDeadline,
			TransactionRef: o.FullpaymentTxnRef,
			ProofKey:       o.FullpaymentProofKey,
		}
	}
	if o.Bucket != nil && o.Bucket.Product != nil {
		p := NewProductResponse(o.Bucket.Product)
		resp.Product = &p
	}
	return resp
}

// NewOrderResponses maps a slice of orders.
func NewOrderResponses(orders []entity.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, NewOrderResponse(&orders[i]))
	}
	return out
}
