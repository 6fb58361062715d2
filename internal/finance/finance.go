// Package finance holds the money derivations shared by the order workflow,
// invoicing and notification content. All functions are pure: given the same
// stored quantity, unit price and transport cost they always return the same
// amounts.
package finance

import (
	"github.com/shopspring/decimal"

	"github.com/aquacrest/hatchflow/internal/entity"
)

// DownpaymentRate is the fixed share of the order total due up front.
var DownpaymentRate = decimal.RequireFromString("0.15")

// Total computes quantity * unit price + transport cost.
func Total(quantity int, unitPrice, transportCost decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Add(transportCost)
}

// Downpayment is 15% of the total, rounded to cents.
func Downpayment(total decimal.Decimal) decimal.Decimal {
	return total.Mul(DownpaymentRate).Round(2)
}

// RemainingBalance is what is still owed after the downpayment.
func RemainingBalance(total, downpayment decimal.Decimal) decimal.Decimal {
	return total.Sub(downpayment)
}

// OrderTotal derives the total for an order with its bucket and product loaded.
// Transport cost is the one fixed at approval time; it is never re-derived.
func OrderTotal(o *entity.Order) decimal.Decimal {
	return Total(o.Quantity, o.Bucket.Product.UnitPrice, o.TransportCost)
}

// OrderDownpayment derives the downpayment owed for an order.
func OrderDownpayment(o *entity.Order) decimal.Decimal {
	return Downpayment(OrderTotal(o))
}

// OrderRemainingBalance derives the balance owed after the stored downpayment.
func OrderRemainingBalance(o *entity.Order) decimal.Decimal {
	return RemainingBalance(OrderTotal(o), o.DownpaymentAmount)
}
