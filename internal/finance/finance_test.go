package finance

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquacrest/hatchflow/internal/entity"
)

func TestTotal(t *testing.T) {
	total := Total(20000, decimal.RequireFromString("0.10"), decimal.RequireFromString("100"))
	assert.True(t, total.Equal(decimal.RequireFromString("2100")), "got %s", total)
}

func TestDownpayment(t *testing.T) {
	tests := []struct {
		name  string
		total string
		want  string
	}{
		{"reference order", "2100", "315.00"},
		{"rounds half up", "100.03", "15.00"},
		{"fractional", "2100.10", "315.02"},
		{"zero", "0", "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Downpayment(decimal.RequireFromString(tt.total))
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestRemainingBalance(t *testing.T) {
	total := decimal.RequireFromString("2100")
	down := Downpayment(total)
	remaining := RemainingBalance(total, down)

	assert.Equal(t, "1785.00", remaining.StringFixed(2))
	assert.True(t, down.Add(remaining).Equal(total), "legs must sum to total")
}

func TestOrderDerivations(t *testing.T) {
	order := &entity.Order{
		Quantity:      20000,
		TransportCost: decimal.RequireFromString("100"),
		Bucket: &entity.AvailabilityBucket{
			Product: &entity.Product{UnitPrice: decimal.RequireFromString("0.10")},
		},
	}

	total := OrderTotal(order)
	require.Equal(t, "2100.00", total.StringFixed(2))
	assert.Equal(t, "315.00", OrderDownpayment(order).StringFixed(2))

	order.DownpaymentAmount = OrderDownpayment(order)
	assert.Equal(t, "1785.00", OrderRemainingBalance(order).StringFixed(2))
}
