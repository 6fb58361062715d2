package dto

import (
	"time"

	"github.com/aquacrest/hatchflow/internal/entity"
)

// ProductResponse represents a sellable product line.
type ProductResponse struct {
	ID         int64  `json:"id"`
	Species    string `json:"species"`
	Ploidy     string `json:"ploidy"`
	DiameterMM int    `json:"diameter_mm"`
	UnitPrice  string `json:"unit_price"`
	Label      string `json:"label"`
}

// NewProductResponse maps a product entity.
func NewProductResponse(p *entity.Product) ProductResponse {
	return ProductResponse{
		ID:         p.ID,
		Species:    p.Species,
		Ploidy:     p.Ploidy,
		DiameterMM: p.DiameterMM,
		UnitPrice:  p.UnitPrice.StringFixed(2),
		Label:      p.Label(),
	}
}

// AvailabilityResponse represents one weekly stock bucket.
type AvailabilityResponse struct {
	ID                int64            `json:"id"`
	ProductID         int64            `json:"product_id"`
	Year              int              `json:"year"`
	WeekNumber        int              `json:"week_number"`
	AvailableQuantity int              `json:"available_quantity"`
	ExpectedShipDate  time.Time        `json:"expected_ship_date"`
	Product           *ProductResponse `json:"product,omitempty"`
}

// NewAvailabilityResponse maps a bucket entity.
func NewAvailabilityResponse(b *entity.AvailabilityBucket) AvailabilityResponse {
	resp := AvailabilityResponse{
		ID:                b.ID,
		ProductID:         b.ProductID,
		Year:              b.Year,
		WeekNumber:        b.WeekNumber,
		AvailableQuantity: b.AvailableQuantity,
		ExpectedShipDate:  b.ExpectedShipDate,
	}
	if b.Product != nil {
		p := NewProductResponse(b.Product)
		resp.Product = &p
	}
	return resp
}

// NewAvailabilityResponses maps a slice of buckets.
func NewAvailabilityResponses(buckets []entity.AvailabilityBucket) []AvailabilityResponse {
	out := make([]AvailabilityResponse, 0, len(buckets))
	for i := range buckets {
		out = append(out, NewAvailabilityResponse(&buckets[i]))
	}
	return out
}
