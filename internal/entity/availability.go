package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// AvailabilityBucket is the sellable stock of one product in one scheduling
// period (year + week). At most one bucket exists per (product, year, week);
// the quantity is decremented exclusively inside the shipment transaction.
type AvailabilityBucket struct {
	bun.BaseModel `bun:"table:availability_buckets,alias:ab"`

	ID                int64     `bun:",pk,autoincrement"`
	ProductID         int64     `bun:"product_id,notnull,unique:uq_availability_slot"`
	Year              int       `bun:"year,notnull,unique:uq_availability_slot"`
	WeekNumber        int       `bun:"week_number,notnull,unique:uq_availability_slot"`
	AvailableQuantity int       `bun:"available_quantity,notnull"`
	ExpectedShipDate  time.Time `bun:"expected_ship_date,notnull"`

	Product *Product `bun:"rel:belongs-to,join:product_id=id"`
}
