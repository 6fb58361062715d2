package entity

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Supported catalog attribute values.
const (
	PloidyDiploid  = "diploid"
	PloidyTriploid = "triploid"

	SpeciesSteelhead = "steelhead"
	SpeciesJumper    = "jumper"
	SpeciesKamloop   = "kamloop"
)

// Product is a priced catalog item: egg strain, ploidy and size class.
// Immutable once referenced by an order; price changes apply to future buckets.
type Product struct {
	bun.BaseModel `bun:"table:products"`

	ID         int64           `bun:",pk,autoincrement"`
	Species    string          `bun:"species,notnull,unique:uq_products_line"`
	Ploidy     string          `bun:"ploidy,notnull,unique:uq_products_line"`
	DiameterMM int             `bun:"diameter_mm,notnull,unique:uq_products_line"`
	UnitPrice  decimal.Decimal `bun:"unit_price,notnull"`
}

// Label renders the human-readable catalog name.
func (p *Product) Label() string {
	return fmt.Sprintf("%s %s %dmm", p.Species, p.Ploidy, p.DiameterMM)
}
