package entity

import (
	"github.com/uptrace/bun"
)

// User roles recognized by the platform. Authorization itself is enforced
// outside this service; the role is carried for audit and seeding purposes.
const (
	RoleSales    = "sales"
	RoleHatchery = "hatchery"
	RoleCustomer = "customer"
)

// User is a platform account referenced by orders and audit events.
type User struct {
	bun.BaseModel `bun:"table:users"`

	ID               int64   `bun:",pk,autoincrement"`
	Username         string  `bun:"username,notnull,unique"`
	Email            string  `bun:"email,nullzero"`
	Role             string  `bun:"role,notnull"`
	Company          string  `bun:"company,nullzero"`
	Phone            string  `bun:"phone,nullzero"`
	VATNumber        string  `bun:"vat_number,nullzero"`
	Address          string  `bun:"address,nullzero"`
	ReliabilityScore float64 `bun:"reliability_score,nullzero,default:0.8"`
}
