package seeder

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/aquacrest/hatchflow/internal/clock"
	"github.com/aquacrest/hatchflow/internal/database"
	"github.com/aquacrest/hatchflow/internal/entity"
)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	clock  clock.Clock
	logger *zap.Logger
}

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, clk clock.Clock, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, clock: clk, logger: logger}
}

// All runs every seeder in dependency order.
func (s *Seeder) All(ctx context.Context) error {
	if err := s.Users(ctx); err != nil {
		return err
	}
	if err := s.Products(ctx); err != nil {
		return err
	}
	return s.Availability(ctx)
}

// Users seeds one account per role if missing.
func (s *Seeder) Users(ctx context.Context) error {
	samples := []entity.User{
		{Username: "sales", Email: "sales@hatchflow.local", Role: entity.RoleSales},
		{Username: "hatchery", Email: "hatchery@hatchflow.local", Role: entity.RoleHatchery},
		{Username: "acme-aqua", Email: "orders@acme-aqua.example", Role: entity.RoleCustomer, Company: "Acme Aquaculture", VATNumber: "GB000000000"},
	}

	for _, sample := range samples {
		user := sample
		_, err := s.db.NewInsert().Model(&user).
			On("CONFLICT (username) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	s.logger.Info("seeded users", zap.Int("count", len(samples)))
	return nil
}

// Products seeds the egg catalog: each species in both ploidies at common
// size classes.
func (s *Seeder) Products(ctx context.Context) error {
	type line struct {
		species  string
		diameter int
		price    string
	}
	lines := []line{
		{entity.SpeciesSteelhead, 5, "0.10"},
		{entity.SpeciesSteelhead, 6, "0.12"},
		{entity.SpeciesJumper, 5, "0.11"},
		{entity.SpeciesJumper, 6, "0.13"},
		{entity.SpeciesKamloop, 5, "0.12"},
	}

	count := 0
	for _, l := range lines {
		for _, ploidy := range []string{entity.PloidyDiploid, entity.PloidyTriploid} {
			product := entity.Product{
				Species:    l.species,
				Ploidy:     ploidy,
				DiameterMM: l.diameter,
				UnitPrice:  decimal.RequireFromString(l.price),
			}
			_, err := s.db.NewInsert().Model(&product).
				On("CONFLICT (species, ploidy, diameter_mm) DO NOTHING").
				Exec(ctx)
			if err != nil {
				return err
			}
			count++
		}
	}

	s.logger.Info("seeded products", zap.Int("count", count))
	return nil
}

// Availability publishes a bucket for every product over the next eight
// weeks, sized so a couple of large orders fit per week.
func (s *Seeder) Availability(ctx context.Context) error {
	var products []entity.Product
	if err := s.db.NewSelect().Model(&products).Scan(ctx); err != nil {
		return err
	}

	now := s.clock.Now()
	count := 0
	for week := 0; week < 8; week++ {
		shipDate := now.AddDate(0, 0, 7*(week+2))
		year, weekNumber := shipDate.ISOWeek()
		for _, product := range products {
			bucket := entity.AvailabilityBucket{
				ProductID:         product.ID,
				Year:              year,
				WeekNumber:        weekNumber,
				AvailableQuantity: 100000,
				ExpectedShipDate:  shipDate.Truncate(24 * time.Hour),
			}
			_, err := s.db.NewInsert().Model(&bucket).
				On("CONFLICT (product_id, year, week_number) DO NOTHING").
				Exec(ctx)
			if err != nil {
				return err
			}
			count++
		}
	}

	s.logger.Info("seeded availability buckets", zap.Int("count", count))
	return nil
}
