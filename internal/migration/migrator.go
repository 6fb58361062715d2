package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/aquacrest/hatchflow/internal/config"
	"github.com/aquacrest/hatchflow/internal/database"
)

const migrationsDir = "db/migrations/sql"

// Module provides the migrator to Fx.
var Module = fx.Provide(New)

// Migrator applies the goose migrations in db/migrations/sql against the
// writer connection.
type Migrator struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a goose-backed migrator.
func New(cfg config.Config, conns *database.Connections, logger *zap.Logger) (*Migrator, error) {
	var dialect string
	switch cfg.Database.Driver {
	case "postgres", "pg":
		dialect = "postgres"
	case "mysql":
		dialect = "mysql"
	case "sqlite", "sqlite3":
		dialect = "sqlite3"
	default:
		return nil, fmt.Errorf("unsupported goose dialect for driver %s", cfg.Database.Driver)
	}
	if err := goose.SetDialect(dialect); err != nil {
		return nil, err
	}

	return &Migrator{db: conns.Writer, logger: logger}, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	err := m.tolerateEmpty(goose.UpContext(ctx, m.db.DB, migrationsDir))
	if err == nil {
		m.logger.Info("migrations applied")
	}
	return err
}

// Down rolls back migrations. Steps <= 0 defaults to 1; all rolls everything
// back to version zero.
func (m *Migrator) Down(ctx context.Context, steps int, all bool) error {
	if all {
		if err := m.tolerateEmpty(goose.DownToContext(ctx, m.db.DB, migrationsDir, 0)); err != nil {
			return err
		}
		m.logger.Info("migrations rolled back", zap.String("mode", "all"))
		return nil
	}

	if steps <= 0 {
		steps = 1
	}
	for i := 0; i < steps; i++ {
		if err := m.tolerateEmpty(goose.DownContext(ctx, m.db.DB, migrationsDir)); err != nil {
			return err
		}
	}
	m.logger.Info("migrations rolled back", zap.Int("steps", steps))
	return nil
}

// Version reports the current migration version of the database.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	return goose.GetDBVersionContext(ctx, m.db.DB)
}

// tolerateEmpty treats "nothing to do" outcomes as success.
func (m *Migrator) tolerateEmpty(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, goose.ErrNoNextVersion) ||
		errors.Is(err, goose.ErrNoMigrationFiles) ||
		strings.Contains(err.Error(), "no migrations") {
		m.logger.Info("no migrations to run")
		return nil
	}
	return err
}
