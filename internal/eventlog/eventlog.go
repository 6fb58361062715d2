// Package eventlog is the append-only audit sink. Records are only ever
// inserted; there is no update or delete path anywhere in the service.
package eventlog

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/aquacrest/hatchflow/internal/clock"
	"github.com/aquacrest/hatchflow/internal/database"
	"github.com/aquacrest/hatchflow/internal/entity"
)

// Entry describes one observed action to record.
type Entry struct {
	UserID   int64
	Kind     entity.EventKind
	OrderID  *int64
	Metadata map[string]any
}

// Log appends audit records to customer_events.
type Log struct {
	db     *bun.DB
	clock  clock.Clock
	logger *zap.Logger
}

// Module provides the audit log to the Fx graph.
var Module = fx.Provide(New)

// New constructs a Log backed by the primary database connection.
func New(conns *database.Connections, clk clock.Clock, logger *zap.Logger) *Log {
	return &Log{db: conns.Writer, clock: clk, logger: logger}
}

// Record appends one audit entry using the log's own connection.
func (l *Log) Record(ctx context.Context, e Entry) error {
	return l.RecordIn(ctx, l.db, e)
}

// RecordIn appends one audit entry through idb, which may be a transaction.
// The shipment transition uses this to keep the audit row inside the same
// transaction as the inventory decrement and the status update.
func (l *Log) RecordIn(ctx context.Context, idb bun.IDB, e Entry) error {
	if !e.Kind.Valid() {
		return fmt.Errorf("unknown event kind: %s", e.Kind)
	}

	event := &entity.CustomerEvent{
		UserID:     e.UserID,
		Kind:       e.Kind,
		OccurredAt: l.clock.Now(),
		OrderID:    e.OrderID,
		Metadata:   e.Metadata,
	}

	if _, err := idb.NewInsert().Model(event).Exec(ctx); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}

	l.logger.Debug("audit event recorded",
		zap.String("kind", string(e.Kind)),
		zap.Int64("user_id", e.UserID),
	)
	return nil
}

// ListByUser returns events for one user, newest first.
func (l *Log) ListByUser(ctx context.Context, userID int64, limit int) ([]entity.CustomerEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var events []entity.CustomerEvent
	err := l.db.NewSelect().Model(&events).
		Where("user_id = ?", userID).
		Order("occurred_at DESC").
		Limit(limit).
		Scan(ctx)
	return events, err
}

// List returns the most recent events across all users.
func (l *Log) List(ctx context.Context, limit int) ([]entity.CustomerEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var events []entity.CustomerEvent
	err := l.db.NewSelect().Model(&events).
		Relation("User").
		Order("occurred_at DESC").
		Limit(limit).
		Scan(ctx)
	return events, err
}
