// Package inventory serializes stock consumption from availability buckets.
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/aquacrest/hatchflow/internal/database"
	"github.com/aquacrest/hatchflow/internal/entity"
)

var ledgerTracer = otel.Tracer("github.com/aquacrest/hatchflow/inventory")

// ErrInsufficientStock is returned when a bucket cannot cover the requested
// quantity. The bucket is left untouched.
var ErrInsufficientStock = errors.New("insufficient available quantity")

// ErrBucketNotFound is returned when the bucket row does not exist.
var ErrBucketNotFound = errors.New("availability bucket not found")

// Apply runs inside the consumption transaction, after the decrement has been
// persisted. Any error rolls the whole transaction back, decrement included.
type Apply func(ctx context.Context, tx bun.Tx, bucket *entity.AvailabilityBucket) error

// Ledger owns per-bucket consumption. Concurrent callers for the same bucket
// block on a keyed mutex; callers for different buckets never contend. On
// dialects with row locks the re-read additionally takes FOR UPDATE, so
// external writers are excluded too.
type Ledger struct {
	db     *bun.DB
	logger *zap.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// Module provides the ledger to the Fx graph.
var Module = fx.Provide(NewLedger)

// NewLedger builds a Ledger on the primary connection.
func NewLedger(conns *database.Connections, logger *zap.Logger) *Ledger {
	return &Ledger{
		db:     conns.Writer,
		logger: logger,
		locks:  make(map[int64]*sync.Mutex),
	}
}

// bucketLock returns the mutex guarding one bucket, creating it on first use.
// The map only ever grows; it is bounded by the number of buckets.
func (l *Ledger) bucketLock(bucketID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[bucketID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[bucketID] = lock
	}
	return lock
}

// ReserveAndConsume atomically checks and decrements a bucket by quantity,
// then invokes apply within the same transaction. The sequence is:
// lock bucket, begin tx, re-read quantity, check, decrement, apply, commit.
// A losing caller gets ErrInsufficientStock and nothing is mutated.
func (l *Ledger) ReserveAndConsume(ctx context.Context, bucketID int64, quantity int, apply Apply) error {
	ctx, span := ledgerTracer.Start(ctx, "InventoryLedger.ReserveAndConsume", trace.WithAttributes(
		attribute.Int64("bucket.id", bucketID),
		attribute.Int("quantity", quantity),
	))
	defer span.End()

	lock := l.bucketLock(bucketID)
	lock.Lock()
	defer lock.Unlock()

	return l.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		bucket := new(entity.AvailabilityBucket)
		query := tx.NewSelect().Model(bucket).Where("ab.id = ?", bucketID)
		if l.supportsRowLocks() {
			query = query.For("UPDATE")
		}
		if err := query.Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrBucketNotFound
			}
			return err
		}

		if bucket.AvailableQuantity < quantity {
			l.logger.Warn("shipment rejected: stock short",
				zap.Int64("bucket_id", bucketID),
				zap.Int("available", bucket.AvailableQuantity),
				zap.Int("requested", quantity),
			)
			return ErrInsufficientStock
		}

		bucket.AvailableQuantity -= quantity
		if _, err := tx.NewUpdate().Model(bucket).
			Column("available_quantity").
			WherePK().
			Exec(ctx); err != nil {
			return err
		}

		return apply(ctx, tx, bucket)
	})
}

func (l *Ledger) supportsRowLocks() bool {
	switch l.db.Dialect().Name() {
	case dialect.PG, dialect.MySQL:
		return true
	default:
		return false
	}
}
