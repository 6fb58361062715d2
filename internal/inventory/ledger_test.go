package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"go.uber.org/zap"

	"github.com/aquacrest/hatchflow/internal/database"
	"github.com/aquacrest/hatchflow/internal/entity"
)

func setupLedgerDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	for _, model := range []any{(*entity.Product)(nil), (*entity.AvailabilityBucket)(nil)} {
		_, err := db.NewCreateTable().Model(model).Exec(ctx)
		require.NoError(t, err)
	}
	return db
}

func newTestLedger(db *bun.DB) *Ledger {
	return NewLedger(&database.Connections{Writer: db, Reader: db}, zap.NewNop())
}

func seedBucket(t *testing.T, db *bun.DB, quantity int) *entity.AvailabilityBucket {
	t.Helper()
	ctx := context.Background()

	bucket := &entity.AvailabilityBucket{
		ProductID:         1,
		Year:              2026,
		WeekNumber:        10,
		AvailableQuantity: quantity,
		ExpectedShipDate:  time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}
	_, err := db.NewInsert().Model(bucket).Exec(ctx)
	require.NoError(t, err)
	return bucket
}

func TestReserveAndConsume(t *testing.T) {
	db := setupLedgerDB(t)
	ledger := newTestLedger(db)
	bucket := seedBucket(t, db, 50000)
	ctx := context.Background()

	applied := false
	err := ledger.ReserveAndConsume(ctx, bucket.ID, 20000, func(ctx context.Context, tx bun.Tx, b *entity.AvailabilityBucket) error {
		applied = true
		assert.Equal(t, 30000, b.AvailableQuantity)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, applied)

	var remaining int
	err = db.NewSelect().Model((*entity.AvailabilityBucket)(nil)).
		Column("available_quantity").
		Where("id = ?", bucket.ID).
		Scan(ctx, &remaining)
	require.NoError(t, err)
	assert.Equal(t, 30000, remaining)
}

func TestReserveAndConsumeInsufficient(t *testing.T) {
	db := setupLedgerDB(t)
	ledger := newTestLedger(db)
	bucket := seedBucket(t, db, 10000)
	ctx := context.Background()

	err := ledger.ReserveAndConsume(ctx, bucket.ID, 20000, func(context.Context, bun.Tx, *entity.AvailabilityBucket) error {
		t.Fatal("apply must not run when stock is short")
		return nil
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	var remaining int
	err = db.NewSelect().Model((*entity.AvailabilityBucket)(nil)).
		Column("available_quantity").
		Where("id = ?", bucket.ID).
		Scan(ctx, &remaining)
	require.NoError(t, err)
	assert.Equal(t, 10000, remaining, "a losing caller must not touch the bucket")
}

func TestReserveAndConsumeMissingBucket(t *testing.T) {
	db := setupLedgerDB(t)
	ledger := newTestLedger(db)

	err := ledger.ReserveAndConsume(context.Background(), 999, 1000, func(context.Context, bun.Tx, *entity.AvailabilityBucket) error {
		return nil
	})
	assert.ErrorIs(t, err, ErrBucketNotFound)
}

func TestReserveAndConsumeApplyErrorRollsBack(t *testing.T) {
	db := setupLedgerDB(t)
	ledger := newTestLedger(db)
	bucket := seedBucket(t, db, 50000)
	ctx := context.Background()

	boom := assert.AnError
	err := ledger.ReserveAndConsume(ctx, bucket.ID, 20000, func(context.Context, bun.Tx, *entity.AvailabilityBucket) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var remaining int
	err = db.NewSelect().Model((*entity.AvailabilityBucket)(nil)).
		Column("available_quantity").
		Where("id = ?", bucket.ID).
		Scan(ctx, &remaining)
	require.NoError(t, err)
	assert.Equal(t, 50000, remaining, "decrement must roll back with the apply error")
}

func TestReserveAndConsumeConcurrent(t *testing.T) {
	db := setupLedgerDB(t)
	ledger := newTestLedger(db)

	// 3 lots in stock, 10 contenders for one lot each.
	const lot = 20000
	bucket := seedBucket(t, db, 3*lot)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- ledger.ReserveAndConsume(ctx, bucket.ID, lot, func(context.Context, bun.Tx, *entity.AvailabilityBucket) error {
				return nil
			})
		}()
	}
	wg.Wait()
	close(results)

	won, lost := 0, 0
	for err := range results {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrInsufficientStock):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 3, won, "exactly as many winners as lots in stock")
	assert.Equal(t, 7, lost)

	var remaining int
	err := db.NewSelect().Model((*entity.AvailabilityBucket)(nil)).
		Column("available_quantity").
		Where("id = ?", bucket.ID).
		Scan(ctx, &remaining)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining, "stock is conserved, never negative")
}
