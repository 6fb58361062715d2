package availability

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aquacrest/hatchflow/internal/database"
	"github.com/aquacrest/hatchflow/internal/entity"
)

var repoTracer = otel.Tracer("github.com/aquacrest/hatchflow/repository/availability")

// ErrNotFound is returned when a bucket is missing.
var ErrNotFound = errors.New("availability bucket not found")

// Repository encapsulates access to availability buckets. Decrements do not
// happen here; only the inventory ledger mutates quantities at shipment.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// GetByID fetches a bucket with its product loaded.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.AvailabilityBucket, error) {
	ctx, span := repoTracer.Start(ctx, "AvailabilityRepository.GetByID", trace.WithAttributes(attribute.Int64("bucket.id", id)))
	defer span.End()

	bucket := new(entity.AvailabilityBucket)
	err := r.reader.NewSelect().Model(bucket).
		Relation("Product").
		Where("ab.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return bucket, nil
}

// ListByYear returns all buckets for a year ordered by week.
func (r *Repository) ListByYear(ctx context.Context, year int) ([]entity.AvailabilityBucket, error) {
	ctx, span := repoTracer.Start(ctx, "AvailabilityRepository.ListByYear", trace.WithAttributes(attribute.Int("year", year)))
	defer span.End()

	var buckets []entity.AvailabilityBucket
	err := r.reader.NewSelect().Model(&buckets).
		Relation("Product").
		Where("ab.year = ?", year).
		Order("ab.week_number ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return buckets, nil
}

// Upsert inserts a bucket or refreshes the quantity and ship date of the
// existing (product, year, week) row, preserving its uniqueness.
func (r *Repository) Upsert(ctx context.Context, bucket *entity.AvailabilityBucket) error {
	if bucket == nil {
		return errors.New("nil bucket")
	}
	ctx, span := repoTracer.Start(ctx, "AvailabilityRepository.Upsert", trace.WithAttributes(
		attribute.Int64("bucket.product_id", bucket.ProductID),
		attribute.Int("bucket.year", bucket.Year),
		attribute.Int("bucket.week", bucket.WeekNumber),
	))
	defer span.End()

	_, err := r.writer.NewInsert().Model(bucket).
		On("CONFLICT (product_id, year, week_number) DO UPDATE").
		Set("available_quantity = EXCLUDED.available_quantity").
		Set("expected_ship_date = EXCLUDED.expected_ship_date").
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert failed")
	}
	return err
}
