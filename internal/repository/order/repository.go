package order

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

var repoTracer = otel.Tracer("github.com/aquacrest/hatchflow/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// ErrStatusChanged is returned by UpdateFrom when the stored row has already
// left the expected state.
var ErrStatusChanged = errors.New("order status changed concurrently")

// Repository encapsulates read/write access for orders.
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

// Create persists a new order using the write connection.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.Int64("order.customer_id", order.CustomerID)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(order).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches an order with its bucket, product and customer loaded.
// Reads go to the replica; workflow transitions re-save through the writer.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).
		Relation("Bucket").
		Relation("Bucket.Product").
		Relation("Customer").
		Where("o.id = ?", id).
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
	return order, nil
}

// ListByStatus returns orders in one lifecycle state, newest first.
func (r *Repository) ListByStatus(ctx context.Context, status entity.OrderStatus, limit int) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListByStatus", trace.WithAttributes(attribute.String("order.status", status.String())))
	defer span.End()

	if limit <= 0 {
		limit = 50
	}
	var orders []entity.Order
	err := r.reader.NewSelect().Model(&orders).
		Relation("Bucket").
		Relation("Bucket.Product").
		Where("o.status = ?", status).
		Order("o.created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// Update persists the mutable workflow fields of an existing order.
func (r *Repository) Update(ctx context.Context, order *entity.Order) error {
	return r.UpdateIn(ctx, r.writer, order)
}

// UpdateIn persists an order through idb, which may be a transaction.
func (r *Repository) UpdateIn(ctx context.Context, idb bun.IDB, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Update", trace.WithAttributes(attribute.Int64("order.id", order.ID)))
	defer span.End()

	res, err := idb.NewUpdate().Model(order).WherePK().Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		span.SetStatus(codes.Error, "not found")
		return ErrNotFound
	}
	return nil
}

// UpdateFrom persists the order only while the stored row is still in the
// from state. An order loaded by one process can be moved by another before
// the save lands; the status predicate makes the flip first-writer-wins
// regardless of which process, or replica, raced. Zero affected rows means
// the caller lost and must roll back.
func (r *Repository) UpdateFrom(ctx context.Context, idb bun.IDB, order *entity.Order, from entity.OrderStatus) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpdateFrom", trace.WithAttributes(
		attribute.Int64("order.id", order.ID),
		attribute.String("order.from_status", from.String()),
	))
	defer span.End()

	res, err := idb.NewUpdate().Model(order).
		WherePK().
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		span.SetStatus(codes.Error, "status changed")
		return ErrStatusChanged
	}
	return nil
}
