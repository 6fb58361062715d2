package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/aquacrest/hatchflow/internal/cache"
	"github.com/aquacrest/hatchflow/internal/entity"
	availrepo "github.com/aquacrest/hatchflow/internal/repository/availability"
	"github.com/aquacrest/hatchflow/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/aquacrest/hatchflow/service/availability")

const listCacheTTL = 5 * time.Minute

// Service exposes the hatchery-side availability schedule: reading the weekly
// buckets for a year and publishing or correcting bucket quantities.
type Service struct {
	repo   *availrepo.Repository
	cache  cache.Store
	logger *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repo   *availrepo.Repository
	Cache  cache.Store
	Logger *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{repo: p.Repo, cache: p.Cache, logger: p.Logger}
}

// UpsertInput describes a bucket to publish or correct.
type UpsertInput struct {
	ProductID         int64
	Year              int
	WeekNumber        int
	AvailableQuantity int
	ExpectedShipDate  time.Time
}

// Get returns one bucket with its product.
func (s *Service) Get(ctx context.Context, id int64) (*entity.AvailabilityBucket, error) {
	bucket, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, availrepo.ErrNotFound) {
			return nil, errorbank.NotFound("availability bucket not found")
		}
		return nil, errorbank.Internal("failed to load bucket", errorbank.WithCause(err))
	}
	return bucket, nil
}

// ListByYear returns the year's schedule ordered by week, served from cache
// when possible.
func (s *Service) ListByYear(ctx context.Context, year int) ([]entity.AvailabilityBucket, error) {
	ctx, span := serviceTracer.Start(ctx, "Availability.ListByYear", trace.WithAttributes(attribute.Int("year", year)))
	defer span.End()

	if year < 2000 || year > 2200 {
		return nil, errorbank.BadRequest(fmt.Sprintf("implausible year: %d", year))
	}

	key := cache.AvailabilityYearKey(year)
	if cached, err := s.cache.Get(ctx, key); err == nil && cached != nil {
		var buckets []entity.AvailabilityBucket
		if err := json.Unmarshal(cached, &buckets); err == nil {
			return buckets, nil
		}
		// A stale or corrupt entry falls through to the database.
		s.logger.Warn("discarding unreadable availability cache entry", zap.String("key", key))
	}

	buckets, err := s.repo.ListByYear(ctx, year)
	if err != nil {
		return nil, errorbank.Internal("failed to list availability", errorbank.WithCause(err))
	}

	if payload, err := json.Marshal(buckets); err == nil {
		if err := s.cache.Set(ctx, key, payload, listCacheTTL); err != nil {
			s.logger.Warn("availability cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return buckets, nil
}

// Upsert publishes a bucket for a (product, year, week) slot or corrects an
// existing one, then drops the year's cached schedule.
func (s *Service) Upsert(ctx context.Context, in UpsertInput) (*entity.AvailabilityBucket, error) {
	ctx, span := serviceTracer.Start(ctx, "Availability.Upsert", trace.WithAttributes(
		attribute.Int64("product.id", in.ProductID),
		attribute.Int("year", in.Year),
		attribute.Int("week", in.WeekNumber),
	))
	defer span.End()

	if in.AvailableQuantity < 0 {
		return nil, errorbank.BadRequest("available quantity must not be negative")
	}
	if in.WeekNumber < 1 || in.WeekNumber > 53 {
		return nil, errorbank.BadRequest("week number must be between 1 and 53")
	}
	if in.ExpectedShipDate.IsZero() {
		return nil, errorbank.BadRequest("expected ship date is required")
	}

	bucket := &entity.AvailabilityBucket{
		ProductID:         in.ProductID,
		Year:              in.Year,
		WeekNumber:        in.WeekNumber,
		AvailableQuantity: in.AvailableQuantity,
		ExpectedShipDate:  in.ExpectedShipDate,
	}
	if err := s.repo.Upsert(ctx, bucket); err != nil {
		return nil, errorbank.Internal("failed to upsert bucket", errorbank.WithCause(err))
	}

	if err := s.cache.Delete(ctx, cache.AvailabilityYearKey(in.Year)); err != nil {
		s.logger.Warn("availability cache invalidation failed", zap.Int("year", in.Year), zap.Error(err))
	}
	return bucket, nil
}
