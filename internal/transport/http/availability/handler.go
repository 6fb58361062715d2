package availability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aquacrest/hatchflow/internal/dto"
	"github.com/aquacrest/hatchflow/internal/presentation/http/response"
	service "github.com/aquacrest/hatchflow/internal/service/availability"
	"github.com/aquacrest/hatchflow/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/aquacrest/hatchflow/transport/http/availability")

// Handler exposes the availability schedule over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an availability Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/availability")
	g.GET("", h.listByYear)
	g.GET("/:id", h.getByID)
	g.PUT("", h.upsert)
}

func (h *Handler) listByYear(c echo.Context) error {
	b := response.New(c)

	year, err := strconv.Atoi(c.QueryParam("year"))
	if err != nil {
		return b.WithError(errorbank.BadRequest("year query parameter is required", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "availability.listByYear", trace.WithAttributes(attribute.Int("year", year)))
	defer span.End()

	buckets, err := h.svc.ListByYear(ctx, year)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithCount(len(buckets)).WithData(dto.NewAvailabilityResponses(buckets)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "availability.getByID", trace.WithAttributes(attribute.Int64("bucket.id", id)))
	defer span.End()

	bucket, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.NewAvailabilityResponse(bucket)).Build()
}

func (h *Handler) upsert(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		ProductID         int64  `json:"product_id"`
		Year              int    `json:"year"`
		WeekNumber        int    `json:"week_number"`
		AvailableQuantity int    `json:"available_quantity"`
		ExpectedShipDate  string `json:"expected_ship_date"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.ProductID == 0 {
		return b.WithError(errorbank.BadRequest("product_id is required")).Build()
	}
	shipDate, err := time.Parse("2006-01-02", payload.ExpectedShipDate)
	if err != nil {
		return b.WithError(errorbank.BadRequest("expected_ship_date must be YYYY-MM-DD", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "availability.upsert", trace.WithAttributes(
		attribute.Int64("product.id", payload.ProductID),
		attribute.Int("year", payload.Year),
		attribute.Int("week", payload.WeekNumber),
	))
	defer span.End()

	bucket, err := h.svc.Upsert(ctx, service.UpsertInput{
		ProductID:         payload.ProductID,
		Year:              payload.Year,
		WeekNumber:        payload.WeekNumber,
		AvailableQuantity: payload.AvailableQuantity,
		ExpectedShipDate:  shipDate,
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusOK).WithData(dto.NewAvailabilityResponse(bucket)).Build()
}
