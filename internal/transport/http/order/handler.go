package order

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aquacrest/hatchflow/internal/dto"
	"github.com/aquacrest/hatchflow/internal/entity"
	"github.com/aquacrest/hatchflow/internal/presentation/http/response"
	service "github.com/aquacrest/hatchflow/internal/service/order"
	"github.com/aquacrest/hatchflow/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/aquacrest/hatchflow/transport/http/order")

// Handler exposes order workflow endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.getByID)
	g.POST("/:id/approve", h.approve)
	g.POST("/:id/confirm-downpayment", h.confirmDownpayment)
	g.POST("/:id/confirm-full-payment", h.confirmFullPayment)
	g.POST("/:id/ship", h.ship)
	g.POST("/:id/cancel", h.cancel)
	g.POST("/:id/proofs", h.attachProof)
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		CustomerID int64  `json:"customer_id"`
		BucketID   int64  `json:"bucket_id"`
		Quantity   int    `json:"quantity"`
		Notes      string `json:"notes"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.CustomerID == 0 || payload.BucketID == 0 {
		return b.WithError(errorbank.BadRequest("customer_id and bucket_id are required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create", trace.WithAttributes(
		attribute.Int64("bucket.id", payload.BucketID),
		attribute.Int("quantity", payload.Quantity),
	))
	defer span.End()

	order, err := h.svc.Create(ctx, service.CreateInput{
		CustomerID: payload.CustomerID,
		BucketID:   payload.BucketID,
		Quantity:   payload.Quantity,
		Notes:      payload.Notes,
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	status := entity.OrderStatus(c.QueryParam("status"))
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return b.WithError(errorbank.BadRequest("invalid limit")).Build()
		}
		limit = parsed
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.list", trace.WithAttributes(attribute.String("status", string(status))))
	defer span.End()

	orders, err := h.svc.ListByStatus(ctx, status, limit)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithCount(len(orders)).WithData(dto.NewOrderResponses(orders)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) approve(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload struct {
		TransportCost  string `json:"transport_cost"`
		CommissionRate string `json:"commission_rate"`
		Notes          string `json:"notes"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	transport, err := decimal.NewFromString(payload.TransportCost)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid transport_cost", errorbank.WithCause(err))).Build()
	}
	commission := decimal.Zero
	if payload.CommissionRate != "" {
		commission, err = decimal.NewFromString(payload.CommissionRate)
		if err != nil {
			return b.WithError(errorbank.BadRequest("invalid commission_rate", errorbank.WithCause(err))).Build()
		}
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.approve", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Approve(ctx, id, service.ApproveInput{
		TransportCost:  transport,
		CommissionRate: commission,
		Notes:          payload.Notes,
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) confirmDownpayment(c echo.Context) error {
	return h.transition(c, "orders.confirmDownpayment", h.svc.ConfirmDownpayment)
}

func (h *Handler) confirmFullPayment(c echo.Context) error {
	return h.transition(c, "orders.confirmFullPayment", h.svc.ConfirmFullPayment)
}

func (h *Handler) ship(c echo.Context) error {
	return h.transition(c, "orders.ship", h.svc.Ship)
}

func (h *Handler) cancel(c echo.Context) error {
	return h.transition(c, "orders.cancel", h.svc.Cancel)
}

func (h *Handler) attachProof(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	stage := c.FormValue("stage")
	file, err := c.FormFile("proof")
	if err != nil {
		return b.WithError(errorbank.BadRequest("proof file is required", errorbank.WithCause(err))).Build()
	}
	src, err := file.Open()
	if err != nil {
		return b.WithError(errorbank.BadRequest("unreadable proof file", errorbank.WithCause(err))).Build()
	}
	defer src.Close()

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.attachProof", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("stage", stage),
	))
	defer span.End()

	order, err := h.svc.AttachProof(ctx, id, stage, file.Filename, src, file.Header.Get("Content-Type"))
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.NewOrderResponse(order)).Build()
}

// transition factors the id-only lifecycle endpoints into one shape.
func (h *Handler) transition(c echo.Context, span string, fn func(ctx context.Context, id int64) (*entity.Order, error)) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, sp := httpTracer.Start(c.Request().Context(), span, trace.WithAttributes(attribute.Int64("order.id", id)))
	defer sp.End()

	order, err := fn(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.NewOrderResponse(order)).Build()
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, errorbank.BadRequest("invalid id", errorbank.WithCause(err))
	}
	return id, nil
}
