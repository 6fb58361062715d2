package event

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aquacrest/hatchflow/internal/dto"
	"github.com/aquacrest/hatchflow/internal/eventlog"
	"github.com/aquacrest/hatchflow/internal/presentation/http/response"
	"github.com/aquacrest/hatchflow/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/aquacrest/hatchflow/transport/http/event")

// Handler exposes the audit trail over HTTP. Read-only: records are appended
// by the workflow, never through this surface.
type Handler struct {
	log *eventlog.Log
}

// NewHandler constructs an event Handler.
func NewHandler(log *eventlog.Log) *Handler {
	return &Handler{log: log}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.GET("/events", h.list)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return b.WithError(errorbank.BadRequest("invalid limit")).Build()
		}
		limit = parsed
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "events.list", trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	var (
		events []dto.EventResponse
		err    error
	)
	if raw := c.QueryParam("user_id"); raw != "" {
		userID, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr != nil {
			return b.WithError(errorbank.BadRequest("invalid user_id", errorbank.WithCause(parseErr))).Build()
		}
		records, listErr := h.log.ListByUser(ctx, userID, limit)
		events, err = dto.NewEventResponses(records), listErr
	} else {
		records, listErr := h.log.List(ctx, limit)
		events, err = dto.NewEventResponses(records), listErr
	}
	if err != nil {
		return b.WithError(errorbank.Internal("failed to list events", errorbank.WithCause(err))).Build()
	}

	return b.WithCount(len(events)).WithData(events).Build()
}
