package notifier

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/aquacrest/hatchflow/internal/config"
	"github.com/aquacrest/hatchflow/internal/messaging"
	ordersvc "github.com/aquacrest/hatchflow/internal/service/order"
	"github.com/aquacrest/hatchflow/internal/worker"
)

var workerTracer = otel.Tracer("github.com/aquacrest/hatchflow/worker/notifier")

// Module registers the lifecycle notification handler.
var Module = fx.Module("worker_notifier",
	fx.Provide(
		fx.Annotate(
			NewLifecycleHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewLifecycleHandler consumes lifecycle events and dispatches the matching
// customer notification. Delivery here is a structured log line; swapping in
// an email or webhook sender only changes notify.
func NewLifecycleHandler(logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.notifier.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var event ordersvc.LifecycleEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode lifecycle event", zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}
		span.SetAttributes(
			attribute.String("event.id", event.EventID),
			attribute.String("event.type", event.Type),
		)

		notify(logger, event)
		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}

func notify(logger *zap.Logger, event ordersvc.LifecycleEvent) {
	fields := []zap.Field{
		zap.String("event_id", event.EventID),
		zap.Int64("order_id", event.OrderID),
		zap.Int64("customer_id", event.CustomerID),
		zap.String("status", event.Status),
	}

	switch event.Type {
	case ordersvc.EventTypeCreated:
		logger.Info("notify: order received, awaiting review",
			append(fields, zap.Int("quantity", event.Quantity))...)
	case ordersvc.EventTypeApproved:
		logger.Info("notify: order approved, down payment requested",
			append(fields,
				zap.String("downpayment_amount", event.DownpaymentAmount),
				zap.String("downpayment_deadline", event.DownpaymentDeadline),
			)...)
	case ordersvc.EventTypeDownpaymentConfirmed:
		logger.Info("notify: down payment received, balance requested",
			append(fields,
				zap.String("fullpayment_amount", event.FullpaymentAmount),
				zap.String("fullpayment_deadline", event.FullpaymentDeadline),
			)...)
	case ordersvc.EventTypeConfirmed:
		logger.Info("notify: order confirmed for shipment",
			append(fields, zap.String("expected_ship_date", event.ExpectedShipDate))...)
	case ordersvc.EventTypeShipped:
		logger.Info("notify: order shipped",
			append(fields, zap.Int("quantity", event.Quantity))...)
	case ordersvc.EventTypeCancelled:
		logger.Info("notify: order cancelled", fields...)
	default:
		logger.Warn("unrecognized lifecycle event type", fields...)
	}
}
