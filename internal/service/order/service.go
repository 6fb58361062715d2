package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/google/uuid"

	"github.com/aquacrest/hatchflow/internal/cache"
	"github.com/aquacrest/hatchflow/internal/clock"
	"github.com/aquacrest/hatchflow/internal/config"
	"github.com/aquacrest/hatchflow/internal/entity"
	"github.com/aquacrest/hatchflow/internal/eventlog"
	"github.com/aquacrest/hatchflow/internal/finance"
	"github.com/aquacrest/hatchflow/internal/inventory"
	"github.com/aquacrest/hatchflow/internal/messaging"
	"github.com/aquacrest/hatchflow/internal/payment"
	availrepo "github.com/aquacrest/hatchflow/internal/repository/availability"
	repo "github.com/aquacrest/hatchflow/internal/repository/order"
	"github.com/aquacrest/hatchflow/internal/storage"
	"github.com/aquacrest/hatchflow/pkg/errorbank"
)

var (
	serviceTracer = otel.Tracer("github.com/aquacrest/hatchflow/service/order")
	serviceMeter  = otel.Meter("github.com/aquacrest/hatchflow/service/order")
)

// Proof stages accepted by AttachProof.
const (
	ProofStageDownpayment = "downpayment"
	ProofStageFullpayment = "fullpayment"
)

// Service is the order workflow engine. All lifecycle transitions go through
// here; nothing else mutates order status or bucket quantities.
type Service struct {
	orders    *repo.Repository
	buckets   *availrepo.Repository
	ledger    *inventory.Ledger
	gateway   payment.Gateway
	audit     *eventlog.Log
	proofs    storage.Store
	clock     clock.Clock
	cache     cache.Store
	logger    *zap.Logger
	publisher messaging.Client

	workflow   config.Workflow
	payTimeout time.Duration
	messaging  messagingConfig

	shippedOrders metric.Int64Counter
	shippedEggs   metric.Int64Counter
}

type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Orders    *repo.Repository
	Buckets   *availrepo.Repository
	Ledger    *inventory.Ledger
	Gateway   payment.Gateway
	Audit     *eventlog.Log
	Proofs    storage.Store
	Clock     clock.Clock
	Cache     cache.Store
	Config    config.Config
	Logger    *zap.Logger
	Publisher messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	shippedOrders, _ := serviceMeter.Int64Counter("hatchflow_orders_shipped_total")
	shippedEggs, _ := serviceMeter.Int64Counter("hatchflow_eggs_shipped_total")

	return &Service{
		shippedOrders: shippedOrders,
		shippedEggs:   shippedEggs,
		orders:     p.Orders,
		buckets:    p.Buckets,
		ledger:     p.Ledger,
		gateway:    p.Gateway,
		audit:      p.Audit,
		proofs:     p.Proofs,
		clock:      p.Clock,
		cache:      p.Cache,
		logger:     p.Logger,
		publisher:  p.Publisher,
		workflow:   p.Config.Workflow,
		payTimeout: p.Config.Payment.RequestTimeout,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
	}
}

// CreateInput describes a new order request.
type CreateInput struct {
	CustomerID int64
	BucketID   int64
	Quantity   int
	Notes      string
}

// ApproveInput carries the sales-side fields fixed at approval.
type ApproveInput struct {
	TransportCost  decimal.Decimal
	CommissionRate decimal.Decimal
	Notes          string
}

// Get retrieves an order by id.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderWorkflow.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()
	return s.load(ctx, span, id)
}

// ListByStatus returns orders in one lifecycle state.
func (s *Service) ListByStatus(ctx context.Context, status entity.OrderStatus, limit int) ([]entity.Order, error) {
	if !status.Valid() {
		return nil, errorbank.BadRequest(fmt.Sprintf("unknown status: %s", status))
	}
	return s.orders.ListByStatus(ctx, status, limit)
}

// Create validates lot sizing against the bucket and records a pending order.
// Availability is not decremented here: stock is consumed only at shipment.
func (s *Service) Create(ctx context.Context, in CreateInput) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderWorkflow.Create", trace.WithAttributes(
		attribute.Int64("bucket.id", in.BucketID),
		attribute.Int("quantity", in.Quantity),
	))
	defer span.End()

	if in.Quantity <= 0 {
		return nil, errorbank.BadRequest("quantity must be positive")
	}
	if in.Quantity < s.workflow.MinOrderQuantity {
		return nil, errorbank.Unprocessable(
			fmt.Sprintf("quantity below minimum lot of %d", s.workflow.MinOrderQuantity),
			errorbank.WithDetail("min_quantity", s.workflow.MinOrderQuantity),
		)
	}
	if in.Quantity%s.workflow.QuantityIncrement != 0 {
		return nil, errorbank.Unprocessable(
			fmt.Sprintf("quantity must be a multiple of %d", s.workflow.QuantityIncrement),
			errorbank.WithDetail("increment", s.workflow.QuantityIncrement),
		)
	}

	bucket, err := s.buckets.GetByID(ctx, in.BucketID)
	if err != nil {
		if errors.Is(err, availrepo.ErrNotFound) {
			return nil, errorbank.NotFound("availability bucket not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load bucket", errorbank.WithCause(err))
	}
	if in.Quantity > bucket.AvailableQuantity {
		return nil, errorbank.Unprocessable(
			"quantity exceeds available stock",
			errorbank.WithDetail("available", bucket.AvailableQuantity),
		)
	}

	order := &entity.Order{
		CustomerID: in.CustomerID,
		BucketID:   in.BucketID,
		Quantity:   in.Quantity,
		Status:     entity.StatusPending,
		CreatedAt:  s.clock.Now(),
		Notes:      in.Notes,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to create order", errorbank.WithCause(err))
	}
	order.Bucket = bucket

	s.record(ctx, order.CustomerID, entity.EventOrderCreated, &order.ID, map[string]any{
		"quantity": order.Quantity,
	})
	s.publish(ctx, EventTypeCreated, order)
	return order, nil
}

// Approve moves pending → approved: fixes transport cost and commission,
// derives the downpayment, sets its deadline and requests payment. Gateway
// failure aborts before any state is persisted.
func (s *Service) Approve(ctx context.Context, id int64, in ApproveInput) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderWorkflow.Approve", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := s.load(ctx, span, id)
	if err != nil {
		return nil, err
	}
	if err := guard(order, entity.StatusPending, entity.StatusApproved); err != nil {
		return nil, err
	}
	if in.TransportCost.IsNegative() || in.CommissionRate.IsNegative() {
		return nil, errorbank.BadRequest("transport cost and commission rate must not be negative")
	}

	// Approval is the canonical computation point: transport cost is fixed
	// here and every later amount derives from the same stored inputs.
	order.TransportCost = in.TransportCost
	order.CommissionRate = in.CommissionRate
	if in.Notes != "" {
		order.Notes = in.Notes
	}

	total := finance.OrderTotal(order)
	downpayment := finance.Downpayment(total)
	deadline := s.clock.Now().Add(s.workflow.DownpaymentDue)

	result, err := s.requestPayment(ctx, order, payment.Gateway.RequestDownpayment)
	if err != nil {
		return nil, err
	}

	order.Status = entity.StatusApproved
	order.DownpaymentAmount = downpayment
	order.DownpaymentDeadline = &deadline
	order.DownpaymentTxnRef = result.TransactionRef

	if err := s.orders.Update(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to persist approval", errorbank.WithCause(err))
	}

	s.record(ctx, order.CustomerID, entity.EventOrderApproved, &order.ID, map[string]any{
		"transaction_ref": order.DownpaymentTxnRef,
	})
	s.publish(ctx, EventTypeApproved, order)
	return order, nil
}

// ConfirmDownpayment moves approved → down_paid: verifies the downpayment
// transaction, derives the remaining balance and requests full payment.
func (s *Service) ConfirmDownpayment(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderWorkflow.ConfirmDownpayment", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := s.load(ctx, span, id)
	if err != nil {
		return nil, err
	}
	if err := guard(order, entity.StatusApproved, entity.StatusDownPaid); err != nil {
		return nil, err
	}

	if err := s.verifyPayment(ctx, order.DownpaymentTxnRef, "down payment"); err != nil {
		return nil, err
	}

	// Remaining balance uses the total fixed at approval; transport cost is
	// not re-derived.
	total := finance.OrderTotal(order)
	fullDeadline := s.clock.Now().Add(s.workflow.FullPaymentDue)

	result, err := s.requestPayment(ctx, order, payment.Gateway.RequestFullPayment)
	if err != nil {
		return nil, err
	}

	order.Status = entity.StatusDownPaid
	order.FullpaymentAmount = finance.RemainingBalance(total, order.DownpaymentAmount)
	order.FullpaymentDeadline = &fullDeadline
	order.FullpaymentTxnRef = result.TransactionRef

	if err := s.orders.Update(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to persist downpayment confirmation", errorbank.WithCause(err))
	}

	s.record(ctx, order.CustomerID, entity.EventDownPaymentVerified, &order.ID, map[string]any{
		"transaction_ref": order.DownpaymentTxnRef,
	})
	s.publish(ctx, EventTypeDownpaymentConfirmed, order)
	return order, nil
}

// ConfirmFullPayment moves down_paid → confirmed and stamps the confirmation
// time exactly once.
func (s *Service) ConfirmFullPayment(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderWorkflow.ConfirmFullPayment", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := s.load(ctx, span, id)
	if err != nil {
		return nil, err
	}
	if err := guard(order, entity.StatusDownPaid, entity.StatusConfirmed); err != nil {
		return nil, err
	}

	if err := s.verifyPayment(ctx, order.FullpaymentTxnRef, "full payment"); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	order.Status = entity.StatusConfirmed
	order.ConfirmedAt = &now

	if err := s.orders.Update(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to persist confirmation", errorbank.WithCause(err))
	}

	s.record(ctx, order.CustomerID, entity.EventFullPaymentVerified, &order.ID, map[string]any{
		"transaction_ref": order.FullpaymentTxnRef,
	})
	s.publish(ctx, EventTypeConfirmed, order)
	return order, nil
}

// Ship moves confirmed → shipped. The bucket decrement, the status update and
// the audit append commit in one transaction under the bucket's exclusive
// lock; a short bucket fails the whole operation with nothing applied.
func (s *Service) Ship(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderWorkflow.Ship", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := s.load(ctx, span, id)
	if err != nil {
		return nil, err
	}
	if err := guard(order, entity.StatusConfirmed, entity.StatusShipped); err != nil {
		return nil, err
	}

	var bucketYear int
	err = s.ledger.ReserveAndConsume(ctx, order.BucketID, order.Quantity, func(ctx context.Context, tx bun.Tx, bucket *entity.AvailabilityBucket) error {
		bucketYear = bucket.Year
		order.Status = entity.StatusShipped
		// The guard above ran on a snapshot taken before the bucket lock.
		// Flip the status conditionally so a racing shipper, possibly on
		// another replica, cannot consume the same order twice; losing the
		// race rolls the decrement back.
		if err := s.orders.UpdateFrom(ctx, tx, order, entity.StatusConfirmed); err != nil {
			return err
		}
		return s.audit.RecordIn(ctx, tx, eventlog.Entry{
			UserID:  order.CustomerID,
			Kind:    entity.EventOrderShipped,
			OrderID: &order.ID,
			Metadata: map[string]any{
				"quantity": order.Quantity,
			},
		})
	})
	if err != nil {
		// Anything failing inside the transaction leaves the order confirmed.
		order.Status = entity.StatusConfirmed
		switch {
		case errors.Is(err, inventory.ErrInsufficientStock):
			return nil, errorbank.InsufficientStock("bucket cannot cover order quantity",
				errorbank.WithDetail("quantity", order.Quantity))
		case errors.Is(err, inventory.ErrBucketNotFound):
			return nil, errorbank.NotFound("availability bucket not found")
		case errors.Is(err, repo.ErrStatusChanged):
			return nil, invalidTransition(entity.StatusShipped, entity.StatusShipped)
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, "ship transaction failed")
			return nil, errorbank.Internal("shipment transaction failed", errorbank.WithCause(err))
		}
	}

	s.shippedOrders.Add(ctx, 1)
	s.shippedEggs.Add(ctx, int64(order.Quantity))

	s.dropAvailabilityCache(ctx, bucketYear)
	s.publish(ctx, EventTypeShipped, order)
	return order, nil
}

// Cancel moves pending, approved or down_paid orders to cancelled. The order
// row is kept; cancellation is a terminal state, not a removal.
func (s *Service) Cancel(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderWorkflow.Cancel", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := s.load(ctx, span, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(entity.StatusCancelled) {
		return nil, invalidTransition(order.Status, entity.StatusCancelled)
	}

	order.Status = entity.StatusCancelled
	if err := s.orders.Update(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to persist cancellation", errorbank.WithCause(err))
	}

	s.record(ctx, order.CustomerID, entity.EventOrderCancelled, &order.ID, nil)
	s.publish(ctx, EventTypeCancelled, order)
	return order, nil
}

// AttachProof stores a customer-uploaded payment proof and records the upload.
// Down payment proofs are accepted while the order awaits verification in
// approved; full payment proofs while in down_paid.
func (s *Service) AttachProof(ctx context.Context, id int64, stage, filename string, body io.Reader, contentType string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderWorkflow.AttachProof", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("stage", stage),
	))
	defer span.End()

	order, err := s.load(ctx, span, id)
	if err != nil {
		return nil, err
	}

	var (
		required entity.OrderStatus
		kind     entity.EventKind
	)
	switch stage {
	case ProofStageDownpayment:
		required, kind = entity.StatusApproved, entity.EventDownPaymentUploaded
	case ProofStageFullpayment:
		required, kind = entity.StatusDownPaid, entity.EventFullPaymentUploaded
	default:
		return nil, errorbank.BadRequest(fmt.Sprintf("unknown proof stage: %s", stage))
	}
	if order.Status != required {
		return nil, errorbank.Conflict(
			fmt.Sprintf("%s proof not accepted in status %s", stage, order.Status),
			errorbank.WithDetail("status", order.Status.String()),
		)
	}

	key, err := s.proofs.Put(ctx, fmt.Sprintf("order-%d-%s-%s", order.ID, stage, filename), body, contentType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "proof store failed")
		return nil, errorbank.Internal("failed to store payment proof", errorbank.WithCause(err))
	}

	var txnRef string
	if stage == ProofStageDownpayment {
		order.DownpaymentProofKey = key
		txnRef = order.DownpaymentTxnRef
	} else {
		order.FullpaymentProofKey = key
		txnRef = order.FullpaymentTxnRef
	}

	if err := s.orders.Update(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to persist proof reference", errorbank.WithCause(err))
	}

	s.record(ctx, order.CustomerID, kind, &order.ID, map[string]any{
		"transaction_ref": txnRef,
		"proof_key":       key,
	})
	return order, nil
}

func (s *Service) load(ctx context.Context, span trace.Span, id int64) (*entity.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	return order, nil
}

// guard rejects a transition whose source state does not match. The check runs
// before any gateway call or mutation.
func guard(order *entity.Order, from, to entity.OrderStatus) error {
	if order.Status != from || !from.CanTransitionTo(to) {
		return invalidTransition(order.Status, to)
	}
	return nil
}

func invalidTransition(current, target entity.OrderStatus) error {
	return errorbank.InvalidTransition(
		fmt.Sprintf("cannot move from %s to %s", current, target),
		errorbank.WithDetail("current", current.String()),
		errorbank.WithDetail("target", target.String()),
	)
}

// requestPayment calls the gateway under the configured timeout. A timeout,
// transport error or declined request all surface as gateway failures with no
// state mutated.
func (s *Service) requestPayment(ctx context.Context, order *entity.Order, request func(payment.Gateway, context.Context, *entity.Order) (payment.Result, error)) (payment.Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.payTimeout)
	defer cancel()

	result, err := request(s.gateway, callCtx, order)
	if err != nil {
		return payment.Result{}, errorbank.GatewayFailure("payment request failed", errorbank.WithCause(err))
	}
	if !result.Success {
		return payment.Result{}, errorbank.GatewayFailure("payment request declined")
	}
	return result, nil
}

func (s *Service) verifyPayment(ctx context.Context, txnRef, label string) error {
	callCtx, cancel := context.WithTimeout(ctx, s.payTimeout)
	defer cancel()

	ok, err := s.gateway.Verify(callCtx, txnRef)
	if err != nil {
		return errorbank.GatewayFailure(fmt.Sprintf("%s verification failed", label), errorbank.WithCause(err))
	}
	if !ok {
		return errorbank.GatewayFailure(fmt.Sprintf("%s not verified", label),
			errorbank.WithDetail("transaction_ref", txnRef))
	}
	return nil
}

// record appends an audit entry; audit failures outside the ship transaction
// are logged, not surfaced, so a read-side hiccup cannot undo a transition.
func (s *Service) record(ctx context.Context, userID int64, kind entity.EventKind, orderID *int64, metadata map[string]any) {
	if err := s.audit.Record(ctx, eventlog.Entry{
		UserID:   userID,
		Kind:     kind,
		OrderID:  orderID,
		Metadata: metadata,
	}); err != nil {
		s.logger.Error("audit append failed", zap.String("kind", string(kind)), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, eventType string, order *entity.Order) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}

	event := LifecycleEvent{
		EventID:    uuid.NewString(),
		Type:       eventType,
		OccurredAt: s.clock.Now(),
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		BucketID:   order.BucketID,
		Quantity:   order.Quantity,
		Status:     order.Status.String(),
	}
	if order.Bucket != nil && order.Bucket.Product != nil {
		event.Total = finance.OrderTotal(order).StringFixed(2)
		event.ExpectedShipDate = order.Bucket.ExpectedShipDate.Format("2006-01-02")
	}
	if !order.DownpaymentAmount.IsZero() {
		event.DownpaymentAmount = order.DownpaymentAmount.StringFixed(2)
		event.DownpaymentRef = order.DownpaymentTxnRef
	}
	if order.DownpaymentDeadline != nil {
		event.DownpaymentDeadline = order.DownpaymentDeadline.Format(time.RFC3339)
	}
	if !order.FullpaymentAmount.IsZero() {
		event.FullpaymentAmount = order.FullpaymentAmount.StringFixed(2)
		event.FullpaymentRef = order.FullpaymentTxnRef
	}
	if order.FullpaymentDeadline != nil {
		event.FullpaymentDeadline = order.FullpaymentDeadline.Format(time.RFC3339)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal lifecycle event", zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, []byte(fmt.Sprintf("order-%d", order.ID)), payload); err != nil {
		s.logger.Error("publish lifecycle event", zap.String("type", eventType), zap.Error(err))
	}
}

func (s *Service) dropAvailabilityCache(ctx context.Context, year int) {
	if s.cache == nil || year == 0 {
		return
	}
	if err := s.cache.Delete(ctx, cache.AvailabilityYearKey(year)); err != nil {
		s.logger.Warn("availability cache invalidation failed", zap.Int("year", year), zap.Error(err))
	}
}
