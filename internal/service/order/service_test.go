package order

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"go.uber.org/zap"

	"github.com/aquacrest/hatchflow/internal/clock"
	"github.com/aquacrest/hatchflow/internal/config"
	"github.com/aquacrest/hatchflow/internal/database"
	"github.com/aquacrest/hatchflow/internal/entity"
	"github.com/aquacrest/hatchflow/internal/eventlog"
	"github.com/aquacrest/hatchflow/internal/inventory"
	"github.com/aquacrest/hatchflow/internal/payment"
	availrepo "github.com/aquacrest/hatchflow/internal/repository/availability"
	orderrepo "github.com/aquacrest/hatchflow/internal/repository/order"
	"github.com/aquacrest/hatchflow/pkg/errorbank"
)

// scriptedGateway implements payment.Gateway with controllable outcomes and
// call accounting.
type scriptedGateway struct {
	failRequests bool
	failVerify   bool
	requestCalls int
	verifyCalls  int
}

func (g *scriptedGateway) RequestDownpayment(_ context.Context, o *entity.Order) (payment.Result, error) {
	g.requestCalls++
	if g.failRequests {
		return payment.Result{}, nil
	}
	return payment.Result{Success: true, TransactionRef: fmt.Sprintf("DP-%d-%d", o.ID, o.CreatedAt.Unix())}, nil
}

func (g *scriptedGateway) RequestFullPayment(_ context.Context, o *entity.Order) (payment.Result, error) {
	g.requestCalls++
	if g.failRequests {
		return payment.Result{}, nil
	}
	return payment.Result{Success: true, TransactionRef: fmt.Sprintf("FP-%d-%d", o.ID, o.CreatedAt.Unix())}, nil
}

func (g *scriptedGateway) Verify(_ context.Context, ref string) (bool, error) {
	g.verifyCalls++
	return !g.failVerify && ref != "", nil
}

// memoryProofs captures uploads.
type memoryProofs struct {
	keys []string
}

func (m *memoryProofs) Put(_ context.Context, name string, body io.Reader, _ string) (string, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	key := "proofs/" + name
	m.keys = append(m.keys, key)
	return key, nil
}

type fixture struct {
	svc     *Service
	db      *bun.DB
	clock   *clock.Fake
	gateway *scriptedGateway
	proofs  *memoryProofs
	bucket  *entity.AvailabilityBucket
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	sqldb, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	models := []any{
		(*entity.User)(nil),
		(*entity.Product)(nil),
		(*entity.AvailabilityBucket)(nil),
		(*entity.Order)(nil),
		(*entity.CustomerEvent)(nil),
	}
	for _, model := range models {
		_, err := db.NewCreateTable().Model(model).Exec(ctx)
		require.NoError(t, err)
	}

	customer := &entity.User{Username: "acme", Role: entity.RoleCustomer}
	_, err = db.NewInsert().Model(customer).Exec(ctx)
	require.NoError(t, err)

	product := &entity.Product{
		Species:    entity.SpeciesSteelhead,
		Ploidy:     entity.PloidyDiploid,
		DiameterMM: 5,
		UnitPrice:  decimal.RequireFromString("0.10"),
	}
	_, err = db.NewInsert().Model(product).Exec(ctx)
	require.NoError(t, err)

	bucket := &entity.AvailabilityBucket{
		ProductID:         product.ID,
		Year:              2026,
		WeekNumber:        12,
		AvailableQuantity: 100000,
		ExpectedShipDate:  time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
	}
	_, err = db.NewInsert().Model(bucket).Exec(ctx)
	require.NoError(t, err)

	conns := &database.Connections{Writer: db, Reader: db}
	logger := zap.NewNop()
	clk := clock.NewFake(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))
	gateway := &scriptedGateway{}
	proofs := &memoryProofs{}

	cfg := config.Config{
		Workflow: config.Workflow{
			MinOrderQuantity:  20000,
			QuantityIncrement: 10000,
			DownpaymentDue:    72 * time.Hour,
			FullPaymentDue:    14 * 24 * time.Hour,
		},
		Payment: config.Payment{RequestTimeout: time.Second},
	}

	svc := NewService(Params{
		Orders:    orderrepo.NewRepository(conns),
		Buckets:   availrepo.NewRepository(conns),
		Ledger:    inventory.NewLedger(conns, logger),
		Gateway:   gateway,
		Audit:     eventlog.New(conns, clk, logger),
		Proofs:    proofs,
		Clock:     clk,
		Config:    cfg,
		Logger:    logger,
	})

	return &fixture{svc: svc, db: db, clock: clk, gateway: gateway, proofs: proofs, bucket: bucket}
}

func (f *fixture) createOrder(t *testing.T, quantity int) *entity.Order {
	t.Helper()
	order, err := f.svc.Create(context.Background(), CreateInput{
		CustomerID: 1,
		BucketID:   f.bucket.ID,
		Quantity:   quantity,
	})
	require.NoError(t, err)
	return order
}

// confirmOrder walks a fresh order through the payment checkpoints so it is
// ready to ship.
func (f *fixture) confirmOrder(t *testing.T, quantity int) *entity.Order {
	t.Helper()
	ctx := context.Background()
	order := f.createOrder(t, quantity)
	_, err := f.svc.Approve(ctx, order.ID, ApproveInput{TransportCost: decimal.RequireFromString("100")})
	require.NoError(t, err)
	_, err = f.svc.ConfirmDownpayment(ctx, order.ID)
	require.NoError(t, err)
	confirmed, err := f.svc.ConfirmFullPayment(ctx, order.ID)
	require.NoError(t, err)
	return confirmed
}

func (f *fixture) remaining(t *testing.T) int {
	t.Helper()
	var remaining int
	err := f.db.NewSelect().Model((*entity.AvailabilityBucket)(nil)).
		Column("available_quantity").
		Where("id = ?", f.bucket.ID).
		Scan(context.Background(), &remaining)
	require.NoError(t, err)
	return remaining
}

func (f *fixture) auditKinds(t *testing.T, orderID int64) []entity.EventKind {
	t.Helper()
	var events []entity.CustomerEvent
	err := f.db.NewSelect().Model(&events).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Scan(context.Background())
	require.NoError(t, err)

	kinds := make([]entity.EventKind, 0, len(events))
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func TestCreateValidation(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		quantity int
		wantKind errorbank.Kind
	}{
		{"below minimum", 10000, errorbank.KindUnprocessableEntity},
		{"not a lot multiple", 25000, errorbank.KindUnprocessableEntity},
		{"exceeds stock", 200000, errorbank.KindUnprocessableEntity},
		{"zero", 0, errorbank.KindBadRequest},
		{"negative", -10000, errorbank.KindBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, CreateInput{CustomerID: 1, BucketID: f.bucket.ID, Quantity: tt.quantity})
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, errorbank.From(err).Kind())
		})
	}

	count, err := f.db.NewSelect().Model((*entity.Order)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "rejected requests must not create orders")
}

func TestCreateDoesNotTouchStock(t *testing.T) {
	f := setupFixture(t)
	order := f.createOrder(t, 20000)

	assert.Equal(t, entity.StatusPending, order.Status)
	assert.Equal(t, []entity.EventKind{entity.EventOrderCreated}, f.auditKinds(t, order.ID))

	var remaining int
	err := f.db.NewSelect().Model((*entity.AvailabilityBucket)(nil)).
		Column("available_quantity").
		Where("id = ?", f.bucket.ID).
		Scan(context.Background(), &remaining)
	require.NoError(t, err)
	assert.Equal(t, 100000, remaining, "stock is consumed at shipment, not at creation")
}

func TestPendingOrderReloadsWithZeroFinancials(t *testing.T) {
	f := setupFixture(t)

	// A pending order has no financial figures yet; the money columns must
	// round-trip as zero, not as NULLs the decimal type cannot scan.
	order := f.createOrder(t, 20000)

	reloaded, err := f.svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, reloaded.Status)
	assert.True(t, reloaded.DownpaymentAmount.IsZero())
	assert.True(t, reloaded.FullpaymentAmount.IsZero())
	assert.True(t, reloaded.CommissionRate.IsZero())
	assert.True(t, reloaded.TransportCost.IsZero())
	assert.Nil(t, reloaded.DownpaymentDeadline)
	assert.Nil(t, reloaded.FullpaymentDeadline)
	assert.Empty(t, reloaded.DownpaymentTxnRef)
}

func TestLifecycleHappyPath(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	order := f.createOrder(t, 20000)

	// 20000 x 0.10 + 100 transport = 2100 total.
	approved, err := f.svc.Approve(ctx, order.ID, ApproveInput{
		TransportCost:  decimal.RequireFromString("100"),
		CommissionRate: decimal.RequireFromString("0.05"),
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, approved.Status)
	assert.Equal(t, "315.00", approved.DownpaymentAmount.StringFixed(2))
	require.NotNil(t, approved.DownpaymentDeadline)
	assert.Equal(t, f.clock.Now().Add(72*time.Hour), *approved.DownpaymentDeadline)
	assert.NotEmpty(t, approved.DownpaymentTxnRef)

	f.clock.Advance(24 * time.Hour)
	downPaid, err := f.svc.ConfirmDownpayment(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusDownPaid, downPaid.Status)
	assert.Equal(t, "1785.00", downPaid.FullpaymentAmount.StringFixed(2))
	require.NotNil(t, downPaid.FullpaymentDeadline)
	assert.Equal(t, f.clock.Now().Add(14*24*time.Hour), *downPaid.FullpaymentDeadline)

	f.clock.Advance(48 * time.Hour)
	confirmed, err := f.svc.ConfirmFullPayment(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)
	assert.Equal(t, f.clock.Now(), *confirmed.ConfirmedAt)

	shipped, err := f.svc.Ship(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusShipped, shipped.Status)

	var remaining int
	err = f.db.NewSelect().Model((*entity.AvailabilityBucket)(nil)).
		Column("available_quantity").
		Where("id = ?", f.bucket.ID).
		Scan(ctx, &remaining)
	require.NoError(t, err)
	assert.Equal(t, 80000, remaining)

	assert.Equal(t, []entity.EventKind{
		entity.EventOrderCreated,
		entity.EventOrderApproved,
		entity.EventDownPaymentVerified,
		entity.EventFullPaymentVerified,
		entity.EventOrderShipped,
	}, f.auditKinds(t, order.ID))
}

func TestTransitionGuards(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	order := f.createOrder(t, 20000)

	// Every forward operation except approval is illegal from pending, and
	// none of them may reach the gateway.
	_, err := f.svc.ConfirmDownpayment(ctx, order.ID)
	assert.Equal(t, errorbank.KindInvalidTransition, errorbank.From(err).Kind())

	_, err = f.svc.ConfirmFullPayment(ctx, order.ID)
	assert.Equal(t, errorbank.KindInvalidTransition, errorbank.From(err).Kind())

	_, err = f.svc.Ship(ctx, order.ID)
	assert.Equal(t, errorbank.KindInvalidTransition, errorbank.From(err).Kind())

	assert.Zero(t, f.gateway.requestCalls, "guards run before any gateway call")
	assert.Zero(t, f.gateway.verifyCalls)

	reloaded, err := f.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, reloaded.Status, "rejected transitions must not mutate")
}

func TestApproveGatewayDeclineAbortsCleanly(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	order := f.createOrder(t, 20000)

	f.gateway.failRequests = true
	_, err := f.svc.Approve(ctx, order.ID, ApproveInput{TransportCost: decimal.RequireFromString("100")})
	require.Error(t, err)
	assert.Equal(t, errorbank.KindGatewayFailure, errorbank.From(err).Kind())

	reloaded, err := f.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, reloaded.Status)
	assert.True(t, reloaded.DownpaymentAmount.IsZero())
	assert.Nil(t, reloaded.DownpaymentDeadline)

	// Retry succeeds once the gateway recovers.
	f.gateway.failRequests = false
	approved, err := f.svc.Approve(ctx, order.ID, ApproveInput{TransportCost: decimal.RequireFromString("100")})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, approved.Status)
}

func TestConfirmDownpaymentVerifyFailure(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	order := f.createOrder(t, 20000)
	_, err := f.svc.Approve(ctx, order.ID, ApproveInput{TransportCost: decimal.RequireFromString("100")})
	require.NoError(t, err)

	f.gateway.failVerify = true
	_, err = f.svc.ConfirmDownpayment(ctx, order.ID)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindGatewayFailure, errorbank.From(err).Kind())

	reloaded, err := f.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, reloaded.Status)
}

func TestShipInsufficientStock(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	// More quantity confirmed than the bucket holds: the competitor ships
	// first and takes most of the stock.
	order := f.confirmOrder(t, 20000)
	competitor := f.confirmOrder(t, 90000)
	_, err := f.svc.Ship(ctx, competitor.ID)
	require.NoError(t, err)

	_, err = f.svc.Ship(ctx, order.ID)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindInsufficientStock, errorbank.From(err).Kind())

	reloaded, err := f.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusConfirmed, reloaded.Status, "failed shipment keeps the order confirmed")
	assert.Equal(t, 10000, f.remaining(t), "a failed shipment must not touch the bucket")
}

func TestConcurrentShipConsumesOrderOnce(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	order := f.confirmOrder(t, 20000)

	const shippers = 4
	errs := make(chan error, shippers)
	var wg sync.WaitGroup
	for i := 0; i < shippers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Ship(ctx, order.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded int
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, errorbank.KindInvalidTransition, errorbank.From(err).Kind())
	}
	assert.Equal(t, 1, succeeded, "exactly one shipper may win the order")
	assert.Equal(t, 80000, f.remaining(t), "the order's quantity leaves the bucket once")

	var shipEvents int
	for _, kind := range f.auditKinds(t, order.ID) {
		if kind == entity.EventOrderShipped {
			shipEvents++
		}
	}
	assert.Equal(t, 1, shipEvents)
}

func TestConcurrentShipContention(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	// Two confirmed orders, stock for only one of them.
	first := f.confirmOrder(t, 60000)
	second := f.confirmOrder(t, 60000)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, id := range []int64{first.ID, second.ID} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Ship(ctx, id)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, short int
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		if assert.Equal(t, errorbank.KindInsufficientStock, errorbank.From(err).Kind()) {
			short++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, short)
	assert.Equal(t, 40000, f.remaining(t), "the losing shipment must not decrement")
}

func TestCancel(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	t.Run("from pending", func(t *testing.T) {
		order := f.createOrder(t, 20000)
		cancelled, err := f.svc.Cancel(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusCancelled, cancelled.Status)
		assert.Contains(t, f.auditKinds(t, order.ID), entity.EventOrderCancelled)
	})

	t.Run("from approved", func(t *testing.T) {
		order := f.createOrder(t, 20000)
		_, err := f.svc.Approve(ctx, order.ID, ApproveInput{TransportCost: decimal.RequireFromString("100")})
		require.NoError(t, err)
		_, err = f.svc.Cancel(ctx, order.ID)
		require.NoError(t, err)
	})

	t.Run("not from confirmed", func(t *testing.T) {
		order := f.createOrder(t, 20000)
		_, err := f.svc.Approve(ctx, order.ID, ApproveInput{TransportCost: decimal.RequireFromString("100")})
		require.NoError(t, err)
		_, err = f.svc.ConfirmDownpayment(ctx, order.ID)
		require.NoError(t, err)
		_, err = f.svc.ConfirmFullPayment(ctx, order.ID)
		require.NoError(t, err)

		_, err = f.svc.Cancel(ctx, order.ID)
		assert.Equal(t, errorbank.KindInvalidTransition, errorbank.From(err).Kind())
	})

	t.Run("terminal stays terminal", func(t *testing.T) {
		order := f.createOrder(t, 20000)
		_, err := f.svc.Cancel(ctx, order.ID)
		require.NoError(t, err)
		_, err = f.svc.Cancel(ctx, order.ID)
		assert.Equal(t, errorbank.KindInvalidTransition, errorbank.From(err).Kind())
		_, err = f.svc.Approve(ctx, order.ID, ApproveInput{TransportCost: decimal.RequireFromString("100")})
		assert.Equal(t, errorbank.KindInvalidTransition, errorbank.From(err).Kind())
	})
}

func TestAttachProof(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	order := f.createOrder(t, 20000)

	// Not accepted while still pending.
	_, err := f.svc.AttachProof(ctx, order.ID, ProofStageDownpayment, "wire.pdf", bytes.NewReader([]byte("pdf")), "application/pdf")
	assert.Equal(t, errorbank.KindConflict, errorbank.From(err).Kind())

	_, err = f.svc.Approve(ctx, order.ID, ApproveInput{TransportCost: decimal.RequireFromString("100")})
	require.NoError(t, err)

	updated, err := f.svc.AttachProof(ctx, order.ID, ProofStageDownpayment, "wire.pdf", bytes.NewReader([]byte("pdf")), "application/pdf")
	require.NoError(t, err)
	assert.NotEmpty(t, updated.DownpaymentProofKey)
	assert.Len(t, f.proofs.keys, 1)
	assert.Contains(t, f.auditKinds(t, order.ID), entity.EventDownPaymentUploaded)

	// Full payment proof only once down payment is in.
	_, err = f.svc.AttachProof(ctx, order.ID, ProofStageFullpayment, "wire2.pdf", bytes.NewReader([]byte("pdf")), "application/pdf")
	assert.Equal(t, errorbank.KindConflict, errorbank.From(err).Kind())

	_, err = f.svc.ConfirmDownpayment(ctx, order.ID)
	require.NoError(t, err)

	updated, err = f.svc.AttachProof(ctx, order.ID, ProofStageFullpayment, "wire2.pdf", bytes.NewReader([]byte("pdf")), "application/pdf")
	require.NoError(t, err)
	assert.NotEmpty(t, updated.FullpaymentProofKey)
	assert.Contains(t, f.auditKinds(t, order.ID), entity.EventFullPaymentUploaded)

	_, err = f.svc.AttachProof(ctx, order.ID, "unknown", "x.pdf", bytes.NewReader(nil), "application/pdf")
	assert.Equal(t, errorbank.KindBadRequest, errorbank.From(err).Kind())
}

func TestGetUnknownOrder(t *testing.T) {
	f := setupFixture(t)
	_, err := f.svc.Get(context.Background(), 4242)
	assert.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())
}
