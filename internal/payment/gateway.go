// Package payment defines the contract the order workflow requires from a
// payment processor, plus the adapters shipped with the service. Calls are
// synchronous and at-most-once; the workflow applies its own request timeout.
package payment

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/aquacrest/hatchflow/internal/config"
	"github.com/aquacrest/hatchflow/internal/entity"
)

// Result reports the outcome of a payment request.
type Result struct {
	Success        bool
	TransactionRef string
}

// Gateway is the external payment-processing collaborator.
type Gateway interface {
	RequestDownpayment(ctx context.Context, order *entity.Order) (Result, error)
	RequestFullPayment(ctx context.Context, order *entity.Order) (Result, error)
	Verify(ctx context.Context, transactionRef string) (bool, error)
}

// Module wires the configured gateway adapter.
var Module = fx.Provide(NewGateway)

// NewGateway selects a gateway implementation based on configuration.
func NewGateway(cfg config.Config, logger *zap.Logger) (Gateway, error) {
	switch cfg.Payment.Driver {
	case "simulated":
		return &simulatedGateway{logger: logger}, nil
	case "noop":
		logger.Info("payment gateway disabled; using noop adapter")
		return noopGateway{}, nil
	default:
		return nil, fmt.Errorf("unsupported payment driver: %s", cfg.Payment.Driver)
	}
}

const (
	downpaymentRefPrefix = "DP-"
	fullpaymentRefPrefix = "FP-"
)

// simulatedGateway mimics a processor that always accepts. Transaction refs
// are derived from the order id and creation time so they stay stable across
// retries of the same transition.
type simulatedGateway struct {
	logger *zap.Logger
}

func (g *simulatedGateway) RequestDownpayment(ctx context.Context, order *entity.Order) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	ref := fmt.Sprintf("%s%d-%d", downpaymentRefPrefix, order.ID, order.CreatedAt.Unix())
	g.logger.Debug("downpayment requested", zap.Int64("order_id", order.ID), zap.String("ref", ref))
	return Result{Success: true, TransactionRef: ref}, nil
}

func (g *simulatedGateway) RequestFullPayment(ctx context.Context, order *entity.Order) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	ref := fmt.Sprintf("%s%d-%d", fullpaymentRefPrefix, order.ID, order.CreatedAt.Unix())
	g.logger.Debug("full payment requested", zap.Int64("order_id", order.ID), zap.String("ref", ref))
	return Result{Success: true, TransactionRef: ref}, nil
}

func (g *simulatedGateway) Verify(ctx context.Context, transactionRef string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return strings.HasPrefix(transactionRef, downpaymentRefPrefix) ||
		strings.HasPrefix(transactionRef, fullpaymentRefPrefix), nil
}

// noopGateway declines everything; useful when running the API without a
// processor configured.
type noopGateway struct{}

func (noopGateway) RequestDownpayment(context.Context, *entity.Order) (Result, error) {
	return Result{}, nil
}

func (noopGateway) RequestFullPayment(context.Context, *entity.Order) (Result, error) {
	return Result{}, nil
}

func (noopGateway) Verify(context.Context, string) (bool, error) {
	return false, nil
}
