package http

import (
	"go.uber.org/fx"

	availabilitytransport "github.com/aquacrest/hatchflow/internal/transport/http/availability"
	eventtransport "github.com/aquacrest/hatchflow/internal/transport/http/event"
	ordertransport "github.com/aquacrest/hatchflow/internal/transport/http/order"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	ordertransport.Module,
	availabilitytransport.Module,
	eventtransport.Module,
)
