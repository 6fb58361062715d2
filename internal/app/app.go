package app

import (
	"go.uber.org/fx"

	"github.com/aquacrest/hatchflow/internal/cache"
	"github.com/aquacrest/hatchflow/internal/clock"
	"github.com/aquacrest/hatchflow/internal/config"
	"github.com/aquacrest/hatchflow/internal/database"
	"github.com/aquacrest/hatchflow/internal/eventlog"
	"github.com/aquacrest/hatchflow/internal/inventory"
	"github.com/aquacrest/hatchflow/internal/logger"
	"github.com/aquacrest/hatchflow/internal/messaging"
	"github.com/aquacrest/hatchflow/internal/observability"
	"github.com/aquacrest/hatchflow/internal/payment"
	repositoryavailability "github.com/aquacrest/hatchflow/internal/repository/availability"
	repositoryorder "github.com/aquacrest/hatchflow/internal/repository/order"
	httpserver "github.com/aquacrest/hatchflow/internal/server/http"
	serviceavailability "github.com/aquacrest/hatchflow/internal/service/availability"
	serviceorder "github.com/aquacrest/hatchflow/internal/service/order"
	"github.com/aquacrest/hatchflow/internal/storage"
	transporthttp "github.com/aquacrest/hatchflow/internal/transport/http"
	"github.com/aquacrest/hatchflow/internal/worker"
	workernotifier "github.com/aquacrest/hatchflow/internal/worker/notifier"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	logger.Module,
	clock.Module,
	cache.Module,
	database.Module,
	messaging.Module,
	observability.Module,
	payment.Module,
	storage.Module,
	eventlog.Module,
	inventory.Module,
	repositoryorder.Module,
	repositoryavailability.Module,
	serviceorder.Module,
	serviceavailability.Module,
)

// HTTP wires the HTTP transport on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workernotifier.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
