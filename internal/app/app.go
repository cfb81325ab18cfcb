package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/fulfillment/internal/auth"
	"github.com/Additional-Code/fulfillment/internal/cache"
	"github.com/Additional-Code/fulfillment/internal/config"
	"github.com/Additional-Code/fulfillment/internal/database"
	"github.com/Additional-Code/fulfillment/internal/logger"
	"github.com/Additional-Code/fulfillment/internal/messaging"
	"github.com/Additional-Code/fulfillment/internal/observability"
	repositoryinventory "github.com/Additional-Code/fulfillment/internal/repository/inventory"
	repositoryorder "github.com/Additional-Code/fulfillment/internal/repository/order"
	repositoryverification "github.com/Additional-Code/fulfillment/internal/repository/verification"
	repositorywallet "github.com/Additional-Code/fulfillment/internal/repository/wallet"
	grpcserver "github.com/Additional-Code/fulfillment/internal/server/grpc"
	httpserver "github.com/Additional-Code/fulfillment/internal/server/http"
	servicefinance "github.com/Additional-Code/fulfillment/internal/service/finance"
	serviceinventory "github.com/Additional-Code/fulfillment/internal/service/inventory"
	serviceorder "github.com/Additional-Code/fulfillment/internal/service/order"
	serviceverification "github.com/Additional-Code/fulfillment/internal/service/verification"
	servicewallet "github.com/Additional-Code/fulfillment/internal/service/wallet"
	"github.com/Additional-Code/fulfillment/internal/sms"
	transporthttp "github.com/Additional-Code/fulfillment/internal/transport/http"
	"github.com/Additional-Code/fulfillment/internal/worker"
	"github.com/Additional-Code/fulfillment/internal/worker/notification"
	"github.com/Additional-Code/fulfillment/internal/worker/sweep"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	sms.Module,
	auth.Module,
	repositoryorder.Module,
	repositorywallet.Module,
	repositoryinventory.Module,
	repositoryverification.Module,
	serviceorder.Module,
	servicewallet.Module,
	servicefinance.Module,
	serviceinventory.Module,
	serviceverification.Module,
)

// HTTP wires the HTTP transport and gRPC health endpoint on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background event processing and the workflow sweep.
var Worker = fx.Options(
	Core,
	worker.Module,
	notification.Module,
	sweep.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
