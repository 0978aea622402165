package app

import (
	"go.uber.org/fx"

	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/audit"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/cache"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/config"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/database"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/engine"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/keyring"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/logger"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/messaging"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/observability"
	repositoryorder "github.com/patelmeet1372/Secure-Purchase-Order-System/internal/repository/order"
	grpcserver "github.com/patelmeet1372/Secure-Purchase-Order-System/internal/server/grpc"
	httpserver "github.com/patelmeet1372/Secure-Purchase-Order-System/internal/server/http"
	serviceorder "github.com/patelmeet1372/Secure-Purchase-Order-System/internal/service/order"
	transporthttp "github.com/patelmeet1372/Secure-Purchase-Order-System/internal/transport/http"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/worker"
	workerorder "github.com/patelmeet1372/Secure-Purchase-Order-System/internal/worker/order"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	keyring.Module,
	audit.Module,
	repositoryorder.Module,
	engine.Module,
	serviceorder.Module,
)

// HTTP wires the HTTP transport on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	transporthttp.Module,
)

// GRPC wires the gRPC server on top of the core modules.
var GRPC = fx.Options(
	Core,
	grpcserver.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
