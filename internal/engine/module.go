package engine

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/audit"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/keyring"
	repo "github.com/patelmeet1372/Secure-Purchase-Order-System/internal/repository/order"
)

// Module provides the workflow engine to Fx, binding the concrete
// repository, key registry and audit trail to the engine's interfaces.
var Module = fx.Provide(func(r *repo.Repository, reg *keyring.Registry, trail *audit.Trail, logger *zap.Logger) *Engine {
	return New(r, reg, trail, logger)
})
