package http

import (
	"go.uber.org/fx"

	"github.com/labstack/echo/v4"

	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/keyring"
	audittransport "github.com/patelmeet1372/Secure-Purchase-Order-System/internal/transport/http/audit"
	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/transport/http/identity"
	keytransport "github.com/patelmeet1372/Secure-Purchase-Order-System/internal/transport/http/key"
	ordertransport "github.com/patelmeet1372/Secure-Purchase-Order-System/internal/transport/http/order"
)

// Module aggregates all HTTP transport handlers plus the identity middleware
// that resolves the calling user before any handler runs.
var Module = fx.Options(
	fx.Invoke(func(e *echo.Echo, reg *keyring.Registry) {
		e.Use(identity.Middleware(reg))
	}),
	ordertransport.Module,
	keytransport.Module,
	audittransport.Module,
)
