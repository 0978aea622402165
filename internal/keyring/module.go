package keyring

import "go.uber.org/fx"

// Module provides the key registry to Fx.
var Module = fx.Provide(NewRegistry)
