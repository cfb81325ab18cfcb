package wallet

import "go.uber.org/fx"

// Module provides the wallet repository to Fx.
var Module = fx.Provide(NewRepository)
