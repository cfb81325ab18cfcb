package wallet

import "go.uber.org/fx"

// Module provides the wallet ledger to Fx.
var Module = fx.Provide(NewService)
