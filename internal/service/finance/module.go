package finance

import "go.uber.org/fx"

// Module provides the financial reconciliation engine to Fx.
var Module = fx.Provide(NewService)
