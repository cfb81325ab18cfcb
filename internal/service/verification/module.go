package verification

import "go.uber.org/fx"

// Module provides the delivery verification service to Fx.
var Module = fx.Provide(NewService)
