package inventory

import (
	"go.uber.org/fx"

	ordersvc "github.com/Additional-Code/fulfillment/internal/service/order"
)

// Module provides the inventory coordinator and registers it as an order hook.
var Module = fx.Options(
	fx.Provide(NewService),
	fx.Provide(
		fx.Annotate(
			func(s *Service) *Service { return s },
			fx.As(new(ordersvc.TransitionHook)),
			fx.ResultTags(`group:"order.hooks"`),
		),
	),
)
