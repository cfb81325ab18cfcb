package http

import (
	"go.uber.org/fx"

	financetransport "github.com/Additional-Code/fulfillment/internal/transport/http/finance"
	inventorytransport "github.com/Additional-Code/fulfillment/internal/transport/http/inventory"
	ordertransport "github.com/Additional-Code/fulfillment/internal/transport/http/order"
	verificationtransport "github.com/Additional-Code/fulfillment/internal/transport/http/verification"
	wallettransport "github.com/Additional-Code/fulfillment/internal/transport/http/wallet"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	ordertransport.Module,
	financetransport.Module,
	verificationtransport.Module,
	wallettransport.Module,
	inventorytransport.Module,
)
