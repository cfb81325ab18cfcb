package wallet

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/Additional-Code/fulfillment/internal/dto"
	"github.com/Additional-Code/fulfillment/internal/presentation/http/request"
	"github.com/Additional-Code/fulfillment/internal/presentation/http/response"
	service "github.com/Additional-Code/fulfillment/internal/service/wallet"
)

// Module wires the wallet read endpoints.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)

// Handler exposes wallet balances and ledgers.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a wallet Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the wallet routes.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/wallet")
	g.GET("/balance/:customerId", h.balance)
	g.GET("/:customerId/transactions", h.transactions)
	g.GET("/orders/:orderId/transactions", h.orderTransactions)
}

func (h *Handler) balance(c echo.Context) error {
	b := response.New(c)

	customerID, err := request.ParamID(c, "customerId")
	if err != nil {
		return b.WithError(err).Build()
	}
	bal, err := h.svc.GetBalance(c.Request().Context(), customerID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.BalanceResponse{
		CustomerID:  bal.CustomerID,
		Balance:     bal.Balance,
		CreditLimit: bal.CreditLimit,
		Currency:    bal.Currency,
		Status:      string(bal.Status),
	}).Build()
}

func (h *Handler) transactions(c echo.Context) error {
	b := response.New(c)

	customerID, err := request.ParamID(c, "customerId")
	if err != nil {
		return b.WithError(err).Build()
	}
	limit := request.QueryLimit(c, 50, 500)
	txns, err := h.svc.Transactions(c.Request().Context(), customerID, limit)
	if err != nil {
		return b.WithError(err).Build()
	}
	out := make([]dto.WalletTransactionResponse, 0, len(txns))
	for _, txn := range txns {
		out = append(out, dto.NewWalletTransactionResponse(txn))
	}
	return b.WithData(out).WithMeta("limit", limit).Build()
}

func (h *Handler) orderTransactions(c echo.Context) error {
	b := response.New(c)

	orderID, err := request.ParamID(c, "orderId")
	if err != nil {
		return b.WithError(err).Build()
	}
	txns, err := h.svc.OrderTransactions(c.Request().Context(), orderID)
	if err != nil {
		return b.WithError(err).Build()
	}
	out := make([]dto.WalletTransactionResponse, 0, len(txns))
	for _, txn := range txns {
		out = append(out, dto.NewWalletTransactionResponse(txn))
	}
	return b.WithData(out).Build()
}
