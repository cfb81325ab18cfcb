package finance

import (
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/Additional-Code/fulfillment/internal/auth"
	"github.com/Additional-Code/fulfillment/internal/dto"
	"github.com/Additional-Code/fulfillment/internal/entity"
	"github.com/Additional-Code/fulfillment/internal/presentation/http/request"
	"github.com/Additional-Code/fulfillment/internal/presentation/http/response"
	service "github.com/Additional-Code/fulfillment/internal/service/finance"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/fulfillment/transport/http/finance")

// Module wires the finance review endpoints.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)

// Handler exposes payment review endpoints.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a finance Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the finance routes under /orders/:id/finance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders/:id/finance")
	g.POST("/approve", h.approve)
	g.POST("/reject", h.reject)
	g.POST("/override-approve", h.overrideApprove)
}

func (h *Handler) approve(c echo.Context) error {
	b := response.New(c)

	id, err := request.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	identity, err := auth.Require(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.ApproveRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	expected, err := request.Status(payload.ExpectedStatus, entity.StatusFinancePending)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "finance.approve", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	res, err := h.svc.Approve(ctx, service.ApproveInput{
		OrderID:       id,
		Expected:      expected,
		ReceiptAmount: payload.ReceiptAmount,
		Notes:         payload.Notes,
		Department:    identity.Department,
		Actor:         identity.Subject,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewApproveResponse(res.Order, res.WalletTransaction, res.Shortfall, res.Uncovered)).Build()
}

func (h *Handler) overrideApprove(c echo.Context) error {
	b := response.New(c)

	id, err := request.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	identity, err := auth.Require(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.OverrideRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	expected, err := request.Status(payload.ExpectedStatus, entity.StatusFinancePending)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "finance.overrideApprove", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	res, err := h.svc.OverrideApprove(ctx, service.OverrideInput{
		OrderID:       id,
		Expected:      expected,
		ReceiptAmount: payload.ReceiptAmount,
		Notes:         payload.Notes,
		Department:    identity.Department,
		Actor:         identity.Subject,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewApproveResponse(res.Order, res.WalletTransaction, res.Shortfall, res.Uncovered)).Build()
}

func (h *Handler) reject(c echo.Context) error {
	b := response.New(c)

	id, err := request.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	identity, err := auth.Require(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.RejectRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	expected, err := request.Status(payload.ExpectedStatus, entity.StatusFinancePending)
	if err != nil {
		return b.WithError(err).Build()
	}

	order, err := h.svc.Reject(c.Request().Context(), service.RejectInput{
		OrderID:    id,
		Expected:   expected,
		Notes:      payload.Notes,
		Department: identity.Department,
		Actor:      identity.Subject,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]any{"order": dto.NewOrderResponse(order)}).Build()
}
