package order

import (
	"fmt"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/fulfillment/internal/auth"
	"github.com/Additional-Code/fulfillment/internal/dto"
	"github.com/Additional-Code/fulfillment/internal/entity"
	"github.com/Additional-Code/fulfillment/internal/presentation/http/request"
	"github.com/Additional-Code/fulfillment/internal/presentation/http/response"
	service "github.com/Additional-Code/fulfillment/internal/service/order"
	"github.com/Additional-Code/fulfillment/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/fulfillment/transport/http/order")

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.POST("", h.create)
	g.GET("/:id", h.getByID)
	g.GET("/:id/history", h.history)
	g.POST("/:id/transitions", h.transition)
	g.POST("/:id/warehouse/process", h.warehouseProcess)
	g.POST("/:id/logistics/assign", h.stage(entity.StatusLogisticsAssigned, entity.StatusWarehouseApproved))
	g.POST("/:id/logistics/dispatch", h.stage(entity.StatusLogisticsDispatched, entity.StatusLogisticsAssigned))
	g.POST("/:id/logistics/fail", h.stage(entity.StatusLogisticsFailed, entity.StatusLogisticsDispatched))
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := request.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) history(c echo.Context) error {
	b := response.New(c)

	id, err := request.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	entries, err := h.svc.History(c.Request().Context(), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewHistoryResponse(entries)).Build()
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	identity, err := auth.Require(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.CreateOrderRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create")
	span.SetAttributes(attribute.String("order.customer_order_id", payload.CustomerOrderID))
	defer span.End()

	in := service.CreateInput{
		CustomerOrderID: payload.CustomerOrderID,
		CustomerID:      payload.CustomerID,
		CustomerPhone:   payload.CustomerPhone,
		TotalAmount:     payload.TotalAmount,
		Currency:        payload.Currency,
		PaymentMethod:   payload.PaymentMethod,
		CustomerNotes:   payload.Notes,
		Actor:           identity.Subject,
	}
	for _, item := range payload.Items {
		in.Items = append(in.Items, service.ItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	order, err := h.svc.Create(ctx, in)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.Created(fmt.Sprintf("/orders/%d", order.ID)).WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) transition(c echo.Context) error {
	b := response.New(c)

	id, err := request.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	identity, err := auth.Require(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.TransitionRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	expected, err := request.Status(payload.ExpectedStatus, "")
	if err != nil {
		return b.WithError(err).Build()
	}
	target, err := request.Status(payload.TargetStatus, "")
	if err != nil {
		return b.WithError(err).Build()
	}

	return h.move(c, b, service.TransitionRequest{
		OrderID:    id,
		Expected:   expected,
		Target:     target,
		Department: identity.Department,
		Actor:      identity.Subject,
		Note:       payload.Notes,
	})
}

// warehouseSources maps each warehouse target to the status it is normally taken from.
var warehouseSources = map[entity.Status]entity.Status{
	entity.StatusWarehousePending:    entity.StatusFinanceApproved,
	entity.StatusWarehouseProcessing: entity.StatusWarehousePending,
	entity.StatusWarehouseApproved:   entity.StatusWarehouseProcessing,
	entity.StatusWarehouseRejected:   entity.StatusWarehouseProcessing,
}

func (h *Handler) warehouseProcess(c echo.Context) error {
	b := response.New(c)

	id, err := request.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	identity, err := auth.Require(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.WarehouseProcessRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	target, err := request.Status(payload.Status, "")
	if err != nil {
		return b.WithError(err).Build()
	}
	source, ok := warehouseSources[target]
	if !ok {
		return b.WithError(errorbank.BadRequest("status is not a warehouse stage", errorbank.WithDetail("status", string(target)))).Build()
	}
	expected, err := request.Status(payload.ExpectedStatus, source)
	if err != nil {
		return b.WithError(err).Build()
	}

	return h.move(c, b, service.TransitionRequest{
		OrderID:    id,
		Expected:   expected,
		Target:     target,
		Department: identity.Department,
		Actor:      identity.Subject,
		Note:       payload.Notes,
	})
}

// stage builds a handler for a single-step route into target.
func (h *Handler) stage(target, source entity.Status) echo.HandlerFunc {
	return func(c echo.Context) error {
		b := response.New(c)

		id, err := request.ParamID(c, "id")
		if err != nil {
			return b.WithError(err).Build()
		}
		identity, err := auth.Require(c)
		if err != nil {
			return b.WithError(err).Build()
		}
		var payload dto.StageRequest
		if err := request.Bind(c, &payload); err != nil {
			return b.WithError(err).Build()
		}
		expected, err := request.Status(payload.ExpectedStatus, source)
		if err != nil {
			return b.WithError(err).Build()
		}

		return h.move(c, b, service.TransitionRequest{
			OrderID:    id,
			Expected:   expected,
			Target:     target,
			Department: identity.Department,
			Actor:      identity.Subject,
			Note:       payload.Notes,
		})
	}
}

func (h *Handler) move(c echo.Context, b *response.Builder, req service.TransitionRequest) error {
	ctx, span := httpTracer.Start(c.Request().Context(), "orders.transition", trace.WithAttributes(
		attribute.Int64("order.id", req.OrderID),
		attribute.String("order.target_status", string(req.Target)),
	))
	defer span.End()

	order, err := h.svc.Transition(ctx, req)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]any{"order": dto.NewOrderResponse(order)}).Build()
}
