package inventory

import (
	"fmt"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/Additional-Code/fulfillment/internal/auth"
	"github.com/Additional-Code/fulfillment/internal/dto"
	"github.com/Additional-Code/fulfillment/internal/presentation/http/request"
	"github.com/Additional-Code/fulfillment/internal/presentation/http/response"
	service "github.com/Additional-Code/fulfillment/internal/service/inventory"
)

// Module wires the inventory endpoints.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)

// Handler exposes stock and waste endpoints.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an inventory Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the inventory routes.
func Register(e *echo.Echo, h *Handler) {
	e.POST("/inventory", h.register)
	g := e.Group("/inventory/:productId")
	g.GET("", h.get)
	g.GET("/adjustments", h.adjustments)
	g.POST("/waste", h.waste)
	g.POST("/stock", h.stock)
}

func (h *Handler) register(c echo.Context) error {
	b := response.New(c)

	if _, err := auth.Require(c); err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.RegisterInventoryRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	ctx := c.Request().Context()
	record, err := h.svc.Register(ctx, service.RegisterInput{
		ProductID:         payload.ProductID,
		StockQuantity:     payload.StockQuantity,
		MinStockLevel:     payload.MinStockLevel,
		LowStockThreshold: payload.LowStockThreshold,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	view, err := h.svc.Get(ctx, record.ProductID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.Created(fmt.Sprintf("/inventory/%d", record.ProductID)).WithData(toDTO(view)).Build()
}

func (h *Handler) get(c echo.Context) error {
	b := response.New(c)

	productID, err := request.ParamID(c, "productId")
	if err != nil {
		return b.WithError(err).Build()
	}
	view, err := h.svc.Get(c.Request().Context(), productID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toDTO(view)).Build()
}

func (h *Handler) adjustments(c echo.Context) error {
	b := response.New(c)

	productID, err := request.ParamID(c, "productId")
	if err != nil {
		return b.WithError(err).Build()
	}
	adjs, err := h.svc.Adjustments(c.Request().Context(), productID, request.QueryLimit(c, 50, 500))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(adjs).Build()
}

func (h *Handler) waste(c echo.Context) error {
	b := response.New(c)

	productID, err := request.ParamID(c, "productId")
	if err != nil {
		return b.WithError(err).Build()
	}
	if _, err := auth.Require(c); err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.WasteRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	view, err := h.svc.RecordWaste(c.Request().Context(), productID, payload.WasteAmount, payload.Reason)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]any{"inventoryRecord": toDTO(view)}).Build()
}

func (h *Handler) stock(c echo.Context) error {
	b := response.New(c)

	productID, err := request.ParamID(c, "productId")
	if err != nil {
		return b.WithError(err).Build()
	}
	if _, err := auth.Require(c); err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.StockRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	view, err := h.svc.AdjustStock(c.Request().Context(), productID, payload.Delta, payload.Reason, nil)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]any{"inventoryRecord": toDTO(view)}).Build()
}

func toDTO(view service.View) dto.InventoryResponse {
	return dto.InventoryResponse{
		ProductID:         view.Record.ProductID,
		StockQuantity:     view.Record.StockQuantity,
		GoodsInTransit:    view.TransitQty,
		WasteAmount:       view.Record.WasteAmount,
		WasteReason:       view.Record.WasteReason,
		FinalInventory:    view.FinalInventory,
		MinStockLevel:     view.Record.MinStockLevel,
		LowStockThreshold: view.Record.LowStockThreshold,
		Level:             string(view.Level),
		UpdatedAt:         view.Record.UpdatedAt,
	}
}
