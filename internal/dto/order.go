package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/fulfillment/internal/entity"
)

// CreateOrderRequest registers an order placed at checkout.
type CreateOrderRequest struct {
	CustomerOrderID string             `json:"customerOrderId" validate:"required,max=64"`
	CustomerID      int64              `json:"customerId" validate:"required,gt=0"`
	CustomerPhone   string             `json:"customerPhone" validate:"omitempty,e164"`
	TotalAmount     decimal.Decimal    `json:"totalAmount"`
	Currency        string             `json:"currency" validate:"required,len=3"`
	PaymentMethod   string             `json:"paymentMethod" validate:"required"`
	Notes           string             `json:"notes" validate:"max=2000"`
	Items           []OrderItemRequest `json:"items" validate:"dive"`
}

// OrderItemRequest is one product line of CreateOrderRequest.
type OrderItemRequest struct {
	ProductID int64           `json:"productId" validate:"required,gt=0"`
	Quantity  int64           `json:"quantity" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// TransitionRequest asks for a generic status change.
type TransitionRequest struct {
	ExpectedStatus string `json:"expectedStatus" validate:"required"`
	TargetStatus   string `json:"targetStatus" validate:"required"`
	Notes          string `json:"notes" validate:"max=2000"`
}

// WarehouseProcessRequest moves an order through the warehouse stage.
type WarehouseProcessRequest struct {
	ExpectedStatus string `json:"expectedStatus"`
	Status         string `json:"status" validate:"required"`
	Notes          string `json:"notes" validate:"max=2000"`
}

// StageRequest is the body of single-step stage routes.
type StageRequest struct {
	ExpectedStatus string `json:"expectedStatus"`
	Notes          string `json:"notes" validate:"max=2000"`
}

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID              int64               `json:"id"`
	CustomerOrderID string              `json:"customerOrderId"`
	CustomerID      int64               `json:"customerId"`
	TotalAmount     decimal.Decimal     `json:"totalAmount"`
	ReceiptAmount   *decimal.Decimal    `json:"receiptAmount,omitempty"`
	Currency        string              `json:"currency"`
	PaymentMethod   string              `json:"paymentMethod"`
	Status          entity.Status       `json:"status"`
	Notes           map[string]string   `json:"notes,omitempty"`
	Items           []OrderItemResponse `json:"items,omitempty"`
	Version         int64               `json:"version"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

// OrderItemResponse is one product line of an order.
type OrderItemResponse struct {
	ProductID int64           `json:"productId"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// HistoryEntryResponse is one audit trail row.
type HistoryEntryResponse struct {
	FromStatus       entity.Status     `json:"fromStatus,omitempty"`
	ToStatus         entity.Status     `json:"toStatus"`
	ActingDepartment entity.Department `json:"actingDepartment"`
	Actor            string            `json:"actor,omitempty"`
	Note             string            `json:"note,omitempty"`
	ManualOverride   bool              `json:"manualOverride,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
}

// NewOrderResponse maps an order entity.
func NewOrderResponse(order *entity.Order) OrderResponse {
	if order == nil {
		return OrderResponse{}
	}
	resp := OrderResponse{
		ID:              order.ID,
		CustomerOrderID: order.CustomerOrderID,
		CustomerID:      order.CustomerID,
		TotalAmount:     order.TotalAmount,
		Currency:        order.Currency,
		PaymentMethod:   order.PaymentMethod,
		Status:          order.Status,
		Version:         order.Version,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
	if order.ReceiptAmount.Valid {
		receipt := order.ReceiptAmount.Decimal
		resp.ReceiptAmount = &receipt
	}
	notes := map[string]string{
		"customer":  order.CustomerNotes,
		"financial": order.FinancialNotes,
		"warehouse": order.WarehouseNotes,
		"logistics": order.LogisticsNotes,
		"delivery":  order.DeliveryNotes,
	}
	for k, v := range notes {
		if v == "" {
			delete(notes, k)
		}
	}
	if len(notes) > 0 {
		resp.Notes = notes
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return resp
}

// NewHistoryResponse maps audit entries.
func NewHistoryResponse(entries []entity.StatusHistoryEntry) []HistoryEntryResponse {
	out := make([]HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryEntryResponse{
			FromStatus:       e.FromStatus,
			ToStatus:         e.ToStatus,
			ActingDepartment: e.ActingDepartment,
			Actor:            e.Actor,
			Note:             e.Note,
			ManualOverride:   e.ManualOverride,
			CreatedAt:        e.CreatedAt,
		})
	}
	return out
}
