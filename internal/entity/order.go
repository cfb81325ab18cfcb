package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Order is the management record of a customer order moving through departments.
// Status is changed only by the order state machine.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID              int64               `bun:",pk,autoincrement" json:"id"`
	CustomerOrderID string              `bun:"customer_order_id,notnull,unique" json:"customer_order_id"`
	CustomerID      int64               `bun:"customer_id,notnull" json:"customer_id"`
	CustomerPhone   string              `bun:"customer_phone" json:"customer_phone,omitempty"`
	TotalAmount     decimal.Decimal     `bun:"total_amount,type:numeric(20,2),notnull" json:"total_amount"`
	Currency        string              `bun:"currency,notnull" json:"currency"`
	PaymentMethod   string              `bun:"payment_method,notnull" json:"payment_method"`
	ReceiptAmount   decimal.NullDecimal `bun:"receipt_amount,type:numeric(20,2)" json:"receipt_amount"`
	Status          Status              `bun:"status,notnull" json:"status"`
	CustomerNotes   string              `bun:"customer_notes" json:"customer_notes,omitempty"`
	FinancialNotes  string              `bun:"financial_notes" json:"financial_notes,omitempty"`
	WarehouseNotes  string              `bun:"warehouse_notes" json:"warehouse_notes,omitempty"`
	LogisticsNotes  string              `bun:"logistics_notes" json:"logistics_notes,omitempty"`
	DeliveryNotes   string              `bun:"delivery_notes" json:"delivery_notes,omitempty"`
	Version         int64               `bun:"version,notnull,default:0" json:"version"`
	CreatedAt       time.Time           `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time           `bun:"updated_at,nullzero" json:"updated_at"`

	Items []*OrderItem `bun:"rel:has-many,join:id=order_id" json:"items,omitempty"`
}

// OrderItem is a product line reserved by an order.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ID        int64           `bun:",pk,autoincrement" json:"id"`
	OrderID   int64           `bun:"order_id,notnull" json:"order_id"`
	ProductID int64           `bun:"product_id,notnull" json:"product_id"`
	Quantity  int64           `bun:"quantity,notnull" json:"quantity"`
	UnitPrice decimal.Decimal `bun:"unit_price,type:numeric(20,2),notnull" json:"unit_price"`
}

// StatusHistoryEntry is one append-only audit record of a status change.
type StatusHistoryEntry struct {
	bun.BaseModel `bun:"table:order_status_history,alias:h"`

	ID               int64      `bun:",pk,autoincrement" json:"id"`
	OrderID          int64      `bun:"order_id,notnull" json:"order_id"`
	FromStatus       Status     `bun:"from_status,nullzero" json:"from_status,omitempty"`
	ToStatus         Status     `bun:"to_status,notnull" json:"to_status"`
	ActingDepartment Department `bun:"acting_department,notnull" json:"acting_department"`
	Actor            string     `bun:"actor" json:"actor,omitempty"`
	Note             string     `bun:"note" json:"note,omitempty"`
	ManualOverride   bool       `bun:"manual_override,notnull,default:false" json:"manual_override"`
	CreatedAt        time.Time  `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
}
