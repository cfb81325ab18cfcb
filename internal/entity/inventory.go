package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// InventoryRecord tracks stock for a single product.
type InventoryRecord struct {
	bun.BaseModel `bun:"table:inventory_records,alias:ir"`

	ID                int64     `bun:",pk,autoincrement" json:"id"`
	ProductID         int64     `bun:"product_id,notnull,unique" json:"product_id"`
	StockQuantity     int64     `bun:"stock_quantity,notnull" json:"stock_quantity"`
	MinStockLevel     int64     `bun:"min_stock_level,notnull" json:"min_stock_level"`
	LowStockThreshold int64     `bun:"low_stock_threshold,notnull" json:"low_stock_threshold"`
	WasteAmount       int64     `bun:"waste_amount,notnull" json:"waste_amount"`
	WasteReason       string    `bun:"waste_reason" json:"waste_reason,omitempty"`
	Version           int64     `bun:"version,notnull,default:0" json:"version"`
	UpdatedAt         time.Time `bun:"updated_at,nullzero" json:"updated_at"`
}

// FinalInventory applies the display rule max(0, stock + transit - waste).
func FinalInventory(stock, transit, waste int64) int64 {
	v := stock + transit - waste
	if v < 0 {
		return 0
	}
	return v
}

// InventoryAdjustment is an append-only record of a stock or waste change.
type InventoryAdjustment struct {
	bun.BaseModel `bun:"table:inventory_adjustments,alias:ia"`

	ID             int64     `bun:",pk,autoincrement" json:"id"`
	ProductID      int64     `bun:"product_id,notnull" json:"product_id"`
	Kind           string    `bun:"kind,notnull" json:"kind"`
	Delta          int64     `bun:"delta,notnull" json:"delta"`
	ResultingValue int64     `bun:"resulting_value,notnull" json:"resulting_value"`
	Reason         string    `bun:"reason,notnull" json:"reason"`
	RelatedOrderID *int64    `bun:"related_order_id" json:"related_order_id,omitempty"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
}

const (
	AdjustmentStock = "stock"
	AdjustmentWaste = "waste"
)
