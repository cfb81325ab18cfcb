package dto

import "time"

// RegisterInventoryRequest starts tracking a product.
type RegisterInventoryRequest struct {
	ProductID         int64 `json:"productId" validate:"required,gt=0"`
	StockQuantity     int64 `json:"stockQuantity" validate:"gte=0"`
	MinStockLevel     int64 `json:"minStockLevel" validate:"gte=0"`
	LowStockThreshold int64 `json:"lowStockThreshold" validate:"gte=0"`
}

// WasteRequest replaces the recorded waste of a product.
type WasteRequest struct {
	WasteAmount int64  `json:"wasteAmount" validate:"gte=0"`
	Reason      string `json:"reason" validate:"required,max=500"`
}

// StockRequest adjusts the stock quantity of a product.
type StockRequest struct {
	Delta  int64  `json:"delta" validate:"required"`
	Reason string `json:"reason" validate:"required,max=500"`
}

// InventoryResponse is an inventory record with derived figures.
type InventoryResponse struct {
	ProductID         int64     `json:"productId"`
	StockQuantity     int64     `json:"stockQuantity"`
	GoodsInTransit    int64     `json:"goodsInTransitQuantity"`
	WasteAmount       int64     `json:"wasteAmount"`
	WasteReason       string    `json:"wasteReason,omitempty"`
	FinalInventory    int64     `json:"finalInventory"`
	MinStockLevel     int64     `json:"minStockLevel"`
	LowStockThreshold int64     `json:"lowStockThreshold"`
	Level             string    `json:"level"`
	UpdatedAt         time.Time `json:"updatedAt"`
}
