package inventory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Additional-Code/fulfillment/internal/database"
	"github.com/Additional-Code/fulfillment/internal/entity"
	"github.com/Additional-Code/fulfillment/internal/messaging"
)

// Level classifies final inventory against the configured thresholds.
type Level string

const (
	LevelOK       Level = "ok"
	LevelLowStock Level = "low_stock"
	LevelCritical Level = "critical"
)

func (l Level) severity() int {
	switch l {
	case LevelCritical:
		return 2
	case LevelLowStock:
		return 1
	}
	return 0
}

// LevelFor reports the level of a final inventory figure.
func LevelFor(final int64, record *entity.InventoryRecord) Level {
	switch {
	case final < record.MinStockLevel:
		return LevelCritical
	case final < record.LowStockThreshold:
		return LevelLowStock
	}
	return LevelOK
}

// EventThresholdCrossed is published when final inventory drops below a threshold.
const EventThresholdCrossed = "inventory.threshold_crossed"

// ThresholdAlert is the bus payload for EventThresholdCrossed.
type ThresholdAlert struct {
	ProductID         int64 `json:"product_id"`
	Level             Level `json:"level"`
	FinalInventory    int64 `json:"final_inventory"`
	StockQuantity     int64 `json:"stock_quantity"`
	GoodsInTransit    int64 `json:"goods_in_transit"`
	WasteAmount       int64 `json:"waste_amount"`
	MinStockLevel     int64 `json:"min_stock_level"`
	LowStockThreshold int64 `json:"low_stock_threshold"`
	Reminder          bool  `json:"reminder,omitempty"`
}

func (s *Service) checkThreshold(ctx context.Context, record *entity.InventoryRecord, transit, before, after int64) {
	from, to := LevelFor(before, record), LevelFor(after, record)
	if to.severity() <= from.severity() {
		return
	}
	alert := ThresholdAlert{
		ProductID:         record.ProductID,
		Level:             to,
		FinalInventory:    after,
		StockQuantity:     record.StockQuantity,
		GoodsInTransit:    transit,
		WasteAmount:       record.WasteAmount,
		MinStockLevel:     record.MinStockLevel,
		LowStockThreshold: record.LowStockThreshold,
	}
	database.AfterCommit(ctx, func(ctx context.Context) {
		s.announce(ctx, alert)
	})
}

func (s *Service) announce(ctx context.Context, alert ThresholdAlert) {
	s.metrics.Alert(ctx, string(alert.Level))
	s.logger.Warn("inventory threshold crossed",
		zap.Int64("product.id", alert.ProductID),
		zap.String("level", string(alert.Level)),
		zap.Int64("final_inventory", alert.FinalInventory),
		zap.Bool("reminder", alert.Reminder),
	)
	key := fmt.Sprintf("product-%d", alert.ProductID)
	if err := messaging.Publish(ctx, s.publisher, key, EventThresholdCrossed, alert); err != nil {
		s.logger.Error("publish inventory alert", zap.Int64("product.id", alert.ProductID), zap.Error(err))
	}
}

// RemindLowStock re-announces every product currently below a threshold.
// It walks records in product order and returns how many alerts were sent.
func (s *Service) RemindLowStock(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 200
	}
	sent := 0
	var after int64
	for {
		records, err := s.repo.List(ctx, after, batchSize)
		if err != nil {
			return sent, err
		}
		for i := range records {
			record := &records[i]
			transit, err := s.TransitQuantity(ctx, record.ProductID)
			if err != nil {
				return sent, err
			}
			final := entity.FinalInventory(record.StockQuantity, transit, record.WasteAmount)
			level := LevelFor(final, record)
			if level == LevelOK {
				continue
			}
			s.announce(ctx, ThresholdAlert{
				ProductID:         record.ProductID,
				Level:             level,
				FinalInventory:    final,
				StockQuantity:     record.StockQuantity,
				GoodsInTransit:    transit,
				WasteAmount:       record.WasteAmount,
				MinStockLevel:     record.MinStockLevel,
				LowStockThreshold: record.LowStockThreshold,
				Reminder:          true,
			})
			sent++
		}
		if len(records) < batchSize {
			return sent, nil
		}
		after = records[len(records)-1].ProductID
	}
}
