package migration

import (
	"context"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"

	"github.com/Additional-Code/fulfillment/internal/entity"
)

func init() {
	goose.AddMigrationNoTxContext(bunMigration(upInventory), bunMigration(downInventory))
}

func upInventory(ctx context.Context, db bun.IDB) error {
	if err := createTables(ctx, db,
		(*entity.InventoryRecord)(nil),
		(*entity.InventoryAdjustment)(nil),
	); err != nil {
		return err
	}
	return createIndexes(ctx, db,
		index{model: (*entity.InventoryAdjustment)(nil), name: "inventory_adjustments_product_id_idx", columns: []string{"product_id"}},
	)
}

func downInventory(ctx context.Context, db bun.IDB) error {
	return dropTables(ctx, db,
		(*entity.InventoryAdjustment)(nil),
		(*entity.InventoryRecord)(nil),
	)
}
