package migration

import (
	"context"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"

	"github.com/Additional-Code/fulfillment/internal/entity"
)

func init() {
	goose.AddMigrationNoTxContext(bunMigration(upOrders), bunMigration(downOrders))
}

func upOrders(ctx context.Context, db bun.IDB) error {
	if err := createTables(ctx, db,
		(*entity.Order)(nil),
		(*entity.OrderItem)(nil),
		(*entity.StatusHistoryEntry)(nil),
	); err != nil {
		return err
	}
	return createIndexes(ctx, db,
		index{model: (*entity.Order)(nil), name: "orders_status_created_at_idx", columns: []string{"status", "created_at"}},
		index{model: (*entity.Order)(nil), name: "orders_customer_id_idx", columns: []string{"customer_id"}},
		index{model: (*entity.OrderItem)(nil), name: "order_items_order_id_idx", columns: []string{"order_id"}},
		index{model: (*entity.OrderItem)(nil), name: "order_items_product_id_idx", columns: []string{"product_id"}},
		index{model: (*entity.StatusHistoryEntry)(nil), name: "order_status_history_order_id_idx", columns: []string{"order_id"}},
	)
}

func downOrders(ctx context.Context, db bun.IDB) error {
	return dropTables(ctx, db,
		(*entity.StatusHistoryEntry)(nil),
		(*entity.OrderItem)(nil),
		(*entity.Order)(nil),
	)
}
