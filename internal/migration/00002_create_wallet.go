package migration

import (
	"context"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"

	"github.com/Additional-Code/fulfillment/internal/entity"
)

func init() {
	goose.AddMigrationNoTxContext(bunMigration(upWallet), bunMigration(downWallet))
}

func upWallet(ctx context.Context, db bun.IDB) error {
	if err := createTables(ctx, db,
		(*entity.WalletAccount)(nil),
		(*entity.WalletTransaction)(nil),
	); err != nil {
		return err
	}
	return createIndexes(ctx, db,
		index{model: (*entity.WalletTransaction)(nil), name: "wallet_transactions_wallet_id_idx", columns: []string{"wallet_id"}},
	)
}

func downWallet(ctx context.Context, db bun.IDB) error {
	return dropTables(ctx, db,
		(*entity.WalletTransaction)(nil),
		(*entity.WalletAccount)(nil),
	)
}
