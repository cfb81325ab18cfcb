package migration

import (
	"context"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"

	"github.com/Additional-Code/fulfillment/internal/entity"
)

func init() {
	goose.AddMigrationNoTxContext(bunMigration(upVerification), bunMigration(downVerification))
}

func upVerification(ctx context.Context, db bun.IDB) error {
	if err := createTables(ctx, db, (*entity.VerificationCode)(nil)); err != nil {
		return err
	}
	// is_current is NULL for superseded codes, so the unique index only binds live ones.
	return createIndexes(ctx, db,
		index{
			model:   (*entity.VerificationCode)(nil),
			name:    "verification_codes_current_uidx",
			columns: []string{"order_id", "is_current"},
			unique:  true,
		},
	)
}

func downVerification(ctx context.Context, db bun.IDB) error {
	return dropTables(ctx, db, (*entity.VerificationCode)(nil))
}
