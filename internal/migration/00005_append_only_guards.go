package migration

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// appendOnlyTables never lose rows in normal operation.
var appendOnlyTables = []string{
	"order_status_history",
	"wallet_transactions",
	"inventory_adjustments",
}

func init() {
	goose.AddMigrationNoTxContext(bunMigration(upAppendOnly), bunMigration(downAppendOnly))
}

func upAppendOnly(ctx context.Context, db bun.IDB) error {
	for _, table := range appendOnlyTables {
		var stmt string
		switch dialectName(db) {
		case dialect.PG:
			stmt = fmt.Sprintf("CREATE OR REPLACE RULE %s_no_delete AS ON DELETE TO %s DO INSTEAD NOTHING", table, table)
		case dialect.SQLite:
			stmt = fmt.Sprintf("CREATE TRIGGER IF NOT EXISTS %s_no_delete BEFORE DELETE ON %s BEGIN SELECT RAISE(ABORT, '%s is append-only'); END", table, table, table)
		case dialect.MySQL:
			stmt = fmt.Sprintf("CREATE TRIGGER %s_no_delete BEFORE DELETE ON %s FOR EACH ROW SIGNAL SQLSTATE '45000' SET MESSAGE_TEXT = '%s is append-only'", table, table, table)
		default:
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("guard %s: %w", table, err)
		}
	}
	return nil
}

func downAppendOnly(ctx context.Context, db bun.IDB) error {
	for _, table := range appendOnlyTables {
		var stmt string
		switch dialectName(db) {
		case dialect.PG:
			stmt = fmt.Sprintf("DROP RULE IF EXISTS %s_no_delete ON %s", table, table)
		case dialect.SQLite, dialect.MySQL:
			stmt = fmt.Sprintf("DROP TRIGGER IF EXISTS %s_no_delete", table)
		default:
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("drop guard %s: %w", table, err)
		}
	}
	return nil
}
