package migration

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/schema"
)

var (
	dialectMu     sync.RWMutex
	schemaDialect schema.Dialect = pgdialect.New()
)

func setDialect(d schema.Dialect) {
	dialectMu.Lock()
	defer dialectMu.Unlock()
	schemaDialect = d
}

// bunMigration adapts a bun based step to goose's no-transaction signature.
func bunMigration(fn func(context.Context, bun.IDB) error) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, sqlDB *sql.DB) error {
		dialectMu.RLock()
		d := schemaDialect
		dialectMu.RUnlock()
		return fn(ctx, bun.NewDB(sqlDB, d))
	}
}

// CreateSchema applies every schema step directly, bypassing goose version
// tracking. Used to provision throwaway databases.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	steps := []struct {
		name string
		fn   func(context.Context, bun.IDB) error
	}{
		{"orders", upOrders},
		{"wallet", upWallet},
		{"inventory", upInventory},
		{"verification", upVerification},
		{"append-only guards", upAppendOnly},
	}
	for _, step := range steps {
		if err := step.fn(ctx, db); err != nil {
			return fmt.Errorf("create schema %s: %w", step.name, err)
		}
	}
	return nil
}

func createTables(ctx context.Context, db bun.IDB, models ...any) error {
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func dropTables(ctx context.Context, db bun.IDB, models ...any) error {
	for _, model := range models {
		if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

type index struct {
	model   any
	name    string
	columns []string
	unique  bool
}

func createIndexes(ctx context.Context, db bun.IDB, indexes ...index) error {
	for _, idx := range indexes {
		q := db.NewCreateIndex().Model(idx.model).Index(idx.name).Column(idx.columns...)
		if idx.unique {
			q = q.Unique()
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("index %s: %w", idx.name, err)
		}
	}
	return nil
}

func dialectName(db bun.IDB) dialect.Name {
	return db.Dialect().Name()
}
