package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/schema"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/fulfillment/internal/config"
)

// Connections bundles writer and reader bun instances. Workflow writes always go
// to Writer; Reader may lag and only serves listings and reports.
type Connections struct {
	Writer *bun.DB
	Reader *bun.DB
}

// Module registers the database connections with Fx.
var Module = fx.Provide(New)

// New opens the writer pool and, when a distinct DSN is configured, a reader
// pool. Both are pinged on start and closed on stop.
func New(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*Connections, error) {
	dial, err := SelectDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	writer, err := openBun(cfg.Database, cfg.Database.WriterDSN, dial, logger.Named("db.writer"))
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	reader := writer
	if cfg.Database.ReaderDSN != "" && cfg.Database.ReaderDSN != cfg.Database.WriterDSN {
		if reader, err = openBun(cfg.Database, cfg.Database.ReaderDSN, dial, logger.Named("db.reader")); err != nil {
			_ = writer.Close()
			return nil, fmt.Errorf("open reader: %w", err)
		}
	}

	conns := &Connections{Writer: writer, Reader: reader}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			for role, db := range conns.pools() {
				if err := pingContext(ctx, db); err != nil {
					return fmt.Errorf("ping %s: %w", role, err)
				}
			}
			logger.Info("database connected",
				zap.String("driver", cfg.Database.Driver),
				zap.Bool("replica", reader != writer),
			)
			return nil
		},
		OnStop: func(context.Context) error {
			var closeErr error
			for role, db := range conns.pools() {
				if err := db.Close(); err != nil {
					closeErr = errors.Join(closeErr, fmt.Errorf("close %s: %w", role, err))
				}
			}
			return closeErr
		},
	})

	return conns, nil
}

// pools lists the distinct pools by role.
func (c *Connections) pools() map[string]*bun.DB {
	out := map[string]*bun.DB{"writer": c.Writer}
	if c.Reader != nil && c.Reader != c.Writer {
		out["reader"] = c.Reader
	}
	return out
}

func openBun(cfg config.Database, dsn string, dial schema.Dialect, logger *zap.Logger) (*bun.DB, error) {
	sqlDB, err := openSQLDB(cfg.Driver, dsn)
	if err != nil {
		return nil, err
	}
	applyPoolSettings(sqlDB, cfg)
	db := bun.NewDB(sqlDB, dial)
	db.AddQueryHook(newSlowQueryHook(logger, cfg.SlowQuery))
	return db, nil
}

// SelectDialect maps a configured driver name onto its bun dialect.
func SelectDialect(driver string) (schema.Dialect, error) {
	switch driver {
	case "postgres":
		return pgdialect.New(), nil
	case "mysql":
		return mysqldialect.New(), nil
	case "sqlite":
		return sqlitedialect.New(), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

func openSQLDB(driver, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("empty DSN")
	}

	switch driver {
	case "postgres":
		connector := pgdriver.NewConnector(pgdriver.WithDSN(dsn))
		return sql.OpenDB(connector), nil
	case "mysql":
		return sql.Open("mysql", dsn)
	case "sqlite":
		return sql.Open("sqlite3", sqliteDSN(dsn))
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}
}

// sqliteDSN adds a busy timeout so concurrent writers wait on the file lock.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_busy_timeout=5000"
}

func applyPoolSettings(db *sql.DB, cfg config.Database) {
	if cfg.Driver == "sqlite" {
		db.SetMaxOpenConns(1)
		return
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxConnLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	}
}

func pingContext(ctx context.Context, db *bun.DB) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.DB.PingContext(pingCtx)
}

// slowQueryHook warns on statements that take at least threshold and records
// failed statements at debug level.
type slowQueryHook struct {
	logger    *zap.Logger
	threshold time.Duration
}

func newSlowQueryHook(logger *zap.Logger, threshold time.Duration) *slowQueryHook {
	return &slowQueryHook{logger: logger, threshold: threshold}
}

func (h *slowQueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *slowQueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)
	switch {
	case event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows):
		h.logger.Debug("query failed",
			zap.String("operation", event.Operation()),
			zap.Duration("elapsed", elapsed),
			zap.Error(event.Err),
		)
	case h.threshold > 0 && elapsed >= h.threshold:
		h.logger.Warn("slow query",
			zap.String("operation", event.Operation()),
			zap.Duration("elapsed", elapsed),
			zap.String("query", event.Query),
		)
	}
}
