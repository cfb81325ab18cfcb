package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Additional-Code/fulfillment/internal/config"
)

func TestSelectDialect(t *testing.T) {
	for _, driver := range []string{"postgres", "mysql", "sqlite"} {
		dial, err := SelectDialect(driver)
		require.NoError(t, err, driver)
		assert.NotNil(t, dial)
	}
	_, err := SelectDialect("oracle")
	assert.Error(t, err)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "file:fulfillment.db?_busy_timeout=5000", sqliteDSN("file:fulfillment.db"))
	assert.Equal(t, "file:x?mode=memory&_busy_timeout=5000", sqliteDSN("file:x?mode=memory"))
	assert.Equal(t, "file:x?_busy_timeout=100", sqliteDSN("file:x?_busy_timeout=100"))
}

func TestSlowQueryHook(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	hook := newSlowQueryHook(zap.New(core), 50*time.Millisecond)

	hook.AfterQuery(context.Background(), &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now()})
	assert.Zero(t, logs.Len())

	hook.AfterQuery(context.Background(), &bun.QueryEvent{Query: "UPDATE orders SET status = 'delivered'", StartTime: time.Now().Add(-time.Second)})
	require.Equal(t, 1, logs.FilterMessage("slow query").Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)

	hook.AfterQuery(context.Background(), &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now(), Err: sql.ErrNoRows})
	assert.Equal(t, 1, logs.Len())

	hook.AfterQuery(context.Background(), &bun.QueryEvent{Query: "INSERT", StartTime: time.Now(), Err: errors.New("unique violation")})
	assert.Equal(t, 1, logs.FilterMessage("query failed").Len())
}

func TestNewSQLiteSharesWriterAsReader(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	cfg := config.Config{Database: config.Database{Driver: "sqlite", WriterDSN: "file:conns?mode=memory&cache=shared", ReaderDSN: "file:conns?mode=memory&cache=shared"}}

	conns, err := New(lc, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Same(t, conns.Writer, conns.Reader)
	assert.Len(t, conns.pools(), 1)

	lc.RequireStart()
	lc.RequireStop()

	_, err = New(fxtest.NewLifecycle(t), config.Config{Database: config.Database{Driver: "sqlite"}}, zaptest.NewLogger(t))
	assert.Error(t, err)
}
