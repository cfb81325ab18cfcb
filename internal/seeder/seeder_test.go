package seeder

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Additional-Code/fulfillment/internal/cache"
	"github.com/Additional-Code/fulfillment/internal/config"
	"github.com/Additional-Code/fulfillment/internal/database/dbtest"
	"github.com/Additional-Code/fulfillment/internal/messaging"
	inventoryrepo "github.com/Additional-Code/fulfillment/internal/repository/inventory"
	orderrepo "github.com/Additional-Code/fulfillment/internal/repository/order"
	walletrepo "github.com/Additional-Code/fulfillment/internal/repository/wallet"
	inventorysvc "github.com/Additional-Code/fulfillment/internal/service/inventory"
	ordersvc "github.com/Additional-Code/fulfillment/internal/service/order"
	walletsvc "github.com/Additional-Code/fulfillment/internal/service/wallet"
)

func TestAllIsRepeatable(t *testing.T) {
	conns := dbtest.New(t)
	logger := zaptest.NewLogger(t)
	cfg := config.Config{Inventory: config.Inventory{DefaultLowStockThreshold: 10}}
	bus := messaging.NewNoopClient("test")

	wallets := walletsvc.NewService(walletsvc.Params{Repository: walletrepo.NewRepository(conns), Logger: logger})
	inventory := inventorysvc.NewService(inventorysvc.Params{
		Repository: inventoryrepo.NewRepository(conns),
		Orders:     orderrepo.NewRepository(conns),
		Publisher:  bus,
		Config:     cfg,
		Logger:     logger,
	})
	orders := ordersvc.NewService(ordersvc.Params{
		Repository: orderrepo.NewRepository(conns),
		Cache:      cache.NewNoopStore(),
		Config:     cfg,
		Logger:     logger,
		Publisher:  bus,
	})
	seed := New(Params{Orders: orders, Wallets: wallets, Inventory: inventory, Logger: logger})

	ctx := context.Background()
	require.NoError(t, seed.All(ctx))
	require.NoError(t, seed.All(ctx))

	balance, err := wallets.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(250000).Equal(balance.Balance), balance.Balance.String())

	txns, err := wallets.Transactions(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, txns, 1)

	view, err := inventory.Get(ctx, 1003)
	require.NoError(t, err)
	assert.Equal(t, inventorysvc.LevelCritical, view.Level)
}
