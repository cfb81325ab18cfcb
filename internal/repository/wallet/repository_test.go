package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/fulfillment/internal/database/dbtest"
	"github.com/Additional-Code/fulfillment/internal/entity"
)

func newAccount(customerID int64) *entity.WalletAccount {
	return &entity.WalletAccount{
		CustomerID:  customerID,
		Balance:     decimal.Zero,
		CreditLimit: decimal.Zero,
		Currency:    "IDR",
		Status:      entity.WalletActive,
	}
}

func TestCompareAndSwapPersistsAccount(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.New(t))

	account := newAccount(7)
	require.NoError(t, repo.Create(ctx, account))

	stale, err := repo.GetByCustomer(ctx, 7)
	require.NoError(t, err)

	activity := time.Now().UTC().Truncate(time.Second)
	account.Balance = decimal.NewFromInt(125000)
	account.CreditLimit = decimal.NewFromInt(50000)
	account.Status = entity.WalletInactive
	account.LastActivityAt = activity
	ok, err := repo.CompareAndSwap(ctx, account)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), account.Version)

	loaded, err := repo.GetByCustomer(ctx, 7)
	require.NoError(t, err)
	assert.True(t, loaded.Balance.Equal(decimal.NewFromInt(125000)))
	assert.True(t, loaded.CreditLimit.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, entity.WalletInactive, loaded.Status)
	assert.True(t, loaded.LastActivityAt.Equal(activity))
	assert.Equal(t, int64(1), loaded.Version)

	stale.Balance = decimal.NewFromInt(1)
	ok, err = repo.CompareAndSwap(ctx, stale)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(0), stale.Version)

	again, err := repo.GetByCustomer(ctx, 7)
	require.NoError(t, err)
	assert.True(t, again.Balance.Equal(decimal.NewFromInt(125000)))
	assert.Equal(t, int64(1), again.Version)
}

func TestTransactionsForOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.New(t))

	account := newAccount(8)
	require.NoError(t, repo.Create(ctx, account))

	orderID := int64(31)
	other := int64(32)
	for _, txn := range []*entity.WalletTransaction{
		{WalletID: account.ID, Direction: entity.DirectionCredit, Amount: decimal.NewFromInt(100), Reason: "top up", BalanceAfter: decimal.NewFromInt(100)},
		{WalletID: account.ID, Direction: entity.DirectionDebit, Amount: decimal.NewFromInt(40), Reason: "shortfall", RelatedOrderID: &orderID, BalanceAfter: decimal.NewFromInt(60)},
		{WalletID: account.ID, Direction: entity.DirectionCredit, Amount: decimal.NewFromInt(5), Reason: "overpayment", RelatedOrderID: &other, BalanceAfter: decimal.NewFromInt(65)},
	} {
		require.NoError(t, repo.AppendTransaction(ctx, txn))
	}

	txns, err := repo.TransactionsForOrder(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, entity.DirectionDebit, txns[0].Direction)
	assert.True(t, txns[0].Amount.Equal(decimal.NewFromInt(40)))

	all, err := repo.Transactions(ctx, account.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
