package wallet

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Additional-Code/fulfillment/internal/config"
	"github.com/Additional-Code/fulfillment/internal/database/dbtest"
	"github.com/Additional-Code/fulfillment/internal/entity"
	repo "github.com/Additional-Code/fulfillment/internal/repository/wallet"
	"github.com/Additional-Code/fulfillment/pkg/errorbank"
)

func newTestService(t *testing.T) (*Service, *repo.Repository) {
	t.Helper()
	r := repo.NewRepository(dbtest.New(t))
	return NewService(Params{Repository: r, Logger: zaptest.NewLogger(t)}), r
}

func amount(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestGetBalanceWithoutWalletIsZero(t *testing.T) {
	svc, _ := newTestService(t)

	balance, err := svc.GetBalance(context.Background(), 99)
	require.NoError(t, err)
	assert.True(t, balance.Balance.IsZero())
	assert.True(t, balance.CreditLimit.IsZero())
	assert.False(t, balance.Exists)
}

func TestCreditCreatesWalletOnFirstUse(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	txn, err := svc.Credit(ctx, Movement{CustomerID: 1, Amount: amount(20000), Reason: "overpayment from order 5"})
	require.NoError(t, err)
	assert.Equal(t, entity.DirectionCredit, txn.Direction)
	assert.True(t, txn.BalanceAfter.Equal(amount(20000)))

	balance, err := svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.True(t, balance.Exists)
	assert.True(t, balance.Balance.Equal(amount(20000)))
}

func TestDebitProperties(t *testing.T) {
	cases := []struct {
		name    string
		balance int64
		debit   int64
		wantErr bool
	}{
		{name: "partial", balance: 100000, debit: 50000},
		{name: "exact", balance: 50000, debit: 50000},
		{name: "exceeds", balance: 30000, debit: 50000, wantErr: true},
		{name: "empty wallet", balance: 0, debit: 1, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			svc, _ := newTestService(t)
			_, err := svc.Open(ctx, 7, decimal.Zero, "IDR")
			require.NoError(t, err)
			if tc.balance > 0 {
				_, err := svc.Credit(ctx, Movement{CustomerID: 7, Amount: amount(tc.balance), Reason: "top up"})
				require.NoError(t, err)
			}

			txn, err := svc.Debit(ctx, Movement{CustomerID: 7, Amount: amount(tc.debit), Reason: "shortfall"})
			after, balErr := svc.GetBalance(ctx, 7)
			require.NoError(t, balErr)

			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errorbank.IsKind(err, errorbank.KindInsufficientFunds))
				assert.True(t, after.Balance.Equal(amount(tc.balance)), "failed debit must leave balance unchanged")
				return
			}
			require.NoError(t, err)
			want := amount(tc.balance - tc.debit)
			assert.True(t, txn.BalanceAfter.Equal(want))
			assert.True(t, after.Balance.Equal(want))
			assert.False(t, after.Balance.IsNegative())
		})
	}
}

func TestDebitWithoutWalletIsInsufficient(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Debit(context.Background(), Movement{CustomerID: 3, Amount: amount(10), Reason: "shortfall"})
	assert.True(t, errorbank.IsKind(err, errorbank.KindInsufficientFunds))
}

func TestInactiveWalletRefusesDebitButAcceptsCredit(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Credit(ctx, Movement{CustomerID: 4, Amount: amount(500), Reason: "top up"})
	require.NoError(t, err)
	_, err = svc.Update(ctx, 4, entity.WalletInactive, decimal.Zero)
	require.NoError(t, err)

	_, err = svc.Debit(ctx, Movement{CustomerID: 4, Amount: amount(100), Reason: "shortfall"})
	assert.True(t, errorbank.IsKind(err, errorbank.KindInsufficientFunds))

	_, err = svc.Credit(ctx, Movement{CustomerID: 4, Amount: amount(100), Reason: "refund"})
	require.NoError(t, err)

	balance, err := svc.GetBalance(ctx, 4)
	require.NoError(t, err)
	assert.True(t, balance.Balance.Equal(amount(600)))
}

func TestLedgerWinsOverDriftedCache(t *testing.T) {
	ctx := context.Background()
	svc, r := newTestService(t)

	_, err := svc.Credit(ctx, Movement{CustomerID: 8, Amount: amount(1000), Reason: "top up"})
	require.NoError(t, err)

	account, err := r.GetByCustomer(ctx, 8)
	require.NoError(t, err)
	account.Balance = amount(999999)
	ok, err := r.CompareAndSwap(ctx, account)
	require.NoError(t, err)
	require.True(t, ok)

	balance, err := svc.GetBalance(ctx, 8)
	require.NoError(t, err)
	assert.True(t, balance.Balance.Equal(amount(1000)))

	_, err = svc.Debit(ctx, Movement{CustomerID: 8, Amount: amount(5000), Reason: "shortfall"})
	assert.True(t, errorbank.IsKind(err, errorbank.KindInsufficientFunds))
}

func TestMovementInAnotherCurrencyIsRejected(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Credit(ctx, Movement{CustomerID: 6, Amount: amount(10000), Reason: "top up", Currency: "IDR"})
	require.NoError(t, err)

	_, err = svc.Debit(ctx, Movement{CustomerID: 6, Amount: amount(500), Reason: "shortfall", Currency: "USD"})
	assert.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))
	_, err = svc.Credit(ctx, Movement{CustomerID: 6, Amount: amount(500), Reason: "overpayment", Currency: "usd"})
	assert.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))

	_, err = svc.Debit(ctx, Movement{CustomerID: 6, Amount: amount(500), Reason: "shortfall", Currency: "idr"})
	require.NoError(t, err)

	balance, err := svc.GetBalance(ctx, 6)
	require.NoError(t, err)
	assert.True(t, balance.Balance.Equal(amount(9500)))
}

func TestImplicitWalletUsesConfiguredDefaults(t *testing.T) {
	ctx := context.Background()
	svc := NewService(Params{
		Repository: repo.NewRepository(dbtest.New(t)),
		Config:     config.Config{Wallet: config.Wallet{DefaultCurrency: "sgd", DefaultCreditLimit: amount(75)}},
		Logger:     zaptest.NewLogger(t),
	})

	empty, err := svc.GetBalance(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "SGD", empty.Currency)

	_, err = svc.Credit(ctx, Movement{CustomerID: 4, Amount: amount(10), Reason: "refund"})
	require.NoError(t, err)

	balance, err := svc.GetBalance(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "SGD", balance.Currency)
	assert.True(t, balance.CreditLimit.Equal(amount(75)))
}

func TestOrderTransactions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	orderID := int64(12)
	_, err := svc.Credit(ctx, Movement{CustomerID: 3, Amount: amount(1000), Reason: "top up"})
	require.NoError(t, err)
	_, err = svc.Debit(ctx, Movement{CustomerID: 3, Amount: amount(300), Reason: "shortfall for order 12", RelatedOrderID: &orderID})
	require.NoError(t, err)

	txns, err := svc.OrderTransactions(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, entity.DirectionDebit, txns[0].Direction)
	assert.True(t, txns[0].BalanceAfter.Equal(amount(700)))

	none, err := svc.OrderTransactions(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = svc.OrderTransactions(ctx, 0)
	assert.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))
}

func TestValidationRejectsNonPositiveAmounts(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Credit(context.Background(), Movement{CustomerID: 1, Amount: decimal.Zero, Reason: "x"})
	assert.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))
	_, err = svc.Debit(context.Background(), Movement{CustomerID: 1, Amount: amount(-5), Reason: "x"})
	assert.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))
}

func TestFold(t *testing.T) {
	txns := []entity.WalletTransaction{
		{Direction: entity.DirectionCredit, Amount: amount(100)},
		{Direction: entity.DirectionDebit, Amount: amount(30)},
		{Direction: entity.DirectionCredit, Amount: decimal.RequireFromString("0.50")},
	}
	assert.True(t, Fold(txns).Equal(decimal.RequireFromString("70.50")))
}
