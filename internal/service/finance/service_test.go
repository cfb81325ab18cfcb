package finance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Additional-Code/fulfillment/internal/cache"
	"github.com/Additional-Code/fulfillment/internal/config"
	"github.com/Additional-Code/fulfillment/internal/database/dbtest"
	"github.com/Additional-Code/fulfillment/internal/entity"
	"github.com/Additional-Code/fulfillment/internal/messaging"
	orderrepo "github.com/Additional-Code/fulfillment/internal/repository/order"
	walletrepo "github.com/Additional-Code/fulfillment/internal/repository/wallet"
	ordersvc "github.com/Additional-Code/fulfillment/internal/service/order"
	walletsvc "github.com/Additional-Code/fulfillment/internal/service/wallet"
	"github.com/Additional-Code/fulfillment/pkg/errorbank"
)

type fixture struct {
	finance *Service
	orders  *ordersvc.Service
	wallet  *walletsvc.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conns := dbtest.New(t)
	logger := zaptest.NewLogger(t)
	cfg := config.Config{Workflow: config.Workflow{PaymentExpiry: 73 * time.Hour}}

	orders := ordersvc.NewService(ordersvc.Params{
		Repository: orderrepo.NewRepository(conns),
		Cache:      cache.NewNoopStore(),
		Config:     cfg,
		Logger:     logger,
		Publisher:  messaging.NewNoopClient("test"),
	})
	wallet := walletsvc.NewService(walletsvc.Params{Repository: walletrepo.NewRepository(conns), Logger: logger})
	finance := NewService(Params{Orders: orders, Wallet: wallet, Conns: conns, Logger: logger})
	return &fixture{finance: finance, orders: orders, wallet: wallet}
}

func idr(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// pendingOrder registers an order and submits its payment for review.
func (f *fixture) pendingOrder(t *testing.T, ref string, customerID int64, total int64) *entity.Order {
	t.Helper()
	return f.pendingOrderIn(t, ref, customerID, total, "IDR")
}

func (f *fixture) pendingOrderIn(t *testing.T, ref string, customerID int64, total int64, currency string) *entity.Order {
	t.Helper()
	ctx := context.Background()
	order, err := f.orders.Create(ctx, ordersvc.CreateInput{
		CustomerOrderID: ref,
		CustomerID:      customerID,
		TotalAmount:     idr(total),
		Currency:        currency,
		PaymentMethod:   "bank_transfer",
	})
	require.NoError(t, err)
	order, err = f.orders.Transition(ctx, ordersvc.TransitionRequest{
		OrderID:    order.ID,
		Expected:   entity.StatusPendingPayment,
		Target:     entity.StatusFinancePending,
		Department: entity.DepartmentCustomer,
		Note:       "transfer receipt uploaded",
	})
	require.NoError(t, err)
	return order
}

func (f *fixture) fund(t *testing.T, customerID, amount int64) {
	t.Helper()
	_, err := f.wallet.Open(context.Background(), customerID, decimal.Zero, "IDR")
	require.NoError(t, err)
	if amount > 0 {
		_, err = f.wallet.Credit(context.Background(), walletsvc.Movement{CustomerID: customerID, Amount: idr(amount), Reason: "top up"})
		require.NoError(t, err)
	}
}

func (f *fixture) balance(t *testing.T, customerID int64) decimal.Decimal {
	t.Helper()
	b, err := f.wallet.GetBalance(context.Background(), customerID)
	require.NoError(t, err)
	return b.Balance
}

func approve(orderID int64, receipt int64) ApproveInput {
	return ApproveInput{
		OrderID:       orderID,
		Expected:      entity.StatusFinancePending,
		ReceiptAmount: idr(receipt),
		Department:    entity.DepartmentFinance,
		Actor:         "reviewer-1",
	}
}

func TestApproveDebitsShortfallFromWallet(t *testing.T) {
	f := newFixture(t)
	order := f.pendingOrder(t, "A-1", 1, 500000)
	f.fund(t, 1, 100000)

	res, err := f.finance.Approve(context.Background(), approve(order.ID, 450000))
	require.NoError(t, err)

	assert.Equal(t, entity.StatusFinanceApproved, res.Order.Status)
	assert.True(t, res.Shortfall.Equal(idr(50000)))
	require.NotNil(t, res.WalletTransaction)
	assert.Equal(t, entity.DirectionDebit, res.WalletTransaction.Direction)
	assert.True(t, res.WalletTransaction.Amount.Equal(idr(50000)))
	assert.True(t, f.balance(t, 1).Equal(idr(50000)))
	assert.True(t, res.Order.ReceiptAmount.Decimal.Equal(idr(450000)))
}

func TestApproveRefusedWhenWalletCannotCover(t *testing.T) {
	f := newFixture(t)
	order := f.pendingOrder(t, "B-1", 2, 500000)
	f.fund(t, 2, 30000)

	_, err := f.finance.Approve(context.Background(), approve(order.ID, 450000))
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInsufficientFunds))

	current, err := f.orders.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusFinancePending, current.Status)
	assert.True(t, f.balance(t, 2).Equal(idr(30000)))
}

func TestApproveRejectsWalletInAnotherCurrency(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order := f.pendingOrderIn(t, "U-1", 11, 500, "USD")
	f.fund(t, 11, 100000)

	_, err := f.finance.Approve(ctx, approve(order.ID, 450))
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))

	current, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusFinancePending, current.Status)
	assert.True(t, f.balance(t, 11).Equal(idr(100000)))

	txns, err := f.wallet.Transactions(ctx, 11, 0)
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestApproveCreditsOverpayment(t *testing.T) {
	f := newFixture(t)
	order := f.pendingOrder(t, "C-1", 3, 500000)

	res, err := f.finance.Approve(context.Background(), approve(order.ID, 520000))
	require.NoError(t, err)

	assert.Equal(t, entity.StatusFinanceApproved, res.Order.Status)
	assert.True(t, res.Shortfall.Equal(idr(-20000)))
	require.NotNil(t, res.WalletTransaction)
	assert.Equal(t, entity.DirectionCredit, res.WalletTransaction.Direction)
	assert.Equal(t, "overpayment from order C-1", res.WalletTransaction.Reason)
	assert.True(t, f.balance(t, 3).Equal(idr(20000)))
}

func TestApproveExactPaymentLeavesWalletAlone(t *testing.T) {
	f := newFixture(t)
	order := f.pendingOrder(t, "X-1", 4, 500000)

	res, err := f.finance.Approve(context.Background(), approve(order.ID, 500000))
	require.NoError(t, err)
	assert.Nil(t, res.WalletTransaction)

	txns, err := f.wallet.Transactions(context.Background(), 4, 0)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestApproveRetryNeverDebitsTwice(t *testing.T) {
	f := newFixture(t)
	order := f.pendingOrder(t, "R-1", 5, 500000)
	f.fund(t, 5, 100000)

	_, err := f.finance.Approve(context.Background(), approve(order.ID, 450000))
	require.NoError(t, err)

	_, err = f.finance.Approve(context.Background(), approve(order.ID, 450000))
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindConflict) || errorbank.IsKind(err, errorbank.KindIllegalTransition))
	assert.True(t, f.balance(t, 5).Equal(idr(50000)))
}

// The test database holds a single connection, so the two approvals run their
// transactions one after the other; the loser sees the moved status.
func TestConcurrentApprovalsHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	order := f.pendingOrder(t, "E-1", 6, 500000)
	f.fund(t, 6, 100000)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.finance.Approve(context.Background(), approve(order.ID, 450000))
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errorbank.IsKind(err, errorbank.KindConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
	assert.True(t, f.balance(t, 6).Equal(idr(50000)))
}

func TestApproveRequiresFinanceDepartment(t *testing.T) {
	f := newFixture(t)
	order := f.pendingOrder(t, "D-1", 7, 1000)

	in := approve(order.ID, 1000)
	in.Department = entity.DepartmentWarehouse
	_, err := f.finance.Approve(context.Background(), in)
	assert.True(t, errorbank.IsKind(err, errorbank.KindIllegalTransition))
}

func TestRejectLeavesWalletUntouched(t *testing.T) {
	f := newFixture(t)
	order := f.pendingOrder(t, "J-1", 8, 500000)
	f.fund(t, 8, 100000)

	rejected, err := f.finance.Reject(context.Background(), RejectInput{
		OrderID:    order.ID,
		Notes:      "receipt unreadable",
		Department: entity.DepartmentFinance,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusFinanceRejected, rejected.Status)
	assert.Equal(t, "receipt unreadable", rejected.FinancialNotes)
	assert.True(t, f.balance(t, 8).Equal(idr(100000)))

	_, err = f.finance.Approve(context.Background(), ApproveInput{
		OrderID:       order.ID,
		Expected:      entity.StatusFinanceRejected,
		ReceiptAmount: idr(500000),
		Department:    entity.DepartmentFinance,
	})
	assert.True(t, errorbank.IsKind(err, errorbank.KindIllegalTransition))
}

func TestOverrideApprove(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order := f.pendingOrder(t, "O-1", 9, 500000)
	f.fund(t, 9, 30000)
	_, err := f.wallet.Update(ctx, 9, entity.WalletActive, idr(25000))
	require.NoError(t, err)

	in := OverrideInput{
		OrderID:       order.ID,
		ReceiptAmount: idr(450000),
		Notes:         "customer paid the rest in cash",
		Department:    entity.DepartmentFinance,
	}
	_, err = f.finance.OverrideApprove(ctx, in)
	assert.True(t, errorbank.IsKind(err, errorbank.KindForbidden))

	in.Department = entity.DepartmentAdmin
	res, err := f.finance.OverrideApprove(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusFinanceApproved, res.Order.Status)
	assert.True(t, res.Uncovered.Equal(idr(20000)))
	assert.True(t, res.WalletTransaction.Amount.Equal(idr(30000)))
	assert.True(t, f.balance(t, 9).IsZero())

	history, err := f.orders.History(ctx, order.ID)
	require.NoError(t, err)
	last := history[len(history)-1]
	assert.True(t, last.ManualOverride)
	assert.Equal(t, entity.DepartmentAdmin, last.ActingDepartment)
}

func TestOverrideApproveBoundedByCreditLimit(t *testing.T) {
	f := newFixture(t)
	order := f.pendingOrder(t, "O-2", 10, 500000)
	f.fund(t, 10, 30000)

	_, err := f.finance.OverrideApprove(context.Background(), OverrideInput{
		OrderID:       order.ID,
		ReceiptAmount: idr(450000),
		Notes:         "exception",
		Department:    entity.DepartmentAdmin,
	})
	assert.True(t, errorbank.IsKind(err, errorbank.KindInsufficientFunds))
	assert.True(t, f.balance(t, 10).Equal(idr(30000)))
}

func TestShortfall(t *testing.T) {
	assert.True(t, Shortfall(idr(500000), idr(450000)).Equal(idr(50000)))
	assert.True(t, Shortfall(idr(500000), idr(520000)).Equal(idr(-20000)))
	assert.True(t, Shortfall(idr(500000), idr(500000)).IsZero())
}
