package order

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/fulfillment/internal/database/dbtest"
	"github.com/Additional-Code/fulfillment/internal/entity"
)

func newOrder(ref string, status entity.Status, createdAt time.Time, items ...*entity.OrderItem) *entity.Order {
	return &entity.Order{
		CustomerOrderID: ref,
		CustomerID:      42,
		TotalAmount:     decimal.NewFromInt(1000),
		Currency:        "IDR",
		PaymentMethod:   "bank_transfer",
		Status:          status,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
		Items:           items,
	}
}

func TestCreateAndGetWithItems(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.New(t))

	order := newOrder("CO-100", entity.StatusPendingPayment, time.Now().UTC(),
		&entity.OrderItem{ProductID: 1, Quantity: 3, UnitPrice: decimal.NewFromInt(100)},
		&entity.OrderItem{ProductID: 2, Quantity: 1, UnitPrice: decimal.NewFromInt(700)},
	)
	require.NoError(t, repo.Create(ctx, order))
	require.NotZero(t, order.ID)

	loaded, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "CO-100", loaded.CustomerOrderID)
	require.Len(t, loaded.Items, 2)
	assert.Equal(t, int64(3), loaded.Items[0].Quantity)

	exists, err := repo.ExistsByCustomerOrderID(ctx, "CO-100")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = repo.GetByID(ctx, order.ID+100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompareAndSetStatusRejectsStaleExpectation(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.New(t))

	order := newOrder("CO-200", entity.StatusFinancePending, time.Now().UTC())
	require.NoError(t, repo.Create(ctx, order))

	first := *order
	first.Status = entity.StatusFinanceApproved
	ok, err := repo.CompareAndSetStatus(ctx, &first, entity.StatusFinancePending)
	require.NoError(t, err)
	assert.True(t, ok)

	second := *order
	second.Status = entity.StatusFinanceRejected
	ok, err = repo.CompareAndSetStatus(ctx, &second, entity.StatusFinancePending)
	require.NoError(t, err)
	assert.False(t, ok)

	loaded, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusFinanceApproved, loaded.Status)
	assert.Equal(t, int64(1), loaded.Version)
}

func TestCompareAndSetStatusPersistsColumns(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.New(t))

	created := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	order := newOrder("CO-250", entity.StatusFinancePending, created)
	require.NoError(t, repo.Create(ctx, order))

	updatedAt := created.Add(30 * time.Minute)
	order.Status = entity.StatusFinanceApproved
	order.FinancialNotes = "receipt matches"
	order.ReceiptAmount = decimal.NewNullDecimal(decimal.NewFromInt(900))
	order.UpdatedAt = updatedAt
	ok, err := repo.CompareAndSetStatus(ctx, order, entity.StatusFinancePending, "financial_notes", "receipt_amount")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), order.Version)

	loaded, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusFinanceApproved, loaded.Status)
	assert.Equal(t, "receipt matches", loaded.FinancialNotes)
	require.True(t, loaded.ReceiptAmount.Valid)
	assert.True(t, loaded.ReceiptAmount.Decimal.Equal(decimal.NewFromInt(900)))
	assert.True(t, loaded.UpdatedAt.Equal(updatedAt))
	assert.Equal(t, int64(1), loaded.Version)

	loaded.Status = entity.StatusWarehousePending
	loaded.WarehouseNotes = "ignored"
	ok, err = repo.CompareAndSetStatus(ctx, loaded, entity.StatusFinancePending, "warehouse_notes")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(1), loaded.Version)

	again, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusFinanceApproved, again.Status)
	assert.Empty(t, again.WarehouseNotes)
}

func TestReservedQuantitiesFiltersByStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.New(t))
	now := time.Now().UTC()

	for i, status := range []entity.Status{entity.StatusWarehousePending, entity.StatusLogisticsDispatched, entity.StatusDelivered} {
		order := newOrder(fmt.Sprintf("CO-3%d", i), status, now,
			&entity.OrderItem{ProductID: 9, Quantity: int64(i + 1), UnitPrice: decimal.NewFromInt(10)})
		require.NoError(t, repo.Create(ctx, order))
	}

	quantities, err := repo.ReservedQuantities(ctx, 9, entity.TransitStatuses())
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2}, quantities)
}

func TestListCreatedBefore(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.New(t))
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, newOrder("old", entity.StatusPendingPayment, now.Add(-80*time.Hour))))
	require.NoError(t, repo.Create(ctx, newOrder("fresh", entity.StatusPendingPayment, now.Add(-time.Hour))))
	require.NoError(t, repo.Create(ctx, newOrder("paid", entity.StatusFinancePending, now.Add(-100*time.Hour))))

	stale, err := repo.ListCreatedBefore(ctx, []entity.Status{entity.StatusPendingPayment, entity.StatusPaymentGracePeriod}, now.Add(-73*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "old", stale[0].CustomerOrderID)
}
