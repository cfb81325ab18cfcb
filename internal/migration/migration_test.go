package migration_test

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

func TestSchemaRejectsHistoryDeletion(t *testing.T) {
	ctx := context.Background()
	conns := dbtest.New(t)

	entry := &entity.StatusHistoryEntry{
		OrderID:          1,
		ToStatus:         entity.StatusPendingPayment,
		ActingDepartment: entity.DepartmentCustomer,
		CreatedAt:        time.Now().UTC(),
	}
	_, err := conns.Writer.NewInsert().Model(entry).Exec(ctx)
	require.NoError(t, err)

	_, err = conns.Writer.NewDelete().Model((*entity.StatusHistoryEntry)(nil)).Where("id = ?", entry.ID).Exec(ctx)
	assert.Error(t, err)

	count, err := conns.Writer.NewSelect().Model((*entity.StatusHistoryEntry)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSchemaAllowsOneCurrentCodePerOrder(t *testing.T) {
	ctx := context.Background()
	conns := dbtest.New(t)

	live := true
	newCode := func(current *bool) *entity.VerificationCode {
		return &entity.VerificationCode{
			OrderID:       7,
			Code:          "123456",
			CustomerPhone: "+6281200000000",
			SMSStatus:     entity.SMSPending,
			Current:       current,
			ExpiresAt:     time.Now().Add(time.Hour).UTC(),
			CreatedAt:     time.Now().UTC(),
		}
	}

	_, err := conns.Writer.NewInsert().Model(newCode(&live)).Exec(ctx)
	require.NoError(t, err)
	_, err = conns.Writer.NewInsert().Model(newCode(&live)).Exec(ctx)
	assert.Error(t, err, "second live code must violate the unique index")

	_, err = conns.Writer.NewInsert().Model(newCode(nil)).Exec(ctx)
	assert.NoError(t, err)
	_, err = conns.Writer.NewInsert().Model(newCode(nil)).Exec(ctx)
	assert.NoError(t, err)
}

func TestSchemaRoundTripsDecimals(t *testing.T) {
	ctx := context.Background()
	conns := dbtest.New(t)

	order := &entity.Order{
		CustomerOrderID: "CO-1",
		CustomerID:      1,
		TotalAmount:     decimal.RequireFromString("500000.50"),
		Currency:        "IDR",
		PaymentMethod:   "bank_transfer",
		Status:          entity.StatusPendingPayment,
		CreatedAt:       time.Now().UTC(),
	}
	_, err := conns.Writer.NewInsert().Model(order).Exec(ctx)
	require.NoError(t, err)

	loaded := new(entity.Order)
	require.NoError(t, conns.Reader.NewSelect().Model(loaded).Where("id = ?", order.ID).Scan(ctx))
	assert.True(t, order.TotalAmount.Equal(loaded.TotalAmount))
	assert.False(t, loaded.ReceiptAmount.Valid)
}
