package seeder

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"

	inventorysvc "github.com/Additional-Code/fulfillment/internal/service/inventory"
	ordersvc "github.com/Additional-Code/fulfillment/internal/service/order"
	walletsvc "github.com/Additional-Code/fulfillment/internal/service/wallet"
	"github.com/Additional-Code/fulfillment/pkg/errorbank"
)

// Module provides the Seeder to Fx.
var Module = fx.Provide(New)

// Params collects the services the seeder writes through.
type Params struct {
	fx.In

	Orders    *ordersvc.Service
	Wallets   *walletsvc.Service
	Inventory *inventorysvc.Service
	Logger    *zap.Logger
}

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	orders    *ordersvc.Service
	wallets   *walletsvc.Service
	inventory *inventorysvc.Service
	logger    *zap.Logger
}

// New constructs a Seeder.
func New(p Params) *Seeder {
	return &Seeder{orders: p.Orders, wallets: p.Wallets, inventory: p.Inventory, logger: p.Logger}
}

// All seeds inventory, wallets and orders in that order.
func (s *Seeder) All(ctx context.Context) error {
	if err := s.Inventory(ctx); err != nil {
		return err
	}
	if err := s.Wallets(ctx); err != nil {
		return err
	}
	return s.Orders(ctx)
}

// Inventory registers sample products unless they are already tracked.
func (s *Seeder) Inventory(ctx context.Context) error {
	samples := []inventorysvc.RegisterInput{
		{ProductID: 1001, StockQuantity: 500, MinStockLevel: 50, LowStockThreshold: 120},
		{ProductID: 1002, StockQuantity: 80, MinStockLevel: 20, LowStockThreshold: 100},
		{ProductID: 1003, StockQuantity: 12, MinStockLevel: 15},
	}

	created := 0
	for _, sample := range samples {
		_, err := s.inventory.Register(ctx, sample)
		if errorbank.IsKind(err, errorbank.KindConflict) {
			continue
		}
		if err != nil {
			return err
		}
		created++
	}

	s.logger.Info("seeded inventory", zap.Int("count", created))
	return nil
}

// Wallets opens sample customer wallets and tops up the empty ones.
func (s *Seeder) Wallets(ctx context.Context) error {
	samples := []struct {
		customerID  int64
		creditLimit decimal.Decimal
		opening     decimal.Decimal
	}{
		{customerID: 1, creditLimit: decimal.Zero, opening: decimal.NewFromInt(250000)},
		{customerID: 2, creditLimit: decimal.NewFromInt(1000000), opening: decimal.NewFromInt(50000)},
		{customerID: 3, creditLimit: decimal.Zero, opening: decimal.Zero},
	}

	for _, sample := range samples {
		if _, err := s.wallets.Open(ctx, sample.customerID, sample.creditLimit, "IDR"); err != nil {
			return err
		}
		balance, err := s.wallets.GetBalance(ctx, sample.customerID)
		if err != nil {
			return err
		}
		if !balance.Balance.IsZero() || !sample.opening.IsPositive() {
			continue
		}
		if _, err := s.wallets.Credit(ctx, walletsvc.Movement{
			CustomerID: sample.customerID,
			Amount:     sample.opening,
			Reason:     "opening balance",
			Currency:   "IDR",
		}); err != nil {
			return err
		}
	}

	s.logger.Info("seeded wallets", zap.Int("count", len(samples)))
	return nil
}

// Orders seeds example orders if they are missing.
func (s *Seeder) Orders(ctx context.Context) error {
	samples := []ordersvc.CreateInput{
		{
			CustomerOrderID: "ORDER-1000",
			CustomerID:      1,
			CustomerPhone:   "+6281200001000",
			TotalAmount:     decimal.NewFromInt(150000),
			Currency:        "IDR",
			PaymentMethod:   "bank_transfer",
			Items: []ordersvc.ItemInput{
				{ProductID: 1001, Quantity: 10, UnitPrice: decimal.NewFromInt(15000)},
			},
		},
		{
			CustomerOrderID: "ORDER-1001",
			CustomerID:      2,
			CustomerPhone:   "+6281200001001",
			TotalAmount:     decimal.NewFromInt(90000),
			Currency:        "IDR",
			PaymentMethod:   "wallet",
			Items: []ordersvc.ItemInput{
				{ProductID: 1002, Quantity: 3, UnitPrice: decimal.NewFromInt(20000)},
				{ProductID: 1003, Quantity: 1, UnitPrice: decimal.NewFromInt(30000)},
			},
		},
	}

	created := 0
	for _, sample := range samples {
		sample.Actor = "seeder"
		_, err := s.orders.Create(ctx, sample)
		if errorbank.IsKind(err, errorbank.KindConflict) {
			continue
		}
		if err != nil {
			return err
		}
		created++
	}

	s.logger.Info("seeded orders", zap.Int("count", created))
	return nil
}
