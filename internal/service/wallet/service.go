package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/fulfillment/internal/config"
	"github.com/Additional-Code/fulfillment/internal/database"
	"github.com/Additional-Code/fulfillment/internal/entity"
	repo "github.com/Additional-Code/fulfillment/internal/repository/wallet"
	"github.com/Additional-Code/fulfillment/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/fulfillment/service/wallet")

const (
	maxSwapAttempts = 3
	defaultCurrency = "IDR"
)

// Service is the wallet ledger. Balances only move through appended transactions.
type Service struct {
	repo     *repo.Repository
	logger   *zap.Logger
	now      func() time.Time
	currency string
	limit    decimal.Decimal
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Config     config.Config `optional:"true"`
	Logger     *zap.Logger
	Now        func() time.Time `optional:"true"`
}

// NewService wires the wallet ledger.
func NewService(p Params) *Service {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	currency := strings.ToUpper(p.Config.Wallet.DefaultCurrency)
	if currency == "" {
		currency = defaultCurrency
	}
	return &Service{
		repo:     p.Repository,
		logger:   logger,
		now:      now,
		currency: currency,
		limit:    p.Config.Wallet.DefaultCreditLimit,
	}
}

// Balance is the reconciled view of a wallet.
type Balance struct {
	CustomerID  int64               `json:"customer_id"`
	Balance     decimal.Decimal     `json:"balance"`
	CreditLimit decimal.Decimal     `json:"credit_limit"`
	Currency    string              `json:"currency"`
	Status      entity.WalletStatus `json:"status"`
	Exists      bool                `json:"exists"`
}

// Movement describes a credit or debit request.
type Movement struct {
	CustomerID     int64
	Amount         decimal.Decimal
	Reason         string
	RelatedOrderID *int64
	Currency       string
}

// GetBalance returns the ledger balance of a customer. A customer without a
// wallet has a zero balance.
func (s *Service) GetBalance(ctx context.Context, customerID int64) (Balance, error) {
	ctx, span := serviceTracer.Start(ctx, "WalletService.GetBalance", trace.WithAttributes(attribute.Int64("customer.id", customerID)))
	defer span.End()

	account, err := s.repo.GetByCustomer(ctx, customerID)
	if errors.Is(err, repo.ErrNotFound) {
		return Balance{CustomerID: customerID, Balance: decimal.Zero, CreditLimit: decimal.Zero, Currency: s.currency, Status: entity.WalletActive}, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return Balance{}, errorbank.Internal("failed to load wallet", errorbank.WithCause(err))
	}

	balance, err := s.ledgerBalance(ctx, account)
	if err != nil {
		return Balance{}, err
	}
	return Balance{
		CustomerID:  customerID,
		Balance:     balance,
		CreditLimit: account.CreditLimit,
		Currency:    account.Currency,
		Status:      account.Status,
		Exists:      true,
	}, nil
}

// Transactions lists the ledger of a customer, oldest first.
func (s *Service) Transactions(ctx context.Context, customerID int64, limit int) ([]entity.WalletTransaction, error) {
	account, err := s.repo.GetByCustomer(ctx, customerID)
	if errors.Is(err, repo.ErrNotFound) {
		return []entity.WalletTransaction{}, nil
	}
	if err != nil {
		return nil, errorbank.Internal("failed to load wallet", errorbank.WithCause(err))
	}
	txns, err := s.repo.Transactions(ctx, account.ID, limit)
	if err != nil {
		return nil, errorbank.Internal("failed to load wallet transactions", errorbank.WithCause(err))
	}
	return txns, nil
}

// OrderTransactions lists the ledger lines an order produced, oldest first.
func (s *Service) OrderTransactions(ctx context.Context, orderID int64) ([]entity.WalletTransaction, error) {
	if orderID <= 0 {
		return nil, errorbank.BadRequest("order id is required")
	}
	txns, err := s.repo.TransactionsForOrder(ctx, orderID)
	if err != nil {
		return nil, errorbank.Internal("failed to load order wallet transactions", errorbank.WithCause(err))
	}
	if txns == nil {
		txns = []entity.WalletTransaction{}
	}
	return txns, nil
}

// Open creates a wallet for a customer if none exists and returns it.
func (s *Service) Open(ctx context.Context, customerID int64, creditLimit decimal.Decimal, currency string) (*entity.WalletAccount, error) {
	if customerID <= 0 {
		return nil, errorbank.BadRequest("customer id is required")
	}
	if creditLimit.IsNegative() {
		return nil, errorbank.BadRequest("credit limit cannot be negative")
	}
	var account *entity.WalletAccount
	err := database.RunInTx(ctx, s.repo.Writer(), func(ctx context.Context) error {
		existing, err := s.repo.GetByCustomer(ctx, customerID)
		if err == nil {
			account = existing
			return nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		account = s.newAccount(customerID, currency)
		account.CreditLimit = creditLimit
		return s.repo.Create(ctx, account)
	})
	if err != nil {
		return nil, wrapInternal("failed to open wallet", err)
	}
	return account, nil
}

// Update changes the status and credit limit of an existing wallet.
func (s *Service) Update(ctx context.Context, customerID int64, status entity.WalletStatus, creditLimit decimal.Decimal) (*entity.WalletAccount, error) {
	if status != entity.WalletActive && status != entity.WalletInactive {
		return nil, errorbank.BadRequest("unknown wallet status", errorbank.WithDetail("status", string(status)))
	}
	if creditLimit.IsNegative() {
		return nil, errorbank.BadRequest("credit limit cannot be negative")
	}
	var account *entity.WalletAccount
	err := database.RunInTx(ctx, s.repo.Writer(), func(ctx context.Context) error {
		return s.swap(ctx, customerID, func(a *entity.WalletAccount) error {
			a.Status = status
			a.CreditLimit = creditLimit
			account = a
			return nil
		}, nil)
	})
	if err != nil {
		return nil, wrapInternal("failed to update wallet", err)
	}
	return account, nil
}

// Credit appends a credit, creating the wallet on first use. Inactive wallets still accept credits.
func (s *Service) Credit(ctx context.Context, m Movement) (*entity.WalletTransaction, error) {
	ctx, span := serviceTracer.Start(ctx, "WalletService.Credit", trace.WithAttributes(
		attribute.Int64("customer.id", m.CustomerID),
		attribute.String("amount", m.Amount.String()),
	))
	defer span.End()

	if err := validateMovement(m); err != nil {
		return nil, err
	}

	var txn *entity.WalletTransaction
	err := database.RunInTx(ctx, s.repo.Writer(), func(ctx context.Context) error {
		if _, err := s.repo.GetByCustomer(ctx, m.CustomerID); errors.Is(err, repo.ErrNotFound) {
			if err := s.repo.Create(ctx, s.newAccount(m.CustomerID, m.Currency)); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		return s.swap(ctx, m.CustomerID, func(a *entity.WalletAccount) error {
			if err := sameCurrency(a, m); err != nil {
				return err
			}
			balance, err := s.ledgerBalance(ctx, a)
			if err != nil {
				return err
			}
			a.Balance = balance.Add(m.Amount)
			return nil
		}, func(a *entity.WalletAccount) (err error) {
			txn, err = s.append(ctx, a, entity.DirectionCredit, m)
			return err
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "credit failed")
		return nil, wrapInternal("failed to credit wallet", err)
	}

	s.logger.Info("wallet credited",
		zap.Int64("customer.id", m.CustomerID),
		zap.String("amount", m.Amount.String()),
		zap.String("balance_after", txn.BalanceAfter.String()),
		zap.String("reason", m.Reason),
	)
	return txn, nil
}

// Debit appends a debit. It fails with insufficient funds when the amount exceeds
// the ledger balance, leaving the wallet unchanged.
func (s *Service) Debit(ctx context.Context, m Movement) (*entity.WalletTransaction, error) {
	ctx, span := serviceTracer.Start(ctx, "WalletService.Debit", trace.WithAttributes(
		attribute.Int64("customer.id", m.CustomerID),
		attribute.String("amount", m.Amount.String()),
	))
	defer span.End()

	if err := validateMovement(m); err != nil {
		return nil, err
	}

	var txn *entity.WalletTransaction
	err := database.RunInTx(ctx, s.repo.Writer(), func(ctx context.Context) error {
		return s.swap(ctx, m.CustomerID, func(a *entity.WalletAccount) error {
			if a.Status != entity.WalletActive {
				return errorbank.InsufficientFunds("wallet is inactive", errorbank.WithDetail("customer_id", m.CustomerID))
			}
			if err := sameCurrency(a, m); err != nil {
				return err
			}
			balance, err := s.ledgerBalance(ctx, a)
			if err != nil {
				return err
			}
			if m.Amount.GreaterThan(balance) {
				return insufficient(m.CustomerID, m.Amount, balance)
			}
			a.Balance = balance.Sub(m.Amount)
			return nil
		}, func(a *entity.WalletAccount) (err error) {
			txn, err = s.append(ctx, a, entity.DirectionDebit, m)
			return err
		})
	})
	if errors.Is(err, repo.ErrNotFound) {
		return nil, insufficient(m.CustomerID, m.Amount, decimal.Zero)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "debit failed")
		return nil, wrapInternal("failed to debit wallet", err)
	}

	s.logger.Info("wallet debited",
		zap.Int64("customer.id", m.CustomerID),
		zap.String("amount", m.Amount.String()),
		zap.String("balance_after", txn.BalanceAfter.String()),
		zap.String("reason", m.Reason),
	)
	return txn, nil
}

// swap loads the wallet, applies mutate and writes it back with a version check,
// retrying a bounded number of times when another writer got there first.
// commit runs once the write has won.
func (s *Service) swap(ctx context.Context, customerID int64, mutate, commit func(*entity.WalletAccount) error) error {
	for attempt := 1; attempt <= maxSwapAttempts; attempt++ {
		account, err := s.repo.GetByCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		if err := mutate(account); err != nil {
			return err
		}
		account.LastActivityAt = s.now().UTC()
		ok, err := s.repo.CompareAndSwap(ctx, account)
		if err != nil {
			return err
		}
		if ok {
			if commit == nil {
				return nil
			}
			return commit(account)
		}
		s.logger.Debug("wallet version moved; retrying", zap.Int64("customer.id", customerID), zap.Int("attempt", attempt))
	}
	return errorbank.Conflict("wallet is being modified concurrently", errorbank.WithDetail("customer_id", customerID))
}

// append records a ledger line carrying the balance already written to a.
func (s *Service) append(ctx context.Context, a *entity.WalletAccount, dir entity.Direction, m Movement) (*entity.WalletTransaction, error) {
	txn := &entity.WalletTransaction{
		WalletID:       a.ID,
		Direction:      dir,
		Amount:         m.Amount,
		Reason:         m.Reason,
		RelatedOrderID: m.RelatedOrderID,
		BalanceAfter:   a.Balance,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.repo.AppendTransaction(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// ledgerBalance folds the transaction history. The cached balance on the account
// is only trusted for display; drift is logged and the ledger wins.
func (s *Service) ledgerBalance(ctx context.Context, a *entity.WalletAccount) (decimal.Decimal, error) {
	txns, err := s.repo.Transactions(ctx, a.ID, 0)
	if err != nil {
		return decimal.Zero, err
	}
	balance := Fold(txns)
	if !balance.Equal(a.Balance) {
		s.logger.Warn("wallet cached balance drifted from ledger",
			zap.Int64("wallet.id", a.ID),
			zap.String("cached", a.Balance.String()),
			zap.String("ledger", balance.String()),
		)
	}
	return balance, nil
}

// Fold sums signed ledger amounts.
func Fold(txns []entity.WalletTransaction) decimal.Decimal {
	balance := decimal.Zero
	for _, t := range txns {
		balance = balance.Add(t.Signed())
	}
	return balance
}

func (s *Service) newAccount(customerID int64, currency string) *entity.WalletAccount {
	if currency == "" {
		currency = s.currency
	}
	now := s.now().UTC()
	return &entity.WalletAccount{
		CustomerID:     customerID,
		Balance:        decimal.Zero,
		CreditLimit:    s.limit,
		Currency:       strings.ToUpper(currency),
		Status:         entity.WalletActive,
		LastActivityAt: now,
		CreatedAt:      now,
	}
}

func validateMovement(m Movement) error {
	switch {
	case m.CustomerID <= 0:
		return errorbank.BadRequest("customer id is required")
	case !m.Amount.IsPositive():
		return errorbank.BadRequest("amount must be positive", errorbank.WithDetail("amount", m.Amount.String()))
	case m.Reason == "":
		return errorbank.BadRequest("reason is required")
	}
	return nil
}

// sameCurrency rejects a movement denominated in another currency than the wallet.
// An empty movement currency means the wallet's own.
func sameCurrency(a *entity.WalletAccount, m Movement) error {
	if m.Currency == "" || strings.EqualFold(m.Currency, a.Currency) {
		return nil
	}
	return errorbank.BadRequest("currency does not match the wallet", errorbank.WithDetails(map[string]any{
		"customer_id":     m.CustomerID,
		"currency":        m.Currency,
		"wallet_currency": a.Currency,
	}))
}

func insufficient(customerID int64, amount, balance decimal.Decimal) error {
	return errorbank.InsufficientFunds(fmt.Sprintf("wallet balance %s cannot cover %s", balance, amount), errorbank.WithDetails(map[string]any{
		"customer_id": customerID,
		"requested":   amount.String(),
		"balance":     balance.String(),
	}))
}

func wrapInternal(message string, err error) error {
	var appErr *errorbank.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, repo.ErrNotFound) {
		return errorbank.NotFound("wallet not found")
	}
	return errorbank.Internal(message, errorbank.WithCause(err))
}
