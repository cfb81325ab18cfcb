package wallet

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/fulfillment/internal/database"
	"github.com/Additional-Code/fulfillment/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/fulfillment/repository/wallet")

// ErrNotFound is returned when a customer has no wallet yet.
var ErrNotFound = errors.New("wallet not found")

// Repository stores wallet accounts and their ledger.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// Writer exposes the primary connection for transaction scoping.
func (r *Repository) Writer() *bun.DB {
	return r.writer
}

// GetByCustomer loads the wallet of a customer.
func (r *Repository) GetByCustomer(ctx context.Context, customerID int64) (*entity.WalletAccount, error) {
	ctx, span := repoTracer.Start(ctx, "WalletRepository.GetByCustomer", trace.WithAttributes(attribute.Int64("customer.id", customerID)))
	defer span.End()

	account := new(entity.WalletAccount)
	err := database.Executor(ctx, r.reader).NewSelect().
		Model(account).
		Where("customer_id = ?", customerID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return account, nil
}

// Create inserts a new wallet account.
func (r *Repository) Create(ctx context.Context, account *entity.WalletAccount) error {
	_, err := database.Executor(ctx, r.writer).NewInsert().Model(account).Exec(ctx)
	return err
}

// CompareAndSwap persists the account's balance, status, credit limit and activity
// timestamp if its version is unchanged since it was read. It reports false on a lost race.
func (r *Repository) CompareAndSwap(ctx context.Context, account *entity.WalletAccount) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "WalletRepository.CompareAndSwap", trace.WithAttributes(
		attribute.Int64("wallet.id", account.ID),
		attribute.Int64("wallet.version", account.Version),
	))
	defer span.End()

	prev := account.Version
	account.Version = prev + 1
	res, err := database.Executor(ctx, r.writer).NewUpdate().
		Model(account).
		Column("balance", "status", "credit_limit", "last_activity_at", "version").
		WherePK().
		Where("version = ?", prev).
		Exec(ctx)
	if err != nil {
		account.Version = prev
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		account.Version = prev
		return false, err
	}
	if affected == 0 {
		account.Version = prev
		return false, nil
	}
	return true, nil
}

// AppendTransaction records a ledger line.
func (r *Repository) AppendTransaction(ctx context.Context, txn *entity.WalletTransaction) error {
	_, err := database.Executor(ctx, r.writer).NewInsert().Model(txn).Exec(ctx)
	return err
}

// Transactions lists ledger lines of a wallet, oldest first. limit <= 0 returns all.
func (r *Repository) Transactions(ctx context.Context, walletID int64, limit int) ([]entity.WalletTransaction, error) {
	var txns []entity.WalletTransaction
	q := database.Executor(ctx, r.reader).NewSelect().
		Model(&txns).
		Where("wallet_id = ?", walletID).
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return txns, nil
}

// TransactionsForOrder lists ledger lines tied to an order.
func (r *Repository) TransactionsForOrder(ctx context.Context, orderID int64) ([]entity.WalletTransaction, error) {
	var txns []entity.WalletTransaction
	err := database.Executor(ctx, r.reader).NewSelect().
		Model(&txns).
		Where("related_order_id = ?", orderID).
		Order("id ASC").
		Scan(ctx)
	return txns, err
}
