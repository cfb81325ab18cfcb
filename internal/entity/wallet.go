package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// WalletStatus marks whether a wallet may be debited.
type WalletStatus string

const (
	WalletActive   WalletStatus = "active"
	WalletInactive WalletStatus = "inactive"
)

// WalletAccount holds a customer's stored value. Balance caches the ledger fold.
type WalletAccount struct {
	bun.BaseModel `bun:"table:wallet_accounts,alias:wa"`

	ID             int64           `bun:",pk,autoincrement" json:"id"`
	CustomerID     int64           `bun:"customer_id,notnull,unique" json:"customer_id"`
	Balance        decimal.Decimal `bun:"balance,type:numeric(20,2),notnull" json:"balance"`
	CreditLimit    decimal.Decimal `bun:"credit_limit,type:numeric(20,2),notnull" json:"credit_limit"`
	Currency       string          `bun:"currency,notnull" json:"currency"`
	Status         WalletStatus    `bun:"status,notnull" json:"status"`
	Version        int64           `bun:"version,notnull,default:0" json:"version"`
	LastActivityAt time.Time       `bun:"last_activity_at,nullzero" json:"last_activity_at"`
	CreatedAt      time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
}

// Direction of a wallet movement.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// WalletTransaction is one append-only ledger line.
type WalletTransaction struct {
	bun.BaseModel `bun:"table:wallet_transactions,alias:wt"`

	ID             int64           `bun:",pk,autoincrement" json:"id"`
	WalletID       int64           `bun:"wallet_id,notnull" json:"wallet_id"`
	Direction      Direction       `bun:"direction,notnull" json:"direction"`
	Amount         decimal.Decimal `bun:"amount,type:numeric(20,2),notnull" json:"amount"`
	Reason         string          `bun:"reason,notnull" json:"reason"`
	RelatedOrderID *int64          `bun:"related_order_id" json:"related_order_id,omitempty"`
	BalanceAfter   decimal.Decimal `bun:"balance_after,type:numeric(20,2),notnull" json:"balance_after"`
	CreatedAt      time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
}

// Signed returns the amount with its ledger sign applied.
func (t WalletTransaction) Signed() decimal.Decimal {
	if t.Direction == DirectionDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}
