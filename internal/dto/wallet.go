package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/fulfillment/internal/entity"
)

// BalanceResponse is a customer's spendable balance.
type BalanceResponse struct {
	CustomerID  int64           `json:"customerId"`
	Balance     decimal.Decimal `json:"balance"`
	CreditLimit decimal.Decimal `json:"creditLimit"`
	Currency    string          `json:"currency,omitempty"`
	Status      string          `json:"status,omitempty"`
}

// WalletTransactionResponse is one ledger entry.
type WalletTransactionResponse struct {
	ID             int64            `json:"id"`
	Direction      entity.Direction `json:"type"`
	Amount         decimal.Decimal  `json:"amount"`
	Reason         string           `json:"reason"`
	RelatedOrderID *int64           `json:"relatedOrderId,omitempty"`
	BalanceAfter   decimal.Decimal  `json:"balanceAfter"`
	CreatedAt      time.Time        `json:"timestamp"`
}

// NewWalletTransactionResponse maps a ledger entry.
func NewWalletTransactionResponse(txn entity.WalletTransaction) WalletTransactionResponse {
	return WalletTransactionResponse{
		ID:             txn.ID,
		Direction:      txn.Direction,
		Amount:         txn.Amount,
		Reason:         txn.Reason,
		RelatedOrderID: txn.RelatedOrderID,
		BalanceAfter:   txn.BalanceAfter,
		CreatedAt:      txn.CreatedAt,
	}
}
