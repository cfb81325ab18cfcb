package dto

import (
	"github.com/shopspring/decimal"

	"github.com/Additional-Code/fulfillment/internal/entity"
)

// ApproveRequest is a finance reviewer's approval of a declared receipt.
type ApproveRequest struct {
	ExpectedStatus string          `json:"expectedStatus"`
	ReceiptAmount  decimal.Decimal `json:"receiptAmount"`
	Notes          string          `json:"notes" validate:"max=2000"`
}

// RejectRequest declines a declared payment.
type RejectRequest struct {
	ExpectedStatus string `json:"expectedStatus"`
	Notes          string `json:"notes" validate:"required,max=2000"`
}

// OverrideRequest approves an order the wallet cannot fully cover.
type OverrideRequest struct {
	ExpectedStatus string          `json:"expectedStatus"`
	ReceiptAmount  decimal.Decimal `json:"receiptAmount"`
	Notes          string          `json:"notes" validate:"required,max=2000"`
}

// ApproveResponse is the outcome of an approval.
type ApproveResponse struct {
	Order             OrderResponse              `json:"order"`
	WalletTransaction *WalletTransactionResponse `json:"walletTransaction,omitempty"`
	Shortfall         decimal.Decimal            `json:"shortfall"`
	Uncovered         *decimal.Decimal           `json:"uncovered,omitempty"`
}

// NewApproveResponse maps the reconciliation result.
func NewApproveResponse(order *entity.Order, txn *entity.WalletTransaction, shortfall, uncovered decimal.Decimal) ApproveResponse {
	resp := ApproveResponse{Order: NewOrderResponse(order), Shortfall: shortfall}
	if txn != nil {
		t := NewWalletTransactionResponse(*txn)
		resp.WalletTransaction = &t
	}
	if uncovered.IsPositive() {
		resp.Uncovered = &uncovered
	}
	return resp
}
