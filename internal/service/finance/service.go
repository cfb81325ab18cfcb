package finance

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/fulfillment/internal/database"
	"github.com/Additional-Code/fulfillment/internal/entity"
	"github.com/Additional-Code/fulfillment/internal/observability"
	ordersvc "github.com/Additional-Code/fulfillment/internal/service/order"
	walletsvc "github.com/Additional-Code/fulfillment/internal/service/wallet"
	"github.com/Additional-Code/fulfillment/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/fulfillment/service/finance")

// Service reconciles declared payments against order totals and wallets.
type Service struct {
	orders  *ordersvc.Service
	wallet  *walletsvc.Service
	writer  *bun.DB
	logger  *zap.Logger
	metrics *observability.WorkflowMetrics
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Orders  *ordersvc.Service
	Wallet  *walletsvc.Service
	Conns   *database.Connections
	Logger  *zap.Logger
	Metrics *observability.WorkflowMetrics `optional:"true"`
}

// NewService wires the reconciliation engine.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		orders:  p.Orders,
		wallet:  p.Wallet,
		writer:  p.Conns.Writer,
		logger:  logger,
		metrics: p.Metrics,
	}
}

// ApproveInput is a finance reviewer's decision on a declared receipt.
type ApproveInput struct {
	OrderID       int64
	Expected      entity.Status
	ReceiptAmount decimal.Decimal
	Notes         string
	Department    entity.Department
	Actor         string
}

// Result is the outcome of an approval.
type Result struct {
	Order             *entity.Order             `json:"order"`
	WalletTransaction *entity.WalletTransaction `json:"wallet_transaction,omitempty"`
	Shortfall         decimal.Decimal           `json:"shortfall"`
	Uncovered         decimal.Decimal           `json:"uncovered"`
}

// Shortfall returns total minus receipt. A negative value is an overpayment.
func Shortfall(total, receipt decimal.Decimal) decimal.Decimal {
	return total.Sub(receipt)
}

// Approve moves an order to finance_approved. A positive shortfall is debited from
// the customer's wallet and must not exceed its balance; an overpayment is
// credited. The order's status swap precedes the wallet movement and both commit
// together.
func (s *Service) Approve(ctx context.Context, in ApproveInput) (*Result, error) {
	ctx, span := serviceTracer.Start(ctx, "FinanceService.Approve", trace.WithAttributes(
		attribute.Int64("order.id", in.OrderID),
		attribute.String("receipt", in.ReceiptAmount.String()),
	))
	defer span.End()

	if in.ReceiptAmount.IsNegative() {
		return nil, errorbank.BadRequest("receipt amount cannot be negative")
	}
	expected := expectedOrDefault(in.Expected)

	result := &Result{}
	err := database.RunInTx(ctx, s.writer, func(ctx context.Context) error {
		order, err := s.prepare(ctx, in.OrderID, expected, in.Department)
		if err != nil {
			return err
		}

		result.Order, err = s.orders.Transition(ctx, ordersvc.TransitionRequest{
			OrderID:    order.ID,
			Expected:   expected,
			Target:     entity.StatusFinanceApproved,
			Department: in.Department,
			Actor:      in.Actor,
			Note:       in.Notes,
			Channel:    ordersvc.ChannelFinance,
			Apply:      withReceipt(in.ReceiptAmount),
		})
		if err != nil {
			return err
		}

		shortfall := Shortfall(order.TotalAmount, in.ReceiptAmount)
		result.Shortfall = shortfall
		result.Uncovered = decimal.Zero
		related := order.ID

		switch {
		case shortfall.IsPositive():
			result.WalletTransaction, err = s.wallet.Debit(ctx, walletsvc.Movement{
				CustomerID:     order.CustomerID,
				Amount:         shortfall,
				Reason:         fmt.Sprintf("shortfall for order %s", order.CustomerOrderID),
				RelatedOrderID: &related,
				Currency:       order.Currency,
			})
		case shortfall.IsNegative():
			result.WalletTransaction, err = s.wallet.Credit(ctx, walletsvc.Movement{
				CustomerID:     order.CustomerID,
				Amount:         shortfall.Neg(),
				Reason:         fmt.Sprintf("overpayment from order %s", order.CustomerOrderID),
				RelatedOrderID: &related,
				Currency:       order.Currency,
			})
		}
		return err
	})
	if err != nil {
		if errorbank.IsKind(err, errorbank.KindInsufficientFunds) {
			s.metrics.Decision(ctx, "refused")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "approve failed")
		return nil, wrapInternal(err)
	}

	s.metrics.Decision(ctx, "approved")
	s.logger.Info("finance approved order",
		zap.Int64("order.id", in.OrderID),
		zap.String("shortfall", result.Shortfall.String()),
		zap.String("actor", in.Actor),
	)
	return result, nil
}

// OverrideInput is an administrator's manual approval despite insufficient funds.
type OverrideInput struct {
	OrderID       int64
	Expected      entity.Status
	ReceiptAmount decimal.Decimal
	Notes         string
	Department    entity.Department
	Actor         string
}

// OverrideApprove approves an order whose shortfall the wallet cannot cover. The
// wallet is debited for what it holds and the uncovered remainder must fit in the
// customer's credit limit. The history entry is flagged as a manual override.
func (s *Service) OverrideApprove(ctx context.Context, in OverrideInput) (*Result, error) {
	ctx, span := serviceTracer.Start(ctx, "FinanceService.OverrideApprove", trace.WithAttributes(attribute.Int64("order.id", in.OrderID)))
	defer span.End()

	if in.Department != entity.DepartmentAdmin {
		return nil, errorbank.Forbidden("manual override requires an administrator")
	}
	if in.Notes == "" {
		return nil, errorbank.BadRequest("a justification note is required for manual override")
	}
	if in.ReceiptAmount.IsNegative() {
		return nil, errorbank.BadRequest("receipt amount cannot be negative")
	}
	expected := expectedOrDefault(in.Expected)

	result := &Result{}
	err := database.RunInTx(ctx, s.writer, func(ctx context.Context) error {
		order, err := s.prepare(ctx, in.OrderID, expected, in.Department)
		if err != nil {
			return err
		}

		shortfall := Shortfall(order.TotalAmount, in.ReceiptAmount)
		if !shortfall.IsPositive() {
			return errorbank.BadRequest("receipt covers the order; use the standard approval")
		}

		balance, err := s.wallet.GetBalance(ctx, order.CustomerID)
		if err != nil {
			return err
		}
		available := balance.Balance
		if balance.Status != entity.WalletActive || available.IsNegative() {
			available = decimal.Zero
		}
		covered := decimal.Min(shortfall, available)
		uncovered := shortfall.Sub(covered)
		if uncovered.GreaterThan(balance.CreditLimit) {
			return errorbank.InsufficientFunds("uncovered shortfall exceeds the customer's credit limit", errorbank.WithDetails(map[string]any{
				"shortfall":    shortfall.String(),
				"covered":      covered.String(),
				"uncovered":    uncovered.String(),
				"credit_limit": balance.CreditLimit.String(),
			}))
		}

		result.Shortfall = shortfall
		result.Uncovered = uncovered
		result.Order, err = s.orders.Transition(ctx, ordersvc.TransitionRequest{
			OrderID:        order.ID,
			Expected:       expected,
			Target:         entity.StatusFinanceApproved,
			Department:     in.Department,
			Actor:          in.Actor,
			Note:           fmt.Sprintf("%s (uncovered %s)", in.Notes, uncovered),
			Channel:        ordersvc.ChannelFinance,
			ManualOverride: true,
			Apply:          withReceipt(in.ReceiptAmount),
		})
		if err != nil || !covered.IsPositive() {
			return err
		}

		related := order.ID
		result.WalletTransaction, err = s.wallet.Debit(ctx, walletsvc.Movement{
			CustomerID:     order.CustomerID,
			Amount:         covered,
			Reason:         fmt.Sprintf("partial shortfall for order %s (manual override)", order.CustomerOrderID),
			RelatedOrderID: &related,
			Currency:       order.Currency,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "override failed")
		return nil, wrapInternal(err)
	}

	s.metrics.Decision(ctx, "override")
	s.logger.Warn("finance approval overridden",
		zap.Int64("order.id", in.OrderID),
		zap.String("uncovered", result.Uncovered.String()),
		zap.String("actor", in.Actor),
	)
	return result, nil
}

// RejectInput is a finance reviewer's refusal.
type RejectInput struct {
	OrderID    int64
	Expected   entity.Status
	Notes      string
	Department entity.Department
	Actor      string
}

// Reject moves an order to finance_rejected without touching the wallet.
func (s *Service) Reject(ctx context.Context, in RejectInput) (*entity.Order, error) {
	order, err := s.orders.Transition(ctx, ordersvc.TransitionRequest{
		OrderID:    in.OrderID,
		Expected:   expectedOrDefault(in.Expected),
		Target:     entity.StatusFinanceRejected,
		Department: in.Department,
		Actor:      in.Actor,
		Note:       in.Notes,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Decision(ctx, "rejected")
	return order, nil
}

// prepare loads the order and validates the approval edge before any wallet movement.
func (s *Service) prepare(ctx context.Context, orderID int64, expected entity.Status, dept entity.Department) (*entity.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != expected {
		return nil, ordersvc.StaleStatus(order.ID, expected, order.Status)
	}
	if err := ordersvc.CheckTransition(order.Status, entity.StatusFinanceApproved, dept, ordersvc.ChannelFinance); err != nil {
		return nil, err
	}
	return order, nil
}

func withReceipt(receipt decimal.Decimal) func(*entity.Order) []string {
	return func(o *entity.Order) []string {
		o.ReceiptAmount = decimal.NewNullDecimal(receipt)
		return []string{"receipt_amount"}
	}
}

func expectedOrDefault(s entity.Status) entity.Status {
	if s == "" {
		return entity.StatusFinancePending
	}
	return s
}

func wrapInternal(err error) error {
	var appErr *errorbank.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return errorbank.Internal("finance reconciliation failed", errorbank.WithCause(err))
}
