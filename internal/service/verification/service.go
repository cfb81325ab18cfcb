package verification

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/fulfillment/internal/cache"
	"github.com/Additional-Code/fulfillment/internal/config"
	"github.com/Additional-Code/fulfillment/internal/database"
	"github.com/Additional-Code/fulfillment/internal/entity"
	"github.com/Additional-Code/fulfillment/internal/messaging"
	"github.com/Additional-Code/fulfillment/internal/observability"
	repo "github.com/Additional-Code/fulfillment/internal/repository/verification"
	ordersvc "github.com/Additional-Code/fulfillment/internal/service/order"
	"github.com/Additional-Code/fulfillment/internal/sms"
	"github.com/Additional-Code/fulfillment/pkg/errorbank"
)

// EventSMSRetry asks the worker to resend a code whose dispatch failed.
const EventSMSRetry = "verification.sms_retry"

// maxSMSAttempts bounds automatic resends of one code.
const maxSMSAttempts = 5

// maxRecordAttempts bounds re-reads when concurrent wrong guesses race on one code.
const maxRecordAttempts = 3

var serviceTracer = otel.Tracer("github.com/Additional-Code/fulfillment/service/verification")

// SMSRetryEvent is the payload of EventSMSRetry.
type SMSRetryEvent struct {
	CodeID  int64 `json:"code_id"`
	OrderID int64 `json:"order_id"`
	Attempt int   `json:"attempt"`
}

// Service issues and validates delivery verification codes.
type Service struct {
	repo        *repo.Repository
	orders      *ordersvc.Service
	sender      sms.Sender
	limiter     cache.Limiter
	publisher   messaging.Client
	logger      *zap.Logger
	metrics     *observability.WorkflowMetrics
	codeLength  int
	codeTTL     time.Duration
	maxAttempts int
	rateLimit   int
	rateWindow  time.Duration
	now         func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Orders     *ordersvc.Service
	Sender     sms.Sender
	Limiter    cache.Limiter
	Publisher  messaging.Client
	Config     config.Config
	Logger     *zap.Logger
	Metrics    *observability.WorkflowMetrics `optional:"true"`
	Now        func() time.Time               `optional:"true"`
}

// NewService wires the verification service.
func NewService(p Params) *Service {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := p.Config.Verification
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = 6
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 24 * time.Hour
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Service{
		repo:        p.Repository,
		orders:      p.Orders,
		sender:      p.Sender,
		limiter:     p.Limiter,
		publisher:   p.Publisher,
		logger:      logger,
		metrics:     p.Metrics,
		codeLength:  cfg.CodeLength,
		codeTTL:     cfg.CodeTTL,
		maxAttempts: cfg.MaxAttempts,
		rateLimit:   cfg.RateLimit,
		rateWindow:  cfg.RateWindow,
		now:         now,
	}
}

// IssueInput requests a code for an order out for delivery.
type IssueInput struct {
	OrderID       int64
	CustomerPhone string
	CustomerName  string
	Department    entity.Department
	Actor         string
}

// Issue creates the live code of an order and sends it to the customer. It fails
// with a bad request while an unexpired, unverified code exists. When the send
// fails the code is kept, a resend is scheduled, and an external service error
// is returned together with the record.
func (s *Service) Issue(ctx context.Context, in IssueInput) (*entity.VerificationCode, error) {
	return s.issue(ctx, in, false)
}

// Reissue supersedes the live code of an order, if any, and issues a fresh one.
func (s *Service) Reissue(ctx context.Context, in IssueInput) (*entity.VerificationCode, error) {
	return s.issue(ctx, in, true)
}

func (s *Service) issue(ctx context.Context, in IssueInput, replace bool) (*entity.VerificationCode, error) {
	ctx, span := serviceTracer.Start(ctx, "VerificationService.Issue", trace.WithAttributes(
		attribute.Int64("order.id", in.OrderID),
		attribute.Bool("reissue", replace),
	))
	defer span.End()

	if in.Department != entity.DepartmentLogistics && in.Department != entity.DepartmentAdmin {
		return nil, errorbank.Forbidden("only logistics may issue delivery codes", errorbank.WithDetail("department", string(in.Department)))
	}

	var (
		issued *entity.VerificationCode
		order  *entity.Order
	)
	err := database.RunInTx(ctx, s.repo.Writer(), func(ctx context.Context) error {
		var err error
		order, err = s.orders.Get(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if order.Status != entity.StatusLogisticsAssigned && order.Status != entity.StatusLogisticsDispatched {
			return errorbank.IllegalTransition("delivery codes are issued once logistics has the order",
				errorbank.WithDetail("status", string(order.Status)))
		}

		now := s.now().UTC()
		current, err := s.repo.Current(ctx, order.ID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
		case err != nil:
			return err
		default:
			live := !current.IsVerified && !current.ExpiredAt(now) && current.DeliveryAttempts < s.maxAttempts
			if live && !replace {
				return errorbank.BadRequest("an active delivery code already exists; reissue it instead",
					errorbank.WithDetail("expires_at", current.ExpiresAt))
			}
			if err := s.repo.Supersede(ctx, current.ID, now); err != nil {
				return err
			}
		}

		code, err := generateCode(s.codeLength)
		if err != nil {
			return err
		}
		phone := strings.TrimSpace(in.CustomerPhone)
		if phone == "" {
			phone = order.CustomerPhone
		}
		if phone == "" {
			return errorbank.BadRequest("customer phone is required")
		}

		live := true
		issued = &entity.VerificationCode{
			OrderID:       order.ID,
			Code:          code,
			CustomerPhone: phone,
			CustomerName:  strings.TrimSpace(in.CustomerName),
			SMSStatus:     entity.SMSPending,
			Current:       &live,
			ExpiresAt:     now.Add(s.codeTTL),
			CreatedAt:     now,
		}
		return s.repo.Create(ctx, issued)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "issue failed")
		return nil, wrapInternal("failed to issue delivery code", err)
	}

	s.logger.Info("delivery code issued",
		zap.Int64("order.id", order.ID),
		zap.Int64("code.id", issued.ID),
		zap.Time("expires_at", issued.ExpiresAt),
		zap.String("actor", in.Actor),
	)

	if err := s.dispatch(ctx, issued, order); err != nil {
		return issued, err
	}
	return issued, nil
}

// dispatch sends the code and records the outcome. A failed send is
// rescheduled through the bus until maxSMSAttempts is reached.
func (s *Service) dispatch(ctx context.Context, code *entity.VerificationCode, order *entity.Order) error {
	code.SMSAttempts++
	sendErr := s.sender.Send(ctx, sms.Message{
		To:        code.CustomerPhone,
		Body:      fmt.Sprintf("Your delivery code for order %s is %s. Valid until %s.", order.CustomerOrderID, code.Code, code.ExpiresAt.Format(time.RFC1123)),
		Reference: fmt.Sprintf("order-%d", order.ID),
	})
	if sendErr == nil {
		code.SMSStatus = entity.SMSSent
		code.SMSFailure = ""
	} else {
		code.SMSStatus = entity.SMSFailed
		code.SMSFailure = sendErr.Error()
	}
	if err := s.repo.UpdateSMS(ctx, code); err != nil {
		s.logger.Error("record sms status", zap.Int64("code.id", code.ID), zap.Error(err))
	}
	if sendErr == nil {
		return nil
	}

	s.logger.Warn("delivery code sms failed",
		zap.Int64("order.id", order.ID),
		zap.Int64("code.id", code.ID),
		zap.Int("attempt", code.SMSAttempts),
		zap.Error(sendErr),
	)
	if code.SMSAttempts < maxSMSAttempts {
		event := SMSRetryEvent{CodeID: code.ID, OrderID: order.ID, Attempt: code.SMSAttempts}
		if err := messaging.Publish(ctx, s.publisher, fmt.Sprintf("order-%d", order.ID), EventSMSRetry, event); err != nil {
			s.logger.Error("publish sms retry", zap.Int64("code.id", code.ID), zap.Error(err))
		}
	}
	return errorbank.ExternalService("delivery code saved but the sms could not be sent",
		errorbank.WithCause(sendErr),
		errorbank.WithDetail("sms_attempts", code.SMSAttempts),
	)
}

// RetryDispatch resends a code whose earlier send failed. Codes that were
// superseded, verified, expired or already sent are left alone.
func (s *Service) RetryDispatch(ctx context.Context, codeID int64) error {
	code, err := s.repo.GetByID(ctx, codeID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !code.IsCurrent() || code.IsVerified || code.SMSStatus == entity.SMSSent || code.ExpiredAt(s.now().UTC()) {
		return nil
	}
	order, err := s.orders.Get(ctx, code.OrderID)
	if err != nil {
		return err
	}
	return s.dispatch(ctx, code, order)
}

// VerifyInput is a courier's proof-of-delivery attempt.
type VerifyInput struct {
	OrderID    int64
	Code       string
	VerifiedBy string
	Location   string
}

// VerifyResult is the outcome of a successful verification.
type VerifyResult struct {
	Verified bool                     `json:"verified"`
	Code     *entity.VerificationCode `json:"code"`
	Order    *entity.Order            `json:"order,omitempty"`
}

// Verify checks a supplied code against the live code of an order. A match
// marks the code verified and delivers the order in one transaction. A repeat
// of an already verified code returns the earlier result.
func (s *Service) Verify(ctx context.Context, in VerifyInput) (*VerifyResult, error) {
	ctx, span := serviceTracer.Start(ctx, "VerificationService.Verify", trace.WithAttributes(attribute.Int64("order.id", in.OrderID)))
	defer span.End()

	supplied := strings.TrimSpace(in.Code)
	if supplied == "" {
		return nil, errorbank.BadRequest("code is required")
	}
	if strings.TrimSpace(in.VerifiedBy) == "" {
		return nil, errorbank.BadRequest("verifier is required")
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, fmt.Sprintf("verify:%d", in.OrderID), s.rateLimit, s.rateWindow)
		if err != nil {
			s.logger.Warn("verify rate limiter unavailable", zap.Int64("order.id", in.OrderID), zap.Error(err))
		} else if !allowed {
			return nil, errorbank.TooManyRequests("too many verification attempts; slow down")
		}
	}

	var (
		result   *VerifyResult
		mismatch *entity.VerificationCode
	)
	err := database.RunInTx(ctx, s.repo.Writer(), func(ctx context.Context) error {
		code, err := s.repo.Current(ctx, in.OrderID)
		if errors.Is(err, repo.ErrNotFound) {
			return errorbank.NotFound("no delivery code issued for order", errorbank.WithDetail("order_id", in.OrderID))
		}
		if err != nil {
			return err
		}

		matches := subtle.ConstantTimeCompare([]byte(supplied), []byte(code.Code)) == 1
		if code.IsVerified {
			if !matches {
				return errorbank.Mismatch("code does not match", errorbank.WithDetail("attempts", code.DeliveryAttempts))
			}
			result, err = s.priorResult(ctx, code)
			return err
		}

		now := s.now().UTC()
		if code.ExpiredAt(now) || code.DeliveryAttempts >= s.maxAttempts {
			return errorbank.Expired("delivery code expired; reissue required", errorbank.WithDetails(map[string]any{
				"expires_at": code.ExpiresAt,
				"attempts":   code.DeliveryAttempts,
			}))
		}

		if !matches {
			mismatch, err = s.recordMismatch(ctx, code, failureReason(now, in))
			return err
		}

		code.IsVerified = true
		code.VerifiedAt = &now
		code.VerifiedBy = in.VerifiedBy
		code.VerifiedLocation = in.Location
		won, err := s.repo.MarkVerified(ctx, code)
		if err != nil {
			return err
		}
		if !won {
			fresh, err := s.repo.GetByID(ctx, code.ID)
			if err != nil {
				return err
			}
			result, err = s.priorResult(ctx, fresh)
			return err
		}

		note := "delivery verified"
		if in.Location != "" {
			note = fmt.Sprintf("delivery verified at %s", in.Location)
		}
		order, err := s.orders.Transition(ctx, ordersvc.TransitionRequest{
			OrderID:    in.OrderID,
			Expected:   entity.StatusLogisticsDispatched,
			Target:     entity.StatusDelivered,
			Department: entity.DepartmentLogistics,
			Actor:      in.VerifiedBy,
			Note:       note,
			Channel:    ordersvc.ChannelVerification,
		})
		if err != nil {
			return err
		}
		result = &VerifyResult{Verified: true, Code: code, Order: order}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "verify failed")
		if errorbank.IsKind(err, errorbank.KindExpired) {
			s.metrics.Verification(ctx, "expired")
		}
		return nil, wrapInternal("failed to verify delivery code", err)
	}

	if mismatch != nil {
		s.metrics.Verification(ctx, "mismatch")
		s.logger.Info("delivery code mismatch",
			zap.Int64("order.id", in.OrderID),
			zap.Int("attempts", mismatch.DeliveryAttempts),
			zap.String("verified_by", in.VerifiedBy),
		)
		remaining := s.maxAttempts - mismatch.DeliveryAttempts
		if remaining < 0 {
			remaining = 0
		}
		return nil, errorbank.Mismatch("code does not match", errorbank.WithDetails(map[string]any{
			"attempts":  mismatch.DeliveryAttempts,
			"remaining": remaining,
		}))
	}

	s.metrics.Verification(ctx, "verified")
	s.logger.Info("delivery verified",
		zap.Int64("order.id", in.OrderID),
		zap.String("verified_by", result.Code.VerifiedBy),
	)
	return result, nil
}

// recordMismatch counts a wrong guess against code. When a concurrent guess moved
// the counter first it re-reads the code and counts on top of the stored value.
func (s *Service) recordMismatch(ctx context.Context, code *entity.VerificationCode, reason string) (*entity.VerificationCode, error) {
	for attempt := 1; attempt <= maxRecordAttempts; attempt++ {
		if code.IsVerified {
			return nil, errorbank.Mismatch("code does not match", errorbank.WithDetail("attempts", code.DeliveryAttempts))
		}
		if code.DeliveryAttempts >= s.maxAttempts {
			return nil, errorbank.Expired("delivery code expired; reissue required", errorbank.WithDetails(map[string]any{
				"expires_at": code.ExpiresAt,
				"attempts":   code.DeliveryAttempts,
			}))
		}

		previous := code.DeliveryAttempts
		code.DeliveryAttempts = previous + 1
		code.FailureReasons = append(code.FailureReasons, reason)
		won, err := s.repo.RecordFailure(ctx, code, previous)
		if err != nil {
			return nil, err
		}
		if won {
			return code, nil
		}

		s.logger.Debug("delivery code attempt counter moved; retrying",
			zap.Int64("code.id", code.ID),
			zap.Int("attempt", attempt),
		)
		code, err = s.repo.GetByID(ctx, code.ID)
		if err != nil {
			return nil, err
		}
	}
	return nil, errorbank.Conflict("delivery code is being verified concurrently", errorbank.WithDetail("order_id", code.OrderID))
}

func (s *Service) priorResult(ctx context.Context, code *entity.VerificationCode) (*VerifyResult, error) {
	order, err := s.orders.Get(ctx, code.OrderID)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{Verified: true, Code: code, Order: order}, nil
}

// History lists every code issued for an order, newest first.
func (s *Service) History(ctx context.Context, orderID int64) ([]entity.VerificationCode, error) {
	out, err := s.repo.ListForOrder(ctx, orderID)
	if err != nil {
		return nil, errorbank.Internal("failed to list delivery codes", errorbank.WithCause(err))
	}
	return out, nil
}

func failureReason(at time.Time, in VerifyInput) string {
	reason := fmt.Sprintf("%s: code mismatch reported by %s", at.Format(time.RFC3339), in.VerifiedBy)
	if in.Location != "" {
		reason += " at " + in.Location
	}
	return reason
}

// generateCode returns a uniformly random numeric code of the given length.
func generateCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	ten := big.NewInt(10)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// Mask hides all but the last two digits of a code.
func Mask(code string) string {
	if len(code) <= 2 {
		return strings.Repeat("*", len(code))
	}
	return strings.Repeat("*", len(code)-2) + code[len(code)-2:]
}

func wrapInternal(message string, err error) error {
	var appErr *errorbank.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return errorbank.Internal(message, errorbank.WithCause(err))
}
