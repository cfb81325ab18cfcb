package notification

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/fulfillment/internal/messaging"
	inventorysvc "github.com/Additional-Code/fulfillment/internal/service/inventory"
	ordersvc "github.com/Additional-Code/fulfillment/internal/service/order"
	verificationsvc "github.com/Additional-Code/fulfillment/internal/service/verification"
	"github.com/Additional-Code/fulfillment/internal/worker"
	"github.com/Additional-Code/fulfillment/pkg/errorbank"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/fulfillment/worker/notification")

// Module registers the workflow event handlers.
var Module = fx.Module("worker_notification",
	fx.Provide(
		fx.Annotate(
			NewSMSRetryHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
		fx.Annotate(
			NewThresholdAlertHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
		fx.Annotate(
			NewTransitionHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// Retrier resends delivery codes whose sms failed.
type Retrier interface {
	RetryDispatch(ctx context.Context, codeID int64) error
}

// NewSMSRetryHandler resends delivery codes. A failed resend has already
// queued its own follow-up, so only storage errors leave the message pending.
func NewSMSRetryHandler(logger *zap.Logger, svc *verificationsvc.Service) worker.HandlerRegistration {
	return smsRetry(logger, svc)
}

func smsRetry(logger *zap.Logger, retrier Retrier) worker.HandlerRegistration {
	handler := func(ctx context.Context, env messaging.Envelope) error {
		ctx, span := workerTracer.Start(ctx, "worker.verification.sms_retry", trace.WithAttributes(
			attribute.String("event.id", env.ID),
		))
		defer span.End()

		var event verificationsvc.SMSRetryEvent
		if err := env.Bind(&event); err != nil {
			logger.Error("failed to decode sms retry", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return nil
		}
		span.SetAttributes(attribute.Int64("order.id", event.OrderID), attribute.Int("sms.attempt", event.Attempt))

		err := retrier.RetryDispatch(ctx, event.CodeID)
		switch {
		case err == nil:
			logger.Info("delivery code resent", zap.Int64("code.id", event.CodeID), zap.Int64("order.id", event.OrderID))
			return nil
		case errorbank.IsKind(err, errorbank.KindExternalService):
			logger.Warn("delivery code resend failed",
				zap.Int64("code.id", event.CodeID),
				zap.Int("attempt", event.Attempt),
				zap.Error(err),
			)
			return nil
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, "retry failed")
			return err
		}
	}

	return worker.HandlerRegistration{
		EventType: verificationsvc.EventSMSRetry,
		Handler:   handler,
	}
}

// NewThresholdAlertHandler reports inventory threshold crossings to the
// operations log.
func NewThresholdAlertHandler(logger *zap.Logger) worker.HandlerRegistration {
	handler := func(ctx context.Context, env messaging.Envelope) error {
		var alert inventorysvc.ThresholdAlert
		if err := env.Bind(&alert); err != nil {
			logger.Error("failed to decode inventory alert", zap.Error(err))
			return nil
		}

		fields := []zap.Field{
			zap.Int64("product.id", alert.ProductID),
			zap.String("level", string(alert.Level)),
			zap.Int64("final_inventory", alert.FinalInventory),
			zap.Int64("min_stock_level", alert.MinStockLevel),
			zap.Int64("low_stock_threshold", alert.LowStockThreshold),
			zap.Bool("reminder", alert.Reminder),
		}
		if alert.Level == inventorysvc.LevelCritical {
			logger.Error("inventory below minimum stock", fields...)
		} else {
			logger.Warn("inventory running low", fields...)
		}
		return nil
	}

	return worker.HandlerRegistration{
		EventType: inventorysvc.EventThresholdCrossed,
		Handler:   handler,
	}
}

// NewTransitionHandler records committed order status changes.
func NewTransitionHandler(logger *zap.Logger) worker.HandlerRegistration {
	handler := func(ctx context.Context, env messaging.Envelope) error {
		var event ordersvc.TransitionedEvent
		if err := env.Bind(&event); err != nil {
			logger.Error("failed to decode order transition", zap.Error(err))
			return nil
		}
		logger.Info("order transition processed",
			zap.Int64("order.id", event.OrderID),
			zap.String("customer_order_id", event.CustomerOrderID),
			zap.String("from", string(event.From)),
			zap.String("to", string(event.To)),
			zap.String("department", string(event.Department)),
			zap.Bool("manual_override", event.ManualOverride),
			zap.Time("occurred_at", env.OccurredAt),
		)
		return nil
	}

	return worker.HandlerRegistration{
		EventType: ordersvc.EventTransitioned,
		Handler:   handler,
	}
}
