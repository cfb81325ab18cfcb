package order

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

	"github.com/Additional-Code/fulfillment/internal/cache"
	"github.com/Additional-Code/fulfillment/internal/config"
	"github.com/Additional-Code/fulfillment/internal/database"
	"github.com/Additional-Code/fulfillment/internal/entity"
	"github.com/Additional-Code/fulfillment/internal/messaging"
	"github.com/Additional-Code/fulfillment/internal/observability"
	repo "github.com/Additional-Code/fulfillment/internal/repository/order"
	"github.com/Additional-Code/fulfillment/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/fulfillment/service/order")

// Service is the order state machine. It is the only writer of order status.
type Service struct {
	repo          *repo.Repository
	cache         cache.Store
	cacheTTL      time.Duration
	logger        *zap.Logger
	publisher     messaging.Client
	metrics       *observability.WorkflowMetrics
	hooks         []TransitionHook
	paymentExpiry time.Duration
	now           func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
	Metrics    *observability.WorkflowMetrics `optional:"true"`
	Hooks      []TransitionHook               `group:"order.hooks"`
	Now        func() time.Time               `optional:"true"`
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:          p.Repository,
		cache:         p.Cache,
		cacheTTL:      p.Config.Cache.DefaultTTL,
		logger:        logger,
		publisher:     p.Publisher,
		metrics:       p.Metrics,
		hooks:         p.Hooks,
		paymentExpiry: p.Config.Workflow.PaymentExpiry,
		now:           now,
	}
}

// CreateInput registers an order placed at checkout.
type CreateInput struct {
	CustomerOrderID string
	CustomerID      int64
	CustomerPhone   string
	TotalAmount     decimal.Decimal
	Currency        string
	PaymentMethod   string
	CustomerNotes   string
	Items           []ItemInput
	Actor           string
}

// ItemInput is one product line of CreateInput.
type ItemInput struct {
	ProductID int64
	Quantity  int64
	UnitPrice decimal.Decimal
}

// Create persists a new order in pending_payment with its initial history entry.
func (s *Service) Create(ctx context.Context, in CreateInput) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(attribute.String("order.customer_order_id", in.CustomerOrderID)))
	defer span.End()

	if err := validateCreate(in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	order := &entity.Order{
		CustomerOrderID: strings.TrimSpace(in.CustomerOrderID),
		CustomerID:      in.CustomerID,
		CustomerPhone:   strings.TrimSpace(in.CustomerPhone),
		TotalAmount:     in.TotalAmount,
		Currency:        strings.ToUpper(in.Currency),
		PaymentMethod:   in.PaymentMethod,
		Status:          entity.StatusPendingPayment,
		CustomerNotes:   in.CustomerNotes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, item := range in.Items {
		order.Items = append(order.Items, &entity.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	err := database.RunInTx(ctx, s.repo.Writer(), func(ctx context.Context) error {
		exists, err := s.repo.ExistsByCustomerOrderID(ctx, order.CustomerOrderID)
		if err != nil {
			return err
		}
		if exists {
			return errorbank.Conflict("order already registered", errorbank.WithDetail("customer_order_id", order.CustomerOrderID))
		}
		if err := s.repo.Create(ctx, order); err != nil {
			return err
		}
		if err := s.repo.AppendHistory(ctx, &entity.StatusHistoryEntry{
			OrderID:          order.ID,
			ToStatus:         order.Status,
			ActingDepartment: entity.DepartmentCustomer,
			Actor:            in.Actor,
			Note:             in.CustomerNotes,
			CreatedAt:        now,
		}); err != nil {
			return err
		}
		database.AfterCommit(ctx, func(ctx context.Context) {
			s.committed(ctx, order, "", entity.DepartmentCustomer, in.Actor, false)
		})
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return nil, wrapInternal("failed to create order", err)
	}
	return order, nil
}

func validateCreate(in CreateInput) error {
	switch {
	case strings.TrimSpace(in.CustomerOrderID) == "":
		return errorbank.BadRequest("customer order id is required")
	case in.CustomerID <= 0:
		return errorbank.BadRequest("customer id is required")
	case !in.TotalAmount.IsPositive():
		return errorbank.BadRequest("total amount must be positive")
	case len(in.Currency) != 3:
		return errorbank.BadRequest("currency must be an ISO 4217 code")
	case strings.TrimSpace(in.PaymentMethod) == "":
		return errorbank.BadRequest("payment method is required")
	}
	for i, item := range in.Items {
		if item.ProductID <= 0 || item.Quantity <= 0 || item.UnitPrice.IsNegative() {
			return errorbank.BadRequest(fmt.Sprintf("item %d is invalid", i))
		}
	}
	return nil
}

// Get retrieves an order by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if !database.InTx(ctx) {
		if order, err := s.getFromCache(ctx, id); err == nil {
			return order, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("orders cache read failed", zap.Int64("order.id", id), zap.Error(err))
		}
	}

	order, err := s.load(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return nil, err
	}

	if !database.InTx(ctx) {
		if err := s.storeInCache(ctx, order); err != nil {
			s.logger.Warn("orders cache write failed", zap.Int64("order.id", id), zap.Error(err))
		}
	}
	return order, nil
}

func (s *Service) load(ctx context.Context, id int64) (*entity.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, errorbank.NotFound("order not found", errorbank.WithDetail("order_id", id))
	}
	if err != nil {
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	return order, nil
}

// History returns the audit trail of an order, oldest first.
func (s *Service) History(ctx context.Context, id int64) ([]entity.StatusHistoryEntry, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	entries, err := s.repo.History(ctx, id)
	if err != nil {
		return nil, errorbank.Internal("failed to load history", errorbank.WithCause(err))
	}
	return entries, nil
}

// TransitionRequest asks the state machine to move an order.
type TransitionRequest struct {
	OrderID        int64
	Expected       entity.Status
	Target         entity.Status
	Department     entity.Department
	Actor          string
	Note           string
	Channel        Channel
	ManualOverride bool
	// Apply may mutate further order fields; the returned columns are written with the status.
	Apply func(*entity.Order) []string
}

// Transition moves an order from Expected to Target. It fails with a conflict when
// the stored status differs from Expected and with an illegal transition when the
// edge is not permitted. The status update, history entry and hooks share one
// transaction; a caller already inside a transaction joins it.
func (s *Service) Transition(ctx context.Context, req TransitionRequest) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Transition", trace.WithAttributes(
		attribute.Int64("order.id", req.OrderID),
		attribute.String("order.expected_status", string(req.Expected)),
		attribute.String("order.target_status", string(req.Target)),
		attribute.String("department", string(req.Department)),
	))
	defer span.End()

	var updated *entity.Order
	err := database.RunInTx(ctx, s.repo.Writer(), func(ctx context.Context) error {
		order, err := s.load(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if order.Status != req.Expected {
			return StaleStatus(order.ID, req.Expected, order.Status)
		}
		if err := CheckTransition(order.Status, req.Target, req.Department, req.Channel); err != nil {
			return err
		}

		from := order.Status
		now := s.now().UTC()
		order.Status = req.Target
		order.UpdatedAt = now

		var columns []string
		if col := noteColumn(order, req); col != "" {
			columns = append(columns, col)
		}
		if req.Apply != nil {
			columns = append(columns, req.Apply(order)...)
		}

		ok, err := s.repo.CompareAndSetStatus(ctx, order, from, columns...)
		if err != nil {
			return err
		}
		if !ok {
			current, err := s.load(ctx, order.ID)
			if err != nil {
				return err
			}
			return StaleStatus(order.ID, from, current.Status)
		}

		if err := s.repo.AppendHistory(ctx, &entity.StatusHistoryEntry{
			OrderID:          order.ID,
			FromStatus:       from,
			ToStatus:         req.Target,
			ActingDepartment: req.Department,
			Actor:            req.Actor,
			Note:             req.Note,
			ManualOverride:   req.ManualOverride,
			CreatedAt:        now,
		}); err != nil {
			return err
		}

		ev := TransitionEvent{Order: order, From: from, To: req.Target, Department: req.Department, Actor: req.Actor}
		for _, hook := range s.hooks {
			if err := hook.OnTransition(ctx, ev); err != nil {
				return err
			}
		}

		database.AfterCommit(ctx, func(ctx context.Context) {
			s.committed(ctx, order, from, req.Department, req.Actor, req.ManualOverride)
		})
		updated = order
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition failed")
		return nil, wrapInternal("failed to transition order", err)
	}
	return updated, nil
}

// noteColumn stores the free-text note on the acting department's annotation field.
func noteColumn(order *entity.Order, req TransitionRequest) string {
	if req.Note == "" {
		return ""
	}
	if req.Target == entity.StatusDelivered {
		order.DeliveryNotes = req.Note
		return "delivery_notes"
	}
	switch req.Department {
	case entity.DepartmentCustomer:
		order.CustomerNotes = req.Note
		return "customer_notes"
	case entity.DepartmentFinance:
		order.FinancialNotes = req.Note
		return "financial_notes"
	case entity.DepartmentWarehouse:
		order.WarehouseNotes = req.Note
		return "warehouse_notes"
	case entity.DepartmentLogistics:
		order.LogisticsNotes = req.Note
		return "logistics_notes"
	}
	return ""
}

// StaleStatus builds the conflict returned when an order is no longer in the expected status.
func StaleStatus(id int64, expected, actual entity.Status) error {
	return errorbank.Conflict("order status changed; refetch and retry", errorbank.WithDetails(map[string]any{
		"order_id": id,
		"expected": string(expected),
		"actual":   string(actual),
	}))
}

// ExpireStale moves pre-payment orders older than the payment window to expired.
// Orders that change concurrently are skipped. It returns the number expired.
func (s *Service) ExpireStale(ctx context.Context, limit int) (int, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.ExpireStale")
	defer span.End()

	cutoff := s.now().UTC().Add(-s.paymentExpiry)
	stale, err := s.repo.ListCreatedBefore(ctx, []entity.Status{entity.StatusPendingPayment, entity.StatusPaymentGracePeriod}, cutoff, limit)
	if err != nil {
		span.RecordError(err)
		return 0, errorbank.Internal("failed to list stale orders", errorbank.WithCause(err))
	}

	expired := 0
	for _, order := range stale {
		_, err := s.Transition(ctx, TransitionRequest{
			OrderID:    order.ID,
			Expected:   order.Status,
			Target:     entity.StatusExpired,
			Department: entity.DepartmentSystem,
			Note:       fmt.Sprintf("payment window of %s elapsed", s.paymentExpiry),
		})
		if errorbank.IsKind(err, errorbank.KindConflict) {
			continue
		}
		if err != nil {
			return expired, err
		}
		expired++
	}
	if expired > 0 {
		s.logger.Info("expired unpaid orders", zap.Int("count", expired), zap.Time("cutoff", cutoff))
	}
	return expired, nil
}

func (s *Service) committed(ctx context.Context, order *entity.Order, from entity.Status, dept entity.Department, actor string, override bool) {
	if err := s.invalidate(ctx, order.ID); err != nil {
		s.logger.Warn("orders cache invalidate failed", zap.Int64("order.id", order.ID), zap.Error(err))
	}
	s.metrics.Transition(ctx, string(from), string(order.Status), string(dept))
	s.logger.Info("order transitioned",
		zap.Int64("order.id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(order.Status)),
		zap.String("department", string(dept)),
		zap.String("actor", actor),
		zap.Bool("manual_override", override),
	)

	event := TransitionedEvent{
		OrderID:         order.ID,
		CustomerOrderID: order.CustomerOrderID,
		From:            from,
		To:              order.Status,
		Department:      dept,
		Actor:           actor,
		ManualOverride:  override,
	}
	if err := messaging.Publish(ctx, s.publisher, fmt.Sprintf("order-%d", order.ID), EventTransitioned, event); err != nil {
		s.logger.Error("publish order transitioned", zap.Int64("order.id", order.ID), zap.Error(err))
	}
}

func wrapInternal(message string, err error) error {
	var appErr *errorbank.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return errorbank.Internal(message, errorbank.WithCause(err))
}

func (s *Service) cacheKey(id int64) string {
	return cache.Key("orders", id)
}

func (s *Service) invalidate(ctx context.Context, id int64) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, s.cacheKey(id))
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Order, error) {
	var order entity.Order
	if err := cache.GetJSON(ctx, s.cache, s.cacheKey(id), &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return nil
	}
	return cache.SetJSON(ctx, s.cache, s.cacheKey(order.ID), order, s.cacheTTL)
}
