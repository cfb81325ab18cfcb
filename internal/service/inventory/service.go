package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/fulfillment/internal/config"
	"github.com/Additional-Code/fulfillment/internal/database"
	"github.com/Additional-Code/fulfillment/internal/entity"
	"github.com/Additional-Code/fulfillment/internal/messaging"
	"github.com/Additional-Code/fulfillment/internal/observability"
	repo "github.com/Additional-Code/fulfillment/internal/repository/inventory"
	orderrepo "github.com/Additional-Code/fulfillment/internal/repository/order"
	"github.com/Additional-Code/fulfillment/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/fulfillment/service/inventory")

const maxSwapAttempts = 3

// Service coordinates stock, goods in transit and waste per product.
type Service struct {
	repo            *repo.Repository
	orders          *orderrepo.Repository
	publisher       messaging.Client
	metrics         *observability.WorkflowMetrics
	logger          *zap.Logger
	defaultLowStock int64
	now             func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Orders     *orderrepo.Repository
	Publisher  messaging.Client
	Config     config.Config
	Logger     *zap.Logger
	Metrics    *observability.WorkflowMetrics `optional:"true"`
	Now        func() time.Time               `optional:"true"`
}

// NewService wires the inventory coordinator.
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
		repo:            p.Repository,
		orders:          p.Orders,
		publisher:       p.Publisher,
		metrics:         p.Metrics,
		logger:          logger,
		defaultLowStock: int64(p.Config.Inventory.DefaultLowStockThreshold),
		now:             now,
	}
}

// View is an inventory record with its derived figures.
type View struct {
	Record         entity.InventoryRecord `json:"record"`
	TransitQty     int64                  `json:"goods_in_transit"`
	FinalInventory int64                  `json:"final_inventory"`
	Level          Level                  `json:"level"`
}

// RegisterInput starts tracking a product.
type RegisterInput struct {
	ProductID         int64
	StockQuantity     int64
	MinStockLevel     int64
	LowStockThreshold int64
}

// Register creates the inventory record of a product.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*entity.InventoryRecord, error) {
	if in.ProductID <= 0 {
		return nil, errorbank.BadRequest("product id is required")
	}
	if in.StockQuantity < 0 || in.MinStockLevel < 0 || in.LowStockThreshold < 0 {
		return nil, errorbank.BadRequest("quantities cannot be negative")
	}
	if in.LowStockThreshold == 0 {
		in.LowStockThreshold = s.defaultLowStock
	}
	record := &entity.InventoryRecord{
		ProductID:         in.ProductID,
		StockQuantity:     in.StockQuantity,
		MinStockLevel:     in.MinStockLevel,
		LowStockThreshold: in.LowStockThreshold,
		UpdatedAt:         s.now().UTC(),
	}
	err := database.RunInTx(ctx, s.repo.Writer(), func(ctx context.Context) error {
		if _, err := s.repo.GetByProduct(ctx, in.ProductID); err == nil {
			return errorbank.Conflict("product already tracked", errorbank.WithDetail("product_id", in.ProductID))
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		return s.repo.Create(ctx, record)
	})
	if err != nil {
		return nil, wrapInternal("failed to register inventory", err)
	}
	return record, nil
}

// Get returns the record of a product with transit and final inventory derived.
func (s *Service) Get(ctx context.Context, productID int64) (View, error) {
	ctx, span := serviceTracer.Start(ctx, "InventoryService.Get", trace.WithAttributes(attribute.Int64("product.id", productID)))
	defer span.End()

	record, err := s.repo.GetByProduct(ctx, productID)
	if err != nil {
		return View{}, wrapInternal("failed to load inventory", err)
	}
	transit, err := s.TransitQuantity(ctx, productID)
	if err != nil {
		return View{}, err
	}
	return s.view(record, transit), nil
}

// TransitQuantity sums item quantities of orders approved but not yet delivered.
func (s *Service) TransitQuantity(ctx context.Context, productID int64) (int64, error) {
	quantities, err := s.orders.ReservedQuantities(ctx, productID, entity.TransitStatuses())
	if err != nil {
		return 0, errorbank.Internal("failed to derive goods in transit", errorbank.WithCause(err))
	}
	var total int64
	for _, q := range quantities {
		total += q
	}
	return total, nil
}

// Adjustments returns the change log of a product, newest first.
func (s *Service) Adjustments(ctx context.Context, productID int64, limit int) ([]entity.InventoryAdjustment, error) {
	adjs, err := s.repo.Adjustments(ctx, productID, limit)
	if err != nil {
		return nil, errorbank.Internal("failed to load adjustments", errorbank.WithCause(err))
	}
	return adjs, nil
}

// AdjustStock adds delta to the stock quantity. A result below zero is rejected.
func (s *Service) AdjustStock(ctx context.Context, productID, delta int64, reason string, relatedOrderID *int64) (View, error) {
	return s.adjustStock(ctx, productID, delta, reason, relatedOrderID, true)
}

// adjustStock optionally skips threshold checks for reservation moves, where
// stock and transit shift by the same amount and final inventory is unchanged.
func (s *Service) adjustStock(ctx context.Context, productID, delta int64, reason string, relatedOrderID *int64, alert bool) (View, error) {
	ctx, span := serviceTracer.Start(ctx, "InventoryService.AdjustStock", trace.WithAttributes(
		attribute.Int64("product.id", productID),
		attribute.Int64("delta", delta),
	))
	defer span.End()

	if reason == "" {
		return View{}, errorbank.BadRequest("reason is required")
	}
	if delta == 0 {
		return s.Get(ctx, productID)
	}

	var view View
	err := database.RunInTx(ctx, s.repo.Writer(), func(ctx context.Context) error {
		var err error
		view, err = s.mutate(ctx, productID, alert, func(r *entity.InventoryRecord) (*entity.InventoryAdjustment, error) {
			next := r.StockQuantity + delta
			if next < 0 {
				return nil, errorbank.BadRequest("stock quantity cannot go below zero", errorbank.WithDetails(map[string]any{
					"product_id": productID,
					"stock":      r.StockQuantity,
					"delta":      delta,
				}))
			}
			r.StockQuantity = next
			return &entity.InventoryAdjustment{
				Kind:           entity.AdjustmentStock,
				Delta:          delta,
				ResultingValue: next,
				Reason:         reason,
				RelatedOrderID: relatedOrderID,
			}, nil
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "adjust failed")
		return View{}, wrapInternal("failed to adjust stock", err)
	}
	return view, nil
}

// RecordWaste replaces the waste figure of a product. It is not cumulative.
func (s *Service) RecordWaste(ctx context.Context, productID, waste int64, reason string) (View, error) {
	ctx, span := serviceTracer.Start(ctx, "InventoryService.RecordWaste", trace.WithAttributes(
		attribute.Int64("product.id", productID),
		attribute.Int64("waste", waste),
	))
	defer span.End()

	if waste < 0 {
		return View{}, errorbank.BadRequest("waste amount cannot be negative")
	}
	if reason == "" {
		return View{}, errorbank.BadRequest("reason is required")
	}

	var view View
	err := database.RunInTx(ctx, s.repo.Writer(), func(ctx context.Context) error {
		var err error
		view, err = s.mutate(ctx, productID, true, func(r *entity.InventoryRecord) (*entity.InventoryAdjustment, error) {
			delta := waste - r.WasteAmount
			r.WasteAmount = waste
			r.WasteReason = reason
			return &entity.InventoryAdjustment{
				Kind:           entity.AdjustmentWaste,
				Delta:          delta,
				ResultingValue: waste,
				Reason:         reason,
			}, nil
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "waste failed")
		return View{}, wrapInternal("failed to record waste", err)
	}
	return view, nil
}

// mutate applies fn to the product's record under a version check and logs the
// returned adjustment. Threshold crossings are announced after commit.
func (s *Service) mutate(ctx context.Context, productID int64, alert bool, fn func(*entity.InventoryRecord) (*entity.InventoryAdjustment, error)) (View, error) {
	transit, err := s.TransitQuantity(ctx, productID)
	if err != nil {
		return View{}, err
	}

	for attempt := 1; attempt <= maxSwapAttempts; attempt++ {
		record, err := s.repo.GetByProduct(ctx, productID)
		if err != nil {
			return View{}, err
		}
		before := entity.FinalInventory(record.StockQuantity, transit, record.WasteAmount)

		adj, err := fn(record)
		if err != nil {
			return View{}, err
		}
		now := s.now().UTC()
		record.UpdatedAt = now

		ok, err := s.repo.CompareAndSwap(ctx, record)
		if err != nil {
			return View{}, err
		}
		if !ok {
			continue
		}

		adj.ProductID = productID
		adj.CreatedAt = now
		if err := s.repo.AppendAdjustment(ctx, adj); err != nil {
			return View{}, err
		}

		view := s.view(record, transit)
		if alert {
			s.checkThreshold(ctx, record, transit, before, view.FinalInventory)
		}
		return view, nil
	}
	return View{}, errorbank.Conflict("inventory is being modified concurrently", errorbank.WithDetail("product_id", productID))
}

func (s *Service) view(record *entity.InventoryRecord, transit int64) View {
	final := entity.FinalInventory(record.StockQuantity, transit, record.WasteAmount)
	return View{
		Record:         *record,
		TransitQty:     transit,
		FinalInventory: final,
		Level:          LevelFor(final, record),
	}
}

func wrapInternal(message string, err error) error {
	var appErr *errorbank.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, repo.ErrNotFound) {
		return errorbank.NotFound("product is not tracked")
	}
	return errorbank.Internal(message, errorbank.WithCause(err))
}

func orderReason(verb string, order *entity.Order, status entity.Status) string {
	return fmt.Sprintf("%s by order %s (%s)", verb, order.CustomerOrderID, status)
}
