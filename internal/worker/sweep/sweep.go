package sweep

import (
	"context"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/fulfillment/internal/config"
	inventorysvc "github.com/Additional-Code/fulfillment/internal/service/inventory"
	ordersvc "github.com/Additional-Code/fulfillment/internal/service/order"
)

// Expirer expires orders whose payment window elapsed.
type Expirer interface {
	ExpireStale(ctx context.Context, limit int) (int, error)
}

// Reminder re-announces products still below their thresholds.
type Reminder interface {
	RemindLowStock(ctx context.Context, batchSize int) (int, error)
}

// Result summarises one sweep.
type Result struct {
	Expired   int
	Reminders int
}

// Params collects sweeper dependencies via Fx.
type Params struct {
	fx.In

	Orders    *ordersvc.Service
	Inventory *inventorysvc.Service
	Config    config.Config
	Logger    *zap.Logger
}

// Sweeper runs the periodic housekeeping of the workflow.
type Sweeper struct {
	orders    Expirer
	inventory Reminder
	interval  time.Duration
	batchSize int
	enabled   bool
	logger    *zap.Logger
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// Module runs the sweeper alongside the worker engine.
var Module = fx.Options(
	fx.Provide(NewSweeper),
	fx.Invoke(func(lc fx.Lifecycle, s *Sweeper) {
		lc.Append(fx.Hook{
			OnStart: s.start,
			OnStop:  s.stop,
		})
	}),
)

// NewSweeper builds a Sweeper from the Fx graph.
func NewSweeper(p Params) *Sweeper {
	return New(p.Orders, p.Inventory, p.Config, p.Logger)
}

// New constructs a Sweeper.
func New(orders Expirer, inventory Reminder, cfg config.Config, logger *zap.Logger) *Sweeper {
	interval := cfg.Workflow.SweepInterval
	if interval <= 0 {
		interval = 2 * time.Hour
	}
	batch := cfg.Workflow.SweepBatchSize
	if batch <= 0 {
		batch = 200
	}
	return &Sweeper{
		orders:    orders,
		inventory: inventory,
		interval:  interval,
		batchSize: batch,
		enabled:   cfg.Workflow.SweepEnabled,
		logger:    logger,
	}
}

// RunOnce expires stale orders and sends low stock reminders. Both steps run
// even if the first fails; the first error is returned.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	var (
		res      Result
		firstErr error
	)

	expired, err := s.orders.ExpireStale(ctx, s.batchSize)
	res.Expired = expired
	if err != nil {
		s.logger.Error("expire stale orders failed", zap.Error(err))
		firstErr = err
	}

	reminders, err := s.inventory.RemindLowStock(ctx, s.batchSize)
	res.Reminders = reminders
	if err != nil {
		s.logger.Error("low stock reminder failed", zap.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}

	s.logger.Debug("sweep finished", zap.Int("expired", res.Expired), zap.Int("reminders", res.Reminders))
	return res, firstErr
}

func (s *Sweeper) start(context.Context) error {
	if !s.enabled {
		s.logger.Info("workflow sweep disabled")

		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(runCtx)
	}()

	s.logger.Info("workflow sweep started", zap.Duration("interval", s.interval), zap.Int("batch_size", s.batchSize))

	return nil
}

func (s *Sweeper) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		_, _ = s.RunOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		s.logger.Info("workflow sweep stopped")

		return nil
	}
}
