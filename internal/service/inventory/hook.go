package inventory

import (
	"context"

	"github.com/Additional-Code/fulfillment/internal/entity"
	ordersvc "github.com/Additional-Code/fulfillment/internal/service/order"
)

var _ ordersvc.TransitionHook = (*Service)(nil)

// OnTransition keeps stock in lockstep with the order's stage. Entering the
// transit set moves item quantities out of stock, leaving it for a terminal
// other than delivered puts them back, and delivery drops them from transit.
func (s *Service) OnTransition(ctx context.Context, ev ordersvc.TransitionEvent) error {
	wasTransit, isTransit := ev.From.InTransit(), ev.To.InTransit()
	order := ev.Order
	orderID := order.ID

	switch {
	case !wasTransit && isTransit:
		for _, item := range order.Items {
			if _, err := s.adjustStock(ctx, item.ProductID, -item.Quantity, orderReason("reserved", order, ev.To), &orderID, false); err != nil {
				return err
			}
		}
	case wasTransit && ev.To == entity.StatusDelivered:
		for _, item := range order.Items {
			if err := s.delivered(ctx, item); err != nil {
				return err
			}
		}
	case wasTransit && !isTransit:
		for _, item := range order.Items {
			if _, err := s.adjustStock(ctx, item.ProductID, item.Quantity, orderReason("released", order, ev.To), &orderID, false); err != nil {
				return err
			}
		}
	}
	return nil
}

// delivered evaluates thresholds after an item leaves transit. Stock itself is
// unchanged; the goods were taken out of it on reservation.
func (s *Service) delivered(ctx context.Context, item *entity.OrderItem) error {
	record, err := s.repo.GetByProduct(ctx, item.ProductID)
	if err != nil {
		return wrapInternal("failed to load inventory", err)
	}
	transit, err := s.TransitQuantity(ctx, item.ProductID)
	if err != nil {
		return err
	}
	before := entity.FinalInventory(record.StockQuantity, transit+item.Quantity, record.WasteAmount)
	after := entity.FinalInventory(record.StockQuantity, transit, record.WasteAmount)
	s.checkThreshold(ctx, record, transit, before, after)
	return nil
}
