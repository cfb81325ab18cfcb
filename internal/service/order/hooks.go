package order

import (
	"context"

	"github.com/Additional-Code/fulfillment/internal/entity"
)

// TransitionEvent describes a status change inside its database transaction.
type TransitionEvent struct {
	Order      *entity.Order
	From       entity.Status
	To         entity.Status
	Department entity.Department
	Actor      string
}

// TransitionHook reacts to status changes before they commit. A returned
// error aborts the transition.
type TransitionHook interface {
	OnTransition(ctx context.Context, ev TransitionEvent) error
}

// EventTransitioned is published after a status change commits.
const EventTransitioned = "order.transitioned"

// TransitionedEvent is the bus payload for EventTransitioned.
type TransitionedEvent struct {
	OrderID         int64             `json:"order_id"`
	CustomerOrderID string            `json:"customer_order_id"`
	From            entity.Status     `json:"from,omitempty"`
	To              entity.Status     `json:"to"`
	Department      entity.Department `json:"department"`
	Actor           string            `json:"actor,omitempty"`
	ManualOverride  bool              `json:"manual_override,omitempty"`
}
