package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const workflowMeterName = "github.com/Additional-Code/fulfillment/workflow"

// WorkflowMetrics records fulfillment counters through the global meter provider.
// A nil receiver is valid and records nothing.
type WorkflowMetrics struct {
	transitions   metric.Int64Counter
	decisions     metric.Int64Counter
	verifications metric.Int64Counter
	alerts        metric.Int64Counter
}

// NewWorkflowMetrics registers the workflow instruments.
func NewWorkflowMetrics() (*WorkflowMetrics, error) {
	meter := otel.Meter(workflowMeterName)

	transitions, err := meter.Int64Counter("fulfillment.order.transitions",
		metric.WithDescription("Order status transitions committed"))
	if err != nil {
		return nil, err
	}
	decisions, err := meter.Int64Counter("fulfillment.finance.decisions",
		metric.WithDescription("Finance reconciliation outcomes"))
	if err != nil {
		return nil, err
	}
	verifications, err := meter.Int64Counter("fulfillment.verification.attempts",
		metric.WithDescription("Delivery code verification attempts"))
	if err != nil {
		return nil, err
	}
	alerts, err := meter.Int64Counter("fulfillment.inventory.alerts",
		metric.WithDescription("Inventory threshold crossings"))
	if err != nil {
		return nil, err
	}

	return &WorkflowMetrics{
		transitions:   transitions,
		decisions:     decisions,
		verifications: verifications,
		alerts:        alerts,
	}, nil
}

// Transition counts a committed status change.
func (m *WorkflowMetrics) Transition(ctx context.Context, from, to, department string) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
		attribute.String("department", department),
	))
}

// Decision counts a finance outcome such as approved, refused or override.
func (m *WorkflowMetrics) Decision(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Verification counts a verify call by result.
func (m *WorkflowMetrics) Verification(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.verifications.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// Alert counts an inventory threshold crossing.
func (m *WorkflowMetrics) Alert(ctx context.Context, level string) {
	if m == nil {
		return
	}
	m.alerts.Add(ctx, 1, metric.WithAttributes(attribute.String("level", level)))
}
