package entity

import "strings"

// Status is the canonical workflow state of an order.
type Status string

const (
	StatusPendingPayment      Status = "pending_payment"
	StatusPaymentGracePeriod  Status = "payment_grace_period"
	StatusFinancePending      Status = "finance_pending"
	StatusFinanceApproved     Status = "finance_approved"
	StatusFinanceRejected     Status = "finance_rejected"
	StatusWarehousePending    Status = "warehouse_pending"
	StatusWarehouseProcessing Status = "warehouse_processing"
	StatusWarehouseApproved   Status = "warehouse_approved"
	StatusWarehouseRejected   Status = "warehouse_rejected"
	StatusLogisticsAssigned   Status = "logistics_assigned"
	StatusLogisticsDispatched Status = "logistics_dispatched"
	StatusLogisticsFailed     Status = "logistics_failed"
	StatusDelivered           Status = "delivered"
	StatusCancelled           Status = "cancelled"
	StatusDeleted             Status = "deleted"
	StatusExpired             Status = "expired"
)

// Statuses lists every status in workflow order.
var Statuses = []Status{
	StatusPendingPayment,
	StatusPaymentGracePeriod,
	StatusFinancePending,
	StatusFinanceApproved,
	StatusFinanceRejected,
	StatusWarehousePending,
	StatusWarehouseProcessing,
	StatusWarehouseApproved,
	StatusWarehouseRejected,
	StatusLogisticsAssigned,
	StatusLogisticsDispatched,
	StatusLogisticsFailed,
	StatusDelivered,
	StatusCancelled,
	StatusDeleted,
	StatusExpired,
}

// legacyStatuses maps names used by older back-office screens to canonical ones.
var legacyStatuses = map[string]Status{
	"payment_uploaded":     StatusFinancePending,
	"financial_reviewing":  StatusFinancePending,
	"financial_approved":   StatusFinanceApproved,
	"financial_rejected":   StatusFinanceRejected,
	"warehouse_notified":   StatusWarehousePending,
	"logistics_processing": StatusLogisticsAssigned,
	"logistics_delivered":  StatusDelivered,
	"completed":            StatusDelivered,
}

// ParseStatus resolves a canonical or legacy status name.
func ParseStatus(raw string) (Status, bool) {
	name := strings.ToLower(strings.TrimSpace(raw))
	for _, s := range Statuses {
		if string(s) == name {
			return s, true
		}
	}
	if s, ok := legacyStatuses[name]; ok {
		return s, true
	}
	return "", false
}

// IsTerminal reports whether no business transition may leave the status.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusDeleted, StatusExpired,
		StatusFinanceRejected, StatusWarehouseRejected:
		return true
	}
	return false
}

// IsPrePayment reports whether the order is still waiting for the customer to pay.
func (s Status) IsPrePayment() bool {
	return s == StatusPendingPayment || s == StatusPaymentGracePeriod
}

// InTransit reports whether goods of an order in this status count as in transit:
// approved by finance but not yet delivered.
func (s Status) InTransit() bool {
	switch s {
	case StatusFinanceApproved, StatusWarehousePending, StatusWarehouseProcessing,
		StatusWarehouseApproved, StatusLogisticsAssigned, StatusLogisticsDispatched,
		StatusLogisticsFailed:
		return true
	}
	return false
}

// TransitStatuses returns the statuses for which InTransit is true.
func TransitStatuses() []Status {
	out := make([]Status, 0, 8)
	for _, s := range Statuses {
		if s.InTransit() {
			out = append(out, s)
		}
	}
	return out
}

// Department identifies the business unit acting on an order.
type Department string

const (
	DepartmentCustomer  Department = "customer"
	DepartmentFinance   Department = "finance"
	DepartmentWarehouse Department = "warehouse"
	DepartmentLogistics Department = "logistics"
	DepartmentAdmin     Department = "admin"
	DepartmentSystem    Department = "system"
)

// ParseDepartment validates a department name.
func ParseDepartment(raw string) (Department, bool) {
	d := Department(strings.ToLower(strings.TrimSpace(raw)))
	switch d {
	case DepartmentCustomer, DepartmentFinance, DepartmentWarehouse,
		DepartmentLogistics, DepartmentAdmin, DepartmentSystem:
		return d, true
	}
	return "", false
}
