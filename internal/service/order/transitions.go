package order

import (
	"fmt"
	"slices"

	"github.com/Additional-Code/fulfillment/internal/entity"
	"github.com/Additional-Code/fulfillment/pkg/errorbank"
)

// Channel names the engine an edge must be taken through.
type Channel string

const (
	// ChannelAny edges can be requested by any caller holding a permitted department.
	ChannelAny Channel = ""
	// ChannelFinance edges carry wallet reconciliation.
	ChannelFinance Channel = "finance"
	// ChannelVerification edges require a matched delivery code.
	ChannelVerification Channel = "verification"
)

type edge struct {
	from entity.Status
	to   entity.Status
}

type rule struct {
	departments []entity.Department
	channel     Channel
}

var (
	customerOrAdmin = []entity.Department{entity.DepartmentCustomer, entity.DepartmentAdmin}
	finance         = []entity.Department{entity.DepartmentFinance, entity.DepartmentAdmin}
	warehouse       = []entity.Department{entity.DepartmentWarehouse}
	logistics       = []entity.Department{entity.DepartmentLogistics}
)

var transitions = buildTransitions()

func buildTransitions() map[edge]rule {
	t := map[edge]rule{
		{entity.StatusPendingPayment, entity.StatusFinancePending}:          {departments: customerOrAdmin},
		{entity.StatusPendingPayment, entity.StatusPaymentGracePeriod}:      {departments: customerOrAdmin},
		{entity.StatusPaymentGracePeriod, entity.StatusFinancePending}:      {departments: customerOrAdmin},
		{entity.StatusFinancePending, entity.StatusFinanceApproved}:         {departments: finance, channel: ChannelFinance},
		{entity.StatusFinancePending, entity.StatusFinanceRejected}:         {departments: finance},
		{entity.StatusFinanceApproved, entity.StatusWarehousePending}:       {departments: []entity.Department{entity.DepartmentFinance, entity.DepartmentWarehouse}},
		{entity.StatusWarehousePending, entity.StatusWarehouseProcessing}:   {departments: warehouse},
		{entity.StatusWarehouseProcessing, entity.StatusWarehouseApproved}:  {departments: warehouse},
		{entity.StatusWarehouseProcessing, entity.StatusWarehouseRejected}:  {departments: warehouse},
		{entity.StatusWarehouseApproved, entity.StatusLogisticsAssigned}:    {departments: logistics},
		{entity.StatusLogisticsAssigned, entity.StatusLogisticsDispatched}:  {departments: logistics},
		{entity.StatusLogisticsDispatched, entity.StatusDelivered}:          {departments: logistics, channel: ChannelVerification},
		{entity.StatusLogisticsDispatched, entity.StatusLogisticsFailed}:    {departments: logistics},
		{entity.StatusLogisticsFailed, entity.StatusLogisticsAssigned}:      {departments: logistics},
	}

	for _, from := range entity.Statuses {
		if from.IsTerminal() {
			continue
		}
		cancel := []entity.Department{entity.DepartmentAdmin}
		if from.IsPrePayment() {
			cancel = customerOrAdmin
		}
		t[edge{from, entity.StatusCancelled}] = rule{departments: cancel}
		t[edge{from, entity.StatusDeleted}] = rule{departments: []entity.Department{entity.DepartmentAdmin}}
		t[edge{from, entity.StatusExpired}] = rule{departments: []entity.Department{entity.DepartmentSystem, entity.DepartmentAdmin}}
	}
	return t
}

// Successors lists the statuses reachable from s in one step, in workflow order.
func Successors(s entity.Status) []entity.Status {
	var out []entity.Status
	for _, to := range entity.Statuses {
		if _, ok := transitions[edge{s, to}]; ok {
			out = append(out, to)
		}
	}
	return out
}

// CheckTransition validates that dept may move an order from one status to another
// through channel. Violations are illegal transitions.
func CheckTransition(from, to entity.Status, dept entity.Department, channel Channel) error {
	details := errorbank.WithDetails(map[string]any{
		"from":       string(from),
		"to":         string(to),
		"department": string(dept),
	})
	if from.IsTerminal() {
		return errorbank.IllegalTransition(fmt.Sprintf("order is %s and can no longer change", from), details)
	}
	r, ok := transitions[edge{from, to}]
	if !ok {
		return errorbank.IllegalTransition(fmt.Sprintf("%s cannot move to %s", from, to), details)
	}
	if !slices.Contains(r.departments, dept) {
		return errorbank.IllegalTransition(fmt.Sprintf("%s may not move an order from %s to %s", dept, from, to), details)
	}
	if r.channel != ChannelAny && r.channel != channel {
		return errorbank.IllegalTransition(fmt.Sprintf("moving to %s requires %s", to, r.channel), details)
	}
	return nil
}
