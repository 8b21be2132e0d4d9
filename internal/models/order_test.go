package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCanTransitionTo_AllowedPaths(t *testing.T) {
	allowed := []struct {
		from OrderStatus
		to   OrderStatus
	}{
		{StatusIntake, StatusDiagnosing},
		{StatusIntake, StatusCancelled},
		{StatusDiagnosing, StatusAwaitingApproval},
		{StatusDiagnosing, StatusWaitingParts},
		{StatusDiagnosing, StatusInProgress},
		{StatusDiagnosing, StatusCancelled},
		{StatusAwaitingApproval, StatusInProgress},
		{StatusAwaitingApproval, StatusCancelled},
		{StatusWaitingParts, StatusInProgress},
		{StatusWaitingParts, StatusCancelled},
		{StatusInProgress, StatusReadyForPickup},
		{StatusInProgress, StatusWaitingParts},
		{StatusInProgress, StatusCancelled},
		{StatusReadyForPickup, StatusPickedUp},
		{StatusReadyForPickup, StatusInProgress},
	}

	for _, tc := range allowed {
		o := &Order{Status: tc.from}
		if !o.CanTransitionTo(tc.to) {
			t.Errorf("expected transition %s -> %s to be allowed", tc.from, tc.to)
		}
	}
}

func TestCanTransitionTo_RejectedPaths(t *testing.T) {
	rejected := []struct {
		from OrderStatus
		to   OrderStatus
	}{
		{StatusIntake, StatusInProgress},
		{StatusIntake, StatusPickedUp},
		{StatusDiagnosing, StatusReadyForPickup},
		{StatusAwaitingApproval, StatusWaitingParts},
		{StatusReadyForPickup, StatusCancelled},
		{StatusPickedUp, StatusInProgress},
		{StatusPickedUp, StatusCancelled},
		{StatusCompleted, StatusInProgress},
		{StatusCancelled, StatusIntake},
		{StatusCancelled, StatusInProgress},
	}

	for _, tc := range rejected {
		o := &Order{Status: tc.from}
		if o.CanTransitionTo(tc.to) {
			t.Errorf("expected transition %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}

func TestCanTransitionTo_ReopenGrant(t *testing.T) {
	o := &Order{Status: StatusPickedUp, CanReopen: true}
	if !o.CanTransitionTo(StatusInProgress) {
		t.Error("expected picked_up order with reopen grant to allow in_progress")
	}
	if o.CanTransitionTo(StatusCancelled) {
		t.Error("reopen grant must only open in_progress, not other statuses")
	}

	// Cancelled is terminal with no reopen path at all
	o = &Order{Status: StatusCancelled, CanReopen: true}
	if o.CanTransitionTo(StatusInProgress) {
		t.Error("cancelled orders must not be reopenable")
	}
}

func TestAllowedNext_TerminalStates(t *testing.T) {
	for _, s := range []OrderStatus{StatusPickedUp, StatusCompleted, StatusCancelled} {
		o := &Order{Status: s}
		if got := o.AllowedNext(); len(got) != 0 {
			t.Errorf("expected no transitions from %s without reopen grant, got %v", s, got)
		}
	}

	o := &Order{Status: StatusCompleted, CanReopen: true}
	next := o.AllowedNext()
	if len(next) != 1 || next[0] != StatusInProgress {
		t.Errorf("expected reopen grant to allow exactly in_progress, got %v", next)
	}
}

func TestStatusProgress(t *testing.T) {
	expected := map[OrderStatus]int{
		StatusIntake:           10,
		StatusDiagnosing:       30,
		StatusAwaitingApproval: 40,
		StatusWaitingParts:     55,
		StatusInProgress:       75,
		StatusReadyForPickup:   90,
		StatusPickedUp:         95,
		StatusCompleted:        100,
		StatusCancelled:        0,
	}
	for status, pct := range expected {
		if got := status.Progress(); got != pct {
			t.Errorf("expected %s progress %d, got %d", status, pct, got)
		}
	}
}

func TestIsValidStatus(t *testing.T) {
	if !IsValidStatus(StatusWaitingParts) {
		t.Error("expected waiting_parts to be a valid status")
	}
	if IsValidStatus(OrderStatus("shipped")) {
		t.Error("expected unknown status to be invalid")
	}
}

func TestRecalculate(t *testing.T) {
	o := &Order{
		TaxRate:   decimal.RequireFromString("0.115"),
		LaborCost: decimal.Zero,
		Items: []OrderItem{
			{UnitPrice: decimal.NewFromInt(50), Quantity: 2},
		},
	}
	o.Recalculate()

	if !o.Subtotal.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected subtotal 100, got %s", o.Subtotal)
	}
	if !o.CostEstimate.Equal(decimal.RequireFromString("111.50")) {
		t.Errorf("expected cost estimate 111.50, got %s", o.CostEstimate)
	}
	if !o.BalanceDue.Equal(decimal.RequireFromString("111.50")) {
		t.Errorf("expected balance due 111.50, got %s", o.BalanceDue)
	}
}

func TestRecalculate_LaborAndPayments(t *testing.T) {
	o := &Order{
		TaxRate:    decimal.RequireFromString("0.10"),
		LaborCost:  decimal.NewFromInt(30),
		AmountPaid: decimal.NewFromInt(50),
		Items: []OrderItem{
			{UnitPrice: decimal.RequireFromString("19.99"), Quantity: 3},
			{UnitPrice: decimal.NewFromInt(5), Quantity: 1},
		},
	}
	o.Recalculate()

	// subtotal 64.97, tax 6.50, estimate 101.47, balance 51.47
	if !o.Subtotal.Equal(decimal.RequireFromString("64.97")) {
		t.Errorf("expected subtotal 64.97, got %s", o.Subtotal)
	}
	if !o.CostEstimate.Equal(decimal.RequireFromString("101.47")) {
		t.Errorf("expected cost estimate 101.47, got %s", o.CostEstimate)
	}
	if !o.BalanceDue.Equal(decimal.RequireFromString("51.47")) {
		t.Errorf("expected balance due 51.47, got %s", o.BalanceDue)
	}
}

func TestRecalculate_BalanceClampsAtZero(t *testing.T) {
	o := &Order{
		TaxRate:    decimal.Zero,
		AmountPaid: decimal.NewFromInt(500),
		Items: []OrderItem{
			{UnitPrice: decimal.NewFromInt(10), Quantity: 1},
		},
	}
	o.Recalculate()

	if !o.BalanceDue.IsZero() {
		t.Errorf("expected balance due to clamp at 0, got %s", o.BalanceDue)
	}
}

func TestRecalculate_Idempotent(t *testing.T) {
	o := &Order{
		TaxRate:    decimal.RequireFromString("0.115"),
		LaborCost:  decimal.RequireFromString("12.34"),
		AmountPaid: decimal.RequireFromString("20.00"),
		Items: []OrderItem{
			{UnitPrice: decimal.RequireFromString("33.33"), Quantity: 3},
		},
	}
	o.Recalculate()
	subtotal, estimate, balance := o.Subtotal, o.CostEstimate, o.BalanceDue

	o.Recalculate()
	if !o.Subtotal.Equal(subtotal) || !o.CostEstimate.Equal(estimate) || !o.BalanceDue.Equal(balance) {
		t.Errorf("expected recalculate to be idempotent, got %s/%s/%s then %s/%s/%s",
			subtotal, estimate, balance, o.Subtotal, o.CostEstimate, o.BalanceDue)
	}
}

func TestOrderItemTotal(t *testing.T) {
	item := &OrderItem{UnitPrice: decimal.RequireFromString("2.50"), Quantity: 4}
	if !item.Total().Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected item total 10, got %s", item.Total())
	}
}
