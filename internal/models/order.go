package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// OrderStatus represents the state of a work order in its lifecycle
type OrderStatus string

const (
	StatusIntake           OrderStatus = "intake"
	StatusDiagnosing       OrderStatus = "diagnosing"
	StatusAwaitingApproval OrderStatus = "awaiting_approval"
	StatusWaitingParts     OrderStatus = "waiting_parts"
	StatusInProgress       OrderStatus = "in_progress"
	StatusReadyForPickup   OrderStatus = "ready_for_pickup"
	StatusPickedUp         OrderStatus = "picked_up"
	StatusCompleted        OrderStatus = "completed"
	StatusCancelled        OrderStatus = "cancelled"
)

// OrderPriority represents the urgency of a work order
type OrderPriority string

const (
	PriorityNormal OrderPriority = "normal"
	PriorityHigh   OrderPriority = "high"
	PriorityUrgent OrderPriority = "urgent"
)

// ItemType discriminates order line items
type ItemType string

const (
	ItemProduct ItemType = "product"
	ItemService ItemType = "service"
)

// statusTransitions is the allowed-next table of the status state machine.
// Reopening a terminal order is handled separately via CanReopen.
var statusTransitions = map[OrderStatus][]OrderStatus{
	StatusIntake:           {StatusDiagnosing, StatusCancelled},
	StatusDiagnosing:       {StatusAwaitingApproval, StatusWaitingParts, StatusInProgress, StatusCancelled},
	StatusAwaitingApproval: {StatusInProgress, StatusCancelled},
	StatusWaitingParts:     {StatusInProgress, StatusCancelled},
	StatusInProgress:       {StatusReadyForPickup, StatusWaitingParts, StatusCancelled},
	StatusReadyForPickup:   {StatusPickedUp, StatusInProgress},
	StatusPickedUp:         {},
	StatusCompleted:        {},
	StatusCancelled:        {},
}

// statusProgress maps each status to the derived progress percentage
var statusProgress = map[OrderStatus]int{
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

// IsTerminal reports whether the status ends the normal lifecycle
func (s OrderStatus) IsTerminal() bool {
	return s == StatusPickedUp || s == StatusCompleted || s == StatusCancelled
}

// IsTerminalPaid reports whether reaching the status rolls the order's
// totals into the customer projection
func (s OrderStatus) IsTerminalPaid() bool {
	return s == StatusPickedUp || s == StatusCompleted
}

// IsValidStatus reports whether s is a known order status
func IsValidStatus(s OrderStatus) bool {
	_, ok := statusTransitions[s]
	return ok
}

// Progress returns the derived progress percentage for the status
func (s OrderStatus) Progress() int {
	return statusProgress[s]
}

// OrderItem is a typed line item owned by its order. ProductRef is set for
// product items and links the line to the inventory ledger adjustment.
type OrderItem struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OrderID  uuid.UUID `json:"orderId" gorm:"type:uuid;not null;index"`
	ItemType ItemType  `json:"itemType" gorm:"type:varchar(20);not null"`

	RefID     *uuid.UUID      `json:"refId" gorm:"type:uuid"`
	Name      string          `json:"name" gorm:"type:varchar(255);not null"`
	UnitPrice decimal.Decimal `json:"unitPrice" gorm:"type:numeric(12,2);not null"`
	Quantity  int             `json:"quantity" gorm:"not null"`

	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name
func (OrderItem) TableName() string {
	return "order_items"
}

// Total returns unit price times quantity
func (i *OrderItem) Total() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is the work-order aggregate: device, problem, line items, pricing
// snapshot and the status state machine. It exclusively owns its items and
// pricing; stock lives in the inventory ledger and the two only meet inside
// the order service's unit of work.
type Order struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID    uuid.UUID `json:"tenantId" gorm:"type:uuid;not null;index:idx_orders_tenant;uniqueIndex:idx_orders_tenant_number"`
	OrderNumber string    `json:"orderNumber" gorm:"type:varchar(30);not null;uniqueIndex:idx_orders_tenant_number"`
	CustomerID  uuid.UUID `json:"customerId" gorm:"type:uuid;not null;index"`

	DeviceType     string `json:"deviceType" gorm:"type:varchar(100);not null"`
	DeviceBrand    string `json:"deviceBrand" gorm:"type:varchar(100)"`
	DeviceModel    string `json:"deviceModel" gorm:"type:varchar(100)"`
	DeviceSerial   string `json:"deviceSerial" gorm:"type:varchar(100)"`
	InitialProblem string `json:"initialProblem" gorm:"type:text"`

	Items []OrderItem `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	LaborCost    decimal.Decimal `json:"laborCost" gorm:"type:numeric(12,2);not null;default:0"`
	Subtotal     decimal.Decimal `json:"subtotal" gorm:"type:numeric(12,2);not null;default:0"`
	TaxRate      decimal.Decimal `json:"taxRate" gorm:"type:numeric(6,4);not null;default:0"`
	CostEstimate decimal.Decimal `json:"costEstimate" gorm:"type:numeric(12,2);not null;default:0"`
	AmountPaid   decimal.Decimal `json:"amountPaid" gorm:"type:numeric(12,2);not null;default:0"`
	BalanceDue   decimal.Decimal `json:"balanceDue" gorm:"type:numeric(12,2);not null;default:0"`

	Status             OrderStatus    `json:"status" gorm:"type:varchar(30);not null;default:'intake';index"`
	StatusNote         string         `json:"statusNote" gorm:"type:text"`
	StatusMetadata     datatypes.JSON `json:"statusMetadata" gorm:"type:jsonb"`
	Priority           OrderPriority  `json:"priority" gorm:"type:varchar(20);not null;default:'normal'"`
	ProgressPercentage int            `json:"progressPercentage" gorm:"not null;default:0"`
	AssignedTo         string         `json:"assignedTo" gorm:"type:varchar(255)"`

	CanReopen bool       `json:"canReopen" gorm:"not null;default:false"`
	Deleted   bool       `json:"deleted" gorm:"not null;default:false;index"`
	DeletedAt *time.Time `json:"deletedAt"`
	DeletedBy string     `json:"deletedBy" gorm:"type:varchar(255)"`

	// Version implements optimistic locking on order mutations
	Version int64 `json:"version" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name
func (Order) TableName() string {
	return "orders"
}

// AllowedNext returns the statuses reachable from the order's current
// status, including the one-shot reopen when CanReopen is set.
func (o *Order) AllowedNext() []OrderStatus {
	next := statusTransitions[o.Status]
	if o.CanReopen && o.Status.IsTerminalPaid() {
		out := make([]OrderStatus, 0, len(next)+1)
		out = append(out, next...)
		return append(out, StatusInProgress)
	}
	return next
}

// CanTransitionTo reports whether the state machine permits the move
func (o *Order) CanTransitionTo(next OrderStatus) bool {
	for _, s := range o.AllowedNext() {
		if s == next {
			return true
		}
	}
	return false
}

// Recalculate recomputes the derived pricing fields from the items and
// payments. It is pure and idempotent: calling it twice with no intervening
// change yields identical fields.
//
//	subtotal     = sum(item.unit_price * item.quantity)
//	tax          = subtotal * tax_rate
//	cost_estimate = subtotal + tax + labor_cost
//	balance_due  = max(0, cost_estimate - amount_paid)
func (o *Order) Recalculate() {
	subtotal := decimal.Zero
	for i := range o.Items {
		subtotal = subtotal.Add(o.Items[i].Total())
	}
	o.Subtotal = subtotal.Round(2)

	tax := o.Subtotal.Mul(o.TaxRate).Round(2)
	o.CostEstimate = o.Subtotal.Add(tax).Add(o.LaborCost).Round(2)

	balance := o.CostEstimate.Sub(o.AmountPaid)
	if balance.IsNegative() {
		balance = decimal.Zero
	}
	o.BalanceDue = balance.Round(2)
}
