package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"workorder-service/internal/idempotency"
	"workorder-service/internal/models"
	"workorder-service/internal/repository"
)

// PaymentPolicy decides how a payment exceeding the balance is handled
type PaymentPolicy string

const (
	// PaymentPolicyReject fails overpayments with a validation error
	PaymentPolicyReject PaymentPolicy = "reject"
	// PaymentPolicyClamp accepts overpayments; balance_due clamps at zero
	PaymentPolicyClamp PaymentPolicy = "clamp"
)

// DevicePayload carries the device descriptors of a work order
type DevicePayload struct {
	Type           string `json:"type"`
	Brand          string `json:"brand"`
	Model          string `json:"model"`
	Serial         string `json:"serial"`
	InitialProblem string `json:"initial_problem"`
}

// OrderItemPayload carries one requested line item
type OrderItemPayload struct {
	ItemType  models.ItemType `json:"item_type"`
	RefID     *uuid.UUID      `json:"ref_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// CreateOrderRequest is the payload for order creation. Either CustomerID
// or Customer must be set; the latter is upserted by phone.
type CreateOrderRequest struct {
	CustomerID *uuid.UUID        `json:"customer_id"`
	Customer   *CustomerPayload  `json:"customer"`
	Device     DevicePayload     `json:"device"`
	Items      []OrderItemPayload `json:"items"`
	LaborCost  decimal.Decimal   `json:"labor_cost"`
	TaxRate    decimal.Decimal   `json:"tax_rate"`
	Priority   models.OrderPriority `json:"priority"`
	AssignedTo string            `json:"assigned_to"`

	IdempotencyKey string `json:"-"`
}

// OrderService orchestrates the work-order lifecycle: each mutating call
// runs as one unit of work covering the order row, any inventory
// adjustment and exactly one event. A failure anywhere rolls every
// partial effect back.
type OrderService struct {
	uow           repository.UnitOfWork
	scope         *TenantScope
	ledger        *InventoryLedger
	events        *EventLog
	idempotency   *idempotency.Store
	paymentPolicy PaymentPolicy
	logger        *logrus.Logger
	now           func() time.Time
}

// NewOrderService creates a new order service
func NewOrderService(
	uow repository.UnitOfWork,
	scope *TenantScope,
	ledger *InventoryLedger,
	events *EventLog,
	idem *idempotency.Store,
	paymentPolicy PaymentPolicy,
	logger *logrus.Logger,
) *OrderService {
	if paymentPolicy == "" {
		paymentPolicy = PaymentPolicyReject
	}
	return &OrderService{
		uow:           uow,
		scope:         scope,
		ledger:        ledger,
		events:        events,
		idempotency:   idem,
		paymentPolicy: paymentPolicy,
		logger:        logger,
		now:           time.Now,
	}
}

func validateItems(items []OrderItemPayload) error {
	for i, item := range items {
		switch item.ItemType {
		case models.ItemProduct:
			if item.RefID == nil {
				return NewValidationError(fmt.Sprintf("items[%d].ref_id", i), "product items must reference a product")
			}
		case models.ItemService:
		default:
			return NewValidationError(fmt.Sprintf("items[%d].item_type", i), fmt.Sprintf("unknown item type %q", item.ItemType))
		}
		if item.Quantity <= 0 {
			return NewValidationError(fmt.Sprintf("items[%d].quantity", i), "quantity must be positive")
		}
		if item.UnitPrice.IsNegative() {
			return NewValidationError(fmt.Sprintf("items[%d].unit_price", i), "unit price must not be negative")
		}
		if strings.TrimSpace(item.Name) == "" {
			return NewValidationError(fmt.Sprintf("items[%d].name", i), "item name is required")
		}
	}
	return nil
}

func (r *CreateOrderRequest) validate() error {
	if strings.TrimSpace(r.Device.Type) == "" {
		return NewValidationError("device.type", "device type is required")
	}
	if r.CustomerID == nil {
		if r.Customer == nil {
			return NewValidationError("customer", "customer_id or customer payload is required")
		}
		if err := r.Customer.validate(); err != nil {
			return err
		}
	}
	if r.TaxRate.IsNegative() {
		return NewValidationError("tax_rate", "tax rate must not be negative")
	}
	if r.LaborCost.IsNegative() {
		return NewValidationError("labor_cost", "labor cost must not be negative")
	}
	return validateItems(r.Items)
}

// CreateOrder creates a work order in intake status, decrements stock for
// product items and appends the create event, all-or-nothing.
func (s *OrderService) CreateOrder(ctx context.Context, tenantID uuid.UUID, req *CreateOrderRequest, actor models.Actor) (*models.Order, error) {
	if err := s.scope.AssertActive(ctx, tenantID); err != nil {
		return nil, err
	}
	if id, ok := s.idempotency.Lookup(ctx, tenantID, req.IdempotencyKey); ok {
		s.logger.WithFields(logrus.Fields{"tenant_id": tenantID, "order_id": id}).
			Info("Replaying idempotent order creation")
		return s.Get(ctx, tenantID, id)
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	var order *models.Order
	var event *models.OrderEvent
	err := s.uow.Do(ctx, func(st *repository.Stores) error {
		customer, err := s.resolveCustomer(ctx, st, tenantID, req)
		if err != nil {
			return err
		}

		number, err := st.Orders.NextOrderNumber(ctx, tenantID, s.now())
		if err != nil {
			return fmt.Errorf("failed to generate order number: %w", err)
		}

		priority := req.Priority
		if priority == "" {
			priority = models.PriorityNormal
		}

		order = &models.Order{
			TenantID:           tenantID,
			OrderNumber:        number,
			CustomerID:         customer.ID,
			DeviceType:         req.Device.Type,
			DeviceBrand:        req.Device.Brand,
			DeviceModel:        req.Device.Model,
			DeviceSerial:       req.Device.Serial,
			InitialProblem:     req.Device.InitialProblem,
			LaborCost:          req.LaborCost,
			TaxRate:            req.TaxRate,
			AmountPaid:         decimal.Zero,
			Status:             models.StatusIntake,
			Priority:           priority,
			ProgressPercentage: models.StatusIntake.Progress(),
			AssignedTo:         req.AssignedTo,
		}
		for _, item := range req.Items {
			order.Items = append(order.Items, models.OrderItem{
				ItemType:  item.ItemType,
				RefID:     item.RefID,
				Name:      item.Name,
				UnitPrice: item.UnitPrice,
				Quantity:  item.Quantity,
			})
		}
		order.Recalculate()

		if err := st.Orders.Create(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		for _, item := range order.Items {
			if item.ItemType != models.ItemProduct {
				continue
			}
			if _, err := s.ledger.Adjust(ctx, st, tenantID, AdjustRequest{
				ProductID:     *item.RefID,
				Delta:         -item.Quantity,
				MovementType:  models.MovementSale,
				ReferenceType: "order",
				ReferenceID:   order.ID.String(),
				Actor:         actor,
			}); err != nil {
				return err
			}
		}

		event = newOrderEvent(order, models.EventCreate, fmt.Sprintf("Order %s created", order.OrderNumber), actor, map[string]interface{}{
			"order_number": order.OrderNumber,
			"customer_id":  customer.ID,
			"item_count":   len(order.Items),
		})
		return s.events.AppendTx(ctx, st, event)
	})
	if err != nil {
		createdID := uuid.Nil
		if order != nil {
			createdID = order.ID
		}
		return nil, s.mapError(err, createdID)
	}

	s.idempotency.Save(ctx, tenantID, req.IdempotencyKey, order.ID)
	s.events.Notify(event)

	s.logger.WithFields(logrus.Fields{
		"tenant_id":    tenantID,
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
	}).Info("Order created")
	return order, nil
}

// resolveCustomer verifies the referenced customer belongs to the tenant,
// or upserts one by phone from the inline payload.
func (s *OrderService) resolveCustomer(ctx context.Context, st *repository.Stores, tenantID uuid.UUID, req *CreateOrderRequest) (*models.Customer, error) {
	if req.CustomerID != nil {
		customer, err := st.Customers.GetByID(ctx, tenantID, *req.CustomerID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("customer %s: %w", *req.CustomerID, ErrNotFound)
		}
		return customer, err
	}

	existing, err := st.Customers.FindByPhone(ctx, tenantID, req.Customer.Phone)
	if err == nil {
		if applyErr := req.Customer.apply(existing); applyErr != nil {
			return nil, applyErr
		}
		if updateErr := st.Customers.Update(ctx, existing); updateErr != nil {
			return nil, updateErr
		}
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	customer := &models.Customer{
		TenantID:    tenantID,
		LoyaltyTier: models.TierBronze,
	}
	if err := req.Customer.apply(customer); err != nil {
		return nil, err
	}
	if err := st.Customers.Create(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}

// AddItem appends a line item, decrements stock for product items,
// recalculates pricing and records one item_added event.
func (s *OrderService) AddItem(ctx context.Context, tenantID, orderID uuid.UUID, item OrderItemPayload, actor models.Actor) (*models.Order, error) {
	if err := s.scope.AssertActive(ctx, tenantID); err != nil {
		return nil, err
	}
	if err := validateItems([]OrderItemPayload{item}); err != nil {
		return nil, err
	}

	var order *models.Order
	var event *models.OrderEvent
	err := s.uow.Do(ctx, func(st *repository.Stores) error {
		var err error
		order, err = s.loadOpenOrder(ctx, st, tenantID, orderID)
		if err != nil {
			return err
		}

		row := models.OrderItem{
			OrderID:   order.ID,
			ItemType:  item.ItemType,
			RefID:     item.RefID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		}
		if err := st.Orders.AddItem(ctx, &row); err != nil {
			return fmt.Errorf("failed to add item: %w", err)
		}
		order.Items = append(order.Items, row)

		if item.ItemType == models.ItemProduct {
			if _, err := s.ledger.Adjust(ctx, st, tenantID, AdjustRequest{
				ProductID:     *item.RefID,
				Delta:         -item.Quantity,
				MovementType:  models.MovementSale,
				ReferenceType: "order",
				ReferenceID:   order.ID.String(),
				Actor:         actor,
			}); err != nil {
				return err
			}
		}

		order.Recalculate()
		if err := st.Orders.Update(ctx, order); err != nil {
			return err
		}

		event = newOrderEvent(order, models.EventItemAdded, fmt.Sprintf("Added %s x%d", row.Name, row.Quantity), actor, map[string]interface{}{
			"item_id":    row.ID,
			"item_type":  row.ItemType,
			"name":       row.Name,
			"quantity":   row.Quantity,
			"unit_price": row.UnitPrice,
		})
		return s.events.AppendTx(ctx, st, event)
	})
	if err != nil {
		return nil, s.mapError(err, orderID)
	}

	s.events.Notify(event)
	return order, nil
}

// RemoveItem deletes a line item, returns product stock to the shelf,
// recalculates pricing and records one item_removed event.
func (s *OrderService) RemoveItem(ctx context.Context, tenantID, orderID, itemID uuid.UUID, actor models.Actor) (*models.Order, error) {
	if err := s.scope.AssertActive(ctx, tenantID); err != nil {
		return nil, err
	}

	var order *models.Order
	var event *models.OrderEvent
	err := s.uow.Do(ctx, func(st *repository.Stores) error {
		var err error
		order, err = s.loadOpenOrder(ctx, st, tenantID, orderID)
		if err != nil {
			return err
		}

		// copy the removed item out before rebuilding the slice, so the
		// stock return below never reads a reused element
		var removed models.OrderItem
		found := false
		remaining := make([]models.OrderItem, 0, len(order.Items))
		for _, item := range order.Items {
			if item.ID == itemID {
				removed = item
				found = true
				continue
			}
			remaining = append(remaining, item)
		}
		if !found {
			return fmt.Errorf("item %s: %w", itemID, ErrNotFound)
		}

		if err := st.Orders.RemoveItem(ctx, order.ID, itemID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("item %s: %w", itemID, ErrNotFound)
			}
			return fmt.Errorf("failed to remove item: %w", err)
		}

		if removed.ItemType == models.ItemProduct && removed.RefID != nil {
			if _, err := s.ledger.Adjust(ctx, st, tenantID, AdjustRequest{
				ProductID:     *removed.RefID,
				Delta:         removed.Quantity,
				MovementType:  models.MovementReturn,
				ReferenceType: "order",
				ReferenceID:   order.ID.String(),
				Actor:         actor,
			}); err != nil {
				return err
			}
		}

		order.Items = remaining
		order.Recalculate()
		if err := st.Orders.Update(ctx, order); err != nil {
			return err
		}

		event = newOrderEvent(order, models.EventItemRemoved, fmt.Sprintf("Removed %s x%d", removed.Name, removed.Quantity), actor, map[string]interface{}{
			"item_id":  itemID,
			"name":     removed.Name,
			"quantity": removed.Quantity,
		})
		return s.events.AppendTx(ctx, st, event)
	})
	if err != nil {
		return nil, s.mapError(err, orderID)
	}

	s.events.Notify(event)
	return order, nil
}

// RecordPayment applies a payment, recalculates the balance and records
// one payment event. Overpayment handling follows the configured policy.
func (s *OrderService) RecordPayment(ctx context.Context, tenantID, orderID uuid.UUID, amount decimal.Decimal, method, idempotencyKey string, actor models.Actor) (*models.Order, error) {
	if err := s.scope.AssertActive(ctx, tenantID); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, NewValidationError("amount", "payment amount must be positive")
	}
	if id, ok := s.idempotency.Lookup(ctx, tenantID, idempotencyKey); ok && id == orderID {
		s.logger.WithFields(logrus.Fields{"tenant_id": tenantID, "order_id": orderID}).
			Info("Replaying idempotent payment")
		return s.Get(ctx, tenantID, orderID)
	}

	var order *models.Order
	var event *models.OrderEvent
	err := s.uow.Do(ctx, func(st *repository.Stores) error {
		var err error
		order, err = s.loadOrder(ctx, st, tenantID, orderID)
		if err != nil {
			return err
		}

		newPaid := order.AmountPaid.Add(amount)
		if s.paymentPolicy == PaymentPolicyReject && newPaid.GreaterThan(order.CostEstimate) {
			return NewValidationError("amount", fmt.Sprintf(
				"payment of %s exceeds balance due %s", amount.StringFixed(2), order.BalanceDue.StringFixed(2)))
		}

		order.AmountPaid = newPaid
		order.Recalculate()
		if err := st.Orders.Update(ctx, order); err != nil {
			return err
		}

		event = newOrderEvent(order, models.EventPayment, fmt.Sprintf("Payment of %s received", amount.StringFixed(2)), actor, map[string]interface{}{
			"amount":      amount,
			"method":      method,
			"amount_paid": order.AmountPaid,
			"balance_due": order.BalanceDue,
		})
		return s.events.AppendTx(ctx, st, event)
	})
	if err != nil {
		return nil, s.mapError(err, orderID)
	}

	s.idempotency.Save(ctx, tenantID, idempotencyKey, order.ID)
	s.events.Notify(event)
	return order, nil
}

// Transition moves the order to a new status per the state machine. On
// first entry into a terminal paid status the customer's order totals are
// rolled forward in the same transaction.
func (s *OrderService) Transition(ctx context.Context, tenantID, orderID uuid.UUID, newStatus models.OrderStatus, note string, metadata map[string]interface{}, actor models.Actor) (*models.Order, error) {
	if err := s.scope.AssertActive(ctx, tenantID); err != nil {
		return nil, err
	}
	if !models.IsValidStatus(newStatus) {
		return nil, NewValidationError("status", fmt.Sprintf("unknown status %q", newStatus))
	}

	var order *models.Order
	var event *models.OrderEvent
	err := s.uow.Do(ctx, func(st *repository.Stores) error {
		var err error
		order, err = s.loadOrder(ctx, st, tenantID, orderID)
		if err != nil {
			return err
		}

		if !order.CanTransitionTo(newStatus) {
			return &InvalidTransitionError{
				From:    order.Status,
				To:      newStatus,
				Allowed: order.AllowedNext(),
			}
		}

		from := order.Status
		reopening := from.IsTerminalPaid() && newStatus == models.StatusInProgress && order.CanReopen

		order.Status = newStatus
		order.StatusNote = note
		order.ProgressPercentage = newStatus.Progress()
		if metadata != nil {
			merged, err := mergeStatusMetadata(order.StatusMetadata, metadata)
			if err != nil {
				return err
			}
			order.StatusMetadata = merged
		}
		if reopening {
			// The one-shot reopen is spent.
			order.CanReopen = false
		}
		if err := st.Orders.Update(ctx, order); err != nil {
			return err
		}

		eventType := models.EventStatusChange
		description := fmt.Sprintf("Status changed from %s to %s", from, newStatus)
		if reopening {
			eventType = models.EventReopened
			description = fmt.Sprintf("Order reopened from %s", from)
		}
		event = newOrderEvent(order, eventType, description, actor, map[string]interface{}{
			"from": from,
			"to":   newStatus,
			"note": note,
		})
		if err := s.events.AppendTx(ctx, st, event); err != nil {
			return err
		}

		if newStatus.IsTerminalPaid() && !from.IsTerminalPaid() {
			if err := recomputeCustomerTotals(ctx, st, tenantID, order.CustomerID); err != nil {
				return fmt.Errorf("failed to roll up customer totals: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.mapError(err, orderID)
	}

	s.events.Notify(event)

	s.logger.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"order_id":  orderID,
		"status":    newStatus,
	}).Info("Order transitioned")
	return order, nil
}

// AllowReopen grants the one-shot reopen on a picked-up or completed
// order. Without the grant, terminal paid statuses stay terminal.
func (s *OrderService) AllowReopen(ctx context.Context, tenantID, orderID uuid.UUID, actor models.Actor) (*models.Order, error) {
	if err := s.scope.AssertActive(ctx, tenantID); err != nil {
		return nil, err
	}

	var order *models.Order
	var event *models.OrderEvent
	err := s.uow.Do(ctx, func(st *repository.Stores) error {
		var err error
		order, err = s.loadOrder(ctx, st, tenantID, orderID)
		if err != nil {
			return err
		}
		if !order.Status.IsTerminalPaid() {
			return NewValidationError("status", fmt.Sprintf("reopen can only be granted on a picked_up or completed order, not %s", order.Status))
		}
		if order.CanReopen {
			return nil
		}

		order.CanReopen = true
		if err := st.Orders.Update(ctx, order); err != nil {
			return err
		}

		event = newOrderEvent(order, models.EventFieldUpdated, "Reopen granted", actor, map[string]interface{}{
			"field": "can_reopen",
			"value": true,
		})
		return s.events.AppendTx(ctx, st, event)
	})
	if err != nil {
		return nil, s.mapError(err, orderID)
	}

	s.events.Notify(event)
	return order, nil
}

// Reopen consumes the one-shot reopen grant and moves the order back to
// in_progress.
func (s *OrderService) Reopen(ctx context.Context, tenantID, orderID uuid.UUID, note string, actor models.Actor) (*models.Order, error) {
	return s.Transition(ctx, tenantID, orderID, models.StatusInProgress, note, nil, actor)
}

// SoftDelete archives an order. History is kept and inventory movements
// are not reversed; deletion is archival, not a transactional undo.
func (s *OrderService) SoftDelete(ctx context.Context, tenantID, orderID uuid.UUID, actor models.Actor) error {
	if err := s.scope.AssertActive(ctx, tenantID); err != nil {
		return err
	}

	var event *models.OrderEvent
	err := s.uow.Do(ctx, func(st *repository.Stores) error {
		order, err := s.loadOrder(ctx, st, tenantID, orderID)
		if err != nil {
			return err
		}

		now := s.now()
		order.Deleted = true
		order.DeletedAt = &now
		order.DeletedBy = actor.UserName
		if err := st.Orders.Update(ctx, order); err != nil {
			return err
		}

		event = newOrderEvent(order, models.EventDeleted, fmt.Sprintf("Order %s archived", order.OrderNumber), actor, nil)
		return s.events.AppendTx(ctx, st, event)
	})
	if err != nil {
		return s.mapError(err, orderID)
	}

	s.events.Notify(event)
	return nil
}

// Get retrieves an order with its items
func (s *OrderService) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Order, error) {
	order, err := s.uow.Stores().Orders.GetByID(ctx, tenantID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return order, nil
}

// List returns orders newest-first with the total count
func (s *OrderService) List(ctx context.Context, tenantID uuid.UUID, filter repository.OrderFilter) ([]models.Order, int64, error) {
	if filter.Status != "" && !models.IsValidStatus(filter.Status) {
		return nil, 0, NewValidationError("status", fmt.Sprintf("unknown status %q", filter.Status))
	}
	orders, total, err := s.uow.Stores().Orders.List(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return orders, total, nil
}

// loadOrder fetches a non-archived order for mutation
func (s *OrderService) loadOrder(ctx context.Context, st *repository.Stores, tenantID, orderID uuid.UUID) (*models.Order, error) {
	order, err := st.Orders.GetByID(ctx, tenantID, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if order.Deleted {
		return nil, fmt.Errorf("order %s is archived: %w", orderID, ErrNotFound)
	}
	return order, nil
}

// loadOpenOrder additionally rejects item mutations on terminal orders
func (s *OrderService) loadOpenOrder(ctx context.Context, st *repository.Stores, tenantID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.loadOrder(ctx, st, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, NewValidationError("status", fmt.Sprintf("cannot modify items on a %s order", order.Status))
	}
	return order, nil
}

func (s *OrderService) mapError(err error, orderID uuid.UUID) error {
	var cce *ConcurrencyConflictError
	if errors.Is(err, repository.ErrVersionConflict) && !errors.As(err, &cce) {
		return &ConcurrencyConflictError{Resource: "order", ID: orderID}
	}
	return err
}

func newOrderEvent(order *models.Order, eventType models.EventType, description string, actor models.Actor, metadata map[string]interface{}) *models.OrderEvent {
	event := &models.OrderEvent{
		TenantID:    order.TenantID,
		OrderID:     order.ID,
		EventType:   eventType,
		Description: description,
		UserID:      actor.UserID,
		UserName:    actor.UserName,
		UserRole:    actor.UserRole,
	}
	if metadata != nil {
		if data, err := json.Marshal(metadata); err == nil {
			event.Metadata = datatypes.JSON(data)
		}
	}
	return event
}

func mergeStatusMetadata(existing datatypes.JSON, patch map[string]interface{}) (datatypes.JSON, error) {
	merged := map[string]interface{}{}
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &merged); err != nil {
			return nil, fmt.Errorf("corrupt status metadata: %w", err)
		}
	}
	for k, v := range patch {
		merged[k] = v
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}
