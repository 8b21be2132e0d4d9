package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"workorder-service/internal/models"
	wonats "workorder-service/internal/nats"
	"workorder-service/internal/repository"
)

// EventLog is the append-only audit trail keyed by order. Events are
// written inside the mutating unit of work and pushed to the change
// notification stream after the transaction commits.
type EventLog struct {
	uow       repository.UnitOfWork
	scope     *TenantScope
	publisher *wonats.Publisher
	logger    *logrus.Logger
}

// NewEventLog creates a new event log
func NewEventLog(uow repository.UnitOfWork, scope *TenantScope, publisher *wonats.Publisher, logger *logrus.Logger) *EventLog {
	return &EventLog{uow: uow, scope: scope, publisher: publisher, logger: logger}
}

func validateEvent(event *models.OrderEvent) error {
	if event.OrderID == uuid.Nil {
		return NewValidationError("order_id", "order id is required")
	}
	if event.EventType == "" {
		return NewValidationError("event_type", "event type is required")
	}
	return nil
}

// AppendTx appends an event inside the caller's transaction. Used by the
// order service so the event commits or rolls back with the mutation it
// describes.
func (e *EventLog) AppendTx(ctx context.Context, st *repository.Stores, event *models.OrderEvent) error {
	if err := validateEvent(event); err != nil {
		return err
	}
	if err := st.Events.Append(ctx, event); err != nil {
		return fmt.Errorf("failed to append event for order %s: %w", event.OrderID, err)
	}
	return nil
}

// Append writes a standalone event (notes, checklist updates and similar
// annotations arriving directly through the API), verifying the order
// belongs to the tenant first.
func (e *EventLog) Append(ctx context.Context, tenantID uuid.UUID, event *models.OrderEvent) (*models.OrderEvent, error) {
	if err := e.scope.AssertActive(ctx, tenantID); err != nil {
		return nil, err
	}
	if err := validateEvent(event); err != nil {
		return nil, err
	}

	err := e.uow.Do(ctx, func(st *repository.Stores) error {
		order, err := st.Orders.GetByID(ctx, tenantID, event.OrderID)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("order %s: %w", event.OrderID, ErrNotFound)
		}
		if err != nil {
			return err
		}
		event.TenantID = order.TenantID
		return e.AppendTx(ctx, st, event)
	})
	if err != nil {
		return nil, err
	}

	e.Notify(event)
	return event, nil
}

// List returns an order's events newest-first
func (e *EventLog) List(ctx context.Context, tenantID, orderID uuid.UUID, includePrivate bool) ([]models.OrderEvent, error) {
	events, err := e.uow.Stores().Events.ListByOrder(ctx, tenantID, orderID, includePrivate)
	if err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"order_id":  orderID,
		}).Error("Failed to list order events")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return events, nil
}

// Count returns the total number of events recorded for an order,
// private entries included
func (e *EventLog) Count(ctx context.Context, tenantID, orderID uuid.UUID) (int64, error) {
	return e.uow.Stores().Events.CountByOrder(ctx, tenantID, orderID)
}

// Notify pushes a committed event to the change-notification stream.
// Best effort: a publish failure never fails the business operation.
func (e *EventLog) Notify(event *models.OrderEvent) {
	if e.publisher == nil {
		return
	}
	go func() {
		if err := e.publisher.PublishOrderEvent(context.Background(), event); err != nil {
			e.logger.WithError(err).WithFields(logrus.Fields{
				"tenant_id": event.TenantID,
				"order_id":  event.OrderID,
				"type":      event.EventType,
			}).Warn("Failed to publish order event notification")
		}
	}()
}
