package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"workorder-service/internal/models"
)

// GormOrderRepository is the GORM implementation of OrderRepository
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Create persists a new order together with its line items
func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// Update persists the order with an optimistic version check. The write
// matches only the version the caller loaded; zero rows affected means a
// concurrent writer got there first.
func (r *GormOrderRepository) Update(ctx context.Context, order *models.Order) error {
	loadedVersion := order.Version
	order.Version = loadedVersion + 1

	result := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND tenant_id = ? AND version = ?", order.ID, order.TenantID, loadedVersion).
		Updates(map[string]interface{}{
			"status":              order.Status,
			"status_note":         order.StatusNote,
			"status_metadata":     order.StatusMetadata,
			"priority":            order.Priority,
			"progress_percentage": order.ProgressPercentage,
			"assigned_to":         order.AssignedTo,
			"labor_cost":          order.LaborCost,
			"subtotal":            order.Subtotal,
			"tax_rate":            order.TaxRate,
			"cost_estimate":       order.CostEstimate,
			"amount_paid":         order.AmountPaid,
			"balance_due":         order.BalanceDue,
			"can_reopen":          order.CanReopen,
			"deleted":             order.Deleted,
			"deleted_at":          order.DeletedAt,
			"deleted_by":          order.DeletedBy,
			"version":             order.Version,
		})
	if result.Error != nil {
		order.Version = loadedVersion
		return result.Error
	}
	if result.RowsAffected == 0 {
		order.Version = loadedVersion
		return ErrVersionConflict
	}
	return nil
}

// GetByID retrieves an order with its items, scoped to the tenant
func (r *GormOrderRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "id = ? AND tenant_id = ?", id, tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// List retrieves orders newest-first with a total count. Deleted orders
// are excluded unless the filter asks for them.
func (r *GormOrderRepository) List(ctx context.Context, tenantID uuid.UUID, filter OrderFilter) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("tenant_id = ?", tenantID)

	if !filter.IncludeDeleted {
		query = query.Where("deleted = false")
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := 50
	if filter.Limit > 0 {
		limit = filter.Limit
	}

	err := query.
		Preload("Items").
		Order("created_at DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// ListByCustomer returns all non-deleted orders of a customer, for the
// projection rebuild
func (r *GormOrderRepository) ListByCustomer(ctx context.Context, tenantID, customerID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND customer_id = ? AND deleted = false", tenantID, customerID).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// AddItem appends a line item to an order
func (r *GormOrderRepository) AddItem(ctx context.Context, item *models.OrderItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// RemoveItem deletes a line item from an order
func (r *GormOrderRepository) RemoveItem(ctx context.Context, orderID, itemID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND order_id = ?", itemID, orderID).
		Delete(&models.OrderItem{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// NextOrderNumber increments the tenant's daily counter under a row lock
// and formats the WO-YYYYMMDD-NNNN number. Run inside the creating
// transaction so the counter and the order commit together.
func (r *GormOrderRepository) NextOrderNumber(ctx context.Context, tenantID uuid.UUID, now time.Time) (string, error) {
	periodKey := now.UTC().Format("2006-01-02")
	datePrefix := now.UTC().Format("20060102")

	var counter models.SequenceCounter
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND sequence_type = ? AND period_key = ?", tenantID, "order", periodKey).
		First(&counter).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		counter = models.SequenceCounter{
			TenantID:     tenantID,
			SequenceType: "order",
			PeriodKey:    periodKey,
			CurrentCount: 1,
		}
		counter.LastNumber = fmt.Sprintf("WO-%s-%04d", datePrefix, counter.CurrentCount)
		if err := r.db.WithContext(ctx).Create(&counter).Error; err != nil {
			// Unique index on (tenant, type, period): a concurrent creator
			// won the race, surface as a retryable conflict.
			return "", ErrVersionConflict
		}
		return counter.LastNumber, nil
	case err != nil:
		return "", err
	}

	counter.CurrentCount++
	counter.LastNumber = fmt.Sprintf("WO-%s-%04d", datePrefix, counter.CurrentCount)
	if err := r.db.WithContext(ctx).Save(&counter).Error; err != nil {
		return "", err
	}
	return counter.LastNumber, nil
}
