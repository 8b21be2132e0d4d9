package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"workorder-service/internal/models"
)

// GormEventRepository is the GORM implementation of EventRepository.
// Append-only: it intentionally has no update or delete method.
type GormEventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

// Append writes a new event row
func (r *GormEventRepository) Append(ctx context.Context, event *models.OrderEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// ListByOrder returns an order's events newest-first. Private entries are
// excluded for non-privileged callers.
func (r *GormEventRepository) ListByOrder(ctx context.Context, tenantID, orderID uuid.UUID, includePrivate bool) ([]models.OrderEvent, error) {
	var events []models.OrderEvent

	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_id = ?", tenantID, orderID)
	if !includePrivate {
		query = query.Where("is_private = false")
	}

	if err := query.Order("created_at DESC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// CountByOrder returns the number of events recorded for an order
func (r *GormEventRepository) CountByOrder(ctx context.Context, tenantID, orderID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.OrderEvent{}).
		Where("tenant_id = ? AND order_id = ?", tenantID, orderID).
		Count(&count).Error
	return count, err
}
