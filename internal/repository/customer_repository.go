package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"workorder-service/internal/models"
)

// GormCustomerRepository is the GORM implementation of CustomerRepository
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewCustomerRepository creates a new customer repository
func NewCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// Create creates a new customer record
func (r *GormCustomerRepository) Create(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

// Update persists changes to an existing customer, scoped to its tenant
func (r *GormCustomerRepository) Update(ctx context.Context, customer *models.Customer) error {
	result := r.db.WithContext(ctx).Model(&models.Customer{}).
		Where("id = ? AND tenant_id = ?", customer.ID, customer.TenantID).
		Updates(map[string]interface{}{
			"name":              customer.Name,
			"phone":             customer.Phone,
			"email":             customer.Email,
			"additional_phones": customer.AdditionalPhones,
			"loyalty_tier":      customer.LoyaltyTier,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves a customer by ID within the tenant
func (r *GormCustomerRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).
		First(&customer, "id = ? AND tenant_id = ?", id, tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// FindByPhone retrieves a customer by exact phone match within the tenant
func (r *GormCustomerRepository) FindByPhone(ctx context.Context, tenantID uuid.UUID, phone string) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).
		First(&customer, "tenant_id = ? AND phone = ?", tenantID, phone).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// FindByEmail retrieves a customer by exact email match within the tenant
func (r *GormCustomerRepository) FindByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).
		First(&customer, "tenant_id = ? AND email = ?", tenantID, email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// Search matches the query as a substring of name, phone or email, ranked
// exact > prefix > contains.
func (r *GormCustomerRepository) Search(ctx context.Context, tenantID uuid.UUID, query string, limit int) ([]models.Customer, error) {
	var customers []models.Customer

	contains := "%" + query + "%"
	prefix := query + "%"

	err := r.db.WithContext(ctx).Model(&models.Customer{}).
		Where("tenant_id = ?", tenantID).
		Where("name ILIKE ? OR phone ILIKE ? OR email ILIKE ?", contains, contains, contains).
		Clauses(clause.OrderBy{Expression: clause.Expr{
			SQL: "CASE WHEN name ILIKE ? OR phone = ? OR email ILIKE ? THEN 0 " +
				"WHEN name ILIKE ? OR phone LIKE ? OR email ILIKE ? THEN 1 " +
				"ELSE 2 END, name ASC",
			Vars:               []interface{}{query, query, query, prefix, prefix, prefix},
			WithoutParentheses: true,
		}}).
		Limit(limit).
		Find(&customers).Error
	if err != nil {
		return nil, err
	}
	return customers, nil
}

// ListIDs returns every customer ID in the tenant, for projection rebuilds
func (r *GormCustomerRepository) ListIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.Customer{}).
		Where("tenant_id = ?", tenantID).
		Pluck("id", &ids).Error
	return ids, err
}

// UpdateTotals writes the materialized order totals for a customer
func (r *GormCustomerRepository) UpdateTotals(ctx context.Context, tenantID, id uuid.UUID, totalOrders int64, totalSpent decimal.Decimal) error {
	result := r.db.WithContext(ctx).Model(&models.Customer{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Updates(map[string]interface{}{
			"total_orders": totalOrders,
			"total_spent":  totalSpent,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
