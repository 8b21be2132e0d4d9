package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"workorder-service/internal/models"
)

var (
	// ErrNotFound is returned when a row does not exist in the caller's tenant
	ErrNotFound = errors.New("record not found")

	// ErrVersionConflict is returned when an optimistic-lock update matched
	// no rows because the version moved underneath the caller
	ErrVersionConflict = errors.New("record version conflict")
)

// TenantRepository manages tenant accounts
type TenantRepository interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.TenantStatus) error
	ListActiveIDs(ctx context.Context) ([]uuid.UUID, error)
}

// CustomerRepository manages customer contact records within a tenant
type CustomerRepository interface {
	Create(ctx context.Context, customer *models.Customer) error
	Update(ctx context.Context, customer *models.Customer) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Customer, error)
	FindByPhone(ctx context.Context, tenantID uuid.UUID, phone string) (*models.Customer, error)
	FindByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*models.Customer, error)
	Search(ctx context.Context, tenantID uuid.UUID, query string, limit int) ([]models.Customer, error)
	ListIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error)
	UpdateTotals(ctx context.Context, tenantID, id uuid.UUID, totalOrders int64, totalSpent decimal.Decimal) error
}

// ProductRepository manages products and the immutable movement ledger.
// Stock writes happen only through UpdateStock, and only the inventory
// ledger calls it.
type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Product, error)
	// GetForUpdate locks the product row for the remainder of the
	// transaction, serializing concurrent stock adjustments per product.
	GetForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*models.Product, error)
	UpdateStock(ctx context.Context, product *models.Product) error
	CreateMovement(ctx context.Context, movement *models.InventoryMovement) error
	ListMovements(ctx context.Context, tenantID, productID uuid.UUID, limit int) ([]models.InventoryMovement, error)
	ListLowStock(ctx context.Context, tenantID uuid.UUID) ([]models.Product, error)
}

// OrderFilter narrows order listings
type OrderFilter struct {
	Status         models.OrderStatus
	CustomerID     *uuid.UUID
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// OrderRepository manages work orders and their line items
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	// Update persists the order with an optimistic version check and bumps
	// the version; ErrVersionConflict when the row moved.
	Update(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, tenantID uuid.UUID, filter OrderFilter) ([]models.Order, int64, error)
	ListByCustomer(ctx context.Context, tenantID, customerID uuid.UUID) ([]models.Order, error)
	AddItem(ctx context.Context, item *models.OrderItem) error
	RemoveItem(ctx context.Context, orderID, itemID uuid.UUID) error
	// NextOrderNumber increments the tenant's daily sequence counter and
	// returns the formatted WO-YYYYMMDD-NNNN number. Must run inside the
	// creating transaction so a rollback releases the number's gap only.
	NextOrderNumber(ctx context.Context, tenantID uuid.UUID, now time.Time) (string, error)
}

// EventRepository is the append-only order event trail. There is
// deliberately no update or delete operation.
type EventRepository interface {
	Append(ctx context.Context, event *models.OrderEvent) error
	ListByOrder(ctx context.Context, tenantID, orderID uuid.UUID, includePrivate bool) ([]models.OrderEvent, error)
	CountByOrder(ctx context.Context, tenantID, orderID uuid.UUID) (int64, error)
}

// Stores bundles the per-entity repositories bound to one database handle,
// either the shared pool or a single transaction.
type Stores struct {
	Tenants   TenantRepository
	Customers CustomerRepository
	Products  ProductRepository
	Orders    OrderRepository
	Events    EventRepository
}

// UnitOfWork runs a function with every store bound to one transaction.
// Either all writes inside fn commit, or none do.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(s *Stores) error) error
	// Stores returns repositories bound to the shared pool, for reads that
	// need no transaction.
	Stores() *Stores
}
