package repository

import (
	"context"

	"gorm.io/gorm"
)

// GormUnitOfWork implements UnitOfWork over a GORM connection pool
type GormUnitOfWork struct {
	db     *gorm.DB
	stores *Stores
}

// NewGormUnitOfWork creates a unit of work over the given database
func NewGormUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{
		db:     db,
		stores: NewStores(db),
	}
}

// NewStores builds the per-entity repositories over one database handle
func NewStores(db *gorm.DB) *Stores {
	return &Stores{
		Tenants:   NewTenantRepository(db),
		Customers: NewCustomerRepository(db),
		Products:  NewProductRepository(db),
		Orders:    NewOrderRepository(db),
		Events:    NewEventRepository(db),
	}
}

// Do runs fn inside a single database transaction. A non-nil error from fn
// rolls every write back.
func (u *GormUnitOfWork) Do(ctx context.Context, fn func(s *Stores) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStores(tx))
	})
}

// Stores returns repositories bound to the shared pool
func (u *GormUnitOfWork) Stores() *Stores {
	return u.stores
}
