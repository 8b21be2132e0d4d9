package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementType classifies a stock quantity change
type MovementType string

const (
	MovementPurchase   MovementType = "purchase"
	MovementSale       MovementType = "sale"
	MovementAdjustment MovementType = "adjustment"
	MovementReturn     MovementType = "return"
)

// Product holds a tenant's stock item. Stock is mutated exclusively through
// the inventory ledger; there is no direct stock write path.
type Product struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID uuid.UUID `json:"tenantId" gorm:"type:uuid;not null;index:idx_products_tenant;uniqueIndex:idx_products_tenant_sku"`

	Name  string          `json:"name" gorm:"type:varchar(255);not null"`
	SKU   string          `json:"sku" gorm:"type:varchar(100);uniqueIndex:idx_products_tenant_sku"`
	Price decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null;default:0"`
	Cost  decimal.Decimal `json:"cost" gorm:"type:numeric(12,2);not null;default:0"`

	Stock    int  `json:"stock" gorm:"not null;default:0"`
	MinStock int  `json:"minStock" gorm:"not null;default:0"`
	Active   bool `json:"active" gorm:"not null;default:true"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name
func (Product) TableName() string {
	return "products"
}

// IsLowStock reports whether the product is at or below its reorder threshold
func (p *Product) IsLowStock() bool {
	return p.Stock <= p.MinStock
}

// InventoryMovement is the immutable record paired with every stock change.
// NewStock = PreviousStock + Quantity holds for every row, and NewStock is
// never negative.
type InventoryMovement struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID  uuid.UUID `json:"tenantId" gorm:"type:uuid;not null;index"`
	ProductID uuid.UUID `json:"productId" gorm:"type:uuid;not null;index"`

	MovementType  MovementType `json:"movementType" gorm:"type:varchar(20);not null"`
	Quantity      int          `json:"quantity" gorm:"not null"` // signed delta
	PreviousStock int          `json:"previousStock" gorm:"not null"`
	NewStock      int          `json:"newStock" gorm:"not null"`

	ReferenceType string    `json:"referenceType" gorm:"type:varchar(50)"`
	ReferenceID   string    `json:"referenceId" gorm:"type:varchar(100);index"`
	PerformedBy   string    `json:"performedBy" gorm:"type:varchar(255)"`
	CreatedAt     time.Time `json:"createdAt"`
}

// TableName specifies the table name
func (InventoryMovement) TableName() string {
	return "inventory_movements"
}
