package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// LoyaltyTier represents the customer loyalty level
type LoyaltyTier string

const (
	TierBronze   LoyaltyTier = "bronze"
	TierSilver   LoyaltyTier = "silver"
	TierGold     LoyaltyTier = "gold"
	TierPlatinum LoyaltyTier = "platinum"
)

// Customer is a contact record scoped to a tenant. At least one contact
// channel (phone or email) must be present.
//
// TotalOrders and TotalSpent are a materialized projection over the
// customer's orders. They are rolled forward when an order reaches a
// terminal paid status and rebuilt by the reconciliation job; they are
// never independently authoritative.
type Customer struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID uuid.UUID `json:"tenantId" gorm:"type:uuid;not null;index:idx_customers_tenant;index:idx_customers_tenant_phone"`

	Name             string         `json:"name" gorm:"type:varchar(255);not null"`
	Phone            string         `json:"phone" gorm:"type:varchar(50);index:idx_customers_tenant_phone"`
	Email            string         `json:"email" gorm:"type:varchar(255)"`
	AdditionalPhones datatypes.JSON `json:"additionalPhones" gorm:"type:jsonb"`

	LoyaltyTier LoyaltyTier     `json:"loyaltyTier" gorm:"type:varchar(20);not null;default:'bronze'"`
	TotalOrders int64           `json:"totalOrders" gorm:"not null;default:0"`
	TotalSpent  decimal.Decimal `json:"totalSpent" gorm:"type:numeric(12,2);not null;default:0"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name
func (Customer) TableName() string {
	return "customers"
}

// HasContactChannel reports whether the record satisfies the
// phone-or-email invariant
func (c *Customer) HasContactChannel() bool {
	return c.Phone != "" || c.Email != ""
}
