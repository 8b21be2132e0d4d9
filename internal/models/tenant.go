package models

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// TenantStatus represents the lifecycle state of a business account
type TenantStatus string

const (
	TenantTrial     TenantStatus = "trial"
	TenantActive    TenantStatus = "active"
	TenantSuspended TenantStatus = "suspended"
)

// TenantPlan represents the subscription plan of a tenant
type TenantPlan string

const (
	PlanFree     TenantPlan = "free"
	PlanStandard TenantPlan = "standard"
	PlanPremium  TenantPlan = "premium"
)

var slugRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Tenant is the isolation boundary: every core row belongs to exactly one tenant.
// Suspension blocks writes for the tenant but not reads.
type Tenant struct {
	ID     uuid.UUID    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name   string       `json:"name" gorm:"type:varchar(255);not null"`
	Slug   string       `json:"slug" gorm:"type:varchar(100);uniqueIndex;not null"`
	Status TenantStatus `json:"status" gorm:"type:varchar(20);not null;default:'trial'"`
	Plan   TenantPlan   `json:"plan" gorm:"type:varchar(20);not null;default:'free'"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name
func (Tenant) TableName() string {
	return "tenants"
}

// IsSuspended reports whether writes are blocked for this tenant
func (t *Tenant) IsSuspended() bool {
	return t.Status == TenantSuspended
}

// IsValidSlug validates a URL-safe tenant slug
func IsValidSlug(slug string) bool {
	return len(slug) >= 2 && len(slug) <= 100 && slugRegex.MatchString(slug)
}
