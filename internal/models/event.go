package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// EventType classifies an entry in the order event log
type EventType string

const (
	EventCreate           EventType = "create"
	EventStatusChange     EventType = "status_change"
	EventNoteAdded        EventType = "note_added"
	EventItemAdded        EventType = "item_added"
	EventItemRemoved      EventType = "item_removed"
	EventItemUpdated      EventType = "item_updated"
	EventFieldUpdated     EventType = "field_updated"
	EventPayment          EventType = "payment"
	EventChecklistUpdated EventType = "checklist_updated"
	EventReopened         EventType = "reopened"
	EventDeleted          EventType = "deleted"
)

// OrderEvent is one append-only entry in an order's audit trail. The trail
// reconstructs what happened, when and by whom; rows are never updated or
// deleted while the order exists, and cascade away with the order row.
type OrderEvent struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID uuid.UUID `json:"tenantId" gorm:"type:uuid;not null;index"`
	OrderID  uuid.UUID `json:"orderId" gorm:"type:uuid;not null;index:idx_order_events_order"`

	EventType   EventType `json:"eventType" gorm:"type:varchar(30);not null;index"`
	Description string    `json:"description" gorm:"type:text"`

	UserID   string `json:"userId" gorm:"type:varchar(100)"`
	UserName string `json:"userName" gorm:"type:varchar(255)"`
	UserRole string `json:"userRole" gorm:"type:varchar(50)"`

	Metadata  datatypes.JSON `json:"metadata" gorm:"type:jsonb"`
	IsPrivate bool           `json:"isPrivate" gorm:"not null;default:false"`

	CreatedAt time.Time `json:"createdAt" gorm:"index:idx_order_events_order"`
}

// TableName specifies the table name
func (OrderEvent) TableName() string {
	return "order_events"
}

// Actor identifies who performed an operation, carried into events and
// inventory movements
type Actor struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	UserRole string `json:"userRole"`
}

// SequenceCounter backs tenant-unique order number generation. One row per
// tenant, sequence type and period; incremented inside the creating
// transaction.
type SequenceCounter struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID     uuid.UUID `json:"tenantId" gorm:"type:uuid;not null;uniqueIndex:idx_seq_tenant_type_period"`
	SequenceType string    `json:"sequenceType" gorm:"type:varchar(20);not null;uniqueIndex:idx_seq_tenant_type_period"`
	PeriodKey    string    `json:"periodKey" gorm:"type:varchar(20);not null;uniqueIndex:idx_seq_tenant_type_period"`
	CurrentCount int64     `json:"currentCount" gorm:"not null;default:0"`
	LastNumber   string    `json:"lastNumber" gorm:"type:varchar(30)"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name
func (SequenceCounter) TableName() string {
	return "sequence_counters"
}
