package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"workorder-service/internal/models"
)

var (
	// ErrNotFound indicates the referenced customer/order/product does not
	// exist, or does not exist in the caller's tenant
	ErrNotFound = errors.New("resource not found")

	// ErrTenantSuspended indicates a write against a suspended account
	ErrTenantSuspended = errors.New("tenant is suspended")

	// ErrTenantMismatch indicates cross-tenant access; never auto-corrected
	ErrTenantMismatch = errors.New("resource belongs to another tenant")

	// ErrUnavailable indicates an infrastructure failure (store unreachable);
	// safe to retry only for reads, or with an idempotency key for writes
	ErrUnavailable = errors.New("backing store unavailable")
)

// ValidationError represents a missing or malformed required field.
// Nothing is persisted when it is returned.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError checks if an error is a ValidationError
func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// InsufficientStockError indicates a decrement that would drive stock
// negative. The triggering operation fails entirely; no partial order,
// item or movement is written.
type InsufficientStockError struct {
	ProductID uuid.UUID `json:"productId"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// IsInsufficientStock checks if an error is an InsufficientStockError
func IsInsufficientStock(err error) (*InsufficientStockError, bool) {
	var ise *InsufficientStockError
	if errors.As(err, &ise) {
		return ise, true
	}
	return nil, false
}

// InvalidTransitionError indicates a status change not permitted from the
// current state. It carries the current state and the allowed-next set so
// the caller can act on it.
type InvalidTransitionError struct {
	From    models.OrderStatus   `json:"from"`
	To      models.OrderStatus   `json:"to"`
	Allowed []models.OrderStatus `json:"allowed"`
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %q to %q (allowed: %v)", e.From, e.To, e.Allowed)
}

// IsInvalidTransition checks if an error is an InvalidTransitionError
func IsInvalidTransition(err error) (*InvalidTransitionError, bool) {
	var ite *InvalidTransitionError
	if errors.As(err, &ite) {
		return ite, true
	}
	return nil, false
}

// ConcurrencyConflictError indicates an optimistic-lock failure on a
// product's stock or an order's version. The caller should retry with
// fresh state; the core never retries automatically.
type ConcurrencyConflictError struct {
	Resource string    `json:"resource"`
	ID       uuid.UUID `json:"id"`
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("concurrent modification of %s %s", e.Resource, e.ID)
}

// IsConcurrencyConflict checks if an error is a ConcurrencyConflictError
func IsConcurrencyConflict(err error) (*ConcurrencyConflictError, bool) {
	var cce *ConcurrencyConflictError
	if errors.As(err, &cce) {
		return cce, true
	}
	return nil, false
}
