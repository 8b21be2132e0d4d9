package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"workorder-service/internal/models"
	"workorder-service/internal/repository"
)

// TenantScope resolves the acting business account and gates writes on its
// status. Every other service takes the resolved tenant ID and filters all
// reads and writes by it; cross-tenant access fails, never re-scopes.
type TenantScope struct {
	uow    repository.UnitOfWork
	logger *logrus.Logger
}

// NewTenantScope creates a new tenant scope
func NewTenantScope(uow repository.UnitOfWork, logger *logrus.Logger) *TenantScope {
	return &TenantScope{uow: uow, logger: logger}
}

// Resolve loads the tenant for the given ID
func (s *TenantScope) Resolve(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error) {
	tenant, err := s.uow.Stores().Tenants.GetByID(ctx, tenantID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, ErrNotFound)
	}
	if err != nil {
		s.logger.WithError(err).WithField("tenant_id", tenantID).Error("Failed to resolve tenant")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return tenant, nil
}

// ResolveBySlug loads the tenant for the given slug
func (s *TenantScope) ResolveBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	tenant, err := s.uow.Stores().Tenants.GetBySlug(ctx, slug)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("tenant %q: %w", slug, ErrNotFound)
	}
	if err != nil {
		s.logger.WithError(err).WithField("slug", slug).Error("Failed to resolve tenant by slug")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return tenant, nil
}

// AssertActive fails with ErrTenantSuspended when the tenant's status
// blocks writes. Suspension never blocks reads.
func (s *TenantScope) AssertActive(ctx context.Context, tenantID uuid.UUID) error {
	tenant, err := s.Resolve(ctx, tenantID)
	if err != nil {
		return err
	}
	if tenant.IsSuspended() {
		return fmt.Errorf("tenant %s: %w", tenantID, ErrTenantSuspended)
	}
	return nil
}

// AssertSameTenant rejects a resource that belongs to another tenant
func AssertSameTenant(resourceTenantID, tenantID uuid.UUID) error {
	if resourceTenantID != tenantID {
		return ErrTenantMismatch
	}
	return nil
}

// CreateTenant registers a new business account. Privileged operation,
// not exposed on the tenant-scoped API surface.
func (s *TenantScope) CreateTenant(ctx context.Context, name, slug string, plan models.TenantPlan) (*models.Tenant, error) {
	if name == "" {
		return nil, NewValidationError("name", "tenant name is required")
	}
	if !models.IsValidSlug(slug) {
		return nil, NewValidationError("slug", "slug must be lowercase letters, digits and hyphens")
	}
	if plan == "" {
		plan = models.PlanFree
	}

	tenant := &models.Tenant{
		Name:   name,
		Slug:   slug,
		Status: models.TenantTrial,
		Plan:   plan,
	}
	if err := s.uow.Stores().Tenants.Create(ctx, tenant); err != nil {
		s.logger.WithError(err).WithField("slug", slug).Error("Failed to create tenant")
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"tenant_id": tenant.ID,
		"slug":      tenant.Slug,
	}).Info("Tenant created")
	return tenant, nil
}

// SetTenantStatus updates a tenant's lifecycle status
func (s *TenantScope) SetTenantStatus(ctx context.Context, tenantID uuid.UUID, status models.TenantStatus) error {
	switch status {
	case models.TenantTrial, models.TenantActive, models.TenantSuspended:
	default:
		return NewValidationError("status", fmt.Sprintf("unknown tenant status %q", status))
	}
	err := s.uow.Stores().Tenants.UpdateStatus(ctx, tenantID, status)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("tenant %s: %w", tenantID, ErrNotFound)
	}
	return err
}
