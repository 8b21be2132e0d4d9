package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"workorder-service/internal/models"
	"workorder-service/internal/repository"
)

// UpsertBy selects the matching key for customer upserts
type UpsertBy string

const (
	UpsertByPhone UpsertBy = "phone"
	UpsertByEmail UpsertBy = "email"
)

// CustomerPayload carries the writable customer fields
type CustomerPayload struct {
	Name             string             `json:"name"`
	Phone            string             `json:"phone"`
	Email            string             `json:"email"`
	AdditionalPhones []string           `json:"additional_phones"`
	LoyaltyTier      models.LoyaltyTier `json:"loyalty_tier"`
}

// UpsertResult is a customer plus whether the upsert created it
type UpsertResult struct {
	Customer *models.Customer `json:"customer"`
	Created  bool             `json:"created"`
}

// CustomerService is the customer registry: create/find/update contact
// records with the at-least-one-contact-channel invariant.
type CustomerService struct {
	uow    repository.UnitOfWork
	scope  *TenantScope
	logger *logrus.Logger
}

// NewCustomerService creates a new customer service
func NewCustomerService(uow repository.UnitOfWork, scope *TenantScope, logger *logrus.Logger) *CustomerService {
	return &CustomerService{uow: uow, scope: scope, logger: logger}
}

func (p *CustomerPayload) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return NewValidationError("name", "customer name is required")
	}
	if p.Phone == "" && p.Email == "" {
		return NewValidationError("contact", "at least one contact channel (phone or email) is required")
	}
	return nil
}

func (p *CustomerPayload) apply(c *models.Customer) error {
	c.Name = p.Name
	c.Phone = p.Phone
	c.Email = p.Email
	if p.LoyaltyTier != "" {
		c.LoyaltyTier = p.LoyaltyTier
	}
	if p.AdditionalPhones != nil {
		phones, err := json.Marshal(p.AdditionalPhones)
		if err != nil {
			return fmt.Errorf("failed to encode additional phones: %w", err)
		}
		c.AdditionalPhones = datatypes.JSON(phones)
	}
	return nil
}

// Get retrieves a customer by ID within the tenant
func (s *CustomerService) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Customer, error) {
	customer, err := s.uow.Stores().Customers.GetByID(ctx, tenantID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("customer %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return customer, nil
}

// Search matches the query against name, phone and email, ranked
// exact > prefix > contains
func (s *CustomerService) Search(ctx context.Context, tenantID uuid.UUID, query string, limit int) ([]models.Customer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, NewValidationError("query", "search query is required")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	customers, err := s.uow.Stores().Customers.Search(ctx, tenantID, query, limit)
	if err != nil {
		s.logger.WithError(err).WithField("tenant_id", tenantID).Error("Customer search failed")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return customers, nil
}

// Upsert creates or updates a customer matched by phone (or email).
// New records default to the bronze loyalty tier.
func (s *CustomerService) Upsert(ctx context.Context, tenantID uuid.UUID, payload *CustomerPayload, upsertBy UpsertBy) (*UpsertResult, error) {
	if err := s.scope.AssertActive(ctx, tenantID); err != nil {
		return nil, err
	}
	if err := payload.validate(); err != nil {
		return nil, err
	}

	var result *UpsertResult
	err := s.uow.Do(ctx, func(st *repository.Stores) error {
		existing, err := s.findForUpsert(ctx, st, tenantID, payload, upsertBy)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		if existing != nil {
			if err := payload.apply(existing); err != nil {
				return err
			}
			if err := st.Customers.Update(ctx, existing); err != nil {
				return err
			}
			result = &UpsertResult{Customer: existing, Created: false}
			return nil
		}

		customer := &models.Customer{
			TenantID:    tenantID,
			LoyaltyTier: models.TierBronze,
		}
		if err := payload.apply(customer); err != nil {
			return err
		}
		if err := st.Customers.Create(ctx, customer); err != nil {
			return err
		}
		result = &UpsertResult{Customer: customer, Created: true}
		return nil
	})
	if err != nil {
		if _, ok := IsValidationError(err); ok {
			return nil, err
		}
		s.logger.WithError(err).WithField("tenant_id", tenantID).Error("Customer upsert failed")
		return nil, fmt.Errorf("customer upsert failed: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"tenant_id":   tenantID,
		"customer_id": result.Customer.ID,
		"created":     result.Created,
	}).Debug("Customer upserted")
	return result, nil
}

func (s *CustomerService) findForUpsert(ctx context.Context, st *repository.Stores, tenantID uuid.UUID, payload *CustomerPayload, upsertBy UpsertBy) (*models.Customer, error) {
	switch upsertBy {
	case UpsertByEmail:
		if payload.Email == "" {
			return nil, NewValidationError("email", "email is required when upserting by email")
		}
		return st.Customers.FindByEmail(ctx, tenantID, payload.Email)
	case UpsertByPhone, "":
		if payload.Phone == "" {
			return nil, NewValidationError("phone", "phone is required when upserting by phone")
		}
		return st.Customers.FindByPhone(ctx, tenantID, payload.Phone)
	default:
		return nil, NewValidationError("upsert_by", fmt.Sprintf("unknown upsert key %q", upsertBy))
	}
}

// Update modifies an existing customer, re-checking the contact invariant
func (s *CustomerService) Update(ctx context.Context, tenantID, id uuid.UUID, payload *CustomerPayload) (*models.Customer, error) {
	if err := s.scope.AssertActive(ctx, tenantID); err != nil {
		return nil, err
	}
	if err := payload.validate(); err != nil {
		return nil, err
	}

	customer, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := payload.apply(customer); err != nil {
		return nil, err
	}
	if err := s.uow.Stores().Customers.Update(ctx, customer); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("customer %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("customer update failed: %w", err)
	}
	return customer, nil
}
