package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"workorder-service/internal/services"
)

// CustomerHandlers handles HTTP requests for the customer registry
type CustomerHandlers struct {
	customers *services.CustomerService
	logger    *logrus.Logger
}

// NewCustomerHandlers creates a new customer handlers instance
func NewCustomerHandlers(customers *services.CustomerService, logger *logrus.Logger) *CustomerHandlers {
	return &CustomerHandlers{customers: customers, logger: logger}
}

// GetCustomer retrieves a customer by ID
// POST /api/v1/customers/get
func (h *CustomerHandlers) GetCustomer(c *gin.Context) {
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}

	var req struct {
		CustomerID uuid.UUID `json:"customer_id" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	customer, err := h.customers.Get(c.Request.Context(), tenantID, req.CustomerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, customer)
}

// SearchCustomers searches by name, phone or email with exact-phone
// matches ranked first
// POST /api/v1/customers/search
func (h *CustomerHandlers) SearchCustomers(c *gin.Context) {
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}

	var req struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if !bindJSON(c, &req) {
		return
	}

	customers, err := h.customers.Search(c.Request.Context(), tenantID, req.Query, req.Limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondList(c, customers, int64(len(customers)))
}

// UpsertCustomer creates or updates a customer matched by phone or email
// POST /api/v1/customers/upsert
func (h *CustomerHandlers) UpsertCustomer(c *gin.Context) {
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}

	var req struct {
		Customer services.CustomerPayload `json:"customer" binding:"required"`
		UpsertBy services.UpsertBy        `json:"upsert_by"`
	}
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.customers.Upsert(c.Request.Context(), tenantID, &req.Customer, req.UpsertBy)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if result.Created {
		respondCreated(c, result)
		return
	}
	respondOK(c, result)
}

// UpdateCustomer updates a customer's contact fields
// POST /api/v1/customers/update
func (h *CustomerHandlers) UpdateCustomer(c *gin.Context) {
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}

	var req struct {
		CustomerID uuid.UUID                `json:"customer_id" binding:"required"`
		Customer   services.CustomerPayload `json:"customer" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	customer, err := h.customers.Update(c.Request.Context(), tenantID, req.CustomerID, &req.Customer)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, customer)
}
