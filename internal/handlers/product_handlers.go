package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"workorder-service/internal/models"
	"workorder-service/internal/services"
)

// ProductHandlers handles HTTP requests for the product catalog and the
// inventory ledger
type ProductHandlers struct {
	ledger *services.InventoryLedger
	logger *logrus.Logger
}

// NewProductHandlers creates a new product handlers instance
func NewProductHandlers(ledger *services.InventoryLedger, logger *logrus.Logger) *ProductHandlers {
	return &ProductHandlers{ledger: ledger, logger: logger}
}

// CreateProduct adds a product to the catalog
// POST /api/v1/products/create
func (h *ProductHandlers) CreateProduct(c *gin.Context) {
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}

	var payload services.ProductPayload
	if !bindJSON(c, &payload) {
		return
	}

	product, err := h.ledger.CreateProduct(c.Request.Context(), tenantID, &payload, actorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondCreated(c, product)
}

// GetProduct retrieves a product by ID
// POST /api/v1/products/get
func (h *ProductHandlers) GetProduct(c *gin.Context) {
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}

	var req struct {
		ProductID uuid.UUID `json:"product_id" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.ledger.GetProduct(c.Request.Context(), tenantID, req.ProductID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, product)
}

// AdjustStock applies a manual stock adjustment or restock
// POST /api/v1/products/adjust-stock
func (h *ProductHandlers) AdjustStock(c *gin.Context) {
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}

	var req struct {
		ProductID     uuid.UUID           `json:"product_id" binding:"required"`
		Delta         int                 `json:"delta" binding:"required"`
		MovementType  models.MovementType `json:"movement_type" binding:"required"`
		ReferenceType string              `json:"reference_type"`
		ReferenceID   string              `json:"reference_id"`
	}
	if !bindJSON(c, &req) {
		return
	}

	movement, err := h.ledger.AdjustStandalone(c.Request.Context(), tenantID, services.AdjustRequest{
		ProductID:     req.ProductID,
		Delta:         req.Delta,
		MovementType:  req.MovementType,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		Actor:         actorFrom(c),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondCreated(c, movement)
}

// ListMovements returns the newest ledger entries for a product
// POST /api/v1/products/movements
func (h *ProductHandlers) ListMovements(c *gin.Context) {
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}

	var req struct {
		ProductID uuid.UUID `json:"product_id" binding:"required"`
		Limit     int       `json:"limit"`
	}
	if !bindJSON(c, &req) {
		return
	}

	movements, err := h.ledger.Movements(c.Request.Context(), tenantID, req.ProductID, req.Limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondList(c, movements, int64(len(movements)))
}

// ListLowStock returns active products at or below their reorder threshold
// GET /api/v1/products/low-stock
func (h *ProductHandlers) ListLowStock(c *gin.Context) {
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}

	products, err := h.ledger.LowStock(c.Request.Context(), tenantID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondList(c, products, int64(len(products)))
}
