package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"workorder-service/internal/models"
	"workorder-service/internal/repository"
)

// InventoryLedger is the only component allowed to change product stock.
// Every change writes the product's new level and an immutable movement
// row as one atomic unit.
type InventoryLedger struct {
	uow    repository.UnitOfWork
	scope  *TenantScope
	logger *logrus.Logger
}

// NewInventoryLedger creates a new inventory ledger
func NewInventoryLedger(uow repository.UnitOfWork, scope *TenantScope, logger *logrus.Logger) *InventoryLedger {
	return &InventoryLedger{uow: uow, scope: scope, logger: logger}
}

// AdjustRequest describes one stock adjustment
type AdjustRequest struct {
	ProductID     uuid.UUID
	Delta         int
	MovementType  models.MovementType
	ReferenceType string
	ReferenceID   string
	Actor         models.Actor
}

func (req *AdjustRequest) validate() error {
	if req.Delta == 0 {
		return NewValidationError("delta", "adjustment delta must be non-zero")
	}
	switch req.MovementType {
	case models.MovementPurchase, models.MovementSale, models.MovementAdjustment, models.MovementReturn:
		return nil
	default:
		return NewValidationError("movement_type", fmt.Sprintf("unknown movement type %q", req.MovementType))
	}
}

// Adjust changes a product's stock inside the caller's unit of work. The
// product row is locked for the rest of the transaction, so two concurrent
// adjustments on the same product serialize: the second sees the first
// one's stock. InsufficientStock leaves nothing written.
func (l *InventoryLedger) Adjust(ctx context.Context, st *repository.Stores, tenantID uuid.UUID, req AdjustRequest) (*models.InventoryMovement, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	product, err := st.Products.GetForUpdate(ctx, tenantID, req.ProductID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("product %s: %w", req.ProductID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	previous := product.Stock
	next := previous + req.Delta
	if next < 0 {
		return nil, &InsufficientStockError{
			ProductID: product.ID,
			Requested: -req.Delta,
			Available: previous,
		}
	}

	product.Stock = next
	if err := st.Products.UpdateStock(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to write stock for product %s: %w", product.ID, err)
	}

	movement := &models.InventoryMovement{
		TenantID:      tenantID,
		ProductID:     product.ID,
		MovementType:  req.MovementType,
		Quantity:      req.Delta,
		PreviousStock: previous,
		NewStock:      next,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		PerformedBy:   req.Actor.UserName,
	}
	if err := st.Products.CreateMovement(ctx, movement); err != nil {
		return nil, fmt.Errorf("failed to record movement for product %s: %w", product.ID, err)
	}

	l.logger.WithFields(logrus.Fields{
		"tenant_id":  tenantID,
		"product_id": product.ID,
		"delta":      req.Delta,
		"new_stock":  next,
		"type":       req.MovementType,
	}).Debug("Stock adjusted")
	return movement, nil
}

// ProductPayload carries the writable product fields
type ProductPayload struct {
	SKU      string          `json:"sku"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Cost     decimal.Decimal `json:"cost"`
	Stock    int             `json:"stock"`
	MinStock int             `json:"min_stock"`
}

// CreateProduct adds a product to the catalog. A non-zero opening stock
// writes a purchase movement so the ledger starts balanced.
func (l *InventoryLedger) CreateProduct(ctx context.Context, tenantID uuid.UUID, payload *ProductPayload, actor models.Actor) (*models.Product, error) {
	if err := l.scope.AssertActive(ctx, tenantID); err != nil {
		return nil, err
	}
	if payload.Name == "" {
		return nil, NewValidationError("name", "product name is required")
	}
	if payload.Price.IsNegative() || payload.Cost.IsNegative() {
		return nil, NewValidationError("price", "price and cost must not be negative")
	}
	if payload.Stock < 0 {
		return nil, NewValidationError("stock", "opening stock must not be negative")
	}

	product := &models.Product{
		TenantID: tenantID,
		SKU:      payload.SKU,
		Name:     payload.Name,
		Price:    payload.Price,
		Cost:     payload.Cost,
		Stock:    0,
		MinStock: payload.MinStock,
		Active:   true,
	}
	err := l.uow.Do(ctx, func(st *repository.Stores) error {
		if err := st.Products.Create(ctx, product); err != nil {
			return err
		}
		if payload.Stock == 0 {
			return nil
		}
		_, err := l.Adjust(ctx, st, tenantID, AdjustRequest{
			ProductID:     product.ID,
			Delta:         payload.Stock,
			MovementType:  models.MovementPurchase,
			ReferenceType: "opening_stock",
			Actor:         actor,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

// GetProduct retrieves a product by ID
func (l *InventoryLedger) GetProduct(ctx context.Context, tenantID, id uuid.UUID) (*models.Product, error) {
	product, err := l.uow.Stores().Products.GetByID(ctx, tenantID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return product, nil
}

// AdjustStandalone runs a single adjustment in its own unit of work, for
// restocks and manual corrections outside an order mutation.
func (l *InventoryLedger) AdjustStandalone(ctx context.Context, tenantID uuid.UUID, req AdjustRequest) (*models.InventoryMovement, error) {
	if err := l.scope.AssertActive(ctx, tenantID); err != nil {
		return nil, err
	}

	var movement *models.InventoryMovement
	err := l.uow.Do(ctx, func(st *repository.Stores) error {
		var err error
		movement, err = l.Adjust(ctx, st, tenantID, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

// Movements returns the newest movement records for a product
func (l *InventoryLedger) Movements(ctx context.Context, tenantID, productID uuid.UUID, limit int) ([]models.InventoryMovement, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	movements, err := l.uow.Stores().Products.ListMovements(ctx, tenantID, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return movements, nil
}

// LowStock returns active products at or below their reorder threshold
func (l *InventoryLedger) LowStock(ctx context.Context, tenantID uuid.UUID) ([]models.Product, error) {
	products, err := l.uow.Stores().Products.ListLowStock(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return products, nil
}
