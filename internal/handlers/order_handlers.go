package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"workorder-service/internal/middleware"
	"workorder-service/internal/models"
	"workorder-service/internal/repository"
	"workorder-service/internal/services"
)

// OrderHandlers handles HTTP requests for the work-order lifecycle
type OrderHandlers struct {
	orders *services.OrderService
	events *services.EventLog
	logger *logrus.Logger
}

// NewOrderHandlers creates a new order handlers instance
func NewOrderHandlers(orders *services.OrderService, events *services.EventLog, logger *logrus.Logger) *OrderHandlers {
	return &OrderHandlers{orders: orders, events: events, logger: logger}
}

func tenantFrom(c *gin.Context) (uuid.UUID, bool) {
	tenantID, ok := middleware.GetTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "MISSING_TENANT_ID",
			"message": "X-Tenant-ID header is required",
		})
		return uuid.Nil, false
	}
	return tenantID, true
}

// actorFrom builds the acting user from request headers
func actorFrom(c *gin.Context) models.Actor {
	return models.Actor{
		UserID:   c.GetHeader("X-User-ID"),
		UserName: c.GetHeader("X-User-Name"),
		UserRole: c.GetHeader("X-User-Role"),
	}
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "INVALID_REQUEST",
			"message": err.Error(),
		})
		return false
	}
	return true
}

// CreateOrder creates a new work order
// POST /api/v1/orders/create
func (h *OrderHandlers) CreateOrder(c *gin.Context) {
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}

	var req services.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	req.IdempotencyKey = c.GetHeader("Idempotency-Key")

	order, err := h.orders.CreateOrder(c.Request.Context(), tenantID, &req, actorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondCreated(c, order)
}

// GetOrder retrieves a single order with its items
// POST /api/v1/orders/get
func (h *OrderHandlers) GetOrder(c *gin.Context) {
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}

	var req struct {
		OrderID uuid.UUID `json:"order_id" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orders.Get(c.Request.Context(), tenantID, req.OrderID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, order)
}

// ListOrders lists orders newest-first
// POST /api/v1/orders/list
func (h *OrderHandlers) ListOrders(c *gin.Context) {
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}

	var req struct {
		Limit      int                `json:"limit"`
		Offset     int                `json:"offset"`
		Status     models.OrderStatus `json:"status"`
		CustomerID *uuid.UUID         `json:"customer_id"`
		Deleted    bool               `json:"deleted"`
	}
	if !bindJSON(c, &req) {
		return
	}

	orders, total, err := h.orders.List(c.Request.Context(), tenantID, repository.OrderFilter{
		Status:         req.Status,
		CustomerID:     req.CustomerID,
		IncludeDeleted: req.Deleted,
		Limit:          req.Limit,
		Offset:         req.Offset,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondList(c, orders, total)
}

// AddItem appends a line item to an order
// POST /api/v1/orders/items/add
func (h *OrderHandlers) AddItem(c *gin.Context) {
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}

	var req struct {
		OrderID uuid.UUID                 `json:"order_id" binding:"required"`
		Item    services.OrderItemPayload `json:"item" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orders.AddItem(c.Request.Context(), tenantID, req.OrderID, req.Item, actorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, order)
}

// RemoveItem removes a line item from an order
// POST /api/v1/orders/items/remove
func (h *OrderHandlers) RemoveItem(c *gin.Context) {
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}

	var req struct {
		OrderID uuid.UUID `json:"order_id" binding:"required"`
		ItemID  uuid.UUID `json:"item_id" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orders.RemoveItem(c.Request.Context(), tenantID, req.OrderID, req.ItemID, actorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, order)
}

// RecordPayment applies a payment against an order's balance
// POST /api/v1/orders/payments/add
func (h *OrderHandlers) RecordPayment(c *gin.Context) {
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}

	var req struct {
		OrderID uuid.UUID       `json:"order_id" binding:"required"`
		Amount  decimal.Decimal `json:"amount" binding:"required"`
		Method  string          `json:"method"`
	}
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orders.RecordPayment(c.Request.Context(), tenantID, req.OrderID,
		req.Amount, req.Method, c.GetHeader("Idempotency-Key"), actorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, order)
}

// TransitionOrder moves an order to a new status
// POST /api/v1/orders/status
func (h *OrderHandlers) TransitionOrder(c *gin.Context) {
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}

	var req struct {
		OrderID  uuid.UUID              `json:"order_id" binding:"required"`
		Status   models.OrderStatus     `json:"status" binding:"required"`
		Note     string                 `json:"note"`
		Metadata map[string]interface{} `json:"metadata"`
	}
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orders.Transition(c.Request.Context(), tenantID, req.OrderID,
		req.Status, req.Note, req.Metadata, actorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, order)
}

// AllowReopen grants the one-shot reopen on a terminal order
// POST /api/v1/orders/allow-reopen
func (h *OrderHandlers) AllowReopen(c *gin.Context) {
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}

	var req struct {
		OrderID uuid.UUID `json:"order_id" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orders.AllowReopen(c.Request.Context(), tenantID, req.OrderID, actorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, order)
}

// ReopenOrder consumes the reopen grant and returns the order to work
// POST /api/v1/orders/reopen
func (h *OrderHandlers) ReopenOrder(c *gin.Context) {
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}

	var req struct {
		OrderID uuid.UUID `json:"order_id" binding:"required"`
		Note    string    `json:"note"`
	}
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orders.Reopen(c.Request.Context(), tenantID, req.OrderID, req.Note, actorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, order)
}

// DeleteOrder archives an order
// POST /api/v1/orders/delete
func (h *OrderHandlers) DeleteOrder(c *gin.Context) {
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}

	var req struct {
		OrderID uuid.UUID `json:"order_id" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	if err := h.orders.SoftDelete(c.Request.Context(), tenantID, req.OrderID, actorFrom(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, gin.H{"order_id": req.OrderID, "deleted": true})
}

// AddEvent appends a manual event (note, checklist update) to an order
// POST /api/v1/orders/events/add
func (h *OrderHandlers) AddEvent(c *gin.Context) {
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}

	var event models.OrderEvent
	if !bindJSON(c, &event) {
		return
	}
	actor := actorFrom(c)
	if event.UserName == "" {
		event.UserID = actor.UserID
		event.UserName = actor.UserName
		event.UserRole = actor.UserRole
	}

	created, err := h.events.Append(c.Request.Context(), tenantID, &event)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondCreated(c, created)
}

// ListEvents returns the order's event timeline, newest first
// POST /api/v1/orders/events/list
func (h *OrderHandlers) ListEvents(c *gin.Context) {
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}

	var req struct {
		OrderID        uuid.UUID `json:"order_id" binding:"required"`
		IncludePrivate bool      `json:"include_private"`
	}
	if !bindJSON(c, &req) {
		return
	}

	events, err := h.events.List(c.Request.Context(), tenantID, req.OrderID, req.IncludePrivate)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	// count covers every recorded event, including private entries the
	// filter above may have hidden
	total, err := h.events.Count(c.Request.Context(), tenantID, req.OrderID)
	if err != nil {
		total = int64(len(events))
	}
	respondList(c, events, total)
}
