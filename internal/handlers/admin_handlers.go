package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"workorder-service/internal/database"
	"workorder-service/internal/models"
	"workorder-service/internal/scheduler"
	"workorder-service/internal/services"
)

// AdminHandlers handles tenant administration and internal maintenance
// endpoints. These sit outside the tenant-scoped API group.
type AdminHandlers struct {
	scope      *services.TenantScope
	reconciler *services.ReconciliationService
	schedule   *scheduler.ReconcileScheduler
	db         *gorm.DB
	logger     *logrus.Logger
}

// NewAdminHandlers creates a new admin handlers instance
func NewAdminHandlers(
	scope *services.TenantScope,
	reconciler *services.ReconciliationService,
	schedule *scheduler.ReconcileScheduler,
	db *gorm.DB,
	logger *logrus.Logger,
) *AdminHandlers {
	return &AdminHandlers{
		scope:      scope,
		reconciler: reconciler,
		schedule:   schedule,
		db:         db,
		logger:     logger,
	}
}

// Health reports service and database health
// GET /health
func (h *AdminHandlers) Health(c *gin.Context) {
	if err := database.HealthCheck(h.db); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "unreachable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "workorder-service",
		"backend": storageBackend,
	})
}

// CreateTenant provisions a new tenant account
// POST /api/v1/internal/tenants/create
func (h *AdminHandlers) CreateTenant(c *gin.Context) {
	var req struct {
		Name string            `json:"name" binding:"required"`
		Slug string            `json:"slug" binding:"required"`
		Plan models.TenantPlan `json:"plan"`
	}
	if !bindJSON(c, &req) {
		return
	}

	tenant, err := h.scope.CreateTenant(c.Request.Context(), req.Name, req.Slug, req.Plan)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondCreated(c, tenant)
}

// SetTenantStatus suspends or reactivates a tenant account
// POST /api/v1/internal/tenants/status
func (h *AdminHandlers) SetTenantStatus(c *gin.Context) {
	var req struct {
		TenantID string              `json:"tenant_id" binding:"required"`
		Status   models.TenantStatus `json:"status" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	tenantID, err := parseUUID(req.TenantID, "tenant_id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if err := h.scope.SetTenantStatus(c.Request.Context(), tenantID, req.Status); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, gin.H{"tenant_id": tenantID, "status": req.Status})
}

// ReconcileCustomers rebuilds the customer totals projection for one
// tenant immediately
// POST /api/v1/internal/reconcile-customers
func (h *AdminHandlers) ReconcileCustomers(c *gin.Context) {
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}

	stats, err := h.reconciler.ReconcileTenant(c.Request.Context(), tenantID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, stats)
}

// SchedulerStats reports the reconciliation scheduler state
// GET /api/v1/internal/scheduler/stats
func (h *AdminHandlers) SchedulerStats(c *gin.Context) {
	respondOK(c, h.schedule.GetStats())
}
