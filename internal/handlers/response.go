package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"workorder-service/internal/services"
)

// storageBackend is reported in every response envelope
const storageBackend = "postgres"

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
		"backend": storageBackend,
	})
}

func respondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    data,
		"backend": storageBackend,
	})
}

func respondList(c *gin.Context, data interface{}, count int64) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
		"count":   count,
		"backend": storageBackend,
	})
}

func parseUUID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, services.NewValidationError(field, "must be a valid UUID")
	}
	return id, nil
}

// respondError maps service errors onto HTTP statuses. Unknown errors are
// logged and reported as a 500 without leaking internals.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	if ve, ok := services.IsValidationError(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "VALIDATION_ERROR",
			"field":   ve.Field,
			"message": ve.Message,
		})
		return
	}
	if ise, ok := services.IsInsufficientStock(err); ok {
		c.JSON(http.StatusConflict, gin.H{
			"success":    false,
			"error":      "INSUFFICIENT_STOCK",
			"message":    ise.Error(),
			"product_id": ise.ProductID,
			"requested":  ise.Requested,
			"available":  ise.Available,
		})
		return
	}
	if ite, ok := services.IsInvalidTransition(err); ok {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error":   "INVALID_TRANSITION",
			"message": ite.Error(),
			"from":    ite.From,
			"to":      ite.To,
			"allowed": ite.Allowed,
		})
		return
	}
	if _, ok := services.IsConcurrencyConflict(err); ok {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error":   "CONCURRENCY_CONFLICT",
			"message": "The record was modified concurrently, retry the request",
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "NOT_FOUND",
			"message": err.Error(),
		})
	case errors.Is(err, services.ErrTenantSuspended):
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "TENANT_SUSPENDED",
			"message": "The tenant account is suspended; writes are not allowed",
		})
	case errors.Is(err, services.ErrTenantMismatch):
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "TENANT_MISMATCH",
			"message": "The resource belongs to a different tenant",
		})
	case errors.Is(err, services.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "UNAVAILABLE",
			"message": "The storage backend is unavailable, retry later",
		})
	default:
		logger.WithError(err).Error("Unhandled service error")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "INTERNAL_ERROR",
			"message": "An unexpected error occurred",
		})
	}
}
