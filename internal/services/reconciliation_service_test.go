package services

import (
	"context"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workorder-service/internal/models"
)

func TestReconcileTenant_RepairsDriftedTotals(t *testing.T) {
	env := newTestEnv(t)
	customer := env.seedCustomer("555-0400")
	// Drifted projection
	customer.TotalOrders = 99
	customer.TotalSpent = decimal.NewFromInt(9999)

	paid := env.seedOrder(customer.ID, models.StatusPickedUp)
	paid.AmountPaid = decimal.NewFromInt(120)
	done := env.seedOrder(customer.ID, models.StatusCompleted)
	done.AmountPaid = decimal.NewFromInt(80)

	// Excluded from the projection: open, cancelled and archived orders
	env.seedOrder(customer.ID, models.StatusInProgress)
	env.seedOrder(customer.ID, models.StatusCancelled)
	archived := env.seedOrder(customer.ID, models.StatusPickedUp)
	archived.AmountPaid = decimal.NewFromInt(500)
	archived.Deleted = true

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	reconciler := NewReconciliationService(env.uow, logger)

	stats, err := reconciler.ReconcileTenant(context.Background(), env.tenantID)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.CustomersSeen)
	assert.Equal(t, 1, stats.CustomersFixed)

	got := env.db.customers[customer.ID]
	assert.Equal(t, int64(2), got.TotalOrders)
	assert.True(t, got.TotalSpent.Equal(decimal.NewFromInt(200)), "total spent = %s", got.TotalSpent)
}

func TestReconcileTenant_EmptyTenant(t *testing.T) {
	env := newTestEnv(t)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	reconciler := NewReconciliationService(env.uow, logger)

	stats, err := reconciler.ReconcileTenant(context.Background(), env.tenantID)
	require.NoError(t, err)
	assert.Zero(t, stats.CustomersSeen)
}
