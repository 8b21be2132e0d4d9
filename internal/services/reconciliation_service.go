package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"workorder-service/internal/repository"
)

// recomputeCustomerTotals replays the customer's orders and writes the
// derived totals. total_orders counts non-archived orders that reached a
// terminal paid status; total_spent sums their payments. Running inside
// the transition's transaction keeps the projection consistent with the
// order that just closed.
func recomputeCustomerTotals(ctx context.Context, st *repository.Stores, tenantID, customerID uuid.UUID) error {
	orders, err := st.Orders.ListByCustomer(ctx, tenantID, customerID)
	if err != nil {
		return err
	}

	var totalOrders int64
	totalSpent := decimal.Zero
	for i := range orders {
		o := &orders[i]
		if o.Deleted || !o.Status.IsTerminalPaid() {
			continue
		}
		totalOrders++
		totalSpent = totalSpent.Add(o.AmountPaid)
	}
	return st.Customers.UpdateTotals(ctx, tenantID, customerID, totalOrders, totalSpent.Round(2))
}

// ReconciliationStats summarizes one reconciliation run
type ReconciliationStats struct {
	TenantID       uuid.UUID `json:"tenant_id"`
	CustomersSeen  int       `json:"customers_seen"`
	CustomersFixed int       `json:"customers_fixed"`
	Duration       string    `json:"duration"`
	RanAt          time.Time `json:"ran_at"`
}

// ReconciliationService rebuilds the customer totals projection from the
// order history. The projection is rolled forward inline on every
// terminal transition; this job repairs drift from crashes or manual
// database surgery.
type ReconciliationService struct {
	uow    repository.UnitOfWork
	logger *logrus.Logger
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(uow repository.UnitOfWork, logger *logrus.Logger) *ReconciliationService {
	return &ReconciliationService{uow: uow, logger: logger}
}

// ReconcileTenant recomputes totals for every customer of the tenant.
// Each customer is its own transaction so one bad row does not block the
// rest of the sweep.
func (s *ReconciliationService) ReconcileTenant(ctx context.Context, tenantID uuid.UUID) (*ReconciliationStats, error) {
	start := time.Now()

	ids, err := s.uow.Stores().Customers.ListIDs(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	stats := &ReconciliationStats{TenantID: tenantID, RanAt: start}
	for _, customerID := range ids {
		stats.CustomersSeen++
		err := s.uow.Do(ctx, func(st *repository.Stores) error {
			return recomputeCustomerTotals(ctx, st, tenantID, customerID)
		})
		if err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"tenant_id":   tenantID,
				"customer_id": customerID,
			}).Warn("Failed to reconcile customer totals")
			continue
		}
		stats.CustomersFixed++
	}

	stats.Duration = time.Since(start).String()
	s.logger.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"seen":      stats.CustomersSeen,
		"fixed":     stats.CustomersFixed,
		"duration":  stats.Duration,
	}).Info("Customer totals reconciled")
	return stats, nil
}
