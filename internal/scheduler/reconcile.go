package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"workorder-service/internal/config"
	"workorder-service/internal/repository"
	"workorder-service/internal/services"
)

// ReconcileScheduler periodically rebuilds the customer totals projection
// for every active tenant
type ReconcileScheduler struct {
	reconciler *services.ReconciliationService
	uow        repository.UnitOfWork
	config     config.ReconcileConfig
	logger     *logrus.Logger
	cron       *cron.Cron
	mu         sync.Mutex
	running    bool
	lastRun    time.Time
}

// NewReconcileScheduler creates a new reconcile scheduler
func NewReconcileScheduler(
	reconciler *services.ReconciliationService,
	uow repository.UnitOfWork,
	cfg config.ReconcileConfig,
	logger *logrus.Logger,
) *ReconcileScheduler {
	return &ReconcileScheduler{
		reconciler: reconciler,
		uow:        uow,
		config:     cfg,
		logger:     logger,
	}
}

// Start starts the reconcile scheduler
func (s *ReconcileScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if !s.config.Enabled {
		s.logger.Info("Customer totals reconciliation is disabled")
		return nil
	}

	s.cron = cron.New(cron.WithSeconds())

	schedule := s.config.Schedule
	if schedule == "" {
		schedule = "0 0 3 * * *" // Default: 3 AM daily (with seconds)
	}

	// Standard cron has 5 fields, robfig/cron with WithSeconds() expects 6
	fields := strings.Fields(schedule)
	if len(fields) == 5 {
		schedule = "0 " + schedule
	}

	_, err := s.cron.AddFunc(schedule, s.runReconcile)
	if err != nil {
		s.logger.WithError(err).Error("Failed to schedule reconciliation job")
		return err
	}

	s.cron.Start()
	s.running = true

	s.logger.WithField("schedule", s.config.Schedule).Info("Reconciliation scheduler started")
	return nil
}

// Stop stops the reconcile scheduler
func (s *ReconcileScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.cron == nil {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.logger.Info("Reconciliation scheduler stopped")
}

// runReconcile sweeps every active tenant
func (s *ReconcileScheduler) runReconcile() {
	ctx := context.Background()
	startTime := time.Now()

	s.logger.Info("Starting scheduled customer totals reconciliation")

	tenants, err := s.uow.Stores().Tenants.ListActiveIDs(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list tenants for reconciliation")
		return
	}

	var processed, failed int
	for _, tenantID := range tenants {
		if _, err := s.reconciler.ReconcileTenant(ctx, tenantID); err != nil {
			s.logger.WithError(err).WithField("tenant_id", tenantID).Warn("Failed to reconcile tenant")
			failed++
			continue
		}
		processed++
	}

	s.mu.Lock()
	s.lastRun = startTime
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"tenants_total":     len(tenants),
		"tenants_processed": processed,
		"tenants_failed":    failed,
		"duration":          time.Since(startTime).String(),
	}).Info("Completed scheduled reconciliation")
}

// RunNow triggers an immediate reconciliation sweep
func (s *ReconcileScheduler) RunNow() {
	go s.runReconcile()
}

// IsRunning returns whether the scheduler is running
func (s *ReconcileScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// GetStats returns scheduler statistics
func (s *ReconcileScheduler) GetStats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := map[string]interface{}{
		"running":  s.running,
		"enabled":  s.config.Enabled,
		"schedule": s.config.Schedule,
	}
	if !s.lastRun.IsZero() {
		stats["last_run"] = s.lastRun.Format(time.RFC3339)
	}
	if s.cron != nil && s.running {
		entries := s.cron.Entries()
		if len(entries) > 0 {
			stats["next_run"] = entries[0].Next.Format(time.RFC3339)
		}
	}
	return stats
}
