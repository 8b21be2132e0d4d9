package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"workorder-service/internal/config"
	"workorder-service/internal/models"
)

// NewConnection creates a new database connection
func NewConnection(cfg *config.Config, log *logrus.Logger) (*gorm.DB, error) {
	logLevel := logger.Warn
	if cfg.IsDevelopment() {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.GetDatabaseDSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	log.WithFields(logrus.Fields{
		"host":     cfg.Database.Host,
		"database": cfg.Database.DBName,
	}).Info("Connected to database")

	return db, nil
}

// AutoMigrate runs database migrations
func AutoMigrate(db *gorm.DB, log *logrus.Logger) error {
	log.Info("Running database migrations")

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error; err != nil {
		log.WithError(err).Warn("Could not create pgcrypto extension (may already exist)")
	}

	modelsToMigrate := []interface{}{
		&models.Tenant{},
		&models.Customer{},
		&models.Product{},
		&models.InventoryMovement{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderEvent{},
		&models.SequenceCounter{},
	}

	for _, model := range modelsToMigrate {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	if err := createIndexes(db); err != nil {
		log.WithError(err).Warn("Could not create additional indexes")
	}

	log.Info("Database migrations completed")
	return nil
}

// createIndexes creates additional database indexes
func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// Listing orders by tenant and status, newest first
		`CREATE INDEX IF NOT EXISTS idx_orders_tenant_status_created
		 ON orders (tenant_id, status, created_at DESC)`,

		// Event timelines per order
		`CREATE INDEX IF NOT EXISTS idx_order_events_order_created
		 ON order_events (order_id, created_at DESC)`,

		// Movement history per product
		`CREATE INDEX IF NOT EXISTS idx_inventory_movements_product_created
		 ON inventory_movements (product_id, created_at DESC)`,

		// Customer upsert lookup by phone within a tenant
		`CREATE INDEX IF NOT EXISTS idx_customers_tenant_phone
		 ON customers (tenant_id, phone)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}

// HealthCheck verifies database connectivity
func HealthCheck(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
