package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"workorder-service/internal/config"
	"workorder-service/internal/database"
	"workorder-service/internal/handlers"
	"workorder-service/internal/idempotency"
	"workorder-service/internal/middleware"
	wonats "workorder-service/internal/nats"
	"workorder-service/internal/repository"
	"workorder-service/internal/scheduler"
	"workorder-service/internal/services"
)

// @title Work Order Service API
// @version 1.0
// @description Multi-tenant work-order lifecycle service for repair shops:
// @description customers, inventory ledger, order state machine and event log
// @BasePath /api/v1
func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
	})
	if cfg.IsProduction() {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Connect to PostgreSQL and run migrations
	db, err := database.NewConnection(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.AutoMigrate(db, logger); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize Redis client for the idempotency store
	redisClient := initRedis(cfg, logger)
	defer func() {
		if redisClient != nil {
			redisClient.Close()
		}
	}()
	idemStore := idempotency.NewStore(redisClient, time.Duration(cfg.Redis.IdempotencyTTL)*time.Second, logger)

	// Initialize NATS client for change notifications
	var natsClient *wonats.Client
	var natsPublisher *wonats.Publisher
	if cfg.NATS.Enabled {
		natsClient, err = wonats.NewClient(wonats.Config{
			URL:           cfg.NATS.URL,
			MaxReconnects: cfg.NATS.MaxReconnects,
			ReconnectWait: time.Duration(cfg.NATS.ReconnectWait) * time.Second,
		}, logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize NATS, change notifications disabled")
		} else {
			natsPublisher = wonats.NewPublisher(natsClient, logger)
			logger.Info("NATS client initialized for change notifications")
		}
	} else {
		logger.Info("NATS disabled, change notifications off")
	}
	defer func() {
		if natsClient != nil {
			natsClient.Close()
		}
	}()

	// Wire repositories and services
	uow := repository.NewGormUnitOfWork(db)
	tenantScope := services.NewTenantScope(uow, logger)
	customerService := services.NewCustomerService(uow, tenantScope, logger)
	inventoryLedger := services.NewInventoryLedger(uow, tenantScope, logger)
	eventLog := services.NewEventLog(uow, tenantScope, natsPublisher, logger)
	orderService := services.NewOrderService(uow, tenantScope, inventoryLedger, eventLog,
		idemStore, services.PaymentPolicy(cfg.Orders.PaymentPolicy), logger)
	reconciler := services.NewReconciliationService(uow, logger)

	// Start the customer totals reconciliation scheduler
	reconcileScheduler := scheduler.NewReconcileScheduler(reconciler, uow, cfg.Reconcile, logger)
	if err := reconcileScheduler.Start(); err != nil {
		logger.WithError(err).Warn("Failed to start reconciliation scheduler (continuing without it)")
	}
	defer reconcileScheduler.Stop()

	// Initialize handlers
	orderHandlers := handlers.NewOrderHandlers(orderService, eventLog, logger)
	customerHandlers := handlers.NewCustomerHandlers(customerService, logger)
	productHandlers := handlers.NewProductHandlers(inventoryLedger, logger)
	adminHandlers := handlers.NewAdminHandlers(tenantScope, reconciler, reconcileScheduler, db, logger)

	// Setup router
	router := setupRouter(cfg, logger, orderHandlers, customerHandlers, productHandlers, adminHandlers)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down Work Order Service...")

		reconcileScheduler.Stop()
		if natsClient != nil {
			natsClient.Close()
		}
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}

		log.Println("Work order service stopped")
		os.Exit(0)
	}()

	// Start server
	log.Printf("Starting Work Order Service on %s", cfg.GetServerAddress())
	if err := router.Run(cfg.GetServerAddress()); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// initRedis initializes the Redis client
func initRedis(cfg *config.Config, logger *logrus.Logger) *redis.Client {
	if cfg.Redis.URL == "" {
		logger.Warn("Redis URL not configured, idempotency keys disabled")
		return nil
	}

	opt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.WithError(err).Warn("Failed to parse Redis URL, idempotency keys disabled")
		return nil
	}

	opt.MaxRetries = cfg.Redis.MaxRetries
	opt.PoolSize = cfg.Redis.PoolSize
	opt.MinIdleConns = cfg.Redis.MinIdleConns
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("Failed to connect to Redis, idempotency keys disabled")
		return nil
	}

	logger.Info("Redis connection established")
	return client
}

// setupRouter configures the Gin router with middleware and routes
func setupRouter(
	cfg *config.Config,
	logger *logrus.Logger,
	orderHandlers *handlers.OrderHandlers,
	customerHandlers *handlers.CustomerHandlers,
	productHandlers *handlers.ProductHandlers,
	adminHandlers *handlers.AdminHandlers,
) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.SetupCORS())

	// Health check endpoints
	router.GET("/health", adminHandlers.Health)
	router.GET("/ready", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ready", "service": "workorder-service"})
	})

	api := router.Group("/api/v1")

	// Tenant provisioning sits outside the tenant-scoped group
	internalTenants := api.Group("/internal/tenants")
	{
		internalTenants.POST("/create", adminHandlers.CreateTenant)
		internalTenants.POST("/status", adminHandlers.SetTenantStatus)
	}
	api.GET("/internal/scheduler/stats", adminHandlers.SchedulerStats)

	// Tenant-scoped routes require a valid X-Tenant-ID
	scoped := api.Group("")
	scoped.Use(middleware.RequireTenantID())
	{
		customers := scoped.Group("/customers")
		{
			customers.POST("/get", customerHandlers.GetCustomer)
			customers.POST("/search", customerHandlers.SearchCustomers)
			customers.POST("/upsert", customerHandlers.UpsertCustomer)
			customers.POST("/update", customerHandlers.UpdateCustomer)
		}

		orders := scoped.Group("/orders")
		{
			orders.POST("/create", orderHandlers.CreateOrder)
			orders.POST("/get", orderHandlers.GetOrder)
			orders.POST("/list", orderHandlers.ListOrders)
			orders.POST("/items/add", orderHandlers.AddItem)
			orders.POST("/items/remove", orderHandlers.RemoveItem)
			orders.POST("/payments/add", orderHandlers.RecordPayment)
			orders.POST("/status", orderHandlers.TransitionOrder)
			orders.POST("/allow-reopen", orderHandlers.AllowReopen)
			orders.POST("/reopen", orderHandlers.ReopenOrder)
			orders.POST("/delete", orderHandlers.DeleteOrder)
			orders.POST("/events/add", orderHandlers.AddEvent)
			orders.POST("/events/list", orderHandlers.ListEvents)
		}

		products := scoped.Group("/products")
		{
			products.POST("/create", productHandlers.CreateProduct)
			products.POST("/get", productHandlers.GetProduct)
			products.POST("/adjust-stock", productHandlers.AdjustStock)
			products.POST("/movements", productHandlers.ListMovements)
			products.GET("/low-stock", productHandlers.ListLowStock)
		}

		scoped.POST("/internal/reconcile-customers", adminHandlers.ReconcileCustomers)
	}

	return router
}
