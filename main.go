// Package main provides the main entry point for the WhatsApp dispatch service
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/peykaro/whatsapp-dispatch/app/handlers"
	"github.com/peykaro/whatsapp-dispatch/app/queue"
	"github.com/peykaro/whatsapp-dispatch/app/router"
	"github.com/peykaro/whatsapp-dispatch/app/scheduler"
	"github.com/peykaro/whatsapp-dispatch/app/services"
	businessflow "github.com/peykaro/whatsapp-dispatch/business_flow"
	"github.com/peykaro/whatsapp-dispatch/config"
	"github.com/peykaro/whatsapp-dispatch/repository"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting WhatsApp dispatch service...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeRedis initializes the Redis client and verifies connectivity.
// Returns nil when the cache is disabled or a non-redis provider is set.
func initializeRedis(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeQueue builds the background job queue from configuration.
// The AMQP variant starts consuming immediately; the returned stop
// function drains in-flight jobs.
func initializeQueue(cfg config.QueueConfig, logger *log.Logger) (queue.Queue, func(), error) {
	switch cfg.Provider {
	case "amqp":
		q, err := queue.NewAMQPQueue(cfg.AMQPURL, cfg.QueueName, logger)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("AMQP queue connected (queue=%s)", cfg.QueueName)
		return q, func() { _ = q.Close() }, nil
	default:
		q := queue.NewInProcessQueue(logger)
		return q, func() { _ = q.Close() }, nil
	}
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()
	logger := log.Default()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeRedis(cfg.Cache)
	if err != nil {
		return nil, err
	}

	var cache services.Cache
	if rc != nil {
		cache = services.NewRedisCache(rc, cfg.Cache.RedisPrefix)
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, 30*time.Second))
	} else {
		cache = services.NewMemoryCache()
		log.Println("Using in-memory cache; dedup windows do not survive restarts")
	}

	// Initialize repositories
	accountRepo := repository.NewWhatsAppAccountRepository(db)
	templateRepo := repository.NewWhatsAppTemplateRepository(db)
	messageRepo := repository.NewWhatsAppMessageRepository(db)
	bulkRepo := repository.NewBulkMessageRepository(db)
	listRepo := repository.NewRecipientListRepository(db)
	ruleRepo := repository.NewNotificationRuleRepository(db)
	notificationLogRepo := repository.NewNotificationLogRepository(db)
	contactRepo := repository.NewContactRepository(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	documentRepo := repository.NewBusinessDocumentRepository(db)

	// Initialize services
	dedup := services.NewDedupGuard(cache, logger)
	if cfg.Dedup.TextTTL > 0 {
		dedup.TextTTL = cfg.Dedup.TextTTL
	}
	if cfg.Dedup.MediaTTL > 0 {
		dedup.MediaTTL = cfg.Dedup.MediaTTL
	}
	if cfg.Dedup.NotificationTTL > 0 {
		dedup.NotificationTTL = cfg.Dedup.NotificationTTL
	}

	provider := services.NewEvolutionClient(dedup, logger)
	provider.ConfigureTimeouts(cfg.Provider.TextTimeout, cfg.Provider.MediaTimeout)

	balanceService := services.NewLedgerBalanceService(db, cfg.Accounting.Enabled)

	// Initialize queue
	q, stopQueue, err := initializeQueue(cfg.Queue, logger)
	if err != nil {
		return nil, err
	}
	stopFuncs = append(stopFuncs, stopQueue)

	// Initialize flows
	resolver := businessflow.NewRecipientResolver(contactRepo, employeeRepo, logger)
	renderer := businessflow.NewTemplateRenderer(balanceService)
	evaluator := businessflow.NewSimpleConditionEvaluator()
	documentStore := businessflow.NewRepositoryDocumentStore(documentRepo)

	dispatchFlow := businessflow.NewDispatchFlow(
		messageRepo,
		templateRepo,
		accountRepo,
		renderer,
		resolver,
		provider,
		dedup,
		q,
		businessflow.DispatchConfig{
			ProviderDefaults: services.ProviderSettings{
				BaseURL:       cfg.Provider.BaseURL,
				APIKey:        cfg.Provider.APIKey,
				Instance:      cfg.Provider.Instance,
				TextEndpoint:  cfg.Provider.TextEndpoint,
				MediaEndpoint: cfg.Provider.MediaEndpoint,
			},
			DuplicateLookback: cfg.Dedup.DuplicateLookback,
		},
		logger,
	)

	notificationFlow := businessflow.NewNotificationFlow(
		ruleRepo,
		notificationLogRepo,
		templateRepo,
		dispatchFlow,
		resolver,
		evaluator,
		documentStore,
		cache,
		dedup,
		logger,
	)

	bulkFlow := businessflow.NewBulkFlow(
		bulkRepo,
		listRepo,
		messageRepo,
		templateRepo,
		accountRepo,
		dispatchFlow,
		q,
		cfg.Bulk.DefaultDelay,
		logger,
	)

	recipientListFlow := businessflow.NewRecipientListFlow(listRepo, contactRepo, logger)
	accountFlow := businessflow.NewAccountFlow(accountRepo, logger)

	// Bind background tasks before any enqueue can happen
	dispatchFlow.RegisterHandlers(q)
	bulkFlow.RegisterHandlers(q)

	if amqpQueue, ok := q.(*queue.AMQPQueue); ok {
		if err := amqpQueue.Start(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to start queue consumer: %w", err)
		}
	}

	// Initialize handlers
	messageHandler := handlers.NewMessageHandler(dispatchFlow)
	webhookHandler := handlers.NewWebhookHandler(messageRepo)
	bulkHandler := handlers.NewBulkHandler(bulkFlow)
	recipientHandler := handlers.NewRecipientListHandler(recipientListFlow)
	eventHandler := handlers.NewEventHandler(notificationFlow, documentRepo)
	accountHandler := handlers.NewAccountHandler(accountFlow)

	// Initialize router
	appRouter := router.NewFiberRouter(
		messageHandler,
		webhookHandler,
		bulkHandler,
		recipientHandler,
		eventHandler,
		accountHandler,
		router.Config{
			AllowedOrigins:  cfg.Security.AllowedOrigins,
			BodyLimit:       cfg.Server.BodyLimit,
			ReadTimeout:     cfg.Server.ReadTimeout,
			WriteTimeout:    cfg.Server.WriteTimeout,
			IdleTimeout:     cfg.Server.IdleTimeout,
			RateLimit:       cfg.Security.GlobalRateLimit,
			RateLimitWindow: cfg.Security.RateLimitWindow,
			EnableMetrics:   cfg.Server.EnableMetrics,
		},
	)

	if cfg.Scheduler.Enabled {
		sched := scheduler.NewNotificationScheduler(notificationFlow, cfg.Scheduler.Interval, scheduler.LogConfig{
			Output:     cfg.Logging.Output,
			FilePath:   cfg.Logging.FilePath,
			MaxSizeMB:  cfg.Logging.MaxSize,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAge,
			Compress:   cfg.Logging.Compress,
		})
		stopScheduler := sched.Start(context.Background())
		stopFuncs = append(stopFuncs, stopScheduler)
	}

	// Create application struct from FiberRouter
	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}
