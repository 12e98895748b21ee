package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jimmi21/LogistikoCRM-sub003/internal/automation"
	"github.com/jimmi21/LogistikoCRM-sub003/internal/config"
	"github.com/jimmi21/LogistikoCRM-sub003/internal/dispatcher"
	"github.com/jimmi21/LogistikoCRM-sub003/internal/docstore"
	"github.com/jimmi21/LogistikoCRM-sub003/internal/engine"
	"github.com/jimmi21/LogistikoCRM-sub003/internal/handler"
	"github.com/jimmi21/LogistikoCRM-sub003/internal/metrics"
	"github.com/jimmi21/LogistikoCRM-sub003/internal/scheduler"
	"github.com/jimmi21/LogistikoCRM-sub003/internal/store"
)

func main() {
	// Configure logging
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	logrus.Info("Starting Logistiko obligation engine")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Configuration validation failed: %v", err)
	}

	// Initialize database
	st, err := initDatabase(cfg.Database)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize metrics
	m := metrics.New()

	// Initialize document storage when enabled
	var docs engine.DocumentStore
	var attachments dispatcher.AttachmentFetcher
	if cfg.Storage.Enabled {
		objects, err := docstore.NewS3Store(cfg.Storage.Region, cfg.Storage.Bucket, cfg.Storage.Endpoint)
		if err != nil {
			logrus.Fatalf("Failed to initialize document storage: %v", err)
		}
		svc := docstore.NewService(objects, st)
		docs = svc
		attachments = svc
		logrus.Infof("Document storage enabled, bucket %s", cfg.Storage.Bucket)
	} else {
		logrus.Info("Document storage disabled")
	}

	// Initialize the rule evaluator and lifecycle engine
	evaluator := automation.NewEvaluator(st, cfg.Company.CompanyName, cfg.Company.AccountantName, m)
	generator := engine.NewGenerator(st, m)
	lifecycle := engine.NewLifecycle(st, docs, evaluator, generator, m)

	// Initialize the outbox dispatcher
	sender := dispatcher.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port,
		cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From, cfg.Dispatcher.MaxRetries)
	disp := dispatcher.New(st, sender, attachments, cfg.Dispatcher.RatePerSecond, cfg.Dispatcher.Workers, m)

	// Initialize scheduler
	sched := scheduler.NewScheduler(&cfg.Sweep, evaluator, lifecycle, disp, m)

	// Initialize HTTP handlers
	handlers := handler.NewHandlers(st, generator, lifecycle, evaluator, sched, m)

	// Setup HTTP server
	router := setupRouter(handlers)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start scheduler
	if err := sched.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop scheduler and wait for in-flight sweeps
	if err := sched.Stop(); err != nil {
		logrus.Errorf("Failed to stop scheduler: %v", err)
	}
	sched.Wait()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	logrus.Info("Server stopped gracefully")
}

// initDatabase initializes the database connection and runs migrations
func initDatabase(cfg config.DatabaseConfig) (*store.Store, error) {
	// Configure GORM logger
	gormLogger := logger.New(
		logrus.StandardLogger(),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	// Connect to database. TranslateError turns driver duplicate-key
	// errors into gorm.ErrDuplicatedKey, which the generation and sweep
	// paths rely on for their skip semantics.
	db, err := gorm.Open(mysql.Open(cfg.GetDSN()), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying SQL DB for connection pool settings
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	st := store.New(db)

	// Run migrations
	logrus.Info("Running database migrations...")
	if err := st.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logrus.Info("Database initialized successfully")
	return st, nil
}

// setupRouter sets up the HTTP router with middleware
func setupRouter(handlers *handler.Handlers) *gin.Engine {
	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	// Create router
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware())

	// Setup routes
	handlers.SetupRoutes(router)

	return router
}

// loggerMiddleware adds logging middleware
func loggerMiddleware() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	})
}
