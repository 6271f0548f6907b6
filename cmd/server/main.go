package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mercadito/storefront-backend/config"
	"github.com/mercadito/storefront-backend/internal/app/controller"
	"github.com/mercadito/storefront-backend/internal/app/model"
	"github.com/mercadito/storefront-backend/internal/app/repository"
	"github.com/mercadito/storefront-backend/internal/app/service"
	"github.com/mercadito/storefront-backend/internal/db"
	"github.com/mercadito/storefront-backend/internal/router"
	"github.com/mercadito/storefront-backend/internal/scheduler"
	"github.com/mercadito/storefront-backend/internal/storage"
	"github.com/mercadito/storefront-backend/internal/websocket"
	"github.com/mercadito/storefront-backend/pkg/events"
	"github.com/mercadito/storefront-backend/pkg/logger"
	"github.com/mercadito/storefront-backend/pkg/redis"
)

func main() {
	model.UseNumericMoneyJSON()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	// Initialize logger
	logCfg := logger.ConfigForEnvironment(cfg.Server.Environment)
	logger.Initialize(logCfg)

	logger.Info("Starting storefront backend", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   logCfg.Level,
		"db_driver":   cfg.Database.Driver,
		"procedures":  cfg.Database.Procedures,
	})

	// Initialize database
	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	// Run migrations
	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}
	if cfg.Database.Procedures == db.ModeNative {
		if err := db.InstallProcedures(db.GetDB()); err != nil {
			logger.Fatal("Failed to install stored procedures", err)
		}
	}

	executor, err := db.NewProcedureExecutor(db.GetDB(), cfg.Database.Procedures)
	if err != nil {
		logger.Fatal("Failed to create procedure executor", err)
	}

	// Initialize repositories
	errorLogRepo := repository.NewErrorLogRepository(db.GetDB())
	productRepo := repository.NewProductRepository(db.GetDB())
	cartGateway := repository.NewCartGateway(executor, errorLogRepo)

	// Optional collaborators
	opts := []service.CartServiceOption{}

	if cfg.Redis.Enabled {
		if err := redis.Init(&cfg.Redis); err != nil {
			logger.Warn("Redis unavailable, cart cache disabled", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			defer redis.Close()
			store := redis.NewStore(redis.GetClient(), "storefront")
			opts = append(opts, service.WithCache(service.NewRedisCartCache(store, cfg.Redis.CartTTL)))
		}
	}

	publisher, err := events.NewPublisher(&cfg.Events)
	if err != nil {
		logger.Warn("Events backend unavailable, falling back to log publisher", map[string]interface{}{
			"backend": cfg.Events.Backend,
			"error":   err.Error(),
		})
		publisher = events.NewLogPublisher()
	}
	defer publisher.Close()
	opts = append(opts, service.WithPublisher(publisher))

	var images service.ImageResolver
	if cfg.S3.Bucket != "" {
		images = storage.NewS3Storage(&cfg.S3)
		opts = append(opts, service.WithImageResolver(images))
	}

	hub := websocket.NewHub()
	opts = append(opts, service.WithNotifier(hub))

	// Initialize services
	cartService := service.NewCartService(cartGateway, opts...)
	productService := service.NewProductService(productRepo, images)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()
	hub.OnRefresh(func(clientID uint) {
		cartService.PushSummary(ctx, clientID)
	})

	// Error log retention
	errorLogScheduler := scheduler.NewErrorLogScheduler(
		errorLogRepo,
		cfg.Maintenance.ErrorLogSchedule,
		cfg.Maintenance.ErrorLogRetention,
	)
	if err := errorLogScheduler.Start(); err != nil {
		logger.Error("Failed to start error log scheduler", err)
	} else {
		defer errorLogScheduler.Stop()
	}

	// Initialize controllers
	productController := controller.NewProductController(productService)
	cartController := controller.NewCartController(cartService)
	cartStreamController := controller.NewCartStreamController(hub, cartService, cfg.CORS.AllowedOrigins)

	// Setup router
	r := router.NewRouter(
		productController,
		cartController,
		cartStreamController,
		cfg,
	)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r.Setup(),
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", err)
	}

	stop()
	<-hubDone

	logger.Info("Server stopped successfully")
}
