package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/pinfeed/internal/api"
	"github.com/timmy/pinfeed/internal/app"
	"github.com/timmy/pinfeed/internal/config"
	"github.com/timmy/pinfeed/internal/logger"
	"github.com/timmy/pinfeed/internal/service"
)

func main() {
	// Initialize logger from LOG_* environment
	appLogger := logger.NewFromEnv(logger.LoadFromEnv())
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	stores, err := app.OpenStores(startupCtx, cfg, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize stores")
	}
	defer stores.Close(context.Background())

	objectStorage, err := app.OpenStorage(startupCtx, &cfg.Storage)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}

	vectorizer := service.NewVectorizerService(&cfg.Vectorizer)
	services := app.NewServices(cfg, stores, objectStorage, vectorizer, appLogger)

	// Setup router
	router := api.SetupRouter(&api.Services{
		Pins:            services.Pins,
		Media:           services.Media,
		Recommendations: services.Recommendations,
		Popular:         services.Popular,
		Interactions:    services.Interactions,
		Backfill:        services.Backfill,
		HealthChecks:    stores.Checks,
	}, cfg, appLogger)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
