package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/timmy/pinfeed/internal/app"
	"github.com/timmy/pinfeed/internal/config"
	"github.com/timmy/pinfeed/internal/logger"
	"github.com/timmy/pinfeed/internal/service"
	"github.com/timmy/pinfeed/internal/source/manifest"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "pinfeed-backfill",
	})
	logger.SetDefaultLogger(appLogger)

	// Parse command line flags
	limit := flag.Int("limit", 0, "Maximum number of pins to process (0 = all)")
	syncIndex := flag.Bool("sync-index", false, "Upsert stored embeddings into Qdrant instead of vectorizing")
	seedDir := flag.String("seed", "", "Import pins from a directory with manifest.jsonl and media/")
	workers := flag.Int("workers", 0, "Override backfill.workers")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if *workers > 0 {
		cfg.Backfill.Workers = *workers
	}

	appLogger.WithFields(logger.Fields{
		"limit":      *limit,
		"sync_index": *syncIndex,
		"seed":       *seedDir,
		"workers":    cfg.Backfill.Workers,
	}).Info("Starting backfill")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		appLogger.Info("Received interrupt signal, stopping after in-flight pins...")
		cancel()
	}()

	stores, err := app.OpenStores(ctx, cfg, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize stores")
	}
	defer stores.Close(context.Background())

	if *syncIndex && stores.Index == nil {
		appLogger.Fatal("--sync-index requires qdrant.enabled")
	}

	objectStorage, err := app.OpenStorage(ctx, &cfg.Storage)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}

	vectorizer := service.NewVectorizerService(&cfg.Vectorizer)
	services := app.NewServices(cfg, stores, objectStorage, vectorizer, appLogger)

	var stats *service.BackfillStats
	switch {
	case *seedDir != "":
		stats, err = services.Seed.ImportFromSource(ctx, manifest.NewAdapter(*seedDir), *limit)
	case *syncIndex:
		stats, err = services.Backfill.SyncIndex(ctx)
	default:
		stats, err = services.Backfill.VectorizeMissing(ctx, *limit)
	}
	if err != nil {
		appLogger.WithError(err).Fatal("Backfill failed")
	}

	appLogger.WithFields(logger.Fields{
		"total":     stats.TotalItems,
		"processed": stats.ProcessedItems,
		"failed":    stats.FailedItems,
		"duration":  stats.EndTime.Sub(stats.StartTime).String(),
	}).Info("Backfill completed")
}
