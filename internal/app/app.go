// Package app assembles the stores and services shared by the API server and
// the backfill command from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/timmy/pinfeed/internal/api/handler"
	"github.com/timmy/pinfeed/internal/config"
	"github.com/timmy/pinfeed/internal/logger"
	"github.com/timmy/pinfeed/internal/repository"
	"github.com/timmy/pinfeed/internal/service"
	"github.com/timmy/pinfeed/internal/storage"
)

// Stores holds the persistence backends selected by configuration.
type Stores struct {
	Pins         service.PinStore
	Interactions service.InteractionStore
	Catalog      service.CatalogSource
	// Index is nil when the Qdrant mirror is disabled.
	Index  service.VectorIndex
	Checks map[string]handler.HealthCheck

	closers []func(ctx context.Context) error
}

// Close releases every backend connection, returning the first error.
func (s *Stores) Close(ctx context.Context) error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OpenStores connects the document store named by cfg.Database.Driver and,
// when enabled, the Qdrant mirror.
// Parameters:
//   - ctx: context bounding connection setup.
//   - cfg: full application configuration.
//   - log: logger for startup messages.
// Returns:
//   - *Stores: connected stores; call Close on shutdown.
//   - error: non-nil if any backend fails to connect.
func OpenStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Stores, error) {
	stores := &Stores{Checks: map[string]handler.HealthCheck{}}

	if cfg.Database.Driver == "mongo" {
		db, err := repository.ConnectMongo(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		stores.closers = append(stores.closers, db.Client().Disconnect)
		if err := repository.EnsureMongoIndexes(ctx, db); err != nil {
			stores.Close(ctx)
			return nil, err
		}
		stores.Pins = repository.NewMongoPinRepository(db)
		stores.Interactions = repository.NewMongoInteractionRepository(db)
		stores.Checks["database"] = func(ctx context.Context) error {
			return db.Client().Ping(ctx, nil)
		}
		log.WithField("database", cfg.Database.MongoDatabase).Info("Using MongoDB document store")
	} else {
		db, err := repository.InitDB(&cfg.Database)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql.DB instance: %w", err)
		}
		stores.closers = append(stores.closers, func(context.Context) error { return sqlDB.Close() })
		stores.Pins = repository.NewPinRepository(db)
		stores.Interactions = repository.NewInteractionRepository(db)
		stores.Checks["database"] = sqlDB.PingContext
	}
	stores.Catalog = stores.Pins

	if cfg.Qdrant.Enabled {
		qdrantRepo, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
			Host:            cfg.Qdrant.Host,
			Port:            cfg.Qdrant.Port,
			Collection:      cfg.Qdrant.Collection,
			APIKey:          cfg.Qdrant.APIKey,
			UseTLS:          cfg.Qdrant.UseTLS,
			VectorDimension: cfg.Vectorizer.Dimensions,
		})
		if err != nil {
			stores.Close(ctx)
			return nil, err
		}
		stores.closers = append(stores.closers, func(context.Context) error { return qdrantRepo.Close() })

		if err := qdrantRepo.EnsureCollection(ctx); err != nil {
			stores.Close(ctx)
			return nil, fmt.Errorf("failed to ensure Qdrant collection: %w", err)
		}
		stores.Index = qdrantRepo
		stores.Checks["qdrant"] = qdrantRepo.Ping
		if cfg.Recommend.CatalogSource == "qdrant" {
			stores.Catalog = qdrantRepo
		}
		log.WithFields(logger.Fields{
			"collection":     cfg.Qdrant.Collection,
			"catalog_source": cfg.Recommend.CatalogSource,
		}).Info("Qdrant mirror enabled")
	}

	return stores, nil
}

// OpenStorage creates the media bucket client and makes sure the bucket
// exists.
func OpenStorage(ctx context.Context, cfg *config.StorageConfig) (storage.ObjectStorage, error) {
	objectStorage, err := storage.NewStorage(cfg)
	if err != nil {
		return nil, err
	}
	if b, ok := objectStorage.(interface {
		EnsureBucket(ctx context.Context) error
	}); ok {
		if err := b.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure storage bucket: %w", err)
		}
	}
	return objectStorage, nil
}

// Services is the service graph built over a set of stores.
type Services struct {
	Pins            *service.PinService
	Media           *service.MediaService
	Interactions    *service.InteractionService
	Popular         *service.PopularityService
	Recommendations *service.RecommendationService
	Backfill        *service.BackfillService
	Seed            *service.SeedService
}

// NewServices wires every service over stores, media storage and the
// vectorizer.
func NewServices(cfg *config.Config, stores *Stores, objectStorage storage.ObjectStorage, embedder service.Embedder, log *logger.Logger) *Services {
	paging := service.PageConfig{
		DefaultPageSize: cfg.Recommend.DefaultPageSize,
		MaxPageSize:     cfg.Recommend.MaxPageSize,
	}

	backfillCfg := &service.BackfillConfig{
		Workers:   cfg.Backfill.Workers,
		BatchSize: cfg.Backfill.BatchSize,
	}

	pins := service.NewPinService(stores.Pins, log)
	media := service.NewMediaService(stores.Pins, objectStorage, embedder, stores.Index, log)
	popular := service.NewPopularityService(stores.Pins, paging, log)
	aggregator := service.NewInterestAggregator(stores.Interactions, stores.Pins, log)

	return &Services{
		Pins:         pins,
		Media:        media,
		Interactions: service.NewInteractionService(stores.Interactions, stores.Pins, log),
		Popular:      popular,
		Recommendations: service.NewRecommendationService(
			stores.Catalog,
			stores.Pins,
			aggregator,
			popular,
			service.RecommendationConfig{Paging: paging, RelatedLimit: cfg.Recommend.RelatedLimit},
			log,
		),
		Backfill: service.NewBackfillService(stores.Pins, objectStorage, embedder, stores.Index, log, backfillCfg),
		Seed:     service.NewSeedService(pins, media, log, backfillCfg),
	}
}
