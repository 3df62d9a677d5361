package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/timmy/pinfeed/internal/domain"
	"github.com/timmy/pinfeed/internal/logger"
	"github.com/timmy/pinfeed/internal/storage"
)

// BackfillService repairs embeddings in bulk: it vectorizes pins whose media
// was stored without an embedding and re-mirrors embeddings into the vector
// index.
type BackfillService struct {
	pins      PinStore
	storage   storage.ObjectStorage
	embedder  Embedder
	index     VectorIndex
	logger    *logger.Logger
	workers   int
	batchSize int
}

// BackfillConfig holds configuration for the backfill service
type BackfillConfig struct {
	Workers   int
	BatchSize int
}

// BackfillStats holds statistics for a backfill run
type BackfillStats struct {
	TotalItems     int64
	ProcessedItems int64
	FailedItems    int64
	StartTime      time.Time
	EndTime        time.Time
}

// NewBackfillService creates a backfill service. index may be nil, in which
// case only database embeddings are repaired.
func NewBackfillService(
	pins PinStore,
	objectStorage storage.ObjectStorage,
	embedder Embedder,
	index VectorIndex,
	log *logger.Logger,
	cfg *BackfillConfig,
) *BackfillService {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	return &BackfillService{
		pins:      pins,
		storage:   objectStorage,
		embedder:  embedder,
		index:     index,
		logger:    log,
		workers:   workers,
		batchSize: batchSize,
	}
}

func (s *BackfillService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// VectorizeMissing embeds up to limit pins that have media but no embedding.
// A non-positive limit processes every such pin.
func (s *BackfillService) VectorizeMissing(ctx context.Context, limit int) (*BackfillStats, error) {
	stats := &BackfillStats{StartTime: time.Now()}
	s.log(ctx).WithFields(logger.Fields{
		"limit":   limit,
		"workers": s.workers,
	}).Info("Starting embedding backfill")

	// Pins that fail keep their place at the head of the ordering, so the
	// next page starts after them.
	for ctx.Err() == nil {
		batchLimit := s.batchSize
		if limit > 0 {
			remaining := limit - int(stats.TotalItems)
			if remaining <= 0 {
				break
			}
			if batchLimit > remaining {
				batchLimit = remaining
			}
		}

		pins, err := s.pins.ListMissingEmbedding(ctx, batchLimit, int(stats.FailedItems))
		if err != nil {
			return nil, domain.NewRepositoryError("list pins missing embeddings", err)
		}
		if len(pins) == 0 {
			break
		}

		stats.TotalItems += int64(len(pins))
		s.runBatch(ctx, pins, stats, s.vectorizePin)
	}

	stats.EndTime = time.Now()
	s.logStats(ctx, "Embedding backfill completed", stats)
	return stats, nil
}

// SyncIndex upserts every stored embedding into the vector index.
func (s *BackfillService) SyncIndex(ctx context.Context) (*BackfillStats, error) {
	if s.index == nil {
		return nil, fmt.Errorf("vector index is not configured")
	}

	stats := &BackfillStats{StartTime: time.Now()}
	for offset := 0; ctx.Err() == nil; offset += s.batchSize {
		pins, err := s.pins.ListEmbedded(ctx, s.batchSize, offset)
		if err != nil {
			return nil, domain.NewRepositoryError("list embedded pins", err)
		}
		if len(pins) == 0 {
			break
		}

		stats.TotalItems += int64(len(pins))
		s.runBatch(ctx, pins, stats, func(ctx context.Context, pin *domain.Pin) error {
			return s.index.Upsert(ctx, pin)
		})
	}

	stats.EndTime = time.Now()
	s.logStats(ctx, "Vector index sync completed", stats)
	return stats, nil
}

// runBatch fans pins out to the worker pool and waits for all of them.
func (s *BackfillService) runBatch(ctx context.Context, pins []domain.Pin, stats *BackfillStats, process func(context.Context, *domain.Pin) error) {
	items := make(chan *domain.Pin, s.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pin := range items {
				if ctx.Err() != nil {
					atomic.AddInt64(&stats.FailedItems, 1)
					continue
				}
				if err := process(ctx, pin); err != nil {
					atomic.AddInt64(&stats.FailedItems, 1)
					s.log(ctx).WithFields(logger.Fields{
						logger.FieldPinID: pin.ID,
					}).WithError(err).Error("Failed to process pin")
					continue
				}
				atomic.AddInt64(&stats.ProcessedItems, 1)
			}
		}()
	}

	for i := range pins {
		items <- &pins[i]
	}
	close(items)
	wg.Wait()
}

func (s *BackfillService) vectorizePin(ctx context.Context, pin *domain.Pin) error {
	reader, err := s.storage.Download(ctx, pin.StorageKey)
	if err != nil {
		return fmt.Errorf("failed to download media: %w", err)
	}
	data, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		return fmt.Errorf("failed to read media: %w", err)
	}

	embedding, err := s.embedder.Embed(ctx, data, pin.StorageKey)
	if err != nil {
		return fmt.Errorf("failed to vectorize media: %w", err)
	}

	if err := s.pins.SetEmbedding(ctx, pin.ID, embedding); err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}
	pin.Embedding = &embedding

	if s.index != nil {
		if err := s.index.Upsert(ctx, pin); err != nil {
			// The database copy is authoritative; SyncIndex repairs the mirror.
			s.log(ctx).WithField(logger.FieldPinID, pin.ID).WithError(err).Warn("Failed to mirror embedding")
		}
	}
	return nil
}

func (s *BackfillService) logStats(ctx context.Context, msg string, stats *BackfillStats) {
	s.log(ctx).WithFields(logger.Fields{
		"total":     stats.TotalItems,
		"processed": stats.ProcessedItems,
		"failed":    stats.FailedItems,
		"duration":  stats.EndTime.Sub(stats.StartTime).String(),
	}).Info(msg)
}
