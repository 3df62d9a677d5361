package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/timmy/pinfeed/internal/domain"
	"github.com/timmy/pinfeed/internal/logger"
	"github.com/timmy/pinfeed/internal/source"
)

// PinCreator creates pin records.
type PinCreator interface {
	Create(ctx context.Context, userID string, in CreatePinInput) (*domain.Pin, error)
}

// MediaAttacher uploads and vectorizes pin media.
type MediaAttacher interface {
	UploadPinMedia(ctx context.Context, pinID string, data []byte, filename string) (*domain.Pin, error)
}

// SeedService imports pins with their media from an external source, running
// each through the same create and upload path as the API.
type SeedService struct {
	pins      PinCreator
	media     MediaAttacher
	logger    *logger.Logger
	workers   int
	batchSize int
}

// NewSeedService creates a seed importer sharing the backfill worker settings.
func NewSeedService(pins PinCreator, media MediaAttacher, log *logger.Logger, cfg *BackfillConfig) *SeedService {
	workers, batchSize := cfg.Workers, cfg.BatchSize
	if workers <= 0 {
		workers = 1
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &SeedService{
		pins:      pins,
		media:     media,
		logger:    log,
		workers:   workers,
		batchSize: batchSize,
	}
}

func (s *SeedService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// ImportFromSource imports up to limit pins from src. A non-positive limit
// imports everything. Failed items are counted and logged; the run goes on.
func (s *SeedService) ImportFromSource(ctx context.Context, src source.Source, limit int) (*BackfillStats, error) {
	stats := &BackfillStats{StartTime: time.Now()}
	s.log(ctx).WithFields(logger.Fields{
		"source":  src.GetSourceID(),
		"limit":   limit,
		"workers": s.workers,
	}).Info("Starting seed import")

	items := make(chan source.SeedPin, s.workers*2)
	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range items {
				if err := s.importItem(ctx, item); err != nil {
					atomic.AddInt64(&stats.FailedItems, 1)
					s.log(ctx).WithField("source_id", item.SourceID).WithError(err).Error("Failed to import pin")
					continue
				}
				atomic.AddInt64(&stats.ProcessedItems, 1)
			}
		}()
	}

	var fetchErr error
	cursor := ""
feed:
	for ctx.Err() == nil {
		batchLimit := s.batchSize
		if limit > 0 {
			remaining := limit - int(atomic.LoadInt64(&stats.TotalItems))
			if remaining <= 0 {
				break
			}
			if batchLimit > remaining {
				batchLimit = remaining
			}
		}

		batch, nextCursor, err := src.FetchBatch(ctx, cursor, batchLimit)
		if err != nil {
			fetchErr = fmt.Errorf("fetch batch: %w", err)
			break
		}
		atomic.AddInt64(&stats.TotalItems, int64(len(batch)))

		for _, item := range batch {
			select {
			case items <- item:
			case <-ctx.Done():
				break feed
			}
		}
		if nextCursor == "" {
			break
		}
		cursor = nextCursor
	}
	close(items)
	wg.Wait()

	stats.EndTime = time.Now()
	s.log(ctx).WithFields(logger.Fields{
		"total":                stats.TotalItems,
		"processed":            stats.ProcessedItems,
		"failed":               stats.FailedItems,
		logger.FieldDurationMs: stats.EndTime.Sub(stats.StartTime).Milliseconds(),
	}).Info("Seed import completed")

	if fetchErr != nil {
		return stats, fetchErr
	}
	return stats, nil
}

func (s *SeedService) importItem(ctx context.Context, item source.SeedPin) error {
	data, err := os.ReadFile(item.LocalPath)
	if err != nil {
		return fmt.Errorf("read media: %w", err)
	}

	pin, err := s.pins.Create(ctx, item.UserID, CreatePinInput{
		BoardID:     item.BoardID,
		Title:       item.Title,
		Description: item.Description,
		LinkURL:     item.LinkURL,
	})
	if err != nil {
		return err
	}

	// A pin whose upload fails stays without media; it is never scored.
	if _, err := s.media.UploadPinMedia(ctx, pin.ID, data, filepath.Base(item.LocalPath)); err != nil {
		return fmt.Errorf("pin %s: %w", pin.ID, err)
	}
	return nil
}
