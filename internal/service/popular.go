package service

import (
	"context"
	"time"

	"github.com/timmy/pinfeed/internal/domain"
	"github.com/timmy/pinfeed/internal/logger"
)

// PopularitySource serves the non-personalized feed.
type PopularitySource interface {
	GetPopular(ctx context.Context, pageSize, pageNumber int) ([]string, error)
}

// PopularityService ranks pins by engagement: interaction count, then
// recency, then ID.
type PopularityService struct {
	pins   PopularityStore
	paging PageConfig
	logger *logger.Logger
}

// NewPopularityService creates a popularity feed over pins.
func NewPopularityService(pins PopularityStore, paging PageConfig, log *logger.Logger) *PopularityService {
	return &PopularityService{
		pins:   pins,
		paging: paging,
		logger: log,
	}
}

func (s *PopularityService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// GetPopular returns one page of pin IDs in popularity order.
func (s *PopularityService) GetPopular(ctx context.Context, pageSize, pageNumber int) ([]string, error) {
	startTime := time.Now()
	pageSize, pageNumber = s.paging.Normalize(pageSize, pageNumber)

	ids, err := s.pins.ListPopularIDs(ctx, pageSize, pageOffset(pageSize, pageNumber))
	if err != nil {
		return nil, domain.NewRepositoryError("list popular pins", err)
	}
	if ids == nil {
		ids = []string{}
	}

	s.log(ctx).WithFields(logger.Fields{
		"page":                 pageNumber,
		"page_size":            pageSize,
		logger.FieldCount:      len(ids),
		logger.FieldDurationMs: time.Since(startTime).Milliseconds(),
	}).Debug("Served popular pins")

	return ids, nil
}

// Total returns the number of pins the popular feed can page through.
func (s *PopularityService) Total(ctx context.Context) (int64, error) {
	n, err := s.pins.Count(ctx)
	if err != nil {
		return 0, domain.NewRepositoryError("count pins", err)
	}
	return n, nil
}
