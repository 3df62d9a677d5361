package service

import (
	"context"
	"fmt"
	"time"

	"github.com/timmy/pinfeed/internal/domain"
	"github.com/timmy/pinfeed/internal/logger"
	"github.com/timmy/pinfeed/internal/metrics"
)

// Feed strategies reported in RecommendationResult.Strategy.
const (
	StrategyPersonalized = "personalized"
	StrategyPopular      = "popular"
)

// RecommendationResult is one page of a user's feed. Both strategies share
// this shape; Scores is only filled on the personalized path and lines up
// with PinIDs.
type RecommendationResult struct {
	Strategy string    `json:"strategy"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
	Total    int       `json:"total"`
	PinIDs   []string  `json:"pin_ids"`
	Scores   []float64 `json:"scores,omitempty"`
}

// RecommendationConfig holds feed tuning.
type RecommendationConfig struct {
	Paging       PageConfig
	RelatedLimit int
}

// RecommendationService builds personalized feeds by ranking the candidate
// catalog against the user's interest vector, and falls back to the popular
// feed for users without usable history.
type RecommendationService struct {
	catalog    CatalogSource
	pins       PinLookup
	related    RelatedSource
	aggregator *InterestAggregator
	popular    PopularitySource
	cfg        RecommendationConfig
	logger     *logger.Logger
}

// RelatedSource lists every embedded pin except one.
type RelatedSource interface {
	FindEmbeddedExcept(ctx context.Context, excludePinID string) ([]domain.Pin, error)
}

// NewRecommendationService wires the recommendation pipeline.
// Parameters:
//   - catalog: source of candidate pins (database or vector mirror).
//   - pins: pin store used to resolve ranked IDs and related pins.
//   - aggregator: interest vector builder.
//   - popular: fallback feed for cold users.
//   - cfg: paging defaults.
//   - log: fallback logger when the context carries none.
// Returns:
//   - *RecommendationService: ready to serve requests.
func NewRecommendationService(
	catalog CatalogSource,
	pins PinStore,
	aggregator *InterestAggregator,
	popular PopularitySource,
	cfg RecommendationConfig,
	log *logger.Logger,
) *RecommendationService {
	return &RecommendationService{
		catalog:    catalog,
		pins:       pins,
		related:    pins,
		aggregator: aggregator,
		popular:    popular,
		cfg:        cfg,
		logger:     log,
	}
}

func (s *RecommendationService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// GetRecommendations returns one page of the user's feed.
//
// The catalog is fetched first; when it is empty the result is an empty
// personalized page and no history is read. Users whose history yields no
// interest vector get the popular feed verbatim. Everyone else gets the
// catalog ranked by cosine similarity, windowed to the requested 1-based
// page. Ranked IDs whose pins disappeared since the catalog fetch are dropped.
func (s *RecommendationService) GetRecommendations(ctx context.Context, userID string, pageSize, pageNumber int) (*RecommendationResult, error) {
	startTime := time.Now()
	pageSize, pageNumber = s.cfg.Paging.Normalize(pageSize, pageNumber)
	ctx = logger.SetUserID(ctx, userID)

	result := &RecommendationResult{
		Strategy: StrategyPersonalized,
		Page:     pageNumber,
		PageSize: pageSize,
		PinIDs:   []string{},
	}

	catalog, err := s.catalog.FindCandidateCatalog(ctx, userID)
	if err != nil {
		return nil, domain.NewRepositoryError("find candidate catalog", err)
	}
	if len(catalog) == 0 {
		s.log(ctx).Info("Candidate catalog is empty")
		return result, nil
	}

	interest, err := s.aggregator.ComputeInterestVector(ctx, userID)
	if err != nil {
		recordRankingError(err)
		return nil, err
	}

	if interest == nil {
		ids, err := s.popular.GetPopular(ctx, pageSize, pageNumber)
		if err != nil {
			return nil, err
		}
		result.Strategy = StrategyPopular
		result.PinIDs = ids
		result.Total = len(ids)
		s.logServed(ctx, result, len(catalog), startTime)
		return result, nil
	}

	ranked, err := Rank(interest, CandidatesFromPins(catalog))
	if err != nil {
		recordRankingError(err)
		return nil, err
	}
	result.Total = len(ranked)

	start, end := window(len(ranked), pageSize, pageNumber)
	result.Scores = make([]float64, 0, end-start)
	for _, entry := range ranked[start:end] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pin, err := s.pins.FindByID(ctx, entry.PinID)
		if err != nil {
			return nil, domain.NewRepositoryError("find pin", err)
		}
		if pin == nil {
			continue
		}
		result.PinIDs = append(result.PinIDs, entry.PinID)
		result.Scores = append(result.Scores, entry.Score)
	}

	s.logServed(ctx, result, len(catalog), startTime)
	return result, nil
}

func (s *RecommendationService) logServed(ctx context.Context, result *RecommendationResult, catalogSize int, startTime time.Time) {
	metrics.RecordFeedServed(result.Strategy, catalogSize, time.Since(startTime))
	s.log(ctx).WithFields(logger.Fields{
		logger.FieldStrategy:   result.Strategy,
		logger.FieldCount:      len(result.PinIDs),
		"catalog_size":         catalogSize,
		"page":                 result.Page,
		logger.FieldDurationMs: time.Since(startTime).Milliseconds(),
	}).Info("Served recommendations")
}

// RelatedPins ranks every other embedded pin against the given pin's
// embedding and returns the best limit entries. A pin without an embedding
// has no related pins.
func (s *RecommendationService) RelatedPins(ctx context.Context, pinID string, limit int) ([]ScoreEntry, error) {
	if limit <= 0 {
		limit = s.cfg.RelatedLimit
	}
	if maxSize := s.cfg.Paging.MaxPageSize; maxSize > 0 && limit > maxSize {
		limit = maxSize
	}

	pin, err := s.pins.FindByID(ctx, pinID)
	if err != nil {
		return nil, domain.NewRepositoryError("find pin", err)
	}
	if pin == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrPinNotFound, pinID)
	}
	if !pin.HasEmbedding() {
		return []ScoreEntry{}, nil
	}

	others, err := s.related.FindEmbeddedExcept(ctx, pinID)
	if err != nil {
		return nil, domain.NewRepositoryError("find embedded pins", err)
	}

	ranked, err := Rank(pin.EmbeddingVector(), CandidatesFromPins(others))
	if err != nil {
		recordRankingError(err)
		return nil, err
	}
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldPinID: pinID,
		logger.FieldCount: len(ranked),
	}).Debug("Ranked related pins")

	return ranked, nil
}

func recordRankingError(err error) {
	if domain.IsRankingError(err) {
		metrics.RecordRankingError()
	}
}
