package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/pinfeed/internal/domain"
	"github.com/timmy/pinfeed/internal/logger"
	"github.com/timmy/pinfeed/internal/service"
)

// Recommender produces a user's personalized feed.
type Recommender interface {
	GetRecommendations(ctx context.Context, userID string, pageSize, pageNumber int) (*service.RecommendationResult, error)
}

// PopularFeed pages through pins by popularity.
type PopularFeed interface {
	GetPopular(ctx context.Context, pageSize, pageNumber int) ([]string, error)
	Total(ctx context.Context) (int64, error)
}

// PinResolver loads pins for ordered IDs.
type PinResolver interface {
	GetOrdered(ctx context.Context, ids []string) ([]domain.Pin, error)
}

// FeedResponse is one page of a feed with its pins resolved.
type FeedResponse struct {
	Strategy string       `json:"strategy"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
	Total    int          `json:"total"`
	PinIDs   []string     `json:"pin_ids"`
	Scores   []float64    `json:"scores,omitempty"`
	Pins     []domain.Pin `json:"pins"`
	Degraded bool         `json:"degraded,omitempty"`
}

// FeedHandler handles feed endpoints.
type FeedHandler struct {
	recommender Recommender
	popular     PopularFeed
	pins        PinResolver
	paging      service.PageConfig
	// degradeToPopular serves the popular feed instead of failing when
	// stored embeddings are corrupt.
	degradeToPopular bool
}

// NewFeedHandler creates a new feed handler.
// Parameters:
//   - recommender: personalized feed.
//   - popular: popularity feed.
//   - pins: resolver for feed pin IDs.
//   - paging: page size bounds, shared with the services.
//   - degradeToPopular: fall back to popular on ranking errors.
// Returns:
//   - *FeedHandler: initialized handler.
func NewFeedHandler(recommender Recommender, popular PopularFeed, pins PinResolver, paging service.PageConfig, degradeToPopular bool) *FeedHandler {
	return &FeedHandler{
		recommender:      recommender,
		popular:          popular,
		pins:             pins,
		paging:           paging,
		degradeToPopular: degradeToPopular,
	}
}

func pageParams(c *gin.Context) (int, int) {
	pageSize, _ := strconv.Atoi(c.Query("limit"))
	pageNumber, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	return pageSize, pageNumber
}

// Popular handles GET /api/v1/feed/popular.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *FeedHandler) Popular(c *gin.Context) {
	pageSize, pageNumber := h.paging.Normalize(pageParams(c))

	resp, err := h.popularPage(c.Request.Context(), pageSize, pageNumber)
	if err != nil {
		respondError(c, "Failed to load popular pins", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Personalized handles GET /api/v1/feed/personalized.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *FeedHandler) Personalized(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	pageSize, pageNumber := pageParams(c)

	result, err := h.recommender.GetRecommendations(ctx, userID, pageSize, pageNumber)
	if err != nil {
		if !h.degradeToPopular || !domain.IsRankingError(err) {
			respondError(c, "Failed to build recommendations", err)
			return
		}

		logger.FromContext(ctx).WithError(err).Warn("Ranking failed, serving popular feed")
		pageSize, pageNumber = h.paging.Normalize(pageSize, pageNumber)
		resp, err := h.popularPage(ctx, pageSize, pageNumber)
		if err != nil {
			respondError(c, "Failed to load popular pins", err)
			return
		}
		resp.Degraded = true
		c.JSON(http.StatusOK, resp)
		return
	}

	pins, err := h.pins.GetOrdered(ctx, result.PinIDs)
	if err != nil {
		respondError(c, "Failed to load recommended pins", err)
		return
	}

	c.JSON(http.StatusOK, &FeedResponse{
		Strategy: result.Strategy,
		Page:     result.Page,
		PageSize: result.PageSize,
		Total:    result.Total,
		PinIDs:   result.PinIDs,
		Scores:   result.Scores,
		Pins:     pins,
	})
}

func (h *FeedHandler) popularPage(ctx context.Context, pageSize, pageNumber int) (*FeedResponse, error) {
	ids, err := h.popular.GetPopular(ctx, pageSize, pageNumber)
	if err != nil {
		return nil, err
	}
	total, err := h.popular.Total(ctx)
	if err != nil {
		return nil, err
	}
	pins, err := h.pins.GetOrdered(ctx, ids)
	if err != nil {
		return nil, err
	}
	return &FeedResponse{
		Strategy: service.StrategyPopular,
		Page:     pageNumber,
		PageSize: pageSize,
		Total:    int(total),
		PinIDs:   ids,
		Pins:     pins,
	}, nil
}
