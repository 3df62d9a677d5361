package service

import (
	"context"
	"fmt"

	"github.com/timmy/pinfeed/internal/domain"
	"github.com/timmy/pinfeed/internal/logger"
)

// InterestAggregator folds a user's interaction history into one interest
// vector.
type InterestAggregator struct {
	interactions InteractionStore
	pins         PinLookup
	logger       *logger.Logger
}

// NewInterestAggregator creates an aggregator over the given stores.
func NewInterestAggregator(interactions InteractionStore, pins PinLookup, log *logger.Logger) *InterestAggregator {
	return &InterestAggregator{
		interactions: interactions,
		pins:         pins,
		logger:       log,
	}
}

func (a *InterestAggregator) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return a.logger
}

// ComputeInterestVector returns the mean embedding of every pin the user has
// interacted with.
//
// A nil vector with a nil error means the user is cold: no history, or none
// of the referenced pins has an embedding. A single usable embedding is
// returned as an exact copy. Embeddings of differing lengths fail with
// domain.ErrInconsistentEmbeddingDimension.
func (a *InterestAggregator) ComputeInterestVector(ctx context.Context, userID string) (domain.Vector, error) {
	records, err := a.interactions.FindByUser(ctx, userID)
	if err != nil {
		return nil, domain.NewRepositoryError("find interactions", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	embeddings := make([]domain.Vector, 0, len(records))
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pin, err := a.pins.FindByID(ctx, rec.PinID)
		if err != nil {
			return nil, domain.NewRepositoryError("find pin", err)
		}
		if !pin.HasEmbedding() {
			continue
		}
		embeddings = append(embeddings, pin.EmbeddingVector())
	}

	a.log(ctx).WithFields(logger.Fields{
		logger.FieldUserID: userID,
		"interactions":     len(records),
		"embedded":         len(embeddings),
	}).Debug("Resolved interaction embeddings")

	return meanVector(embeddings)
}

// meanVector averages embeddings coordinate-wise in float64.
func meanVector(embeddings []domain.Vector) (domain.Vector, error) {
	switch len(embeddings) {
	case 0:
		return nil, nil
	case 1:
		return embeddings[0].Clone(), nil
	}

	dim := len(embeddings[0])
	sum := make([]float64, dim)
	for i, e := range embeddings {
		if len(e) != dim {
			return nil, fmt.Errorf("%w: embedding %d has %d dimensions, expected %d",
				domain.ErrInconsistentEmbeddingDimension, i, len(e), dim)
		}
		for j, x := range e {
			sum[j] += float64(x)
		}
	}

	n := float64(len(embeddings))
	mean := make(domain.Vector, dim)
	for j := range sum {
		mean[j] = float32(sum[j] / n)
	}
	return mean, nil
}
