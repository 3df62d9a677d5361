package domain

import (
	"errors"
	"fmt"
)

// Ranking errors. All three indicate a data-integrity problem in stored
// embeddings and abort the request that hit them.
var (
	ErrDimensionMismatch              = errors.New("vector dimension mismatch")
	ErrDegenerateVector               = errors.New("degenerate vector")
	ErrInconsistentEmbeddingDimension = errors.New("inconsistent embedding dimension")
)

// Lookup and input errors surfaced by the services.
var (
	ErrPinNotFound         = errors.New("pin not found")
	ErrInteractionNotFound = errors.New("interaction not found")
	ErrInteractionExists   = errors.New("interaction already exists")
	ErrInvalidArgument     = errors.New("invalid argument")
)

// RepositoryError wraps a failure from an external data source.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// NewRepositoryError wraps err with the failing operation name.
// Returns nil when err is nil.
func NewRepositoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RepositoryError{Op: op, Err: err}
}

// IsRankingError reports whether err is one of the embedding integrity errors.
func IsRankingError(err error) bool {
	return errors.Is(err, ErrDimensionMismatch) ||
		errors.Is(err, ErrDegenerateVector) ||
		errors.Is(err, ErrInconsistentEmbeddingDimension)
}
