package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/timmy/pinfeed/internal/config"
	"github.com/timmy/pinfeed/internal/domain"
	"github.com/timmy/pinfeed/internal/logger"
	"github.com/timmy/pinfeed/internal/metrics"
)

const (
	vectorizePath = "/vectorize-pins"

	// Wait before retry n is n*vectorizeRetryWait.
	vectorizeRetryWait = 100 * time.Millisecond
)

// ErrVectorizerUnavailable is returned while the circuit breaker is open.
var ErrVectorizerUnavailable = errors.New("vectorizer unavailable")

// errVectorizerStatus marks 5xx answers so they count against the breaker.
var errVectorizerStatus = errors.New("vectorizer server error")

// Embedder turns pin media into an embedding.
type Embedder interface {
	Embed(ctx context.Context, data []byte, filename string) (domain.Vector, error)
}

// VectorizerService calls the image embedding service over HTTP.
type VectorizerService struct {
	client     *resty.Client
	breaker    *gobreaker.CircuitBreaker[*resty.Response]
	retryCount int
	dimensions int
}

// NewVectorizerService creates a client for the configured vectorizer.
func NewVectorizerService(cfg *config.VectorizerConfig) *VectorizerService {
	// Retries are driven by Embed: a multipart file reader is drained by the
	// first attempt, so every attempt builds its request from scratch.
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout)

	svc := &VectorizerService{
		client:     client,
		retryCount: cfg.RetryCount,
		dimensions: cfg.Dimensions,
	}
	if cfg.BreakerFailures > 0 {
		svc.breaker = newVectorizerBreaker(cfg)
	}
	return svc
}

func newVectorizerBreaker(cfg *config.VectorizerConfig) *gobreaker.CircuitBreaker[*resty.Response] {
	return gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
		Name:        "vectorizer",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetVectorizerBreakerState(int(to))
			logger.GetDefault().WithFields(logger.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Vectorizer circuit breaker changed state")
		},
	})
}

type vectorizeResponse struct {
	Vector []float32 `json:"vector"`
	Detail string    `json:"detail,omitempty"`
}

// Embed uploads media as a multipart "file" field and returns the vector
// from the response.
func (s *VectorizerService) Embed(ctx context.Context, data []byte, filename string) (domain.Vector, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty media", domain.ErrInvalidArgument)
	}

	var resp vectorizeResponse
	attempt := func() (*resty.Response, error) {
		resp = vectorizeResponse{}
		httpResp, err := s.client.R().
			SetContext(ctx).
			SetFileReader("file", filename, bytes.NewReader(data)).
			SetResult(&resp).
			SetError(&resp).
			Post(vectorizePath)
		if err != nil {
			return nil, err
		}
		if httpResp.StatusCode() >= http.StatusInternalServerError {
			return httpResp, errVectorizerStatus
		}
		return httpResp, nil
	}
	call := func() (*resty.Response, error) {
		httpResp, err := attempt()
		for n := 1; n <= s.retryCount && err != nil; n++ {
			select {
			case <-ctx.Done():
				return httpResp, err
			case <-time.After(time.Duration(n) * vectorizeRetryWait):
			}
			httpResp, err = attempt()
		}
		return httpResp, err
	}

	var (
		httpResp *resty.Response
		err      error
	)
	if s.breaker != nil {
		httpResp, err = s.breaker.Execute(call)
	} else {
		httpResp, err = call()
	}

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordVectorizerRequest(metrics.OutcomeRejected)
		return nil, fmt.Errorf("%w: %v", ErrVectorizerUnavailable, err)
	case err != nil && !errors.Is(err, errVectorizerStatus):
		metrics.RecordVectorizerRequest(metrics.OutcomeError)
		return nil, fmt.Errorf("failed to call vectorizer: %w", err)
	}

	if httpResp.StatusCode() != http.StatusOK {
		metrics.RecordVectorizerRequest(metrics.OutcomeError)
		if resp.Detail != "" {
			return nil, fmt.Errorf("vectorizer error: %s", resp.Detail)
		}
		return nil, fmt.Errorf("vectorizer error: status %d", httpResp.StatusCode())
	}

	if len(resp.Vector) == 0 {
		metrics.RecordVectorizerRequest(metrics.OutcomeError)
		return nil, fmt.Errorf("vectorizer returned no vector")
	}
	if s.dimensions > 0 && len(resp.Vector) != s.dimensions {
		metrics.RecordVectorizerRequest(metrics.OutcomeError)
		return nil, fmt.Errorf("%w: vectorizer returned %d dimensions, expected %d",
			domain.ErrDimensionMismatch, len(resp.Vector), s.dimensions)
	}

	metrics.RecordVectorizerRequest(metrics.OutcomeSuccess)
	return domain.Vector(resp.Vector), nil
}
