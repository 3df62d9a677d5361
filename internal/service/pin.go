package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/pinfeed/internal/domain"
	"github.com/timmy/pinfeed/internal/logger"
)

// CreatePinInput carries the user-supplied fields of a new pin.
type CreatePinInput struct {
	BoardID     string `json:"board_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	LinkURL     string `json:"link_url"`
}

// PinService manages pin records.
type PinService struct {
	pins   PinStore
	logger *logger.Logger
}

// NewPinService creates a pin service.
func NewPinService(pins PinStore, log *logger.Logger) *PinService {
	return &PinService{pins: pins, logger: log}
}

func (s *PinService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// Create stores a new pin owned by userID. The pin has no media and no
// embedding until media is uploaded.
func (s *PinService) Create(ctx context.Context, userID string, in CreatePinInput) (*domain.Pin, error) {
	title := strings.TrimSpace(in.Title)
	if userID == "" {
		return nil, fmt.Errorf("%w: user is required", domain.ErrInvalidArgument)
	}
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrInvalidArgument)
	}

	now := time.Now()
	pin := &domain.Pin{
		ID:          uuid.New().String(),
		UserID:      userID,
		BoardID:     in.BoardID,
		Title:       title,
		Description: in.Description,
		LinkURL:     in.LinkURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.pins.Create(ctx, pin); err != nil {
		return nil, domain.NewRepositoryError("create pin", err)
	}

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldPinID:  pin.ID,
		logger.FieldUserID: userID,
	}).Info("Pin created")
	return pin, nil
}

// Get returns a pin or domain.ErrPinNotFound.
func (s *PinService) Get(ctx context.Context, id string) (*domain.Pin, error) {
	pin, err := s.pins.FindByID(ctx, id)
	if err != nil {
		return nil, domain.NewRepositoryError("find pin", err)
	}
	if pin == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrPinNotFound, id)
	}
	return pin, nil
}

// GetOrdered loads pins for ids and returns them in the order of ids,
// skipping IDs that no longer resolve.
func (s *PinService) GetOrdered(ctx context.Context, ids []string) ([]domain.Pin, error) {
	pins, err := s.pins.GetByIDs(ctx, ids)
	if err != nil {
		return nil, domain.NewRepositoryError("get pins", err)
	}

	byID := make(map[string]domain.Pin, len(pins))
	for _, p := range pins {
		byID[p.ID] = p
	}

	out := make([]domain.Pin, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}
