package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/pinfeed/internal/domain"
	"github.com/timmy/pinfeed/internal/logger"
)

// InteractionService records how users engage with pins. Each (user, pin)
// pair has one record whose kind set grows with later engagements.
type InteractionService struct {
	interactions InteractionStore
	pins         PinLookup
	logger       *logger.Logger
}

// NewInteractionService creates an interaction service.
func NewInteractionService(interactions InteractionStore, pins PinLookup, log *logger.Logger) *InteractionService {
	return &InteractionService{
		interactions: interactions,
		pins:         pins,
		logger:       log,
	}
}

func (s *InteractionService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// Record adds kinds to the user's record for pinID, creating it if needed.
// Parameters:
//   - ctx: request context.
//   - userID: acting user.
//   - pinID: pin engaged with; must exist.
//   - kinds: at least one known interaction kind.
// Returns:
//   - *domain.Interaction: the stored record after the update.
//   - error: domain.ErrInvalidArgument, domain.ErrPinNotFound or a repository error.
func (s *InteractionService) Record(ctx context.Context, userID, pinID string, kinds []domain.InteractionKind) (*domain.Interaction, error) {
	if userID == "" || pinID == "" {
		return nil, fmt.Errorf("%w: user and pin are required", domain.ErrInvalidArgument)
	}
	if len(kinds) == 0 {
		return nil, fmt.Errorf("%w: at least one interaction kind is required", domain.ErrInvalidArgument)
	}
	for _, k := range kinds {
		if !k.Valid() {
			return nil, fmt.Errorf("%w: unknown interaction kind %q", domain.ErrInvalidArgument, k)
		}
	}

	pin, err := s.pins.FindByID(ctx, pinID)
	if err != nil {
		return nil, domain.NewRepositoryError("find pin", err)
	}
	if pin == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrPinNotFound, pinID)
	}

	existing, err := s.interactions.FindByUserAndPin(ctx, userID, pinID)
	if err != nil {
		return nil, domain.NewRepositoryError("find interaction", err)
	}

	if existing == nil {
		now := time.Now()
		rec := &domain.Interaction{
			ID:        uuid.New().String(),
			UserID:    userID,
			PinID:     pinID,
			Kinds:     domain.InteractionKinds{}.Union(kinds...),
			CreatedAt: now,
			UpdatedAt: now,
		}
		err := s.interactions.Create(ctx, rec)
		switch {
		case err == nil:
			s.log(ctx).WithFields(logger.Fields{
				logger.FieldUserID: userID,
				logger.FieldPinID:  pinID,
				"kinds":            rec.Kinds,
			}).Info("Interaction created")
			return rec, nil
		case !errors.Is(err, domain.ErrInteractionExists):
			return nil, domain.NewRepositoryError("create interaction", err)
		}

		// A concurrent request created the record first; merge into it.
		existing, err = s.interactions.FindByUserAndPin(ctx, userID, pinID)
		if err != nil {
			return nil, domain.NewRepositoryError("find interaction", err)
		}
		if existing == nil {
			return nil, domain.NewRepositoryError("find interaction", domain.ErrInteractionNotFound)
		}
	}

	existing.Kinds = existing.Kinds.Union(kinds...)
	if err := s.interactions.UpdateKinds(ctx, existing); err != nil {
		return nil, domain.NewRepositoryError("update interaction", err)
	}
	return existing, nil
}

// Unlike drops the like kind from the user's record for pinID. A record is
// never left empty: it falls back to a plain click.
func (s *InteractionService) Unlike(ctx context.Context, userID, pinID string) (*domain.Interaction, error) {
	existing, err := s.interactions.FindByUserAndPin(ctx, userID, pinID)
	if err != nil {
		return nil, domain.NewRepositoryError("find interaction", err)
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: user %s pin %s", domain.ErrInteractionNotFound, userID, pinID)
	}

	kinds := existing.Kinds.Without(domain.InteractionLike)
	if len(kinds) == 0 {
		kinds = domain.InteractionKinds{domain.InteractionClick}
	}
	existing.Kinds = kinds
	if err := s.interactions.UpdateKinds(ctx, existing); err != nil {
		return nil, domain.NewRepositoryError("update interaction", err)
	}
	return existing, nil
}

// ListByUser returns every interaction record of a user.
func (s *InteractionService) ListByUser(ctx context.Context, userID string) ([]domain.Interaction, error) {
	records, err := s.interactions.FindByUser(ctx, userID)
	if err != nil {
		return nil, domain.NewRepositoryError("find interactions", err)
	}
	if records == nil {
		records = []domain.Interaction{}
	}
	return records, nil
}
