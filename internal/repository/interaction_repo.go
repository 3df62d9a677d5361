package repository

import (
	"context"
	"errors"

	"github.com/timmy/pinfeed/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InteractionRepository handles interaction data operations.
type InteractionRepository struct {
	db *gorm.DB
}

// NewInteractionRepository creates a new InteractionRepository.
func NewInteractionRepository(db *gorm.DB) *InteractionRepository {
	return &InteractionRepository{db: db}
}

// FindByUser returns all interaction records of a user.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: user whose history is loaded.
// Returns:
//   - []domain.Interaction: the user's records, oldest first.
//   - error: non-nil if the query fails.
func (r *InteractionRepository) FindByUser(ctx context.Context, userID string) ([]domain.Interaction, error) {
	var interactions []domain.Interaction
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&interactions).Error; err != nil {
		return nil, err
	}
	return interactions, nil
}

// FindByUserAndPin returns the record for (userID, pinID), or nil if none exists.
func (r *InteractionRepository) FindByUserAndPin(ctx context.Context, userID, pinID string) (*domain.Interaction, error) {
	var interaction domain.Interaction
	err := r.db.WithContext(ctx).
		First(&interaction, "user_id = ? AND pin_id = ?", userID, pinID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &interaction, nil
}

// Create inserts a new interaction record. When a record for the same
// (user, pin) already exists nothing is written and domain.ErrInteractionExists
// is returned.
func (r *InteractionRepository) Create(ctx context.Context, interaction *domain.Interaction) error {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "pin_id"}},
			DoNothing: true,
		}).
		Create(interaction)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrInteractionExists
	}
	return nil
}

// UpdateKinds replaces the kind set of an existing record.
func (r *InteractionRepository) UpdateKinds(ctx context.Context, interaction *domain.Interaction) error {
	return r.db.WithContext(ctx).
		Model(interaction).
		Select("kinds", "updated_at").
		Updates(interaction).Error
}
