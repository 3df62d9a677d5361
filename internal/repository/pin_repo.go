package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/pinfeed/internal/domain"
	"gorm.io/gorm"
)

// PinRepository handles pin data operations.
type PinRepository struct {
	db *gorm.DB
}

// NewPinRepository creates a new PinRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *PinRepository: repository instance bound to db.
func NewPinRepository(db *gorm.DB) *PinRepository {
	return &PinRepository{db: db}
}

// Create inserts a new pin record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - pin: pin record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *PinRepository) Create(ctx context.Context, pin *domain.Pin) error {
	return r.db.WithContext(ctx).Create(pin).Error
}

// Update saves every field of an existing pin.
func (r *PinRepository) Update(ctx context.Context, pin *domain.Pin) error {
	return r.db.WithContext(ctx).Save(pin).Error
}

// FindByID retrieves a pin by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: pin ID.
// Returns:
//   - *domain.Pin: pin record, or nil if no such pin exists.
//   - error: non-nil if the lookup fails.
func (r *PinRepository) FindByID(ctx context.Context, id string) (*domain.Pin, error) {
	var pin domain.Pin
	if err := r.db.WithContext(ctx).First(&pin, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pin, nil
}

// GetByIDs retrieves pins by a list of IDs. Order is unspecified.
func (r *PinRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.Pin, error) {
	if len(ids) == 0 {
		return []domain.Pin{}, nil
	}
	var pins []domain.Pin
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&pins).Error; err != nil {
		return nil, fmt.Errorf("failed to get pins by IDs: %w", err)
	}
	return pins, nil
}

// FindCandidateCatalog returns every pin that carries an embedding and is not
// owned by excludeUserID, oldest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - excludeUserID: owner whose pins are left out.
// Returns:
//   - []domain.Pin: candidate pins with ID, owner and embedding populated.
//   - error: non-nil if the query fails.
func (r *PinRepository) FindCandidateCatalog(ctx context.Context, excludeUserID string) ([]domain.Pin, error) {
	var pins []domain.Pin
	if err := r.db.WithContext(ctx).
		Select("id", "user_id", "embedding", "created_at").
		Where("embedding IS NOT NULL AND user_id <> ?", excludeUserID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&pins).Error; err != nil {
		return nil, err
	}
	return pins, nil
}

// FindEmbeddedExcept returns every embedded pin except excludePinID, oldest first.
func (r *PinRepository) FindEmbeddedExcept(ctx context.Context, excludePinID string) ([]domain.Pin, error) {
	var pins []domain.Pin
	if err := r.db.WithContext(ctx).
		Select("id", "user_id", "embedding", "created_at").
		Where("embedding IS NOT NULL AND id <> ?", excludePinID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&pins).Error; err != nil {
		return nil, err
	}
	return pins, nil
}

// SetEmbedding stores the vectorizer output for a pin.
func (r *PinRepository) SetEmbedding(ctx context.Context, id string, embedding domain.Vector) error {
	result := r.db.WithContext(ctx).Model(&domain.Pin{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"embedding":  embedding,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("pin %s: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// ListMissingEmbedding lists pins whose media was uploaded but never vectorized.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of records to return.
//   - offset: number of records to skip.
// Returns:
//   - []domain.Pin: matching pins, oldest first.
//   - error: non-nil if the query fails.
func (r *PinRepository) ListMissingEmbedding(ctx context.Context, limit, offset int) ([]domain.Pin, error) {
	var pins []domain.Pin
	if err := r.db.WithContext(ctx).
		Where("embedding IS NULL AND storage_key <> ''").
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&pins).Error; err != nil {
		return nil, err
	}
	return pins, nil
}

// ListEmbedded pages through pins that carry an embedding.
func (r *PinRepository) ListEmbedded(ctx context.Context, limit, offset int) ([]domain.Pin, error) {
	var pins []domain.Pin
	if err := r.db.WithContext(ctx).
		Where("embedding IS NOT NULL").
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&pins).Error; err != nil {
		return nil, err
	}
	return pins, nil
}

// ListPopularIDs orders pins by how many interaction records reference them,
// newest first among equals.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: page size.
//   - offset: number of pins to skip.
// Returns:
//   - []string: pin IDs in popularity order.
//   - error: non-nil if the query fails.
func (r *PinRepository) ListPopularIDs(ctx context.Context, limit, offset int) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).
		Table("pins").
		Select("pins.id").
		Joins("LEFT JOIN interactions ON interactions.pin_id = pins.id").
		Group("pins.id, pins.created_at").
		Order("COUNT(interactions.id) DESC").
		Order("pins.created_at DESC").
		Order("pins.id ASC").
		Limit(limit).
		Offset(offset).
		Pluck("pins.id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Count returns the total number of pins.
func (r *PinRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Pin{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
