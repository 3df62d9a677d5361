package service

import (
	"context"

	"github.com/timmy/pinfeed/internal/domain"
	"github.com/timmy/pinfeed/internal/repository"
)

// PinLookup resolves a single pin. A missing pin is (nil, nil).
type PinLookup interface {
	FindByID(ctx context.Context, id string) (*domain.Pin, error)
}

// CatalogSource lists the pins that may be recommended to a user: pins with
// an embedding that the user does not own, in a stable order.
type CatalogSource interface {
	FindCandidateCatalog(ctx context.Context, excludeUserID string) ([]domain.Pin, error)
}

// PopularityStore orders pins by engagement.
type PopularityStore interface {
	ListPopularIDs(ctx context.Context, limit, offset int) ([]string, error)
	Count(ctx context.Context) (int64, error)
}

// PinStore is the full pin persistence surface used by the services.
type PinStore interface {
	PinLookup
	CatalogSource
	PopularityStore
	Create(ctx context.Context, pin *domain.Pin) error
	Update(ctx context.Context, pin *domain.Pin) error
	GetByIDs(ctx context.Context, ids []string) ([]domain.Pin, error)
	FindEmbeddedExcept(ctx context.Context, excludePinID string) ([]domain.Pin, error)
	SetEmbedding(ctx context.Context, id string, embedding domain.Vector) error
	ListMissingEmbedding(ctx context.Context, limit, offset int) ([]domain.Pin, error)
	ListEmbedded(ctx context.Context, limit, offset int) ([]domain.Pin, error)
}

// InteractionStore persists (user, pin) engagement records.
type InteractionStore interface {
	FindByUser(ctx context.Context, userID string) ([]domain.Interaction, error)
	FindByUserAndPin(ctx context.Context, userID, pinID string) (*domain.Interaction, error)
	Create(ctx context.Context, interaction *domain.Interaction) error
	UpdateKinds(ctx context.Context, interaction *domain.Interaction) error
}

// VectorIndex mirrors pin embeddings into an external vector store.
type VectorIndex interface {
	Upsert(ctx context.Context, pin *domain.Pin) error
	Delete(ctx context.Context, pointID string) error
}

var (
	_ PinStore         = (*repository.PinRepository)(nil)
	_ PinStore         = (*repository.MongoPinRepository)(nil)
	_ InteractionStore = (*repository.InteractionRepository)(nil)
	_ InteractionStore = (*repository.MongoInteractionRepository)(nil)
	_ CatalogSource    = (*repository.QdrantRepository)(nil)
	_ VectorIndex      = (*repository.QdrantRepository)(nil)
)
