package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/pinfeed/internal/config"
	"github.com/timmy/pinfeed/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	pinsCollection         = "pins"
	interactionsCollection = "interactions"
)

// ConnectMongo opens a client for the configured document database and
// verifies connectivity.
func ConnectMongo(ctx context.Context, cfg *config.DatabaseConfig) (*mongo.Database, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client.Database(cfg.MongoDatabase), nil
}

// EnsureMongoIndexes creates the indexes the feed queries rely on.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(pinsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create pin indexes: %w", err)
	}
	_, err = db.Collection(interactionsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user", Value: 1}, {Key: "pin", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "pin", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create interaction indexes: %w", err)
	}
	return nil
}

// pinDocument is the stored shape of a pin. Vectors are kept as doubles so
// documents written by other clients decode without float32 truncation errors.
type pinDocument struct {
	ID          string    `bson:"_id"`
	UserID      string    `bson:"user"`
	BoardID     string    `bson:"board,omitempty"`
	Title       string    `bson:"title"`
	Description string    `bson:"description,omitempty"`
	LinkURL     string    `bson:"link_url,omitempty"`
	StorageKey  string    `bson:"storage_key,omitempty"`
	MediaURL    string    `bson:"media_url,omitempty"`
	Format      string    `bson:"format,omitempty"`
	Width       int       `bson:"width,omitempty"`
	Height      int       `bson:"height,omitempty"`
	PinVector   []float64 `bson:"pin_vector,omitempty"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

func toPinDocument(p *domain.Pin) pinDocument {
	doc := pinDocument{
		ID:          p.ID,
		UserID:      p.UserID,
		BoardID:     p.BoardID,
		Title:       p.Title,
		Description: p.Description,
		LinkURL:     p.LinkURL,
		StorageKey:  p.StorageKey,
		MediaURL:    p.MediaURL,
		Format:      p.Format,
		Width:       p.Width,
		Height:      p.Height,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.HasEmbedding() {
		doc.PinVector = toFloat64s(*p.Embedding)
	}
	return doc
}

func (d *pinDocument) toDomain() domain.Pin {
	pin := domain.Pin{
		ID:          d.ID,
		UserID:      d.UserID,
		BoardID:     d.BoardID,
		Title:       d.Title,
		Description: d.Description,
		LinkURL:     d.LinkURL,
		StorageKey:  d.StorageKey,
		MediaURL:    d.MediaURL,
		Format:      d.Format,
		Width:       d.Width,
		Height:      d.Height,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if len(d.PinVector) > 0 {
		v := make(domain.Vector, len(d.PinVector))
		for i, x := range d.PinVector {
			v[i] = float32(x)
		}
		pin.Embedding = &v
	}
	return pin
}

func toFloat64s(v domain.Vector) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// hasVector matches documents whose pin_vector has at least one element.
var hasVector = bson.M{"pin_vector.0": bson.M{"$exists": true}}

// MongoPinRepository stores pins in a MongoDB collection.
type MongoPinRepository struct {
	pins *mongo.Collection
}

// NewMongoPinRepository creates a pin repository over db's pins collection.
func NewMongoPinRepository(db *mongo.Database) *MongoPinRepository {
	return &MongoPinRepository{pins: db.Collection(pinsCollection)}
}

// Create inserts a new pin document.
func (r *MongoPinRepository) Create(ctx context.Context, pin *domain.Pin) error {
	now := time.Now()
	if pin.CreatedAt.IsZero() {
		pin.CreatedAt = now
	}
	pin.UpdatedAt = now
	_, err := r.pins.InsertOne(ctx, toPinDocument(pin))
	return err
}

// Update replaces an existing pin document.
func (r *MongoPinRepository) Update(ctx context.Context, pin *domain.Pin) error {
	pin.UpdatedAt = time.Now()
	_, err := r.pins.ReplaceOne(ctx, bson.M{"_id": pin.ID}, toPinDocument(pin))
	return err
}

// FindByID returns the pin, or nil if it does not exist.
func (r *MongoPinRepository) FindByID(ctx context.Context, id string) (*domain.Pin, error) {
	var doc pinDocument
	if err := r.pins.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	pin := doc.toDomain()
	return &pin, nil
}

// GetByIDs retrieves pins by a list of IDs. Order is unspecified.
func (r *MongoPinRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.Pin, error) {
	if len(ids) == 0 {
		return []domain.Pin{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
}

// FindCandidateCatalog returns embedded pins not owned by excludeUserID, oldest first.
func (r *MongoPinRepository) FindCandidateCatalog(ctx context.Context, excludeUserID string) ([]domain.Pin, error) {
	filter := bson.M{"user": bson.M{"$ne": excludeUserID}}
	for k, v := range hasVector {
		filter[k] = v
	}
	return r.find(ctx, filter, catalogFindOptions())
}

// FindEmbeddedExcept returns every embedded pin except excludePinID, oldest first.
func (r *MongoPinRepository) FindEmbeddedExcept(ctx context.Context, excludePinID string) ([]domain.Pin, error) {
	filter := bson.M{"_id": bson.M{"$ne": excludePinID}}
	for k, v := range hasVector {
		filter[k] = v
	}
	return r.find(ctx, filter, catalogFindOptions())
}

func catalogFindOptions() *options.FindOptionsBuilder {
	return options.Find().
		SetProjection(bson.M{"_id": 1, "user": 1, "pin_vector": 1, "createdAt": 1}).
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
}

// SetEmbedding stores the vectorizer output for a pin.
func (r *MongoPinRepository) SetEmbedding(ctx context.Context, id string, embedding domain.Vector) error {
	res, err := r.pins.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"pin_vector": toFloat64s(embedding), "updatedAt": time.Now()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("pin %s: %w", id, mongo.ErrNoDocuments)
	}
	return nil
}

// ListMissingEmbedding lists pins with stored media but no vector.
func (r *MongoPinRepository) ListMissingEmbedding(ctx context.Context, limit, offset int) ([]domain.Pin, error) {
	filter := bson.M{
		"pin_vector.0": bson.M{"$exists": false},
		"storage_key":  bson.M{"$nin": bson.A{nil, ""}},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	return r.find(ctx, filter, opts)
}

// ListEmbedded pages through pins that carry an embedding.
func (r *MongoPinRepository) ListEmbedded(ctx context.Context, limit, offset int) ([]domain.Pin, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	return r.find(ctx, hasVector, opts)
}

// ListPopularIDs orders pins by interaction count, newest first among equals.
func (r *MongoPinRepository) ListPopularIDs(ctx context.Context, limit, offset int) ([]string, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$lookup", Value: bson.M{
			"from":         interactionsCollection,
			"localField":   "_id",
			"foreignField": "pin",
			"as":           "interactions",
		}}},
		{{Key: "$project", Value: bson.M{
			"createdAt":  1,
			"popularity": bson.M{"$size": "$interactions"},
		}}},
		{{Key: "$sort", Value: bson.D{
			{Key: "popularity", Value: -1},
			{Key: "createdAt", Value: -1},
			{Key: "_id", Value: 1},
		}}},
		{{Key: "$skip", Value: offset}},
		{{Key: "$limit", Value: limit}},
	}

	cur, err := r.pins.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	ids := []string{}
	for cur.Next(ctx) {
		var row struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		ids = append(ids, row.ID)
	}
	return ids, cur.Err()
}

// Count returns the total number of pins.
func (r *MongoPinRepository) Count(ctx context.Context) (int64, error) {
	return r.pins.CountDocuments(ctx, bson.M{})
}

func (r *MongoPinRepository) find(ctx context.Context, filter interface{}, opts *options.FindOptionsBuilder) ([]domain.Pin, error) {
	cur, err := r.pins.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	pins := []domain.Pin{}
	for cur.Next(ctx) {
		var doc pinDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		pins = append(pins, doc.toDomain())
	}
	return pins, cur.Err()
}

type interactionDocument struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user"`
	PinID     string    `bson:"pin"`
	Kinds     []string  `bson:"interactionType"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func toInteractionDocument(i *domain.Interaction) interactionDocument {
	kinds := make([]string, len(i.Kinds))
	for n, k := range i.Kinds {
		kinds[n] = string(k)
	}
	return interactionDocument{
		ID:        i.ID,
		UserID:    i.UserID,
		PinID:     i.PinID,
		Kinds:     kinds,
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
}

func (d *interactionDocument) toDomain() domain.Interaction {
	kinds := make(domain.InteractionKinds, len(d.Kinds))
	for n, k := range d.Kinds {
		kinds[n] = domain.InteractionKind(k)
	}
	return domain.Interaction{
		ID:        d.ID,
		UserID:    d.UserID,
		PinID:     d.PinID,
		Kinds:     kinds,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// MongoInteractionRepository stores interactions in a MongoDB collection.
type MongoInteractionRepository struct {
	interactions *mongo.Collection
}

// NewMongoInteractionRepository creates an interaction repository over db.
func NewMongoInteractionRepository(db *mongo.Database) *MongoInteractionRepository {
	return &MongoInteractionRepository{interactions: db.Collection(interactionsCollection)}
}

// FindByUser returns all interaction records of a user, oldest first.
func (r *MongoInteractionRepository) FindByUser(ctx context.Context, userID string) ([]domain.Interaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cur, err := r.interactions.Find(ctx, bson.M{"user": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []domain.Interaction{}
	for cur.Next(ctx) {
		var doc interactionDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toDomain())
	}
	return out, cur.Err()
}

// FindByUserAndPin returns the record for (userID, pinID), or nil if none exists.
func (r *MongoInteractionRepository) FindByUserAndPin(ctx context.Context, userID, pinID string) (*domain.Interaction, error) {
	var doc interactionDocument
	err := r.interactions.FindOne(ctx, bson.M{"user": userID, "pin": pinID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	out := doc.toDomain()
	return &out, nil
}

// Create inserts a new interaction record. A duplicate (user, pin) pair
// returns domain.ErrInteractionExists.
func (r *MongoInteractionRepository) Create(ctx context.Context, interaction *domain.Interaction) error {
	now := time.Now()
	if interaction.CreatedAt.IsZero() {
		interaction.CreatedAt = now
	}
	interaction.UpdatedAt = now
	_, err := r.interactions.InsertOne(ctx, toInteractionDocument(interaction))
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrInteractionExists
	}
	return err
}

// UpdateKinds replaces the kind set of an existing record.
func (r *MongoInteractionRepository) UpdateKinds(ctx context.Context, interaction *domain.Interaction) error {
	interaction.UpdatedAt = time.Now()
	doc := toInteractionDocument(interaction)
	_, err := r.interactions.UpdateOne(ctx, bson.M{"_id": interaction.ID}, bson.M{
		"$set": bson.M{"interactionType": doc.Kinds, "updatedAt": interaction.UpdatedAt},
	})
	return err
}
