package repository

import (
	"context"
	"crypto/tls"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"github.com/timmy/pinfeed/internal/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const (
	defaultVectorDimension = 512
	scrollPageSize         = 256
)

// QdrantConnectionConfig holds configuration for Qdrant connection
type QdrantConnectionConfig struct {
	Host            string
	Port            int
	Collection      string
	APIKey          string // Qdrant Cloud API Key (enables TLS automatically)
	UseTLS          bool   // Explicitly enable TLS without API Key
	VectorDimension int
}

// apiKeyInterceptor creates a unary interceptor that adds API key to metadata
func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// QdrantRepository mirrors pin embeddings into a Qdrant collection and can
// serve the candidate catalog from it. Point IDs are the pin UUIDs.
type QdrantRepository struct {
	conn            *grpc.ClientConn
	qdrantClient    pb.QdrantClient
	pointsClient    pb.PointsClient
	collectClient   pb.CollectionsClient
	collectionName  string
	vectorDimension int
}

// NewQdrantRepository creates a new QdrantRepository.
// Supports both local Qdrant (insecure) and Qdrant Cloud (TLS + API Key).
func NewQdrantRepository(cfg *QdrantConnectionConfig) (*QdrantRepository, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	vectorDimension := cfg.VectorDimension
	if vectorDimension <= 0 {
		vectorDimension = defaultVectorDimension
	}

	var opts []grpc.DialOption
	if cfg.UseTLS || cfg.APIKey != "" {
		creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS13})
		opts = append(opts, grpc.WithTransportCredentials(creds))
		if cfg.APIKey != "" {
			opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
		}
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &QdrantRepository{
		conn:            conn,
		qdrantClient:    pb.NewQdrantClient(conn),
		pointsClient:    pb.NewPointsClient(conn),
		collectClient:   pb.NewCollectionsClient(conn),
		collectionName:  cfg.Collection,
		vectorDimension: vectorDimension,
	}, nil
}

// Close closes the gRPC connection
func (r *QdrantRepository) Close() error {
	return r.conn.Close()
}

// Ping checks that the Qdrant server answers.
func (r *QdrantRepository) Ping(ctx context.Context) error {
	if _, err := r.qdrantClient.HealthCheck(ctx, &pb.HealthCheckRequest{}); err != nil {
		return fmt.Errorf("qdrant health check failed: %w", err)
	}
	return nil
}

// EnsureCollection creates the collection if it doesn't exist and checks the
// vector size of an existing one.
func (r *QdrantRepository) EnsureCollection(ctx context.Context) error {
	info, err := r.collectClient.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collectionName,
	})
	if err == nil {
		if size, ok := collectionVectorSize(info.GetResult()); ok && size != uint64(r.vectorDimension) {
			return fmt.Errorf("collection %s has vector size %d, expected %d", r.collectionName, size, r.vectorDimension)
		}
		return nil
	}

	_, err = r.collectClient.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collectionName,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(r.vectorDimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// Owner filter is applied on every catalog scroll.
	_, err = r.pointsClient.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
		CollectionName: r.collectionName,
		FieldName:      "user_id",
		FieldType:      pb.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to index user_id: %w", err)
	}

	return nil
}

func collectionVectorSize(info *pb.CollectionInfo) (uint64, bool) {
	vectors := info.GetConfig().GetParams().GetVectorsConfig()
	if vectors == nil {
		return 0, false
	}

	if single := vectors.GetParams(); single != nil {
		if size := single.GetSize(); size > 0 {
			return size, true
		}
	}

	for _, vectorParams := range vectors.GetParamsMap().GetMap() {
		if size := vectorParams.GetSize(); size > 0 {
			return size, true
		}
	}

	return 0, false
}

// PinPayload is the payload stored with each pin vector.
type PinPayload struct {
	PinID     string
	UserID    string
	BoardID   string
	CreatedAt time.Time
}

func newPinPayload(pin *domain.Pin) *PinPayload {
	return &PinPayload{
		PinID:     pin.ID,
		UserID:    pin.UserID,
		BoardID:   pin.BoardID,
		CreatedAt: pin.CreatedAt,
	}
}

func (p *PinPayload) toValues() map[string]*pb.Value {
	return map[string]*pb.Value{
		"pin_id":     {Kind: &pb.Value_StringValue{StringValue: p.PinID}},
		"user_id":    {Kind: &pb.Value_StringValue{StringValue: p.UserID}},
		"board_id":   {Kind: &pb.Value_StringValue{StringValue: p.BoardID}},
		"created_at": {Kind: &pb.Value_IntegerValue{IntegerValue: p.CreatedAt.UnixNano()}},
	}
}

func parsePayload(payload map[string]*pb.Value) *PinPayload {
	if payload == nil {
		return nil
	}

	p := &PinPayload{}
	if v, ok := payload["pin_id"]; ok {
		p.PinID = v.GetStringValue()
	}
	if v, ok := payload["user_id"]; ok {
		p.UserID = v.GetStringValue()
	}
	if v, ok := payload["board_id"]; ok {
		p.BoardID = v.GetStringValue()
	}
	if v, ok := payload["created_at"]; ok {
		p.CreatedAt = time.Unix(0, v.GetIntegerValue()).UTC()
	}
	return p
}

// Upsert inserts or replaces the vector of a pin. The pin must carry an embedding.
func (r *QdrantRepository) Upsert(ctx context.Context, pin *domain.Pin) error {
	if !pin.HasEmbedding() {
		return fmt.Errorf("pin %s has no embedding", pin.ID)
	}
	uid, err := uuid.Parse(pin.ID)
	if err != nil {
		return fmt.Errorf("invalid point ID: %w", err)
	}

	points := []*pb.PointStruct{
		{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: uid.String()},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: []float32(pin.EmbeddingVector())},
				},
			},
			Payload: newPinPayload(pin).toValues(),
		},
	}

	_, err = r.pointsClient.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collectionName,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}

	return nil
}

// FindCandidateCatalog scrolls every point whose owner is not excludeUserID
// and returns them as pins ordered by creation time, then ID.
func (r *QdrantRepository) FindCandidateCatalog(ctx context.Context, excludeUserID string) ([]domain.Pin, error) {
	limit := uint32(scrollPageSize)
	req := &pb.ScrollPoints{
		CollectionName: r.collectionName,
		Filter:         excludeOwnerFilter(excludeUserID),
		Limit:          &limit,
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
		WithVectors: &pb.WithVectorsSelector{
			SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true},
		},
	}

	pins := []domain.Pin{}
	for {
		resp, err := r.pointsClient.Scroll(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to scroll points: %w", err)
		}
		for _, point := range resp.GetResult() {
			if pin, ok := pointToPin(point); ok {
				pins = append(pins, pin)
			}
		}
		next := resp.GetNextPageOffset()
		if next == nil {
			break
		}
		req.Offset = next
	}

	sortCatalog(pins)
	return pins, nil
}

func excludeOwnerFilter(userID string) *pb.Filter {
	return &pb.Filter{
		MustNot: []*pb.Condition{
			{
				ConditionOneOf: &pb.Condition_Field{
					Field: &pb.FieldCondition{
						Key: "user_id",
						Match: &pb.Match{
							MatchValue: &pb.Match_Keyword{Keyword: userID},
						},
					},
				},
			},
		},
	}
}

func pointToPin(point *pb.RetrievedPoint) (domain.Pin, bool) {
	data := vectorData(point.GetVectors().GetVector())
	if len(data) == 0 {
		return domain.Pin{}, false
	}
	vec := domain.Vector(data).Clone()

	pin := domain.Pin{ID: point.GetId().GetUuid(), Embedding: &vec}
	if payload := parsePayload(point.GetPayload()); payload != nil {
		if payload.PinID != "" {
			pin.ID = payload.PinID
		}
		pin.UserID = payload.UserID
		pin.BoardID = payload.BoardID
		pin.CreatedAt = payload.CreatedAt
	}
	return pin, true
}

func vectorData(v *pb.VectorOutput) []float32 {
	if dense := v.GetDense(); dense != nil {
		return dense.GetData()
	}
	return v.GetData()
}

// sortCatalog puts pins in the same order the database catalog uses.
func sortCatalog(pins []domain.Pin) {
	sort.SliceStable(pins, func(i, j int) bool {
		if !pins[i].CreatedAt.Equal(pins[j].CreatedAt) {
			return pins[i].CreatedAt.Before(pins[j].CreatedAt)
		}
		return pins[i].ID < pins[j].ID
	})
}

// Delete deletes a point by ID
func (r *QdrantRepository) Delete(ctx context.Context, pointID string) error {
	uid, err := uuid.Parse(pointID)
	if err != nil {
		return fmt.Errorf("invalid point ID: %w", err)
	}

	_, err = r.pointsClient.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collectionName,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{
					Ids: []*pb.PointId{
						{PointIdOptions: &pb.PointId_Uuid{Uuid: uid.String()}},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete point: %w", err)
	}

	return nil
}
