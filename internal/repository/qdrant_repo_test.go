package repository

import (
	"testing"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/timmy/pinfeed/internal/domain"
)

func TestPinPayloadRoundTrip(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	pin := &domain.Pin{ID: "8f6c1b1e-4c55-4a38-9b5e-0a1d2c3b4a59", UserID: "u1", BoardID: "b1", CreatedAt: created}

	got := parsePayload(newPinPayload(pin).toValues())
	if got.PinID != pin.ID || got.UserID != "u1" || got.BoardID != "b1" {
		t.Errorf("payload = %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, created)
	}

	if parsePayload(nil) != nil {
		t.Error("nil payload should parse to nil")
	}
}

func TestExcludeOwnerFilter(t *testing.T) {
	f := excludeOwnerFilter("u42")
	if len(f.GetMust()) != 0 || len(f.GetMustNot()) != 1 {
		t.Fatalf("filter = %+v", f)
	}
	field := f.GetMustNot()[0].GetField()
	if field.GetKey() != "user_id" {
		t.Errorf("key = %q", field.GetKey())
	}
	if kw := field.GetMatch().GetKeyword(); kw != "u42" {
		t.Errorf("keyword = %q", kw)
	}
}

func TestPointToPin(t *testing.T) {
	id := "0b7e7d1a-1f0c-4a66-8f0e-3c5e1b2a9d10"
	point := &pb.RetrievedPoint{
		Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}},
		Payload: (&PinPayload{PinID: id, UserID: "u2"}).toValues(),
		Vectors: &pb.VectorsOutput{
			VectorsOptions: &pb.VectorsOutput_Vector{
				Vector: &pb.VectorOutput{Data: []float32{0.1, 0.2}},
			},
		},
	}

	pin, ok := pointToPin(point)
	if !ok {
		t.Fatal("expected point to convert")
	}
	if pin.ID != id || pin.UserID != "u2" {
		t.Errorf("pin = %+v", pin)
	}
	if got := pin.EmbeddingVector(); len(got) != 2 || got[1] != 0.2 {
		t.Errorf("embedding = %v", got)
	}

	empty := &pb.RetrievedPoint{Id: point.Id}
	if _, ok := pointToPin(empty); ok {
		t.Error("point without vector should be skipped")
	}
}

func TestSortCatalog(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pins := []domain.Pin{
		{ID: "c", CreatedAt: base.Add(time.Minute)},
		{ID: "b", CreatedAt: base},
		{ID: "a", CreatedAt: base},
	}
	sortCatalog(pins)
	if got, want := pinIDs(pins), []string{"a", "b", "c"}; !equalIDs(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}
