package service

import (
	"context"
	"errors"
	"testing"

	"github.com/timmy/pinfeed/internal/domain"
)

// flakyEmbedder fails for selected storage keys.
type flakyEmbedder struct {
	fail map[string]bool
}

func (f *flakyEmbedder) Embed(_ context.Context, _ []byte, filename string) (domain.Vector, error) {
	if f.fail[filename] {
		return nil, errors.New("vectorizer rejected media")
	}
	return domain.Vector{0, 1}, nil
}

func TestVectorizeMissing(t *testing.T) {
	ctx := context.Background()
	store := newMemStorage()
	for _, key := range []string{"k1", "k2", "k3", "k4"} {
		store.objects[key] = []byte("media-" + key)
	}
	pins := newMemPinStore(
		domain.Pin{ID: "p1", StorageKey: "k1"},
		domain.Pin{ID: "p2", StorageKey: "k2"},
		domain.Pin{ID: "p3", StorageKey: "k3"},
		domain.Pin{ID: "p4", StorageKey: "k4"},
		domain.Pin{ID: "no-media"},
		domain.Pin{ID: "done", StorageKey: "k0", Embedding: vecPtr(1, 0)},
	)
	index := newFakeIndex()
	svc := NewBackfillService(pins, store, &flakyEmbedder{fail: map[string]bool{"k2": true}}, index, testLogger(),
		&BackfillConfig{Workers: 3, BatchSize: 2})

	stats, err := svc.VectorizeMissing(ctx, 0)
	if err != nil {
		t.Fatalf("VectorizeMissing: %v", err)
	}
	if stats.TotalItems != 4 || stats.ProcessedItems != 3 || stats.FailedItems != 1 {
		t.Errorf("stats = %+v", stats)
	}

	for _, id := range []string{"p1", "p3", "p4"} {
		p, _ := pins.FindByID(ctx, id)
		if !p.HasEmbedding() {
			t.Errorf("%s not vectorized", id)
		}
		if _, ok := index.upserted[id]; !ok {
			t.Errorf("%s not mirrored", id)
		}
	}
	if p, _ := pins.FindByID(ctx, "p2"); p.HasEmbedding() {
		t.Error("failed pin has an embedding")
	}
}

func TestVectorizeMissingLimit(t *testing.T) {
	store := newMemStorage()
	store.objects["k1"] = []byte("a")
	store.objects["k2"] = []byte("b")
	pins := newMemPinStore(domain.Pin{ID: "p1", StorageKey: "k1"}, domain.Pin{ID: "p2", StorageKey: "k2"})
	svc := NewBackfillService(pins, store, &flakyEmbedder{}, nil, testLogger(), &BackfillConfig{Workers: 1, BatchSize: 10})

	stats, err := svc.VectorizeMissing(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalItems != 1 || stats.ProcessedItems != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSyncIndex(t *testing.T) {
	pins := newMemPinStore(
		domain.Pin{ID: "a", Embedding: vecPtr(1, 0)},
		domain.Pin{ID: "b"},
		domain.Pin{ID: "c", Embedding: vecPtr(0, 1)},
		domain.Pin{ID: "d", Embedding: vecPtr(1, 1)},
	)
	index := newFakeIndex()
	svc := NewBackfillService(pins, newMemStorage(), &flakyEmbedder{}, index, testLogger(), &BackfillConfig{Workers: 2, BatchSize: 2})

	stats, err := svc.SyncIndex(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.ProcessedItems != 3 || len(index.upserted) != 3 {
		t.Errorf("stats = %+v, upserted = %d", stats, len(index.upserted))
	}

	noIndex := NewBackfillService(pins, newMemStorage(), &flakyEmbedder{}, nil, testLogger(), &BackfillConfig{})
	if _, err := noIndex.SyncIndex(context.Background()); err == nil {
		t.Error("expected error without an index")
	}
}
