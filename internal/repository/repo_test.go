package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/timmy/pinfeed/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pinfeed.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func vec(values ...float32) *domain.Vector {
	v := domain.Vector(values)
	return &v
}

func seedPins(t *testing.T, repo *PinRepository, pins ...domain.Pin) {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range pins {
		if pins[i].CreatedAt.IsZero() {
			pins[i].CreatedAt = base.Add(time.Duration(i) * time.Minute)
		}
		if pins[i].Title == "" {
			pins[i].Title = pins[i].ID
		}
		if err := repo.Create(context.Background(), &pins[i]); err != nil {
			t.Fatalf("create pin %s: %v", pins[i].ID, err)
		}
	}
}

func pinIDs(pins []domain.Pin) []string {
	ids := make([]string, len(pins))
	for i, p := range pins {
		ids[i] = p.ID
	}
	return ids
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPinRepository_FindCandidateCatalog(t *testing.T) {
	ctx := context.Background()
	repo := NewPinRepository(newTestDB(t))

	seedPins(t, repo,
		domain.Pin{ID: "own", UserID: "u1", Embedding: vec(1, 0, 0)},
		domain.Pin{ID: "a", UserID: "u2", Embedding: vec(1, 0, 0)},
		domain.Pin{ID: "pending", UserID: "u2"},
		domain.Pin{ID: "b", UserID: "u3", Embedding: vec(0, 1, 0)},
	)

	pins, err := repo.FindCandidateCatalog(ctx, "u1")
	if err != nil {
		t.Fatalf("FindCandidateCatalog: %v", err)
	}
	if got, want := pinIDs(pins), []string{"a", "b"}; !equalIDs(got, want) {
		t.Fatalf("catalog = %v, want %v", got, want)
	}
	for _, p := range pins {
		if p.UserID == "u1" {
			t.Errorf("catalog contains pin %s owned by requesting user", p.ID)
		}
		if !p.HasEmbedding() {
			t.Errorf("catalog pin %s has no embedding", p.ID)
		}
	}
	if got := pins[0].EmbeddingVector(); len(got) != 3 || got[0] != 1 {
		t.Errorf("embedding round trip = %v", got)
	}
}

func TestPinRepository_FindByIDMissing(t *testing.T) {
	repo := NewPinRepository(newTestDB(t))

	pin, err := repo.FindByID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pin != nil {
		t.Fatalf("expected nil pin, got %+v", pin)
	}
}

func TestPinRepository_SetEmbedding(t *testing.T) {
	ctx := context.Background()
	repo := NewPinRepository(newTestDB(t))
	seedPins(t, repo, domain.Pin{ID: "p1", UserID: "u1", StorageKey: "pins/p1.png"})

	missing, err := repo.ListMissingEmbedding(ctx, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(missing) != 1 {
		t.Fatalf("missing = %d, want 1", len(missing))
	}

	if err := repo.SetEmbedding(ctx, "p1", domain.Vector{0.5, 0.25}); err != nil {
		t.Fatalf("SetEmbedding: %v", err)
	}
	pin, err := repo.FindByID(ctx, "p1")
	if err != nil || pin == nil {
		t.Fatalf("FindByID: %v %v", pin, err)
	}
	if got := pin.EmbeddingVector(); len(got) != 2 || got[0] != 0.5 || got[1] != 0.25 {
		t.Errorf("embedding = %v", got)
	}

	if err := repo.SetEmbedding(ctx, "ghost", domain.Vector{1}); err == nil {
		t.Error("expected error for unknown pin")
	}

	missing, err = repo.ListMissingEmbedding(ctx, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(missing) != 0 {
		t.Errorf("missing after backfill = %d, want 0", len(missing))
	}
}

func TestPinRepository_ListPopularIDs(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	pins := NewPinRepository(db)
	interactions := NewInteractionRepository(db)

	seedPins(t, pins,
		domain.Pin{ID: "old-quiet", UserID: "u1"},
		domain.Pin{ID: "busy", UserID: "u1"},
		domain.Pin{ID: "new-quiet", UserID: "u1"},
		domain.Pin{ID: "warm", UserID: "u1"},
	)

	records := []domain.Interaction{
		{ID: "i1", UserID: "u2", PinID: "busy", Kinds: domain.InteractionKinds{domain.InteractionLike}},
		{ID: "i2", UserID: "u3", PinID: "busy", Kinds: domain.InteractionKinds{domain.InteractionSave}},
		{ID: "i3", UserID: "u2", PinID: "warm", Kinds: domain.InteractionKinds{domain.InteractionClick}},
	}
	for i := range records {
		if err := interactions.Create(ctx, &records[i]); err != nil {
			t.Fatal(err)
		}
	}

	ids, err := pins.ListPopularIDs(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListPopularIDs: %v", err)
	}
	if want := []string{"busy", "warm", "new-quiet", "old-quiet"}; !equalIDs(ids, want) {
		t.Fatalf("popular = %v, want %v", ids, want)
	}

	page, err := pins.ListPopularIDs(ctx, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"new-quiet", "old-quiet"}; !equalIDs(page, want) {
		t.Errorf("page 2 = %v, want %v", page, want)
	}
}

func TestInteractionRepository_Kinds(t *testing.T) {
	ctx := context.Background()
	repo := NewInteractionRepository(newTestDB(t))

	rec := &domain.Interaction{ID: "i1", UserID: "u1", PinID: "p1", Kinds: domain.InteractionKinds{domain.InteractionClick}}
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatal(err)
	}

	rec.Kinds = rec.Kinds.Union(domain.InteractionLike)
	if err := repo.UpdateKinds(ctx, rec); err != nil {
		t.Fatalf("UpdateKinds: %v", err)
	}

	got, err := repo.FindByUserAndPin(ctx, "u1", "p1")
	if err != nil || got == nil {
		t.Fatalf("FindByUserAndPin: %v %v", got, err)
	}
	if !got.Kinds.Has(domain.InteractionLike) || !got.Kinds.Has(domain.InteractionClick) {
		t.Errorf("kinds = %v", got.Kinds)
	}

	none, err := repo.FindByUserAndPin(ctx, "u1", "p2")
	if err != nil || none != nil {
		t.Errorf("expected nil, nil; got %v, %v", none, err)
	}

	all, err := repo.FindByUser(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("FindByUser = %d records, want 1", len(all))
	}
}

func TestInteractionRepository_CreateDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := NewInteractionRepository(newTestDB(t))

	first := &domain.Interaction{ID: "i1", UserID: "u1", PinID: "p1", Kinds: domain.InteractionKinds{domain.InteractionLike}}
	if err := repo.Create(ctx, first); err != nil {
		t.Fatal(err)
	}
	second := &domain.Interaction{ID: "i2", UserID: "u1", PinID: "p1", Kinds: domain.InteractionKinds{domain.InteractionSave}}
	if err := repo.Create(ctx, second); !errors.Is(err, domain.ErrInteractionExists) {
		t.Fatalf("duplicate Create error = %v, want ErrInteractionExists", err)
	}

	got, err := repo.FindByUserAndPin(ctx, "u1", "p1")
	if err != nil || got == nil {
		t.Fatalf("FindByUserAndPin: %v %v", got, err)
	}
	if got.ID != "i1" || got.Kinds.Has(domain.InteractionSave) {
		t.Errorf("stored record = %+v, want the first one untouched", got)
	}
}
