package service

import (
	"context"
	"errors"
	"testing"

	"github.com/timmy/pinfeed/internal/domain"
)

func TestInteractionRecord(t *testing.T) {
	ctx := context.Background()
	store := newMemInteractionStore()
	svc := NewInteractionService(store, newMemPinStore(domain.Pin{ID: "p1", UserID: "o"}), testLogger())

	first, err := svc.Record(ctx, "u", "p1", []domain.InteractionKind{domain.InteractionClick})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if first.ID == "" {
		t.Error("new record has no ID")
	}

	second, err := svc.Record(ctx, "u", "p1", []domain.InteractionKind{domain.InteractionLike, domain.InteractionClick})
	if err != nil {
		t.Fatalf("Record again: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second engagement created a new record: %s != %s", second.ID, first.ID)
	}
	if len(store.records) != 1 {
		t.Fatalf("records = %d, want 1", len(store.records))
	}
	kinds := store.records[0].Kinds
	if len(kinds) != 2 || !kinds.Has(domain.InteractionLike) || !kinds.Has(domain.InteractionClick) {
		t.Errorf("kinds = %v", kinds)
	}
}

func TestInteractionRecordValidation(t *testing.T) {
	svc := NewInteractionService(newMemInteractionStore(), newMemPinStore(domain.Pin{ID: "p1"}), testLogger())

	tests := []struct {
		name   string
		userID string
		pinID  string
		kinds  []domain.InteractionKind
		want   error
	}{
		{"missing user", "", "p1", []domain.InteractionKind{domain.InteractionLike}, domain.ErrInvalidArgument},
		{"no kinds", "u", "p1", nil, domain.ErrInvalidArgument},
		{"unknown kind", "u", "p1", []domain.InteractionKind{"poke"}, domain.ErrInvalidArgument},
		{"unknown pin", "u", "ghost", []domain.InteractionKind{domain.InteractionLike}, domain.ErrPinNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Record(context.Background(), tt.userID, tt.pinID, tt.kinds)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestInteractionUnlike(t *testing.T) {
	tests := []struct {
		name  string
		kinds domain.InteractionKinds
		want  domain.InteractionKinds
	}{
		{"like only falls back to click", domain.InteractionKinds{domain.InteractionLike}, domain.InteractionKinds{domain.InteractionClick}},
		{"keeps other kinds", domain.InteractionKinds{domain.InteractionLike, domain.InteractionSave}, domain.InteractionKinds{domain.InteractionSave}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemInteractionStore(domain.Interaction{ID: "i1", UserID: "u", PinID: "p", Kinds: tt.kinds})
			svc := NewInteractionService(store, newMemPinStore(), testLogger())

			got, err := svc.Unlike(context.Background(), "u", "p")
			if err != nil {
				t.Fatal(err)
			}
			if len(got.Kinds) != len(tt.want) || got.Kinds[0] != tt.want[0] {
				t.Errorf("kinds = %v, want %v", got.Kinds, tt.want)
			}
			if stored := store.records[0].Kinds; len(stored) != len(tt.want) || stored[0] != tt.want[0] {
				t.Errorf("stored kinds = %v, want %v", stored, tt.want)
			}
		})
	}

	svc := NewInteractionService(newMemInteractionStore(), newMemPinStore(), testLogger())
	if _, err := svc.Unlike(context.Background(), "u", "p"); !errors.Is(err, domain.ErrInteractionNotFound) {
		t.Errorf("expected ErrInteractionNotFound, got %v", err)
	}
}

func TestInteractionListByUser(t *testing.T) {
	store := newMemInteractionStore(like("u", "a"), like("v", "b"), like("u", "c"))
	svc := NewInteractionService(store, newMemPinStore(), testLogger())

	got, err := svc.ListByUser(context.Background(), "u")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("records = %d, want 2", len(got))
	}

	none, err := svc.ListByUser(context.Background(), "nobody")
	if err != nil || none == nil || len(none) != 0 {
		t.Errorf("ListByUser(nobody) = %v, %v", none, err)
	}
}

func TestInteractionRecordMergesConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	store := newMemInteractionStore(like("u", "p1"))
	store.missNext = true
	svc := NewInteractionService(store, newMemPinStore(domain.Pin{ID: "p1", UserID: "o"}), testLogger())

	rec, err := svc.Record(ctx, "u", "p1", []domain.InteractionKind{domain.InteractionSave})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec.ID != "u:p1" {
		t.Errorf("merged into %s, want the existing record", rec.ID)
	}
	if len(store.records) != 1 {
		t.Fatalf("records = %d, want 1", len(store.records))
	}
	kinds := store.records[0].Kinds
	if !kinds.Has(domain.InteractionLike) || !kinds.Has(domain.InteractionSave) {
		t.Errorf("kinds = %v, want like and save", kinds)
	}
}
