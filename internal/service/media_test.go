package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/timmy/pinfeed/internal/domain"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestUploadPinMedia(t *testing.T) {
	ctx := context.Background()
	pins := newMemPinStore(domain.Pin{ID: "p1", UserID: "u", Title: "t"})
	store := newMemStorage()
	index := newFakeIndex()
	svc := NewMediaService(pins, store, &fakeEmbedder{vector: domain.Vector{0.6, 0.8}}, index, testLogger())

	pin, err := svc.UploadPinMedia(ctx, "p1", pngBytes(t, 4, 3), "lamp.png")
	if err != nil {
		t.Fatalf("UploadPinMedia: %v", err)
	}
	if pin.Format != "png" || pin.Width != 4 || pin.Height != 3 {
		t.Errorf("media metadata = %s %dx%d", pin.Format, pin.Width, pin.Height)
	}
	if !strings.HasPrefix(pin.StorageKey, "pins/") || !strings.HasSuffix(pin.StorageKey, ".png") {
		t.Errorf("storage key = %q", pin.StorageKey)
	}
	if pin.MediaURL != "https://cdn.test/"+pin.StorageKey {
		t.Errorf("media url = %q", pin.MediaURL)
	}

	stored, _ := pins.FindByID(ctx, "p1")
	if got := stored.EmbeddingVector(); len(got) != 2 || got[0] != 0.6 {
		t.Errorf("stored embedding = %v", got)
	}
	if _, ok := index.upserted["p1"]; !ok {
		t.Error("embedding not mirrored to the vector index")
	}
	if store.uploads != 1 {
		t.Errorf("uploads = %d", store.uploads)
	}

	// Same bytes again: object already stored, no second upload.
	if _, err := svc.UploadPinMedia(ctx, "p1", pngBytes(t, 4, 3), "lamp.png"); err != nil {
		t.Fatal(err)
	}
	if store.uploads != 1 {
		t.Errorf("duplicate media uploaded again: uploads = %d", store.uploads)
	}
}

func TestUploadPinMediaWithoutIndex(t *testing.T) {
	pins := newMemPinStore(domain.Pin{ID: "p1", UserID: "u"})
	svc := NewMediaService(pins, newMemStorage(), &fakeEmbedder{vector: domain.Vector{1}}, nil, testLogger())

	if _, err := svc.UploadPinMedia(context.Background(), "p1", pngBytes(t, 1, 1), "a.png"); err != nil {
		t.Fatalf("UploadPinMedia: %v", err)
	}
}

func TestUploadPinMediaFailures(t *testing.T) {
	t.Run("unknown pin", func(t *testing.T) {
		svc := NewMediaService(newMemPinStore(), newMemStorage(), &fakeEmbedder{vector: domain.Vector{1}}, nil, testLogger())
		_, err := svc.UploadPinMedia(context.Background(), "ghost", pngBytes(t, 1, 1), "a.png")
		if !errors.Is(err, domain.ErrPinNotFound) {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("not an image", func(t *testing.T) {
		store := newMemStorage()
		svc := NewMediaService(newMemPinStore(domain.Pin{ID: "p1"}), store, &fakeEmbedder{vector: domain.Vector{1}}, nil, testLogger())
		_, err := svc.UploadPinMedia(context.Background(), "p1", []byte("plain text"), "a.txt")
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("error = %v", err)
		}
		if store.uploads != 0 {
			t.Error("invalid media was uploaded")
		}
	})

	t.Run("vectorizer down", func(t *testing.T) {
		store := newMemStorage()
		svc := NewMediaService(newMemPinStore(domain.Pin{ID: "p1"}), store, &fakeEmbedder{err: errors.New("503")}, nil, testLogger())
		if _, err := svc.UploadPinMedia(context.Background(), "p1", pngBytes(t, 1, 1), "a.png"); err == nil {
			t.Fatal("expected error")
		}
		if store.uploads != 0 {
			t.Error("media uploaded although vectorizing failed")
		}
	})

	t.Run("index failure rolls back upload", func(t *testing.T) {
		pins := newMemPinStore(domain.Pin{ID: "p1"})
		store := newMemStorage()
		index := newFakeIndex()
		index.upsertErr = errors.New("unavailable")
		svc := NewMediaService(pins, store, &fakeEmbedder{vector: domain.Vector{1}}, index, testLogger())

		if _, err := svc.UploadPinMedia(context.Background(), "p1", pngBytes(t, 1, 1), "a.png"); err == nil {
			t.Fatal("expected error")
		}
		if len(store.objects) != 0 || store.deletes != 1 {
			t.Errorf("upload not rolled back: objects=%d deletes=%d", len(store.objects), store.deletes)
		}
		if stored, _ := pins.FindByID(context.Background(), "p1"); stored.HasEmbedding() {
			t.Error("embedding stored despite failure")
		}
	})
}
