package manifest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSeedDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, MediaDir), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		if err := os.WriteFile(filepath.Join(dir, MediaDir, name), []byte("img"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	lines := []string{
		`{"id":"3","user_id":"u1","title":"Three","filename":"c.png"}`,
		`{"id":"1","user_id":"u1","title":"One","filename":"a.png","board_id":"b1"}`,
		`not json`,
		`{"id":"4","user_id":"u2","title":"Missing media","filename":"zzz.png"}`,
		`{"id":"5","user_id":"","title":"No owner","filename":"a.png"}`,
		``,
		`{"id":"2","user_id":"u2","title":"Two","filename":"b.png"}`,
	}
	manifest := strings.Join(lines, "\n")
	if err := os.WriteFile(filepath.Join(dir, ManifestFileName), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestFetchBatch(t *testing.T) {
	a := NewAdapter(writeSeedDir(t))
	ctx := context.Background()

	batch, next, err := a.FetchBatch(ctx, "", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 2 || batch[0].SourceID != "1" || batch[1].SourceID != "2" || next != "2" {
		t.Fatalf("first batch = %+v next = %q", batch, next)
	}
	if batch[0].BoardID != "b1" || filepath.Base(batch[0].LocalPath) != "a.png" {
		t.Errorf("item = %+v", batch[0])
	}

	batch, next, err = a.FetchBatch(ctx, next, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 1 || batch[0].SourceID != "3" || next != "" {
		t.Fatalf("second batch = %+v next = %q", batch, next)
	}

	if _, _, err := a.FetchBatch(ctx, "abc", 2); err == nil {
		t.Error("invalid cursor accepted")
	}
}

func TestFetchBatchMissingManifest(t *testing.T) {
	a := NewAdapter(t.TempDir())
	if _, _, err := a.FetchBatch(context.Background(), "", 10); err == nil {
		t.Error("expected error for missing manifest")
	}
}
