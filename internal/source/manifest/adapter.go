package manifest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/timmy/pinfeed/internal/source"
)

const (
	// ManifestFileName is the JSONL manifest file name in a seed directory.
	ManifestFileName = "manifest.jsonl"
	// MediaDir is the directory holding the media files a manifest names.
	MediaDir = "media"
)

// ManifestItem represents one line of manifest.jsonl.
type ManifestItem struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	BoardID     string `json:"board_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	LinkURL     string `json:"link_url"`
	Filename    string `json:"filename"`
}

// Adapter reads seed pins from a directory holding manifest.jsonl and a
// media/ folder.
type Adapter struct {
	basePath string
	items    []source.SeedPin
	loaded   bool
}

// NewAdapter creates a manifest adapter rooted at basePath.
func NewAdapter(basePath string) *Adapter {
	return &Adapter{basePath: basePath}
}

// GetSourceID returns the unique identifier for this source.
func (a *Adapter) GetSourceID() string {
	return "manifest:" + filepath.Base(a.basePath)
}

// FetchBatch fetches a batch of seed pins. The cursor is an index into the
// manifest's ID-sorted items.
// Parameters:
//   - ctx: unused for local reads.
//   - cursor: index string or empty for the first batch.
//   - limit: maximum number of items to fetch.
// Returns:
//   - []source.SeedPin: batch of pins.
//   - string: next cursor or empty if no more items.
//   - error: non-nil if loading or parsing fails.
func (a *Adapter) FetchBatch(ctx context.Context, cursor string, limit int) ([]source.SeedPin, string, error) {
	if !a.loaded {
		if err := a.loadItems(); err != nil {
			return nil, "", fmt.Errorf("failed to load manifest: %w", err)
		}
		a.loaded = true
	}

	startIndex := 0
	if cursor != "" {
		var err error
		startIndex, err = strconv.Atoi(cursor)
		if err != nil || startIndex < 0 {
			return nil, "", fmt.Errorf("invalid cursor %q", cursor)
		}
	}
	if startIndex >= len(a.items) {
		return []source.SeedPin{}, "", nil
	}

	endIndex := startIndex + limit
	if limit <= 0 || endIndex > len(a.items) {
		endIndex = len(a.items)
	}

	nextCursor := ""
	if endIndex < len(a.items) {
		nextCursor = strconv.Itoa(endIndex)
	}
	return a.items[startIndex:endIndex], nextCursor, nil
}

// loadItems reads every manifest line whose media file exists. Malformed
// lines and lines without an owner or title are skipped.
func (a *Adapter) loadItems() error {
	manifestPath := filepath.Join(a.basePath, ManifestFileName)
	mediaPath := filepath.Join(a.basePath, MediaDir)

	file, err := os.Open(manifestPath)
	if err != nil {
		return fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()

	a.items = []source.SeedPin{}

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var item ManifestItem
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			continue
		}
		if item.ID == "" || item.UserID == "" || item.Title == "" || item.Filename == "" {
			continue
		}

		localPath := filepath.Join(mediaPath, filepath.Base(item.Filename))
		if _, err := os.Stat(localPath); err != nil {
			continue
		}

		a.items = append(a.items, source.SeedPin{
			SourceID:    item.ID,
			UserID:      item.UserID,
			BoardID:     item.BoardID,
			Title:       item.Title,
			Description: item.Description,
			LinkURL:     item.LinkURL,
			LocalPath:   localPath,
		})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading manifest: %w", err)
	}

	sort.Slice(a.items, func(i, j int) bool {
		return a.items[i].SourceID < a.items[j].SourceID
	})
	return nil
}
