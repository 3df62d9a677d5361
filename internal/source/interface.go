package source

import "context"

// SeedPin is one pin to import from an external catalog.
type SeedPin struct {
	SourceID    string // Unique ID within the source
	UserID      string
	BoardID     string
	Title       string
	Description string
	LinkURL     string
	LocalPath   string // Media file on local disk
}

// Source lists pins available for import.
type Source interface {
	// GetSourceID returns the unique identifier for this source.
	GetSourceID() string

	// FetchBatch fetches a batch of pins starting from the given cursor.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - cursor: pagination cursor or empty for first page.
	//   - limit: maximum number of items to fetch.
	// Returns:
	//   - items: batch of pins.
	//   - nextCursor: cursor for the next batch or empty if done.
	//   - err: non-nil if fetching fails.
	FetchBatch(ctx context.Context, cursor string, limit int) (items []SeedPin, nextCursor string, err error)
}
