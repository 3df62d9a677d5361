package domain

import "time"

// Pin is the content item being ranked.
// Embedding stays nil until the pin's media has been vectorized.
type Pin struct {
	ID          string    `gorm:"type:text;primaryKey" json:"id"`
	UserID      string    `gorm:"type:text;not null;index:idx_pins_user" json:"user_id"`
	BoardID     string    `gorm:"type:text;index:idx_pins_board" json:"board_id,omitempty"`
	Title       string    `gorm:"type:text;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	LinkURL     string    `gorm:"type:text" json:"link_url,omitempty"`
	StorageKey  string    `gorm:"type:text" json:"storage_key,omitempty"`
	MediaURL    string    `gorm:"type:text" json:"media_url,omitempty"`
	Format      string    `gorm:"type:text" json:"format,omitempty"`
	Width       int       `json:"width,omitempty"`
	Height      int       `json:"height,omitempty"`
	Embedding   *Vector   `gorm:"type:text" json:"-"`
	CreatedAt   time.Time `gorm:"index:idx_pins_created" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Pin.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Pin) TableName() string {
	return "pins"
}

// HasEmbedding reports whether the pin can be scored.
func (p *Pin) HasEmbedding() bool {
	return p != nil && p.Embedding != nil && len(*p.Embedding) > 0
}

// EmbeddingVector returns the pin's embedding, or nil when absent.
func (p *Pin) EmbeddingVector() Vector {
	if !p.HasEmbedding() {
		return nil
	}
	return *p.Embedding
}
