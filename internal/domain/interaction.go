package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"sort"
	"time"
)

// InteractionKind is one way a user engaged with a pin.
type InteractionKind string

const (
	InteractionLike    InteractionKind = "like"
	InteractionClick   InteractionKind = "click"
	InteractionSave    InteractionKind = "save"
	InteractionShare   InteractionKind = "share"
	InteractionComment InteractionKind = "comment"
)

// Valid reports whether k is a known interaction kind.
func (k InteractionKind) Valid() bool {
	switch k {
	case InteractionLike, InteractionClick, InteractionSave, InteractionShare, InteractionComment:
		return true
	}
	return false
}

// InteractionKinds is a set of kinds stored as a sorted JSON array.
type InteractionKinds []InteractionKind

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded string representation of the set.
//   - error: non-nil if marshaling fails.
func (k InteractionKinds) Value() (driver.Value, error) {
	if k == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]InteractionKind(k))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (k *InteractionKinds) Scan(value interface{}) error {
	if value == nil {
		*k = InteractionKinds{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan InteractionKinds")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, k)
}

// Has reports whether kind is in the set.
func (k InteractionKinds) Has(kind InteractionKind) bool {
	for _, existing := range k {
		if existing == kind {
			return true
		}
	}
	return false
}

// Union returns the sorted, de-duplicated union of k and other.
func (k InteractionKinds) Union(other ...InteractionKind) InteractionKinds {
	seen := make(map[InteractionKind]struct{}, len(k)+len(other))
	out := make(InteractionKinds, 0, len(k)+len(other))
	for _, kind := range append(append([]InteractionKind{}, k...), other...) {
		if _, ok := seen[kind]; ok {
			continue
		}
		seen[kind] = struct{}{}
		out = append(out, kind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Without returns k with kind removed.
func (k InteractionKinds) Without(kind InteractionKind) InteractionKinds {
	out := make(InteractionKinds, 0, len(k))
	for _, existing := range k {
		if existing != kind {
			out = append(out, existing)
		}
	}
	return out
}

// Interaction records one user's engagement with one pin.
// There is at most one record per (user, pin); later engagements add kinds.
type Interaction struct {
	ID        string           `gorm:"type:text;primaryKey" json:"id"`
	UserID    string           `gorm:"type:text;not null;uniqueIndex:idx_interactions_user_pin" json:"user_id"`
	PinID     string           `gorm:"type:text;not null;uniqueIndex:idx_interactions_user_pin;index:idx_interactions_pin" json:"pin_id"`
	Kinds     InteractionKinds `gorm:"type:text" json:"kinds"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// TableName returns the database table name for Interaction.
func (Interaction) TableName() string {
	return "interactions"
}
