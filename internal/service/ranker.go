package service

import (
	"fmt"
	"sort"

	"github.com/timmy/pinfeed/internal/domain"
)

// Candidate is a pin offered to the ranker.
type Candidate struct {
	PinID  string
	Vector domain.Vector
}

// ScoreEntry is a ranked pin.
type ScoreEntry struct {
	PinID string  `json:"pin_id"`
	Score float64 `json:"score"`
}

// CandidatesFromPins converts catalog pins to ranker input, keeping order.
func CandidatesFromPins(pins []domain.Pin) []Candidate {
	out := make([]Candidate, len(pins))
	for i := range pins {
		out[i] = Candidate{PinID: pins[i].ID, Vector: pins[i].EmbeddingVector()}
	}
	return out
}

// Rank scores every candidate against interest by cosine similarity and
// returns them best first. Candidates without a vector are skipped. Equal
// scores keep their input order, so the same inputs always rank the same way.
//
// The first dimension mismatch or degenerate vector aborts the ranking; the
// returned error names the offending pin and wraps the domain error.
func Rank(interest domain.Vector, candidates []Candidate) ([]ScoreEntry, error) {
	entries := make([]ScoreEntry, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Vector) == 0 {
			continue
		}
		score, err := domain.CosineSimilarity(interest, c.Vector)
		if err != nil {
			return nil, fmt.Errorf("score pin %s: %w", c.PinID, err)
		}
		entries = append(entries, ScoreEntry{PinID: c.PinID, Score: score})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	return entries, nil
}
