package domain

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b Vector
		want float64
	}{
		{"identical", Vector{1, 2, 3}, Vector{1, 2, 3}, 1},
		{"scaled", Vector{1, 0, 0}, Vector{7, 0, 0}, 1},
		{"orthogonal", Vector{1, 0, 0}, Vector{0, 1, 0}, 0},
		{"opposite", Vector{1, 0, 0}, Vector{-1, 0, 0}, -1},
		{"diagonal", Vector{1, 0}, Vector{1, 1}, 1 / math.Sqrt2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosineSimilarityBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		dim := 1 + rng.Intn(64)
		a, b := make(Vector, dim), make(Vector, dim)
		for j := 0; j < dim; j++ {
			a[j] = float32(rng.NormFloat64())
			b[j] = float32(rng.NormFloat64())
		}

		got, err := CosineSimilarity(a, b)
		if err != nil {
			if errors.Is(err, ErrDegenerateVector) {
				continue
			}
			t.Fatalf("unexpected error: %v", err)
		}
		if got < -1 || got > 1 {
			t.Fatalf("score %v outside [-1, 1] for %v, %v", got, a, b)
		}
		self, err := CosineSimilarity(a, a)
		if err != nil || math.Abs(self-1) > 1e-6 {
			t.Fatalf("self similarity = %v, %v", self, err)
		}
	}
}

func TestCosineSimilarityErrors(t *testing.T) {
	tests := []struct {
		name string
		a, b Vector
		want error
	}{
		{"length 3 vs 5", Vector{1, 2, 3}, Vector{1, 2, 3, 4, 5}, ErrDimensionMismatch},
		{"zero left", Vector{0, 0}, Vector{1, 0}, ErrDegenerateVector},
		{"zero right", Vector{1, 0}, Vector{0, 0}, ErrDegenerateVector},
		{"both empty", Vector{}, Vector{}, ErrDegenerateVector},
		{"nan component", Vector{float32(math.NaN()), 1}, Vector{1, 1}, ErrDegenerateVector},
		{"inf component", Vector{float32(math.Inf(1)), 1}, Vector{1, 1}, ErrDegenerateVector},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CosineSimilarity(tt.a, tt.b)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if !IsRankingError(err) {
				t.Errorf("IsRankingError(%v) = false", err)
			}
		})
	}
}

func TestVectorValueScan(t *testing.T) {
	v := Vector{0.5, -1.25}
	raw, err := v.Value()
	if err != nil {
		t.Fatal(err)
	}

	var got Vector
	if err := got.Scan(raw); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != 2 || got[0] != 0.5 || got[1] != -1.25 {
		t.Errorf("round trip = %v", got)
	}

	if raw, _ := Vector(nil).Value(); raw != nil {
		t.Errorf("nil vector stored as %v", raw)
	}
	if err := got.Scan(nil); err != nil || got != nil {
		t.Errorf("Scan(nil) = %v, %v", got, err)
	}
	if err := got.Scan(42); err == nil {
		t.Error("Scan(int) should fail")
	}
}

func TestRepositoryError(t *testing.T) {
	base := errors.New("dial tcp: refused")
	err := NewRepositoryError("find pin", base)

	var repoErr *RepositoryError
	if !errors.As(err, &repoErr) || repoErr.Op != "find pin" {
		t.Fatalf("errors.As failed for %v", err)
	}
	if !errors.Is(err, base) {
		t.Error("RepositoryError does not unwrap")
	}
	if NewRepositoryError("noop", nil) != nil {
		t.Error("nil error should stay nil")
	}
	if IsRankingError(err) {
		t.Error("repository error reported as ranking error")
	}
}
