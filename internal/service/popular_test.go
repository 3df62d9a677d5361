package service

import (
	"context"
	"math"
	"testing"

	"github.com/timmy/pinfeed/internal/domain"
)

func TestGetPopularPaging(t *testing.T) {
	store := newMemPinStore(domain.Pin{ID: "a"}, domain.Pin{ID: "b"}, domain.Pin{ID: "c"})
	store.popular = []string{"b", "c", "a"}
	svc := NewPopularityService(store, PageConfig{DefaultPageSize: 2, MaxPageSize: 2}, testLogger())

	tests := []struct {
		size, page int
		want       []string
	}{
		{0, 0, []string{"b", "c"}},
		{2, 2, []string{"a"}},
		{50, 1, []string{"b", "c"}},
		{2, 5, []string{}},
		{2, math.MaxInt / 10, []string{}},
	}
	for _, tt := range tests {
		got, err := svc.GetPopular(context.Background(), tt.size, tt.page)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != len(tt.want) {
			t.Errorf("size=%d page=%d: got %v, want %v", tt.size, tt.page, got, tt.want)
			continue
		}
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("size=%d page=%d: got %v, want %v", tt.size, tt.page, got, tt.want)
				break
			}
		}
	}

	total, err := svc.Total(context.Background())
	if err != nil || total != 3 {
		t.Errorf("Total = %d, %v", total, err)
	}
}
