package audit_test

import (
	"math/rand"
	"testing"

	"reconcile/internal/audit"
)

func TestPercent(t *testing.T) {
	cases := []struct {
		part, total int
		want        float64
	}{
		{0, 0, 0},
		{3, 0, 0},
		{0, 5, 0},
		{1, 3, 33.3},
		{2, 3, 66.7},
		{5, 5, 100},
		{9, 5, 100},
		{-1, 5, 0},
		{1, 8, 12.5},
		{1999, 2000, 99.9},
		{1, 2000, 0.1},
		{1, 1000, 0.1},
	}
	for _, tc := range cases {
		if got := audit.Percent(tc.part, tc.total); got != tc.want {
			t.Fatalf("Percent(%d, %d) = %v, want %v", tc.part, tc.total, got, tc.want)
		}
	}
}

func TestPercentAlwaysWithinBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		total := rng.Intn(500)
		part := rng.Intn(600) - 50
		got := audit.Percent(part, total)
		if got < 0 || got > 100 {
			t.Fatalf("Percent(%d, %d) = %v out of range", part, total, got)
		}
		partial := part > 0 && part < total
		if partial && (got == 0 || got == 100) {
			t.Fatalf("Percent(%d, %d) = %v hides partial completion", part, total, got)
		}
	}
}
