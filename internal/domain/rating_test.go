package domain

import (
	"math"
	"testing"
)

func TestValidScore(t *testing.T) {
	cases := []struct {
		name  string
		score float64
		want  bool
	}{
		{"zero", 0, true},
		{"max", 5, true},
		{"half star", 3.5, true},
		{"negative", -0.1, false},
		{"above max", 5.1, false},
		{"nan", math.NaN(), false},
		{"positive infinity", math.Inf(1), false},
		{"negative infinity", math.Inf(-1), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidScore(tc.score); got != tc.want {
				t.Fatalf("ValidScore(%v) = %v, want %v", tc.score, got, tc.want)
			}
		})
	}
}

func TestRatingAggregate_AddReplaceRemove(t *testing.T) {
	var agg RatingAggregate

	agg = agg.Add(5)
	if agg.RatingCount != 1 || agg.MeanRating != 5 {
		t.Fatalf("after first add: %+v", agg)
	}

	agg = agg.Add(3)
	if agg.RatingCount != 2 || agg.MeanRating != 4 {
		t.Fatalf("after second add: %+v", agg)
	}

	// Re-rating changes the mean but not the count.
	agg = agg.Replace(3, 4)
	if agg.RatingCount != 2 || agg.MeanRating != 4.5 {
		t.Fatalf("after replace: %+v", agg)
	}

	// Replacing a score with itself is a no-op.
	same := agg.Replace(4, 4)
	if same != agg {
		t.Fatalf("idempotent replace changed aggregate: %+v", same)
	}

	agg = agg.Remove(4)
	if agg.RatingCount != 1 || agg.MeanRating != 5 {
		t.Fatalf("after remove: %+v", agg)
	}

	agg = agg.Remove(5)
	if agg.RatingCount != 0 || agg.MeanRating != 0 {
		t.Fatalf("after removing last rating: %+v", agg)
	}
}

func TestRatingAggregate_ReplaceOnEmpty(t *testing.T) {
	var agg RatingAggregate
	if got := agg.Replace(2, 4); got != agg {
		t.Fatalf("replace on empty aggregate: %+v", got)
	}
}

func TestRatingAggregate_Clamped(t *testing.T) {
	low := RatingAggregate{MeanRating: -1e-12, RatingCount: 3}.Clamped()
	if low.MeanRating != 0 {
		t.Fatalf("expected mean clamped to 0, got %v", low.MeanRating)
	}
	high := RatingAggregate{MeanRating: 5 + 1e-12, RatingCount: 3}.Clamped()
	if high.MeanRating != 5 {
		t.Fatalf("expected mean clamped to 5, got %v", high.MeanRating)
	}
	mid := RatingAggregate{MeanRating: 3.2, RatingCount: 3}.Clamped()
	if mid.MeanRating != 3.2 {
		t.Fatalf("expected mean unchanged, got %v", mid.MeanRating)
	}
}

func TestRatingAggregate_WithinTolerance(t *testing.T) {
	base := RatingAggregate{MeanRating: 4, RatingCount: 10}

	if !base.WithinTolerance(RatingAggregate{MeanRating: 4 + 4e-10, RatingCount: 10}, 1e-9) {
		t.Fatalf("expected tiny drift within tolerance")
	}
	if base.WithinTolerance(RatingAggregate{MeanRating: 4.0001, RatingCount: 10}, 1e-9) {
		t.Fatalf("expected large drift outside tolerance")
	}
	if base.WithinTolerance(RatingAggregate{MeanRating: 4, RatingCount: 9}, 1e-9) {
		t.Fatalf("count mismatch must never be within tolerance")
	}

	var empty RatingAggregate
	if !empty.WithinTolerance(RatingAggregate{}, 1e-9) {
		t.Fatalf("two empty aggregates must agree")
	}
	if empty.WithinTolerance(RatingAggregate{MeanRating: 1e-15}, 1e-9) {
		t.Fatalf("zero-scale comparison must be exact")
	}
}
