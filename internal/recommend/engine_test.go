package recommend

import (
	"context"
	"math"
	"testing"

	"github.com/filmpulse/filmpulse/internal/domain"
)

type fakeSource struct {
	vectors map[string]map[string]float64
	counts  map[string]int64
	popular []domain.RecommendationEntry
}

func (f *fakeSource) UserVector(_ context.Context, userID string) (map[string]float64, error) {
	out := make(map[string]float64, len(f.vectors[userID]))
	for k, v := range f.vectors[userID] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeSource) NeighborVectors(_ context.Context, userID string) (map[string]map[string]float64, error) {
	target := f.vectors[userID]
	out := make(map[string]map[string]float64)
	for id, vec := range f.vectors {
		if id == userID {
			continue
		}
		shared := false
		for movieID := range vec {
			if _, ok := target[movieID]; ok {
				shared = true
				break
			}
		}
		if !shared {
			continue
		}
		cp := make(map[string]float64, len(vec))
		for k, v := range vec {
			cp[k] = v
		}
		out[id] = cp
	}
	return out, nil
}

func (f *fakeSource) RatingCounts(_ context.Context, movieIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(movieIDs))
	for _, id := range movieIDs {
		out[id] = f.counts[id]
	}
	return out, nil
}

func (f *fakeSource) PopularRanking(_ context.Context, limit int, _ string) ([]domain.RecommendationEntry, error) {
	if len(f.popular) > limit {
		return f.popular[:limit], nil
	}
	return f.popular, nil
}

func TestEngineRank_WeightedPrediction(t *testing.T) {
	src := &fakeSource{
		vectors: map[string]map[string]float64{
			"target": {"m1": 5, "m2": 5},
			"close":  {"m1": 5, "m2": 5, "m3": 4},
			"far":    {"m1": 5, "m2": 1, "m3": 2},
		},
		counts: map[string]int64{"m3": 2},
	}
	engine := NewEngine(src, 2)

	result, err := engine.Rank(context.Background(), Query{UserID: "target", Limit: 10})
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if result.Fallback {
		t.Fatalf("did not expect fallback")
	}
	if len(result.Entries) != 1 || result.Entries[0].MovieID != "m3" {
		t.Fatalf("unexpected entries: %+v", result.Entries)
	}

	simClose := 1.0
	simFar := (5*5 + 5*1) / (math.Sqrt(50) * math.Sqrt(26))
	want := (simClose*4 + simFar*2) / (simClose + simFar)
	if math.Abs(result.Entries[0].PredictedScore-want) > 1e-12 {
		t.Fatalf("predicted score: got %v want %v", result.Entries[0].PredictedScore, want)
	}

	touched := make(map[string]struct{}, len(result.TouchedMovies))
	for _, id := range result.TouchedMovies {
		touched[id] = struct{}{}
	}
	for _, id := range []string{"m1", "m2", "m3"} {
		if _, ok := touched[id]; !ok {
			t.Fatalf("expected %s in touched movies, got %v", id, result.TouchedMovies)
		}
	}
}

func TestEngineRank_ExcludesRatedMovies(t *testing.T) {
	src := &fakeSource{
		vectors: map[string]map[string]float64{
			"target": {"m1": 5, "m2": 3},
			"peer":   {"m1": 5, "m2": 3, "m3": 4},
		},
	}
	engine := NewEngine(src, 2)

	result, err := engine.Rank(context.Background(), Query{UserID: "target", Limit: 10})
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	for _, entry := range result.Entries {
		if entry.MovieID == "m1" || entry.MovieID == "m2" {
			t.Fatalf("rated movie %s surfaced in recommendations", entry.MovieID)
		}
	}
}

func TestEngineRank_MinCoRated(t *testing.T) {
	// The only neighbor shares a single movie and must be discarded.
	src := &fakeSource{
		vectors: map[string]map[string]float64{
			"target": {"m1": 5, "m2": 4},
			"peer":   {"m1": 5, "m3": 5},
		},
	}
	engine := NewEngine(src, 2)

	result, err := engine.Rank(context.Background(), Query{UserID: "target", Limit: 10})
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(result.Entries) != 0 {
		t.Fatalf("expected no entries, got %+v", result.Entries)
	}
}

func TestEngineRank_ZeroSimilarityNeighbor(t *testing.T) {
	// Co-rated scores of all zeros give a zero norm and no similarity.
	src := &fakeSource{
		vectors: map[string]map[string]float64{
			"target": {"m1": 4, "m2": 4},
			"peer":   {"m1": 0, "m2": 0, "m3": 5},
		},
	}
	engine := NewEngine(src, 2)

	result, err := engine.Rank(context.Background(), Query{UserID: "target", Limit: 10})
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(result.Entries) != 0 {
		t.Fatalf("expected no entries, got %+v", result.Entries)
	}
}

func TestEngineRank_DeterministicOrdering(t *testing.T) {
	// Both candidates get the identical predicted score from the same
	// neighbor, so ordering falls through to rating count then ID.
	src := &fakeSource{
		vectors: map[string]map[string]float64{
			"target": {"m1": 5, "m2": 5},
			"peer":   {"m1": 5, "m2": 5, "b": 4, "a": 4, "c": 4},
		},
		counts: map[string]int64{"a": 1, "b": 7, "c": 1},
	}
	engine := NewEngine(src, 2)

	for run := 0; run < 5; run++ {
		result, err := engine.Rank(context.Background(), Query{UserID: "target", Limit: 10})
		if err != nil {
			t.Fatalf("rank: %v", err)
		}
		if len(result.Entries) != 3 {
			t.Fatalf("expected 3 entries, got %+v", result.Entries)
		}
		order := []string{result.Entries[0].MovieID, result.Entries[1].MovieID, result.Entries[2].MovieID}
		if order[0] != "b" || order[1] != "a" || order[2] != "c" {
			t.Fatalf("unstable ordering on run %d: %v", run, order)
		}
	}
}

func TestEngineRank_GenreRestriction(t *testing.T) {
	src := &fakeSource{
		vectors: map[string]map[string]float64{
			"target": {"m1": 5, "m2": 5},
			"peer":   {"m1": 5, "m2": 5, "in": 4, "out": 5},
		},
	}
	engine := NewEngine(src, 2)

	allowed := map[string]struct{}{"in": {}}
	result, err := engine.Rank(context.Background(), Query{UserID: "target", Limit: 10, GenreID: "g1", Allowed: allowed})
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(result.Entries) != 1 || result.Entries[0].MovieID != "in" {
		t.Fatalf("genre restriction not applied: %+v", result.Entries)
	}
}

func TestEngineRank_LimitTruncation(t *testing.T) {
	src := &fakeSource{
		vectors: map[string]map[string]float64{
			"target": {"m1": 5, "m2": 5},
			"peer":   {"m1": 5, "m2": 5, "a": 5, "b": 4, "c": 3},
		},
	}
	engine := NewEngine(src, 2)

	result, err := engine.Rank(context.Background(), Query{UserID: "target", Limit: 2})
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(result.Entries))
	}
	if result.Entries[0].MovieID != "a" || result.Entries[1].MovieID != "b" {
		t.Fatalf("unexpected truncated order: %+v", result.Entries)
	}
}

func TestEngineRank_ColdStartFallback(t *testing.T) {
	src := &fakeSource{
		vectors: map[string]map[string]float64{
			"fresh": {},
		},
		popular: []domain.RecommendationEntry{
			{MovieID: "m1", PredictedScore: 4.8},
			{MovieID: "m2", PredictedScore: 4.5},
			{MovieID: "m3", PredictedScore: 4.5},
		},
	}
	engine := NewEngine(src, 2)

	result, err := engine.Rank(context.Background(), Query{UserID: "fresh", Limit: 2})
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if !result.Fallback {
		t.Fatalf("expected fallback ranking")
	}
	if len(result.Entries) != 2 || result.Entries[0].MovieID != "m1" || result.Entries[1].MovieID != "m2" {
		t.Fatalf("unexpected fallback entries: %+v", result.Entries)
	}
	if len(result.TouchedMovies) != 2 {
		t.Fatalf("expected touched movies to mirror entries, got %v", result.TouchedMovies)
	}
}

func TestEngineRank_Cancellation(t *testing.T) {
	src := &fakeSource{
		vectors: map[string]map[string]float64{
			"target": {"m1": 5, "m2": 5},
			"peer":   {"m1": 5, "m2": 5, "m3": 4},
		},
	}
	engine := NewEngine(src, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Rank(ctx, Query{UserID: "target", Limit: 10})
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
}
