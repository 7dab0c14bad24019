package recommend

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/filmpulse/filmpulse/internal/cache"
	"github.com/filmpulse/filmpulse/internal/domain"
	"github.com/filmpulse/filmpulse/internal/metrics"
)

type fakeUsers struct {
	known map[string]bool
}

func (f *fakeUsers) Exists(_ context.Context, userID string) (bool, error) {
	return f.known[userID], nil
}

type fakeGenres struct {
	movies map[string]map[string]struct{}
}

func (f *fakeGenres) Exists(_ context.Context, genreID string) (bool, error) {
	_, ok := f.movies[genreID]
	return ok, nil
}

func (f *fakeGenres) MovieIDs(_ context.Context, genreID string) (map[string]struct{}, error) {
	return f.movies[genreID], nil
}

type failingSource struct{ fakeSource }

func (f *failingSource) UserVector(context.Context, string) (map[string]float64, error) {
	return nil, errors.New("connection refused")
}

func newTestService(src Source, mem *cache.Memory) *Service {
	return NewService(ServiceParams{
		Engine:  NewEngine(src, 2),
		Users:   &fakeUsers{known: map[string]bool{"target": true, "fresh": true}},
		Genres:  &fakeGenres{movies: map[string]map[string]struct{}{"g1": {"m3": {}}}},
		Cache:   mem,
		Metrics: metrics.New(),
		Logger:  zerolog.Nop(),
	})
}

func collaborativeSource() *fakeSource {
	return &fakeSource{
		vectors: map[string]map[string]float64{
			"target": {"m1": 5, "m2": 5},
			"peer":   {"m1": 5, "m2": 5, "m3": 4, "m4": 3},
		},
		counts: map[string]int64{"m3": 5, "m4": 5},
	}
}

func TestServiceRecommend_UnknownUser(t *testing.T) {
	svc := newTestService(collaborativeSource(), cache.NewMemory(0))

	_, err := svc.Recommend(context.Background(), "nobody", 10, "")
	if !errors.Is(err, domain.ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
}

func TestServiceRecommend_UnknownGenre(t *testing.T) {
	svc := newTestService(collaborativeSource(), cache.NewMemory(0))

	_, err := svc.Recommend(context.Background(), "target", 10, "nope")
	if !errors.Is(err, domain.ErrUnknownGenre) {
		t.Fatalf("expected ErrUnknownGenre, got %v", err)
	}
}

func TestServiceRecommend_CachesComputedList(t *testing.T) {
	src := collaborativeSource()
	mem := cache.NewMemory(0)
	svc := newTestService(src, mem)

	first, err := svc.Recommend(context.Background(), "target", 10, "")
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(first) != 2 || first[0].MovieID != "m3" || first[1].MovieID != "m4" {
		t.Fatalf("unexpected first list: %+v", first)
	}

	// Mutating the source behind the cache proves the second read is a
	// cache hit, not a recomputation.
	src.vectors["peer"]["m4"] = 5

	second, err := svc.Recommend(context.Background(), "target", 10, "")
	if err != nil {
		t.Fatalf("recommend (cached): %v", err)
	}
	if len(second) != 2 || second[0].MovieID != "m3" || second[1].MovieID != "m4" {
		t.Fatalf("expected cached list, got %+v", second)
	}

	// After invalidation the new ratings surface.
	if err := mem.Invalidate(context.Background(), "target"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	third, err := svc.Recommend(context.Background(), "target", 10, "")
	if err != nil {
		t.Fatalf("recommend (recomputed): %v", err)
	}
	if len(third) != 2 || third[0].MovieID != "m4" {
		t.Fatalf("expected recomputed list led by m4, got %+v", third)
	}
}

func TestServiceRecommend_TruncatesToLimit(t *testing.T) {
	svc := newTestService(collaborativeSource(), cache.NewMemory(0))

	got, err := svc.Recommend(context.Background(), "target", 1, "")
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(got) != 1 || got[0].MovieID != "m3" {
		t.Fatalf("unexpected truncated list: %+v", got)
	}

	// A larger limit served from the same cached list.
	full, err := svc.Recommend(context.Background(), "target", 10, "")
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(full) != 2 {
		t.Fatalf("expected full list, got %+v", full)
	}
}

func TestServiceRecommend_GenreVariant(t *testing.T) {
	svc := newTestService(collaborativeSource(), cache.NewMemory(0))

	got, err := svc.Recommend(context.Background(), "target", 10, "g1")
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(got) != 1 || got[0].MovieID != "m3" {
		t.Fatalf("unexpected genre-filtered list: %+v", got)
	}
}

func TestServiceRecommend_FallbackNotCached(t *testing.T) {
	src := collaborativeSource()
	src.vectors["fresh"] = map[string]float64{}
	src.popular = []domain.RecommendationEntry{{MovieID: "m1", PredictedScore: 4.9}}
	mem := cache.NewMemory(0)
	svc := newTestService(src, mem)

	got, err := svc.Recommend(context.Background(), "fresh", 10, "")
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(got) != 1 || got[0].MovieID != "m1" {
		t.Fatalf("unexpected fallback list: %+v", got)
	}

	if _, ok, _ := mem.Get(context.Background(), "fresh", ""); ok {
		t.Fatalf("popularity fallback must not be cached")
	}
}

func TestServiceRecommend_CancellationLeavesNoFill(t *testing.T) {
	mem := cache.NewMemory(0)
	svc := newTestService(collaborativeSource(), mem)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Recommend(ctx, "target", 10, "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	if _, ok, _ := mem.Get(context.Background(), "target", ""); ok {
		t.Fatalf("cancelled computation left a cache fill behind")
	}
}

func TestServiceRecommend_SourceFailure(t *testing.T) {
	svc := newTestService(&failingSource{}, cache.NewMemory(0))

	_, err := svc.Recommend(context.Background(), "target", 10, "")
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}
