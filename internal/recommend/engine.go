// Package recommend computes personalized movie rankings from the
// rating matrix using user-based collaborative filtering.
package recommend

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/filmpulse/filmpulse/internal/domain"
)

// Source supplies the rating data the engine consumes. Reads need only
// be snapshot-consistent; the engine tolerates data changing under it
// between calls.
type Source interface {
	// UserVector returns the target's ratings as movieID -> score.
	UserVector(ctx context.Context, userID string) (map[string]float64, error)

	// NeighborVectors returns the full vectors of every user sharing at
	// least one rated movie with the target, keyed by user ID. The target
	// itself is excluded.
	NeighborVectors(ctx context.Context, userID string) (map[string]map[string]float64, error)

	// RatingCounts returns each movie's rating count, for tie-breaking.
	RatingCounts(ctx context.Context, movieIDs []string) (map[string]int64, error)

	// PopularRanking returns the global popularity ranking (mean rating
	// desc, rating count desc, movie ID asc), optionally restricted to a
	// genre.
	PopularRanking(ctx context.Context, limit int, genreID string) ([]domain.RecommendationEntry, error)
}

// Query describes one ranking request.
type Query struct {
	UserID string
	Limit  int
	// GenreID restricts results to one genre; empty means unrestricted.
	GenreID string
	// Allowed is the movie set of GenreID, resolved by the caller. Nil
	// means no restriction.
	Allowed map[string]struct{}
}

// Result is a computed ranking plus the movies the computation read,
// which key the cache's movie-based invalidation.
type Result struct {
	Entries []domain.RecommendationEntry
	// TouchedMovies is every movie whose ratings influenced the entries:
	// the target's own rated movies and every candidate considered.
	TouchedMovies []string
	// Fallback marks a cold-start popularity ranking.
	Fallback bool
}

// Engine ranks unseen movies for a user. It is stateless and safe for
// concurrent use.
type Engine struct {
	source     Source
	minCoRated int
}

// NewEngine builds an Engine. minCoRated is the minimum number of
// co-rated movies for a neighbor to count; values below 2 are raised to
// 2 since a single shared movie gives a degenerate cosine of 1.
func NewEngine(source Source, minCoRated int) *Engine {
	if minCoRated < 2 {
		minCoRated = 2
	}
	return &Engine{source: source, minCoRated: minCoRated}
}

// Rank computes the recommendation list for one user. Movies the user
// has already rated are never included. The ordering is fully
// deterministic: predicted score descending, rating count descending,
// movie ID ascending.
func (e *Engine) Rank(ctx context.Context, q Query) (Result, error) {
	if q.Limit <= 0 {
		return Result{}, nil
	}

	vector, err := e.source.UserVector(ctx, q.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("load user vector: %w", err)
	}

	if len(vector) == 0 {
		entries, err := e.source.PopularRanking(ctx, q.Limit, q.GenreID)
		if err != nil {
			return Result{}, fmt.Errorf("popularity ranking: %w", err)
		}
		return Result{Entries: entries, TouchedMovies: movieIDs(entries), Fallback: true}, nil
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	neighbors, err := e.source.NeighborVectors(ctx, q.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("load neighbor vectors: %w", err)
	}

	// Predicted score accumulators per candidate movie.
	weighted := make(map[string]float64)
	similaritySum := make(map[string]float64)

	for _, neighborVector := range neighbors {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		sim, coRated := cosine(vector, neighborVector)
		if coRated < e.minCoRated || sim <= 0 {
			continue
		}
		for movieID, score := range neighborVector {
			if _, rated := vector[movieID]; rated {
				continue
			}
			if q.Allowed != nil {
				if _, ok := q.Allowed[movieID]; !ok {
					continue
				}
			}
			weighted[movieID] += sim * score
			similaritySum[movieID] += math.Abs(sim)
		}
	}

	entries := make([]domain.RecommendationEntry, 0, len(weighted))
	candidateIDs := make([]string, 0, len(weighted))
	for movieID, sum := range weighted {
		denom := similaritySum[movieID]
		if denom == 0 {
			continue
		}
		entries = append(entries, domain.RecommendationEntry{
			MovieID:        movieID,
			PredictedScore: sum / denom,
		})
		candidateIDs = append(candidateIDs, movieID)
	}

	counts, err := e.source.RatingCounts(ctx, candidateIDs)
	if err != nil {
		return Result{}, fmt.Errorf("load rating counts: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.PredictedScore != b.PredictedScore {
			return a.PredictedScore > b.PredictedScore
		}
		if counts[a.MovieID] != counts[b.MovieID] {
			return counts[a.MovieID] > counts[b.MovieID]
		}
		return a.MovieID < b.MovieID
	})

	if len(entries) > q.Limit {
		entries = entries[:q.Limit]
	}

	touched := make([]string, 0, len(vector)+len(candidateIDs))
	for movieID := range vector {
		touched = append(touched, movieID)
	}
	touched = append(touched, candidateIDs...)

	return Result{Entries: entries, TouchedMovies: touched}, nil
}

// cosine computes cosine similarity restricted to the co-rated
// components of the two vectors, along with the co-rated count.
func cosine(a, b map[string]float64) (float64, int) {
	var dot, normA, normB float64
	coRated := 0
	for movieID, scoreA := range a {
		scoreB, ok := b[movieID]
		if !ok {
			continue
		}
		coRated++
		dot += scoreA * scoreB
		normA += scoreA * scoreA
		normB += scoreB * scoreB
	}
	if normA == 0 || normB == 0 {
		return 0, coRated
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), coRated
}

func movieIDs(entries []domain.RecommendationEntry) []string {
	ids := make([]string, len(entries))
	for i, entry := range entries {
		ids[i] = entry.MovieID
	}
	return ids
}
