// Package cache memoizes computed recommendation lists per user.
//
// The contract is strict: no entry may ever be served past its
// invalidation. Fills are guarded by a per-user epoch token taken before
// the computation starts; an invalidation arriving during the
// computation bumps the epoch, so the late fill is discarded instead of
// resurrecting stale data.
package cache

import (
	"context"

	"github.com/filmpulse/filmpulse/internal/domain"
)

// Token is a per-user epoch snapshot taken before a recomputation. A
// fill presenting a stale token is silently dropped.
type Token int64

// RecommendationCache is implemented by the in-memory and Redis
// backends. The variant distinguishes differently-filtered lists for the
// same user (e.g. per genre); user-keyed invalidation drops every
// variant.
type RecommendationCache interface {
	// Get returns the cached list for the user/variant, if present.
	Get(ctx context.Context, userID, variant string) ([]domain.RecommendationEntry, bool, error)

	// Begin snapshots the user's invalidation epoch before a recompute.
	Begin(ctx context.Context, userID string) (Token, error)

	// Put stores the computed list unless the user's epoch moved since
	// Begin. movieIDs lists every movie the computation touched; they key
	// the conservative movie-based invalidation index.
	Put(ctx context.Context, userID, variant string, token Token, entries []domain.RecommendationEntry, movieIDs []string) error

	// Invalidate drops all of the user's cached lists.
	Invalidate(ctx context.Context, userID string) error

	// InvalidateMovie drops the cached lists of every user whose last
	// computation touched the movie.
	InvalidateMovie(ctx context.Context, movieID string) error
}
