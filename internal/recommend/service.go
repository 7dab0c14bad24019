package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/filmpulse/filmpulse/internal/cache"
	"github.com/filmpulse/filmpulse/internal/domain"
	"github.com/filmpulse/filmpulse/internal/metrics"
)

// UserDirectory is the auth collaborator surface the service consumes.
type UserDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// GenreResolver resolves a genre filter to its movie set.
type GenreResolver interface {
	Exists(ctx context.Context, genreID string) (bool, error)
	MovieIDs(ctx context.Context, genreID string) (map[string]struct{}, error)
}

// Service fronts the engine with the recommendation cache. Rankings are
// computed at MaxLimit and truncated per request, so one cached list
// serves any smaller limit. Concurrent misses for the same user/filter
// collapse into a single computation.
type Service struct {
	engine  *Engine
	users   UserDirectory
	genres  GenreResolver
	cache   cache.RecommendationCache
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  zerolog.Logger

	maxLimit     int
	defaultLimit int
}

// ServiceParams wires a Service.
type ServiceParams struct {
	Engine       *Engine
	Users        UserDirectory
	Genres       GenreResolver
	Cache        cache.RecommendationCache
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger
	MaxLimit     int
	DefaultLimit int
}

// NewService constructs the recommendation service.
func NewService(p ServiceParams) *Service {
	if p.MaxLimit <= 0 {
		p.MaxLimit = 100
	}
	if p.DefaultLimit <= 0 || p.DefaultLimit > p.MaxLimit {
		p.DefaultLimit = p.MaxLimit
	}
	return &Service{
		engine:       p.Engine,
		users:        p.Users,
		genres:       p.Genres,
		cache:        p.Cache,
		metrics:      p.Metrics,
		logger:       p.Logger,
		maxLimit:     p.MaxLimit,
		defaultLimit: p.DefaultLimit,
	}
}

// Recommend returns up to limit ranked movies the user has not rated.
// genreID optionally restricts results to one genre. A non-positive
// limit selects the default.
func (s *Service) Recommend(ctx context.Context, userID string, limit int, genreID string) ([]domain.RecommendationEntry, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}

	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
	if !exists {
		return nil, domain.ErrUnknownUser
	}

	var allowed map[string]struct{}
	if genreID != "" {
		known, err := s.genres.Exists(ctx, genreID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
		}
		if !known {
			return nil, domain.ErrUnknownGenre
		}
		allowed, err = s.genres.MovieIDs(ctx, genreID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
		}
	}

	variant := genreID

	if entries, ok, err := s.cache.Get(ctx, userID, variant); err != nil {
		// A broken cache degrades to recomputation, never staleness.
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("recommendation cache read failed")
	} else if ok {
		s.metrics.CacheHits.Inc()
		return truncate(entries, limit), nil
	}
	s.metrics.CacheMisses.Inc()

	entries, err := s.compute(ctx, userID, variant, genreID, allowed)
	if err != nil {
		return nil, err
	}
	return truncate(entries, limit), nil
}

// compute runs the engine once per concurrent (user, filter) pair and
// fills the cache. The fill carries the epoch token taken before the
// computation, so an invalidation that raced the compute wins and a
// caller cancellation leaves nothing behind.
func (s *Service) compute(ctx context.Context, userID, variant, genreID string, allowed map[string]struct{}) ([]domain.RecommendationEntry, error) {
	key := userID + "\x00" + variant
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		token, err := s.cache.Begin(ctx, userID)
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("recommendation cache begin failed")
			token = -1 // poisoned token: the fill will be dropped
		}

		start := time.Now()
		result, err := s.engine.Rank(ctx, Query{
			UserID:  userID,
			Limit:   s.maxLimit,
			GenreID: genreID,
			Allowed: allowed,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
		}
		s.metrics.RecommendDuration.Observe(time.Since(start).Seconds())

		// Cold-start popularity lists are cheap single-query reads and any
		// rating can reorder them, so they bypass the cache.
		if !result.Fallback && token >= 0 && ctx.Err() == nil {
			if err := s.cache.Put(ctx, userID, variant, token, result.Entries, result.TouchedMovies); err != nil {
				s.logger.Warn().Err(err).Str("user_id", userID).Msg("recommendation cache fill failed")
			}
		}
		return result.Entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.RecommendationEntry), nil
}

func truncate(entries []domain.RecommendationEntry, limit int) []domain.RecommendationEntry {
	if len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]domain.RecommendationEntry, len(entries))
	copy(out, entries)
	return out
}
