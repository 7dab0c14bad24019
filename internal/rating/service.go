// Package rating orchestrates rating submissions: validation, the
// transactional store write, and the synchronous cache invalidation
// that follows every successful change.
package rating

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/filmpulse/filmpulse/internal/domain"
	"github.com/filmpulse/filmpulse/internal/metrics"
	"github.com/filmpulse/filmpulse/internal/repository"
)

// Invalidator is the slice of the recommendation cache the rating path
// needs: dropping entries for the submitting user and for every user
// whose cached list touched the movie.
type Invalidator interface {
	Invalidate(ctx context.Context, userID string) error
	InvalidateMovie(ctx context.Context, movieID string) error
}

// Outcome reports whether a submission created a new rating or replaced
// an existing one.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
)

// SubmitResult is the caller-visible result of a submission.
type SubmitResult struct {
	Rating     domain.Rating
	Outcome    Outcome
	PriorScore *float64
	Aggregate  domain.RatingAggregate
}

// Service exposes the rating operations to the transport layer.
type Service struct {
	repo        *repository.Repository
	invalidator Invalidator
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewService constructs the rating service.
func NewService(repo *repository.Repository, invalidator Invalidator, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{repo: repo, invalidator: invalidator, metrics: m, logger: logger}
}

// Submit validates and records a rating, updating the movie's aggregate
// atomically with the fact. On success the affected cache entries are
// invalidated before the call returns, so no subsequent read can observe
// a list computed strictly before this submission.
func (s *Service) Submit(ctx context.Context, userID, movieID string, score float64, ratedAt time.Time) (SubmitResult, error) {
	if !domain.ValidScore(score) {
		s.metrics.RatingSubmissions.WithLabelValues("rejected").Inc()
		return SubmitResult{}, domain.ErrInvalidScore
	}

	userExists, err := s.repo.Users.Exists(ctx, userID)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
	if !userExists {
		s.metrics.RatingSubmissions.WithLabelValues("rejected").Inc()
		return SubmitResult{}, domain.ErrUnknownUser
	}

	result, err := s.repo.Ratings.Submit(ctx, repository.RatingSubmitParams{
		MovieID: movieID,
		UserID:  userID,
		Score:   score,
		RatedAt: ratedAt,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.RatingSubmissions.WithLabelValues("rejected").Inc()
			return SubmitResult{}, domain.ErrUnknownMovie
		}
		return SubmitResult{}, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}

	outcome := OutcomeUpdated
	if result.Created {
		outcome = OutcomeCreated
	}
	s.metrics.RatingSubmissions.WithLabelValues(string(outcome)).Inc()

	s.invalidateAfterWrite(ctx, userID, movieID)

	return SubmitResult{
		Rating:     result.Rating,
		Outcome:    outcome,
		PriorScore: result.PriorScore,
		Aggregate:  result.Aggregate,
	}, nil
}

// Delete removes a user's rating, reversing its aggregate contribution,
// and invalidates the affected cache entries.
func (s *Service) Delete(ctx context.Context, userID, movieID string) (domain.Rating, error) {
	rating, _, err := s.repo.Ratings.Delete(ctx, movieID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Rating{}, domain.ErrRatingNotFound
		}
		return domain.Rating{}, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
	s.metrics.RatingDeletions.Inc()

	s.invalidateAfterWrite(ctx, userID, movieID)
	return rating, nil
}

// invalidateAfterWrite delivers the invalidations synchronously after a
// successful write. Failures are logged and counted, never swallowed
// silently: a cache backend that failed to invalidate will also fail
// reads, degrading to recomputation rather than staleness.
func (s *Service) invalidateAfterWrite(ctx context.Context, userID, movieID string) {
	if err := s.invalidator.Invalidate(ctx, userID); err != nil {
		s.metrics.CacheInvalidationErrors.Inc()
		s.logger.Error().Err(err).Str("user_id", userID).Msg("user cache invalidation failed")
	} else {
		s.metrics.CacheInvalidations.WithLabelValues("user").Inc()
	}
	if err := s.invalidator.InvalidateMovie(ctx, movieID); err != nil {
		s.metrics.CacheInvalidationErrors.Inc()
		s.logger.Error().Err(err).Str("movie_id", movieID).Msg("movie cache invalidation failed")
	} else {
		s.metrics.CacheInvalidations.WithLabelValues("movie").Inc()
	}
}

// Get returns the rating a user gave a movie.
func (s *Service) Get(ctx context.Context, userID, movieID string) (domain.Rating, error) {
	rating, err := s.repo.Ratings.Get(ctx, movieID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Rating{}, domain.ErrRatingNotFound
		}
		return domain.Rating{}, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
	return rating, nil
}

// ListForUser returns a user's ratings ordered by rated_at ascending.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]domain.Rating, error) {
	exists, err := s.repo.Users.Exists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
	if !exists {
		return nil, domain.ErrUnknownUser
	}
	ratings, err := s.repo.Ratings.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
	return ratings, nil
}

// ListForMovie returns a movie's ratings ordered by rated_at ascending.
func (s *Service) ListForMovie(ctx context.Context, movieID string) ([]domain.Rating, error) {
	exists, err := s.repo.Movies.Exists(ctx, movieID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
	if !exists {
		return nil, domain.ErrUnknownMovie
	}
	ratings, err := s.repo.Ratings.ListByMovie(ctx, movieID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
	return ratings, nil
}

// Aggregate returns a movie's maintained mean rating and count.
func (s *Service) Aggregate(ctx context.Context, movieID string) (domain.RatingAggregate, error) {
	agg, err := s.repo.Movies.Aggregate(ctx, movieID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.RatingAggregate{}, domain.ErrUnknownMovie
		}
		return domain.RatingAggregate{}, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
	return agg, nil
}
