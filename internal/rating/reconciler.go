package rating

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/filmpulse/filmpulse/internal/metrics"
	"github.com/filmpulse/filmpulse/internal/repository"
)

// Reconciler periodically verifies every movie's maintained aggregate
// against a full recomputation and repairs divergence. A mismatch means
// the incremental maintenance broke an invariant somewhere; it is
// reported loudly, corrected, and never left inconsistent.
type Reconciler struct {
	ratings   *repository.RatingsRepository
	interval  time.Duration
	tolerance float64
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewReconciler constructs a Reconciler.
func NewReconciler(ratings *repository.RatingsRepository, interval time.Duration, tolerance float64, m *metrics.Metrics, logger zerolog.Logger) *Reconciler {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if tolerance <= 0 {
		tolerance = 1e-9
	}
	return &Reconciler{
		ratings:   ratings,
		interval:  interval,
		tolerance: tolerance,
		metrics:   m,
		logger:    logger,
	}
}

// Run loops until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error().Err(err).Msg("aggregate reconciliation failed")
			}
		}
	}
}

// RunOnce performs a single reconciliation pass and returns the
// mismatches it repaired.
func (r *Reconciler) RunOnce(ctx context.Context) ([]repository.AggregateMismatch, error) {
	r.metrics.ReconcileRuns.Inc()

	mismatches, err := r.ratings.Reconcile(ctx, r.tolerance)
	if err != nil {
		return mismatches, err
	}

	for _, mismatch := range mismatches {
		r.metrics.ReconcileMismatches.Inc()
		r.logger.Error().
			Str("movie_id", mismatch.MovieID).
			Float64("maintained_mean", mismatch.Maintained.MeanRating).
			Int64("maintained_count", mismatch.Maintained.RatingCount).
			Float64("recomputed_mean", mismatch.Recomputed.MeanRating).
			Int64("recomputed_count", mismatch.Recomputed.RatingCount).
			Msg("aggregate mismatch repaired")
	}
	return mismatches, nil
}
