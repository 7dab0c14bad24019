package domain

import (
	"math"
	"time"
)

// Score bounds for a rating submission.
const (
	MinScore = 0.0
	MaxScore = 5.0
)

// Rating represents a single user's rating for a movie. At most one
// rating exists per (movie, user) pair; resubmission replaces the score.
type Rating struct {
	MovieID   string
	UserID    string
	Score     float64
	RatedAt   time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidScore reports whether a score is inside the accepted [0,5] range.
func ValidScore(score float64) bool {
	return !math.IsNaN(score) && score >= MinScore && score <= MaxScore
}

// RatingAggregate is the derived per-movie summary maintained
// incrementally from individual ratings.
type RatingAggregate struct {
	MeanRating  float64
	RatingCount int64
}

// Add folds a brand-new score into the aggregate.
func (a RatingAggregate) Add(score float64) RatingAggregate {
	count := a.RatingCount + 1
	return RatingAggregate{
		MeanRating:  (a.MeanRating*float64(a.RatingCount) + score) / float64(count),
		RatingCount: count,
	}
}

// Replace swaps a previously recorded score for a new one. The count is
// unchanged.
func (a RatingAggregate) Replace(oldScore, newScore float64) RatingAggregate {
	if a.RatingCount == 0 {
		return a
	}
	return RatingAggregate{
		MeanRating:  (a.MeanRating*float64(a.RatingCount) - oldScore + newScore) / float64(a.RatingCount),
		RatingCount: a.RatingCount,
	}
}

// Remove reverses a previously recorded score's contribution.
func (a RatingAggregate) Remove(oldScore float64) RatingAggregate {
	count := a.RatingCount - 1
	if count <= 0 {
		return RatingAggregate{}
	}
	return RatingAggregate{
		MeanRating:  (a.MeanRating*float64(a.RatingCount) - oldScore) / float64(count),
		RatingCount: count,
	}
}

// clamp keeps float drift from pushing a mean epsilon outside [0,5].
func (a RatingAggregate) clamp() RatingAggregate {
	if a.MeanRating < MinScore {
		a.MeanRating = MinScore
	}
	if a.MeanRating > MaxScore {
		a.MeanRating = MaxScore
	}
	return a
}

// Clamped returns the aggregate with the mean clamped to the legal range.
func (a RatingAggregate) Clamped() RatingAggregate { return a.clamp() }

// WithinTolerance reports whether two aggregates agree on the count and
// on the mean within the given relative tolerance.
func (a RatingAggregate) WithinTolerance(other RatingAggregate, relTol float64) bool {
	if a.RatingCount != other.RatingCount {
		return false
	}
	diff := math.Abs(a.MeanRating - other.MeanRating)
	scale := math.Max(math.Abs(a.MeanRating), math.Abs(other.MeanRating))
	if scale == 0 {
		return diff == 0
	}
	return diff/scale <= relTol
}
