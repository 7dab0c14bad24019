package domain

import "errors"

// Error taxonomy for the rating and recommendation subsystem. Callers
// translate these into their transport-specific representations.
var (
	// ErrInvalidScore rejects a submission whose score falls outside [0,5].
	ErrInvalidScore = errors.New("rating score must be between 0 and 5")

	// ErrUnknownUser means the referenced user does not exist.
	ErrUnknownUser = errors.New("unknown user")

	// ErrUnknownMovie means the referenced movie does not exist.
	ErrUnknownMovie = errors.New("unknown movie")

	// ErrUnknownGenre means the referenced genre does not exist.
	ErrUnknownGenre = errors.New("unknown genre")

	// ErrRatingNotFound means no rating exists for the (user, movie) pair.
	ErrRatingNotFound = errors.New("rating not found")

	// ErrStorageUnavailable wraps transient storage failures. Retrying is
	// the caller's decision; the subsystem guarantees the failed operation
	// left no partial state behind.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
