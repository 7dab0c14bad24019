package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/filmpulse/filmpulse/internal/domain"
)

// RatingsRepository is the authoritative store for rating facts and the
// maintainer of each movie's derived aggregate. Every mutation runs in a
// single transaction that first takes the movie row lock, so updates to
// one movie's aggregate are serialized while different movies proceed
// independently, and the fact and the aggregate change atomically or not
// at all.
type RatingsRepository struct {
	pool *pgxpool.Pool
}

// RatingSubmitParams captures the payload required to submit a rating.
type RatingSubmitParams struct {
	MovieID string
	UserID  string
	Score   float64
	RatedAt time.Time
}

// RatingSubmitResult reports whether the submission created a new fact
// or replaced an existing one, the prior score when replaced, and the
// movie aggregate after the update.
type RatingSubmitResult struct {
	Rating     domain.Rating
	Created    bool
	PriorScore *float64
	Aggregate  domain.RatingAggregate
}

const lockAggregate = `SELECT mean_rating, rating_count FROM movies WHERE id = $1 FOR UPDATE`

// Submit inserts or replaces the rating for a (movie, user) pair and
// folds the delta into the movie's aggregate within the same transaction.
func (r *RatingsRepository) Submit(ctx context.Context, params RatingSubmitParams) (RatingSubmitResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return RatingSubmitResult{}, err
	}
	defer tx.Rollback(ctx)

	var agg domain.RatingAggregate
	if err := tx.QueryRow(ctx, lockAggregate, params.MovieID).Scan(&agg.MeanRating, &agg.RatingCount); err != nil {
		if err == pgx.ErrNoRows {
			return RatingSubmitResult{}, ErrNotFound
		}
		return RatingSubmitResult{}, err
	}

	var prior *float64
	var priorScore float64
	const priorQuery = `SELECT score FROM ratings WHERE movie_id = $1 AND user_id = $2`
	switch err := tx.QueryRow(ctx, priorQuery, params.MovieID, params.UserID).Scan(&priorScore); err {
	case nil:
		prior = &priorScore
	case pgx.ErrNoRows:
	default:
		return RatingSubmitResult{}, err
	}

	ratedAt := params.RatedAt
	if ratedAt.IsZero() {
		ratedAt = time.Now().UTC()
	}

	const upsert = `
        INSERT INTO ratings (movie_id, user_id, score, rated_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (movie_id, user_id)
        DO UPDATE SET score = EXCLUDED.score, rated_at = EXCLUDED.rated_at, updated_at = now()
        RETURNING movie_id, user_id, score, rated_at, created_at, updated_at
    `
	var rating domain.Rating
	err = tx.QueryRow(ctx, upsert, params.MovieID, params.UserID, params.Score, ratedAt).Scan(
		&rating.MovieID,
		&rating.UserID,
		&rating.Score,
		&rating.RatedAt,
		&rating.CreatedAt,
		&rating.UpdatedAt,
	)
	if err != nil {
		return RatingSubmitResult{}, err
	}

	if prior != nil {
		agg = agg.Replace(*prior, params.Score)
	} else {
		agg = agg.Add(params.Score)
	}
	agg = agg.Clamped()

	if err := r.writeAggregate(ctx, tx, params.MovieID, agg); err != nil {
		return RatingSubmitResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return RatingSubmitResult{}, err
	}

	return RatingSubmitResult{
		Rating:     rating,
		Created:    prior == nil,
		PriorScore: prior,
		Aggregate:  agg,
	}, nil
}

// Delete removes a rating and reverses its contribution to the movie's
// aggregate within the same transaction.
func (r *RatingsRepository) Delete(ctx context.Context, movieID, userID string) (domain.Rating, domain.RatingAggregate, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Rating{}, domain.RatingAggregate{}, err
	}
	defer tx.Rollback(ctx)

	var agg domain.RatingAggregate
	if err := tx.QueryRow(ctx, lockAggregate, movieID).Scan(&agg.MeanRating, &agg.RatingCount); err != nil {
		if err == pgx.ErrNoRows {
			return domain.Rating{}, domain.RatingAggregate{}, ErrNotFound
		}
		return domain.Rating{}, domain.RatingAggregate{}, err
	}

	const del = `
        DELETE FROM ratings
        WHERE movie_id = $1 AND user_id = $2
        RETURNING movie_id, user_id, score, rated_at, created_at, updated_at
    `
	var rating domain.Rating
	err = tx.QueryRow(ctx, del, movieID, userID).Scan(
		&rating.MovieID,
		&rating.UserID,
		&rating.Score,
		&rating.RatedAt,
		&rating.CreatedAt,
		&rating.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Rating{}, domain.RatingAggregate{}, ErrNotFound
		}
		return domain.Rating{}, domain.RatingAggregate{}, err
	}

	agg = agg.Remove(rating.Score).Clamped()
	if err := r.writeAggregate(ctx, tx, movieID, agg); err != nil {
		return domain.Rating{}, domain.RatingAggregate{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Rating{}, domain.RatingAggregate{}, err
	}
	return rating, agg, nil
}

func (r *RatingsRepository) writeAggregate(ctx context.Context, tx pgx.Tx, movieID string, agg domain.RatingAggregate) error {
	const update = `UPDATE movies SET mean_rating = $2, rating_count = $3, updated_at = now() WHERE id = $1`
	if _, err := tx.Exec(ctx, update, movieID, agg.MeanRating, agg.RatingCount); err != nil {
		return fmt.Errorf("update aggregate: %w", err)
	}
	return nil
}

// Get retrieves a rating for a specific user/movie combination.
func (r *RatingsRepository) Get(ctx context.Context, movieID, userID string) (domain.Rating, error) {
	const query = `
        SELECT movie_id, user_id, score, rated_at, created_at, updated_at
        FROM ratings
        WHERE movie_id = $1 AND user_id = $2
    `
	var rating domain.Rating
	err := r.pool.QueryRow(ctx, query, movieID, userID).Scan(
		&rating.MovieID,
		&rating.UserID,
		&rating.Score,
		&rating.RatedAt,
		&rating.CreatedAt,
		&rating.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Rating{}, ErrNotFound
		}
		return domain.Rating{}, err
	}
	return rating, nil
}

// ListByUser returns a user's ratings ordered by rated_at ascending,
// ties broken by movie id for determinism.
func (r *RatingsRepository) ListByUser(ctx context.Context, userID string) ([]domain.Rating, error) {
	const query = `
        SELECT movie_id, user_id, score, rated_at, created_at, updated_at
        FROM ratings
        WHERE user_id = $1
        ORDER BY rated_at ASC, movie_id ASC
    `
	return r.listRatings(ctx, query, userID)
}

// ListByMovie returns a movie's ratings ordered by rated_at ascending,
// ties broken by user id for determinism.
func (r *RatingsRepository) ListByMovie(ctx context.Context, movieID string) ([]domain.Rating, error) {
	const query = `
        SELECT movie_id, user_id, score, rated_at, created_at, updated_at
        FROM ratings
        WHERE movie_id = $1
        ORDER BY rated_at ASC, user_id ASC
    `
	return r.listRatings(ctx, query, movieID)
}

func (r *RatingsRepository) listRatings(ctx context.Context, query string, arg interface{}) ([]domain.Rating, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ratings []domain.Rating
	for rows.Next() {
		var rating domain.Rating
		err := rows.Scan(
			&rating.MovieID,
			&rating.UserID,
			&rating.Score,
			&rating.RatedAt,
			&rating.CreatedAt,
			&rating.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		ratings = append(ratings, rating)
	}
	return ratings, rows.Err()
}

// UserVector returns a user's ratings as a movieID -> score map.
func (r *RatingsRepository) UserVector(ctx context.Context, userID string) (map[string]float64, error) {
	const query = `SELECT movie_id, score FROM ratings WHERE user_id = $1`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	vector := make(map[string]float64)
	for rows.Next() {
		var movieID string
		var score float64
		if err := rows.Scan(&movieID, &score); err != nil {
			return nil, err
		}
		vector[movieID] = score
	}
	return vector, rows.Err()
}

// NeighborVectors returns the full rating vectors of every other user
// sharing at least one rated movie with the target. The candidate set is
// bounded through the ratings index on the target's movies rather than a
// scan over all users.
func (r *RatingsRepository) NeighborVectors(ctx context.Context, userID string) (map[string]map[string]float64, error) {
	const query = `
        SELECT r.user_id, r.movie_id, r.score
        FROM ratings r
        WHERE r.user_id <> $1
          AND r.user_id IN (
              SELECT DISTINCT shared.user_id
              FROM ratings shared
              JOIN ratings mine ON mine.movie_id = shared.movie_id
              WHERE mine.user_id = $1
          )
    `
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	vectors := make(map[string]map[string]float64)
	for rows.Next() {
		var neighborID, movieID string
		var score float64
		if err := rows.Scan(&neighborID, &movieID, &score); err != nil {
			return nil, err
		}
		vector := vectors[neighborID]
		if vector == nil {
			vector = make(map[string]float64)
			vectors[neighborID] = vector
		}
		vector[movieID] = score
	}
	return vectors, rows.Err()
}

// RatingCounts returns the maintained rating count for each given movie.
func (r *RatingsRepository) RatingCounts(ctx context.Context, movieIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(movieIDs))
	if len(movieIDs) == 0 {
		return counts, nil
	}
	const query = `SELECT id, rating_count FROM movies WHERE id = ANY($1)`
	rows, err := r.pool.Query(ctx, query, movieIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var count int64
		if err := rows.Scan(&id, &count); err != nil {
			return nil, err
		}
		counts[id] = count
	}
	return counts, rows.Err()
}

// PopularRanking returns movies ordered by mean rating descending, then
// rating count descending, then movie id ascending. A non-empty genreID
// restricts the ranking to that genre.
func (r *RatingsRepository) PopularRanking(ctx context.Context, limit int, genreID string) ([]domain.RecommendationEntry, error) {
	query := `
        SELECT m.id, m.mean_rating
        FROM movies m
    `
	args := []interface{}{limit}
	if genreID != "" {
		query += ` JOIN movies_genres mg ON mg.movie_id = m.id AND mg.genre_id = $2`
		args = append(args, genreID)
	}
	query += `
        ORDER BY m.mean_rating DESC, m.rating_count DESC, m.id ASC
        LIMIT $1
    `

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.RecommendationEntry, 0, limit)
	for rows.Next() {
		var entry domain.RecommendationEntry
		if err := rows.Scan(&entry.MovieID, &entry.PredictedScore); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// AggregateMismatch describes a movie whose maintained aggregate drifted
// from a full recomputation.
type AggregateMismatch struct {
	MovieID    string
	Maintained domain.RatingAggregate
	Recomputed domain.RatingAggregate
}

// Reconcile compares every movie's maintained aggregate against a full
// scan of its ratings and repairs those diverging beyond the relative
// tolerance. Repairs re-check under the movie row lock so they cannot
// clobber a concurrent submission.
func (r *RatingsRepository) Reconcile(ctx context.Context, relTol float64) ([]AggregateMismatch, error) {
	const scan = `
        SELECT m.id, m.mean_rating, m.rating_count,
               COALESCE(AVG(r.score), 0) AS recomputed_mean,
               COUNT(r.score) AS recomputed_count
        FROM movies m
        LEFT JOIN ratings r ON r.movie_id = m.id
        GROUP BY m.id, m.mean_rating, m.rating_count
    `
	rows, err := r.pool.Query(ctx, scan)
	if err != nil {
		return nil, err
	}

	var suspects []string
	for rows.Next() {
		var id string
		var maintained, recomputed domain.RatingAggregate
		err := rows.Scan(&id, &maintained.MeanRating, &maintained.RatingCount,
			&recomputed.MeanRating, &recomputed.RatingCount)
		if err != nil {
			rows.Close()
			return nil, err
		}
		if !maintained.WithinTolerance(recomputed, relTol) {
			suspects = append(suspects, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var mismatches []AggregateMismatch
	for _, movieID := range suspects {
		mismatch, repaired, err := r.repairAggregate(ctx, movieID, relTol)
		if err != nil {
			return mismatches, err
		}
		if repaired {
			mismatches = append(mismatches, mismatch)
		}
	}
	return mismatches, nil
}

// repairAggregate recomputes one movie's aggregate under the row lock
// and overwrites it if still divergent. The re-check filters suspects
// that were fixed by intervening submissions.
func (r *RatingsRepository) repairAggregate(ctx context.Context, movieID string, relTol float64) (AggregateMismatch, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return AggregateMismatch{}, false, err
	}
	defer tx.Rollback(ctx)

	var maintained domain.RatingAggregate
	if err := tx.QueryRow(ctx, lockAggregate, movieID).Scan(&maintained.MeanRating, &maintained.RatingCount); err != nil {
		if err == pgx.ErrNoRows {
			return AggregateMismatch{}, false, nil
		}
		return AggregateMismatch{}, false, err
	}

	const recompute = `
        SELECT COALESCE(AVG(score), 0), COUNT(*)
        FROM ratings
        WHERE movie_id = $1
    `
	var recomputed domain.RatingAggregate
	if err := tx.QueryRow(ctx, recompute, movieID).Scan(&recomputed.MeanRating, &recomputed.RatingCount); err != nil {
		return AggregateMismatch{}, false, err
	}

	if maintained.WithinTolerance(recomputed, relTol) {
		return AggregateMismatch{}, false, nil
	}

	if err := r.writeAggregate(ctx, tx, movieID, recomputed.Clamped()); err != nil {
		return AggregateMismatch{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return AggregateMismatch{}, false, err
	}

	return AggregateMismatch{MovieID: movieID, Maintained: maintained, Recomputed: recomputed}, true, nil
}
