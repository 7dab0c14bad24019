package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/filmpulse/filmpulse/internal/domain"
)

// GenresRepository provides persistence helpers for genre labels.
type GenresRepository struct {
	pool *pgxpool.Pool
}

// Create inserts a genre and returns the stored entity.
func (r *GenresRepository) Create(ctx context.Context, name string) (domain.Genre, error) {
	const query = `INSERT INTO genres (name) VALUES ($1) RETURNING id, name, created_at`
	var genre domain.Genre
	if err := r.pool.QueryRow(ctx, query, name).Scan(&genre.ID, &genre.Name, &genre.CreatedAt); err != nil {
		return domain.Genre{}, err
	}
	return genre, nil
}

// List returns all genres ordered by name.
func (r *GenresRepository) List(ctx context.Context) ([]domain.Genre, error) {
	const query = `SELECT id, name, created_at FROM genres ORDER BY name ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var genres []domain.Genre
	for rows.Next() {
		var genre domain.Genre
		if err := rows.Scan(&genre.ID, &genre.Name, &genre.CreatedAt); err != nil {
			return nil, err
		}
		genres = append(genres, genre)
	}
	return genres, rows.Err()
}

// GetByID fetches a genre by identifier.
func (r *GenresRepository) GetByID(ctx context.Context, id string) (domain.Genre, error) {
	const query = `SELECT id, name, created_at FROM genres WHERE id = $1`
	var genre domain.Genre
	err := r.pool.QueryRow(ctx, query, id).Scan(&genre.ID, &genre.Name, &genre.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Genre{}, ErrNotFound
		}
		return domain.Genre{}, err
	}
	return genre, nil
}

// Exists reports whether a genre identifier is known.
func (r *GenresRepository) Exists(ctx context.Context, id string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM genres WHERE id = $1)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// MovieIDs returns the set of movies labelled with the genre.
func (r *GenresRepository) MovieIDs(ctx context.Context, genreID string) (map[string]struct{}, error) {
	const query = `SELECT movie_id FROM movies_genres WHERE genre_id = $1`
	rows, err := r.pool.Query(ctx, query, genreID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}
