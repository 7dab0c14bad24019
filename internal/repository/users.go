package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/filmpulse/filmpulse/internal/domain"
)

// UsersRepository provides persistence helpers for user identities. The
// rating subsystem only consults it through Exists; the rest is surface
// for the surrounding auth plumbing.
type UsersRepository struct {
	pool *pgxpool.Pool
}

// UserCreateParams bundles the fields required to create a user.
type UserCreateParams struct {
	Email string
	Name  string
}

// Create inserts a new user row and returns the stored entity.
func (r *UsersRepository) Create(ctx context.Context, params UserCreateParams) (domain.User, error) {
	const query = `
        INSERT INTO users (email, name)
        VALUES ($1, $2)
        RETURNING id, email, name, created_at
    `
	var user domain.User
	err := r.pool.QueryRow(ctx, query, params.Email, params.Name).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.CreatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// GetByID fetches a user by identifier.
func (r *UsersRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	const query = `SELECT id, email, name, created_at FROM users WHERE id = $1`
	var user domain.User
	err := r.pool.QueryRow(ctx, query, id).Scan(&user.ID, &user.Email, &user.Name, &user.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// Exists reports whether a user identifier is known.
func (r *UsersRepository) Exists(ctx context.Context, id string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
