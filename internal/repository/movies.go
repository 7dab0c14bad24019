package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/filmpulse/filmpulse/internal/domain"
)

// MoviesRepository provides persistence helpers for movie entities.
type MoviesRepository struct {
	pool *pgxpool.Pool
}

const movieColumns = `
    id,
    title,
    release_year,
    synopsis,
    image_url,
    mean_rating,
    rating_count,
    created_at,
    updated_at
`

// MovieCreateParams bundles the fields required to create a movie.
type MovieCreateParams struct {
	Title       string
	ReleaseYear int
	Synopsis    string
	ImageURL    *string
	GenreIDs    []string
}

// MovieListFilters encapsulates search and pagination options.
type MovieListFilters struct {
	Query   *string
	Year    *int
	GenreID *string
	Limit   int
	Cursor  *MovieCursor
}

// MovieCursor allows stable pagination by created_at/id.
type MovieCursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}

// MovieListResult returns the paginated payload.
type MovieListResult struct {
	Items      []domain.Movie
	NextCursor *string
}

// Create inserts a new movie row, links its genres, and returns the
// stored entity.
func (r *MoviesRepository) Create(ctx context.Context, params MovieCreateParams) (domain.Movie, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Movie{}, err
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
        INSERT INTO movies (title, release_year, synopsis, image_url)
        VALUES ($1,$2,$3,$4)
        RETURNING %s
    `, movieColumns)

	movie, err := scanMovie(tx.QueryRow(ctx, query, params.Title, params.ReleaseYear, params.Synopsis, params.ImageURL))
	if err != nil {
		return domain.Movie{}, err
	}

	for _, genreID := range params.GenreIDs {
		const link = `INSERT INTO movies_genres (movie_id, genre_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`
		if _, err := tx.Exec(ctx, link, movie.ID, genreID); err != nil {
			return domain.Movie{}, fmt.Errorf("link genre %s: %w", genreID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Movie{}, err
	}

	movie.Genres, err = r.genresFor(ctx, movie.ID)
	if err != nil {
		return domain.Movie{}, err
	}
	return movie, nil
}

// GetByID fetches a movie by its identifier, genres included.
func (r *MoviesRepository) GetByID(ctx context.Context, id string) (domain.Movie, error) {
	query := fmt.Sprintf(`SELECT %s FROM movies WHERE id = $1`, movieColumns)
	movie, err := scanMovie(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Movie{}, ErrNotFound
		}
		return domain.Movie{}, err
	}
	movie.Genres, err = r.genresFor(ctx, id)
	if err != nil {
		return domain.Movie{}, err
	}
	return movie, nil
}

// Exists reports whether a movie identifier is known.
func (r *MoviesRepository) Exists(ctx context.Context, id string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM movies WHERE id = $1)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Aggregate returns the maintained mean rating and count for a movie.
func (r *MoviesRepository) Aggregate(ctx context.Context, id string) (domain.RatingAggregate, error) {
	const query = `SELECT mean_rating, rating_count FROM movies WHERE id = $1`
	var agg domain.RatingAggregate
	err := r.pool.QueryRow(ctx, query, id).Scan(&agg.MeanRating, &agg.RatingCount)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.RatingAggregate{}, ErrNotFound
		}
		return domain.RatingAggregate{}, err
	}
	return agg, nil
}

// List returns movies that match the provided filters.
func (r *MoviesRepository) List(ctx context.Context, filters MovieListFilters) (MovieListResult, error) {
	if filters.Limit <= 0 {
		filters.Limit = 20
	} else if filters.Limit > 100 {
		filters.Limit = 100
	}

	where := make([]string, 0)
	args := make([]interface{}, 0)
	arg := func(value interface{}) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	join := ""
	if filters.GenreID != nil && strings.TrimSpace(*filters.GenreID) != "" {
		join = " JOIN movies_genres mg ON mg.movie_id = m.id"
		where = append(where, fmt.Sprintf("mg.genre_id = %s", arg(strings.TrimSpace(*filters.GenreID))))
	}
	if filters.Query != nil && strings.TrimSpace(*filters.Query) != "" {
		where = append(where, fmt.Sprintf("m.title ILIKE %s", arg("%"+strings.TrimSpace(*filters.Query)+"%")))
	}
	if filters.Year != nil {
		where = append(where, fmt.Sprintf("m.release_year = %s", arg(*filters.Year)))
	}
	if filters.Cursor != nil {
		cursorCreated := arg(filters.Cursor.CreatedAt)
		cursorID := arg(filters.Cursor.ID)
		where = append(where, fmt.Sprintf("(m.created_at, m.id) < (%s, %s)", cursorCreated, cursorID))
	}

	queryBuilder := strings.Builder{}
	queryBuilder.WriteString("SELECT ")
	queryBuilder.WriteString(prefixColumns(movieColumns, "m"))
	queryBuilder.WriteString(" FROM movies m")
	queryBuilder.WriteString(join)

	if len(where) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(where, " AND "))
	}

	queryBuilder.WriteString(" ORDER BY m.created_at DESC, m.id DESC")
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT %d", filters.Limit))

	rows, err := r.pool.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return MovieListResult{}, err
	}
	defer rows.Close()

	items := make([]domain.Movie, 0)
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return MovieListResult{}, err
		}
		items = append(items, movie)
	}
	if err := rows.Err(); err != nil {
		return MovieListResult{}, err
	}

	var nextCursor *string
	if len(items) == filters.Limit {
		last := items[len(items)-1]
		cursor := MovieCursor{CreatedAt: last.CreatedAt, ID: last.ID}
		token, err := encodeCursor(cursor)
		if err != nil {
			return MovieListResult{}, err
		}
		nextCursor = &token
	}

	return MovieListResult{Items: items, NextCursor: nextCursor}, nil
}

func (r *MoviesRepository) genresFor(ctx context.Context, movieID string) ([]domain.Genre, error) {
	const query = `
        SELECT g.id, g.name, g.created_at
        FROM genres g
        JOIN movies_genres mg ON mg.genre_id = g.id
        WHERE mg.movie_id = $1
        ORDER BY g.name ASC
    `
	rows, err := r.pool.Query(ctx, query, movieID)
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

func scanMovie(row pgx.Row) (domain.Movie, error) {
	var movie domain.Movie
	err := row.Scan(
		&movie.ID,
		&movie.Title,
		&movie.ReleaseYear,
		&movie.Synopsis,
		&movie.ImageURL,
		&movie.MeanRating,
		&movie.RatingCount,
		&movie.CreatedAt,
		&movie.UpdatedAt,
	)
	if err != nil {
		return domain.Movie{}, err
	}
	return movie, nil
}

// prefixColumns qualifies a comma-separated column list with a table alias.
func prefixColumns(columns, alias string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = alias + "." + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}

func encodeCursor(c MovieCursor) (string, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(payload), nil
}

// DecodeCursor parses a cursor token into a MovieCursor.
func DecodeCursor(token string) (*MovieCursor, error) {
	if token == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	var cursor MovieCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, fmt.Errorf("invalid cursor payload: %w", err)
	}
	return &cursor, nil
}
