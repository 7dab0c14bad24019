package domain

import "time"

// Movie represents the canonical movie entity in the database/service.
// MeanRating and RatingCount are derived fields owned by the rating
// subsystem; everything else belongs to the catalog.
type Movie struct {
	ID          string
	Title       string
	ReleaseYear int
	Synopsis    string
	ImageURL    *string
	Genres      []Genre
	MeanRating  float64
	RatingCount int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Genre is a catalog label a movie can carry any number of.
type Genre struct {
	ID        string
	Name      string
	CreatedAt time.Time
}
