package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/filmpulse/filmpulse/internal/domain"
	"github.com/filmpulse/filmpulse/internal/repository"
)

type movieCreateRequest struct {
	Title       string   `json:"title"`
	ReleaseYear int      `json:"releaseYear"`
	Synopsis    string   `json:"synopsis"`
	ImageURL    *string  `json:"imageUrl"`
	GenreIDs    []string `json:"genreIds"`
}

type movieResponse struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	ReleaseYear int             `json:"releaseYear"`
	Synopsis    string          `json:"synopsis,omitempty"`
	ImageURL    *string         `json:"imageUrl,omitempty"`
	Genres      []genreResponse `json:"genres,omitempty"`
	MeanRating  float64         `json:"meanRating"`
	RatingCount int64           `json:"ratingCount"`
}

type movieListResponse struct {
	Items      []movieResponse `json:"items"`
	NextCursor *string         `json:"nextCursor,omitempty"`
}

type genreResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type genreCreateRequest struct {
	Name string `json:"name"`
}

type userCreateRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (s *Server) handleListMovies(w http.ResponseWriter, r *http.Request) {
	filters, err := buildMovieFilters(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	result, err := s.repo.Movies.List(r.Context(), filters)
	if err != nil {
		s.logger.Error().Err(err).Msg("list movies failed")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list movies")
		return
	}

	items := make([]movieResponse, 0, len(result.Items))
	for _, movie := range result.Items {
		items = append(items, toMovieResponse(movie))
	}
	s.respondJSON(w, http.StatusOK, movieListResponse{Items: items, NextCursor: result.NextCursor})
}

func buildMovieFilters(query url.Values) (repository.MovieListFilters, error) {
	var filters repository.MovieListFilters

	if q := strings.TrimSpace(query.Get("q")); q != "" {
		filters.Query = &q
	}
	if val := strings.TrimSpace(query.Get("year")); val != "" {
		year, err := strconv.Atoi(val)
		if err != nil {
			return filters, fmt.Errorf("invalid year value")
		}
		filters.Year = &year
	}
	if val := strings.TrimSpace(query.Get("genre")); val != "" {
		if !validID(val) {
			return filters, fmt.Errorf("invalid genre value")
		}
		filters.GenreID = &val
	}
	if val := strings.TrimSpace(query.Get("limit")); val != "" {
		limit, err := strconv.Atoi(val)
		if err != nil {
			return filters, fmt.Errorf("invalid limit value")
		}
		filters.Limit = limit
	}
	if val := strings.TrimSpace(query.Get("cursor")); val != "" {
		cursor, err := repository.DecodeCursor(val)
		if err != nil {
			return filters, fmt.Errorf("invalid cursor")
		}
		filters.Cursor = cursor
	}
	return filters, nil
}

func (s *Server) handleCreateMovie(w http.ResponseWriter, r *http.Request) {
	if !s.verifyBearer(r.Header.Get("Authorization")) {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}

	var req movieCreateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	if strings.TrimSpace(req.Title) == "" {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required")
		return
	}
	currentYear := time.Now().Year()
	if req.ReleaseYear < 1888 || req.ReleaseYear > currentYear+5 {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "releaseYear is out of range")
		return
	}
	for _, id := range req.GenreIDs {
		if !validID(id) {
			s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "genreIds must be valid genre identifiers")
			return
		}
	}

	movie, err := s.repo.Movies.Create(r.Context(), repository.MovieCreateParams{
		Title:       strings.TrimSpace(req.Title),
		ReleaseYear: req.ReleaseYear,
		Synopsis:    strings.TrimSpace(req.Synopsis),
		ImageURL:    req.ImageURL,
		GenreIDs:    req.GenreIDs,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("create movie failed")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create movie")
		return
	}

	w.Header().Set("Location", "/movies/"+url.PathEscape(movie.ID))
	s.respondJSON(w, http.StatusCreated, toMovieResponse(movie))
}

func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	movieID := chi.URLParam(r, "movieID")
	if !validID(movieID) {
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
		return
	}
	movie, err := s.repo.Movies.GetByID(r.Context(), movieID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return
		}
		s.logger.Error().Err(err).Msg("get movie failed")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch movie")
		return
	}
	s.respondJSON(w, http.StatusOK, toMovieResponse(movie))
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if !s.verifyBearer(r.Header.Get("Authorization")) {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}

	var req userCreateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Name) == "" {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "email and name are required")
		return
	}

	user, err := s.repo.Users.Create(r.Context(), repository.UserCreateParams{
		Email: strings.TrimSpace(req.Email),
		Name:  strings.TrimSpace(req.Name),
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("create user failed")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create user")
		return
	}
	s.respondJSON(w, http.StatusCreated, userResponse{ID: user.ID, Email: user.Email, Name: user.Name})
}

func (s *Server) handleListGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := s.repo.Genres.List(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("list genres failed")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list genres")
		return
	}
	items := make([]genreResponse, 0, len(genres))
	for _, genre := range genres {
		items = append(items, genreResponse{ID: genre.ID, Name: genre.Name})
	}
	s.respondJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateGenre(w http.ResponseWriter, r *http.Request) {
	if !s.verifyBearer(r.Header.Get("Authorization")) {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}

	var req genreCreateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required")
		return
	}

	genre, err := s.repo.Genres.Create(r.Context(), strings.TrimSpace(req.Name))
	if err != nil {
		s.logger.Error().Err(err).Msg("create genre failed")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create genre")
		return
	}
	s.respondJSON(w, http.StatusCreated, genreResponse{ID: genre.ID, Name: genre.Name})
}

func toMovieResponse(movie domain.Movie) movieResponse {
	resp := movieResponse{
		ID:          movie.ID,
		Title:       movie.Title,
		ReleaseYear: movie.ReleaseYear,
		Synopsis:    movie.Synopsis,
		ImageURL:    movie.ImageURL,
		MeanRating:  movie.MeanRating,
		RatingCount: movie.RatingCount,
	}
	for _, genre := range movie.Genres {
		resp.Genres = append(resp.Genres, genreResponse{ID: genre.ID, Name: genre.Name})
	}
	return resp
}
