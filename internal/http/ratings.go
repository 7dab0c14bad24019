package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/filmpulse/filmpulse/internal/domain"
	"github.com/filmpulse/filmpulse/internal/rating"
)

type ratingRequest struct {
	Score   float64    `json:"score"`
	RatedAt *time.Time `json:"ratedAt,omitempty"`
}

type ratingResponse struct {
	MovieID string    `json:"movieId"`
	UserID  string    `json:"userId"`
	Score   float64   `json:"score"`
	RatedAt time.Time `json:"ratedAt"`
}

type ratingAggregateResponse struct {
	MeanRating  float64 `json:"meanRating"`
	RatingCount int64   `json:"ratingCount"`
}

func (s *Server) handleSubmitRating(w http.ResponseWriter, r *http.Request) {
	userID := raterID(r)
	if userID == "" {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}
	if !validID(userID) {
		s.respondDomainError(w, domain.ErrUnknownUser)
		return
	}
	movieID := chi.URLParam(r, "movieID")
	if !validID(movieID) {
		s.respondDomainError(w, domain.ErrUnknownMovie)
		return
	}

	var req ratingRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	ratedAt := time.Now().UTC()
	if req.RatedAt != nil {
		ratedAt = req.RatedAt.UTC()
	}

	result, err := s.ratings.Submit(r.Context(), userID, movieID, req.Score, ratedAt)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	status := http.StatusOK
	if result.Outcome == rating.OutcomeCreated {
		status = http.StatusCreated
	}
	s.respondJSON(w, status, toRatingResponse(result.Rating))
}

func (s *Server) handleDeleteRating(w http.ResponseWriter, r *http.Request) {
	userID := raterID(r)
	if userID == "" {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}
	if !validID(userID) {
		s.respondDomainError(w, domain.ErrUnknownUser)
		return
	}
	movieID := chi.URLParam(r, "movieID")
	if !validID(movieID) {
		s.respondDomainError(w, domain.ErrUnknownMovie)
		return
	}

	deleted, err := s.ratings.Delete(r.Context(), userID, movieID)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toRatingResponse(deleted))
}

func (s *Server) handleGetRating(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	movieID := chi.URLParam(r, "movieID")
	if !validID(userID) || !validID(movieID) {
		s.respondDomainError(w, domain.ErrRatingNotFound)
		return
	}
	rt, err := s.ratings.Get(r.Context(), userID, movieID)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toRatingResponse(rt))
}

func (s *Server) handleGetAggregate(w http.ResponseWriter, r *http.Request) {
	movieID := chi.URLParam(r, "movieID")
	if !validID(movieID) {
		s.respondDomainError(w, domain.ErrUnknownMovie)
		return
	}
	agg, err := s.ratings.Aggregate(r.Context(), movieID)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, ratingAggregateResponse{
		MeanRating:  agg.MeanRating,
		RatingCount: agg.RatingCount,
	})
}

func (s *Server) handleListMovieRatings(w http.ResponseWriter, r *http.Request) {
	movieID := chi.URLParam(r, "movieID")
	if !validID(movieID) {
		s.respondDomainError(w, domain.ErrUnknownMovie)
		return
	}
	ratings, err := s.ratings.ListForMovie(r.Context(), movieID)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	items := make([]ratingResponse, 0, len(ratings))
	for _, rt := range ratings {
		items = append(items, toRatingResponse(rt))
	}
	s.respondJSON(w, http.StatusOK, items)
}

func (s *Server) handleListUserRatings(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !validID(userID) {
		s.respondDomainError(w, domain.ErrUnknownUser)
		return
	}
	ratings, err := s.ratings.ListForUser(r.Context(), userID)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	items := make([]ratingResponse, 0, len(ratings))
	for _, rt := range ratings {
		items = append(items, toRatingResponse(rt))
	}
	s.respondJSON(w, http.StatusOK, items)
}

func toRatingResponse(rt domain.Rating) ratingResponse {
	return ratingResponse{
		MovieID: rt.MovieID,
		UserID:  rt.UserID,
		Score:   rt.Score,
		RatedAt: rt.RatedAt,
	}
}
