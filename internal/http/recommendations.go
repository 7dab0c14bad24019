package httpserver

import (
	"net/http"
	"strconv"

	"github.com/filmpulse/filmpulse/internal/domain"
)

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	userID := raterID(r)
	if userID == "" {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}
	if !validID(userID) {
		s.respondDomainError(w, domain.ErrUnknownUser)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.respondError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	genreID := r.URL.Query().Get("genre")
	if genreID != "" && !validID(genreID) {
		s.respondDomainError(w, domain.ErrUnknownGenre)
		return
	}

	entries, err := s.recommends.Recommend(r.Context(), userID, limit, genreID)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, entries)
}
