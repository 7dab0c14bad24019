package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/filmpulse/filmpulse/internal/domain"
)

const maxRequestBody = 1 << 20 // 1 MiB

type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Error().Err(err).Msg("failed to encode response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

func (s *Server) respondDecodeError(w http.ResponseWriter, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxError):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Malformed JSON payload")
	case errors.As(err, &typeError):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("Invalid value for field %s", typeError.Field))
	case errors.Is(err, io.EOF):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Request body cannot be empty")
	default:
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unable to parse request body")
	}
}

// respondDomainError maps the rating subsystem's error taxonomy onto
// HTTP statuses.
func (s *Server) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidScore):
		s.respondError(w, http.StatusUnprocessableEntity, "INVALID_SCORE", "rating score must be between 0 and 5")
	case errors.Is(err, domain.ErrUnknownUser):
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Unknown user")
	case errors.Is(err, domain.ErrUnknownMovie):
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Unknown movie")
	case errors.Is(err, domain.ErrUnknownGenre):
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Unknown genre")
	case errors.Is(err, domain.ErrRatingNotFound):
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Rating not found")
	case errors.Is(err, domain.ErrStorageUnavailable):
		s.logger.Error().Err(err).Msg("storage unavailable")
		s.respondError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Temporarily unable to process the request")
	default:
		s.logger.Error().Err(err).Msg("unhandled error")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal error")
	}
}

func (s *Server) verifyBearer(header string) bool {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token != "" && token == s.cfg.Server.AuthToken
}

// raterID extracts the authenticated rater identity the auth layer
// forwards with the request.
func raterID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Rater-Id"))
}

// validID rejects identifiers that cannot be UUIDs before they reach
// the database, where they would fail as a query error rather than a
// clean not-found.
func validID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
