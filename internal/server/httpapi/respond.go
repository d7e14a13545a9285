package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/avolkovs/taskkeeper/internal/common"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// writeJSON serializes v with the given status. Serialization failures are
// logged and abandoned; headers are already out by then.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error(r.Context(), "response encoding failed", "error", err.Error())
	}
}

// writeError maps service errors to response contracts. Not-found and
// not-owned are the same uniform 404; storage and internal failures are
// reported generically with full detail logged for operators only. No
// response ever carries a storage key, stack trace or backend detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *common.ValidationError

	switch {
	case errors.As(err, &validationErr):
		s.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "validation error", Fields: validationErr.Fields})
	case errors.Is(err, common.ErrNotFound):
		s.writeJSON(w, r, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, common.ErrAlreadyExists):
		s.writeJSON(w, r, http.StatusConflict, errorResponse{Error: "already exists"})
	case errors.Is(err, common.ErrUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrRefreshTokenExpired):
		s.writeJSON(w, r, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
	case errors.Is(err, common.ErrStorageUnavailable):
		s.logger.Error(r.Context(), "storage backend failure", "error", err.Error())
		s.writeJSON(w, r, http.StatusServiceUnavailable, errorResponse{Error: "storage unavailable"})
	default:
		s.logger.Error(r.Context(), "internal error", "error", err.Error())
		s.writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// decodeJSON parses the request body into dst, rejecting malformed payloads
// with a field-level validation error.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return common.NewValidationError("body", "must be valid JSON")
	}
	return nil
}
