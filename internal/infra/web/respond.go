package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"video-analysis-platform/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg, reason string) {
	writeJSON(w, status, errorResponse{Error: msg, Reason: reason})
}

// mapDomainError translates the shared sentinel errors into HTTP statuses.
// Anything unrecognized is a 500 with a generic body; the detail goes to the
// log, not the client.
func mapDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUploadNotFound):
		writeError(w, http.StatusNotFound, "not found", "")
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error(), "already_exists")
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, domain.ErrRetryCeiling):
		writeError(w, http.StatusConflict, err.Error(), "ceiling_exceeded")
	case errors.Is(err, domain.ErrNotRetryable):
		writeError(w, http.StatusConflict, err.Error(), "wrong_status")
	case errors.Is(err, domain.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "another retry is in progress", "retry_in_progress")
	case errors.Is(err, domain.ErrIllegalTransition):
		writeError(w, http.StatusConflict, err.Error(), "illegal_transition")
	case errors.Is(err, domain.ErrPartIntegrity):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "part_integrity")
	case errors.Is(err, domain.ErrNotDurable):
		writeError(w, http.StatusBadGateway, err.Error(), "not_durable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error", "")
	}
}
