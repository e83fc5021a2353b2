package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/casevault/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeServiceError maps the error taxonomy onto HTTP statuses. Anything
// outside the taxonomy is an internal error with the detail logged, not
// leaked.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("already exists"))
	case errors.Is(err, apperr.ErrInvalidIdentity):
		writeJSON(w, http.StatusBadRequest, errorBody("subject name cannot be empty"))
	case errors.Is(err, apperr.ErrInvalidDescriptor):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrCorrupt),
		errors.Is(err, apperr.ErrArtifactMissing),
		errors.Is(err, apperr.ErrTransformFailed):
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
	default:
		slog.Error("internal error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
