package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/desertthunder/chorus/internal/shared"
	"github.com/desertthunder/chorus/internal/tasks"
)

// errorBody is the structured error payload every failed operation resolves to.
type errorBody struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// writeJSON serializes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError writes the structured error shape.
func writeError(w http.ResponseWriter, status int, message string, details any) {
	writeJSON(w, status, errorBody{Error: message, Details: details})
}

// writeOperationError maps a service or engine error onto the HTTP contract:
// authorization failures are 401, validation and the sufficiency gate are 400,
// everything else (upstream, parse, configuration) is 500. The operation name
// travels in the error field so callers can attribute the failure.
func writeOperationError(w http.ResponseWriter, operation string, err error) {
	var insufficient *tasks.InsufficientMatchesError
	if errors.As(err, &insufficient) {
		writeError(w, http.StatusBadRequest, operation, map[string]int{
			"found":     insufficient.Found,
			"requested": insufficient.Requested,
		})
		return
	}

	var parseErr *tasks.ParseError
	if errors.As(err, &parseErr) {
		writeError(w, http.StatusInternalServerError, operation, map[string]string{
			"reason":  err.Error(),
			"excerpt": parseErr.Excerpt,
		})
		return
	}

	switch {
	case errors.Is(err, shared.ErrUnauthorized),
		errors.Is(err, shared.ErrTokenExpired),
		errors.Is(err, shared.ErrTokenInvalid):
		writeError(w, http.StatusUnauthorized, operation, err.Error())
	case errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, operation, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, operation, err.Error())
	}
}
