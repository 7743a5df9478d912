package api

import (
	"encoding/json"
	"net/http"

	"github.com/Tanmay2302/CampusSpot/internal/core"
	"github.com/Tanmay2302/CampusSpot/internal/log"
)

// errorBody is the JSON error envelope. ConflictDetails is present only on
// 409 responses where an incumbent claim is known.
type errorBody struct {
	Error           string                `json:"error"`
	ConflictDetails *core.ConflictDetails `json:"conflictDetails,omitempty"`
	RequestID       string                `json:"requestId,omitempty"`
}

// statusOf is the single place domain error kinds become HTTP status codes.
func statusOf(kind core.Kind) int {
	switch kind {
	case core.KindBadRequest:
		return http.StatusBadRequest
	case core.KindForbidden:
		return http.StatusForbidden
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindConflict:
		return http.StatusConflict
	case core.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(core.KindOf(err))
	body := errorBody{RequestID: log.RequestIDFromContext(r.Context())}

	if e := core.AsError(err); e != nil && status != http.StatusInternalServerError {
		body.Error = e.Message
		body.ConflictDetails = e.Details
	} else {
		// Internal causes stay in the log, not on the wire.
		body.Error = "internal server error"
		logger := log.WithComponentFromContext(r.Context(), "http")
		logger.Error().
			Err(err).
			Str("path", r.URL.Path).
			Msg("request failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "http")
		logger.Error().Err(err).Msg("failed to encode response")
	}
}
