package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/sungwon/scheduled-mailer/internal/dispatch"
	"github.com/sungwon/scheduled-mailer/internal/logger"
	"github.com/sungwon/scheduled-mailer/internal/scheduling"
)

// respondJSON writes a JSON response with the given status code and data.
// If data is nil, only the status code and Content-Type header are written.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError writes a JSON error response with the given status code and message.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, scheduling.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, scheduling.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, scheduling.ErrFailedPrecondition), errors.Is(err, dispatch.ErrRunInProgress):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondServiceError writes err with its mapped status. Internal errors are
// logged and their details withheld from the caller.
func respondServiceError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("path", r.URL.Path).
			Str("correlation_id", logger.CorrelationIDFromContext(r.Context())).
			Msg("request failed")
		respondError(w, status, "internal server error")
		return
	}
	respondError(w, status, err.Error())
}

// decodeJSON decodes the request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
