// Package api provides the HTTP API handlers for hueassay.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/hueassay/internal/capture"
	"github.com/ayusman/hueassay/internal/region"
	"github.com/ayusman/hueassay/internal/sampler"
	"github.com/ayusman/hueassay/internal/session"
	"github.com/ayusman/hueassay/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeErr maps a domain error to its HTTP status and writes it.
func writeErr(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrPrecondition),
		errors.Is(err, store.ErrDuplicate),
		errors.Is(err, capture.ErrCameraBusy):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, region.ErrInvalid),
		errors.Is(err, sampler.ErrInvalidConfig),
		errors.Is(err, capture.ErrInvalidDuration),
		errors.Is(err, session.ErrInvalidDuration):
		return http.StatusBadRequest
	case errors.Is(err, capture.ErrDecoder):
		return http.StatusUnprocessableEntity
	case errors.Is(err, sampler.ErrSeekTimeout):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// decodeJSON reads the request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return false
	}
	return true
}
