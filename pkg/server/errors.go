package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"mercator-hq/conduit/pkg/routing"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

const (
	errorTypeInvalidRequest     = "invalid_request_error"
	errorTypeNotFound           = "not_found"
	errorTypeServiceUnavailable = "service_unavailable"
	errorTypeServer             = "server_error"
)

// statusFor maps engine errors to HTTP status codes and error types.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, routing.ErrNotFound):
		return http.StatusNotFound, errorTypeNotFound
	case errors.Is(err, routing.ErrNoProvidersAvailable):
		return http.StatusServiceUnavailable, errorTypeServiceUnavailable
	case errors.Is(err, routing.ErrInvalidRequest), errors.Is(err, routing.ErrInvalidStrategy):
		return http.StatusBadRequest, errorTypeInvalidRequest
	default:
		return http.StatusInternalServerError, errorTypeServer
	}
}

func writeError(w http.ResponseWriter, err error) {
	code, typ := statusFor(err)
	writeErrorResponse(w, code, typ, err.Error())
}

func writeErrorResponse(w http.ResponseWriter, code int, typ, message string) {
	writeJSON(w, code, ErrorResponse{Error: ErrorDetail{Message: message, Type: typ}})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
