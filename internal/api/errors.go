package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-accessors/internal/fault"
	"github.com/nerrad567/gray-logic-accessors/internal/host"
	"github.com/nerrad567/gray-logic-accessors/internal/infrastructure/statemirror"
	"github.com/nerrad567/gray-logic-accessors/internal/instance"
	"github.com/nerrad567/gray-logic-accessors/internal/port"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeConflict       = "conflict"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeUnavailable    = "unavailable"
	ErrCodeTimeout        = "timeout"
	ErrCodeMethodNotAllow = "method_not_allowed"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// errorStatus maps a host, store or accessor error to a status and code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, host.ErrInstanceNotFound), errors.Is(err, instance.ErrNotFound),
		errors.Is(err, statemirror.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, host.ErrDuplicateInstance), errors.Is(err, instance.ErrExists):
		return http.StatusConflict, ErrCodeConflict
	case errors.Is(err, instance.ErrInvalid), errors.Is(err, port.ErrInvalidValue):
		return http.StatusBadRequest, ErrCodeValidation
	case errors.Is(err, host.ErrStopped):
		return http.StatusServiceUnavailable, ErrCodeUnavailable
	}

	switch fault.Kind(err) {
	case fault.ErrConfiguration:
		return http.StatusBadRequest, fault.CodeConfiguration
	case fault.ErrDeviceUnavailable:
		return http.StatusServiceUnavailable, fault.CodeDeviceUnavailable
	case fault.ErrNoDataAvailable:
		return http.StatusNotFound, fault.CodeNoDataAvailable
	case fault.ErrTransportFailure:
		return http.StatusBadGateway, fault.CodeTransportFailure
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, ErrCodeTimeout
	}
	return http.StatusInternalServerError, ErrCodeInternal
}

// writeErr writes err with the status and code errorStatus picks.
func writeErr(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	writeError(w, status, code, err.Error())
}
