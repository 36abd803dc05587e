// Package handler provides HTTP handlers for the Constable API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/kesrow/constable/internal/domain"
)

// apiError is the JSON error envelope returned by every failing endpoint.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Debug().Err(err).Msg("Failed to encode response body")
	}
}

// writeError maps a domain error to its HTTP status and error code and
// renders the error envelope. Unknown errors become an opaque 500; their
// details are logged server-side, never leaked to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classifyError(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		message = "internal error"
	}

	writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: message}})
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentialFormat):
		return http.StatusBadRequest, "invalid_credential_format"
	case errors.Is(err, domain.ErrUnknownDimension):
		return http.StatusBadRequest, "unknown_dimension"
	case errors.Is(err, domain.ErrInvalidFilterValue):
		return http.StatusBadRequest, "invalid_filter_value"
	case errors.Is(err, domain.ErrPaginationOutOfRange):
		return http.StatusBadRequest, "pagination_out_of_range"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, domain.ErrUnauthenticated),
		errors.Is(err, domain.ErrTokenInvalid),
		errors.Is(err, domain.ErrTokenExpired):
		// Token states are indistinguishable to the client.
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, domain.ErrDuplicateUsername):
		return http.StatusConflict, "duplicate_username"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "storage_unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}
