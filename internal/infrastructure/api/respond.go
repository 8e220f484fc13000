package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"shopify-multishop-layer/internal/domain"

	"github.com/rs/zerolog"
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
	Path       string `json:"path"`
}

// errorStatuses is checked in order; the first sentinel matched decides status and message
var errorStatuses = []struct {
	err    error
	status int
}{
	{domain.ErrTokenExchangeFailed, http.StatusInternalServerError},
	{domain.ErrInstallationFailed, http.StatusInternalServerError},
	{domain.ErrInvalidDomain, http.StatusBadRequest},
	{domain.ErrMissingParameters, http.StatusBadRequest},
	{domain.ErrMissingHeaders, http.StatusBadRequest},
	{domain.ErrInvalidPayload, http.StatusBadRequest},
	{domain.ErrInvalidSettings, http.StatusBadRequest},
	{domain.ErrInvalidQuery, http.StatusBadRequest},
	{domain.ErrInvalidSignature, http.StatusUnauthorized},
	{domain.ErrInvalidOrExpiredState, http.StatusUnauthorized},
	{domain.ErrInvalidSessionToken, http.StatusUnauthorized},
	{domain.ErrCredentialRevoked, http.StatusForbidden},
	{domain.ErrShopNotFound, http.StatusNotFound},
	{domain.ErrUpstreamTimeout, http.StatusGatewayTimeout},
	{domain.ErrUpstreamFailure, http.StatusBadGateway},
	{domain.ErrStorageFailure, http.StatusInternalServerError},
}

// classifyError maps err to a status and a client-safe message
func classifyError(err error) (int, string) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status, e.err.Error()
		}
	}
	return http.StatusInternalServerError, "internal server error"
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorWriter renders errors and logs server-side failures with full context
func errorWriter(logger zerolog.Logger) func(w http.ResponseWriter, r *http.Request, err error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		status, msg := classifyError(err)
		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Msg("Request failed")
		}
		writeJSON(w, status, ErrorResponse{
			Error:      msg,
			StatusCode: status,
			Path:       r.URL.Path,
		})
	}
}
