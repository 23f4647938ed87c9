package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/avoskres/assisted-search/internal/core/domain"
)

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func mapErrorToHTTPStatus(err error) (int, string) {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_QUERY"
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case domain.IsKind(err, domain.ErrSearchBackend):
		return http.StatusBadGateway, "UPSTREAM_SEARCH_ERROR"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	case domain.IsKind(err, domain.ErrLLMUnavailable), domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := mapErrorToHTTPStatus(err)
	writeJSON(w, status, errorBody{
		Code:      code,
		Message:   err.Error(),
		RequestID: requestIDFromContext(r.Context()),
	})
}
