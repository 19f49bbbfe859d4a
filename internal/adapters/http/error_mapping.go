package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/kirillkom/prism-answer/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrIndexUnavailable), domain.IsKind(err, domain.ErrIndexNotFound):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrGenerationUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
