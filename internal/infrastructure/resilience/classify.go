package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/prism-answer/internal/core/domain"
)

const maxStatusBody = 2048

// StatusError is a non-2xx reply from an HTTP dependency.
type StatusError struct {
	Service   string
	Operation string
	Code      int
	Body      string
}

// NewStatusError captures the status and a bounded prefix of the body.
func NewStatusError(service, operation string, resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxStatusBody))
	return &StatusError{
		Service:   service,
		Operation: operation,
		Code:      resp.StatusCode,
		Body:      strings.TrimSpace(string(body)),
	}
}

func (e *StatusError) Error() string {
	status := fmt.Sprintf("%d %s", e.Code, http.StatusText(e.Code))
	if e.Body == "" {
		return fmt.Sprintf("%s %s status: %s", e.Service, e.Operation, status)
	}
	return fmt.Sprintf("%s %s status: %s: %s", e.Service, e.Operation, status, e.Body)
}

func (e *StatusError) HTTPStatus() int {
	return e.Code
}

// HTTPStatus returns the status code carried anywhere in err's chain, or 0.
// Any error with an HTTPStatus() int method counts.
func HTTPStatus(err error) int {
	var statuser interface{ HTTPStatus() int }
	if errors.As(err, &statuser) {
		return statuser.HTTPStatus()
	}
	return 0
}

func RetryableStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500
}

// Classify is the classifier for network dependencies. Caller cancellation
// is final and never trips a breaker. HTTP replies are retried by status.
func Classify(err error) ErrorClassification {
	return ClassifyWith(nil)(err)
}

// ClassifyWith extends Classify with adapter-specific transient errors,
// such as a broker's "no servers" error.
func ClassifyWith(transient func(error) bool) ErrorClassifier {
	return func(err error) ErrorClassification {
		switch {
		case err == nil:
			return ErrorClassification{}
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return ErrorClassification{Retryable: false, RecordFailure: false}
		case IsCircuitOpen(err):
			return ErrorClassification{Retryable: true, RecordFailure: true}
		}

		if code := HTTPStatus(err); code != 0 {
			retryable := RetryableStatus(code)
			return ErrorClassification{Retryable: retryable, RecordFailure: retryable}
		}

		var netErr net.Error
		if errors.As(err, &netErr) || (transient != nil && transient(err)) {
			return ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}
}

// WrapTemporary marks err as domain.ErrTemporary when classify would retry it.
func WrapTemporary(operation string, err error, classify ErrorClassifier) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classify(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
