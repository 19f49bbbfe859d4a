package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/prism-answer/internal/core/domain"
)

var errBrokerDown = errors.New("broker down")

func TestClassifyWith(t *testing.T) {
	classify := ClassifyWith(func(err error) bool { return errors.Is(err, errBrokerDown) })

	tests := []struct {
		name   string
		err    error
		retry  bool
		record bool
	}{
		{name: "canceled", err: context.Canceled},
		{name: "deadline wrapped", err: fmt.Errorf("search: %w", context.DeadlineExceeded)},
		{name: "open breaker", err: gobreaker.ErrOpenState, retry: true, record: true},
		{name: "bad request", err: &StatusError{Code: http.StatusBadRequest}},
		{name: "not found", err: &StatusError{Code: http.StatusNotFound}},
		{name: "request timeout", err: &StatusError{Code: http.StatusRequestTimeout}, retry: true, record: true},
		{name: "rate limited", err: &StatusError{Code: http.StatusTooManyRequests}, retry: true, record: true},
		{name: "unavailable wrapped", err: fmt.Errorf("rerank: %w", &StatusError{Code: http.StatusServiceUnavailable}), retry: true, record: true},
		{name: "dial failure", err: &net.OpError{Op: "dial", Err: errors.New("refused")}, retry: true, record: true},
		{name: "adapter transient", err: fmt.Errorf("publish: %w", errBrokerDown), retry: true, record: true},
		{name: "other", err: errors.New("bad subject"), record: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if got.Retryable != tt.retry || got.RecordFailure != tt.record {
				t.Fatalf("classify(%v) = %+v, want retry=%v record=%v", tt.err, got, tt.retry, tt.record)
			}
		})
	}

	if got := Classify(errBrokerDown); got.Retryable {
		t.Fatalf("plain Classify must not know adapter errors, got %+v", got)
	}
}

func TestNewStatusErrorBoundsBody(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusBadGateway,
		Body:       io.NopCloser(strings.NewReader(strings.Repeat("x", 5000))),
	}
	err := NewStatusError("qdrant", "search", resp)
	if len(err.Body) != maxStatusBody {
		t.Fatalf("expected body truncated to %d, got %d", maxStatusBody, len(err.Body))
	}
	if HTTPStatus(fmt.Errorf("wrapped: %w", err)) != http.StatusBadGateway {
		t.Fatalf("expected status through wrapping")
	}
	if !strings.HasPrefix(err.Error(), "qdrant search status: 502 Bad Gateway: x") {
		t.Fatalf("unexpected message %q", err.Error()[:40])
	}
}

func TestWrapTemporary(t *testing.T) {
	retryable := &StatusError{Code: http.StatusServiceUnavailable}
	if err := WrapTemporary("ollama embed", retryable, Classify); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary, got %v", err)
	}

	permanent := &StatusError{Code: http.StatusBadRequest}
	if err := WrapTemporary("ollama embed", permanent, Classify); err != error(permanent) {
		t.Fatalf("permanent errors must pass through, got %v", err)
	}
	if WrapTemporary("ollama embed", nil, Classify) != nil {
		t.Fatalf("nil must stay nil")
	}
}
