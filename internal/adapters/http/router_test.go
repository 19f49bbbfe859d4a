package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/prism-answer/internal/config"
	"github.com/kirillkom/prism-answer/internal/core/domain"
	"github.com/kirillkom/prism-answer/internal/observability/metrics"
)

type answerFake struct {
	got domain.AnswerRequest
	err error
}

func (f *answerFake) Answer(_ context.Context, req domain.AnswerRequest) (*domain.GroundedAnswer, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.GroundedAnswer{
		ID:              "ans-1",
		Message:         "Accuracy was 91 percent [c1].",
		Sources:         []domain.Evidence{{ID: "c1", ChunkID: "a", DocumentID: "doc-1"}},
		Confidence:      1,
		RetrievalStatus: domain.RetrievalOK,
	}, nil
}

type cacheAdminFake struct {
	cleared int
	err     error
}

func (f *cacheAdminFake) Stats(context.Context) (domain.CacheStats, error) {
	if f.err != nil {
		return domain.CacheStats{}, f.err
	}
	return domain.CacheStats{Status: "enabled", Hits: 3, Misses: 1, HitRate: 0.75, TotalKeys: 4, TTLSeconds: 86400}, nil
}

func (f *cacheAdminFake) Clear(context.Context) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.cleared, nil
}

func newTestHandler(cfg config.Config, answers *answerFake, cache *cacheAdminFake) http.Handler {
	return NewRouter(cfg, answers, cache, nil).Handler()
}

func postAnswer(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/answer", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestAnswerDecodesRequestAndReturnsGroundedAnswer(t *testing.T) {
	answers := &answerFake{}
	handler := newTestHandler(config.Config{}, answers, &cacheAdminFake{})

	res := postAnswer(t, handler, `{"query":"What are the results?","top_k":3,"document_ids":["doc-1"],"history":[{"role":"user","content":"hi"}]}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if answers.got.Query != "What are the results?" || answers.got.TopK != 3 || len(answers.got.DocumentIDs) != 1 || len(answers.got.History) != 1 {
		t.Fatalf("unexpected decoded request %+v", answers.got)
	}

	var body domain.GroundedAnswer
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.ID != "ans-1" || len(body.Sources) != 1 || body.RetrievalStatus != domain.RetrievalOK {
		t.Fatalf("unexpected response %+v", body)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestAnswerRejectsMalformedJSON(t *testing.T) {
	handler := newTestHandler(config.Config{}, &answerFake{}, &cacheAdminFake{})

	for _, body := range []string{`{"query":`, `{"question":"old field"}`} {
		if res := postAnswer(t, handler, body); res.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, res.Code)
		}
	}
}

func TestAnswerMapsDomainErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", domain.WrapError(domain.ErrInvalidInput, "answer", errors.New("empty query")), http.StatusBadRequest},
		{"index unavailable", domain.WrapError(domain.ErrIndexUnavailable, "recall", errors.New("refused")), http.StatusServiceUnavailable},
		{"generation unavailable", domain.WrapError(domain.ErrGenerationUnavailable, "draft", errors.New("all providers failed")), http.StatusBadGateway},
		{"temporary", domain.WrapError(domain.ErrTemporary, "llm", errors.New("busy")), http.StatusServiceUnavailable},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler(config.Config{}, &answerFake{err: tt.err}, &cacheAdminFake{})
			res := postAnswer(t, handler, `{"query":"q"}`)
			if res.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, res.Code)
			}
		})
	}
}

func TestCacheEndpoints(t *testing.T) {
	handler := newTestHandler(config.Config{}, &answerFake{}, &cacheAdminFake{cleared: 7})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/cache/stats", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("stats expected 200, got %d", res.Code)
	}
	var stats domain.CacheStats
	if err := json.NewDecoder(res.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.HitRate != 0.75 || stats.TotalKeys != 4 || stats.TTLSeconds != 86400 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodDelete, "/v1/cache", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("clear expected 200, got %d", res.Code)
	}
	var cleared map[string]any
	if err := json.NewDecoder(res.Body).Decode(&cleared); err != nil {
		t.Fatalf("decode clear: %v", err)
	}
	if cleared["status"] != "cleared" || cleared["deleted"] != float64(7) {
		t.Fatalf("unexpected clear response %v", cleared)
	}
}

func TestCacheClearFailureMapsTo503(t *testing.T) {
	handler := newTestHandler(config.Config{}, &answerFake{}, &cacheAdminFake{
		err: domain.WrapError(domain.ErrTemporary, "cache.clear", errors.New("pg down")),
	})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodDelete, "/v1/cache", nil))
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestHandler(config.Config{}, &answerFake{}, &cacheAdminFake{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/answer", nil))
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestMetricsEndpointExposesRequests(t *testing.T) {
	handler := NewRouter(config.Config{ServiceName: "prism-test"}, &answerFake{}, &cacheAdminFake{}, metrics.NewHTTPServerMetrics("prism-test")).Handler()

	postAnswer(t, handler, `{"query":"q"}`)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("metrics expected 200, got %d", res.Code)
	}
	if !bytes.Contains(res.Body.Bytes(), []byte(`path="/v1/answer"`)) {
		t.Fatalf("expected answer route in metrics:\n%s", res.Body.String())
	}
}

func TestRecovererTurnsPanicInto500(t *testing.T) {
	handler := NewRouter(config.Config{}, panicAnswers{}, &cacheAdminFake{}, nil).Handler()

	res := postAnswer(t, handler, `{"query":"q"}`)
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
}

type panicAnswers struct{}

func (panicAnswers) Answer(context.Context, domain.AnswerRequest) (*domain.GroundedAnswer, error) {
	panic("boom")
}
