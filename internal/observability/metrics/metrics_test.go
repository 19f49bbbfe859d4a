package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sony/gobreaker/v2"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestRAGMetricsExposePipelineSeries(t *testing.T) {
	m := NewRAGMetrics("test")
	m.ObserveStage("recall", 20*time.Millisecond, nil)
	m.ObserveStage("rerank", time.Millisecond, errors.New("down"))
	m.ObserveDegraded("rerank_skipped")
	m.ObserveCache(true)
	m.ObserveCache(false)
	m.ObserveAnswer("ok", 0.75, 2)
	m.ObserveFailover("gemini", "quota_exhausted")
	m.ObserveBreakerState("llm.gemini", gobreaker.StateClosed, gobreaker.StateOpen)

	body := scrape(t, m.Handler())
	for _, want := range []string{
		`prism_rag_stage_duration_seconds_count{outcome="error",service="test",stage="rerank"} 1`,
		`prism_rag_degraded_total{reason="rerank_skipped",service="test"} 1`,
		`prism_cache_requests_total{result="hit",service="test"} 1`,
		`prism_rag_answers_total{service="test",status="ok"} 1`,
		`prism_llm_failover_total{provider="gemini",reason="quota_exhausted",service="test"} 1`,
		`prism_resilience_breaker_state{operation="llm.gemini",service="test"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing series %q in:\n%s", want, body)
		}
	}
}

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler { return m.Middleware("api", next) })
	r.Get("/v1/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/items/42", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	body := scrape(t, m.Handler())
	if !strings.Contains(body, `prism_http_requests_total{method="GET",path="/v1/items/{id}",service="api",status="418"} 1`) {
		t.Fatalf("expected route pattern label:\n%s", body)
	}
	if !strings.Contains(body, `path="unmatched"`) {
		t.Fatalf("expected unmatched label for unknown path:\n%s", body)
	}
}
