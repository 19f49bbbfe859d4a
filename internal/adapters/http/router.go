package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kirillkom/prism-answer/internal/config"
	"github.com/kirillkom/prism-answer/internal/core/domain"
	"github.com/kirillkom/prism-answer/internal/core/ports"
	"github.com/kirillkom/prism-answer/internal/observability/metrics"
)

const maxRequestBodyBytes = 1 << 20

type Router struct {
	cfg     config.Config
	answers ports.AnswerService
	cache   ports.CacheAdmin
	metrics *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	answers ports.AnswerService,
	cache ports.CacheAdmin,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:     cfg,
		answers: answers,
		cache:   cache,
		metrics: httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware)
	r.Use(middleware.Recoverer)
	if rt.metrics != nil {
		r.Use(func(next http.Handler) http.Handler {
			return rt.metrics.Middleware(rt.cfg.ServiceName, next)
		})
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	r.Get("/healthz", rt.healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return rateLimitMiddleware(next, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
		})
		r.Use(func(next http.Handler) http.Handler {
			return backpressureMiddleware(next, rt.cfg.APIMaxInFlight, rt.cfg.APIQueueWait)
		})

		r.Post("/answer", rt.answer)
		r.Get("/cache/stats", rt.cacheStats)
		r.Delete("/cache", rt.clearCache)
	})
	return r
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) answer(w http.ResponseWriter, r *http.Request) {
	var req domain.AnswerRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	answer, err := rt.answers.Answer(r.Context(), req)
	if err != nil {
		rt.fail(w, r, "answer_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) cacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := rt.cache.Stats(r.Context())
	if err != nil {
		rt.fail(w, r, "cache_stats_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) clearCache(w http.ResponseWriter, r *http.Request) {
	deleted, err := rt.cache.Clear(r.Context())
	if err != nil {
		rt.fail(w, r, "cache_clear_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "cleared", "deleted": deleted})
}

func (rt *Router) fail(w http.ResponseWriter, r *http.Request, event string, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error(event, "request_id", requestIDFromContext(r.Context()), "status", status, "error", err)
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
