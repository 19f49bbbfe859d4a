package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker/v2"
)

// RAGMetrics records answer pipeline outcomes. It satisfies
// usecase.PipelineObserver.
type RAGMetrics struct {
	registry *prometheus.Registry
	service  string

	answersTotal  *prometheus.CounterVec
	confidence    *prometheus.HistogramVec
	sources       *prometheus.HistogramVec
	stageDuration *prometheus.HistogramVec
	degradedTotal *prometheus.CounterVec
	cacheRequests *prometheus.CounterVec
	failoverTotal *prometheus.CounterVec
	breakerState  *prometheus.GaugeVec
}

// NewRAGMetrics builds pipeline metrics on a registry of their own, for
// processes that expose no HTTP API.
func NewRAGMetrics(service string) *RAGMetrics {
	return newRAGMetrics(prometheus.NewRegistry(), service)
}

func newRAGMetrics(registry *prometheus.Registry, service string) *RAGMetrics {
	answersTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prism",
			Subsystem: "rag",
			Name:      "answers_total",
			Help:      "Total answer requests by retrieval status.",
		},
		[]string{"service", "status"},
	)
	confidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "prism",
			Subsystem: "rag",
			Name:      "confidence",
			Help:      "Distribution of validated answer confidence.",
			Buckets:   []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 1},
		},
		[]string{"service"},
	)
	sources := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "prism",
			Subsystem: "rag",
			Name:      "sources",
			Help:      "Distribution of cited sources per answer.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8},
		},
		[]string{"service"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "prism",
			Subsystem: "rag",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds by outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "stage", "outcome"},
	)
	degradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prism",
			Subsystem: "rag",
			Name:      "degraded_total",
			Help:      "Total answers produced on a fallback path.",
		},
		[]string{"service", "reason"},
	)
	cacheRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prism",
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Response cache lookups by result.",
		},
		[]string{"service", "result"},
	)
	failoverTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prism",
			Subsystem: "llm",
			Name:      "failover_total",
			Help:      "Total times a provider was abandoned for the next one.",
		},
		[]string{"service", "provider", "reason"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "prism",
			Subsystem: "resilience",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(
		answersTotal,
		confidence,
		sources,
		stageDuration,
		degradedTotal,
		cacheRequests,
		failoverTotal,
		breakerState,
	)

	return &RAGMetrics{
		registry:      registry,
		service:       service,
		answersTotal:  answersTotal,
		confidence:    confidence,
		sources:       sources,
		stageDuration: stageDuration,
		degradedTotal: degradedTotal,
		cacheRequests: cacheRequests,
		failoverTotal: failoverTotal,
		breakerState:  breakerState,
	}
}

func (m *RAGMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *RAGMetrics) ObserveStage(stage string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.stageDuration.WithLabelValues(m.service, stage, outcome).Observe(duration.Seconds())
}

func (m *RAGMetrics) ObserveDegraded(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.degradedTotal.WithLabelValues(m.service, reason).Inc()
}

func (m *RAGMetrics) ObserveCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheRequests.WithLabelValues(m.service, result).Inc()
}

func (m *RAGMetrics) ObserveAnswer(status string, confidence float64, sources int) {
	if status == "" {
		status = "unknown"
	}
	m.answersTotal.WithLabelValues(m.service, status).Inc()
	if status == "error" {
		return
	}
	m.confidence.WithLabelValues(m.service).Observe(confidence)
	m.sources.WithLabelValues(m.service).Observe(float64(sources))
}

func (m *RAGMetrics) ObserveFailover(provider, reason string) {
	m.failoverTotal.WithLabelValues(m.service, provider, reason).Inc()
}

// ObserveBreakerState matches resilience.StateListener.
func (m *RAGMetrics) ObserveBreakerState(operation string, _, to gobreaker.State) {
	m.breakerState.WithLabelValues(m.service, operation).Set(float64(to))
}
