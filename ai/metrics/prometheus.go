// Package metrics provides Prometheus metrics export for the turn pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "alsassist"

// Turn outcomes.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusError    = "error"
)

// PrometheusExporter exports pipeline metrics in Prometheus format.
type PrometheusExporter struct {
	registry *prometheus.Registry

	// Turn metrics
	turnLatency *prometheus.HistogramVec
	turns       *prometheus.CounterVec

	// Generation metrics
	generationFailures prometheus.Counter
	generationLatency  *prometheus.HistogramVec
	llmTokens          *prometheus.CounterVec

	// Signal metrics
	stages             *prometheus.CounterVec
	needs              *prometheus.CounterVec
	proactiveQuestions prometheus.Counter

	// Collaborator health
	sessionDegraded *prometheus.CounterVec
	searchFailures  prometheus.Counter
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.turnLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_latency_seconds",
			Help:      "End-to-end latency of one conversation turn in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"status"},
	)

	e.turns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of processed turns",
		},
		[]string{"status"},
	)

	e.generationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_failures_total",
			Help:      "Generation calls replaced by the apology text",
		},
	)

	e.generationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_latency_seconds",
			Help:      "Latency of successful generation calls in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"model"},
	)

	e.llmTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Tokens consumed by generation calls",
		},
		[]string{"model", "type"},
	)

	e.stages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_total",
			Help:      "Estimated stage per turn",
		},
		[]string{"stage"},
	)

	e.needs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "needs_total",
			Help:      "Detected need categories",
		},
		[]string{"type"},
	)

	e.proactiveQuestions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proactive_questions_total",
			Help:      "Proactive questions appended to replies",
		},
	)

	e.sessionDegraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_store_degraded_total",
			Help:      "Session store operations that fell back to defaults",
		},
		[]string{"op"},
	)

	e.searchFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_failures_total",
			Help:      "Similarity searches that failed",
		},
	)

	registry.MustRegister(
		e.turnLatency,
		e.turns,
		e.generationFailures,
		e.generationLatency,
		e.llmTokens,
		e.stages,
		e.needs,
		e.proactiveQuestions,
		e.sessionDegraded,
		e.searchFailures,
	)

	return e
}

// RecordTurn records one finished turn.
func (e *PrometheusExporter) RecordTurn(status string, latency time.Duration) {
	e.turns.WithLabelValues(status).Inc()
	e.turnLatency.WithLabelValues(status).Observe(latency.Seconds())
}

// RecordGenerationFailure counts a generation call that was replaced.
func (e *PrometheusExporter) RecordGenerationFailure() {
	e.generationFailures.Inc()
}

// RecordGeneration records a successful generation call.
func (e *PrometheusExporter) RecordGeneration(model string, latency time.Duration, promptTokens, completionTokens int) {
	e.generationLatency.WithLabelValues(model).Observe(latency.Seconds())
	if promptTokens > 0 {
		e.llmTokens.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		e.llmTokens.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
}

// RecordStage counts the stage estimated for a turn.
func (e *PrometheusExporter) RecordStage(stage string) {
	e.stages.WithLabelValues(stage).Inc()
}

// RecordNeeds counts each detected need category.
func (e *PrometheusExporter) RecordNeeds(types []string) {
	for _, t := range types {
		e.needs.WithLabelValues(t).Inc()
	}
}

// RecordProactiveQuestion counts an appended question.
func (e *PrometheusExporter) RecordProactiveQuestion() {
	e.proactiveQuestions.Inc()
}

// RecordSessionDegraded counts a session store fallback for op ("get" or
// "update").
func (e *PrometheusExporter) RecordSessionDegraded(op string) {
	e.sessionDegraded.WithLabelValues(op).Inc()
}

// RecordSearchFailure counts a failed similarity search.
func (e *PrometheusExporter) RecordSearchFailure() {
	e.searchFailures.Inc()
}

// Handler returns the HTTP handler for the metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// GetRegistry returns the underlying Prometheus registry.
func (e *PrometheusExporter) GetRegistry() *prometheus.Registry {
	return e.registry
}
