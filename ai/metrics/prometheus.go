// Package metrics exports classifier and chat pipeline metrics to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hrygo/studynotes/ai/intent"
)

const namespace = "studynotes"

// PrometheusExporter records metrics for the classifier and the chat pipeline.
// It implements intent.Observer.
type PrometheusExporter struct {
	registry *prometheus.Registry

	// Classifier metrics
	classifications *prometheus.CounterVec
	confidence      *prometheus.HistogramVec
	analysisLatency *prometheus.HistogramVec
	fallbacks       prometheus.Counter
	budgetExceeded  prometheus.Counter
	cacheRequests   *prometheus.CounterVec

	// Chat metrics
	chatRequests    *prometheus.CounterVec
	chatLatency     *prometheus.HistogramVec
	retrievalErrors prometheus.Counter
	snippets        prometheus.Histogram

	// LLM metrics
	llmTokensUsed *prometheus.CounterVec
	llmLatency    *prometheus.HistogramVec
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for chat and LLM latency histograms (in seconds)
	LatencyBuckets []float64

	// Buckets for classifier latency histograms (in seconds)
	AnalysisBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets:  []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		AnalysisBuckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.02, 0.05, 0.1},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	defaults := DefaultConfig()
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = defaults.LatencyBuckets
	}
	if len(cfg.AnalysisBuckets) == 0 {
		cfg.AnalysisBuckets = defaults.AnalysisBuckets
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.classifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intent",
			Name:      "classifications_total",
			Help:      "Total number of query classifications",
		},
		[]string{"category", "requires_context"},
	)

	e.confidence = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "intent",
			Name:      "confidence",
			Help:      "Context-need confidence of classified queries",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		},
		[]string{"category"},
	)

	e.analysisLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "intent",
			Name:      "analysis_seconds",
			Help:      "Classification latency in seconds",
			Buckets:   cfg.AnalysisBuckets,
		},
		[]string{"mode"},
	)

	e.fallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intent",
			Name:      "fallbacks_total",
			Help:      "Classifications that faulted and returned the fail-safe verdict",
		},
	)

	e.budgetExceeded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intent",
			Name:      "budget_exceeded_total",
			Help:      "Classifications slower than the configured analysis budget",
		},
	)

	e.cacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intent",
			Name:      "cache_requests_total",
			Help:      "Classification cache lookups",
		},
		[]string{"result"},
	)

	e.chatRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Total number of chat requests",
		},
		[]string{"strategy", "used_context", "status"},
	)

	e.chatLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "latency_seconds",
			Help:      "Chat request latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"used_context"},
	)

	e.retrievalErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "retrieval_errors_total",
			Help:      "Retrievals that failed and were answered without context",
		},
	)

	e.snippets = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "snippets",
			Help:      "Snippets placed into the prompt",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
	)

	e.llmTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	e.llmLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "latency_seconds",
			Help:      "LLM call latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"model"},
	)

	registry.MustRegister(
		e.classifications,
		e.confidence,
		e.analysisLatency,
		e.fallbacks,
		e.budgetExceeded,
		e.cacheRequests,
		e.chatRequests,
		e.chatLatency,
		e.retrievalErrors,
		e.snippets,
		e.llmTokensUsed,
		e.llmLatency,
	)

	return e
}

var _ intent.Observer = (*PrometheusExporter)(nil)

// ObserveClassification records a completed classification.
func (e *PrometheusExporter) ObserveClassification(result *intent.Result, elapsed time.Duration) {
	category := result.Category.String()
	e.classifications.WithLabelValues(category, strconv.FormatBool(result.RequiresContext)).Inc()
	e.confidence.WithLabelValues(category).Observe(result.Confidence)

	mode := "basic"
	if result.Enhanced {
		mode = "enhanced"
	}
	e.analysisLatency.WithLabelValues(mode).Observe(elapsed.Seconds())
}

func (e *PrometheusExporter) ObserveFallback(error) {
	e.fallbacks.Inc()
}

func (e *PrometheusExporter) ObserveBudgetExceeded(time.Duration, time.Duration) {
	e.budgetExceeded.Inc()
}

func (e *PrometheusExporter) ObserveCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	e.cacheRequests.WithLabelValues(result).Inc()
}

// RecordChatRequest records a finished chat request.
func (e *PrometheusExporter) RecordChatRequest(strategy string, usedContext bool, snippets int, latency time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	used := strconv.FormatBool(usedContext)
	e.chatRequests.WithLabelValues(strategy, used, status).Inc()
	e.chatLatency.WithLabelValues(used).Observe(latency.Seconds())
	if success {
		e.snippets.Observe(float64(snippets))
	}
}

// RecordRetrievalError records a retrieval that degraded to a context-free answer.
func (e *PrometheusExporter) RecordRetrievalError() {
	e.retrievalErrors.Inc()
}

// RecordLLMCall records token usage and latency of one generation call.
func (e *PrometheusExporter) RecordLLMCall(model string, promptTokens, completionTokens int, latency time.Duration) {
	e.llmTokensUsed.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	e.llmTokensUsed.WithLabelValues(model, "completion").Add(float64(completionTokens))
	e.llmLatency.WithLabelValues(model).Observe(latency.Seconds())
}

// Handler returns the /metrics HTTP handler.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// GetRegistry returns the underlying registry.
func (e *PrometheusExporter) GetRegistry() *prometheus.Registry {
	return e.registry
}
