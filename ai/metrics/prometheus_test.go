package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/studynotes/ai/intent"
)

func TestExporter_ObservesClassifier(t *testing.T) {
	exporter := NewPrometheusExporter(DefaultConfig())
	c := intent.NewClassifier(
		intent.WithObserver(exporter),
		intent.WithCache(intent.NewResultCache(intent.CacheConfig{Capacity: 10})),
	)

	c.Analyze("Explain this file: app.js", intent.DefaultConfig())
	c.Analyze("Explain this file: app.js", intent.DefaultConfig())
	c.AnalyzeEnhanced("What is a for loop?", intent.DefaultConfig())

	assert.Equal(t, 2.0, testutil.ToFloat64(exporter.classifications.WithLabelValues("file_reference", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(exporter.classifications.WithLabelValues("general_programming", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(exporter.cacheRequests.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(exporter.cacheRequests.WithLabelValues("miss")))

	bad := intent.DefaultConfig()
	bad.ContextThreshold = 5
	c.Analyze("anything", bad)
	assert.Equal(t, 1.0, testutil.ToFloat64(exporter.fallbacks))
}

func TestExporter_DirectObservations(t *testing.T) {
	exporter := NewPrometheusExporter(Config{})

	exporter.ObserveFallback(errors.New("x"))
	exporter.ObserveBudgetExceeded(80*time.Millisecond, 50*time.Millisecond)
	exporter.RecordChatRequest("broad", true, 3, 200*time.Millisecond, true)
	exporter.RecordChatRequest("broad", false, 0, 50*time.Millisecond, false)
	exporter.RecordRetrievalError()
	exporter.RecordLLMCall("deepseek-chat", 120, 40, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(exporter.budgetExceeded))
	assert.Equal(t, 1.0, testutil.ToFloat64(exporter.chatRequests.WithLabelValues("broad", "true", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(exporter.chatRequests.WithLabelValues("broad", "false", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(exporter.retrievalErrors))
	assert.Equal(t, 120.0, testutil.ToFloat64(exporter.llmTokensUsed.WithLabelValues("deepseek-chat", "prompt")))
	assert.Equal(t, 40.0, testutil.ToFloat64(exporter.llmTokensUsed.WithLabelValues("deepseek-chat", "completion")))
}

func TestExporter_Handler(t *testing.T) {
	exporter := NewPrometheusExporter(DefaultConfig())
	exporter.ObserveCache(true)
	exporter.RecordChatRequest("docs_scoped", true, 1, time.Millisecond, true)

	w := httptest.NewRecorder()
	exporter.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "studynotes_intent_cache_requests_total")
	assert.Contains(t, body, "studynotes_chat_requests_total")
	assert.Contains(t, body, "# TYPE studynotes_chat_latency_seconds histogram")
}

func TestExporter_CustomRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	exporter := NewPrometheusExporter(Config{Registry: registry})
	assert.Same(t, registry, exporter.GetRegistry())

	assert.Panics(t, func() {
		NewPrometheusExporter(Config{Registry: registry})
	}, "registering twice on one registry is a programming error")
}
