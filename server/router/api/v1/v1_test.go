package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/studynotes/ai/core/retrieval"
	"github.com/hrygo/studynotes/ai/intent"
	"github.com/hrygo/studynotes/ai/rag"
	"github.com/hrygo/studynotes/internal/profile"
)

type stubRetriever struct {
	err error
}

func (s *stubRetriever) Retrieve(_ context.Context, opts *retrieval.Options) ([]*retrieval.Snippet, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []*retrieval.Snippet{{ID: "n1", Path: "notes/app.md", Content: "app notes", Score: 0.8}}, nil
}

func newTestAPI(t *testing.T, withPipeline bool) (*echo.Echo, *intent.ConfigStore) {
	t.Helper()
	prof := &profile.Profile{ChatRateLimit: 100, ChatRateBurst: 100}
	configs := intent.NewConfigStore(intent.DefaultConfig())
	classifier := intent.NewClassifier()

	var pipeline *rag.Pipeline
	if withPipeline {
		pipeline = rag.NewPipeline(classifier, configs, &stubRetriever{}, rag.Config{})
	}

	e := echo.New()
	NewAPIV1Service(prof, classifier, configs, pipeline).RegisterRoutes(e)
	return e, configs
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeIntent(t *testing.T) {
	e, _ := newTestAPI(t, false)

	rec := doJSON(e, http.MethodPost, "/api/v1/intent/analyze", `{"query": "Explain this file: app.js"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result intent.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, intent.CategoryFileReference, result.Category)
	assert.True(t, result.RequiresContext)
	assert.InDelta(t, 0.8, result.Confidence, 1e-9)
	assert.False(t, result.Enhanced)
}

func TestAnalyzeIntent_OverridesAndEnhanced(t *testing.T) {
	e, _ := newTestAPI(t, false)

	rec := doJSON(e, http.MethodPost, "/api/v1/intent/analyze",
		`{"query": "Tell me something interesting about databases", "enhanced": true,
		  "config": {"context_threshold": 0.3, "enabled": true}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result intent.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Enhanced)
	assert.True(t, result.RequiresContext)

	rec = doJSON(e, http.MethodPost, "/api/v1/intent/analyze", `{"query": "x", "config": {"context_threshold": 7}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(e, http.MethodPost, "/api/v1/intent/analyze", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIntentConfig(t *testing.T) {
	e, configs := newTestAPI(t, false)

	rec := doJSON(e, http.MethodGet, "/api/v1/intent/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp IntentConfigResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, intent.DefaultConfig(), resp.Config)
	assert.Equal(t, intent.PresetNames(), resp.Presets)

	rec = doJSON(e, http.MethodPut, "/api/v1/intent/config", `{"preset": "performance"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, intent.PresetPerformance, configs.PresetName())

	rec = doJSON(e, http.MethodPut, "/api/v1/intent/config", `{"config": {"context_threshold": 0.42, "enabled": true}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.42, configs.Snapshot().ContextThreshold)
	assert.Empty(t, configs.PresetName())

	for _, body := range []string{
		`{}`,
		`{"preset": "nope"}`,
		`{"config": {"context_threshold": -1}}`,
		`{"preset": "accuracy", "config": {"context_threshold": 0.5}}`,
	} {
		rec = doJSON(e, http.MethodPut, "/api/v1/intent/config", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Equal(t, 0.42, configs.Snapshot().ContextThreshold, "rejected updates leave config unchanged")

	rec = doJSON(e, http.MethodGet, "/api/v1/intent/presets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"accuracy"`)
}

func TestChat(t *testing.T) {
	e, _ := newTestAPI(t, true)

	rec := doJSON(e, http.MethodPost, "/api/v1/chat", `{"query": "Explain this file: app.js"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var answer rag.Answer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &answer))
	assert.NotEmpty(t, answer.RequestID)
	assert.True(t, answer.UsedContext)
	require.Len(t, answer.Snippets, 1)
	assert.Equal(t, "notes/app.md", answer.Snippets[0].Path)

	rec = doJSON(e, http.MethodPost, "/api/v1/chat", `{"query": "  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_NotConfigured(t *testing.T) {
	e, _ := newTestAPI(t, false)
	rec := doJSON(e, http.MethodPost, "/api/v1/chat", `{"query": "hi"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	assert.Nil(t, newRateLimiter(RateLimitConfig{}))
	assert.True(t, (*rateLimiter)(nil).allow("x"))

	limiter := newRateLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 2})
	now := time.Unix(1000, 0)
	limiter.now = func() time.Time { return now }
	limiter.lastCleanup = now

	assert.True(t, limiter.allow("a"))
	assert.True(t, limiter.allow("a"))
	assert.False(t, limiter.allow("a"), "burst exhausted")
	assert.True(t, limiter.allow("b"), "clients are limited independently")

	now = now.Add(time.Second)
	assert.True(t, limiter.allow("a"), "tokens refill over time")

	now = now.Add(time.Hour)
	limiter.allow("c")
	assert.Len(t, limiter.entries, 1, "idle entries are swept")
}

func TestChat_RateLimited(t *testing.T) {
	prof := &profile.Profile{ChatRateLimit: 0.001, ChatRateBurst: 1}
	configs := intent.NewConfigStore(intent.DefaultConfig())
	classifier := intent.NewClassifier()
	pipeline := rag.NewPipeline(classifier, configs, &stubRetriever{}, rag.Config{})

	e := echo.New()
	NewAPIV1Service(prof, classifier, configs, pipeline).RegisterRoutes(e)

	assert.Equal(t, http.StatusOK, doJSON(e, http.MethodPost, "/api/v1/chat", `{"query": "What is a for loop?"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, doJSON(e, http.MethodPost, "/api/v1/chat", `{"query": "What is a for loop?"}`).Code)
}

func TestIntentCache(t *testing.T) {
	e, _ := newTestAPI(t, false)
	assert.Equal(t, http.StatusNotFound, doJSON(e, http.MethodGet, "/api/v1/intent/cache", "").Code)

	configs := intent.NewConfigStore(intent.DefaultConfig())
	classifier := intent.NewClassifier(intent.WithCache(intent.NewResultCache(intent.CacheConfig{Capacity: 10})))
	e = echo.New()
	NewAPIV1Service(&profile.Profile{}, classifier, configs, nil).RegisterRoutes(e)

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, doJSON(e, http.MethodPost, "/api/v1/intent/analyze", `{"query": "Explain this function"}`).Code)
	}

	rec := doJSON(e, http.MethodGet, "/api/v1/intent/cache", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats intent.CacheStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Size)

	assert.Equal(t, http.StatusNoContent, doJSON(e, http.MethodDelete, "/api/v1/intent/cache", "").Code)
	assert.Equal(t, 0, classifier.Cache().Len())
}
