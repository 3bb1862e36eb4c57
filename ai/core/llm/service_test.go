package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(nil)
	assert.Error(t, err)

	_, err = NewService(&Config{})
	assert.Error(t, err)

	_, err = NewService(&Config{Provider: "unsupported", Model: "m"})
	assert.Error(t, err, "unknown provider needs an explicit base URL")

	svc, err := NewService(&Config{Provider: "unsupported", Model: "m", BaseURL: "http://localhost:1"})
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestNewService_ProviderDefaults(t *testing.T) {
	for provider := range providerBaseURLs {
		svc, err := NewService(&Config{Provider: provider, APIKey: "test-key"})
		require.NoError(t, err, provider)

		s := svc.(*service)
		assert.Equal(t, 2048, s.maxTokens)
		assert.Equal(t, float32(0.7), s.temperature)
	}
}

func TestService_Complete(t *testing.T) {
	var received struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cmpl-1",
			"object": "chat.completion",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "A closure captures variables."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17}
		}`))
	}))
	defer srv.Close()

	svc, err := NewService(&Config{Provider: "openai", Model: "gpt-test", APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	text, err := svc.Complete(context.Background(), "What is a closure?")
	require.NoError(t, err)
	assert.Equal(t, "A closure captures variables.", text)
	assert.Equal(t, "gpt-test", received.Model)
	require.Len(t, received.Messages, 1)
	assert.Equal(t, "user", received.Messages[0].Role)

	_, stats, err := svc.Chat(context.Background(), FormatMessages("be brief", "hi"))
	require.NoError(t, err)
	assert.Equal(t, 17, stats.TotalTokens)
	require.Len(t, received.Messages, 2)
	assert.Equal(t, "system", received.Messages[0].Role)
}

func TestService_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "x", "choices": []}`))
	}))
	defer srv.Close()

	svc, err := NewService(&Config{Provider: "openai", APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), "hi")
	assert.Error(t, err)
}

func TestConvertMessages(t *testing.T) {
	out := convertMessages([]Message{
		{Role: "system", Content: "s"},
		{Role: "assistant", Content: "a"},
		{Role: "other", Content: "o"},
	})
	require.Len(t, out, 3)
	assert.Equal(t, "system", out[0].Role)
	assert.Equal(t, "assistant", out[1].Role)
	assert.Equal(t, "user", out[2].Role)
}
