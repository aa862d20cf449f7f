package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsanders/codeconcat-ai/pkg/ai"
)

func chatCompletionResponse(content string, promptTokens, completionTokens int) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"total_tokens":      promptTokens + completionTokens,
		},
	}
}

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestSummarizeCode_HappyPathThenCacheHit(t *testing.T) {
	calls := 0
	var gotMessages []map[string]any
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if msgs, ok := body["messages"].([]any); ok {
			for _, m := range msgs {
				gotMessages = append(gotMessages, m.(map[string]any))
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletionResponse("does a thing", 120, 8))
	})

	cfg := ai.DefaultProviderConfig(ai.OpenAI)
	cfg.APIKey = "sk-test-key-1234567890"
	cfg.APIBase = srv.URL
	cfg.Model = "gpt-4o-mini"
	cfg.CacheEnabled = true
	cfg.CacheDir = t.TempDir()
	cfg.CacheTTL = time.Hour

	p, err := New(cfg)
	require.NoError(t, err)

	result := p.SummarizeCode(context.Background(), "func foo() {}", "go", &ai.CodeContext{FilePath: "foo.go"}, nil)
	require.Empty(t, result.Error)
	assert.Equal(t, "does a thing", result.Summary)
	assert.False(t, result.Cached)
	assert.InDelta(t, 120.0/1000*0.00015+8.0/1000*0.0006, result.CostEstimate, 1e-9)
	assert.Equal(t, 1, calls)
	require.Len(t, gotMessages, 2, "expected a system message plus the user prompt")
	assert.Equal(t, "system", gotMessages[0]["role"])
	assert.NotEmpty(t, gotMessages[0]["content"])
	assert.Equal(t, "user", gotMessages[1]["role"])

	cached := p.SummarizeCode(context.Background(), "func foo() {}", "go", &ai.CodeContext{FilePath: "foo.go"}, nil)
	require.Empty(t, cached.Error)
	assert.Equal(t, "does a thing", cached.Summary)
	assert.True(t, cached.Cached)
	assert.Equal(t, 1, calls, "second call must be served from cache, not hit the network again")
}

func TestNew_MissingAPIKeyIsAnError(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := New(ai.DefaultProviderConfig(ai.OpenAI))
	assert.Error(t, err)
}

func TestSummarizeCode_APIErrorIsEnhanced(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "invalid api key"}}`))
	})

	cfg := ai.DefaultProviderConfig(ai.OpenAI)
	cfg.APIKey = "sk-test-key-1234567890"
	cfg.APIBase = srv.URL
	cfg.MaxRetries = 1
	cfg.RetryDelay = time.Millisecond

	p, err := New(cfg)
	require.NoError(t, err)

	result := p.SummarizeCode(context.Background(), "code", "go", nil, nil)
	require.NotEmpty(t, result.Error)
	assert.Contains(t, result.Error, "OPENAI_API_KEY")
}

func TestSummarizeCode_UnknownModelUsesFallbackRate(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletionResponse("does a thing", 100, 100))
	})

	cfg := ai.DefaultProviderConfig(ai.OpenAI)
	cfg.APIKey = "sk-test-key-1234567890"
	cfg.APIBase = srv.URL
	cfg.Model = "gpt-4-some-future-variant"
	cfg.CacheEnabled = false

	p, err := New(cfg)
	require.NoError(t, err)

	result := p.SummarizeCode(context.Background(), "func foo() {}", "go", nil, nil)
	require.Empty(t, result.Error)
	assert.InDelta(t, 100.0/1000*0.03+100.0/1000*0.06, result.CostEstimate, 1e-9)
}

func TestModelInfo_PopulatesFromCatalog(t *testing.T) {
	cfg := ai.DefaultProviderConfig(ai.OpenAI)
	cfg.APIKey = "sk-test-key-1234567890"
	cfg.Model = "gpt-4o-mini"

	p, err := New(cfg)
	require.NoError(t, err)

	info := p.ModelInfo()
	assert.Equal(t, "gpt-4o-mini", info.Model)
	assert.Greater(t, info.ContextWindow, 0)
}
