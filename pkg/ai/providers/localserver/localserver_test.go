package localserver

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

func TestSummarizeCode_FallsBackWhenV1RouteIs404(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`not found`))
	})
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "does a thing"}},
			},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := ai.DefaultProviderConfig(ai.LocalServer)
	cfg.APIBase = srv.URL + "/v1"
	cfg.CacheEnabled = false

	p, err := New(Presets[ai.LocalServer], cfg)
	require.NoError(t, err)

	result := p.SummarizeCode(context.Background(), "func foo() {}", "go", nil, nil)
	require.Empty(t, result.Error)
	assert.Equal(t, "does a thing", result.Summary)
	assert.Equal(t, 15, result.TokensUsed)
}

func TestSummarizeCode_NoFallbackWhenBaseDoesNotEndInV1(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`not found`))
	}))
	t.Cleanup(srv.Close)

	cfg := ai.DefaultProviderConfig(ai.LocalServer)
	cfg.APIBase = srv.URL
	cfg.CacheEnabled = false
	cfg.MaxRetries = 1
	cfg.RetryDelay = time.Millisecond

	p, err := New(Presets[ai.LocalServer], cfg)
	require.NoError(t, err)

	result := p.SummarizeCode(context.Background(), "func foo() {}", "go", nil, nil)
	require.NotEmpty(t, result.Error)
	assert.NotEmpty(t, p.LastError())
}

func TestSummarizeCode_FallsBackToTokenEstimateWhenUsageIsZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "a short summary"}},
			},
		})
	}))
	t.Cleanup(srv.Close)

	cfg := ai.DefaultProviderConfig(ai.LocalServer)
	cfg.APIBase = srv.URL
	cfg.CacheEnabled = false

	p, err := New(Presets[ai.LocalServer], cfg)
	require.NoError(t, err)

	result := p.SummarizeCode(context.Background(), "func foo() {}", "go", nil, nil)
	require.Empty(t, result.Error)
	assert.Greater(t, result.TokensUsed, 0)
}

func TestNew_UsesPresetDefaultsWhenUnconfigured(t *testing.T) {
	p, err := New(Presets[ai.VLLM], ai.DefaultProviderConfig(ai.VLLM))
	require.NoError(t, err)

	info := p.ModelInfo()
	assert.Equal(t, "local-model", info.Model)
	assert.True(t, info.IsLocal)
}
