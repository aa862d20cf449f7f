package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsanders/codeconcat-ai/pkg/ai"
)

func messagesResponse(text string, inputTokens, outputTokens int) map[string]any {
	return map[string]any{
		"id":   "msg-test",
		"type": "message",
		"role": "assistant",
		"content": []map[string]any{
			{"type": "text", "text": text},
		},
		"model":       "claude-3-5-haiku-latest",
		"stop_reason": "end_turn",
		"usage": map[string]any{
			"input_tokens":  inputTokens,
			"output_tokens": outputTokens,
		},
	}
}

func TestSummarizeCode_RetriesOn500ThenSucceeds(t *testing.T) {
	var attempts int32
	var gaps []time.Duration
	var last time.Time

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		if !last.IsZero() {
			gaps = append(gaps, now.Sub(last))
		}
		last = now

		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"server error"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(messagesResponse("does a thing", 100, 20))
	}))
	t.Cleanup(srv.Close)

	cfg := ai.DefaultProviderConfig(ai.Anthropic)
	cfg.APIKey = "sk-ant-test-key-1234567890"
	cfg.APIBase = srv.URL
	cfg.MaxRetries = 3
	cfg.RetryDelay = 10 * time.Millisecond
	cfg.CacheEnabled = false

	p, err := New(cfg)
	require.NoError(t, err)

	result := p.SummarizeCode(context.Background(), "func foo() {}", "go", nil, nil)
	require.Empty(t, result.Error)
	assert.Equal(t, "does a thing", result.Summary)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))

	require.Len(t, gaps, 2)
	assert.InDelta(t, 10*time.Millisecond, gaps[0], float64(20*time.Millisecond))
	assert.InDelta(t, 20*time.Millisecond, gaps[1], float64(25*time.Millisecond))
}

func TestSummarizeCode_ExhaustsRetriesReturnsEnhancedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"rate limited"}}`))
	}))
	t.Cleanup(srv.Close)

	cfg := ai.DefaultProviderConfig(ai.Anthropic)
	cfg.APIKey = "sk-ant-test-key-1234567890"
	cfg.APIBase = srv.URL
	cfg.MaxRetries = 2
	cfg.RetryDelay = time.Millisecond
	cfg.CacheEnabled = false

	p, err := New(cfg)
	require.NoError(t, err)

	result := p.SummarizeFunction(context.Background(), "func foo() {}", "foo", "go", nil)
	require.NotEmpty(t, result.Error)
	assert.Contains(t, result.Error, "rate limit")
}

func TestNew_MissingAPIKeyIsAnError(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := New(ai.DefaultProviderConfig(ai.Anthropic))
	assert.Error(t, err)
}
