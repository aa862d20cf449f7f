package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultProviderConfig_MatchesDocumentedDefaults(t *testing.T) {
	cfg := DefaultProviderConfig(OpenAI)

	assert.Equal(t, OpenAI, cfg.Kind)
	assert.Equal(t, 0.3, cfg.Temperature)
	assert.Equal(t, 500, cfg.MaxTokens)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryDelay)
	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
}

func TestDefaultProviderConfig_InitializesMapsNonNil(t *testing.T) {
	cfg := DefaultProviderConfig(Anthropic)

	assert.NotNil(t, cfg.CustomHeaders)
	assert.NotNil(t, cfg.ExtraParams)
	assert.Empty(t, cfg.CustomHeaders)
	assert.Empty(t, cfg.ExtraParams)
}

func TestDefaultProviderConfig_PreservesRequestedKind(t *testing.T) {
	for _, kind := range []ProviderKind{OpenAI, Anthropic, OpenRouter, Google, Zhipu, Ollama, LlamaCpp, LocalServer, VLLM, LMStudio, LlamaCppServer} {
		assert.Equal(t, kind, DefaultProviderConfig(kind).Kind)
	}
}

func TestDefaultProviderConfig_MapsAreIndependentPerCall(t *testing.T) {
	a := DefaultProviderConfig(OpenAI)
	b := DefaultProviderConfig(OpenAI)

	a.CustomHeaders["X-Test"] = "1"
	assert.Empty(t, b.CustomHeaders, "mutating one config's maps must not leak into another's defaults")
}
