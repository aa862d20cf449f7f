package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsanders/codeconcat-ai/pkg/ai"
)

func TestGet_DirectHit(t *testing.T) {
	c, ok := Get("gpt-4o-mini")
	assert.True(t, ok)
	assert.Equal(t, "openai", c.Provider)
}

func TestGet_OpenRouterPrefixFallback(t *testing.T) {
	c, ok := Get("deepseek/deepseek-chat")
	assert.True(t, ok)
	assert.Equal(t, "openrouter", c.Provider)
}

func TestGet_Unknown(t *testing.T) {
	_, ok := Get("no-such-model")
	assert.False(t, ok)
}

func TestCheapest_FiltersByProviderAndContext(t *testing.T) {
	c, ok := Cheapest("openai", 0)
	assert.True(t, ok)
	assert.Equal(t, "openai", c.Provider)

	_, ok = Cheapest("openai", 100_000_000)
	assert.False(t, ok, "no openai model has a context window that large")
}

func TestCheapest_PicksLowestCombinedCost(t *testing.T) {
	c, ok := Cheapest("anthropic", 0)
	assert.True(t, ok)
	assert.Equal(t, "claude-3-haiku-20240307", c.ModelID)
}

func TestByTier_ReturnsOnlyMatchingTier(t *testing.T) {
	budget := ByTier(ai.TierBudget)
	assert.NotEmpty(t, budget)
	for _, c := range budget {
		assert.Equal(t, ai.TierBudget, c.Tier)
	}

	for _, c := range ByTier(ai.TierFlagship) {
		assert.Equal(t, ai.TierFlagship, c.Tier)
	}
}

func TestEstimateCost_KnownModel(t *testing.T) {
	got := EstimateCost("gpt-4o-mini", 1000, 1000)
	assert.InDelta(t, 0.00015+0.0006, got, 1e-9)
}

func TestEstimateCost_UnknownGPT4FamilyModelUsesFallbackRate(t *testing.T) {
	got := EstimateCost("gpt-4-turbo-preview", 1000, 1000)
	assert.InDelta(t, 0.03+0.06, got, 1e-9)
}

func TestEstimateCost_UnknownGPTModelDefaultsToGPT35Rate(t *testing.T) {
	got := EstimateCost("gpt-unreleased", 1000, 1000)
	assert.InDelta(t, 0.001+0.002, got, 1e-9)
}

func TestEstimateCost_UnknownClaudeOpusModelUsesFallbackRate(t *testing.T) {
	got := EstimateCost("claude-opus-4.5", 1000, 1000)
	assert.InDelta(t, 0.015+0.075, got, 1e-9)
}

func TestEstimateCost_UnknownClaudeSonnetModelUsesFallbackRate(t *testing.T) {
	got := EstimateCost("claude-sonnet-4.5", 1000, 1000)
	assert.InDelta(t, 0.003+0.015, got, 1e-9)
}

func TestEstimateCost_UnknownClaudeModelDefaultsToHaikuRate(t *testing.T) {
	got := EstimateCost("claude-future-haiku", 1000, 1000)
	assert.InDelta(t, 0.00025+0.00125, got, 1e-9)
}

func TestEstimateCost_UnknownNonOpenAIAnthropicModelIsZero(t *testing.T) {
	assert.Equal(t, 0.0, EstimateCost("no-such-model", 1000, 1000))
}

func TestEstimateCost_FreeModelIsZero(t *testing.T) {
	assert.Equal(t, 0.0, EstimateCost("gemini-2.0-flash-exp", 5000, 5000))
}
