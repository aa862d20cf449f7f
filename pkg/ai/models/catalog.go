// Package models holds the static model catalog: pricing, context windows,
// and tier metadata for well-known models, ported from
// original_source/codeconcat/ai/models_config.py.
package models

import (
	"strings"

	"github.com/tsanders/codeconcat-ai/pkg/ai"
)

// Config is a single catalog entry.
type Config struct {
	Provider            string
	ModelID             string
	DisplayName         string
	Tier                ai.ModelTier
	ContextWindow       int
	MaxOutput           int
	CostPer1kInput      float64
	CostPer1kOutput     float64
	SupportsFunctions   bool
	SupportsVision      bool
	SupportsStreaming   bool
	TokenizerHint       string
	Notes               string
}

// Catalog maps model identifiers to their Config.
var Catalog = map[string]Config{
	"gpt-5": {
		Provider: "openai", ModelID: "gpt-5", DisplayName: "GPT-5",
		Tier: ai.TierFlagship, ContextWindow: 400000, MaxOutput: 32768,
		CostPer1kInput: 0.01, CostPer1kOutput: 0.03,
		SupportsFunctions: true, SupportsVision: true, SupportsStreaming: true,
		TokenizerHint: "o200k_base", Notes: "Latest flagship OpenAI model",
	},
	"gpt-5-nano-2025-08-07": {
		Provider: "openai", ModelID: "gpt-5-nano-2025-08-07", DisplayName: "GPT-5 Nano",
		Tier: ai.TierBudget, ContextWindow: 128000, MaxOutput: 16384,
		CostPer1kInput: 0.00010, CostPer1kOutput: 0.0004,
		SupportsFunctions: true, SupportsVision: true, SupportsStreaming: true,
		TokenizerHint: "o200k_base", Notes: "Latest budget GPT-5 variant",
	},
	"gpt-4o-mini": {
		Provider: "openai", ModelID: "gpt-4o-mini", DisplayName: "GPT-4o Mini",
		Tier: ai.TierBudget, ContextWindow: 128000, MaxOutput: 16384,
		CostPer1kInput: 0.00015, CostPer1kOutput: 0.0006,
		SupportsFunctions: true, SupportsVision: true, SupportsStreaming: true,
		TokenizerHint: "o200k_base", Notes: "Cost-effective OpenAI model",
	},
	"gpt-4o": {
		Provider: "openai", ModelID: "gpt-4o", DisplayName: "GPT-4o",
		Tier: ai.TierPremium, ContextWindow: 128000, MaxOutput: 16384,
		CostPer1kInput: 0.0025, CostPer1kOutput: 0.01,
		SupportsFunctions: true, SupportsVision: true, SupportsStreaming: true,
		TokenizerHint: "o200k_base", Notes: "Standard GPT-4 optimized model",
	},
	"gpt-3.5-turbo": {
		Provider: "openai", ModelID: "gpt-3.5-turbo", DisplayName: "GPT-3.5 Turbo",
		Tier: ai.TierBudget, ContextWindow: 16385, MaxOutput: 4096,
		CostPer1kInput: 0.0005, CostPer1kOutput: 0.0015,
		SupportsFunctions: true, SupportsStreaming: true,
		TokenizerHint: "cl100k_base", Notes: "Legacy model",
	},
	"claude-3-5-haiku-latest": {
		Provider: "anthropic", ModelID: "claude-3-5-haiku-latest", DisplayName: "Claude 3.5 Haiku",
		Tier: ai.TierBudget, ContextWindow: 200000, MaxOutput: 8192,
		CostPer1kInput: 0.0008, CostPer1kOutput: 0.004,
		SupportsVision: true, SupportsStreaming: true,
		TokenizerHint: "claude", Notes: "Fastest and cheapest Claude model",
	},
	"claude-sonnet-4.1": {
		Provider: "anthropic", ModelID: "claude-sonnet-4.1", DisplayName: "Claude Sonnet 4.1",
		Tier: ai.TierStandard, ContextWindow: 200000, MaxOutput: 8192,
		CostPer1kInput: 0.003, CostPer1kOutput: 0.015,
		SupportsVision: true, SupportsStreaming: true,
		TokenizerHint: "claude", Notes: "Best balance Claude model",
	},
	"claude-3-haiku-20240307": {
		Provider: "anthropic", ModelID: "claude-3-haiku-20240307", DisplayName: "Claude 3 Haiku",
		Tier: ai.TierBudget, ContextWindow: 200000, MaxOutput: 8192,
		CostPer1kInput: 0.00025, CostPer1kOutput: 0.00125,
		SupportsVision: true, SupportsStreaming: true,
		TokenizerHint: "claude", Notes: "Previous generation Haiku",
	},
	"claude-3-opus-20240229": {
		Provider: "anthropic", ModelID: "claude-3-opus-20240229", DisplayName: "Claude 3 Opus",
		Tier: ai.TierFlagship, ContextWindow: 200000, MaxOutput: 4096,
		CostPer1kInput: 0.015, CostPer1kOutput: 0.075,
		SupportsVision: true, SupportsStreaming: true,
		TokenizerHint: "claude", Notes: "Most capable Claude model",
	},
	"google/gemini-2.5-pro": {
		Provider: "google", ModelID: "google/gemini-2.5-pro", DisplayName: "Gemini 2.5 Pro",
		Tier: ai.TierStandard, ContextWindow: 2097152, MaxOutput: 8192,
		CostPer1kInput: 0.00125, CostPer1kOutput: 0.005,
		SupportsFunctions: true, SupportsVision: true, SupportsStreaming: true,
		TokenizerHint: "gemini", Notes: "Latest Gemini Pro, 2M context",
	},
	"google/gemini-2.5-flash": {
		Provider: "google", ModelID: "google/gemini-2.5-flash", DisplayName: "Gemini 2.5 Flash",
		Tier: ai.TierBudget, ContextWindow: 1048576, MaxOutput: 8192,
		CostPer1kInput: 0.000075, CostPer1kOutput: 0.0003,
		SupportsFunctions: true, SupportsVision: true, SupportsStreaming: true,
		TokenizerHint: "gemini", Notes: "Latest Flash model, 1M context",
	},
	"gemini-2.0-flash-exp": {
		Provider: "google", ModelID: "gemini-2.0-flash-exp", DisplayName: "Gemini 2.0 Flash Experimental",
		Tier: ai.TierBudget, ContextWindow: 1048576, MaxOutput: 8192,
		CostPer1kInput: 0, CostPer1kOutput: 0,
		SupportsFunctions: true, SupportsVision: true, SupportsStreaming: true,
		TokenizerHint: "gemini", Notes: "Free experimental model",
	},
	"z-ai/glm-4.5": {
		Provider: "openrouter", ModelID: "z-ai/glm-4.5", DisplayName: "Z-AI GLM-4.5",
		Tier: ai.TierBudget, ContextWindow: 128000, MaxOutput: 4096,
		CostPer1kInput: 0.0004, CostPer1kOutput: 0.0016,
		SupportsStreaming: true, TokenizerHint: "gpt2", Notes: "Strong multilingual model",
	},
	"qwen/qwq-32b-preview": {
		Provider: "openrouter", ModelID: "qwen/qwq-32b-preview", DisplayName: "Qwen QwQ 32B Preview",
		Tier: ai.TierStandard, ContextWindow: 32768, MaxOutput: 4096,
		CostPer1kInput: 0.00018, CostPer1kOutput: 0.00018,
		SupportsStreaming: true, TokenizerHint: "gpt2", Notes: "Reasoning model, strong on logic and math",
	},
	"openrouter/gpt-5": {
		Provider: "openrouter", ModelID: "openai/gpt-5", DisplayName: "GPT-5 (via OpenRouter)",
		Tier: ai.TierFlagship, ContextWindow: 400000, MaxOutput: 32768,
		CostPer1kInput: 0.01, CostPer1kOutput: 0.03,
		SupportsFunctions: true, SupportsVision: true, SupportsStreaming: true,
		TokenizerHint: "o200k_base", Notes: "GPT-5 via OpenRouter",
	},
	"openrouter/claude-sonnet-4.1": {
		Provider: "openrouter", ModelID: "anthropic/claude-sonnet-4.1", DisplayName: "Claude Sonnet 4.1 (via OpenRouter)",
		Tier: ai.TierStandard, ContextWindow: 200000, MaxOutput: 8192,
		CostPer1kInput: 0.003, CostPer1kOutput: 0.015,
		SupportsVision: true, SupportsStreaming: true,
		TokenizerHint: "claude", Notes: "Sonnet 4.1 via OpenRouter",
	},
	"openrouter/deepseek/deepseek-chat": {
		Provider: "openrouter", ModelID: "deepseek/deepseek-chat", DisplayName: "DeepSeek Chat",
		Tier: ai.TierBudget, ContextWindow: 64000, MaxOutput: 4096,
		CostPer1kInput: 0.00014, CostPer1kOutput: 0.00028,
		SupportsStreaming: true, TokenizerHint: "gpt2", Notes: "Very cheap alternative model",
	},
	"openrouter/mistralai/mistral-7b-instruct": {
		Provider: "openrouter", ModelID: "mistralai/mistral-7b-instruct", DisplayName: "Mistral 7B Instruct (Free)",
		Tier: ai.TierBudget, ContextWindow: 32768, MaxOutput: 4096,
		CostPer1kInput: 0, CostPer1kOutput: 0,
		SupportsStreaming: true, TokenizerHint: "gpt2", Notes: "Free model, good for testing",
	},
	"ollama/llama3.2": {
		Provider: "ollama", ModelID: "llama3.2", DisplayName: "Llama 3.2 (Local)",
		Tier: ai.TierBudget, ContextWindow: 128000, MaxOutput: 4096,
		CostPer1kInput: 0, CostPer1kOutput: 0,
		SupportsStreaming: true, TokenizerHint: "llama", Notes: "Local model, no API costs",
	},
}

// DefaultModels lists recommended model ids by use case.
var DefaultModels = map[string][]string{
	"budget": {
		"gpt-5-nano-2025-08-07",
		"claude-3-5-haiku-latest",
		"google/gemini-2.5-flash",
		"z-ai/glm-4.5",
	},
	"standard": {
		"claude-sonnet-4.1",
		"gpt-4o",
		"google/gemini-2.5-pro",
		"qwen/qwq-32b-preview",
	},
	"premium": {
		"gpt-5",
		"claude-3-opus-20240229",
		"google/gemini-2.5-pro",
	},
	"free": {
		"gemini-2.0-flash-exp",
		"openrouter/mistralai/mistral-7b-instruct",
		"ollama/llama3.2",
	},
}

// Get looks up a model by id, also trying an "openrouter/" prefix fallback.
func Get(modelID string) (Config, bool) {
	if c, ok := Catalog[modelID]; ok {
		return c, true
	}
	if c, ok := Catalog["openrouter/"+modelID]; ok {
		return c, true
	}
	return Config{}, false
}

// Cheapest returns the model minimizing cost_in+cost_out, optionally filtered
// by provider and a minimum context window.
func Cheapest(provider string, minContext int) (Config, bool) {
	var best Config
	found := false
	bestCost := 0.0

	for _, c := range Catalog {
		if provider != "" && c.Provider != provider {
			continue
		}
		if c.ContextWindow < minContext {
			continue
		}
		total := c.CostPer1kInput + c.CostPer1kOutput
		if !found || total < bestCost {
			best, bestCost, found = c, total, true
		}
	}
	return best, found
}

// ByTier returns every catalog entry in the given tier.
func ByTier(tier ai.ModelTier) []Config {
	var out []Config
	for _, c := range Catalog {
		if c.Tier == tier {
			out = append(out, c)
		}
	}
	return out
}

// EstimateCost computes cost for a model id. Unknown ids fall back to
// conservative hard-coded per-family rates instead of costing 0, matching
// openai_provider.py/anthropic_provider.py's own fallback-for-unknown-models
// branch.
func EstimateCost(modelID string, inputTokens, outputTokens int) float64 {
	in, out := Rates(modelID)
	return (float64(inputTokens)/1000)*in + (float64(outputTokens)/1000)*out
}

// Rates returns modelID's per-1k-token input/output cost: the catalog rate
// if known, else FallbackRates' per-family estimate.
func Rates(modelID string) (in, out float64) {
	if c, ok := Get(modelID); ok {
		return c.CostPer1kInput, c.CostPer1kOutput
	}
	return FallbackRates(modelID)
}

// FallbackRates returns the hard-coded per-family rate used when modelID
// isn't in Catalog, grounded on openai_provider.py (gpt-4 family vs.
// gpt-3.5-turbo default) and anthropic_provider.py (opus/sonnet/haiku
// default). Families with no such fallback in the original source (Google,
// Ollama, llama.cpp, local servers) cost 0, matching their own providers.
func FallbackRates(modelID string) (in, out float64) {
	lower := strings.ToLower(modelID)
	switch {
	case strings.Contains(lower, "opus"):
		return 0.015, 0.075
	case strings.Contains(lower, "sonnet"):
		return 0.003, 0.015
	case strings.Contains(lower, "claude"):
		return 0.00025, 0.00125
	case strings.Contains(lower, "gpt-4"):
		return 0.03, 0.06
	case strings.Contains(lower, "gpt"):
		return 0.001, 0.002
	default:
		return 0, 0
	}
}
