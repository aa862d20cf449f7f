// Package factory constructs ai.Provider instances by ai.ProviderKind,
// grounded on createProvider in cmd/kantra-ai/main.go and the
// ProviderPresets map in pkg/provider/interface.go: a provider kind maps
// either to a dedicated adapter package or, for the OpenAI-compatible
// local-server family, to localserver.New with a named preset.
package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/tsanders/codeconcat-ai/pkg/ai"
	"github.com/tsanders/codeconcat-ai/pkg/ai/providers/anthropic"
	"github.com/tsanders/codeconcat-ai/pkg/ai/providers/google"
	"github.com/tsanders/codeconcat-ai/pkg/ai/providers/llamacpp"
	"github.com/tsanders/codeconcat-ai/pkg/ai/providers/localserver"
	"github.com/tsanders/codeconcat-ai/pkg/ai/providers/ollama"
	"github.com/tsanders/codeconcat-ai/pkg/ai/providers/openai"
	"github.com/tsanders/codeconcat-ai/pkg/ai/providers/openrouter"
	"github.com/tsanders/codeconcat-ai/pkg/ai/providers/zhipu"
)

// New constructs the ai.Provider for cfg.Kind. Unknown kinds return an
// error naming every supported kind, matching createProvider's error shape.
func New(cfg ai.ProviderConfig) (ai.Provider, error) {
	switch cfg.Kind {
	case ai.OpenAI:
		return openai.New(cfg)
	case ai.Anthropic:
		return anthropic.New(cfg)
	case ai.OpenRouter:
		return openrouter.New(cfg)
	case ai.Google:
		return google.New(cfg)
	case ai.Zhipu:
		return zhipu.New(cfg)
	case ai.Ollama:
		return ollama.New(cfg)
	case ai.LlamaCpp:
		return llamacpp.New(cfg)
	case ai.LocalServer:
		return localserver.New(localserver.Presets[ai.LocalServer], cfg)
	case ai.VLLM:
		return localserver.New(localserver.Presets[ai.VLLM], cfg)
	case ai.LMStudio:
		return localserver.New(localserver.Presets[ai.LMStudio], cfg)
	case ai.LlamaCppServer:
		return localserver.New(localserver.Presets[ai.LlamaCppServer], cfg)
	default:
		return nil, fmt.Errorf("unknown AI provider: %q (available: openai, anthropic, openrouter, google, zhipu, ollama, llamacpp, local_server, vllm, lmstudio, llamacpp_server)", cfg.Kind)
	}
}

// AvailabilityReport describes whether a provider kind's credentials or
// local endpoint look usable, without performing a full ValidateConnection
// round-trip against every provider (which would be slow and costly for
// cloud providers with no key configured).
type AvailabilityReport struct {
	Kind      ai.ProviderKind
	Available bool
	Detail    string
}

// ListAvailableProviders reports a best-effort availability summary for
// every known provider kind. Cloud providers are reported available iff an
// API key resolves (env var or cfg); Ollama gets a live 1-second liveness
// probe against its /api/tags endpoint, matching the data model's
// documented Ollama-is-special-cased behavior, since it's the one backend
// commonly running on a developer's machine with no explicit configuration
// at all.
func ListAvailableProviders(ctx context.Context, keyLookup func(provider string) (string, bool)) []AvailabilityReport {
	reports := make([]AvailabilityReport, 0, 10)

	cloudProviders := []struct {
		kind ai.ProviderKind
		name string
	}{
		{ai.OpenAI, "openai"},
		{ai.Anthropic, "anthropic"},
		{ai.OpenRouter, "openrouter"},
		{ai.Google, "google"},
		{ai.Zhipu, "zhipu"},
	}
	for _, cp := range cloudProviders {
		_, ok := keyLookup(cp.name)
		detail := "no API key configured"
		if ok {
			detail = "API key configured"
		}
		reports = append(reports, AvailabilityReport{Kind: cp.kind, Available: ok, Detail: detail})
	}

	reports = append(reports, AvailabilityReport{Kind: ai.Ollama, Available: probeOllama(ctx), Detail: "local server liveness probe"})

	for _, kind := range []ai.ProviderKind{ai.LocalServer, ai.VLLM, ai.LMStudio, ai.LlamaCppServer} {
		reports = append(reports, AvailabilityReport{Kind: kind, Available: false, Detail: "configure api_base to use"})
	}
	reports = append(reports, AvailabilityReport{Kind: ai.LlamaCpp, Available: false, Detail: "configure a model path to use"})

	return reports
}

func probeOllama(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	p, err := ollama.New(ai.ProviderConfig{Kind: ai.Ollama, Model: "probe", CacheEnabled: false})
	if err != nil {
		return false
	}
	defer p.Close()
	return p.ValidateConnection(ctx)
}
