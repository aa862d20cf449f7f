// Package ai defines the provider-agnostic contract for LLM-backed code
// summarization: the provider interface, its configuration, and the result
// and metadata shapes every adapter under pkg/ai/providers/ must produce.
package ai

import (
	"context"
	"time"
)

// ProviderKind identifies one of the supported LLM backends.
type ProviderKind string

const (
	OpenAI          ProviderKind = "openai"
	Anthropic       ProviderKind = "anthropic"
	OpenRouter      ProviderKind = "openrouter"
	Google          ProviderKind = "google"
	Zhipu           ProviderKind = "zhipu"
	Ollama          ProviderKind = "ollama"
	LlamaCpp        ProviderKind = "llamacpp"
	LocalServer     ProviderKind = "local_server"
	VLLM            ProviderKind = "vllm"
	LMStudio        ProviderKind = "lmstudio"
	LlamaCppServer  ProviderKind = "llamacpp_server"
)

// ModelTier is a qualitative cost/capability label used by the model catalog.
type ModelTier string

const (
	TierBudget   ModelTier = "budget"
	TierStandard ModelTier = "standard"
	TierPremium  ModelTier = "premium"
	TierFlagship ModelTier = "flagship"
)

// ProviderConfig configures a single provider instance. It is owned by the
// caller and read-only from the provider's perspective.
type ProviderConfig struct {
	Kind       ProviderKind
	APIKey     string
	APIBase    string
	Model      string
	Temperature float64
	MaxTokens  int
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	CacheEnabled bool
	CacheTTL     time.Duration
	CacheDir     string

	CostPer1kInputTokens  float64
	CostPer1kOutputTokens float64

	CustomHeaders map[string]string
	ExtraParams   map[string]any
}

// DefaultProviderConfig returns a ProviderConfig with the defaults named in
// the data model: temperature 0.3, max_tokens 500, 30s timeout, 3 retries,
// 1s base retry delay, caching on with a 1h TTL.
func DefaultProviderConfig(kind ProviderKind) ProviderConfig {
	return ProviderConfig{
		Kind:         kind,
		Temperature:  0.3,
		MaxTokens:    500,
		Timeout:      30 * time.Second,
		MaxRetries:   3,
		RetryDelay:   time.Second,
		CacheEnabled: true,
		CacheTTL:     time.Hour,
		CustomHeaders: map[string]string{},
		ExtraParams:   map[string]any{},
	}
}

// CodeContext carries optional per-call metadata used to enrich prompts.
type CodeContext struct {
	FilePath     string
	FunctionName string
	Imports      []string
	NumFunctions int
	NumClasses   int
}

// SummarizationResult is the outcome of one summarize_code/summarize_function
// call. Error is non-empty iff Summary is empty — a provider call never
// returns a Go error to its caller; failures are encoded here instead, so
// that a single failed summary never aborts the enclosing batch.
type SummarizationResult struct {
	Summary      string
	TokensUsed   int
	CostEstimate float64
	ModelUsed    string
	Provider     string
	Cached       bool
	Error        string
	Metadata     map[string]any
}

// ModelInfo is the best-effort, never-failing description returned by
// Provider.ModelInfo.
type ModelInfo struct {
	Provider            string
	Model               string
	Temperature         float64
	ContextWindow       int
	MaxOutput           int
	CostPer1kInputTokens  float64
	CostPer1kOutputTokens float64
	IsLocal             bool
	Extra               map[string]any
}

// Provider is the common contract every LLM backend adapter implements. All
// methods may block on I/O but none is safe to call concurrently from
// multiple goroutines against the *same* instance without relying on the
// adapter's own internal synchronization (see each adapter's doc comment).
type Provider interface {
	// Name returns the provider kind this instance implements.
	Name() ProviderKind

	// SummarizeCode generates a whole-file summary. ctxInfo and maxLength are
	// optional (nil is a valid value for both).
	SummarizeCode(ctx context.Context, code, language string, ctxInfo *CodeContext, maxLength *int) SummarizationResult

	// SummarizeFunction generates a summary for a single function, using a
	// stricter max_tokens of 200 (it takes no maxLength argument).
	SummarizeFunction(ctx context.Context, functionCode, functionName, language string, ctxInfo *CodeContext) SummarizationResult

	// ModelInfo describes the configured model. It never fails.
	ModelInfo() ModelInfo

	// ValidateConnection performs a minimal round-trip against the backend.
	// Any error collapses to false.
	ValidateConnection(ctx context.Context) bool

	// Close releases any held resources (HTTP clients, subprocesses).
	Close() error
}
