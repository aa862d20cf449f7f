// Package localserver implements the ai.Provider contract against any
// OpenAI-compatible local server (vLLM, LM Studio, text-generation-webui,
// a managed llama.cpp server), ported from
// original_source/codeconcat/ai/providers/local_server_provider.py. It
// backs the LocalServer, VLLM, LMStudio, and LlamaCppServer provider kinds,
// which differ only in their default base URL and auth env var.
package localserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tsanders/codeconcat-ai/pkg/ai"
	"github.com/tsanders/codeconcat-ai/pkg/ai/cache"
	"github.com/tsanders/codeconcat-ai/pkg/ai/prompt"
	"github.com/tsanders/codeconcat-ai/pkg/ai/providers/common"
	"github.com/tsanders/codeconcat-ai/pkg/ai/tokens"
)

var log = logrus.WithField("component", "provider.localserver")

// Preset bundles a ProviderKind's default base URL, default auth env var,
// and default model, mirroring the teacher's ProviderPresets map.
type Preset struct {
	Kind          ai.ProviderKind
	DefaultAPIBase string
	EnvVarAPIBase  string
	EnvVarAPIKey   string
	DefaultModel   string
}

// Presets covers the four OpenAI-compatible local-server provider kinds.
var Presets = map[ai.ProviderKind]Preset{
	ai.LocalServer: {
		Kind: ai.LocalServer, DefaultAPIBase: "http://localhost:8000/v1",
		EnvVarAPIBase: "LOCAL_LLM_API_BASE", EnvVarAPIKey: "LOCAL_LLM_API_KEY",
		DefaultModel: "local-model",
	},
	ai.VLLM: {
		Kind: ai.VLLM, DefaultAPIBase: "http://localhost:8000/v1",
		EnvVarAPIBase: "VLLM_API_BASE", EnvVarAPIKey: "VLLM_API_KEY",
		DefaultModel: "local-model",
	},
	ai.LMStudio: {
		Kind: ai.LMStudio, DefaultAPIBase: "http://localhost:1234/v1",
		EnvVarAPIBase: "LMSTUDIO_API_BASE", EnvVarAPIKey: "LMSTUDIO_API_KEY",
		DefaultModel: "local-model",
	},
	ai.LlamaCppServer: {
		Kind: ai.LlamaCppServer, DefaultAPIBase: "http://localhost:8080/v1",
		EnvVarAPIBase: "LLAMACPP_SERVER_API_BASE", EnvVarAPIKey: "LLAMACPP_SERVER_API_KEY",
		DefaultModel: "local-model",
	},
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Provider implements ai.Provider against a generic OpenAI-compatible
// local server.
type Provider struct {
	httpClient *http.Client
	cfg        ai.ProviderConfig
	preset     Preset
	cache      *cache.Cache
	tmpl       *prompt.Templates

	mu        sync.Mutex
	lastError error
}

// New constructs a local-server provider for the given preset.
func New(preset Preset, cfg ai.ProviderConfig) (*Provider, error) {
	if cfg.APIBase == "" {
		cfg.APIBase = os.Getenv(preset.EnvVarAPIBase)
	}
	if cfg.APIBase == "" {
		cfg.APIBase = preset.DefaultAPIBase
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(preset.EnvVarAPIKey)
	}
	if cfg.Model == "" {
		cfg.Model = preset.DefaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 500
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.CostPer1kInputTokens = 0
	cfg.CostPer1kOutputTokens = 0

	tmpl, err := prompt.Load()
	if err != nil {
		return nil, err
	}

	var c *cache.Cache
	if cfg.CacheEnabled {
		c = cache.New(cfg.CacheDir, cfg.CacheTTL)
	}

	return &Provider{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		preset:     preset,
		cache:      c,
		tmpl:       tmpl,
	}, nil
}

// Name implements ai.Provider.
func (p *Provider) Name() ai.ProviderKind { return p.preset.Kind }

// LastError returns the most recent request/validation error, resolving the
// spec's Open Question about LocalServerProvider.validate_connection's
// unset last_error: callers that want the detail behind a false
// ValidateConnection can read it here.
func (p *Provider) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastError
}

func (p *Provider) setLastError(err error) {
	p.mu.Lock()
	p.lastError = err
	p.mu.Unlock()
}

// SummarizeCode implements ai.Provider.
func (p *Provider) SummarizeCode(ctx context.Context, code, language string, ctxInfo *ai.CodeContext, maxLength *int) ai.SummarizationResult {
	var filePath string
	var numFunctions, numClasses int
	var imports []string
	if ctxInfo != nil {
		filePath, numFunctions, numClasses, imports = ctxInfo.FilePath, ctxInfo.NumFunctions, ctxInfo.NumClasses, ctxInfo.Imports
	}
	data := prompt.BuildCodeSummaryData(code, language, filePath, numFunctions, numClasses, imports)
	text, err := p.tmpl.CodeSummary.RenderCodeSummary(data)
	if err != nil {
		return ai.SummarizationResult{Error: err.Error()}
	}

	maxTokens := p.cfg.MaxTokens
	if maxLength != nil {
		maxTokens = *maxLength
	}

	messages := []chatMessage{
		{Role: "system", Content: "You are a helpful assistant that creates concise, informative code summaries."},
		{Role: "user", Content: text},
	}
	return p.summarize(ctx, "summarize_code", code, messages, maxTokens)
}

// SummarizeFunction implements ai.Provider.
func (p *Provider) SummarizeFunction(ctx context.Context, functionCode, functionName, language string, ctxInfo *ai.CodeContext) ai.SummarizationResult {
	filePath := ""
	if ctxInfo != nil {
		filePath = ctxInfo.FilePath
	}
	data := prompt.BuildFunctionSummaryData(functionCode, functionName, language, filePath)
	text, err := p.tmpl.FunctionSummary.RenderFunctionSummary(data)
	if err != nil {
		return ai.SummarizationResult{Error: err.Error()}
	}

	messages := []chatMessage{
		{Role: "system", Content: "You are a helpful assistant that creates brief, accurate function summaries."},
		{Role: "user", Content: text},
	}
	return p.summarize(ctx, "summarize_function", functionCode, messages, 200)
}

func (p *Provider) summarize(ctx context.Context, operation, content string, messages []chatMessage, maxTokens int) ai.SummarizationResult {
	var cacheKey string
	if p.cache != nil {
		cacheKey = cache.GenerateKey(content, string(p.preset.Kind), p.cfg.Model, operation, nil)
		if summary, ok := p.cache.Get(cacheKey); ok {
			return ai.SummarizationResult{Summary: summary, ModelUsed: p.cfg.Model, Provider: string(p.preset.Kind), Cached: true}
		}
	}

	var resp chatResponse
	err := common.RetryWithBackoff(ctx, p.cfg.MaxRetries, p.cfg.RetryDelay, func(ctx context.Context) error {
		r, err := p.call(ctx, messages, maxTokens)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})

	if err != nil {
		p.setLastError(err)
		enhanced := common.EnhanceAPIError(err, common.ErrorContext{ProviderName: string(p.preset.Kind)})
		return ai.SummarizationResult{Error: enhanced.Error(), Provider: string(p.preset.Kind), ModelUsed: p.cfg.Model}
	}

	if len(resp.Choices) == 0 {
		return ai.SummarizationResult{Error: "local server: empty response", Provider: string(p.preset.Kind), ModelUsed: p.cfg.Model}
	}

	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	tokensUsed := resp.Usage.TotalTokens
	if tokensUsed == 0 {
		var promptText string
		for _, m := range messages {
			promptText += m.Content
		}
		tokensUsed = tokens.Estimate(promptText, "") + tokens.Estimate(summary, "")
	}

	if p.cache != nil {
		p.cache.Set(cacheKey, summary, map[string]any{"tokens": tokensUsed})
	}

	return ai.SummarizationResult{
		Summary:    summary,
		TokensUsed: tokensUsed,
		ModelUsed:  p.cfg.Model,
		Provider:   string(p.preset.Kind),
	}
}

// call posts to {APIBase}/chat/completions, falling back to a base URL with
// any trailing "/v1" stripped if the first attempt 404s, per
// local_server_provider.py's fallback logic for servers that don't mount
// their OpenAI-compatible routes under /v1.
func (p *Provider) call(ctx context.Context, messages []chatMessage, maxTokens int) (chatResponse, error) {
	resp, err := p.post(ctx, p.cfg.APIBase, messages, maxTokens)
	if err == nil {
		return resp, nil
	}

	if isNotFound(err) && strings.HasSuffix(strings.TrimRight(p.cfg.APIBase, "/"), "/v1") {
		fallbackBase := strings.TrimSuffix(strings.TrimRight(p.cfg.APIBase, "/"), "/v1")
		resp, fallbackErr := p.post(ctx, fallbackBase, messages, maxTokens)
		if fallbackErr == nil {
			return resp, nil
		}
		return chatResponse{}, fallbackErr
	}

	return chatResponse{}, err
}

func (p *Provider) post(ctx context.Context, base string, messages []chatMessage, maxTokens int) (chatResponse, error) {
	if maxTokens == 0 {
		maxTokens = p.cfg.MaxTokens
	}

	payload := chatRequest{Model: p.cfg.Model, Messages: messages, Temperature: p.cfg.Temperature, MaxTokens: maxTokens}
	body, err := json.Marshal(payload)
	if err != nil {
		return chatResponse{}, err
	}

	url := strings.TrimRight(base, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return chatResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}
	for k, v := range p.cfg.CustomHeaders {
		req.Header.Set(k, v)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return chatResponse{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return chatResponse{}, err
	}

	if resp.StatusCode == http.StatusNotFound {
		return chatResponse{}, &notFoundError{status: resp.StatusCode, body: string(respBody)}
	}
	if resp.StatusCode != http.StatusOK {
		return chatResponse{}, fmt.Errorf("local server API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var out chatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return chatResponse{}, fmt.Errorf("failed to decode local server response: %w", err)
	}
	return out, nil
}

type notFoundError struct {
	status int
	body   string
}

func (e *notFoundError) Error() string {
	return fmt.Sprintf("local server API error (%d): %s", e.status, e.body)
}

func isNotFound(err error) bool {
	_, ok := err.(*notFoundError)
	return ok
}

// ModelInfo implements ai.Provider.
func (p *Provider) ModelInfo() ai.ModelInfo {
	return ai.ModelInfo{
		Provider:    string(p.preset.Kind),
		Model:       p.cfg.Model,
		Temperature: p.cfg.Temperature,
		IsLocal:     true,
	}
}

// ValidateConnection tries /v1/models, then /models, then /health, then
// /healthz, then falls back to a minimal completion call, matching
// local_server_provider.py's validate_connection fallback chain.
func (p *Provider) ValidateConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	base := strings.TrimRight(p.cfg.APIBase, "/")
	candidates := []string{base + "/models", base + "/health", base + "/healthz"}
	if !strings.HasSuffix(base, "/v1") {
		candidates = append([]string{base + "/v1/models"}, candidates...)
	}

	for _, url := range candidates {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			continue
		}
		resp, err := p.httpClient.Do(req)
		if err != nil {
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return true
		}
	}

	_, err := p.call(ctx, []chatMessage{{Role: "user", Content: "ping"}}, 5)
	if err != nil {
		p.setLastError(err)
		log.WithError(err).Debug("local server connection validation failed")
		return false
	}
	return true
}

// Close implements ai.Provider.
func (p *Provider) Close() error { return nil }
