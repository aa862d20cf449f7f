// Package ollama implements the ai.Provider contract against a local Ollama
// server's /api/generate and /api/tags endpoints, ported from
// original_source/codeconcat/ai/providers/ollama_provider.py: model
// auto-discovery against a prioritized list of code-oriented models, and
// zero-cost local generation.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tsanders/codeconcat-ai/pkg/ai"
	"github.com/tsanders/codeconcat-ai/pkg/ai/cache"
	"github.com/tsanders/codeconcat-ai/pkg/ai/prompt"
	"github.com/tsanders/codeconcat-ai/pkg/ai/providers/common"
)

var log = logrus.WithField("component", "provider.ollama")

const defaultAPIBase = "http://localhost:11434"

// preferredModels lists code-oriented models in priority order for
// auto-discovery, matched as a case-insensitive substring of an installed
// model's name.
var preferredModels = []string{
	"deepseek-coder-v2",
	"deepseek-coder",
	"codellama",
	"codellama:latest",
	"codegemma",
	"codegemma:latest",
	"starcoder2",
	"starcoder",
	"wizardcoder",
	"wizardlm",
	"phind-codellama",
	"phind",
	"mistral",
	"mistral:latest",
	"llama3.2",
	"llama3",
	"llama2",
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

type generateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]any `json:"options"`
}

type generateResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// Provider implements ai.Provider against Ollama.
type Provider struct {
	httpClient *http.Client
	cfg        ai.ProviderConfig
	cache      *cache.Cache
	tmpl       *prompt.Templates
}

// New constructs an Ollama provider, auto-discovering a model when cfg.Model
// is unset. APIBase falls back to OLLAMA_API_BASE then localhost:11434.
func New(cfg ai.ProviderConfig) (*Provider, error) {
	if cfg.APIBase == "" {
		cfg.APIBase = os.Getenv("OLLAMA_API_BASE")
	}
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
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

	httpClient := &http.Client{Timeout: cfg.Timeout}

	if cfg.Model == "" {
		model, err := autoDiscoverModel(cfg.APIBase)
		if err != nil || model == "" {
			model = "codellama"
		}
		cfg.Model = model
	}

	tmpl, err := prompt.Load()
	if err != nil {
		return nil, err
	}

	var c *cache.Cache
	if cfg.CacheEnabled {
		c = cache.New(cfg.CacheDir, cfg.CacheTTL)
	}

	return &Provider{httpClient: httpClient, cfg: cfg, cache: c, tmpl: tmpl}, nil
}

// autoDiscoverModel queries /api/tags and picks the highest-priority
// installed model, falling back to the first available one. Any failure
// returns ("", err) and the caller silently falls back to a hardcoded
// default, matching the Python auto-discovery's silent-failure behavior.
func autoDiscoverModel(apiBase string) (string, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequest(http.MethodGet, strings.TrimRight(apiBase, "/")+"/api/tags", nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama tags request failed with status %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return "", err
	}
	if len(tags.Models) == 0 {
		return "", fmt.Errorf("no models installed")
	}

	for _, preferred := range preferredModels {
		for _, m := range tags.Models {
			if strings.Contains(strings.ToLower(m.Name), preferred) {
				log.WithField("model", m.Name).Info("auto-discovered ollama model")
				return m.Name, nil
			}
		}
	}

	log.WithField("model", tags.Models[0].Name).Info("using first available ollama model")
	return tags.Models[0].Name, nil
}

// Name implements ai.Provider.
func (p *Provider) Name() ai.ProviderKind { return ai.Ollama }

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
	return p.summarize(ctx, "summarize_code", code, text, maxTokens)
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
	return p.summarize(ctx, "summarize_function", functionCode, text, 200)
}

func (p *Provider) summarize(ctx context.Context, operation, content, promptText string, maxTokens int) ai.SummarizationResult {
	var cacheKey string
	if p.cache != nil {
		cacheKey = cache.GenerateKey(content, string(ai.Ollama), p.cfg.Model, operation, nil)
		if summary, ok := p.cache.Get(cacheKey); ok {
			return ai.SummarizationResult{Summary: summary, ModelUsed: p.cfg.Model, Provider: string(ai.Ollama), Cached: true}
		}
	}

	var resp generateResponse
	err := common.RetryWithBackoff(ctx, p.cfg.MaxRetries, p.cfg.RetryDelay, func(ctx context.Context) error {
		r, err := p.call(ctx, promptText, maxTokens)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})

	if err != nil {
		enhanced := common.EnhanceAPIError(err, common.ErrorContext{ProviderName: "Ollama"})
		return ai.SummarizationResult{Error: enhanced.Error(), Provider: string(ai.Ollama), ModelUsed: p.cfg.Model}
	}

	summary := strings.TrimSpace(resp.Response)
	tokensUsed := resp.PromptEvalCount + resp.EvalCount

	if p.cache != nil {
		p.cache.Set(cacheKey, summary, map[string]any{"tokens_used": tokensUsed})
	}

	return ai.SummarizationResult{
		Summary:    summary,
		TokensUsed: tokensUsed,
		ModelUsed:  p.cfg.Model,
		Provider:   string(ai.Ollama),
	}
}

func (p *Provider) call(ctx context.Context, promptText string, maxTokens int) (generateResponse, error) {
	if maxTokens == 0 {
		maxTokens = p.cfg.MaxTokens
	}

	options := map[string]any{
		"temperature": p.cfg.Temperature,
		"num_predict": maxTokens,
	}
	for k, v := range p.cfg.ExtraParams {
		options[k] = v
	}

	payload := generateRequest{Model: p.cfg.Model, Prompt: promptText, Stream: false, Options: options}
	body, err := json.Marshal(payload)
	if err != nil {
		return generateResponse{}, err
	}

	url := strings.TrimRight(p.cfg.APIBase, "/") + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return generateResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range p.cfg.CustomHeaders {
		req.Header.Set(k, v)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return generateResponse{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return generateResponse{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return generateResponse{}, fmt.Errorf("Ollama API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var out generateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return generateResponse{}, fmt.Errorf("failed to decode Ollama response: %w", err)
	}
	return out, nil
}

// ModelInfo implements ai.Provider.
func (p *Provider) ModelInfo() ai.ModelInfo {
	return ai.ModelInfo{
		Provider:    string(ai.Ollama),
		Model:       p.cfg.Model,
		Temperature: p.cfg.Temperature,
		IsLocal:     true,
	}
}

// ValidateConnection implements ai.Provider by requesting /api/tags and
// reporting true when it answers 200; it does not check whether the
// configured model is among the installed ones.
func (p *Provider) ValidateConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(p.cfg.APIBase, "/")+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		log.WithError(err).Debug("ollama connection validation failed")
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close implements ai.Provider.
func (p *Provider) Close() error { return nil }
