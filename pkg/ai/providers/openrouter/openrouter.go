// Package openrouter implements the ai.Provider contract against OpenRouter's
// OpenAI-compatible chat-completions endpoint, ported from
// original_source/codeconcat/ai/providers/openrouter_provider.py: same
// request/response JSON shape as OpenAI, plus the HTTP-Referer/X-Title
// headers OpenRouter requires and a usage.total_cost passthrough that falls
// back to the catalog estimate when the API doesn't report one.
package openrouter

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
	"github.com/tsanders/codeconcat-ai/pkg/ai/models"
	"github.com/tsanders/codeconcat-ai/pkg/ai/prompt"
	"github.com/tsanders/codeconcat-ai/pkg/ai/providers/common"
)

var log = logrus.WithField("component", "provider.openrouter")

const (
	defaultAPIBase = "https://openrouter.ai/api/v1"
	defaultModel   = "mistralai/mistral-7b-instruct"
	refererHeader  = "https://github.com/codeconcat"
	titleHeader    = "CodeConcat AI Summarization"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string         `json:"model"`
	Messages    []chatMessage  `json:"messages"`
	Temperature float64        `json:"temperature"`
	MaxTokens   int            `json:"max_tokens"`
}

type usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	TotalCost        float64 `json:"total_cost"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage usage `json:"usage"`
}

// Provider implements ai.Provider against OpenRouter.
type Provider struct {
	httpClient *http.Client
	cfg        ai.ProviderConfig
	cache      *cache.Cache
	tmpl       *prompt.Templates
}

// New constructs an OpenRouter provider. APIKey falls back to
// OPENROUTER_API_KEY.
func New(cfg ai.ProviderConfig) (*Provider, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY environment variable is not set\n\n" +
			"Get an API key from: https://openrouter.ai/keys")
	}
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 500
	}
	if cfg.CostPer1kInputTokens == 0 {
		cfg.CostPer1kInputTokens = 0.0001
		cfg.CostPer1kOutputTokens = 0.0001
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

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
		cache:      c,
		tmpl:       tmpl,
	}, nil
}

// Name implements ai.Provider.
func (p *Provider) Name() ai.ProviderKind { return ai.OpenRouter }

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
		cacheKey = cache.GenerateKey(content, string(ai.OpenRouter), p.cfg.Model, operation, nil)
		if summary, ok := p.cache.Get(cacheKey); ok {
			return ai.SummarizationResult{Summary: summary, ModelUsed: p.cfg.Model, Provider: string(ai.OpenRouter), Cached: true}
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
		enhanced := common.EnhanceAPIError(err, common.ErrorContext{
			ProviderName: "OpenRouter",
			APIKeysURL:   "https://openrouter.ai/keys",
		})
		return ai.SummarizationResult{Error: enhanced.Error(), Provider: string(ai.OpenRouter), ModelUsed: p.cfg.Model}
	}

	if len(resp.Choices) == 0 {
		return ai.SummarizationResult{Error: "openrouter: empty response", Provider: string(ai.OpenRouter), ModelUsed: p.cfg.Model}
	}

	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	cost := resp.Usage.TotalCost
	if cost == 0 {
		cost = float64(resp.Usage.PromptTokens)/1000*p.cfg.CostPer1kInputTokens + float64(resp.Usage.CompletionTokens)/1000*p.cfg.CostPer1kOutputTokens
	}

	actualModel := resp.Model
	if actualModel == "" {
		actualModel = p.cfg.Model
	}

	if p.cache != nil {
		p.cache.Set(cacheKey, summary, map[string]any{"tokens": resp.Usage.TotalTokens, "cost": cost, "model": actualModel})
	}

	return ai.SummarizationResult{
		Summary:      summary,
		TokensUsed:   resp.Usage.TotalTokens,
		CostEstimate: cost,
		ModelUsed:    actualModel,
		Provider:     string(ai.OpenRouter),
		Metadata: map[string]any{
			"input_tokens":  resp.Usage.PromptTokens,
			"output_tokens": resp.Usage.CompletionTokens,
			"actual_model":  resp.Model,
		},
	}
}

func (p *Provider) call(ctx context.Context, messages []chatMessage, maxTokens int) (chatResponse, error) {
	if maxTokens == 0 {
		maxTokens = p.cfg.MaxTokens
	}

	payload := chatRequest{
		Model:       p.cfg.Model,
		Messages:    messages,
		Temperature: p.cfg.Temperature,
		MaxTokens:   maxTokens,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return chatResponse{}, err
	}

	url := strings.TrimRight(p.cfg.APIBase, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return chatResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("HTTP-Referer", refererHeader)
	req.Header.Set("X-Title", titleHeader)
	req.Header.Set("Content-Type", "application/json")
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

	if resp.StatusCode != http.StatusOK {
		return chatResponse{}, fmt.Errorf("OpenRouter API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var out chatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return chatResponse{}, fmt.Errorf("failed to decode OpenRouter response: %w", err)
	}
	return out, nil
}

// ModelInfo implements ai.Provider.
func (p *Provider) ModelInfo() ai.ModelInfo {
	info := ai.ModelInfo{Provider: string(ai.OpenRouter), Model: p.cfg.Model, Temperature: p.cfg.Temperature}
	if mc, ok := models.Get(p.cfg.Model); ok {
		info.ContextWindow = mc.ContextWindow
		info.MaxOutput = mc.MaxOutput
		info.CostPer1kInputTokens = mc.CostPer1kInput
		info.CostPer1kOutputTokens = mc.CostPer1kOutput
	} else {
		info.CostPer1kInputTokens = p.cfg.CostPer1kInputTokens
		info.CostPer1kOutputTokens = p.cfg.CostPer1kOutputTokens
	}
	return info
}

// ValidateConnection implements ai.Provider.
func (p *Provider) ValidateConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := p.call(ctx, []chatMessage{{Role: "user", Content: "ping"}}, 5)
	if err != nil {
		log.WithError(err).Debug("openrouter connection validation failed")
		return false
	}
	return true
}

// Close implements ai.Provider.
func (p *Provider) Close() error { return nil }
