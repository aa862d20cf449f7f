// Package zhipu implements the ai.Provider contract against Zhipu's
// OpenAI-compatible GLM chat-completions endpoint, ported from
// original_source/codeconcat/ai/providers/zhipu_provider.py. Rate pacing
// (300ms between requests, 10 concurrent) is reimplemented with
// golang.org/x/time/rate plus a counting semaphore, the same pattern used
// by the Google adapter.
package zhipu

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
	"golang.org/x/time/rate"

	"github.com/tsanders/codeconcat-ai/pkg/ai"
	"github.com/tsanders/codeconcat-ai/pkg/ai/cache"
	"github.com/tsanders/codeconcat-ai/pkg/ai/models"
	"github.com/tsanders/codeconcat-ai/pkg/ai/prompt"
	"github.com/tsanders/codeconcat-ai/pkg/ai/providers/common"
)

var log = logrus.WithField("component", "provider.zhipu")

const (
	defaultAPIBase = "https://open.bigmodel.cn/api/paas/v4"
	defaultModel   = "glm-4-flash"
	maxConcurrent  = 10
	minInterval    = 300 * time.Millisecond
)

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

// Provider implements ai.Provider against Zhipu GLM.
type Provider struct {
	httpClient *http.Client
	cfg        ai.ProviderConfig
	cache      *cache.Cache
	tmpl       *prompt.Templates

	limiter *rate.Limiter
	sem     chan struct{}
}

// New constructs a Zhipu provider. APIKey falls back to ZHIPUAI_API_KEY
// then ZHIPU_API_KEY.
func New(cfg ai.ProviderConfig) (*Provider, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("ZHIPUAI_API_KEY")
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("ZHIPU_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ZHIPUAI_API_KEY (or ZHIPU_API_KEY) environment variable is not set")
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
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CostPer1kInputTokens == 0 {
		if mc, ok := models.Get(cfg.Model); ok {
			cfg.CostPer1kInputTokens = mc.CostPer1kInput
			cfg.CostPer1kOutputTokens = mc.CostPer1kOutput
		}
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
		limiter:    rate.NewLimiter(rate.Every(minInterval), 1),
		sem:        make(chan struct{}, maxConcurrent),
	}, nil
}

// Name implements ai.Provider.
func (p *Provider) Name() ai.ProviderKind { return ai.Zhipu }

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
		cacheKey = cache.GenerateKey(content, string(ai.Zhipu), p.cfg.Model, operation, nil)
		if summary, ok := p.cache.Get(cacheKey); ok {
			return ai.SummarizationResult{Summary: summary, ModelUsed: p.cfg.Model, Provider: string(ai.Zhipu), Cached: true}
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
		enhanced := common.EnhanceAPIError(err, common.ErrorContext{ProviderName: "Zhipu GLM"})
		return ai.SummarizationResult{Error: enhanced.Error(), Provider: string(ai.Zhipu), ModelUsed: p.cfg.Model}
	}

	if len(resp.Choices) == 0 {
		return ai.SummarizationResult{Error: "zhipu: empty response", Provider: string(ai.Zhipu), ModelUsed: p.cfg.Model}
	}

	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	cost := float64(resp.Usage.PromptTokens)/1000*p.cfg.CostPer1kInputTokens + float64(resp.Usage.CompletionTokens)/1000*p.cfg.CostPer1kOutputTokens

	if p.cache != nil {
		p.cache.Set(cacheKey, summary, map[string]any{"tokens": resp.Usage.TotalTokens, "cost": cost})
	}

	return ai.SummarizationResult{
		Summary:      summary,
		TokensUsed:   resp.Usage.TotalTokens,
		CostEstimate: cost,
		ModelUsed:    p.cfg.Model,
		Provider:     string(ai.Zhipu),
	}
}

func (p *Provider) call(ctx context.Context, messages []chatMessage, maxTokens int) (chatResponse, error) {
	select {
	case p.sem <- struct{}{}:
		defer func() { <-p.sem }()
	case <-ctx.Done():
		return chatResponse{}, ctx.Err()
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return chatResponse{}, err
	}

	if maxTokens == 0 {
		maxTokens = p.cfg.MaxTokens
	}

	payload := chatRequest{Model: p.cfg.Model, Messages: messages, Temperature: p.cfg.Temperature, MaxTokens: maxTokens}
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
	req.Header.Set("Content-Type", "application/json")

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
		return chatResponse{}, fmt.Errorf("Zhipu API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var out chatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return chatResponse{}, fmt.Errorf("failed to decode Zhipu response: %w", err)
	}
	return out, nil
}

// ModelInfo implements ai.Provider.
func (p *Provider) ModelInfo() ai.ModelInfo {
	info := ai.ModelInfo{Provider: string(ai.Zhipu), Model: p.cfg.Model, Temperature: p.cfg.Temperature,
		CostPer1kInputTokens: p.cfg.CostPer1kInputTokens, CostPer1kOutputTokens: p.cfg.CostPer1kOutputTokens}
	return info
}

// ValidateConnection implements ai.Provider.
func (p *Provider) ValidateConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := p.call(ctx, []chatMessage{{Role: "user", Content: "ping"}}, 5)
	if err != nil {
		log.WithError(err).Debug("zhipu connection validation failed")
		return false
	}
	return true
}

// Close implements ai.Provider.
func (p *Provider) Close() error { return nil }
