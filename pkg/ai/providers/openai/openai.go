// Package openai adapts github.com/sashabaranov/go-openai to the ai.Provider
// contract, grounded on the teacher's pkg/provider/openai adapter but
// generalized to summarization instead of violation fixing.
package openai

import (
	"context"
	"fmt"
	"os"
	"time"

	openaisdk "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/tsanders/codeconcat-ai/pkg/ai"
	"github.com/tsanders/codeconcat-ai/pkg/ai/cache"
	"github.com/tsanders/codeconcat-ai/pkg/ai/models"
	"github.com/tsanders/codeconcat-ai/pkg/ai/prompt"
	"github.com/tsanders/codeconcat-ai/pkg/ai/providers/common"
)

var log = logrus.WithField("component", "provider.openai")

const defaultModel = openaisdk.GPT4oMini

const (
	codeSystemPrompt     = "You are a helpful assistant that creates concise, informative code summaries."
	functionSystemPrompt = "You are a helpful assistant that creates brief, accurate function summaries."
)

// Provider implements ai.Provider against the OpenAI chat-completions API.
type Provider struct {
	client *openaisdk.Client
	cfg    ai.ProviderConfig
	cache  *cache.Cache
	tmpl   *prompt.Templates
}

// New constructs an OpenAI provider. APIKey falls back to OPENAI_API_KEY.
func New(cfg ai.ProviderConfig) (*Provider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set\n\n" +
			"To use OpenAI:\n" +
			"  1. Get an API key from: https://platform.openai.com/api-keys\n" +
			"  2. Export it as an environment variable:\n" +
			"     export OPENAI_API_KEY=sk-...")
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
		cfg.CostPer1kInputTokens, cfg.CostPer1kOutputTokens = models.Rates(cfg.Model)
	}

	clientConfig := openaisdk.DefaultConfig(apiKey)
	if cfg.APIBase != "" {
		clientConfig.BaseURL = cfg.APIBase
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
		client: openaisdk.NewClientWithConfig(clientConfig),
		cfg:    cfg,
		cache:  c,
		tmpl:   tmpl,
	}, nil
}

// Name implements ai.Provider.
func (p *Provider) Name() ai.ProviderKind { return ai.OpenAI }

// SummarizeCode implements ai.Provider.
func (p *Provider) SummarizeCode(ctx context.Context, code, language string, ctxInfo *ai.CodeContext, maxLength *int) ai.SummarizationResult {
	data := buildCodeSummaryData(code, language, ctxInfo)
	text, err := p.tmpl.CodeSummary.RenderCodeSummary(data)
	if err != nil {
		return ai.SummarizationResult{Error: err.Error()}
	}

	maxTokens := p.cfg.MaxTokens
	if maxLength != nil {
		maxTokens = *maxLength
	}

	return p.summarize(ctx, "summarize_code", code, codeSystemPrompt, text, maxTokens)
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

	return p.summarize(ctx, "summarize_function", functionCode, functionSystemPrompt, text, 200)
}

func (p *Provider) summarize(ctx context.Context, operation, content, systemPrompt, promptText string, maxTokens int) ai.SummarizationResult {
	var cacheKey string
	if p.cache != nil {
		cacheKey = cache.GenerateKey(content, string(ai.OpenAI), p.cfg.Model, operation, nil)
		if summary, ok := p.cache.Get(cacheKey); ok {
			return ai.SummarizationResult{
				Summary:   summary,
				ModelUsed: p.cfg.Model,
				Provider:  string(ai.OpenAI),
				Cached:    true,
			}
		}
	}

	var resp openaisdk.ChatCompletionResponse
	err := common.RetryWithBackoff(ctx, p.cfg.MaxRetries, p.cfg.RetryDelay, func(ctx context.Context) error {
		r, err := p.client.CreateChatCompletion(ctx, openaisdk.ChatCompletionRequest{
			Model:       p.cfg.Model,
			Temperature: float32(p.cfg.Temperature),
			MaxTokens:   maxTokens,
			Messages: []openaisdk.ChatCompletionMessage{
				{Role: openaisdk.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openaisdk.ChatMessageRoleUser, Content: promptText},
			},
		})
		if err != nil {
			return err
		}
		resp = r
		return nil
	})

	if err != nil {
		enhanced := common.EnhanceAPIError(err, common.ErrorContext{
			ProviderName: "OpenAI",
			APIKeysURL:   "https://platform.openai.com/api-keys",
			BillingURL:   "https://platform.openai.com/account/billing",
			StatusPageURL: "https://status.openai.com",
		})
		return ai.SummarizationResult{Error: enhanced.Error(), Provider: string(ai.OpenAI), ModelUsed: p.cfg.Model}
	}

	if len(resp.Choices) == 0 {
		return ai.SummarizationResult{Error: "openai: empty response", Provider: string(ai.OpenAI), ModelUsed: p.cfg.Model}
	}

	summary := resp.Choices[0].Message.Content
	tokensUsed := resp.Usage.TotalTokens
	cost := float64(resp.Usage.PromptTokens)/1000*p.cfg.CostPer1kInputTokens + float64(resp.Usage.CompletionTokens)/1000*p.cfg.CostPer1kOutputTokens

	if p.cache != nil {
		p.cache.Set(cacheKey, summary, map[string]any{"tokens_used": tokensUsed})
	}

	return ai.SummarizationResult{
		Summary:      summary,
		TokensUsed:   tokensUsed,
		CostEstimate: cost,
		ModelUsed:    p.cfg.Model,
		Provider:     string(ai.OpenAI),
	}
}

func buildCodeSummaryData(code, language string, ctxInfo *ai.CodeContext) prompt.CodeSummaryData {
	if ctxInfo == nil {
		return prompt.BuildCodeSummaryData(code, language, "", 0, 0, nil)
	}
	return prompt.BuildCodeSummaryData(code, language, ctxInfo.FilePath, ctxInfo.NumFunctions, ctxInfo.NumClasses, ctxInfo.Imports)
}

// ModelInfo implements ai.Provider.
func (p *Provider) ModelInfo() ai.ModelInfo {
	info := ai.ModelInfo{
		Provider:              string(ai.OpenAI),
		Model:                 p.cfg.Model,
		Temperature:           p.cfg.Temperature,
		CostPer1kInputTokens:  p.cfg.CostPer1kInputTokens,
		CostPer1kOutputTokens: p.cfg.CostPer1kOutputTokens,
	}
	if mc, ok := models.Get(p.cfg.Model); ok {
		info.ContextWindow = mc.ContextWindow
		info.MaxOutput = mc.MaxOutput
	}
	return info
}

// ValidateConnection implements ai.Provider with a minimal completion call.
func (p *Provider) ValidateConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := p.client.CreateChatCompletion(ctx, openaisdk.ChatCompletionRequest{
		Model:     p.cfg.Model,
		MaxTokens: 5,
		Messages: []openaisdk.ChatCompletionMessage{
			{Role: openaisdk.ChatMessageRoleUser, Content: "ping"},
		},
	})
	if err != nil {
		log.WithError(err).Debug("openai connection validation failed")
		return false
	}
	return true
}

// Close implements ai.Provider. The OpenAI SDK client holds no resources
// that need releasing.
func (p *Provider) Close() error { return nil }
