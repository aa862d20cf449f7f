// Package anthropic adapts github.com/anthropics/anthropic-sdk-go to the
// ai.Provider contract, grounded on the teacher's pkg/provider/claude
// adapter's use of the Messages API (anthropic.F(...) field wrappers,
// anthropic.NewUserMessage/NewTextBlock), generalized here to split the
// CO-STAR prompt into a system instruction plus a user message instead of
// sending it as one undifferentiated block.
package anthropic

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"

	"github.com/tsanders/codeconcat-ai/pkg/ai"
	"github.com/tsanders/codeconcat-ai/pkg/ai/cache"
	"github.com/tsanders/codeconcat-ai/pkg/ai/models"
	"github.com/tsanders/codeconcat-ai/pkg/ai/prompt"
	"github.com/tsanders/codeconcat-ai/pkg/ai/providers/common"
)

var log = logrus.WithField("component", "provider.anthropic")

const (
	defaultModel      = "claude-3-5-haiku-latest"
	systemInstruction = "You are an expert software engineer who writes clear, structured code summaries. Follow the CO-STAR sections given in the prompt exactly and return only the summary text."
)

// Provider implements ai.Provider against the Anthropic Messages API.
type Provider struct {
	client anthropic.Client
	cfg    ai.ProviderConfig
	cache  *cache.Cache
	tmpl   *prompt.Templates
}

// New constructs an Anthropic provider. APIKey falls back to
// ANTHROPIC_API_KEY.
func New(cfg ai.ProviderConfig) (*Provider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set\n\n" +
			"To use Anthropic:\n" +
			"  1. Get an API key from: https://console.anthropic.com/settings/keys\n" +
			"  2. Export it as an environment variable:\n" +
			"     export ANTHROPIC_API_KEY=sk-ant-...")
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

	// The SDK retries transient errors on its own by default; RetryWithBackoff
	// is this adapter's single source of retry behavior, so the SDK's is
	// disabled to avoid the two compounding.
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if cfg.APIBase != "" {
		opts = append(opts, option.WithBaseURL(cfg.APIBase))
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
		client: anthropic.NewClient(opts...),
		cfg:    cfg,
		cache:  c,
		tmpl:   tmpl,
	}, nil
}

// Name implements ai.Provider.
func (p *Provider) Name() ai.ProviderKind { return ai.Anthropic }

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
		cacheKey = cache.GenerateKey(content, string(ai.Anthropic), p.cfg.Model, operation, nil)
		if summary, ok := p.cache.Get(cacheKey); ok {
			return ai.SummarizationResult{Summary: summary, ModelUsed: p.cfg.Model, Provider: string(ai.Anthropic), Cached: true}
		}
	}

	var message *anthropic.Message
	err := common.RetryWithBackoff(ctx, p.cfg.MaxRetries, p.cfg.RetryDelay, func(ctx context.Context) error {
		msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:       anthropic.F(p.cfg.Model),
			MaxTokens:   anthropic.F(int64(maxTokens)),
			Temperature: anthropic.F(p.cfg.Temperature),
			System: anthropic.F([]anthropic.TextBlockParam{
				anthropic.NewTextBlock(systemInstruction),
			}),
			Messages: anthropic.F([]anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(promptText)),
			}),
		})
		if err != nil {
			return err
		}
		message = msg
		return nil
	})

	if err != nil {
		enhanced := common.EnhanceAPIError(err, common.ErrorContext{
			ProviderName:  "Anthropic",
			APIKeysURL:    "https://console.anthropic.com/settings/keys",
			StatusPageURL: "https://status.anthropic.com",
		})
		return ai.SummarizationResult{Error: enhanced.Error(), Provider: string(ai.Anthropic), ModelUsed: p.cfg.Model}
	}

	if len(message.Content) == 0 {
		return ai.SummarizationResult{Error: "anthropic: empty response", Provider: string(ai.Anthropic), ModelUsed: p.cfg.Model}
	}

	summary := message.Content[0].Text
	tokensUsed := int(message.Usage.InputTokens + message.Usage.OutputTokens)
	cost := float64(message.Usage.InputTokens)/1000*p.cfg.CostPer1kInputTokens + float64(message.Usage.OutputTokens)/1000*p.cfg.CostPer1kOutputTokens

	if p.cache != nil {
		p.cache.Set(cacheKey, summary, map[string]any{"tokens_used": tokensUsed})
	}

	return ai.SummarizationResult{
		Summary:      summary,
		TokensUsed:   tokensUsed,
		CostEstimate: cost,
		ModelUsed:    p.cfg.Model,
		Provider:     string(ai.Anthropic),
	}
}

// ModelInfo implements ai.Provider.
func (p *Provider) ModelInfo() ai.ModelInfo {
	info := ai.ModelInfo{
		Provider:              string(ai.Anthropic),
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

// ValidateConnection implements ai.Provider with a minimal message call.
func (p *Provider) ValidateConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.F(p.cfg.Model),
		MaxTokens: anthropic.F(int64(5)),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		}),
	})
	if err != nil {
		log.WithError(err).Debug("anthropic connection validation failed")
		return false
	}
	return true
}

// Close implements ai.Provider.
func (p *Provider) Close() error { return nil }
