// Package google implements the ai.Provider contract against the Gemini
// generateContent REST endpoint, ported from
// original_source/codeconcat/ai/providers/google_provider.py. No Go SDK for
// the Gemini API appears anywhere in the retrieved corpus, so this adapter
// talks to the REST endpoint directly with net/http rather than adding an
// ungrounded third-party client; rate pacing (500ms between requests, 5
// concurrent) is reimplemented idiomatically with golang.org/x/time/rate
// plus a counting semaphore in place of the Python asyncio.Lock/Semaphore
// pair.
package google

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

var log = logrus.WithField("component", "provider.google")

const (
	defaultModel   = "gemini-2.0-flash"
	defaultAPIBase = "https://generativelanguage.googleapis.com/v1beta"
	maxConcurrent  = 5
	minInterval    = 500 * time.Millisecond

	systemInstruction = "You are an expert software engineer who writes clear, structured code summaries. Follow the CO-STAR sections given in the prompt exactly and return only the summary text."
)

type generateRequest struct {
	Contents []content `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// Provider implements ai.Provider against Gemini.
type Provider struct {
	httpClient *http.Client
	cfg        ai.ProviderConfig
	cache      *cache.Cache
	tmpl       *prompt.Templates

	limiter *rate.Limiter
	sem     chan struct{}
}

// New constructs a Google provider. APIKey falls back to GOOGLE_API_KEY then
// GEMINI_API_KEY.
func New(cfg ai.ProviderConfig) (*Provider, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GOOGLE_API_KEY")
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY (or GEMINI_API_KEY) environment variable is not set\n\n" +
			"Get an API key from: https://aistudio.google.com/app/apikey")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
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
		limiter:    rate.NewLimiter(rate.Every(minInterval), 1),
		sem:        make(chan struct{}, maxConcurrent),
	}, nil
}

// Name implements ai.Provider.
func (p *Provider) Name() ai.ProviderKind { return ai.Google }

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

func (p *Provider) summarize(ctx context.Context, operation, contentStr, promptText string, maxTokens int) ai.SummarizationResult {
	var cacheKey string
	if p.cache != nil {
		cacheKey = cache.GenerateKey(contentStr, string(ai.Google), p.cfg.Model, operation, nil)
		if summary, ok := p.cache.Get(cacheKey); ok {
			return ai.SummarizationResult{Summary: summary, ModelUsed: p.cfg.Model, Provider: string(ai.Google), Cached: true}
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
		enhanced := common.EnhanceAPIError(err, common.ErrorContext{
			ProviderName: "Google Gemini",
			APIKeysURL:   "https://aistudio.google.com/app/apikey",
		})
		return ai.SummarizationResult{Error: enhanced.Error(), Provider: string(ai.Google), ModelUsed: p.cfg.Model}
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return ai.SummarizationResult{Error: "google: empty response", Provider: string(ai.Google), ModelUsed: p.cfg.Model}
	}

	summary := strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text)
	tokensUsed := resp.UsageMetadata.TotalTokenCount
	cost := models.EstimateCost(p.cfg.Model, resp.UsageMetadata.PromptTokenCount, resp.UsageMetadata.CandidatesTokenCount)

	if p.cache != nil {
		p.cache.Set(cacheKey, summary, map[string]any{"tokens_used": tokensUsed})
	}

	return ai.SummarizationResult{
		Summary:      summary,
		TokensUsed:   tokensUsed,
		CostEstimate: cost,
		ModelUsed:    p.cfg.Model,
		Provider:     string(ai.Google),
	}
}

// call acquires the concurrency semaphore and the rate limiter before
// issuing the HTTP request, pacing requests at minInterval apart across at
// most maxConcurrent in-flight calls.
func (p *Provider) call(ctx context.Context, promptText string, maxTokens int) (generateResponse, error) {
	select {
	case p.sem <- struct{}{}:
		defer func() { <-p.sem }()
	case <-ctx.Done():
		return generateResponse{}, ctx.Err()
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return generateResponse{}, err
	}

	if maxTokens == 0 {
		maxTokens = p.cfg.MaxTokens
	}

	fullPrompt := systemInstruction + "\n\n" + promptText

	payload := generateRequest{
		Contents: []content{{Parts: []part{{Text: fullPrompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     p.cfg.Temperature,
			MaxOutputTokens: maxTokens,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return generateResponse{}, err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", strings.TrimRight(p.cfg.APIBase, "/"), p.cfg.Model, p.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return generateResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

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
		return generateResponse{}, fmt.Errorf("Google Gemini API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var out generateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return generateResponse{}, fmt.Errorf("failed to decode Gemini response: %w", err)
	}
	return out, nil
}

// ModelInfo implements ai.Provider.
func (p *Provider) ModelInfo() ai.ModelInfo {
	info := ai.ModelInfo{Provider: string(ai.Google), Model: p.cfg.Model, Temperature: p.cfg.Temperature}
	if mc, ok := models.Get(p.cfg.Model); ok {
		info.ContextWindow = mc.ContextWindow
		info.MaxOutput = mc.MaxOutput
		info.CostPer1kInputTokens = mc.CostPer1kInput
		info.CostPer1kOutputTokens = mc.CostPer1kOutput
	}
	return info
}

// ValidateConnection implements ai.Provider with a minimal generation call.
func (p *Provider) ValidateConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := p.call(ctx, "ping", 10)
	if err != nil {
		log.WithError(err).Debug("google connection validation failed")
		return false
	}
	return true
}

// Close implements ai.Provider.
func (p *Provider) Close() error { return nil }
