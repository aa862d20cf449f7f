// Package llamacpp implements the ai.Provider contract by managing a
// llama-server subprocess and talking to it over the same OpenAI-compatible
// wire shape pkg/ai/providers/localserver already implements. No Go module
// in the retrieved corpus binds GGUF natively, but two corpus files treat
// "local Llama.cpp inference" as managing or talking to an HTTP server
// rather than loading a model in-process; this adapter follows that
// pattern instead of adding an ungrounded CGo dependency. Ported from
// original_source/codeconcat/ai/providers/llamacpp_provider.py, with
// n_ctx/n_threads/n_gpu_layers/seed reinterpreted as llama-server launch
// flags and the Llama chat template applied before the prompt is sent over
// the wire, since the server itself is a raw completion endpoint.
package llamacpp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
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

var log = logrus.WithField("component", "provider.llamacpp")

const (
	defaultHost        = "127.0.0.1"
	defaultPort        = 8712
	startupTimeout     = 15 * time.Second
	startupPollEvery   = 250 * time.Millisecond
	systemPromptDefault = "You are a helpful assistant that creates concise, informative code summaries."
)

// candidateModelPaths mirrors llamacpp_provider.py's search order when no
// model path is configured.
var candidateModelPaths = []string{
	"./models/llama-2-7b-chat.gguf",
	"~/models/llama-2-7b-chat.gguf",
	"./llama-2-7b-chat.gguf",
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

// Provider implements ai.Provider by managing a llama-server subprocess.
type Provider struct {
	httpClient *http.Client
	cfg        ai.ProviderConfig
	cache      *cache.Cache
	tmpl       *prompt.Templates

	modelPath string
	nCtx      int
	nThreads  int
	nGPULayers int
	seed      int
	host      string
	port      int
	serverBin string

	startOnce sync.Once
	startErr  error
	cmd       *exec.Cmd
}

// New resolves the model path and subprocess launch configuration only; the
// server itself is started lazily on first use by ensureStarted.
func New(cfg ai.ProviderConfig) (*Provider, error) {
	if cfg.Model == "" {
		cfg.Model = os.Getenv("LLAMA_MODEL_PATH")
	}
	if cfg.Model == "" {
		for _, candidate := range candidateModelPaths {
			path := expandHome(candidate)
			if _, err := os.Stat(path); err == nil {
				cfg.Model = path
				break
			}
		}
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("no model file found: set LLAMA_MODEL_PATH or specify a model path")
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

	serverBin := os.Getenv("LLAMA_SERVER_BIN")
	if serverBin == "" {
		serverBin = "llama-server"
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
		modelPath:  cfg.Model,
		nCtx:       intParam(cfg.ExtraParams, "n_ctx", 2048),
		nThreads:   intParam(cfg.ExtraParams, "n_threads", 4),
		nGPULayers: intParam(cfg.ExtraParams, "n_gpu_layers", 0),
		seed:       intParam(cfg.ExtraParams, "seed", -1),
		host:       defaultHost,
		port:       defaultPort,
		serverBin:  serverBin,
	}, nil
}

func intParam(params map[string]any, key string, fallback int) int {
	v, ok := params[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return fallback
	}
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/"))
}

// ensureStarted spawns the llama-server subprocess on first call and blocks
// until it answers on its health endpoint, guarded by sync.Once so
// concurrent first calls don't race to spawn two subprocesses.
func (p *Provider) ensureStarted(ctx context.Context) error {
	p.startOnce.Do(func() {
		p.startErr = p.spawn(ctx)
	})
	return p.startErr
}

func (p *Provider) spawn(ctx context.Context) error {
	if _, err := os.Stat(p.modelPath); err != nil {
		return fmt.Errorf("model file not found: %s", p.modelPath)
	}

	args := []string{
		"--model", p.modelPath,
		"--host", p.host,
		"--port", strconv.Itoa(p.port),
		"--ctx-size", strconv.Itoa(p.nCtx),
		"--threads", strconv.Itoa(p.nThreads),
		"--n-gpu-layers", strconv.Itoa(p.nGPULayers),
	}
	if p.seed >= 0 {
		args = append(args, "--seed", strconv.Itoa(p.seed))
	}

	cmd := exec.Command(p.serverBin, args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", p.serverBin, err)
	}
	p.cmd = cmd
	log.WithFields(logrus.Fields{"model": p.modelPath, "port": p.port}).Info("started llama-server")

	deadline := time.Now().Add(startupTimeout)
	for time.Now().Before(deadline) {
		if p.healthy(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(startupPollEvery):
		}
	}
	return fmt.Errorf("llama-server did not become healthy within %s", startupTimeout)
}

func (p *Provider) healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL()+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (p *Provider) baseURL() string {
	return fmt.Sprintf("http://%s:%d", p.host, p.port)
}

// Name implements ai.Provider.
func (p *Provider) Name() ai.ProviderKind { return ai.LlamaCpp }

// SummarizeCode implements ai.Provider.
func (p *Provider) SummarizeCode(ctx context.Context, code, language string, ctxInfo *ai.CodeContext, maxLength *int) ai.SummarizationResult {
	var filePath string
	var numFunctions, numClasses int
	var imports []string
	if ctxInfo != nil {
		filePath, numFunctions, numClasses, imports = ctxInfo.FilePath, ctxInfo.NumFunctions, ctxInfo.NumClasses, ctxInfo.Imports
	}
	data := prompt.BuildCodeSummaryData(code, language, filePath, numFunctions, numClasses, imports)
	basePrompt, err := p.tmpl.CodeSummary.RenderCodeSummary(data)
	if err != nil {
		return ai.SummarizationResult{Error: err.Error()}
	}

	maxTokens := p.cfg.MaxTokens
	if maxLength != nil {
		maxTokens = *maxLength
	}
	return p.summarize(ctx, "summarize_code", code, llamaPrompt(systemPromptDefault, basePrompt), maxTokens)
}

// SummarizeFunction implements ai.Provider.
func (p *Provider) SummarizeFunction(ctx context.Context, functionCode, functionName, language string, ctxInfo *ai.CodeContext) ai.SummarizationResult {
	filePath := ""
	if ctxInfo != nil {
		filePath = ctxInfo.FilePath
	}
	data := prompt.BuildFunctionSummaryData(functionCode, functionName, language, filePath)
	basePrompt, err := p.tmpl.FunctionSummary.RenderFunctionSummary(data)
	if err != nil {
		return ai.SummarizationResult{Error: err.Error()}
	}
	return p.summarize(ctx, "summarize_function", functionCode,
		llamaPrompt("You are a helpful assistant that creates concise function summaries.", basePrompt), 200)
}

// llamaPrompt wraps a base prompt in the Llama-2 chat template, since
// llama-server's /v1/chat/completions still expects the model's own
// instruction format embedded in message content for base GGUF checkpoints.
func llamaPrompt(systemPrompt, basePrompt string) string {
	return fmt.Sprintf("<s>[INST] <<SYS>>\n%s\n<</SYS>>\n\n%s [/INST]", systemPrompt, basePrompt)
}

func (p *Provider) summarize(ctx context.Context, operation, content, wrappedPrompt string, maxTokens int) ai.SummarizationResult {
	modelName := filepath.Base(p.modelPath)

	var cacheKey string
	if p.cache != nil {
		cacheKey = cache.GenerateKey(content, string(ai.LlamaCpp), modelName, operation, nil)
		if summary, ok := p.cache.Get(cacheKey); ok {
			return ai.SummarizationResult{Summary: summary, ModelUsed: modelName, Provider: string(ai.LlamaCpp), Cached: true}
		}
	}

	if err := p.ensureStarted(ctx); err != nil {
		return ai.SummarizationResult{Error: err.Error(), Provider: string(ai.LlamaCpp), ModelUsed: modelName}
	}

	var resp chatResponse
	err := common.RetryWithBackoff(ctx, p.cfg.MaxRetries, p.cfg.RetryDelay, func(ctx context.Context) error {
		r, err := p.call(ctx, wrappedPrompt, maxTokens)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})

	if err != nil {
		enhanced := common.EnhanceAPIError(err, common.ErrorContext{ProviderName: "llama.cpp"})
		return ai.SummarizationResult{Error: enhanced.Error(), Provider: string(ai.LlamaCpp), ModelUsed: modelName}
	}

	if len(resp.Choices) == 0 {
		return ai.SummarizationResult{Error: "llamacpp: empty response", Provider: string(ai.LlamaCpp), ModelUsed: modelName}
	}

	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	tokensUsed := resp.Usage.TotalTokens
	if tokensUsed == 0 {
		// Some llama-server builds omit usage entirely; fall back to the
		// chars/4 heuristic original_source's _estimate_tokens also uses.
		tokensUsed = tokens.Estimate(wrappedPrompt, "llama") + tokens.Estimate(summary, "llama")
	}

	if p.cache != nil {
		p.cache.Set(cacheKey, summary, map[string]any{"tokens": tokensUsed, "model": modelName})
	}

	return ai.SummarizationResult{
		Summary:    summary,
		TokensUsed: tokensUsed,
		ModelUsed:  modelName,
		Provider:   string(ai.LlamaCpp),
		Metadata: map[string]any{
			"input_tokens":  resp.Usage.PromptTokens,
			"output_tokens": resp.Usage.CompletionTokens,
			"context_size":  p.nCtx,
		},
	}
}

func (p *Provider) call(ctx context.Context, wrappedPrompt string, maxTokens int) (chatResponse, error) {
	if maxTokens == 0 {
		maxTokens = p.cfg.MaxTokens
	}

	payload := chatRequest{
		Model:       filepath.Base(p.modelPath),
		Messages:    []chatMessage{{Role: "user", Content: wrappedPrompt}},
		Temperature: p.cfg.Temperature,
		MaxTokens:   maxTokens,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return chatResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL()+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return chatResponse{}, err
	}
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
		return chatResponse{}, fmt.Errorf("llama-server error (%d): %s", resp.StatusCode, string(respBody))
	}

	var out chatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return chatResponse{}, fmt.Errorf("failed to decode llama-server response: %w", err)
	}
	return out, nil
}

// ModelInfo implements ai.Provider.
func (p *Provider) ModelInfo() ai.ModelInfo {
	return ai.ModelInfo{
		Provider:      string(ai.LlamaCpp),
		Model:         filepath.Base(p.modelPath),
		Temperature:   p.cfg.Temperature,
		ContextWindow: p.nCtx,
		IsLocal:       true,
		Extra: map[string]any{
			"model_path":   p.modelPath,
			"n_threads":    p.nThreads,
			"n_gpu_layers": p.nGPULayers,
			"model_loaded": p.cmd != nil,
		},
	}
}

// ValidateConnection starts the subprocess if needed and checks its health
// endpoint.
func (p *Provider) ValidateConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, startupTimeout+5*time.Second)
	defer cancel()

	if err := p.ensureStarted(ctx); err != nil {
		log.WithError(err).Debug("llamacpp connection validation failed")
		return false
	}
	return p.healthy(ctx)
}

// Close terminates the managed subprocess, if one was started.
func (p *Provider) Close() error {
	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}
