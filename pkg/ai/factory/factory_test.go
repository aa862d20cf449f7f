package factory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsanders/codeconcat-ai/pkg/ai"
)

func TestNew_ConstructsEveryKnownKind(t *testing.T) {
	cases := []struct {
		kind ai.ProviderKind
		env  map[string]string
	}{
		{ai.OpenAI, map[string]string{"OPENAI_API_KEY": "test-key"}},
		{ai.Anthropic, map[string]string{"ANTHROPIC_API_KEY": "test-key"}},
		{ai.OpenRouter, map[string]string{"OPENROUTER_API_KEY": "test-key"}},
		{ai.Google, map[string]string{"GOOGLE_API_KEY": "test-key"}},
		{ai.Zhipu, map[string]string{"ZHIPUAI_API_KEY": "test-key"}},
		{ai.LocalServer, nil},
		{ai.VLLM, nil},
		{ai.LMStudio, nil},
		{ai.LlamaCppServer, nil},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(string(tc.kind), func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			cfg := ai.DefaultProviderConfig(tc.kind)
			cfg.APIKey = ""
			for _, v := range tc.env {
				cfg.APIKey = v
			}
			p, err := New(cfg)
			require.NoError(t, err)
			assert.NotNil(t, p)
		})
	}
}

func TestNew_UnknownKindListsAllSupportedKinds(t *testing.T) {
	_, err := New(ai.ProviderConfig{Kind: ai.ProviderKind("bogus")})
	require.Error(t, err)
	for _, name := range []string{"openai", "anthropic", "openrouter", "google", "zhipu", "ollama", "llamacpp", "local_server", "vllm", "lmstudio", "llamacpp_server"} {
		assert.Contains(t, err.Error(), name)
	}
}

func TestListAvailableProviders_ReportsKeyConfiguredCloudProviders(t *testing.T) {
	keys := map[string]string{"openai": "sk-test"}
	lookup := func(provider string) (string, bool) {
		v, ok := keys[provider]
		return v, ok
	}

	reports := ListAvailableProviders(context.Background(), lookup)

	var openaiReport, anthropicReport *AvailabilityReport
	for i := range reports {
		switch reports[i].Kind {
		case ai.OpenAI:
			openaiReport = &reports[i]
		case ai.Anthropic:
			anthropicReport = &reports[i]
		}
	}
	require.NotNil(t, openaiReport)
	require.NotNil(t, anthropicReport)
	assert.True(t, openaiReport.Available)
	assert.False(t, anthropicReport.Available)
}

func TestListAvailableProviders_LocalServerKindsAlwaysUnavailable(t *testing.T) {
	reports := ListAvailableProviders(context.Background(), func(string) (string, bool) { return "", false })

	for _, kind := range []ai.ProviderKind{ai.LocalServer, ai.VLLM, ai.LMStudio, ai.LlamaCppServer, ai.LlamaCpp} {
		found := false
		for _, r := range reports {
			if r.Kind == kind {
				found = true
				assert.False(t, r.Available)
				assert.NotEmpty(t, r.Detail)
			}
		}
		assert.True(t, found, "expected a report for %s", kind)
	}
}

func TestProbeOllama_FalseWhenNothingListening(t *testing.T) {
	t.Setenv("OLLAMA_API_BASE", "http://127.0.0.1:1")
	assert.False(t, probeOllama(context.Background()))
}

func TestProbeOllama_TrueWhenServerRespondsToTagsEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/api/tags") {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"models":[{"name":"llama3"}]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	t.Setenv("OLLAMA_API_BASE", srv.URL)
	assert.True(t, probeOllama(context.Background()))
}
