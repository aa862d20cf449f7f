// Package keys implements the credential store described in SPEC_FULL.md
// §4.4: environment variables, OS keyring, and an encrypted file, ported
// from original_source/codeconcat/ai/key_manager.py's APIKeyManager. The
// fourth Python strategy, CONFIG_FILE, is referenced nowhere in that file's
// dispatch logic and is not implemented here.
package keys

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tsanders/codeconcat-ai/pkg/ai"
	"github.com/tsanders/codeconcat-ai/pkg/ai/factory"
)

var log = logrus.WithField("component", "keys")

// Strategy is the storage method an APIKeyManager persists to.
type Strategy string

const (
	StrategyEnvironment   Strategy = "environment"
	StrategyKeyring       Strategy = "keyring"
	StrategyEncryptedFile Strategy = "encrypted_file"
)

// envVars maps a provider name to the environment variables that may hold
// its key, checked in order. Ollama has no entry: it needs no API key.
var envVars = map[string][]string{
	"openai":          {"OPENAI_API_KEY"},
	"anthropic":       {"ANTHROPIC_API_KEY"},
	"openrouter":      {"OPENROUTER_API_KEY"},
	"google":          {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
	"zhipu":           {"ZHIPUAI_API_KEY", "ZHIPU_API_KEY"},
	"local_server":    {"LOCAL_LLM_API_KEY"},
	"vllm":            {"VLLM_API_KEY"},
	"lmstudio":        {"LMSTUDIO_API_KEY"},
	"llamacpp_server": {"LLAMACPP_SERVER_API_KEY"},
}

// validators holds provider-specific API key prefix checks. A provider
// absent from this map falls back to the generic len>=20 rule.
var validators = map[string]func(string) bool{
	"openai":     func(k string) bool { return strings.HasPrefix(k, "sk-") || strings.HasPrefix(k, "sess-") },
	"anthropic":  func(k string) bool { return strings.HasPrefix(k, "sk-ant-") },
	"openrouter": func(k string) bool { return strings.HasPrefix(k, "sk-or-") },
}

// Manager manages API keys for AI providers, mirroring APIKeyManager.
type Manager struct {
	Strategy Strategy
	ConfigDir string

	enc *encryptedStore

	mu   sync.Mutex
	cache map[string]string
}

// NewManager creates a Manager rooted at configDir (typically
// ~/.codeconcat), using strategy as the persistence tier for Set/Delete and
// as a fallback lookup tier for Get after environment variables.
func NewManager(strategy Strategy, configDir string) *Manager {
	return &Manager{
		Strategy:  strategy,
		ConfigDir: configDir,
		enc:       newEncryptedStore(configDir),
		cache:     make(map[string]string),
	}
}

// ValidateAPIKey checks an API key's format for the named provider: at
// least 10 characters always, a provider-specific prefix when known,
// otherwise at least 20 characters.
func ValidateAPIKey(provider, apiKey string) bool {
	if len(apiKey) < 10 {
		return false
	}
	if v, ok := validators[provider]; ok {
		return v(apiKey)
	}
	return len(apiKey) >= 20
}

// GetKey resolves provider's API key: cache, then environment, then the
// configured persistence tier. Ollama and other keyless providers simply
// never resolve a key, which is not an error condition.
func (m *Manager) GetKey(provider string) (string, bool) {
	m.mu.Lock()
	if k, ok := m.cache[provider]; ok {
		m.mu.Unlock()
		return k, true
	}
	m.mu.Unlock()

	for _, envVar := range envVars[provider] {
		if k := os.Getenv(envVar); k != "" {
			m.store(provider, k)
			return k, true
		}
	}

	switch m.Strategy {
	case StrategyEncryptedFile:
		if k, ok := m.enc.get(provider); ok {
			m.store(provider, k)
			return k, true
		}
	case StrategyKeyring:
		if k, ok := keyringGet(provider); ok {
			m.store(provider, k)
			return k, true
		}
	}

	return "", false
}

// SetKey validates and stores apiKey for provider. If validate is false the
// format check is skipped (used by callers restoring a previously-trusted
// value).
func (m *Manager) SetKey(provider, apiKey string, validate bool) error {
	if validate && !ValidateAPIKey(provider, apiKey) {
		return fmt.Errorf("invalid API key format for %s", provider)
	}

	m.store(provider, apiKey)

	switch m.Strategy {
	case StrategyEncryptedFile:
		return m.enc.set(provider, apiKey)
	case StrategyKeyring:
		return keyringSet(provider, apiKey)
	case StrategyEnvironment:
		return nil
	}
	return nil
}

// DeleteKey removes provider's key from the cache and from whichever
// persistence tier is configured.
func (m *Manager) DeleteKey(provider string) error {
	m.mu.Lock()
	delete(m.cache, provider)
	m.mu.Unlock()

	switch m.Strategy {
	case StrategyEncryptedFile:
		return m.enc.delete(provider)
	case StrategyKeyring:
		return keyringDelete(provider)
	}
	return nil
}

// ListStoredProviders reports providers with a stored key, tagged with the
// tier it was found in: "(env)" for the five cloud providers' environment
// variables, and "(encrypted)" for the encrypted file when that is the
// strategy. Keyring entries and local-server environment variables are not
// listed.
func (m *Manager) ListStoredProviders() []string {
	var providers []string
	seen := make(map[string]bool)

	for _, p := range []string{"openai", "anthropic", "openrouter", "google", "zhipu"} {
		for _, envVar := range envVars[p] {
			if os.Getenv(envVar) != "" {
				providers = append(providers, p+" (env)")
				seen[p] = true
				break
			}
		}
	}

	if m.Strategy == StrategyEncryptedFile {
		for _, p := range m.enc.listProviders() {
			if !seen[p] {
				providers = append(providers, p+" (encrypted)")
			}
		}
	}

	return providers
}

// TestAPIKey performs a live round trip against provider using its
// currently resolvable key, mirroring APIKeyManager.test_api_key.
func (m *Manager) TestAPIKey(ctx context.Context, provider string) (bool, error) {
	key, ok := m.GetKey(provider)
	if !ok {
		return false, fmt.Errorf("no API key configured for %s", provider)
	}

	cfg := ai.DefaultProviderConfig(ai.ProviderKind(provider))
	cfg.APIKey = key
	cfg.CacheEnabled = false

	prov, err := factory.New(cfg)
	if err != nil {
		return false, err
	}
	defer prov.Close()

	return prov.ValidateConnection(ctx), nil
}

// ChangeMasterPassword re-encrypts every key in the encrypted-file store
// under newPassword, mirroring APIKeyManager.change_master_password. It is a
// no-op for every other strategy, since only the encrypted file is
// password-protected.
func (m *Manager) ChangeMasterPassword(oldPassword, newPassword string) error {
	if m.Strategy != StrategyEncryptedFile {
		return nil
	}
	return m.enc.changePassword(oldPassword, newPassword)
}

func (m *Manager) store(provider, key string) {
	m.mu.Lock()
	m.cache[provider] = key
	m.mu.Unlock()
}
