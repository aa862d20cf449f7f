// Package config loads the AI summarization configuration, adapted from
// pkg/config/config.go's YAML-via-gopkg.in/yaml.v3 pattern: a defaulted
// struct, Load from an explicit path, FindConfigFile for the conventional
// search locations, and LoadOrDefault for the caller that wants to proceed
// on a missing or invalid file rather than fail outright.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tsanders/codeconcat-ai/pkg/ai"
)

// Config is the top-level AI summarization configuration.
type Config struct {
	AI AIConfig `yaml:"ai"`
}

// AIConfig mirrors the summarization block of a codeconcat config file.
type AIConfig struct {
	Enabled   bool    `yaml:"enable_ai_summary"`
	Provider  string  `yaml:"ai_provider"`
	Model     string  `yaml:"ai_model"`
	APIKey    string  `yaml:"ai_api_key"`
	APIBase   string  `yaml:"ai_api_base"`

	Temperature float64 `yaml:"ai_temperature"`
	MaxTokens   int     `yaml:"ai_max_tokens"`
	TimeoutSecs int     `yaml:"ai_timeout_seconds"`
	MaxRetries  int     `yaml:"ai_max_retries"`

	CacheEnabled bool   `yaml:"ai_cache_enabled"`
	CacheDir     string `yaml:"ai_cache_dir"`
	CacheTTLSecs int    `yaml:"ai_cache_ttl_seconds"`

	MaxConcurrent       int      `yaml:"ai_max_concurrent"`
	MinFileLines        int      `yaml:"ai_min_file_lines"`
	MaxContentChars     int      `yaml:"ai_max_content_chars"`
	ExcludeLanguages    []string `yaml:"ai_exclude_languages"`
	IncludeLanguages    []string `yaml:"ai_include_languages"`
	ExcludePatterns     []string `yaml:"ai_exclude_patterns"`
	SummarizeFunctions  bool     `yaml:"ai_summarize_functions"`
	MaxFunctionsPerFile int      `yaml:"ai_max_functions_per_file"`
	MinFunctionLines    int      `yaml:"ai_min_function_lines"`
}

// DefaultConfig returns a Config with the summarization defaults named in
// the data model: AI summarization off by default, OpenAI/gpt-4o-mini when
// enabled with no explicit provider, and the processor's DefaultOptions
// values for filtering and concurrency.
func DefaultConfig() *Config {
	return &Config{
		AI: AIConfig{
			Enabled:             false,
			Provider:            "openai",
			Temperature:         0.3,
			MaxTokens:           500,
			TimeoutSecs:         30,
			MaxRetries:          3,
			CacheEnabled:        true,
			CacheTTLSecs:        3600,
			MaxConcurrent:       5,
			MinFileLines:        20,
			MaxContentChars:     50000,
			SummarizeFunctions:  true,
			MaxFunctionsPerFile: 10,
			MinFunctionLines:    10,
		},
	}
}

// Load reads and parses a YAML config file, starting from DefaultConfig so
// unset fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file '%s': %w\n\n"+
			"Please check that the file is valid YAML and follows the expected format.", path, err)
	}
	return cfg, nil
}

// FindConfigFile searches the current directory then the home directory
// for a conventional config file name.
func FindConfigFile() string {
	candidates := []string{".codeconcat.yaml", ".codeconcat.yml"}

	for _, candidate := range candidates {
		if fileExists(candidate) {
			return candidate
		}
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		for _, candidate := range candidates {
			path := filepath.Join(homeDir, candidate)
			if fileExists(path) {
				return path
			}
		}
	}

	return ""
}

// LoadOrDefault loads the first config file found via FindConfigFile,
// falling back to DefaultConfig on a missing file or a parse error (logged
// to stderr, not fatal).
func LoadOrDefault() *Config {
	path := FindConfigFile()
	if path == "" {
		return DefaultConfig()
	}

	cfg, err := Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config from %s: %v\n", path, err)
		fmt.Fprintf(os.Stderr, "Using default configuration.\n\n")
		return DefaultConfig()
	}
	return cfg
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ToProviderConfig converts the AI config block into an ai.ProviderConfig,
// resolving the provider name to an ai.ProviderKind.
func (c *AIConfig) ToProviderConfig() ai.ProviderConfig {
	cfg := ai.DefaultProviderConfig(ai.ProviderKind(c.Provider))
	cfg.Model = c.Model
	cfg.APIKey = c.APIKey
	cfg.APIBase = c.APIBase

	if c.Temperature != 0 {
		cfg.Temperature = c.Temperature
	}
	if c.MaxTokens != 0 {
		cfg.MaxTokens = c.MaxTokens
	}
	if c.TimeoutSecs != 0 {
		cfg.Timeout = time.Duration(c.TimeoutSecs) * time.Second
	}
	if c.MaxRetries != 0 {
		cfg.MaxRetries = c.MaxRetries
	}

	cfg.CacheEnabled = c.CacheEnabled
	cfg.CacheDir = c.CacheDir
	if c.CacheTTLSecs != 0 {
		cfg.CacheTTL = time.Duration(c.CacheTTLSecs) * time.Second
	}

	return cfg
}
