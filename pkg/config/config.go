package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Assistant AssistantConfig `json:"assistant"`
	Channels  ChannelsConfig  `json:"channels"`
	Providers ProvidersConfig `json:"providers"`
	Analysis  AnalysisConfig  `json:"analysis"`
	Upload    UploadConfig    `json:"upload"`
	Store     StoreConfig     `json:"store"`
	Logging   LoggingConfig   `json:"logging"`
	mu        sync.RWMutex
}

type AssistantConfig struct {
	Model          string  `json:"model" env:"HAGGLEKIT_ASSISTANT_MODEL"`
	Provider       string  `json:"provider,omitempty" env:"HAGGLEKIT_ASSISTANT_PROVIDER"`
	MaxTokens      int     `json:"max_tokens" env:"HAGGLEKIT_ASSISTANT_MAX_TOKENS"`
	Temperature    float64 `json:"temperature" env:"HAGGLEKIT_ASSISTANT_TEMPERATURE"`
	RequestTimeout int     `json:"request_timeout_seconds" env:"HAGGLEKIT_ASSISTANT_REQUEST_TIMEOUT"`

	// FallbackProviders are tried in order when the primary fails.
	FallbackProviders []FallbackConfig `json:"fallback_providers,omitempty"`
}

// FallbackConfig defines an alternative provider+model to try when the primary fails.
type FallbackConfig struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type ChannelsConfig struct {
	Web WebConfig `json:"web"`
}

type WebConfig struct {
	Enabled  bool   `json:"enabled" env:"HAGGLEKIT_CHANNELS_WEB_ENABLED"`
	Host     string `json:"host" env:"HAGGLEKIT_CHANNELS_WEB_HOST"`
	Port     int    `json:"port" env:"HAGGLEKIT_CHANNELS_WEB_PORT"`
	Username string `json:"username" env:"HAGGLEKIT_CHANNELS_WEB_USERNAME"`
	Password string `json:"password" env:"HAGGLEKIT_CHANNELS_WEB_PASSWORD"`

	// AnalyzePerMinute caps screenshot analyses per client IP.
	AnalyzePerMinute int `json:"analyze_per_minute" env:"HAGGLEKIT_CHANNELS_WEB_ANALYZE_PER_MINUTE"`
}

type ProvidersConfig struct {
	OpenAI    ProviderConfig `json:"openai"`
	Anthropic ProviderConfig `json:"anthropic"`
	Gemini    ProviderConfig `json:"gemini"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key" env:"HAGGLEKIT_PROVIDERS_{{.Name}}_API_KEY"`
	APIBase string `json:"api_base" env:"HAGGLEKIT_PROVIDERS_{{.Name}}_API_BASE"`
}

// GetByName returns the provider config and default API base for a given
// provider name. Returns zero ProviderConfig and empty string if the name
// is not recognized.
func (p *ProvidersConfig) GetByName(name string) (ProviderConfig, string) {
	switch strings.ToLower(name) {
	case "openai":
		return p.OpenAI, "https://api.openai.com/v1"
	case "anthropic":
		return p.Anthropic, "https://api.anthropic.com/v1"
	case "gemini":
		return p.Gemini, "https://generativelanguage.googleapis.com/v1beta"
	default:
		return ProviderConfig{}, ""
	}
}

type AnalysisConfig struct {
	Model       string  `json:"model" env:"HAGGLEKIT_ANALYSIS_MODEL"`
	MaxTokens   int     `json:"max_tokens" env:"HAGGLEKIT_ANALYSIS_MAX_TOKENS"`
	Temperature float64 `json:"temperature" env:"HAGGLEKIT_ANALYSIS_TEMPERATURE"`
}

type UploadConfig struct {
	MaxBytes int64 `json:"max_bytes" env:"HAGGLEKIT_UPLOAD_MAX_BYTES"`
}

type StoreConfig struct {
	Path string `json:"path" env:"HAGGLEKIT_STORE_PATH"`
}

type LoggingConfig struct {
	Level  string `json:"level" env:"HAGGLEKIT_LOG_LEVEL"`
	Pretty bool   `json:"pretty" env:"HAGGLEKIT_LOG_PRETTY"`
}

func DefaultConfig() *Config {
	return &Config{
		Assistant: AssistantConfig{
			Model:          "gpt-4o-mini",
			Provider:       "openai",
			MaxTokens:      1024,
			Temperature:    0.7,
			RequestTimeout: 30,
		},
		Channels: ChannelsConfig{
			Web: WebConfig{
				Enabled:          true,
				Host:             "0.0.0.0",
				Port:             18620,
				AnalyzePerMinute: 6,
			},
		},
		Providers: ProvidersConfig{
			OpenAI:    ProviderConfig{},
			Anthropic: ProviderConfig{},
			Gemini:    ProviderConfig{},
		},
		Analysis: AnalysisConfig{
			Model:       "gemini-2.0-flash",
			MaxTokens:   800,
			Temperature: 0.2,
		},
		Upload: UploadConfig{
			MaxBytes: 10 << 20,
		},
		Store: StoreConfig{
			Path: "~/.hagglekit/hagglekit.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	// Support full config from env var (for containers / serverless)
	if cfgJSON := os.Getenv("HAGGLEKIT_CONFIG_JSON"); cfgJSON != "" {
		if err := json.Unmarshal([]byte(cfgJSON), cfg); err != nil {
			return nil, fmt.Errorf("parsing HAGGLEKIT_CONFIG_JSON: %w", err)
		}
		if err := env.Parse(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// StorePath returns the transcript store path with ~ expanded.
func (c *Config) StorePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Store.Path)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
