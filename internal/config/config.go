// Package config loads the ambient configuration for the orchestration
// core: which LLM providers to talk to, where embeddings and storage live,
// and how to export logs/metrics. Scope is deliberately narrow — this is
// not a general application config, only what C2-C8 need to construct.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ProviderConfig configures one LLM provider client (anthropic or openai).
type ProviderConfig struct {
	Provider    string                     `yaml:"provider"`
	APIKey      string                     `yaml:"apiKey"`
	BaseURL     string                     `yaml:"baseURL"`
	Model       string                     `yaml:"model"`
	ExtraParams map[string]any             `yaml:"extraParams"`
	LogPayloads bool                       `yaml:"logPayloads"`
	Headers     map[string]string          `yaml:"headers"`
	PromptCache AnthropicPromptCacheConfig `yaml:"promptCache"`
}

// AnthropicPromptCacheConfig controls Anthropic prompt-caching breakpoints.
// Ignored by the OpenAI client. When Enabled is set but none of the three
// targets are, the anthropic client defaults to caching system prompt and
// tool definitions, the two cheapest-to-cache and most stable segments.
type AnthropicPromptCacheConfig struct {
	Enabled       bool `yaml:"enabled"`
	CacheSystem   bool `yaml:"cacheSystem"`
	CacheTools    bool `yaml:"cacheTools"`
	CacheMessages bool `yaml:"cacheMessages"`
}

// EmbeddingConfig configures the embedding backend used by the context
// retriever to vectorize queries and saved messages.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"apiKey"`
	BaseURL  string `yaml:"baseURL"`
	Model    string `yaml:"model"`
}

// VectorSearchConfig configures the optional Qdrant-backed vector index
// used by the context retriever alongside full-text search.
type VectorSearchConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Collection string `yaml:"collection"`
}

// StorageConfig configures the message persistence backend.
type StorageConfig struct {
	Driver string `yaml:"driver"` // "postgres" | "memory"
	DSN    string `yaml:"dsn"`
}

// IdempotencyConfig configures the Redis-backed dedupe store used by action
// adapters to enforce at-most-once mutation semantics.
type IdempotencyConfig struct {
	Addr string `yaml:"addr"`
	TTL  int    `yaml:"ttlSeconds"`
}

// UsageConfig configures the per-step usage event publisher.
type UsageConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// ObsConfig configures the OTLP log/trace/metric exporters.
type ObsConfig struct {
	ServiceName    string `yaml:"serviceName"`
	ServiceVersion string `yaml:"serviceVersion"`
	Environment    string `yaml:"environment"`
	OTLP           string `yaml:"otlp"`
	LogLevel       string `yaml:"logLevel"`
	LogPath        string `yaml:"logPath"`
}

// Config is the full set of dependencies the orchestration core needs wired
// at boot.
type Config struct {
	Anthropic   ProviderConfig      `yaml:"anthropic"`
	OpenAI      ProviderConfig      `yaml:"openai"`
	Embedding   EmbeddingConfig     `yaml:"embedding"`
	VectorIndex VectorSearchConfig  `yaml:"vectorIndex"`
	Storage     StorageConfig       `yaml:"storage"`
	Idempotency IdempotencyConfig   `yaml:"idempotency"`
	Usage       UsageConfig         `yaml:"usage"`
	Obs         ObsConfig           `yaml:"observability"`
}

// Load reads .env (if present, via godotenv) for secret overrides, then
// parses the YAML file at path. Env vars referenced by name in the YAML
// are not expanded automatically; callers that need that should set the
// relevant Config field directly after Load returns.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides lets API keys and DSNs come from the environment
// instead of being committed to the YAML file on disk.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Anthropic.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
		if cfg.Embedding.APIKey == "" {
			cfg.Embedding.APIKey = v
		}
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("OTLP_ENDPOINT"); v != "" {
		cfg.Obs.OTLP = v
	}
}
