package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFallbackVocab replaces unreachable remote @context references
const DefaultFallbackVocab = "http://example.org/ftf-context#"

// Config holds all runtime configuration parameters
type Config struct {
	URLSource           string   `json:"url_source" yaml:"url_source"`
	URLsFile            string   `json:"urls_file" yaml:"urls_file"`
	URLs                []string `json:"urls" yaml:"urls"`
	OutputPath          string   `json:"output_path" yaml:"output_path"`
	FallbackVocab       string   `json:"fallback_vocab" yaml:"fallback_vocab"`
	RequestTimeoutMs    int      `json:"request_timeout_ms" yaml:"request_timeout_ms"`
	UserAgent           string   `json:"user_agent" yaml:"user_agent"`
	FetchConcurrency    int      `json:"fetch_concurrency" yaml:"fetch_concurrency"`
	RequestsPerSecond   float64  `json:"requests_per_second" yaml:"requests_per_second"`
	MaxBodyBytes        int      `json:"max_body_bytes" yaml:"max_body_bytes"`
	AllowRemoteContexts bool     `json:"allow_remote_contexts" yaml:"allow_remote_contexts"`
	DBPath              string   `json:"db_path" yaml:"db_path"`
	MetricsPath         string   `json:"metrics_path" yaml:"metrics_path"`
	PromPath            string   `json:"prom_path" yaml:"prom_path"`
	LogLevel            string   `json:"log_level" yaml:"log_level"`
}

// LoadConfig reads and validates configuration from a JSON or YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	return Finalize(&cfg)
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Finalize applies defaults and validates a configuration built in code
func Finalize(cfg *Config) (*Config, error) {
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyDefaults sets default values for unspecified fields
func applyDefaults(cfg *Config) {
	if cfg.OutputPath == "" {
		cfg.OutputPath = "output.owl"
	}
	if cfg.FallbackVocab == "" {
		cfg.FallbackVocab = DefaultFallbackVocab
	}
	if cfg.RequestTimeoutMs == 0 {
		cfg.RequestTimeoutMs = 10000
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "ld-weaver/1.0 (+https://github.com/alvmarrod/ld-weaver)"
	}
	if cfg.FetchConcurrency == 0 {
		cfg.FetchConcurrency = 1
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "ldweaver.db"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "metrics.json"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// validate checks that values are sensible
func validate(cfg *Config) error {
	if cfg.RequestTimeoutMs < 100 {
		return fmt.Errorf("request_timeout_ms must be >= 100")
	}
	if cfg.FetchConcurrency < 1 {
		return fmt.Errorf("fetch_concurrency must be >= 1")
	}
	if cfg.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must be >= 0")
	}
	if cfg.MaxBodyBytes < 0 {
		return fmt.Errorf("max_body_bytes must be >= 0")
	}
	if cfg.URLSource != "" && cfg.URLsFile != "" {
		return fmt.Errorf("url_source and urls_file are mutually exclusive")
	}
	if !strings.Contains(cfg.FallbackVocab, "://") {
		return fmt.Errorf("fallback_vocab must be an absolute IRI")
	}
	return nil
}

// JournalEnabled reports whether the SQLite run journal should be opened
func (c *Config) JournalEnabled() bool {
	return c.DBPath != "-"
}
