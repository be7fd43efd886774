package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/efebarandurmaz/codechart/internal/redact"
)

// Config holds all application configuration.
type Config struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Graph     GraphConfig     `mapstructure:"graph"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	History   HistoryConfig   `mapstructure:"history"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
	Secrets   SecretsConfig   `mapstructure:"secrets"`
	Serve     ServeConfig     `mapstructure:"serve"`
}

type LLMConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	EmbedModel  string  `mapstructure:"embed_model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`

	// RequestsPerMinute is shared by every worker (0 = unlimited).
	RequestsPerMinute int `mapstructure:"requests_per_minute"`

	// Per-agent overrides. Keys are agent names ("cartographer", "aggregator").
	// Each override inherits unset fields from the top-level LLM config.
	Agents map[string]LLMAgentOverride `mapstructure:"agents"`
}

// LLMAgentOverride allows per-agent LLM provider configuration.
type LLMAgentOverride struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
}

// ResolveForAgent returns an LLMConfig with agent-specific overrides applied.
func (c LLMConfig) ResolveForAgent(agentName string) LLMConfig {
	override, ok := c.Agents[agentName]
	if !ok {
		return c
	}
	resolved := c
	if override.Provider != "" {
		resolved.Provider = override.Provider
	}
	if override.Model != "" {
		resolved.Model = override.Model
	}
	if override.APIKey != "" {
		resolved.APIKey = override.APIKey
	}
	if override.BaseURL != "" {
		resolved.BaseURL = override.BaseURL
	}
	return resolved
}

// AnalysisConfig tunes the pipeline.
type AnalysisConfig struct {
	Workers          int           `mapstructure:"workers"`
	ClassifyTimeout  time.Duration `mapstructure:"classify_timeout"`
	NarrativeTimeout time.Duration `mapstructure:"narrative_timeout"`
	SnippetChars     int           `mapstructure:"snippet_chars"`
	SummarySample    int           `mapstructure:"summary_sample"`
	CacheSize        int           `mapstructure:"cache_size"`
	WorkDir          string        `mapstructure:"work_dir"`
	// Redact masks credentials and personal data in snippets sent to the LLM.
	Redact      bool   `mapstructure:"redact"`
	RedactStyle string `mapstructure:"redact_style"`
}

type DiscoveryConfig struct {
	Ignore       []string `mapstructure:"ignore"`
	MaxFileBytes int64    `mapstructure:"max_file_bytes"`
}

type GraphConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type VectorConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	Dimension  uint64 `mapstructure:"dimension"`
}

type TemporalConfig struct {
	Host      string `mapstructure:"host"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type HistoryConfig struct {
	Path string `mapstructure:"path"`
}

type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	MetricsFile  string  `mapstructure:"metrics_file"`
	HealthAddr   string  `mapstructure:"health_addr"`
}

// ServeConfig configures the HTTP API started by "codechart serve".
type ServeConfig struct {
	Addr          string        `mapstructure:"addr"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	RunTimeout    time.Duration `mapstructure:"run_timeout"`
}

// SecretsConfig selects where "secret:<key>" references in api_key and
// password fields are looked up.
type SecretsConfig struct {
	Provider   string `mapstructure:"provider"`
	File       string `mapstructure:"file"`
	VaultAddr  string `mapstructure:"vault_addr"`
	VaultToken string `mapstructure:"vault_token"`
	VaultMount string `mapstructure:"vault_mount"`
	VaultPath  string `mapstructure:"vault_path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var defaults = map[string]any{
	"llm.max_tokens":             1024,
	"analysis.workers":           8,
	"analysis.classify_timeout":  "30s",
	"analysis.narrative_timeout": "60s",
	"analysis.snippet_chars":     4000,
	"analysis.summary_sample":    10,
	"analysis.cache_size":        512,
	"analysis.redact":            true,
	"analysis.redact_style":      "redact",
	"discovery.ignore":           []string{"**/node_modules/**", "**/.git/**", "**/dist/**", "**/build/**"},
	"discovery.max_file_bytes":   int64(1 << 20),
	"vector.port":                6334,
	"vector.collection":          "codechart",
	"temporal.namespace":         "default",
	"temporal.task_queue":        "codechart",
	"history.path":               "codechart-history.db",
	"telemetry.sample_rate":      1.0,
	"telemetry.health_addr":      ":8089",
	"log.level":                  "info",
	"log.format":                 "text",
	"secrets.provider":           "env",
	"serve.addr":                 ":8080",
	"serve.max_concurrent":       2,
	"serve.run_timeout":          "15m",
}

func newViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix("CODECHART")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Default returns the configuration used when no file is available.
// Environment overrides still apply.
func Default() *Config {
	var cfg Config
	// Unmarshal of defaults alone cannot fail for these types.
	_ = newViper().Unmarshal(&cfg)
	return &cfg
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	switch c.LLM.Provider {
	case "", "none", "ollama":
	default:
		if c.LLM.APIKey == "" {
			warnings = append(warnings, fmt.Sprintf("LLM provider %q is configured but api_key is empty", c.LLM.Provider))
		}
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2.0 {
		warnings = append(warnings, fmt.Sprintf("LLM temperature %.2f is outside [0.0, 2.0]", c.LLM.Temperature))
	}
	if c.LLM.MaxTokens < 0 {
		warnings = append(warnings, fmt.Sprintf("LLM max_tokens %d is negative", c.LLM.MaxTokens))
	}

	if c.Analysis.Workers < 0 {
		warnings = append(warnings, fmt.Sprintf("analysis workers %d is negative, the default is used", c.Analysis.Workers))
	}
	if c.Analysis.SnippetChars < 0 {
		warnings = append(warnings, fmt.Sprintf("analysis snippet_chars %d is negative", c.Analysis.SnippetChars))
	}
	if c.Analysis.ClassifyTimeout < 0 || c.Analysis.NarrativeTimeout < 0 {
		warnings = append(warnings, "analysis timeouts must not be negative")
	}
	if _, err := redact.ParseStyle(c.Analysis.RedactStyle); err != nil {
		warnings = append(warnings, fmt.Sprintf("analysis %v, the default is used", err))
	}
	if c.Serve.MaxConcurrent < 0 {
		warnings = append(warnings, fmt.Sprintf("serve max_concurrent %d is negative, the default is used", c.Serve.MaxConcurrent))
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		warnings = append(warnings, fmt.Sprintf("telemetry sample_rate %.2f is outside [0.0, 1.0]", c.Telemetry.SampleRate))
	}

	return warnings
}

// Load reads configuration from file and environment.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Validate configuration and print warnings
	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}
