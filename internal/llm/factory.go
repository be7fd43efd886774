package llm

import (
	"fmt"
	"sort"
	"time"
)

// ProviderConfig is the resolved provider section of one agent.
type ProviderConfig struct {
	Provider string
	APIKey   string
	Model    string
	// BaseURL points OpenAI-compatible presets at another endpoint.
	BaseURL string
	// EmbedModel enables Embed on OpenAI-compatible providers.
	EmbedModel string

	// Timeout bounds a single HTTP request inside the provider.
	Timeout time.Duration

	// RequestsPerMinute caps calls shared across the worker pool (0 = unlimited).
	RequestsPerMinute int
	Burst             int
}

// DefaultProviderConfig returns the request timeout and burst used when the
// config leaves them unset.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Timeout: 2 * time.Minute,
		Burst:   4,
	}
}

// ProviderConstructor builds a Provider from config.
type ProviderConstructor func(cfg ProviderConfig) (Provider, error)

// ProviderFactory maps provider names to constructors.
type ProviderFactory struct {
	ctors map[string]ProviderConstructor
}

// NewFactory returns an empty factory; providers.NewFactory registers the
// built-in presets.
func NewFactory() *ProviderFactory {
	return &ProviderFactory{ctors: make(map[string]ProviderConstructor)}
}

// Register binds name to ctor, replacing any earlier binding.
func (f *ProviderFactory) Register(name string, ctor ProviderConstructor) {
	f.ctors[name] = ctor
}

// Create builds the provider cfg names. "" and "none" yield a nil provider
// and no error: the pipeline then runs without an LLM. A positive
// RequestsPerMinute wraps the result in a shared limiter.
func (f *ProviderFactory) Create(cfg ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	}

	ctor, ok := f.ctors[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider %q (registered: %v)", cfg.Provider, f.Names())
	}

	provider, err := ctor(cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s provider: %w", cfg.Provider, err)
	}

	if cfg.RequestsPerMinute > 0 {
		return WithRateLimit(provider, cfg.RequestsPerMinute, cfg.Burst), nil
	}
	return provider, nil
}

// Names returns the registered provider names, sorted.
func (f *ProviderFactory) Names() []string {
	out := make([]string, 0, len(f.ctors))
	for k := range f.ctors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// KnownProviders lists the default endpoint of each preset. Any other
// OpenAI-compatible server works through "custom" plus base_url.
var KnownProviders = map[string]string{
	"anthropic": "https://api.anthropic.com",
	"openai":    "https://api.openai.com/v1",
	"groq":      "https://api.groq.com/openai/v1",
	"ollama":    "http://localhost:11434/v1",
	"together":  "https://api.together.xyz/v1",
	"deepseek":  "https://api.deepseek.com/v1",
}
