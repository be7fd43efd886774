// Package providers wires the built-in LLM backends into a factory.
package providers

import (
	"github.com/efebarandurmaz/codechart/internal/llm"
	"github.com/efebarandurmaz/codechart/internal/llm/anthropic"
	"github.com/efebarandurmaz/codechart/internal/llm/openai"
)

// RegisterDefaults registers anthropic, openai and the OpenAI-compatible
// presets into factory. Both cmd/codechart and cmd/worker call this.
func RegisterDefaults(factory *llm.ProviderFactory) {
	factory.Register("anthropic", func(c llm.ProviderConfig) (llm.Provider, error) {
		return anthropic.New(c.APIKey, c.Model, c.BaseURL, c.Timeout), nil
	})
	for _, p := range []struct{ name, url string }{
		{"openai", llm.KnownProviders["openai"]},
		{"groq", llm.KnownProviders["groq"]},
		{"ollama", llm.KnownProviders["ollama"]},
		{"together", llm.KnownProviders["together"]},
		{"deepseek", llm.KnownProviders["deepseek"]},
		{"custom", ""},
	} {
		p := p
		factory.Register(p.name, func(c llm.ProviderConfig) (llm.Provider, error) {
			base := c.BaseURL
			if base == "" {
				base = p.url
			}
			return openai.New(p.name, c.APIKey, c.Model, base, c.EmbedModel, c.Timeout), nil
		})
	}
}

// NewFactory returns a factory with the defaults registered.
func NewFactory() *llm.ProviderFactory {
	f := llm.NewFactory()
	RegisterDefaults(f)
	return f
}
