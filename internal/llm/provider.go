// Package llm defines the contract for the generative model that classifies
// files and narrates the overall analysis, plus provider construction.
package llm

import (
	"context"
	"errors"
)

// ErrEmbeddingsUnsupported is returned by providers that only do completions.
var ErrEmbeddingsUnsupported = errors.New("llm: provider does not support embeddings")

// Provider is the interface all LLM backends must implement.
type Provider interface {
	// Complete sends a prompt and returns a completion.
	Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error)
	// Name returns the provider identifier (e.g. "anthropic", "openai").
	Name() string
}

// Embedder is implemented by providers that can produce embedding vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
