package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitProvider wraps a provider with a token-bucket limiter. One
// limiter is shared by every goroutine calling the wrapped provider.
type RateLimitProvider struct {
	inner   Provider
	limiter *rate.Limiter
}

// WithRateLimit wraps p so that at most requestsPerMinute calls start per
// minute, allowing bursts of up to burst calls.
func WithRateLimit(p Provider, requestsPerMinute, burst int) Provider {
	if p == nil {
		return nil
	}
	if requestsPerMinute <= 0 {
		return p
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitProvider{
		inner:   p,
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst),
	}
}

// Name returns the underlying provider name.
func (r *RateLimitProvider) Name() string {
	return r.inner.Name()
}

// Complete waits for capacity and delegates to the inner provider.
func (r *RateLimitProvider) Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return r.inner.Complete(ctx, prompt, opts)
}

// Embed delegates to the inner provider when it supports embeddings.
func (r *RateLimitProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embedder, ok := r.inner.(Embedder)
	if !ok {
		return nil, ErrEmbeddingsUnsupported
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return embedder.Embed(ctx, texts)
}

// Unwrap returns the wrapped provider.
func (r *RateLimitProvider) Unwrap() Provider { return r.inner }
