// Package classify asks an LLM to label files with a category and a one-line
// summary, and to narrate the analysis as a whole. Every call is bounded by a
// timeout and every response goes through a two-stage decoder.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"github.com/efebarandurmaz/codechart/internal/ir"
	"github.com/efebarandurmaz/codechart/internal/llm"
	"github.com/efebarandurmaz/codechart/internal/observability"
	"github.com/efebarandurmaz/codechart/internal/redact"
)

var (
	// ErrNoProvider is returned when no LLM is configured.
	ErrNoProvider = errors.New("classify: no LLM provider configured")
	// ErrMalformedResponse is returned when neither decoding stage yields a value.
	ErrMalformedResponse = errors.New("classify: malformed response")
)

// Classification is the label assigned to one file.
type Classification struct {
	Category string `json:"category"`
	Summary  string `json:"summary"`
}

// Fallback is the classification used when the collaborator fails.
func Fallback() Classification {
	return Classification{Category: ir.DefaultCategory, Summary: ir.DefaultSummary}
}

// Classifier labels a file from a snippet of its content.
type Classifier interface {
	Classify(ctx context.Context, path, snippet string) (Classification, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, path, snippet string) (Classification, error)

func (f ClassifierFunc) Classify(ctx context.Context, path, snippet string) (Classification, error) {
	return f(ctx, path, snippet)
}

// Options configures the LLM-backed classifier and narrator.
type Options struct {
	Timeout      time.Duration
	SnippetChars int
	MaxTokens    int
	Temperature  float64
	Logger       *slog.Logger
	// Redactor masks sensitive values before a snippet is sent. Nil sends
	// snippets as read.
	Redactor *redact.Detector
}

// DefaultOptions returns the defaults used by the CLI.
func DefaultOptions() Options {
	return Options{
		Timeout:      30 * time.Second,
		SnippetChars: 4000,
		MaxTokens:    256,
		Temperature:  0,
	}
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// LLMClassifier implements Classifier over an llm.Provider.
type LLMClassifier struct {
	provider llm.Provider
	opts     Options
}

// NewLLMClassifier returns a classifier. A nil provider yields a classifier
// whose every call fails with ErrNoProvider.
func NewLLMClassifier(provider llm.Provider, opts Options) *LLMClassifier {
	if opts.SnippetChars <= 0 {
		opts.SnippetChars = DefaultOptions().SnippetChars
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultOptions().MaxTokens
	}
	return &LLMClassifier{provider: provider, opts: opts}
}

// Classify sends a bounded snippet to the provider and decodes the answer.
func (c *LLMClassifier) Classify(ctx context.Context, path, snippet string) (Classification, error) {
	if c.provider == nil {
		return Classification{}, ErrNoProvider
	}
	if c.opts.Redactor != nil {
		var matches []redact.Match
		if snippet, matches = c.opts.Redactor.Mask(snippet); len(matches) > 0 {
			c.opts.logger().Debug("classify: masked sensitive values", "path", path, "count", len(matches))
		}
	}
	prompt := llm.NewUserPrompt(classifySystemPrompt, classifyUserPrompt(path, Truncate(snippet, c.opts.SnippetChars)))

	content, err := complete(ctx, c.provider, "classify", prompt, c.opts)
	if err != nil {
		return Classification{}, err
	}

	result, ok := DecodeClassification(content)
	if !ok {
		c.opts.logger().Debug("classify: undecodable response", "path", path, "response", Truncate(content, 200))
		return Classification{}, fmt.Errorf("%w for %s", ErrMalformedResponse, path)
	}
	return result, nil
}

// complete performs one bounded, traced, metered provider call.
func complete(ctx context.Context, provider llm.Provider, operation string, prompt *llm.Prompt, opts Options) (string, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	ctx, span := observability.StartLLMSpan(ctx, provider.Name(), operation)
	defer span.End()
	span.SetAttributes(attribute.Int("llm.prompt_bytes", prompt.Size()))

	start := time.Now()
	resp, err := provider.Complete(ctx, prompt, llm.NewRequestOptions(opts.MaxTokens, opts.Temperature))
	elapsed := time.Since(start)

	in, out := 0, 0
	if resp != nil {
		in, out = resp.InputTokens, resp.OutputTokens
	}
	observability.RecordLLMMetrics(span, in, out, elapsed)
	observability.Metrics().RecordLLMRequest(provider.Name(), operation, elapsed, in, out, err)

	if err != nil {
		observability.RecordError(span, err)
		return "", fmt.Errorf("%s request: %w", operation, err)
	}
	if resp == nil {
		return "", fmt.Errorf("%s request: %w", operation, ErrMalformedResponse)
	}
	if resp.Truncated() {
		// The repair stage of the decoder can still recover a prefix.
		opts.logger().Debug("classify: response hit the token limit", "operation", operation, "provider", provider.Name())
	}
	return resp.Content, nil
}

// Truncate bounds s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
