package classify

import (
	"context"
	"fmt"

	"github.com/efebarandurmaz/codechart/internal/llm"
)

// FallbackNarrativeSummary is used when the narrative call fails.
const FallbackNarrativeSummary = "Summary unavailable."

// Narrative is the overall description of an analyzed tree.
type Narrative struct {
	Summary  string   `json:"overall_summary"`
	KeyFlows []string `json:"key_flows"`
}

// FallbackNarrative returns the narrative used when the collaborator fails.
func FallbackNarrative() Narrative {
	return Narrative{Summary: FallbackNarrativeSummary, KeyFlows: []string{}}
}

// Narrator summarizes a sample of per-file summaries.
type Narrator interface {
	Narrate(ctx context.Context, summaries []string) (Narrative, error)
}

// NarratorFunc adapts a function to Narrator.
type NarratorFunc func(ctx context.Context, summaries []string) (Narrative, error)

func (f NarratorFunc) Narrate(ctx context.Context, summaries []string) (Narrative, error) {
	return f(ctx, summaries)
}

// LLMNarrator implements Narrator over an llm.Provider. It makes exactly one
// attempt per call.
type LLMNarrator struct {
	provider llm.Provider
	opts     Options
}

// NewLLMNarrator returns a narrator. A nil provider yields ErrNoProvider.
func NewLLMNarrator(provider llm.Provider, opts Options) *LLMNarrator {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 512
	}
	return &LLMNarrator{provider: provider, opts: opts}
}

func (n *LLMNarrator) Narrate(ctx context.Context, summaries []string) (Narrative, error) {
	if n.provider == nil {
		return Narrative{}, ErrNoProvider
	}
	prompt := llm.NewUserPrompt(narrateSystemPrompt, narrateUserPrompt(summaries))

	content, err := complete(ctx, n.provider, "narrate", prompt, n.opts)
	if err != nil {
		return Narrative{}, err
	}
	result, ok := DecodeNarrative(content)
	if !ok {
		return Narrative{}, fmt.Errorf("%w: empty narrative", ErrMalformedResponse)
	}
	return result, nil
}
