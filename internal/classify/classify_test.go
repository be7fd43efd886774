package classify

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/efebarandurmaz/codechart/internal/llm"
	"github.com/efebarandurmaz/codechart/internal/redact"
)

type stubProvider struct {
	content string
	err     error
	delay   time.Duration
	calls   int64
	prompts []*llm.Prompt
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Complete(ctx context.Context, p *llm.Prompt, _ *llm.RequestOptions) (*llm.Response, error) {
	atomic.AddInt64(&s.calls, 1)
	s.prompts = append(s.prompts, p)
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Content: s.content, InputTokens: 10, OutputTokens: 5}, nil
}

func TestLLMClassifier_Success(t *testing.T) {
	p := &stubProvider{content: `{"category":"Frontend/Pages","summary":"Home page."}`}
	c := NewLLMClassifier(p, DefaultOptions())

	got, err := c.Classify(context.Background(), "/src/pages/index.tsx", "export default function Home() {}")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if want := (Classification{Category: "Frontend/Pages", Summary: "Home page."}); got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if len(p.prompts) != 1 {
		t.Fatalf("prompts = %d, want 1", len(p.prompts))
	}
	if !strings.Contains(p.prompts[0].Messages[0].Content, "index.tsx") {
		t.Error("prompt does not name the file")
	}
}

func TestLLMClassifier_BoundsSnippet(t *testing.T) {
	p := &stubProvider{content: `{"category":"Utilities"}`}
	c := NewLLMClassifier(p, Options{SnippetChars: 10})

	if _, err := c.Classify(context.Background(), "a.js", strings.Repeat("x", 100)); err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if strings.Contains(p.prompts[0].Messages[0].Content, strings.Repeat("x", 11)) {
		t.Error("snippet was not bounded")
	}
}

func TestLLMClassifier_Redacts(t *testing.T) {
	src := `const client = new Stripe("sk_live_0123456789abcdef")
const apiKey = "sk_live_0123456789abcdef"
// owner: jane@example.com
`
	p := &stubProvider{content: `{"category":"Backend/Payments"}`}
	opts := DefaultOptions()
	opts.Redactor = redact.New(redact.Config{})
	c := NewLLMClassifier(p, opts)

	if _, err := c.Classify(context.Background(), "billing.js", src); err != nil {
		t.Fatalf("Classify: %v", err)
	}
	sent := p.prompts[0].Messages[0].Content
	for _, leaked := range []string{`apiKey = "sk_live`, "jane@example.com"} {
		if strings.Contains(sent, leaked) {
			t.Errorf("prompt leaks %q", leaked)
		}
	}
	for _, marker := range []string{"[REDACTED:secret]", "[REDACTED:email]"} {
		if !strings.Contains(sent, marker) {
			t.Errorf("prompt missing %q", marker)
		}
	}
}

func TestLLMClassifier_NoProvider(t *testing.T) {
	c := NewLLMClassifier(nil, DefaultOptions())
	if _, err := c.Classify(context.Background(), "a.js", ""); !errors.Is(err, ErrNoProvider) {
		t.Errorf("err = %v, want ErrNoProvider", err)
	}
}

func TestLLMClassifier_ProviderError(t *testing.T) {
	boom := errors.New("503 Service Unavailable")
	c := NewLLMClassifier(&stubProvider{err: boom}, DefaultOptions())

	if _, err := c.Classify(context.Background(), "a.js", "x"); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestLLMClassifier_Malformed(t *testing.T) {
	c := NewLLMClassifier(&stubProvider{content: "no idea"}, DefaultOptions())

	if _, err := c.Classify(context.Background(), "a.js", "x"); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("err = %v, want ErrMalformedResponse", err)
	}
}

func TestLLMClassifier_Timeout(t *testing.T) {
	p := &stubProvider{content: `{"category":"x"}`, delay: time.Second}
	c := NewLLMClassifier(p, Options{Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := c.Classify(context.Background(), "a.js", "x")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed >= 500*time.Millisecond {
		t.Errorf("timeout took %v", elapsed)
	}
}

func TestLLMNarrator(t *testing.T) {
	p := &stubProvider{content: `{"summary":"A shop.","key_flows":["browse -> buy"]}`}
	n := NewLLMNarrator(p, DefaultOptions())

	got, err := n.Narrate(context.Background(), []string{"Home page.", "Cart logic."})
	if err != nil {
		t.Fatalf("Narrate: %v", err)
	}
	if got.Summary != "A shop." || !reflect.DeepEqual(got.KeyFlows, []string{"browse -> buy"}) {
		t.Errorf("narrative = %+v", got)
	}
	if !strings.Contains(p.prompts[0].Messages[0].Content, "- Cart logic.") {
		t.Error("prompt does not list the summaries")
	}
}

func TestLLMNarrator_SingleAttempt(t *testing.T) {
	p := &stubProvider{err: errors.New("500")}
	n := NewLLMNarrator(p, DefaultOptions())

	if _, err := n.Narrate(context.Background(), []string{"x"}); err == nil {
		t.Error("expected error")
	}
	if calls := atomic.LoadInt64(&p.calls); calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestLLMNarrator_NoProvider(t *testing.T) {
	_, err := NewLLMNarrator(nil, DefaultOptions()).Narrate(context.Background(), nil)
	if !errors.Is(err, ErrNoProvider) {
		t.Errorf("err = %v, want ErrNoProvider", err)
	}
}

func TestFallbacks(t *testing.T) {
	if got := Fallback().Category; got != "other" {
		t.Errorf("Fallback category = %q", got)
	}
	n := FallbackNarrative()
	if n.Summary != FallbackNarrativeSummary || len(n.KeyFlows) != 0 {
		t.Errorf("FallbackNarrative = %+v", n)
	}
}
