package anthropic

import (
	"context"
	"errors"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/efebarandurmaz/codechart/internal/llm"
)

type fakeMessages struct {
	resp  *anthropic.Message
	err   error
	calls []anthropic.MessageNewParams
}

func (f *fakeMessages) New(_ context.Context, params anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	f.calls = append(f.calls, params)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func TestName(t *testing.T) {
	if got := NewWithMessages("m", &fakeMessages{}).Name(); got != "anthropic" {
		t.Errorf("expected name 'anthropic', got %q", got)
	}
}

func TestComplete_BuildsParams(t *testing.T) {
	fake := &fakeMessages{resp: &anthropic.Message{}}
	c := NewWithMessages("claude-test", fake)

	prompt := &llm.Prompt{
		SystemPrompt: "classify",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "code"},
			{Role: llm.RoleAssistant, Content: "ok"},
		},
	}
	if _, err := c.Complete(context.Background(), prompt, llm.NewRequestOptions(256, 0.2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fake.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(fake.calls))
	}
	p := fake.calls[0]
	if string(p.Model) != "claude-test" {
		t.Errorf("model = %q", p.Model)
	}
	if p.MaxTokens != 256 {
		t.Errorf("max tokens = %d", p.MaxTokens)
	}
	if len(p.System) != 1 || p.System[0].Text != "classify" {
		t.Errorf("system = %+v", p.System)
	}
	if len(p.Messages) != 2 || p.Messages[1].Role != anthropic.MessageParamRoleAssistant {
		t.Errorf("messages = %+v", p.Messages)
	}
}

func TestComplete_DefaultMaxTokens(t *testing.T) {
	fake := &fakeMessages{resp: &anthropic.Message{}}
	c := NewWithMessages("m", fake)

	if _, err := c.Complete(context.Background(), llm.NewUserPrompt("", "x"), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.calls[0].MaxTokens != defaultMaxTokens {
		t.Errorf("expected default max tokens %d, got %d", defaultMaxTokens, fake.calls[0].MaxTokens)
	}
}

func TestComplete_ConcatenatesTextBlocks(t *testing.T) {
	fake := &fakeMessages{resp: &anthropic.Message{
		Model: "claude-test",
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: `{"category":`},
			{Type: "thinking"},
			{Type: "text", Text: ` "UI"}`},
		},
		StopReason: anthropic.StopReasonEndTurn,
		Usage:      anthropic.Usage{InputTokens: 10, OutputTokens: 20},
	}}
	c := NewWithMessages("claude-test", fake)

	resp, err := c.Complete(context.Background(), llm.NewUserPrompt("", "x"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != `{"category": "UI"}` {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.InputTokens != 10 || resp.OutputTokens != 20 {
		t.Errorf("usage = %d/%d", resp.InputTokens, resp.OutputTokens)
	}
	if resp.StopReason != "end_turn" {
		t.Errorf("stop reason = %q", resp.StopReason)
	}
}

func TestComplete_Error(t *testing.T) {
	apiErr := errors.New("overloaded")
	c := NewWithMessages("m", &fakeMessages{err: apiErr})

	_, err := c.Complete(context.Background(), llm.NewUserPrompt("", "x"), nil)
	if !errors.Is(err, apiErr) {
		t.Fatalf("expected wrapped API error, got %v", err)
	}
}
