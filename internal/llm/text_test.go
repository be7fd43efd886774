package llm

import "testing"

func TestStripThinkingTags(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"<think>reasoning</think>answer", "answer"},
		{"a<think>x</think>b<think>y</think>c", "abc"},
		{"answer<think>unterminated", "answer"},
	}
	for _, tt := range tests {
		if got := StripThinkingTags(tt.in); got != tt.want {
			t.Errorf("StripThinkingTags(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStripMarkdownFences(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"no fence", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around fence", "Here you go:\n```\n{\"a\":1}\n```\nThanks", `{"a":1}`},
		{"thinking then fence", "<think>hmm</think>\n```json\n{}\n```", "{}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripMarkdownFences(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`Sure! {"category": "UI"} hope that helps`, `{"category": "UI"}`},
		{`{"a": {"b": 1}}`, `{"a": {"b": 1}}`},
		{"no json here", ""},
		{"} backwards {", ""},
	}
	for _, tt := range tests {
		if got := ExtractJSONObject(tt.in); got != tt.want {
			t.Errorf("ExtractJSONObject(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResponseTruncated(t *testing.T) {
	for reason, want := range map[string]bool{
		"max_tokens": true,
		"length":     true,
		"end_turn":   false,
		"stop":       false,
		"":           false,
	} {
		if got := (&Response{StopReason: reason}).Truncated(); got != want {
			t.Errorf("Truncated(%q) = %v, want %v", reason, got, want)
		}
	}
}

func TestNewUserPrompt(t *testing.T) {
	p := NewUserPrompt("Label the file.", "File: a.js")
	if p.SystemPrompt != "Label the file." {
		t.Errorf("system = %q", p.SystemPrompt)
	}
	if len(p.Messages) != 1 || p.Messages[0].Role != RoleUser || p.Messages[0].Content != "File: a.js" {
		t.Errorf("messages = %+v", p.Messages)
	}
	if got := p.Size(); got != len("Label the file.")+len("File: a.js") {
		t.Errorf("Size() = %d", got)
	}
}
