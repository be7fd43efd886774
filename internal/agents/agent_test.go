package agents

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func TestNewAgentResult(t *testing.T) {
	r := NewAgentResult()
	if r.Version != ResultVersion || r.Status != StatusSuccess || r.Score != 1.0 {
		t.Errorf("unexpected defaults: version=%s status=%s score=%v", r.Version, r.Status, r.Score)
	}
	if r.Errors == nil || r.Warnings == nil || r.Metadata == nil {
		t.Error("slices and metadata should be non-nil so they encode as [] and {}")
	}
	if r.Metrics == nil || r.Metrics.StartTime.IsZero() {
		t.Fatal("clock should start on construction")
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"files", "model", "diagrams", "skipped"} {
		if _, ok := decoded[key]; ok {
			t.Errorf("empty %q should be omitted", key)
		}
	}
	if errs, ok := decoded["errors"].([]any); !ok || len(errs) != 0 {
		t.Errorf("errors should encode as an empty list, got %v", decoded["errors"])
	}
}

func TestFinalize(t *testing.T) {
	tests := []struct {
		name   string
		status AgentStatus
		errors []string
		want   AgentStatus
	}{
		{"clean success", StatusSuccess, nil, StatusSuccess},
		{"success with errors", StatusSuccess, []string{"a.js: unreadable"}, StatusPartial},
		{"failed stays failed", StatusFailed, []string{"boom"}, StatusFailed},
		{"passthrough stays passthrough", StatusPassthrough, []string{"narrate: timeout"}, StatusPassthrough},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewAgentResult()
			r.Status = tt.status
			r.Errors = append(r.Errors, tt.errors...)
			r.Metrics.StartTime = time.Now().Add(-50 * time.Millisecond)

			r.Finalize()

			if r.Status != tt.want {
				t.Errorf("status = %s, want %s", r.Status, tt.want)
			}
			if r.Metrics.EndTime.Before(r.Metrics.StartTime) || r.Metrics.Duration < 50*time.Millisecond {
				t.Errorf("clock not stopped: %+v", r.Metrics)
			}
		})
	}
}

func TestAddError(t *testing.T) {
	r := NewAgentResult()
	r.AddError("classify b.js: deadline exceeded")
	r.AddError("classify c.js: malformed response")

	if r.Status != StatusPartial {
		t.Errorf("status = %s, want partial", r.Status)
	}
	if len(r.Errors) != 2 || r.Errors[1] != "classify c.js: malformed response" {
		t.Errorf("errors = %v", r.Errors)
	}

	failed := NewAgentResult()
	failed.Status = StatusFailed
	failed.AddError("x")
	if failed.Status != StatusFailed {
		t.Errorf("AddError must not downgrade a failure, got %s", failed.Status)
	}
}

func TestAddWarning(t *testing.T) {
	r := NewAgentResult()
	r.AddWarning("neo4j unavailable")
	if r.Status != StatusSuccess {
		t.Errorf("warnings must not change the status, got %s", r.Status)
	}
	if len(r.Warnings) != 1 {
		t.Errorf("warnings = %v", r.Warnings)
	}
}

func TestSetPassthrough(t *testing.T) {
	r := NewAgentResult()
	r.SetPassthrough("no LLM provider configured")

	if r.Status != StatusPassthrough {
		t.Errorf("status = %s", r.Status)
	}
	if r.Metadata["mode"] != "passthrough" || r.Metadata["passthrough_reason"] != "no LLM provider configured" {
		t.Errorf("metadata = %v", r.Metadata)
	}
}

func TestRecordLLMCall(t *testing.T) {
	r := NewAgentResult()
	r.RecordLLMCall(120*time.Millisecond, 300, 40)
	r.RecordLLMCall(80*time.Millisecond, 200, 10)

	m := r.Metrics
	if m.LLMCalls != 2 || m.LLMDuration != 200*time.Millisecond {
		t.Errorf("calls=%d duration=%s", m.LLMCalls, m.LLMDuration)
	}
	if m.PromptTokens != 500 || m.CompletionTokens != 50 {
		t.Errorf("tokens = %d/%d", m.PromptTokens, m.CompletionTokens)
	}
}

func TestAgentContext_Log(t *testing.T) {
	ac := &AgentContext{}
	if ac.Log() != slog.Default() {
		t.Error("nil logger should fall back to the default")
	}

	var buf bytes.Buffer
	ac.Logger = slog.New(slog.NewTextHandler(&buf, nil))
	ac.Log().Info("mapped", "files", 3)
	if !bytes.Contains(buf.Bytes(), []byte("files=3")) {
		t.Errorf("expected the configured logger to be used, got %q", buf.String())
	}
}
