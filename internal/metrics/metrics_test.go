package metrics

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/efebarandurmaz/codechart/internal/ir"
	"github.com/efebarandurmaz/codechart/internal/plugins"
)

func sampleModel() *ir.Model {
	a := ir.NewFileRecord("/src/a.js")
	a.Category = "Frontend"
	a.Functions = []string{"render", "mount"}
	a.Metrics.LOC = 30
	b := ir.NewDegradedRecord("/src/b.js", "content is not valid UTF-8")
	return &ir.Model{
		Files:         []*ir.FileRecord{a, b},
		CategoryOrder: []string{"Frontend", "unreadable"},
		Edges:         []ir.DependencyEdge{{From: "a.js", To: "c.js"}},
	}
}

func TestCollectSource(t *testing.T) {
	m := New()
	m.CollectSource("/src", 3, sampleModel())

	tests := []struct {
		name      string
		got, want int
	}{
		{"files", m.Source.FileCount, 2},
		{"degraded", m.Source.DegradedCount, 1},
		{"skipped", m.Source.SkippedCount, 3},
		{"functions", m.Source.FunctionCount, 2},
		{"lines", m.Source.TotalLines, 30},
		{"edges", m.Source.EdgeCount, 1},
		{"categories", m.Source.CategoryCount, 2},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, tt.got, tt.want)
		}
	}
}

func TestCollectDiagrams(t *testing.T) {
	m := New()
	m.CollectDiagrams([]plugins.Diagram{
		{Kind: "class", Content: "classDiagram\n"},
		{Kind: "er", Content: "erDiagram\n"},
	})
	if !reflect.DeepEqual(m.Diagrams.Kinds, []string{"class", "er"}) {
		t.Errorf("kinds = %v", m.Diagrams.Kinds)
	}
	if want := len("classDiagram\n") + len("erDiagram\n"); m.Diagrams.TotalBytes != want {
		t.Errorf("total bytes = %d, want %d", m.Diagrams.TotalBytes, want)
	}
}

func TestAddAgent_PassthroughMode(t *testing.T) {
	m := New()
	m.AddAgent("cartographer", time.Second, "llm", 0)
	if m.LLMMode != "llm" {
		t.Errorf("mode = %q, want llm", m.LLMMode)
	}
	m.AddAgent("aggregator", time.Second, "passthrough", 0)
	if m.LLMMode != "passthrough" {
		t.Errorf("mode = %q, want passthrough", m.LLMMode)
	}
	if len(m.Agents) != 2 {
		t.Errorf("agents = %d, want 2", len(m.Agents))
	}
}

func TestPrintSummary(t *testing.T) {
	m := New()
	m.CollectSource("/src", 0, sampleModel())
	m.AddAgent("cartographer", 1500*time.Millisecond, "llm", 2)
	m.Finish(0.75, []string{"narrative: rate limited"})

	var buf bytes.Buffer
	m.PrintSummary(&buf)
	out := buf.String()

	for _, want := range []string{
		"CODECHART ANALYSIS REPORT",
		"0.75",
		"SOURCE",
		"cartographer",
		"2 errors",
		"ERRORS",
		"narrative: rate limited",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("non-terminal output carries color codes")
	}
}

func TestJSON(t *testing.T) {
	m := New()
	m.Finish(1, nil)
	data, err := m.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["score"] != 1.0 {
		t.Errorf("score = %v, want 1", decoded["score"])
	}
	if _, ok := decoded["source"]; !ok {
		t.Error("missing source section")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int]string{
		512:     "512 B",
		2048:    "2.0 KB",
		3 << 19: "1.5 MB",
	}
	for n, want := range tests {
		if got := formatBytes(n); got != want {
			t.Errorf("formatBytes(%d) = %q, want %q", n, got, want)
		}
	}
}
