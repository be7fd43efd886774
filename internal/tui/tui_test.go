package tui

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/efebarandurmaz/codechart/internal/agents"
	"github.com/efebarandurmaz/codechart/internal/ir"
	"github.com/efebarandurmaz/codechart/internal/pipeline"
	"github.com/efebarandurmaz/codechart/internal/plugins"
	"github.com/efebarandurmaz/codechart/internal/plugins/target/mermaid"
)

func sampleResult() *pipeline.Result {
	return &pipeline.Result{
		AnalysisID:     "shop_1709294400000",
		RepoName:       "shop",
		OverallSummary: "An order service.",
		KeyFlows:       []string{"checkout"},
		FilesByCategory: map[string][]ir.FileSummary{
			"Backend":  {{Name: "server.js"}, {Name: "orders.js"}},
			"Database": {{Name: "orderModel.js"}},
		},
		Files: []*ir.FileRecord{
			{Name: "server.js", Category: "Backend", Summary: "HTTP entry point", Functions: []string{"start"}},
			{Name: "orders.js", Category: "Backend", Summary: "Order routes", Functions: []string{"createOrder", "getOrderById"}},
			{Name: "orderModel.js", Category: "Database", Summary: "Mongoose model", Degraded: true},
		},
		Dependencies: []ir.DependencyEdge{{From: "server.js", To: "orders.js"}},
		Diagrams: []plugins.Diagram{
			{Kind: mermaid.KindClass, FileName: "class.mmd", Content: "classDiagram\n    class a\n"},
			{Kind: mermaid.KindER, FileName: "er.mmd", Content: "erDiagram\n    Order {\n    }\n"},
		},
		Agents: map[string]*agents.AgentResult{
			"cartographer": {Status: agents.StatusSuccess, Score: 1},
			"aggregator":   {Status: agents.StatusPassthrough, Score: 0.6},
			"draftsman":    {Status: agents.StatusSuccess, Score: 0.9},
		},
		Warnings: []string{"neo4j unavailable"},
	}
}

func TestNewSession(t *testing.T) {
	s := NewSession(sampleResult())

	if len(s.Files) != 3 || s.Files[1].Functions != 2 || !s.Files[2].Degraded {
		t.Errorf("unexpected file rows: %+v", s.Files)
	}
	if len(s.Categories) != 2 || s.Categories[0].Name != "Backend" || s.Categories[0].Files != 2 {
		t.Errorf("categories should be ordered by size: %+v", s.Categories)
	}
	if len(s.Diagrams) != 2 || s.Diagrams[0].Title != "Class" || s.Diagrams[1].Title != "ER" {
		t.Errorf("unexpected diagram tabs: %+v", s.Diagrams)
	}
	if len(s.Stages) != 3 || s.Stages[0].Name != "cartographer" || s.Stages[2].Name != "draftsman" {
		t.Errorf("stages should follow pipeline order: %+v", s.Stages)
	}
	if got := s.Score(); got != 0.6 {
		t.Errorf("score = %v, want the lowest stage score", got)
	}
	if s.Edges != 1 {
		t.Errorf("edges = %d", s.Edges)
	}
}

func TestNewSession_FromDecodedResult(t *testing.T) {
	res := &pipeline.Result{
		RepoName:         "shop",
		ClassDiagram:     "classDiagram\n",
		ComponentDiagram: "classDiagram\n",
		ERDiagram:        "erDiagram\n",
	}
	s := NewSession(res)
	var titles []string
	for _, d := range s.Diagrams {
		titles = append(titles, d.Title)
	}
	if strings.Join(titles, ",") != "Class,Component,ER" {
		t.Errorf("titles = %v", titles)
	}
	if s.Score() != -1 {
		t.Errorf("score without stages should be unknown, got %v", s.Score())
	}
}

func TestFilterFiles(t *testing.T) {
	s := NewSession(sampleResult())
	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"  ", 3},
		{"ORDER", 2},
		{"database", 1},
		{"entry point", 1},
		{"payments", 0},
	}
	for _, tt := range tests {
		if got := len(s.FilterFiles(tt.query)); got != tt.want {
			t.Errorf("FilterFiles(%q) = %d rows, want %d", tt.query, got, tt.want)
		}
	}
}

func press(m tea.Model, keys ...string) tea.Model {
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "shift+tab":
			msg = tea.KeyMsg{Type: tea.KeyShiftTab}
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		m, _ = m.Update(msg)
	}
	return m
}

func TestBrowse_Tabs(t *testing.T) {
	var m tea.Model = NewBrowseModel(NewSession(sampleResult()))
	m, _ = m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	if got := m.(BrowseModel).ActiveTab(); got != "Overview" {
		t.Fatalf("initial tab = %q", got)
	}
	view := m.View()
	for _, want := range []string{"shop", "An order service.", "checkout", "neo4j unavailable", "cartographer"} {
		if !strings.Contains(view, want) {
			t.Errorf("overview missing %q", want)
		}
	}

	m = press(m, "tab", "tab")
	if got := m.(BrowseModel).ActiveTab(); got != "Class" {
		t.Errorf("after two tabs = %q, want Class", got)
	}
	if !strings.Contains(m.View(), "classDiagram") {
		t.Error("class tab should show the diagram source")
	}

	m = press(m, "shift+tab", "shift+tab", "shift+tab")
	if got := m.(BrowseModel).ActiveTab(); got != "ER" {
		t.Errorf("shift+tab should wrap around, got %q", got)
	}
}

func TestBrowse_Filter(t *testing.T) {
	var m tea.Model = NewBrowseModel(NewSession(sampleResult()))
	m, _ = m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	m = press(m, "/", "m", "o", "d", "e", "l", "enter")
	b := m.(BrowseModel)
	if b.ActiveTab() != "Files" {
		t.Fatalf("filter should switch to the file table, got %q", b.ActiveTab())
	}
	view := m.View()
	if !strings.Contains(view, "orderModel.js") || strings.Contains(view, "server.js") {
		t.Errorf("filtered table wrong:\n%s", view)
	}

	m = press(m, "esc")
	if !strings.Contains(m.View(), "server.js") {
		t.Error("esc should clear the filter")
	}
}

func TestBrowse_Quit(t *testing.T) {
	m := NewBrowseModel(NewSession(sampleResult()))
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should return a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if next.View() != "" {
		t.Error("view should be empty after quitting")
	}
}

func TestProgress_Stages(t *testing.T) {
	var m tea.Model = NewProgressModel("./shop")
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	m, _ = m.Update(stageStartedMsg{stage: "cartographer", at: base})
	m, _ = m.Update(stageFinishedMsg{stage: "cartographer", status: agents.StatusSuccess, score: 1, at: base.Add(1500 * time.Millisecond)})
	m, _ = m.Update(stageStartedMsg{stage: "aggregator", at: base.Add(2 * time.Second)})

	view := m.View()
	if !strings.Contains(view, "Analyzing ./shop") || !strings.Contains(view, "1.5s") {
		t.Errorf("unexpected view:\n%s", view)
	}
	if !strings.Contains(view, "q to cancel") {
		t.Error("running view should offer cancel")
	}

	m, cmd := m.Update(analysisDoneMsg{res: &pipeline.Result{}})
	if cmd == nil {
		t.Fatal("done should quit the program")
	}
	if m.(ProgressModel).Aborted() {
		t.Error("a finished run is not aborted")
	}
}

func TestProgress_Abort(t *testing.T) {
	m, cmd := NewProgressModel("x").Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil || !m.(ProgressModel).Aborted() {
		t.Error("ctrl+c should abort")
	}
}

func TestProgramObserver(t *testing.T) {
	var got []tea.Msg
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	o := programObserver{send: func(m tea.Msg) { got = append(got, m) }, now: func() time.Time { return now }}

	o.StageStarted("id", "draftsman")
	o.StageFinished("id", "draftsman", &agents.AgentResult{Status: agents.StatusPartial, Score: 0.5, Errors: []string{"er: boom"}})
	o.StageFinished("id", "aggregator", nil)

	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	fin := got[1].(stageFinishedMsg)
	if fin.status != agents.StatusPartial || fin.errors != 1 || fin.score != 0.5 {
		t.Errorf("unexpected finish message: %+v", fin)
	}
	if got[2].(stageFinishedMsg).status != agents.StatusFailed {
		t.Error("a nil result should be reported as failed")
	}
}

func TestLoadResult(t *testing.T) {
	res := sampleResult()
	res.ClassDiagram = res.Diagrams[0].Content
	data, err := res.JSON()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "result.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadResult(path)
	if err != nil {
		t.Fatalf("LoadResult: %v", err)
	}
	if loaded.AnalysisID != res.AnalysisID || len(loaded.Files) != 3 {
		t.Errorf("round trip lost data: %+v", loaded)
	}
	if s := NewSession(loaded); len(s.Diagrams) != 1 || s.Diagrams[0].Title != "Class" {
		t.Errorf("decoded result should expose its diagram fields: %+v", s.Diagrams)
	}

	if _, err := LoadResult(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
