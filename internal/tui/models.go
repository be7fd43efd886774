package tui

import (
	"sort"
	"strings"

	"github.com/efebarandurmaz/codechart/internal/agents"
	"github.com/efebarandurmaz/codechart/internal/pipeline"
	"github.com/efebarandurmaz/codechart/internal/plugins/target/mermaid"
)

// StageOrder is the order the pipeline runs its agents in.
var StageOrder = []string{"cartographer", "aggregator", "draftsman"}

// Tab is one diagram page of the browser.
type Tab struct {
	Title   string
	Content string
}

// FileRow is one line of the file table.
type FileRow struct {
	Name      string
	Category  string
	Summary   string
	Functions int
	Degraded  bool
}

// CategoryCount is the number of files labelled with one category.
type CategoryCount struct {
	Name  string
	Files int
}

// StageRow is the outcome of one agent.
type StageRow struct {
	Name   string
	Status agents.AgentStatus
	Score  float64
	Errors int
}

// Session is an analysis prepared for browsing.
type Session struct {
	AnalysisID string
	RepoName   string
	Summary    string
	KeyFlows   []string
	Categories []CategoryCount
	Files      []FileRow
	Diagrams   []Tab
	Stages     []StageRow
	Warnings   []string
	Edges      int
}

// NewSession flattens res into the rows and pages the browser shows. Results
// decoded from result.json carry no agent outcomes; Stages is empty then.
func NewSession(res *pipeline.Result) *Session {
	s := &Session{
		AnalysisID: res.AnalysisID,
		RepoName:   res.RepoName,
		Summary:    res.OverallSummary,
		KeyFlows:   res.KeyFlows,
		Warnings:   res.Warnings,
		Edges:      len(res.Dependencies),
	}

	for _, f := range res.Files {
		s.Files = append(s.Files, FileRow{
			Name:      f.Name,
			Category:  f.Category,
			Summary:   f.Summary,
			Functions: len(f.Functions),
			Degraded:  f.Degraded,
		})
	}

	for cat, files := range res.FilesByCategory {
		s.Categories = append(s.Categories, CategoryCount{Name: cat, Files: len(files)})
	}
	sort.Slice(s.Categories, func(i, j int) bool {
		a, b := s.Categories[i], s.Categories[j]
		if a.Files != b.Files {
			return a.Files > b.Files
		}
		return a.Name < b.Name
	})

	if len(res.Diagrams) > 0 {
		for _, d := range res.Diagrams {
			s.Diagrams = append(s.Diagrams, Tab{Title: diagramTitle(d.Kind), Content: d.Content})
		}
	} else {
		for _, d := range []struct{ kind, content string }{
			{mermaid.KindClass, res.ClassDiagram},
			{mermaid.KindComponent, res.ComponentDiagram},
			{mermaid.KindER, res.ERDiagram},
		} {
			if d.content != "" {
				s.Diagrams = append(s.Diagrams, Tab{Title: diagramTitle(d.kind), Content: d.content})
			}
		}
	}

	for _, name := range StageOrder {
		r, ok := res.Agents[name]
		if !ok || r == nil {
			continue
		}
		s.Stages = append(s.Stages, StageRow{Name: name, Status: r.Status, Score: r.Score, Errors: len(r.Errors)})
	}
	return s
}

// Score is the lowest stage score, or -1 when no stage outcome is known.
func (s *Session) Score() float64 {
	if len(s.Stages) == 0 {
		return -1
	}
	score := 1.0
	for _, st := range s.Stages {
		if st.Score < score {
			score = st.Score
		}
	}
	return score
}

// FilterFiles returns the rows whose name, category or summary contains q,
// ignoring case. An empty query returns every row.
func (s *Session) FilterFiles(q string) []FileRow {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return s.Files
	}
	var out []FileRow
	for _, f := range s.Files {
		if strings.Contains(strings.ToLower(f.Name), q) ||
			strings.Contains(strings.ToLower(f.Category), q) ||
			strings.Contains(strings.ToLower(f.Summary), q) {
			out = append(out, f)
		}
	}
	return out
}

func diagramTitle(kind string) string {
	switch kind {
	case mermaid.KindClass:
		return "Class"
	case mermaid.KindComponent:
		return "Component"
	case mermaid.KindER:
		return "ER"
	default:
		if kind == "" {
			return "Diagram"
		}
		return strings.ToUpper(kind[:1]) + kind[1:]
	}
}
