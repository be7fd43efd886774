package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/efebarandurmaz/codechart/internal/ir"
	"github.com/efebarandurmaz/codechart/internal/plugins"
)

// PipelineMetrics collects statistics for a full analysis run.
type PipelineMetrics struct {
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at,omitempty"`
	Duration   time.Duration  `json:"duration_ms,omitempty"`
	Source     SourceMetrics  `json:"source"`
	Diagrams   DiagramMetrics `json:"diagrams"`
	Agents     []AgentMetrics `json:"agents"`
	LLMMode    string         `json:"llm_mode"` // "llm" or "passthrough"
	Score      float64        `json:"score"`
	Errors     []string       `json:"errors,omitempty"`
}

type SourceMetrics struct {
	Root          string `json:"root"`
	FileCount     int    `json:"file_count"`
	DegradedCount int    `json:"degraded_count"`
	SkippedCount  int    `json:"skipped_count"`
	FunctionCount int    `json:"function_count"`
	EdgeCount     int    `json:"edge_count"`
	CategoryCount int    `json:"category_count"`
	TotalLines    int    `json:"total_lines"`
}

type DiagramMetrics struct {
	Kinds      []string `json:"kinds"`
	TotalBytes int      `json:"total_bytes"`
}

type AgentMetrics struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration_ms"`
	Mode     string        `json:"mode"`
	Errors   int           `json:"errors"`
}

// New starts tracking a run.
func New() *PipelineMetrics {
	return &PipelineMetrics{StartedAt: time.Now(), LLMMode: "llm"}
}

// CollectSource computes source-side metrics from the model.
func (m *PipelineMetrics) CollectSource(root string, skipped int, model *ir.Model) {
	m.Source.Root = root
	m.Source.SkippedCount = skipped
	m.Source.FileCount = len(model.Files)
	m.Source.FunctionCount = model.FunctionCount()
	m.Source.TotalLines = model.TotalLines()
	m.Source.EdgeCount = len(model.Edges)
	m.Source.CategoryCount = len(model.CategoryOrder)
	for _, f := range model.Files {
		if f.Degraded {
			m.Source.DegradedCount++
		}
	}
}

// CollectDiagrams records the rendered diagrams.
func (m *PipelineMetrics) CollectDiagrams(diagrams []plugins.Diagram) {
	m.Diagrams.Kinds = m.Diagrams.Kinds[:0]
	m.Diagrams.TotalBytes = 0
	for _, d := range diagrams {
		m.Diagrams.Kinds = append(m.Diagrams.Kinds, d.Kind)
		m.Diagrams.TotalBytes += len(d.Content)
	}
}

// AddAgent records a single agent's timing and status.
func (m *PipelineMetrics) AddAgent(name string, d time.Duration, mode string, errCount int) {
	m.Agents = append(m.Agents, AgentMetrics{
		Name:     name,
		Duration: d,
		Mode:     mode,
		Errors:   errCount,
	})
	if mode == "passthrough" {
		m.LLMMode = "passthrough"
	}
}

// Finish marks the run as complete.
func (m *PipelineMetrics) Finish(score float64, errs []string) {
	m.FinishedAt = time.Now()
	m.Duration = m.FinishedAt.Sub(m.StartedAt)
	m.Score = score
	m.Errors = errs
}

// PrintSummary writes the styled report to w.
func (m *PipelineMetrics) PrintSummary(w io.Writer) {
	fmt.Fprintln(w, newReport(w).render(m))
}

// JSON returns the metrics as formatted JSON.
func (m *PipelineMetrics) JSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

func formatBytes(b int) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
