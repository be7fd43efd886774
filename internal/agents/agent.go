package agents

import (
	"context"
	"log/slog"
	"time"

	"github.com/efebarandurmaz/codechart/internal/classify"
	"github.com/efebarandurmaz/codechart/internal/discovery"
	"github.com/efebarandurmaz/codechart/internal/graph"
	"github.com/efebarandurmaz/codechart/internal/ir"
	"github.com/efebarandurmaz/codechart/internal/plugins"
	"github.com/efebarandurmaz/codechart/internal/vcs"
	"github.com/efebarandurmaz/codechart/internal/vector"
)

// ResultVersion is stamped on every AgentResult.
const ResultVersion = "1.0.0"

// Agent is the interface for all pipeline agents.
type Agent interface {
	// Name returns the agent identifier.
	Name() string
	// Run executes the agent's task.
	Run(ctx context.Context, ac *AgentContext) (*AgentResult, error)
}

// AgentContext provides shared resources to agents. Agents read the fields
// they need and leave the rest alone; nil collaborators mean "not
// configured".
type AgentContext struct {
	// AnalysisID keys everything persisted for this run.
	AnalysisID string
	// Root is the directory being analyzed.
	Root string

	// Files is the cartographer's output, Model the aggregator's.
	Files []*ir.FileRecord
	Model *ir.Model

	Classifier classify.Classifier
	Narrator   classify.Narrator
	History    vcs.History

	GraphDB  graph.Repository
	VectorDB *vector.Indexer

	Registry  *plugins.Registry
	Discovery discovery.Options
	Workers   int
	Params    map[string]string
	Logger    *slog.Logger
}

// Log returns the context's logger or the default one.
func (ac *AgentContext) Log() *slog.Logger {
	if ac.Logger != nil {
		return ac.Logger
	}
	return slog.Default()
}

// AgentStatus is the outcome of an agent run.
type AgentStatus string

const (
	StatusSuccess     AgentStatus = "success"
	StatusPartial     AgentStatus = "partial"
	StatusFailed      AgentStatus = "failed"
	StatusPassthrough AgentStatus = "passthrough"
)

// AgentMetrics records timing and volume for one agent run.
type AgentMetrics struct {
	StartTime        time.Time     `json:"start_time"`
	EndTime          time.Time     `json:"end_time"`
	Duration         time.Duration `json:"duration"`
	InputItems       int           `json:"input_items"`
	OutputItems      int           `json:"output_items"`
	SkippedItems     int           `json:"skipped_items"`
	LLMCalls         int           `json:"llm_calls"`
	LLMDuration      time.Duration `json:"llm_duration"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
}

// AgentResult captures agent output.
type AgentResult struct {
	Version string      `json:"version"`
	Status  AgentStatus `json:"status"`

	Files    []*ir.FileRecord  `json:"files,omitempty"`
	Model    *ir.Model         `json:"model,omitempty"`
	Diagrams []plugins.Diagram `json:"diagrams,omitempty"`
	Skipped  []discovery.Skip  `json:"skipped,omitempty"`

	// Score is the fraction of inputs handled without falling back.
	Score    float64           `json:"score"`
	Errors   []string          `json:"errors"`
	Warnings []string          `json:"warnings"`
	Metadata map[string]string `json:"metadata"`
	Metrics  *AgentMetrics     `json:"metrics"`
}

// NewAgentResult returns a successful, empty result with its clock started.
func NewAgentResult() *AgentResult {
	return &AgentResult{
		Version:  ResultVersion,
		Status:   StatusSuccess,
		Score:    1.0,
		Errors:   []string{},
		Warnings: []string{},
		Metadata: make(map[string]string),
		Metrics:  &AgentMetrics{StartTime: time.Now()},
	}
}

// Finalize stops the clock. A successful result with errors becomes partial.
func (r *AgentResult) Finalize() {
	r.Metrics.EndTime = time.Now()
	r.Metrics.Duration = r.Metrics.EndTime.Sub(r.Metrics.StartTime)
	if r.Status == StatusSuccess && len(r.Errors) > 0 {
		r.Status = StatusPartial
	}
}

// AddError records a non-fatal error.
func (r *AgentResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	if r.Status == StatusSuccess {
		r.Status = StatusPartial
	}
}

// AddWarning records a degradation that does not change the status.
func (r *AgentResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// SetPassthrough marks a run that skipped its collaborator entirely.
func (r *AgentResult) SetPassthrough(reason string) {
	r.Status = StatusPassthrough
	r.Metadata["mode"] = "passthrough"
	r.Metadata["passthrough_reason"] = reason
}

// RecordLLMCall accumulates one collaborator call.
func (r *AgentResult) RecordLLMCall(d time.Duration, promptTokens, completionTokens int) {
	r.Metrics.LLMCalls++
	r.Metrics.LLMDuration += d
	r.Metrics.PromptTokens += promptTokens
	r.Metrics.CompletionTokens += completionTokens
}
