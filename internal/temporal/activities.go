package temporal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"go.temporal.io/sdk/temporal"

	"github.com/efebarandurmaz/codechart/internal/agents"
	"github.com/efebarandurmaz/codechart/internal/agents/aggregator"
	"github.com/efebarandurmaz/codechart/internal/agents/cartographer"
	"github.com/efebarandurmaz/codechart/internal/agents/draftsman"
	"github.com/efebarandurmaz/codechart/internal/discovery"
	"github.com/efebarandurmaz/codechart/internal/history"
	"github.com/efebarandurmaz/codechart/internal/ir"
	"github.com/efebarandurmaz/codechart/internal/plugins"
	"github.com/efebarandurmaz/codechart/internal/vcs"
)

const errRootNotFound = "RootNotFound"

// ActivityResult is the serializable result passed between activities.
// Payload carries the stage output as JSON: files, model or diagrams.
type ActivityResult struct {
	Agent    string
	Root     string // set by the cartographer
	Payload  string
	Status   string
	Score    float64
	Duration time.Duration
	LLMCalls int
	Errors   []string
	Warnings []string
}

// SaveInput carries everything SaveActivity needs to build a history record.
type SaveInput struct {
	Analysis     AnalysisInput
	Root         string
	ModelJSON    string
	DiagramsJSON string
	Stages       []ActivityResult
}

// SaveResult reports the overall verdict and whether a record was written.
type SaveResult struct {
	Status string
	Score  float64
	Saved  bool
}

// Dependencies holds shared resources injected into activities.
type Dependencies struct {
	Agent    agents.AgentContext // Template for building per-activity contexts
	Registry *plugins.Registry
	History  *history.Store

	ClassifyTimeout  time.Duration
	NarrativeTimeout time.Duration
	SummarySample    int
	CloneDepth       int
}

var deps *Dependencies

// SetDependencies injects shared resources (called during worker setup).
func SetDependencies(d *Dependencies) {
	deps = d
}

var errNoDependencies = errors.New("worker dependencies not set")

func newContext(input AnalysisInput) *agents.AgentContext {
	ac := deps.Agent
	ac.AnalysisID = input.AnalysisID
	ac.Registry = deps.Registry
	return &ac
}

func CartographerActivity(ctx context.Context, input AnalysisInput) (ActivityResult, error) {
	if deps == nil || deps.Registry == nil {
		return ActivityResult{}, errNoDependencies
	}
	ac := newContext(input)
	ac.Root = input.Source

	if vcs.IsRemote(input.Source) {
		dir, err := os.MkdirTemp("", "codechart-"+input.RepoName+"-")
		if err != nil {
			return ActivityResult{}, fmt.Errorf("create clone dir: %w", err)
		}
		defer os.RemoveAll(dir)
		repo, err := vcs.Clone(ctx, input.Source, dir, vcs.CloneOptions{Depth: deps.CloneDepth})
		if err != nil {
			return ActivityResult{}, err
		}
		ac.Root = repo.Root()
		ac.History = repo
	} else if ac.History == nil {
		ac.History = vcs.OpenHistory(input.Source)
	}

	agent := cartographer.New()
	if deps.ClassifyTimeout > 0 {
		agent.ClassifyTimeout = deps.ClassifyTimeout
	}
	result, err := agent.Run(ctx, ac)
	if err != nil {
		if errors.Is(err, discovery.ErrRootNotFound) {
			return ActivityResult{}, temporal.NewNonRetryableApplicationError(err.Error(), errRootNotFound, err)
		}
		return ActivityResult{}, err
	}

	filesJSON, err := json.Marshal(result.Files)
	if err != nil {
		return ActivityResult{}, fmt.Errorf("marshal files: %w", err)
	}
	out := stageResult(agent.Name(), result, filesJSON)
	out.Root = ac.Root
	return out, nil
}

func AggregatorActivity(ctx context.Context, input AnalysisInput, filesJSON string) (ActivityResult, error) {
	if deps == nil {
		return ActivityResult{}, errNoDependencies
	}
	var files []*ir.FileRecord
	if err := json.Unmarshal([]byte(filesJSON), &files); err != nil {
		return ActivityResult{}, fmt.Errorf("unmarshal files: %w", err)
	}

	ac := newContext(input)
	ac.Files = files

	agent := aggregator.New()
	if deps.SummarySample > 0 {
		agent.SummarySample = deps.SummarySample
	}
	if deps.NarrativeTimeout > 0 {
		agent.NarrativeTimeout = deps.NarrativeTimeout
	}
	result, err := agent.Run(ctx, ac)
	if err != nil {
		return ActivityResult{}, err
	}

	modelJSON, err := json.Marshal(result.Model)
	if err != nil {
		return ActivityResult{}, fmt.Errorf("marshal model: %w", err)
	}
	return stageResult(agent.Name(), result, modelJSON), nil
}

func DraftsmanActivity(ctx context.Context, input AnalysisInput, modelJSON string) (ActivityResult, error) {
	if deps == nil {
		return ActivityResult{}, errNoDependencies
	}
	model, err := decodeModel(modelJSON)
	if err != nil {
		return ActivityResult{}, err
	}

	ac := newContext(input)
	ac.Model = model

	agent := draftsman.New()
	result, err := agent.Run(ctx, ac)
	if err != nil {
		return ActivityResult{}, err
	}

	diagramsJSON, err := json.Marshal(result.Diagrams)
	if err != nil {
		return ActivityResult{}, fmt.Errorf("marshal diagrams: %w", err)
	}
	return stageResult(agent.Name(), result, diagramsJSON), nil
}

// SaveActivity writes the history record. Without a configured store it only
// computes the overall verdict.
func SaveActivity(ctx context.Context, input SaveInput) (SaveResult, error) {
	model, err := decodeModel(input.ModelJSON)
	if err != nil {
		return SaveResult{}, err
	}
	var diagrams []plugins.Diagram
	if input.DiagramsJSON != "" {
		if err := json.Unmarshal([]byte(input.DiagramsJSON), &diagrams); err != nil {
			return SaveResult{}, fmt.Errorf("unmarshal diagrams: %w", err)
		}
	}

	stages := make(map[string]*agents.AgentResult, len(input.Stages))
	for _, s := range input.Stages {
		stages[s.Agent] = s.agentResult()
	}
	a := input.Analysis
	rec := history.NewRecord(a.AnalysisID, a.Source, a.RepoName, input.Root, a.AnalyzedAt, model, diagrams, stages)
	out := SaveResult{Status: rec.Status, Score: rec.Score}

	if deps == nil || deps.History == nil {
		return out, nil
	}
	if err := deps.History.Save(ctx, rec); err != nil {
		return out, err
	}
	out.Saved = true
	return out, nil
}

func stageResult(name string, r *agents.AgentResult, payload []byte) ActivityResult {
	out := ActivityResult{
		Agent:    name,
		Payload:  string(payload),
		Status:   string(r.Status),
		Score:    r.Score,
		Errors:   r.Errors,
		Warnings: r.Warnings,
	}
	if r.Metrics != nil {
		out.Duration = r.Metrics.Duration
		out.LLMCalls = r.Metrics.LLMCalls
	}
	return out
}

func (r ActivityResult) agentResult() *agents.AgentResult {
	res := agents.NewAgentResult()
	res.Status = agents.AgentStatus(r.Status)
	res.Score = r.Score
	res.Errors = r.Errors
	res.Warnings = r.Warnings
	res.Metrics.Duration = r.Duration
	res.Metrics.LLMCalls = r.LLMCalls
	return res
}

// overall mirrors the record verdict: lowest stage score, worst status.
func overall(stages []ActivityResult) (string, float64) {
	status := string(agents.StatusSuccess)
	score := 1.0
	for _, s := range stages {
		if s.Score < score {
			score = s.Score
		}
		switch agents.AgentStatus(s.Status) {
		case agents.StatusFailed:
			status = string(agents.StatusFailed)
		case agents.StatusPartial:
			if status != string(agents.StatusFailed) {
				status = string(agents.StatusPartial)
			}
		}
	}
	return status, score
}

func decodeModel(modelJSON string) (*ir.Model, error) {
	var model ir.Model
	if err := json.Unmarshal([]byte(modelJSON), &model); err != nil {
		return nil, fmt.Errorf("unmarshal model: %w", err)
	}
	return &model, nil
}

func decodeDiagrams(diagramsJSON string) (map[string]string, error) {
	var diagrams []plugins.Diagram
	if err := json.Unmarshal([]byte(diagramsJSON), &diagrams); err != nil {
		return nil, fmt.Errorf("unmarshal diagrams: %w", err)
	}
	out := make(map[string]string, len(diagrams))
	for _, d := range diagrams {
		out[d.Kind] = d.Content
	}
	return out, nil
}
