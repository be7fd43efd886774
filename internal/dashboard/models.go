package dashboard

import (
	"strings"
	"time"
)

// RunStatus represents the state of an analysis run.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// Run tracks one analysis triggered over the API. Its ID is the analysis id
// the result is stored under in history.
type Run struct {
	ID          string        `json:"id"`
	Source      string        `json:"source"`
	RepoName    string        `json:"repo_name"`
	Status      RunStatus     `json:"status"`
	Stages      []StageResult `json:"stages"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Error       string        `json:"error,omitempty"`
	Files       int           `json:"files"`
	Diagrams    int           `json:"diagrams"`
	Score       float64       `json:"score"`
	LLMCalls    int           `json:"llm_calls"`
	Warnings    []string      `json:"warnings,omitempty"`
}

// StageResult is one agent's execution inside a run.
type StageResult struct {
	Stage       string        `json:"stage"`
	Status      RunStatus     `json:"status"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration_ms"`
	Score       float64       `json:"score"`
	Mode        string        `json:"mode,omitempty"`
	LLMCalls    int           `json:"llm_calls"`
	Errors      int           `json:"errors"`
}

// Stats aggregates the tracked runs.
type Stats struct {
	TotalRuns     int     `json:"total_runs"`
	ActiveRuns    int     `json:"active_runs"`
	CompletedRuns int     `json:"completed_runs"`
	FailedRuns    int     `json:"failed_runs"`
	TotalLLMCalls int     `json:"total_llm_calls"`
	AvgDuration   float64 `json:"avg_duration_seconds"`
	SuccessRate   float64 `json:"success_rate"`
}

// Event is pushed to SSE subscribers.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// Event types.
const (
	EventConnected     = "connected"
	EventRunStarted    = "run.started"
	EventStageStarted  = "stage.started"
	EventStageFinished = "stage.finished"
	EventRunCompleted  = "run.completed"
	EventRunFailed     = "run.failed"
)

// AnalyzeRequest is the body of POST /api/analyses.
type AnalyzeRequest struct {
	// Repo is a git URL or a directory visible to the server.
	Repo string `json:"repo"`
	// Source and RepoURL are accepted as aliases of Repo.
	Source  string `json:"source,omitempty"`
	RepoURL string `json:"repo_url,omitempty"`
}

// Target returns the first non-empty of Repo, Source and RepoURL.
func (r AnalyzeRequest) Target() string {
	for _, v := range []string{r.Repo, r.Source, r.RepoURL} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
