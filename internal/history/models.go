package history

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/efebarandurmaz/codechart/internal/agents"
	"github.com/efebarandurmaz/codechart/internal/ir"
	"github.com/efebarandurmaz/codechart/internal/plugins"
)

// Record is one stored analysis.
type Record struct {
	ID         string            `json:"id"`
	RepoURL    string            `json:"repo_url"`
	RepoName   string            `json:"repo_name"`
	AnalyzedAt time.Time         `json:"analyzed_at"`
	Status     string            `json:"status"` // success, partial, failed
	Score      float64           `json:"score"`
	Stages     []AgentStageInfo  `json:"agent_stages"`
	Files      []FileEntry       `json:"file_manifest"`
	Diagrams   map[string]string `json:"diagrams"`

	// Result is the full analysis payload as returned to callers.
	Result json.RawMessage `json:"result,omitempty"`
}

// AgentStageInfo captures per-agent metadata of a run.
type AgentStageInfo struct {
	Name             string        `json:"name"` // cartographer, aggregator, draftsman
	Status           string        `json:"status"`
	Score            float64       `json:"score"`
	Duration         time.Duration `json:"duration"`
	LLMCalls         int           `json:"llm_calls"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	ErrorCount       int           `json:"error_count"`
	WarningCount     int           `json:"warning_count"`
}

func (s AgentStageInfo) tokens() int { return s.PromptTokens + s.CompletionTokens }

// FileEntry records the analyzed facts of one file with a hash over them.
type FileEntry struct {
	Path     string `json:"path"` // relative to the analyzed root
	Category string `json:"category"`
	LOC      int    `json:"loc"`
	Hash     string `json:"hash"`
}

// Summary is the minimal info for listing analyses.
type Summary struct {
	ID         string    `json:"id"`
	RepoURL    string    `json:"repo_url"`
	RepoName   string    `json:"repo_name"`
	AnalyzedAt time.Time `json:"analyzed_at"`
	Status     string    `json:"status,omitempty"`
	Score      float64   `json:"score"`
	FileCount  int       `json:"file_count"`
}

// NewID returns the analysis id for repoName at t: "<name>_<unix millis>".
func NewID(repoName string, t time.Time) string {
	return fmt.Sprintf("%s_%d", repoName, t.UnixMilli())
}

// NewRecord builds a Record from a finished run.
func NewRecord(
	id, repoURL, repoName, root string,
	analyzedAt time.Time,
	model *ir.Model,
	diagrams []plugins.Diagram,
	agentResults map[string]*agents.AgentResult,
) *Record {
	rec := &Record{
		ID:         id,
		RepoURL:    repoURL,
		RepoName:   repoName,
		AnalyzedAt: analyzedAt,
		Status:     string(agents.StatusSuccess),
		Score:      1.0,
		Diagrams:   make(map[string]string, len(diagrams)),
	}

	if model != nil {
		for _, f := range model.Files {
			rec.Files = append(rec.Files, FileEntry{
				Path:     relPath(root, f.Path),
				Category: f.Category,
				LOC:      f.Metrics.LOC,
				Hash:     FactsHash(f),
			})
		}
		sort.Slice(rec.Files, func(i, j int) bool { return rec.Files[i].Path < rec.Files[j].Path })
	}
	for _, d := range diagrams {
		rec.Diagrams[d.Kind] = d.Content
	}

	names := make([]string, 0, len(agentResults))
	for name := range agentResults {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		result := agentResults[name]
		stage := AgentStageInfo{
			Name:         name,
			Status:       string(result.Status),
			Score:        result.Score,
			ErrorCount:   len(result.Errors),
			WarningCount: len(result.Warnings),
		}
		if result.Metrics != nil {
			stage.Duration = result.Metrics.Duration
			stage.LLMCalls = result.Metrics.LLMCalls
			stage.PromptTokens = result.Metrics.PromptTokens
			stage.CompletionTokens = result.Metrics.CompletionTokens
		}
		// The run is only as good as its weakest stage.
		if result.Score < rec.Score {
			rec.Score = result.Score
		}
		switch result.Status {
		case agents.StatusFailed:
			rec.Status = string(agents.StatusFailed)
		case agents.StatusPartial:
			if rec.Status != string(agents.StatusFailed) {
				rec.Status = string(agents.StatusPartial)
			}
		}
		rec.Stages = append(rec.Stages, stage)
	}

	return rec
}

// FactsHash is a SHA-256 over the analyzed facts of f.
func FactsHash(f *ir.FileRecord) string {
	h := sha256.New()
	h.Write([]byte(f.Category))
	h.Write([]byte{0})
	h.Write([]byte(f.Summary))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(f.Functions, ",")))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(f.Libraries, ",")))
	return hex.EncodeToString(h.Sum(nil))
}

// Summary returns a lightweight summary of this record.
func (r *Record) Summary() Summary {
	return Summary{
		ID:         r.ID,
		RepoURL:    r.RepoURL,
		RepoName:   r.RepoName,
		AnalyzedAt: r.AnalyzedAt,
		Status:     r.Status,
		Score:      r.Score,
		FileCount:  len(r.Files),
	}
}

func relPath(root, path string) string {
	if root == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
