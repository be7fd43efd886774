// Package pipeline runs a full analysis: it makes the source tree available,
// maps it with the cartographer, folds it with the aggregator and renders the
// diagrams with the draftsman.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/efebarandurmaz/codechart/internal/agents"
	"github.com/efebarandurmaz/codechart/internal/agents/aggregator"
	"github.com/efebarandurmaz/codechart/internal/agents/cartographer"
	"github.com/efebarandurmaz/codechart/internal/agents/draftsman"
	"github.com/efebarandurmaz/codechart/internal/classify"
	"github.com/efebarandurmaz/codechart/internal/depgraph"
	"github.com/efebarandurmaz/codechart/internal/discovery"
	"github.com/efebarandurmaz/codechart/internal/graph"
	"github.com/efebarandurmaz/codechart/internal/history"
	"github.com/efebarandurmaz/codechart/internal/ir"
	"github.com/efebarandurmaz/codechart/internal/metrics"
	"github.com/efebarandurmaz/codechart/internal/observability"
	"github.com/efebarandurmaz/codechart/internal/plugins"
	"github.com/efebarandurmaz/codechart/internal/plugins/source/javascript"
	"github.com/efebarandurmaz/codechart/internal/plugins/target/mermaid"
	"github.com/efebarandurmaz/codechart/internal/vcs"
	"github.com/efebarandurmaz/codechart/internal/vector"
)

// Request names what to analyze.
type Request struct {
	// Source is a local directory or a git clone URL.
	Source string
	// AnalyzedAt stamps the run. Zero means now.
	AnalyzedAt time.Time
}

// Result is the analysis payload returned to callers and stored in history.
type Result struct {
	AnalysisID       string                      `json:"analysis_id"`
	RepoURL          string                      `json:"repo_url"`
	RepoName         string                      `json:"repo_name"`
	AnalyzedAt       time.Time                   `json:"analyzed_at"`
	OverallSummary   string                      `json:"overall_summary"`
	KeyFlows         []string                    `json:"key_flows"`
	FilesByCategory  map[string][]ir.FileSummary `json:"files_by_category"`
	Files            []*ir.FileRecord            `json:"files"`
	Dependencies     []ir.DependencyEdge         `json:"dependencies"`
	ClassDiagram     string                      `json:"class_diagram"`
	ComponentDiagram string                      `json:"component_diagram"`
	ERDiagram        string                      `json:"er_diagram"`
	GraphStats       depgraph.GraphStats         `json:"graph_stats"`
	Warnings         []string                    `json:"warnings,omitempty"`

	Root     string                         `json:"-"`
	Model    *ir.Model                      `json:"-"`
	Graph    *depgraph.Graph                `json:"-"`
	Diagrams []plugins.Diagram              `json:"-"`
	Skipped  []discovery.Skip               `json:"-"`
	Agents   map[string]*agents.AgentResult `json:"-"`
	Metrics  *metrics.PipelineMetrics       `json:"-"`
	Record   *history.Record                `json:"-"`
}

// Diagram returns the rendered content for kind, or "".
func (r *Result) Diagram(kind string) string {
	for _, d := range r.Diagrams {
		if d.Kind == kind {
			return d.Content
		}
	}
	return ""
}

// JSON returns the indented result payload.
func (r *Result) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Pipeline holds the collaborators of a run. The zero value is not usable;
// start from New.
type Pipeline struct {
	Registry   *plugins.Registry
	Classifier classify.Classifier
	Narrator   classify.Narrator
	GraphDB    graph.Repository
	VectorDB   *vector.Indexer
	History    *history.Store

	Discovery        discovery.Options
	Workers          int
	ClassifyTimeout  time.Duration
	NarrativeTimeout time.Duration
	SummarySample    int

	// WorkDir receives clones of remote sources. Empty means a temporary
	// directory that is removed after the run.
	WorkDir    string
	CloneDepth int

	Logger *slog.Logger
	// Progress receives the human-readable stage banners. Nil discards them.
	Progress io.Writer
	// Observer is told about stage transitions. It may be nil.
	Observer Observer
}

// Observer follows a run stage by stage. Calls for one analysis come from
// the goroutine running it.
type Observer interface {
	StageStarted(analysisID, stage string)
	StageFinished(analysisID, stage string, r *agents.AgentResult)
}

// New returns a pipeline with the default plugins and no collaborators, so
// every file falls back to the default category.
func New() *Pipeline {
	return &Pipeline{
		Registry:         DefaultRegistry(),
		Workers:          cartographer.DefaultWorkers,
		ClassifyTimeout:  30 * time.Second,
		NarrativeTimeout: 60 * time.Second,
		SummarySample:    aggregator.DefaultSummarySample,
	}
}

// DefaultRegistry registers the JavaScript source plugin and the three
// Mermaid diagram plugins.
func DefaultRegistry() *plugins.Registry {
	reg := plugins.NewRegistry()
	reg.RegisterSource(javascript.New())
	mermaid.RegisterDefaults(reg)
	return reg
}

// Run analyzes req with a default pipeline.
func Run(ctx context.Context, req Request) (*Result, error) {
	return New().Run(ctx, req)
}

func (p *Pipeline) log() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p *Pipeline) progress() io.Writer {
	if p.Progress != nil {
		return p.Progress
	}
	return io.Discard
}

// Run executes one analysis. Only a missing source tree or a failed clone
// aborts; every other problem is reported in the result's warnings.
func (p *Pipeline) Run(ctx context.Context, req Request) (res *Result, err error) {
	defer func() { observability.Metrics().RecordAnalysis(err) }()

	if req.Source == "" {
		return nil, errors.New("no source given")
	}
	if p.Registry == nil {
		p.Registry = DefaultRegistry()
	}
	out := p.progress()
	log := p.log()
	pm := metrics.New()

	analyzedAt := req.AnalyzedAt
	if analyzedAt.IsZero() {
		analyzedAt = time.Now()
	}
	analyzedAt = analyzedAt.UTC()

	root, hist, cleanup, err := p.prepare(ctx, req.Source)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	repoName := vcs.RepoName(req.Source)
	res = &Result{
		AnalysisID: history.NewID(repoName, analyzedAt),
		RepoURL:    req.Source,
		RepoName:   repoName,
		AnalyzedAt: analyzedAt,
		Root:       root,
		Agents:     make(map[string]*agents.AgentResult, 3),
		Metrics:    pm,
	}
	log.Info("pipeline: starting analysis", "id", res.AnalysisID, "root", root)

	ac := &agents.AgentContext{
		AnalysisID: res.AnalysisID,
		Root:       root,
		Classifier: p.Classifier,
		Narrator:   p.Narrator,
		History:    hist,
		GraphDB:    p.GraphDB,
		VectorDB:   p.VectorDB,
		Registry:   p.Registry,
		Discovery:  p.Discovery,
		Workers:    p.Workers,
		Logger:     log,
	}

	// Step 1: Cartographer
	fmt.Fprintln(out, "\n=== Cartographer: Mapping source ===")
	cart := cartographer.New()
	p.stageStarted(res.AnalysisID, cart.Name())
	if p.ClassifyTimeout > 0 {
		cart.ClassifyTimeout = p.ClassifyTimeout
	}
	cartResult, err := cart.Run(ctx, ac)
	if err != nil {
		return nil, fmt.Errorf("cartographer: %w", err)
	}
	p.record(res, cart.Name(), cartResult)
	p.stageFinished(res.AnalysisID, cart.Name(), cartResult)
	res.Skipped = cartResult.Skipped
	fmt.Fprintf(out, "  Mapped %d files, %d skipped [%s]\n",
		len(cartResult.Files), len(cartResult.Skipped), mode(cartResult))

	// Step 2: Aggregator
	fmt.Fprintln(out, "\n=== Aggregator: Folding model ===")
	agg := aggregator.New()
	p.stageStarted(res.AnalysisID, agg.Name())
	if p.SummarySample > 0 {
		agg.SummarySample = p.SummarySample
	}
	if p.NarrativeTimeout > 0 {
		agg.NarrativeTimeout = p.NarrativeTimeout
	}
	ac.Files = cartResult.Files
	aggResult, err := agg.Run(ctx, ac)
	if err != nil {
		return nil, fmt.Errorf("aggregator: %w", err)
	}
	p.record(res, agg.Name(), aggResult)
	p.stageFinished(res.AnalysisID, agg.Name(), aggResult)
	model := aggResult.Model
	fmt.Fprintf(out, "  %d categories, %d dependencies\n", len(model.CategoryOrder), len(model.Edges))

	// Step 3: Draftsman
	fmt.Fprintln(out, "\n=== Draftsman: Rendering diagrams ===")
	drafts := draftsman.New()
	p.stageStarted(res.AnalysisID, drafts.Name())
	ac.Model = model
	draftResult, err := drafts.Run(ctx, ac)
	if err != nil {
		return nil, fmt.Errorf("draftsman: %w", err)
	}
	p.record(res, drafts.Name(), draftResult)
	p.stageFinished(res.AnalysisID, drafts.Name(), draftResult)
	fmt.Fprintf(out, "  Rendered %d diagrams\n", len(draftResult.Diagrams))

	res.Model = model
	res.OverallSummary = model.Summary
	res.KeyFlows = model.KeyFlows
	res.FilesByCategory = model.Groups
	res.Files = model.Files
	res.Dependencies = model.Edges
	res.Diagrams = draftResult.Diagrams
	res.ClassDiagram = res.Diagram(mermaid.KindClass)
	res.ComponentDiagram = res.Diagram(mermaid.KindComponent)
	res.ERDiagram = res.Diagram(mermaid.KindER)
	res.Graph = depgraph.Analyze(model)
	res.GraphStats = res.Graph.Stats

	res.Record = history.NewRecord(res.AnalysisID, res.RepoURL, res.RepoName, root, analyzedAt, model, res.Diagrams, res.Agents)
	res.Record.Result = encode(res)
	if p.History != nil {
		if err := p.History.Save(ctx, res.Record); err != nil {
			log.Warn("pipeline: history save failed", "id", res.AnalysisID, "error", err)
			res.Warnings = append(res.Warnings, err.Error())
			// Keep the attached payload in step with the returned result.
			res.Record.Result = encode(res)
		}
	}

	pm.CollectSource(root, len(res.Skipped), model)
	pm.CollectDiagrams(res.Diagrams)
	var errs []string
	for _, name := range []string{cart.Name(), agg.Name(), drafts.Name()} {
		errs = append(errs, res.Agents[name].Errors...)
	}
	pm.Finish(res.Record.Score, errs)

	log.Info("pipeline: analysis complete", "id", res.AnalysisID, "status", res.Record.Status, "score", res.Record.Score)
	return res, nil
}

func encode(res *Result) json.RawMessage {
	payload, err := json.Marshal(res)
	if err != nil {
		return nil
	}
	return payload
}

func (p *Pipeline) record(res *Result, name string, r *agents.AgentResult) {
	res.Agents[name] = r
	res.Warnings = append(res.Warnings, r.Warnings...)
	var d time.Duration
	if r.Metrics != nil {
		d = r.Metrics.Duration
	}
	res.Metrics.AddAgent(name, d, mode(r), len(r.Errors))
}

func (p *Pipeline) stageStarted(id, stage string) {
	if p.Observer != nil {
		p.Observer.StageStarted(id, stage)
	}
}

func (p *Pipeline) stageFinished(id, stage string, r *agents.AgentResult) {
	if p.Observer != nil {
		p.Observer.StageFinished(id, stage, r)
	}
}

func mode(r *agents.AgentResult) string {
	if r.Status == agents.StatusPassthrough {
		return "passthrough"
	}
	return "llm"
}

// prepare makes source available as a local tree. Remote sources are cloned;
// local ones are read in place.
func (p *Pipeline) prepare(ctx context.Context, source string) (string, vcs.History, func(), error) {
	noop := func() {}
	if !vcs.IsRemote(source) {
		root, err := filepath.Abs(source)
		if err != nil {
			return "", nil, noop, fmt.Errorf("resolve %s: %w", source, err)
		}
		return root, vcs.OpenHistory(root), noop, nil
	}

	base := p.WorkDir
	if base != "" {
		if err := os.MkdirAll(base, 0o755); err != nil {
			return "", nil, noop, fmt.Errorf("create work dir: %w", err)
		}
	}
	dir, err := os.MkdirTemp(base, "codechart-"+vcs.RepoName(source)+"-")
	if err != nil {
		return "", nil, noop, fmt.Errorf("create clone dir: %w", err)
	}
	cleanup := func() {
		if p.WorkDir == "" {
			os.RemoveAll(dir)
		}
	}

	fmt.Fprintf(p.progress(), "Cloning %s\n", source)
	repo, err := vcs.Clone(ctx, source, dir, vcs.CloneOptions{Depth: p.CloneDepth})
	if err != nil {
		cleanup()
		return "", nil, noop, err
	}
	return repo.Root(), repo, cleanup, nil
}
