// Package aggregator folds per-file records into the project model.
package aggregator

import (
	"context"
	"fmt"
	"time"

	"github.com/efebarandurmaz/codechart/internal/agents"
	"github.com/efebarandurmaz/codechart/internal/classify"
	"github.com/efebarandurmaz/codechart/internal/ir"
	"github.com/efebarandurmaz/codechart/internal/observability"
)

// DefaultSummarySample is how many file summaries feed the narrative.
const DefaultSummarySample = 10

// Aggregator builds the immutable ir.Model and asks the narrator for the
// project overview.
type Aggregator struct {
	SummarySample    int
	NarrativeTimeout time.Duration
}

func New() *Aggregator {
	return &Aggregator{SummarySample: DefaultSummarySample, NarrativeTimeout: 60 * time.Second}
}

func (a *Aggregator) Name() string { return "aggregator" }

// Fold groups file summaries by category in first-seen order and
// concatenates edges in file order. It does not modify the records.
func Fold(files []*ir.FileRecord) *ir.Model {
	m := &ir.Model{
		Files:         files,
		Groups:        make(map[string][]ir.FileSummary),
		CategoryOrder: []string{},
		Edges:         []ir.DependencyEdge{},
		KeyFlows:      []string{},
	}
	for _, f := range files {
		if _, seen := m.Groups[f.Category]; !seen {
			m.CategoryOrder = append(m.CategoryOrder, f.Category)
		}
		m.Groups[f.Category] = append(m.Groups[f.Category], f.FileSummary())
		m.Edges = append(m.Edges, f.Dependencies...)
	}
	return m
}

// Sample returns the first n summaries of readable files.
func Sample(files []*ir.FileRecord, n int) []string {
	out := make([]string, 0, n)
	for _, f := range files {
		if len(out) == n {
			break
		}
		if f.Degraded {
			continue
		}
		out = append(out, f.Summary)
	}
	return out
}

// Narrate makes one narrator call and returns the fallback narrative on any
// failure. The error is returned alongside for reporting.
func (a *Aggregator) Narrate(ctx context.Context, n classify.Narrator, files []*ir.FileRecord) (classify.Narrative, error) {
	if n == nil {
		return classify.FallbackNarrative(), classify.ErrNoProvider
	}
	sample := a.SummarySample
	if sample <= 0 {
		sample = DefaultSummarySample
	}
	if a.NarrativeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.NarrativeTimeout)
		defer cancel()
	}

	res, err := safeNarrate(ctx, n, Sample(files, sample))
	if err != nil {
		return classify.FallbackNarrative(), err
	}
	if res.Summary == "" {
		res.Summary = classify.FallbackNarrativeSummary
	}
	if res.KeyFlows == nil {
		res.KeyFlows = []string{}
	}
	return res, nil
}

func safeNarrate(ctx context.Context, n classify.Narrator, summaries []string) (res classify.Narrative, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("narrator panic: %v", r)
		}
	}()
	return n.Narrate(ctx, summaries)
}

// Run folds ac.Files, attaches the narrative and, when stores are configured,
// persists the model. Store failures are warnings.
func (a *Aggregator) Run(ctx context.Context, ac *agents.AgentContext) (*agents.AgentResult, error) {
	ctx, span := observability.StartAgentSpan(ctx, a.Name())
	defer span.End()

	result := agents.NewAgentResult()
	log := ac.Log()
	result.Metrics.InputItems = len(ac.Files)

	m := Fold(ac.Files)

	start := time.Now()
	narrative, err := a.Narrate(ctx, ac.Narrator, ac.Files)
	if ac.Narrator != nil {
		result.RecordLLMCall(time.Since(start), 0, 0)
	}
	if err != nil {
		log.Warn("aggregator: narrative unavailable", "error", err)
		result.AddWarning(fmt.Sprintf("narrative: %v", err))
		result.Score = 0.5
	}
	m.Summary = narrative.Summary
	m.KeyFlows = narrative.KeyFlows

	if ac.GraphDB != nil {
		if err := a.storeGraph(ctx, ac, m); err != nil {
			log.Warn("aggregator: graph store failed", "error", err)
			result.AddWarning(err.Error())
		}
	}
	if ac.VectorDB != nil {
		n, err := a.indexSummaries(ctx, ac, m)
		if err != nil {
			log.Warn("aggregator: vector index failed", "error", err)
			result.AddWarning(err.Error())
		}
		result.Metadata["indexed_summaries"] = fmt.Sprintf("%d", n)
	}

	result.Model = m
	result.Files = m.Files
	result.Metrics.OutputItems = len(m.CategoryOrder)
	result.Metadata["categories"] = fmt.Sprintf("%d", len(m.CategoryOrder))
	result.Metadata["edges"] = fmt.Sprintf("%d", len(m.Edges))

	observability.SetAgentMetrics(span, result.Metrics.InputItems, result.Metrics.OutputItems, 0, result.Score)
	result.Finalize()
	observability.Metrics().RecordAgentRun(a.Name(), string(result.Status), result.Metrics.Duration)
	return result, nil
}

func (a *Aggregator) storeGraph(ctx context.Context, ac *agents.AgentContext, m *ir.Model) error {
	ctx, span := observability.StartStoreSpan(ctx, "neo4j", len(m.Files))
	defer span.End()
	if err := ac.GraphDB.StoreModel(ctx, ac.AnalysisID, m); err != nil {
		observability.RecordError(span, err)
		return fmt.Errorf("graph store: %w", err)
	}
	return nil
}

func (a *Aggregator) indexSummaries(ctx context.Context, ac *agents.AgentContext, m *ir.Model) (int, error) {
	ctx, span := observability.StartStoreSpan(ctx, "qdrant", len(m.Files))
	defer span.End()
	n, err := ac.VectorDB.IndexFiles(ctx, ac.AnalysisID, m.Files)
	if err != nil {
		observability.RecordError(span, err)
		return n, fmt.Errorf("vector index: %w", err)
	}
	return n, nil
}
