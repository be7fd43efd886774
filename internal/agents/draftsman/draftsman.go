// Package draftsman renders the aggregated model with every registered
// diagram plugin.
package draftsman

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/efebarandurmaz/codechart/internal/agents"
	"github.com/efebarandurmaz/codechart/internal/observability"
	"github.com/efebarandurmaz/codechart/internal/plugins"
)

type Draftsman struct{}

func New() *Draftsman { return &Draftsman{} }

func (d *Draftsman) Name() string { return "draftsman" }

// Run renders all diagrams concurrently. The model is shared read-only. A
// failing renderer is reported and its diagram left out; the others still
// complete.
func (d *Draftsman) Run(ctx context.Context, ac *agents.AgentContext) (*agents.AgentResult, error) {
	ctx, span := observability.StartAgentSpan(ctx, d.Name())
	defer span.End()

	result := agents.NewAgentResult()
	if ac.Model == nil {
		err := errors.New("no model to render")
		result.Status = agents.StatusFailed
		result.AddError(err.Error())
		result.Finalize()
		return result, err
	}
	if ac.Registry == nil {
		err := errors.New("no plugin registry configured")
		result.Status = agents.StatusFailed
		result.AddError(err.Error())
		result.Finalize()
		return result, err
	}

	targets := ac.Registry.Diagrams()
	result.Metrics.InputItems = len(targets)
	rendered := make([]*plugins.Diagram, len(targets))
	failures := make([]error, len(targets))

	var g errgroup.Group
	for i, p := range targets {
		g.Go(func() error {
			dctx, dspan := observability.StartDiagramSpan(ctx, p.Kind())
			defer dspan.End()
			content, err := p.Render(dctx, ac.Model)
			if err != nil {
				observability.RecordError(dspan, err)
				failures[i] = fmt.Errorf("render %s: %w", p.Kind(), err)
				return nil
			}
			rendered[i] = &plugins.Diagram{Kind: p.Kind(), FileName: p.FileName(), Content: content}
			return nil
		})
	}
	_ = g.Wait()

	for i := range targets {
		if failures[i] != nil {
			ac.Log().Warn("draftsman: renderer failed", "error", failures[i])
			result.AddError(failures[i].Error())
			result.Metrics.SkippedItems++
			continue
		}
		result.Diagrams = append(result.Diagrams, *rendered[i])
		result.Metrics.OutputItems++
	}
	if len(targets) > 0 {
		result.Score = float64(result.Metrics.OutputItems) / float64(len(targets))
	}
	if len(targets) > 0 && result.Metrics.OutputItems == 0 {
		result.Status = agents.StatusFailed
	}

	observability.SetAgentMetrics(span, result.Metrics.InputItems, result.Metrics.OutputItems, result.Metrics.SkippedItems, result.Score)
	result.Finalize()
	observability.Metrics().RecordAgentRun(d.Name(), string(result.Status), result.Metrics.Duration)
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}
