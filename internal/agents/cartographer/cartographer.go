package cartographer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/efebarandurmaz/codechart/internal/agents"
	"github.com/efebarandurmaz/codechart/internal/classify"
	"github.com/efebarandurmaz/codechart/internal/discovery"
	"github.com/efebarandurmaz/codechart/internal/ir"
	"github.com/efebarandurmaz/codechart/internal/observability"
	"github.com/efebarandurmaz/codechart/internal/plugins"
)

// DefaultWorkers bounds concurrent file processing when the context does
// not set Workers.
const DefaultWorkers = 8

// Cartographer discovers source files and turns each one into a FileRecord.
type Cartographer struct {
	// ClassifyTimeout bounds each classification call. Zero disables the
	// per-call deadline.
	ClassifyTimeout time.Duration
}

func New() *Cartographer { return &Cartographer{ClassifyTimeout: 30 * time.Second} }

func (c *Cartographer) Name() string { return "cartographer" }

// outcome is what one worker reports back. Workers never touch the shared
// result; it is folded after the join.
type outcome struct {
	rec         *ir.FileRecord
	classified  bool
	classifyErr error
	llmTime     time.Duration
}

func (c *Cartographer) Run(ctx context.Context, ac *agents.AgentContext) (*agents.AgentResult, error) {
	ctx, span := observability.StartAgentSpan(ctx, c.Name())
	defer span.End()

	result := agents.NewAgentResult()
	log := ac.Log()
	root := ac.Root
	if root == "" {
		root = ac.Params["input"]
	}
	result.Metadata["input_path"] = root

	if ac.Registry == nil {
		err := errors.New("no plugin registry configured")
		return c.fail(result, span, err)
	}

	opts := ac.Discovery
	if len(opts.Extensions) == 0 {
		opts.Extensions = ac.Registry.Extensions()
	}
	if opts.Logger == nil {
		opts.Logger = log
	}

	found, err := discovery.Walk(root, opts)
	if err != nil {
		return c.fail(result, span, fmt.Errorf("discovering files: %w", err))
	}
	for _, s := range found.Skipped {
		result.AddWarning(fmt.Sprintf("skipped %s: %s", s.Path, s.Reason))
	}
	result.Skipped = found.Skipped
	result.Metrics.InputItems = len(found.Files)
	log.Info("cartographer: discovered files", "root", root, "files", len(found.Files), "skipped", len(found.Skipped))

	if ac.Classifier == nil {
		result.SetPassthrough("no classifier configured")
	}

	workers := ac.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	metrics := observability.Metrics()

	outcomes := make([]outcome, len(found.Files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range found.Files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			metrics.ActiveWorkers.Inc()
			defer metrics.ActiveWorkers.Dec()
			outcomes[i] = c.processFile(gctx, ac, root, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return c.fail(result, span, fmt.Errorf("processing files: %w", err))
	}

	classified := 0
	records := make([]*ir.FileRecord, 0, len(outcomes))
	for _, o := range outcomes {
		records = append(records, o.rec)
		metrics.RecordFile(o.rec.Degraded, len(o.rec.Dependencies))
		if o.rec.Degraded {
			result.Metrics.SkippedItems++
			result.AddWarning(fmt.Sprintf("degraded %s: %s", o.rec.Path, o.rec.Error))
			continue
		}
		result.Metrics.OutputItems++
		if ac.Classifier == nil {
			continue
		}
		result.RecordLLMCall(o.llmTime, 0, 0)
		if o.classified {
			classified++
		} else if o.classifyErr != nil {
			result.AddWarning(fmt.Sprintf("classify %s: %v", o.rec.Name, o.classifyErr))
		}
	}
	result.Files = records

	if ac.Classifier != nil && result.Metrics.OutputItems > 0 {
		result.Score = float64(classified) / float64(result.Metrics.OutputItems)
	}

	edges := 0
	for _, r := range records {
		edges += len(r.Dependencies)
	}
	result.Metadata["files_analyzed"] = fmt.Sprintf("%d", len(records))
	result.Metadata["edges_resolved"] = fmt.Sprintf("%d", edges)

	observability.SetAgentMetrics(span, result.Metrics.InputItems, result.Metrics.OutputItems, result.Metrics.SkippedItems, result.Score)
	result.Finalize()
	metrics.RecordAgentRun(c.Name(), string(result.Status), result.Metrics.Duration)
	return result, nil
}

// processFile never fails: read and decode problems yield a degraded record,
// classification problems leave the defaults in place.
func (c *Cartographer) processFile(ctx context.Context, ac *agents.AgentContext, root, path string) outcome {
	ctx, span := observability.StartFileSpan(ctx, path)
	defer span.End()
	log := ac.Log()

	src, ok := ac.Registry.SourceForExtension(filepath.Ext(path))
	if !ok {
		rec := ir.NewDegradedRecordAt(root, path, "no extractor for extension "+filepath.Ext(path))
		observability.RecordFileResult(span, rec.Category, 0, 0, true)
		return outcome{rec: rec}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn("cartographer: unreadable file", "path", path, "error", err)
		rec := ir.NewDegradedRecordAt(root, path, err.Error())
		observability.RecordFileResult(span, rec.Category, 0, 0, true)
		return outcome{rec: rec}
	}

	rec := src.Extract(ctx, plugins.SourceFile{Path: path, Root: root, Content: data})
	if rec.Degraded {
		log.Warn("cartographer: degraded file", "path", path, "reason", rec.Error)
		observability.RecordFileResult(span, rec.Category, 0, 0, true)
		return outcome{rec: rec}
	}
	src.ResolveDependencies(ctx, rec, root)

	if ac.History != nil {
		rec.Metrics.LastModified = ac.History.LastModified(ctx, path)
	}

	out := outcome{rec: rec}
	if ac.Classifier != nil {
		out.classified, out.classifyErr, out.llmTime = c.classify(ctx, ac.Classifier, rec, string(data))
		if out.classifyErr != nil {
			log.Warn("cartographer: classification failed, using defaults", "path", path, "error", out.classifyErr)
		}
	}

	observability.RecordFileResult(span, rec.Category, len(rec.Functions), len(rec.Dependencies), false)
	return out
}

func (c *Cartographer) classify(ctx context.Context, cl classify.Classifier, rec *ir.FileRecord, content string) (bool, error, time.Duration) {
	if c.ClassifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.ClassifyTimeout)
		defer cancel()
	}

	start := time.Now()
	res, err := safeClassify(ctx, cl, rec.Path, content)
	elapsed := time.Since(start)
	if err != nil {
		return false, err, elapsed
	}
	rec.Category = res.Category
	rec.Summary = res.Summary
	return true, nil, elapsed
}

// safeClassify turns a panicking classifier into an error so one bad file
// cannot take down its siblings.
func safeClassify(ctx context.Context, cl classify.Classifier, path, content string) (res classify.Classification, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classifier panic: %v", r)
		}
	}()
	res, err = cl.Classify(ctx, path, content)
	if err == nil && (res.Category == "" || res.Summary == "") {
		fb := classify.Fallback()
		if res.Category == "" {
			res.Category = fb.Category
		}
		if res.Summary == "" {
			res.Summary = fb.Summary
		}
	}
	return res, err
}

func (c *Cartographer) fail(result *agents.AgentResult, span trace.Span, err error) (*agents.AgentResult, error) {
	observability.RecordError(span, err)
	result.Status = agents.StatusFailed
	result.AddError(err.Error())
	result.Finalize()
	observability.Metrics().RecordAgentRun(c.Name(), string(result.Status), result.Metrics.Duration)
	return result, err
}
