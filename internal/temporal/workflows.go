package temporal

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/efebarandurmaz/codechart/internal/history"
	"github.com/efebarandurmaz/codechart/internal/vcs"
)

// AnalysisInput holds the workflow parameters.
type AnalysisInput struct {
	// Source is a directory visible to the worker or a git clone URL.
	Source string
	// AnalyzedAt stamps the run. Zero means the workflow start time.
	AnalyzedAt time.Time

	// Filled in by the workflow.
	AnalysisID string
	RepoName   string
}

// AnalysisOutput holds the workflow result.
type AnalysisOutput struct {
	AnalysisID string
	ModelJSON  string
	Diagrams   map[string]string
	Status     string
	Score      float64
	Errors     []string
	Warnings   []string
	Saved      bool
}

// AnalysisWorkflow runs cartographer, aggregator and draftsman as separate
// activities, then stores the record when the worker has a history store.
func AnalysisWorkflow(ctx workflow.Context, input AnalysisInput) (*AnalysisOutput, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	if input.AnalyzedAt.IsZero() {
		input.AnalyzedAt = workflow.Now(ctx).UTC()
	}
	if input.RepoName == "" {
		input.RepoName = vcs.RepoName(input.Source)
	}
	if input.AnalysisID == "" {
		input.AnalysisID = history.NewID(input.RepoName, input.AnalyzedAt)
	}
	logger := workflow.GetLogger(ctx)
	logger.Info("analysis started", "id", input.AnalysisID, "source", input.Source)

	// Step 1: Cartographer
	var cartResult ActivityResult
	if err := workflow.ExecuteActivity(ctx, CartographerActivity, input).Get(ctx, &cartResult); err != nil {
		return nil, fmt.Errorf("cartographer: %w", err)
	}

	// Step 2: Aggregator
	var aggResult ActivityResult
	if err := workflow.ExecuteActivity(ctx, AggregatorActivity, input, cartResult.Payload).Get(ctx, &aggResult); err != nil {
		return nil, fmt.Errorf("aggregator: %w", err)
	}

	// Step 3: Draftsman
	var draftResult ActivityResult
	if err := workflow.ExecuteActivity(ctx, DraftsmanActivity, input, aggResult.Payload).Get(ctx, &draftResult); err != nil {
		return nil, fmt.Errorf("draftsman: %w", err)
	}

	stages := []ActivityResult{cartResult, aggResult, draftResult}
	var saveResult SaveResult
	saveInput := SaveInput{
		Analysis:     input,
		Root:         cartResult.Root,
		ModelJSON:    aggResult.Payload,
		DiagramsJSON: draftResult.Payload,
		Stages:       stages,
	}
	if err := workflow.ExecuteActivity(ctx, SaveActivity, saveInput).Get(ctx, &saveResult); err != nil {
		// The diagrams exist; losing the history row is not worth failing for.
		logger.Warn("history save failed", "id", input.AnalysisID, "error", err)
	}

	diagrams, err := decodeDiagrams(draftResult.Payload)
	if err != nil {
		return nil, err
	}

	output := &AnalysisOutput{
		AnalysisID: input.AnalysisID,
		ModelJSON:  aggResult.Payload,
		Diagrams:   diagrams,
		Status:     saveResult.Status,
		Score:      saveResult.Score,
		Saved:      saveResult.Saved,
	}
	for _, s := range stages {
		output.Errors = append(output.Errors, s.Errors...)
		output.Warnings = append(output.Warnings, s.Warnings...)
	}
	if output.Status == "" {
		status, score := overall(stages)
		output.Status, output.Score = status, score
	}
	return output, nil
}
