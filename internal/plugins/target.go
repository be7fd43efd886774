package plugins

import (
	"context"

	"github.com/efebarandurmaz/codechart/internal/ir"
)

// Diagram is one rendered artifact.
type Diagram struct {
	Kind     string `json:"kind"`
	FileName string `json:"file_name"`
	Content  string `json:"content"`
}

// DiagramPlugin renders the aggregated model into a diagram dialect.
type DiagramPlugin interface {
	// Kind returns the diagram identifier (e.g. "class").
	Kind() string
	// FileName is the output file the diagram is written to.
	FileName() string
	// Render must only read the model; renderers run concurrently.
	Render(ctx context.Context, model *ir.Model) (string, error)
}
