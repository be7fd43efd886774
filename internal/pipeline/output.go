package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/efebarandurmaz/codechart/internal/depgraph"
)

// Dependency graph export formats accepted by WriteFiles.
const (
	GraphNone    = ""
	GraphDOT     = "dot"
	GraphMermaid = "mermaid"
	GraphJSON    = "json"
)

// WriteFiles writes every diagram under its plugin file name, result.json,
// and the file dependency graph in graphFormat. It returns the written paths.
func (r *Result) WriteFiles(dir, graphFormat string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var written []string
	write := func(name string, data []byte) error {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		written = append(written, path)
		return nil
	}

	for _, d := range r.Diagrams {
		if err := write(d.FileName, []byte(d.Content)); err != nil {
			return written, err
		}
	}

	payload, err := r.JSON()
	if err != nil {
		return written, fmt.Errorf("marshal result: %w", err)
	}
	if err := write("result.json", payload); err != nil {
		return written, err
	}

	if r.Graph == nil {
		return written, nil
	}
	switch graphFormat {
	case GraphNone:
	case GraphDOT:
		err = write("dependencies.dot", []byte(depgraph.ExportDOT(r.Graph)))
	case GraphMermaid:
		err = write("dependencies.mmd", []byte(depgraph.ExportMermaid(r.Graph)))
	case GraphJSON:
		var data []byte
		if data, err = depgraph.ExportJSON(r.Graph); err == nil {
			err = write("dependencies.json", data)
		}
	default:
		err = fmt.Errorf("unknown graph format %q", graphFormat)
	}
	return written, err
}
