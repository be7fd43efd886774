package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// FileProvider reads a flat JSON object of key/value pairs. Meant for local
// development; the file should be mode 0600.
type FileProvider struct {
	data map[string]string
}

// NewFileProvider loads path once.
func NewFileProvider(path string) (*FileProvider, error) {
	if path == "" {
		return nil, fmt.Errorf("file path required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data := make(map[string]string)
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &FileProvider{data: data}, nil
}

func (p *FileProvider) Name() string { return "file" }

func (p *FileProvider) Get(ctx context.Context, key string) (string, error) {
	val, ok := p.data[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return val, nil
}
