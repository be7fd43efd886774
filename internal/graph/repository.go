// Package graph stores the file dependency graph of an analysis.
package graph

import (
	"context"

	"github.com/efebarandurmaz/codechart/internal/ir"
)

// Repository provides graph storage for analyzed models.
type Repository interface {
	// StoreModel persists files, categories and import edges under analysisID.
	StoreModel(ctx context.Context, analysisID string, m *ir.Model) error
	// LoadModel rebuilds the files and edges stored for analysisID.
	LoadModel(ctx context.Context, analysisID string) (*ir.Model, error)
	// QueryImporters returns the basenames of files importing fileName.
	QueryImporters(ctx context.Context, analysisID, fileName string) ([]string, error)
	// Close releases resources.
	Close(ctx context.Context) error
}
