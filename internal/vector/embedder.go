package vector

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/efebarandurmaz/codechart/internal/ir"
	"github.com/efebarandurmaz/codechart/internal/llm"
)

// pointNamespace scopes the name-based point ids.
var pointNamespace = uuid.MustParse("6f1c2a7e-58d4-4d0b-9a43-3c6c0e7b9f21")

// Indexer embeds file summaries and stores them for similarity search.
type Indexer struct {
	embedder llm.Embedder
	repo     Repository
}

// NewIndexer creates an Indexer.
func NewIndexer(embedder llm.Embedder, repo Repository) *Indexer {
	return &Indexer{embedder: embedder, repo: repo}
}

// PointID is stable for a given analysis and path, so re-indexing the same
// analysis overwrites its points.
func PointID(analysisID, path string) string {
	return uuid.NewSHA1(pointNamespace, []byte(analysisID+"\x00"+path)).String()
}

// IndexFiles embeds the summary of every non-degraded file and upserts it.
// It returns the number of documents written.
func (i *Indexer) IndexFiles(ctx context.Context, analysisID string, files []*ir.FileRecord) (int, error) {
	var texts []string
	var docs []Document
	for _, f := range files {
		if f.Degraded || f.Summary == "" {
			continue
		}
		texts = append(texts, f.Summary)
		docs = append(docs, Document{
			ID:      PointID(analysisID, f.Path),
			Content: f.Summary,
			Metadata: map[string]string{
				MetaAnalysisID: analysisID,
				MetaPath:       f.Path,
				MetaName:       f.Name,
				MetaCategory:   f.Category,
			},
		})
	}
	if len(docs) == 0 {
		return 0, nil
	}

	vectors, err := i.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding: %w", err)
	}
	if len(vectors) != len(texts) {
		return 0, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(texts))
	}
	for j := range docs {
		docs[j].Vector = vectors[j]
	}
	if err := i.repo.Upsert(ctx, docs); err != nil {
		return 0, fmt.Errorf("upsert: %w", err)
	}
	return len(docs), nil
}

// Search embeds query and returns the topK closest summaries.
func (i *Indexer) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	vectors, err := i.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	if len(vectors) != 1 {
		return nil, errors.New("embedding: empty response")
	}
	return i.repo.Search(ctx, vectors[0], topK)
}

// Close releases the underlying repository.
func (i *Indexer) Close() error {
	return i.repo.Close()
}
