package vector

import "context"

// Metadata keys stored with every indexed summary.
const (
	MetaAnalysisID = "analysis_id"
	MetaPath       = "path"
	MetaName       = "name"
	MetaCategory   = "category"
)

// Document is one file summary and its embedding.
type Document struct {
	ID       string
	Content  string
	Vector   []float32
	Metadata map[string]string
}

// SearchResult is a stored summary ranked by similarity to a query.
type SearchResult struct {
	ID       string
	Score    float32
	Content  string
	Metadata map[string]string
}

// Path returns the file path the result was indexed under.
func (r SearchResult) Path() string { return r.Metadata[MetaPath] }

// Repository is the vector store the Indexer writes to.
type Repository interface {
	Upsert(ctx context.Context, docs []Document) error
	Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error)
	Close() error
}
