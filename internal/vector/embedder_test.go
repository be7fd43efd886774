package vector

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/efebarandurmaz/codechart/internal/ir"
)

type fakeEmbedder struct {
	calls [][]string
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

type memRepo struct {
	docs   []Document
	closed bool
}

func (m *memRepo) Upsert(_ context.Context, docs []Document) error {
	m.docs = append(m.docs, docs...)
	return nil
}

func (m *memRepo) Search(_ context.Context, vec []float32, topK int) ([]SearchResult, error) {
	var out []SearchResult
	for _, d := range m.docs {
		if len(out) == topK {
			break
		}
		out = append(out, SearchResult{ID: d.ID, Content: d.Content, Metadata: d.Metadata})
	}
	return out, nil
}

func (m *memRepo) Close() error {
	m.closed = true
	return nil
}

func TestIndexFiles(t *testing.T) {
	a := ir.NewFileRecord("/src/a.js")
	a.Summary = "Renders the cart."
	a.Category = "Frontend"
	bad := ir.NewDegradedRecord("/src/bin.js", "invalid UTF-8")
	b := ir.NewFileRecord("/src/b.js")

	emb := &fakeEmbedder{}
	repo := &memRepo{}
	n, err := NewIndexer(emb, repo).IndexFiles(context.Background(), "shop_1", []*ir.FileRecord{a, bad, b})
	if err != nil {
		t.Fatalf("IndexFiles: %v", err)
	}

	if n != 2 {
		t.Errorf("indexed = %d, want 2", n)
	}
	if len(emb.calls) != 1 {
		t.Fatalf("embed calls = %d, want 1", len(emb.calls))
	}
	if want := []string{"Renders the cart.", ir.DefaultSummary}; !reflect.DeepEqual(emb.calls[0], want) {
		t.Errorf("embedded texts = %v, want %v", emb.calls[0], want)
	}
	if len(repo.docs) != 2 {
		t.Fatalf("docs = %d, want 2", len(repo.docs))
	}
	doc := repo.docs[0]
	if doc.ID != PointID("shop_1", "/src/a.js") {
		t.Errorf("doc id = %q", doc.ID)
	}
	if doc.Metadata["category"] != "Frontend" {
		t.Errorf("category = %v", doc.Metadata["category"])
	}
	if !reflect.DeepEqual(doc.Vector, []float32{17, 1}) {
		t.Errorf("vector = %v", doc.Vector)
	}
}

func TestIndexFiles_EmbedError(t *testing.T) {
	f := ir.NewFileRecord("/a.js")
	_, err := NewIndexer(&fakeEmbedder{err: errors.New("boom")}, &memRepo{}).
		IndexFiles(context.Background(), "x", []*ir.FileRecord{f})
	if err == nil {
		t.Error("expected embed error")
	}
}

func TestIndexFiles_NothingToIndex(t *testing.T) {
	emb := &fakeEmbedder{}
	n, err := NewIndexer(emb, &memRepo{}).IndexFiles(context.Background(), "x", nil)
	if err != nil {
		t.Fatalf("IndexFiles: %v", err)
	}
	if n != 0 || len(emb.calls) != 0 {
		t.Errorf("indexed = %d, embed calls = %d; want none", n, len(emb.calls))
	}
}

func TestPointID(t *testing.T) {
	id := PointID("a", "/p.js")
	if id != PointID("a", "/p.js") {
		t.Error("PointID is not deterministic")
	}
	if id == PointID("b", "/p.js") {
		t.Error("PointID ignores the analysis id")
	}
	if len(id) != 36 {
		t.Errorf("PointID = %q, want a UUID", id)
	}
}

func TestSearchAndClose(t *testing.T) {
	repo := &memRepo{docs: []Document{{ID: "1", Content: "x"}, {ID: "2", Content: "y"}}}
	idx := NewIndexer(&fakeEmbedder{}, repo)

	res, err := idx.Search(context.Background(), "cart", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 1 {
		t.Errorf("results = %d, want 1", len(res))
	}

	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !repo.closed {
		t.Error("repository was not closed")
	}
}
