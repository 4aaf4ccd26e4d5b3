package collection

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kailas-cloud/medrag/internal/db"
	"github.com/kailas-cloud/medrag/internal/domain"
	"github.com/kailas-cloud/medrag/internal/domain/document"
)

// --- Get / GetOrCreate ---

func TestGet_NotFound(t *testing.T) {
	c, ms := newTestClient(t)
	ms.indexExistsFn = func(_ context.Context, name string) (bool, error) {
		if name != "medrag:pubmed_collection:idx" {
			t.Errorf("unexpected index name: %s", name)
		}
		return false, nil
	}

	_, err := c.Get(context.Background(), "pubmed_collection")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGet_DimMismatch(t *testing.T) {
	c, ms := newTestClient(t)
	ms.hgetAllFn = func(_ context.Context, key string) (map[string]string, error) {
		if key != "medrag:collection:main" {
			t.Errorf("unexpected meta key: %s", key)
		}
		return map[string]string{"vector_dim": "1536"}, nil
	}

	_, err := c.Get(context.Background(), "main")
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestGet_Existing(t *testing.T) {
	c, _ := newTestClient(t)
	col, err := c.Get(context.Background(), "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if col.Name() != "main" {
		t.Errorf("Name() = %q", col.Name())
	}
}

func TestGetOrCreate_Creates(t *testing.T) {
	c, ms := newTestClient(t)
	ms.indexExistsFn = func(context.Context, string) (bool, error) { return false, nil }

	var metaKey string
	ms.hsetMultiFn = func(_ context.Context, items []db.HashSetItem) error {
		metaKey = items[0].Key
		if items[0].Fields["vector_dim"] != "3" {
			t.Errorf("vector_dim = %q", items[0].Fields["vector_dim"])
		}
		return nil
	}
	var created *db.IndexDefinition
	ms.createIndexFn = func(_ context.Context, def *db.IndexDefinition) error {
		created = def
		return nil
	}

	col, err := c.GetOrCreate(context.Background(), "medical_documents")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if col.Name() != "medical_documents" {
		t.Errorf("Name() = %q", col.Name())
	}
	if metaKey != "medrag:collection:medical_documents" {
		t.Errorf("meta key = %q", metaKey)
	}
	if created == nil || created.Name != "medrag:medical_documents:idx" {
		t.Fatalf("index = %+v", created)
	}
	if created.Prefixes[0] != "medrag:medical_documents:doc:" {
		t.Errorf("prefix = %q", created.Prefixes[0])
	}
	vec := created.Fields[len(created.Fields)-1]
	if vec.VectorDistance != db.DistanceCosine || vec.VectorDim != testVectorDim || vec.VectorM != 16 {
		t.Errorf("vector field = %+v", vec)
	}
}

func TestGetOrCreate_ConcurrentCreateTolerated(t *testing.T) {
	c, ms := newTestClient(t)
	ms.indexExistsFn = func(context.Context, string) (bool, error) { return false, nil }
	ms.createIndexFn = func(context.Context, *db.IndexDefinition) error { return db.ErrIndexExists }
	ms.delFn = func(context.Context, string) error {
		t.Error("metadata must not be rolled back when the index already exists")
		return nil
	}

	if _, err := c.GetOrCreate(context.Background(), "main"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGetOrCreate_FTCreateError_Rollback(t *testing.T) {
	c, ms := newTestClient(t)
	ms.indexExistsFn = func(context.Context, string) (bool, error) { return false, nil }
	ftErr := errors.New("FT.CREATE failed")
	ms.createIndexFn = func(context.Context, *db.IndexDefinition) error { return ftErr }
	var deleted string
	ms.delFn = func(_ context.Context, key string) error {
		deleted = key
		return nil
	}

	_, err := c.GetOrCreate(context.Background(), "main")
	if !errors.Is(err, ftErr) {
		t.Fatalf("expected FT error, got %v", err)
	}
	if deleted != "medrag:collection:main" {
		t.Errorf("rollback deleted %q", deleted)
	}
}

func TestGetOrCreate_ProbeError(t *testing.T) {
	c, ms := newTestClient(t)
	ms.indexExistsFn = func(context.Context, string) (bool, error) { return false, errors.New("conn reset") }

	if _, err := c.GetOrCreate(context.Background(), "main"); err == nil {
		t.Fatal("expected error")
	}
}

// --- Collection ---

func TestCount(t *testing.T) {
	c, ms := newTestClient(t)
	ms.searchCountFn = func(_ context.Context, index, query string) (int, error) {
		if index != "medrag:main:idx" || query != "*" {
			t.Errorf("unexpected args %s %s", index, query)
		}
		return 7, nil
	}
	col, _ := c.Get(context.Background(), "main")

	n, err := col.Count(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 7 {
		t.Errorf("Count() = %d", n)
	}
}

func TestCount_DroppedIndex(t *testing.T) {
	c, ms := newTestClient(t)
	ms.searchCountFn = func(context.Context, string, string) (int, error) { return 0, db.ErrIndexNotFound }
	col, _ := c.Get(context.Background(), "main")

	_, err := col.Count(context.Background())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var ce *domain.CollectionError
	if !errors.As(err, &ce) || ce.Collection != "main" {
		t.Errorf("expected CollectionError for main, got %v", err)
	}
}

func TestQuery_ParsesNeighbors(t *testing.T) {
	c, ms := newTestClient(t)
	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		if !q.RawScores || q.K != 4 {
			t.Errorf("unexpected query %+v", q)
		}
		return &db.SearchResult{Total: 2, Entries: []db.SearchEntry{
			{Key: "medrag:main:doc:b", Score: 0.4, Fields: map[string]string{
				"__content": "second", "__meta": "not json",
			}},
			{Key: "medrag:main:doc:a", Score: 0.1, Fields: map[string]string{
				"__id": "a", "__content": "first", "__meta": `{"title":"A","pmid":"1"}`,
			}},
		}}, nil
	}
	col, _ := c.Get(context.Background(), "main")

	got, err := col.Query(context.Background(), []float32{1, 0, 0}, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 neighbors, got %d", len(got))
	}
	if got[0].Doc.ID() != "a" || got[0].Distance != 0.1 {
		t.Errorf("first = %s/%f", got[0].Doc.ID(), got[0].Distance)
	}
	if got[0].Doc.Title() != "A" || got[0].Doc.Collection() != "main" {
		t.Errorf("metadata not parsed: %v", got[0].Doc.Metadata())
	}
	if got[1].Doc.ID() != "b" {
		t.Errorf("id from key = %q", got[1].Doc.ID())
	}
	if got[1].Doc.Title() != document.Unknown {
		t.Errorf("malformed metadata should fall back to placeholders, got %q", got[1].Doc.Title())
	}
	if sim := got[0].Similarity(); sim < 0.89 || sim > 0.91 {
		t.Errorf("similarity = %f", sim)
	}
}

func TestQuery_WrongDim(t *testing.T) {
	c, _ := newTestClient(t)
	col, _ := c.Get(context.Background(), "main")

	_, err := col.Query(context.Background(), []float32{1}, 3)
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestAdd_WritesHashes(t *testing.T) {
	c, ms := newTestClient(t)
	var items []db.HashSetItem
	ms.hsetMultiFn = func(_ context.Context, in []db.HashSetItem) error {
		items = in
		return nil
	}
	col, _ := c.Get(context.Background(), "main")
	doc, err := document.New("pubmed_1", "Title: X", map[string]any{"source": "pubmed"}, "main")
	if err != nil {
		t.Fatal(err)
	}

	if err := col.Add(context.Background(), []document.Document{doc}, [][]float32{{1, 2, 3}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].Key != "medrag:main:doc:pubmed_1" {
		t.Fatalf("items = %+v", items)
	}
	f := items[0].Fields
	if f["__id"] != "pubmed_1" || f["__content"] != "Title: X" || f["__source"] != "pubmed" {
		t.Errorf("fields = %v", f)
	}
	if f["__meta"] != `{"source":"pubmed"}` {
		t.Errorf("meta = %s", f["__meta"])
	}
	if len(f["__vector"]) != 12 {
		t.Errorf("vector bytes = %d", len(f["__vector"]))
	}
}

func TestAdd_Validation(t *testing.T) {
	c, _ := newTestClient(t)
	col, _ := c.Get(context.Background(), "main")
	doc := document.Reconstruct("d", "text", nil, "main")

	if err := col.Add(context.Background(), []document.Document{doc}, nil); err == nil {
		t.Error("expected length mismatch error")
	}
	err := col.Add(context.Background(), []document.Document{doc}, [][]float32{{1}})
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Errorf("expected ErrVectorDimMismatch, got %v", err)
	}
	if err := col.Add(context.Background(), nil, nil); err != nil {
		t.Errorf("empty add: %v", err)
	}
}

func TestGetAll_Pages(t *testing.T) {
	c, ms := newTestClient(t)
	c.WithPageSize(2)
	var offsets []int
	ms.searchListFn = func(_ context.Context, _, _ string, offset, limit int, _ []string) (*db.SearchResult, error) {
		offsets = append(offsets, offset)
		total := 5
		var entries []db.SearchEntry
		for i := offset; i < min(offset+limit, total); i++ {
			entries = append(entries, db.SearchEntry{
				Key:    fmt.Sprintf("medrag:main:doc:d%d", i),
				Fields: map[string]string{"__content": fmt.Sprintf("doc %d", i)},
			})
		}
		return &db.SearchResult{Total: total, Entries: entries}, nil
	}
	col, _ := c.Get(context.Background(), "main")

	docs, err := col.GetAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 5 {
		t.Fatalf("expected 5 docs, got %d", len(docs))
	}
	if docs[4].ID() != "d4" || docs[4].Content() != "doc 4" {
		t.Errorf("last doc = %s %q", docs[4].ID(), docs[4].Content())
	}
	if fmt.Sprint(offsets) != "[0 2 4]" {
		t.Errorf("offsets = %v", offsets)
	}
}

func TestGetAll_Empty(t *testing.T) {
	c, _ := newTestClient(t)
	col, _ := c.Get(context.Background(), "main")

	docs, err := col.GetAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected no docs, got %d", len(docs))
	}
}
