package document

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/medrag/internal/domain"
	domdoc "github.com/kailas-cloud/medrag/internal/domain/document"
	domret "github.com/kailas-cloud/medrag/internal/domain/retrieval"
)

// --- Mocks ---

type mockCollection struct {
	added  []domdoc.Document
	vecs   [][]float32
	addErr error
}

func (m *mockCollection) Name() string                       { return "medical_documents" }
func (m *mockCollection) Count(context.Context) (int, error) { return len(m.added), nil }
func (m *mockCollection) Query(context.Context, []float32, int) ([]domret.Neighbor, error) {
	return nil, nil
}
func (m *mockCollection) GetAll(context.Context) ([]domdoc.Document, error) { return m.added, nil }
func (m *mockCollection) Add(_ context.Context, docs []domdoc.Document, vecs [][]float32) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.added = append(m.added, docs...)
	m.vecs = append(m.vecs, vecs...)
	return nil
}

type mockOpener struct {
	col    *mockCollection
	err    error
	opened string
}

func (m *mockOpener) GetOrCreate(_ context.Context, name string) (domret.Collection, error) {
	m.opened = name
	if m.err != nil {
		return nil, m.err
	}
	return m.col, nil
}

type mockEmbedder struct {
	err   error
	calls int
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{float32(len(text))}, TotalTokens: 1}, nil
}

type mockRebuilder struct{ calls int }

func (m *mockRebuilder) Rebuild(context.Context) { m.calls++ }

func newTestService() (*Service, *mockOpener, *mockEmbedder, *mockRebuilder) {
	op := &mockOpener{col: &mockCollection{}}
	emb := &mockEmbedder{}
	rb := &mockRebuilder{}
	return New(op, emb, rb, "medical_documents", nil), op, emb, rb
}

// --- Tests ---

func TestAdd_Success(t *testing.T) {
	svc, op, emb, rb := newTestService()

	ids, err := svc.Add(context.Background(), []Input{
		{Content: "Diabetes causes increased thirst", Metadata: map[string]any{"title": "Diabetes"}},
		{Content: "Asthma narrows the airways"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %d", len(ids))
	}
	for _, id := range ids {
		if !strings.HasPrefix(id, domdoc.CustomIDPrefix) {
			t.Errorf("id %q lacks custom prefix", id)
		}
	}
	if op.opened != "medical_documents" {
		t.Errorf("expected primary collection, got %q", op.opened)
	}
	if len(op.col.added) != 2 || len(op.col.vecs) != 2 {
		t.Fatalf("expected 2 stored docs, got %d", len(op.col.added))
	}
	if op.col.added[0].Title() != "Diabetes" {
		t.Errorf("metadata not stored: %v", op.col.added[0].Metadata())
	}
	if emb.calls != 2 {
		t.Errorf("expected 2 embed calls, got %d", emb.calls)
	}
	if rb.calls != 1 {
		t.Errorf("expected one rebuild, got %d", rb.calls)
	}
}

func TestAdd_IDsAreContentHashes(t *testing.T) {
	svc, _, _, _ := newTestService()

	a, err := svc.Add(context.Background(), []Input{{Content: "same"}})
	if err != nil {
		t.Fatal(err)
	}
	b, err := svc.Add(context.Background(), []Input{{Content: "same"}})
	if err != nil {
		t.Fatal(err)
	}
	if a[0] != b[0] {
		t.Errorf("expected stable id, got %q and %q", a[0], b[0])
	}
}

func TestAdd_Validation(t *testing.T) {
	tests := []struct {
		name  string
		items []Input
	}{
		{"empty batch", nil},
		{"blank content", []Input{{Content: "  "}}},
		{"nested metadata", []Input{{Content: "x", Metadata: map[string]any{"k": []string{"a"}}}}},
		{"too many", make([]Input, MaxBatchSize+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, op, emb, rb := newTestService()
			_, err := svc.Add(context.Background(), tt.items)
			if !errors.Is(err, domain.ErrInvalidRequest) && !errors.Is(err, domain.ErrInvalidDocument) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if emb.calls != 0 || op.opened != "" || rb.calls != 0 {
				t.Error("nothing should run after a validation failure")
			}
		})
	}
}

func TestAdd_EmbeddingError(t *testing.T) {
	svc, op, emb, rb := newTestService()
	emb.err = domain.ErrEmbeddingProviderError

	_, err := svc.Add(context.Background(), []Input{{Content: "x"}})
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
	if len(op.col.added) != 0 || rb.calls != 0 {
		t.Error("nothing should be stored")
	}
}

func TestAdd_StoreError(t *testing.T) {
	svc, op, _, rb := newTestService()
	op.col.addErr = domain.NewCollectionError("medical_documents", domain.ErrCollectionUnavailable)

	_, err := svc.Add(context.Background(), []Input{{Content: "x"}})
	if !errors.Is(err, domain.ErrCollectionUnavailable) {
		t.Fatalf("expected ErrCollectionUnavailable, got %v", err)
	}
	if rb.calls != 0 {
		t.Error("no rebuild after a failed write")
	}
}

func TestAdd_OpenError(t *testing.T) {
	svc, op, _, _ := newTestService()
	op.err = errors.New("conn refused")

	if _, err := svc.Add(context.Background(), []Input{{Content: "x"}}); err == nil {
		t.Fatal("expected error")
	}
}

func TestAdd_NilRebuilder(t *testing.T) {
	op := &mockOpener{col: &mockCollection{}}
	svc := New(op, &mockEmbedder{}, nil, "c", nil).WithMaxBatchSize(1)

	if _, err := svc.Add(context.Background(), []Input{{Content: "x"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Add(context.Background(), []Input{{Content: "x"}, {Content: "y"}}); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected batch limit error, got %v", err)
	}
}
