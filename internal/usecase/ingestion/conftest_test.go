package ingestion

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kailas-cloud/medrag/internal/domain"
	"github.com/kailas-cloud/medrag/internal/domain/document"
	domret "github.com/kailas-cloud/medrag/internal/domain/retrieval"
	"github.com/kailas-cloud/medrag/internal/transport/pubmed"
)

type mockLiterature struct {
	mu sync.Mutex
	// searchFn answers Search; terms records every call.
	searchFn func(term string, call int) ([]string, error)
	terms    []string
	articles []pubmed.Article
	fetchErr error
	fetches  int
}

func (m *mockLiterature) Search(_ context.Context, term string, _ int) ([]string, error) {
	m.mu.Lock()
	m.terms = append(m.terms, term)
	call := len(m.terms)
	m.mu.Unlock()
	return m.searchFn(term, call)
}

func (m *mockLiterature) Fetch(_ context.Context, ids []string) ([]pubmed.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.articles, nil
}

type memCollection struct {
	name string
	mu   sync.Mutex
	docs []document.Document
	vecs [][]float32
}

func (c *memCollection) Name() string                       { return c.name }
func (c *memCollection) Count(context.Context) (int, error) { return len(c.docs), nil }
func (c *memCollection) Query(context.Context, []float32, int) ([]domret.Neighbor, error) {
	return nil, nil
}

func (c *memCollection) Add(_ context.Context, docs []document.Document, vecs [][]float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = append(c.docs, docs...)
	c.vecs = append(c.vecs, vecs...)
	return nil
}

func (c *memCollection) GetAll(context.Context) ([]document.Document, error) { return c.docs, nil }

type memProvider struct {
	mu   sync.Mutex
	cols map[string]*memCollection
	err  error
}

func (p *memProvider) Get(_ context.Context, name string) (domret.Collection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.cols[name]; ok {
		return c, nil
	}
	return nil, domain.ErrNotFound
}

func (p *memProvider) GetOrCreate(_ context.Context, name string) (domret.Collection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	if p.cols == nil {
		p.cols = map[string]*memCollection{}
	}
	c, ok := p.cols[name]
	if !ok {
		c = &memCollection{name: name}
		p.cols[name] = c
	}
	return c, nil
}

// countingEmbedder returns a vector derived from text length; texts containing
// "poison" fail.
type countingEmbedder struct {
	mu    sync.Mutex
	calls int
}

func (e *countingEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if strings.Contains(text, "poison") {
		return domain.EmbeddingResult{}, fmt.Errorf("bad input: %w", domain.ErrEmbeddingProviderError)
	}
	return domain.EmbeddingResult{Embedding: []float32{float32(len(text)), 1}}, nil
}

func article(pmid, title, abstract string) pubmed.Article {
	a := pubmed.Article{PMID: pmid, Title: title, Journal: "J", Authors: []string{"A B"}}
	if abstract != "" {
		a.Abstract = []pubmed.AbstractSection{{Text: abstract}}
	}
	return a
}
