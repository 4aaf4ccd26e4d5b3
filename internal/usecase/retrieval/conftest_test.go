package retrieval

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/medrag/internal/domain"
	"github.com/kailas-cloud/medrag/internal/domain/document"
	domret "github.com/kailas-cloud/medrag/internal/domain/retrieval"
)

// --- Mocks ---

type fakeCollection struct {
	name string

	mu        sync.Mutex
	docs      []document.Document
	countErr  error
	queryErr  error
	getAllErr error
	// blockQuery makes Query wait for context cancellation.
	blockQuery bool
	queries    int
	counts     int
	// getAllGate, when set, makes GetAll wait on it regardless of ctx.
	// getAllEntered receives a signal each time GetAll starts waiting.
	getAllGate    chan struct{}
	getAllEntered chan struct{}
}

func (c *fakeCollection) Name() string { return c.name }

func (c *fakeCollection) Count(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts++
	if c.countErr != nil {
		return 0, c.countErr
	}
	return len(c.docs), nil
}

// Query returns documents in insertion order with distance growing by 0.1.
func (c *fakeCollection) Query(ctx context.Context, _ []float32, limit int) ([]domret.Neighbor, error) {
	c.mu.Lock()
	c.queries++
	block, qErr := c.blockQuery, c.queryErr
	docs := append([]document.Document(nil), c.docs...)
	c.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if qErr != nil {
		return nil, qErr
	}
	out := make([]domret.Neighbor, 0, limit)
	for i := 0; i < len(docs) && i < limit; i++ {
		out = append(out, domret.Neighbor{Doc: docs[i], Distance: 0.1 * float64(i)})
	}
	return out, nil
}

func (c *fakeCollection) Add(_ context.Context, docs []document.Document, _ [][]float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = append(c.docs, docs...)
	return nil
}

func (c *fakeCollection) GetAll(_ context.Context) ([]document.Document, error) {
	c.mu.Lock()
	gate, entered := c.getAllGate, c.getAllEntered
	c.mu.Unlock()
	if gate != nil {
		if entered != nil {
			select {
			case entered <- struct{}{}:
			default:
			}
		}
		<-gate
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getAllErr != nil {
		return nil, c.getAllErr
	}
	return append([]document.Document(nil), c.docs...), nil
}

// gateGetAll blocks GetAll until the returned release func runs.
func (c *fakeCollection) gateGetAll(t *testing.T) (entered <-chan struct{}, release func()) {
	t.Helper()
	gate, in := make(chan struct{}), make(chan struct{}, 1)
	c.mu.Lock()
	c.getAllGate, c.getAllEntered = gate, in
	c.mu.Unlock()
	var once sync.Once
	release = func() {
		once.Do(func() {
			c.mu.Lock()
			c.getAllGate, c.getAllEntered = nil, nil
			c.mu.Unlock()
			close(gate)
		})
	}
	t.Cleanup(release)
	return in, release
}

func (c *fakeCollection) countCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts
}

func (c *fakeCollection) add(t *testing.T, id, content string) {
	t.Helper()
	d, err := document.New(id, content, map[string]any{"title": id}, c.name)
	require.NoError(t, err)
	require.NoError(t, c.Add(context.Background(), []document.Document{d}, nil))
}

type fakeProvider struct {
	mu   sync.Mutex
	cols map[string]*fakeCollection
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{cols: map[string]*fakeCollection{}}
}

func (p *fakeProvider) Get(_ context.Context, name string) (domret.Collection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.cols[name]
	if !ok {
		return nil, fmt.Errorf("collection %s: %w", name, domain.ErrNotFound)
	}
	return c, nil
}

func (p *fakeProvider) GetOrCreate(_ context.Context, name string) (domret.Collection, error) {
	return p.collection(name), nil
}

func (p *fakeProvider) collection(name string) *fakeCollection {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.cols[name]
	if !ok {
		c = &fakeCollection{name: name}
		p.cols[name] = c
	}
	return c
}

type fakeEmbedder struct {
	err error
}

func (e *fakeEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	if e.err != nil {
		return domain.EmbeddingResult{}, e.err
	}
	return domain.EmbeddingResult{Embedding: []float32{1, 0, 0}}, nil
}

type fetchCall struct {
	topic  string
	max    int
	target string
}

// fakeFetcher stores docs into the provider's target collection.
type fakeFetcher struct {
	provider *fakeProvider
	docs     []string
	err      error

	mu    sync.Mutex
	calls []fetchCall
}

func (f *fakeFetcher) FetchAndStore(ctx context.Context, topic string, maxResults int, target string) domret.Outcome[int] {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{topic: topic, max: maxResults, target: target})
	f.mu.Unlock()

	if f.err != nil {
		return domret.Failed[int](f.err)
	}
	if len(f.docs) == 0 {
		return domret.Unavailable[int]()
	}
	col := f.provider.collection(target)
	for i, content := range f.docs {
		d, err := document.New(fmt.Sprintf("pubmed_%s_%d", target, i), content, nil, target)
		if err != nil {
			return domret.Failed[int](err)
		}
		_ = col.Add(ctx, []document.Document{d}, nil)
	}
	return domret.Ok(len(f.docs))
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

const (
	testPrimary    = "medical_documents"
	testLiterature = "pubmed_collection"
)

func newTestService(t *testing.T, p *fakeProvider, e *fakeEmbedder, f Fetcher) *Service {
	t.Helper()
	if e == nil {
		e = &fakeEmbedder{}
	}
	s, err := New(context.Background(), p, e, f, Options{
		Primary:    testPrimary,
		Literature: testLiterature,
	}, nil)
	require.NoError(t, err)
	return s
}
