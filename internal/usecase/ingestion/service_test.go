package ingestion

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/medrag/internal/domain"
	domret "github.com/kailas-cloud/medrag/internal/domain/retrieval"
	"github.com/kailas-cloud/medrag/internal/transport/pubmed"
)

func newTestService(t *testing.T, lit Literature, p *memProvider, e domain.Embedder) *Service {
	t.Helper()
	s, err := New(lit, p, e, Options{RetryDelay: time.Millisecond, Workers: 2}, nil)
	require.NoError(t, err)
	t.Cleanup(s.Release)
	return s
}

func TestFetchAndStore_Stores(t *testing.T) {
	lit := &mockLiterature{
		searchFn: func(string, int) ([]string, error) { return []string{"1", "2"}, nil },
		articles: []pubmed.Article{article("1", "First", "Alpha"), article("2", "Second", "")},
	}
	p := &memProvider{}
	s := newTestService(t, lit, p, &countingEmbedder{})

	out := s.FetchAndStore(context.Background(), "cancer", 10, "pubmed_collection")
	n, ok := out.Value()
	require.True(t, ok, "outcome %v: %v", out.Kind(), out.Err())
	assert.Equal(t, 2, n)

	col := p.cols["pubmed_collection"]
	require.Len(t, col.docs, 2)
	assert.Equal(t, "pubmed_1", col.docs[0].ID())
	assert.Equal(t, "Title: First\n\nAbstract: Alpha", col.docs[0].Content())
	assert.Equal(t, "pubmed_collection", col.docs[0].Collection())
	assert.Equal(t, "Title: Second\n\nAbstract: No abstract available.", col.docs[1].Content())
	assert.Len(t, col.vecs, 2)
}

func TestFetchAndStore_RetriesThenSucceeds(t *testing.T) {
	lit := &mockLiterature{
		searchFn: func(_ string, call int) ([]string, error) {
			switch call {
			case 1:
				return nil, errors.New("timeout")
			case 2:
				return nil, nil
			default:
				return []string{"9"}, nil
			}
		},
		articles: []pubmed.Article{article("9", "T", "A")},
	}
	s := newTestService(t, lit, &memProvider{}, &countingEmbedder{})

	out := s.FetchAndStore(context.Background(), "asthma", 5, "x")
	assert.Equal(t, domret.OutcomeOk, out.Kind())
	assert.Equal(t, []string{"asthma", "asthma", "asthma"}, lit.terms)
}

func TestFetchAndStore_FallbackTopic(t *testing.T) {
	lit := &mockLiterature{
		searchFn: func(term string, _ int) ([]string, error) {
			if term == "cancer treatment" {
				return []string{"7"}, nil
			}
			return nil, nil
		},
		articles: []pubmed.Article{article("7", "Fallback", "A")},
	}
	s := newTestService(t, lit, &memProvider{}, &countingEmbedder{})

	out := s.FetchAndStore(context.Background(), "zzz", 5, "x")
	assert.Equal(t, domret.OutcomeOk, out.Kind())
	assert.Equal(t, []string{"zzz", "zzz", "zzz", "cancer treatment"}, lit.terms)
}

func TestFetchAndStore_NothingFound(t *testing.T) {
	lit := &mockLiterature{searchFn: func(string, int) ([]string, error) { return nil, nil }}
	s := newTestService(t, lit, &memProvider{}, &countingEmbedder{})

	out := s.FetchAndStore(context.Background(), "zzz", 5, "x")
	assert.Equal(t, domret.OutcomeUnavailable, out.Kind())
}

func TestFetchAndStore_FetchError(t *testing.T) {
	lit := &mockLiterature{
		searchFn: func(string, int) ([]string, error) { return []string{"1"}, nil },
		fetchErr: pubmed.ErrUpstream,
	}
	s := newTestService(t, lit, &memProvider{}, &countingEmbedder{})

	out := s.FetchAndStore(context.Background(), "x", 5, "x")
	require.Equal(t, domret.OutcomeError, out.Kind())
	assert.ErrorIs(t, out.Err(), domain.ErrIngestionFailed)
	assert.ErrorIs(t, out.Err(), pubmed.ErrUpstream)
}

func TestFetchAndStore_StoreError(t *testing.T) {
	lit := &mockLiterature{
		searchFn: func(string, int) ([]string, error) { return []string{"1"}, nil },
		articles: []pubmed.Article{article("1", "T", "A")},
	}
	s := newTestService(t, lit, &memProvider{err: domain.ErrCollectionUnavailable}, &countingEmbedder{})

	out := s.FetchAndStore(context.Background(), "x", 5, "x")
	require.Equal(t, domret.OutcomeError, out.Kind())
	assert.ErrorIs(t, out.Err(), domain.ErrCollectionUnavailable)
}

func TestFetchAndStore_ReusesBatchAcrossTargets(t *testing.T) {
	lit := &mockLiterature{
		searchFn: func(string, int) ([]string, error) { return []string{"1"}, nil },
		articles: []pubmed.Article{article("1", "T", "A")},
	}
	emb := &countingEmbedder{}
	p := &memProvider{}
	s := newTestService(t, lit, p, emb)
	ctx := context.Background()

	require.Equal(t, domret.OutcomeOk, s.FetchAndStore(ctx, "cancer", 10, "lit").Kind())
	require.Equal(t, domret.OutcomeOk, s.FetchAndStore(ctx, "cancer", 10, "main").Kind())

	assert.Len(t, lit.terms, 1)
	assert.Equal(t, 1, lit.fetches)
	assert.Equal(t, 1, emb.calls)
	assert.Equal(t, "main", p.cols["main"].docs[0].Collection())
	assert.Equal(t, "lit", p.cols["lit"].docs[0].Collection())
}

func TestFetchAndStore_DropsUnembeddableChunk(t *testing.T) {
	var arts []pubmed.Article
	for i := 0; i < 4; i++ {
		abstract := "fine"
		if i == 3 {
			abstract = "poison"
		}
		arts = append(arts, article(fmt.Sprint(i), "T", abstract))
	}
	lit := &mockLiterature{
		searchFn: func(string, int) ([]string, error) { return []string{"0", "1", "2", "3"}, nil },
		articles: arts,
	}
	p := &memProvider{}
	s := newTestService(t, lit, p, &countingEmbedder{})

	n, ok := s.FetchAndStore(context.Background(), "x", 5, "x").Value()
	require.True(t, ok)
	assert.Equal(t, 2, n, "the chunk holding the failing record is dropped")
}

func TestFetchAndStore_AllEmbeddingsFail(t *testing.T) {
	lit := &mockLiterature{
		searchFn: func(string, int) ([]string, error) { return []string{"1"}, nil },
		articles: []pubmed.Article{article("1", "T", "poison")},
	}
	s := newTestService(t, lit, &memProvider{}, &countingEmbedder{})

	out := s.FetchAndStore(context.Background(), "x", 5, "x")
	require.Equal(t, domret.OutcomeError, out.Kind())
	assert.ErrorIs(t, out.Err(), domain.ErrEmbeddingProviderError)
}

func TestRetryWithBackoff(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), func() error {
		calls++
		return errors.New("nope")
	}, 3, time.Millisecond, nil)
	assert.Error(t, err)
	assert.Equal(t, 3, calls)

	assert.ErrorIs(t, RetryWithBackoff(context.Background(), func() error { return nil }, 0, 0, nil),
		ErrInvalidMaxAttempts)
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := RetryWithBackoff(ctx, func() error {
		calls++
		cancel()
		return errors.New("fail")
	}, 5, time.Hour, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
