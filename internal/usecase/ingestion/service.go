// Package ingestion pulls literature records, embeds them and stores them in a
// target collection.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/medrag/internal/domain"
	"github.com/kailas-cloud/medrag/internal/domain/document"
	domret "github.com/kailas-cloud/medrag/internal/domain/retrieval"
	"github.com/kailas-cloud/medrag/internal/metrics"
)

var errNoIDs = errors.New("no ids found")

// Options tunes the ingestion pipeline. Zero values take defaults.
type Options struct {
	Attempts           int
	RetryDelay         time.Duration
	FallbackTopic      string
	FallbackMaxResults int
	// Workers sizes the embedding pool; default NumCPU/2, minimum 1.
	Workers int
	// ReuseFor keeps a prepared batch for repeated calls with the same topic,
	// so one enrichment searches and embeds once for all targets.
	ReuseFor time.Duration
}

func (o *Options) applyDefaults() {
	if o.Attempts <= 0 {
		o.Attempts = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 2 * time.Second
	}
	if o.FallbackTopic == "" {
		o.FallbackTopic = "cancer treatment"
	}
	if o.FallbackMaxResults <= 0 {
		o.FallbackMaxResults = 10
	}
	if o.Workers <= 0 {
		o.Workers = max(runtime.NumCPU()/2, 1)
	}
	if o.ReuseFor <= 0 {
		o.ReuseFor = 5 * time.Minute
	}
}

// prepared is a formatted and embedded batch, independent of the target.
type prepared struct {
	key     string
	at      time.Time
	records []record
}

type record struct {
	id       string
	content  string
	metadata map[string]any
	vector   []float32
}

// Service is the ingestion collaborator used by retrieval enrichment.
type Service struct {
	lit      Literature
	provider domret.CollectionProvider
	embed    domain.Embedder
	pool     *ants.Pool
	opts     Options
	logger   *zap.Logger

	mu   sync.Mutex
	last *prepared
}

// New creates the service and its embedding pool. Call Release on shutdown.
func New(
	lit Literature,
	provider domret.CollectionProvider,
	embed domain.Embedder,
	opts Options,
	logger *zap.Logger,
) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.applyDefaults()

	pool, err := ants.NewPool(opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("create embedding pool: %w", err)
	}
	return &Service{
		lit:      lit,
		provider: provider,
		embed:    embed,
		pool:     pool,
		opts:     opts,
		logger:   logger,
	}, nil
}

// Release stops the embedding pool.
func (s *Service) Release() {
	s.pool.Release()
}

// FetchAndStore searches the literature for topic, embeds the records and adds
// them to target. Ok carries the number stored; Unavailable means nothing was
// found.
func (s *Service) FetchAndStore(ctx context.Context, topic string, maxResults int, target string) domret.Outcome[int] {
	p, err := s.prepare(ctx, topic, maxResults)
	if errors.Is(err, domain.ErrNothingFetched) {
		return domret.Unavailable[int]()
	}
	if err != nil {
		return domret.Failed[int](fmt.Errorf("%w: %w", domain.ErrIngestionFailed, err))
	}

	docs := make([]document.Document, len(p.records))
	vecs := make([][]float32, len(p.records))
	for i, r := range p.records {
		docs[i] = document.Reconstruct(r.id, r.content, r.metadata, target)
		vecs[i] = r.vector
	}

	col, err := s.provider.GetOrCreate(ctx, target)
	if err != nil {
		return domret.Failed[int](fmt.Errorf("open %s: %w", target, err))
	}
	if err := col.Add(ctx, docs, vecs); err != nil {
		return domret.Failed[int](fmt.Errorf("store into %s: %w", target, err))
	}

	metrics.IngestedDocumentsTotal.WithLabelValues(target).Add(float64(len(docs)))
	s.logger.Info("Stored literature",
		zap.String("topic", topic),
		zap.String("collection", target),
		zap.Int("documents", len(docs)),
	)
	return domret.Ok(len(docs))
}

func (s *Service) prepare(ctx context.Context, topic string, maxResults int) (*prepared, error) {
	key := fmt.Sprintf("%s\x00%d", topic, maxResults)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last != nil && s.last.key == key && time.Since(s.last.at) < s.opts.ReuseFor {
		return s.last, nil
	}

	ids, err := s.searchIDs(ctx, topic, maxResults)
	if err != nil {
		return nil, err
	}

	articles, err := s.lit.Fetch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch %d records: %w", len(ids), err)
	}
	if len(articles) == 0 {
		return nil, fmt.Errorf("no records for %d ids: %w", len(ids), domain.ErrNothingFetched)
	}

	records := make([]record, 0, len(articles))
	for i := range articles {
		doc, err := FormatArticle(&articles[i], i, "")
		if err != nil {
			s.logger.Warn("Skipping malformed record", zap.String("pmid", articles[i].PMID), zap.Error(err))
			continue
		}
		records = append(records, record{id: doc.ID(), content: doc.Content(), metadata: doc.Metadata()})
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("all %d records malformed: %w", len(articles), domain.ErrNothingFetched)
	}

	records, err = s.embedRecords(ctx, records)
	if err != nil {
		return nil, err
	}

	p := &prepared{key: key, at: time.Now(), records: records}
	s.last = p
	return p, nil
}

// searchIDs retries the topic search, then falls back to the fallback topic once.
func (s *Service) searchIDs(ctx context.Context, topic string, maxResults int) ([]string, error) {
	var ids []string
	err := RetryWithBackoff(ctx, func() error {
		found, err := s.lit.Search(ctx, topic, maxResults)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return errNoIDs
		}
		ids = found
		return nil
	}, s.opts.Attempts, s.opts.RetryDelay, s.logger)
	if err == nil {
		return ids, nil
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("search %q: %w", topic, err)
	}

	s.logger.Warn("Search found nothing, trying fallback topic",
		zap.String("topic", topic),
		zap.String("fallback", s.opts.FallbackTopic),
		zap.Error(err),
	)
	ids, err = s.lit.Search(ctx, s.opts.FallbackTopic, s.opts.FallbackMaxResults)
	if err != nil {
		return nil, fmt.Errorf("fallback search %q: %w", s.opts.FallbackTopic, err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("topic %q: %w", topic, domain.ErrNothingFetched)
	}
	return ids, nil
}

// embedRecords embeds records in chunks on the worker pool. Records whose chunk
// fails are dropped; it fails only when nothing could be embedded.
func (s *Service) embedRecords(ctx context.Context, records []record) ([]record, error) {
	size := (len(records) + s.opts.Workers - 1) / s.opts.Workers

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		lastErr error
	)
	for start := 0; start < len(records); start += size {
		chunk := records[start:min(start+size, len(records))]
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			texts := make([]string, len(chunk))
			for i := range chunk {
				texts[i] = chunk[i].content
			}
			res, err := domain.EmbedAll(ctx, s.embed, texts)
			if err != nil {
				mu.Lock()
				lastErr = err
				mu.Unlock()
				s.logger.Warn("Embedding chunk failed", zap.Int("records", len(chunk)), zap.Error(err))
				return
			}
			for i := range chunk {
				chunk[i].vector = res.Embeddings[i]
			}
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			lastErr = fmt.Errorf("submit embedding task: %w", err)
			mu.Unlock()
		}
	}
	wg.Wait()

	out := records[:0]
	for _, r := range records {
		if r.vector != nil {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("embed %d records: %w", len(records), lastErr)
	}
	return out, nil
}
