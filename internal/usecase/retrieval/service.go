// Package retrieval orchestrates hybrid retrieval: vector collections and a BM25
// index queried in parallel, fused by keyword overlap, with bounded on-demand
// literature ingestion when nothing matches.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/medrag/internal/domain"
	"github.com/kailas-cloud/medrag/internal/domain/query"
	domret "github.com/kailas-cloud/medrag/internal/domain/retrieval"
	"github.com/kailas-cloud/medrag/internal/metrics"
)

// Options tunes the orchestrator. Zero values take defaults.
type Options struct {
	Primary    string
	Literature string
	// SourceLabels maps a collection name to the source reported on its
	// results. Unlisted collections report their own name.
	SourceLabels map[string]string

	DefaultTopK  int
	MaxTopK      int
	Oversample   int
	VectorWeight float64
	// PassTimeout bounds each retrieval pass; 0 disables it.
	PassTimeout time.Duration

	// FetchTargets are the collections ingestion writes to, in order.
	FetchTargets    []string
	FetchMaxResults int
	FetchTimeout    time.Duration

	Synonyms    []query.Synonym
	FetchTerms  []string
	DomainTerms []string
}

func (o *Options) applyDefaults() {
	if o.Primary == "" {
		o.Primary = "medical_documents"
	}
	if o.Literature == "" {
		o.Literature = "pubmed_collection"
	}
	if o.SourceLabels == nil {
		o.SourceLabels = map[string]string{o.Primary: "main", o.Literature: "pubmed"}
	}
	if o.DefaultTopK <= 0 {
		o.DefaultTopK = 5
	}
	if o.MaxTopK <= 0 {
		o.MaxTopK = 100
	}
	if o.Oversample <= 0 {
		o.Oversample = 2
	}
	if o.FetchTargets == nil {
		o.FetchTargets = []string{o.Literature, o.Primary}
	}
	if o.FetchMaxResults <= 0 {
		o.FetchMaxResults = 10
	}
	if o.FetchTerms == nil {
		o.FetchTerms = query.DefaultFetchTerms
	}
	if o.DomainTerms == nil {
		o.DomainTerms = query.DefaultDomainTerms
	}
}

// Service is the retrieval orchestrator.
type Service struct {
	opts        Options
	provider    domret.CollectionProvider
	embed       domain.Embedder
	transformer *query.Transformer
	fetchTerms  query.TermSet
	domainTerms query.TermSet
	registry    *registry
	indexer     *Indexer
	enricher    *Enricher
	logger      *zap.Logger
}

// New opens the collections, creating the primary one, and builds the lexical
// index. fetcher may be nil to disable enrichment. An error here is fatal.
func New(
	ctx context.Context,
	provider domret.CollectionProvider,
	embed domain.Embedder,
	fetcher Fetcher,
	opts Options,
	logger *zap.Logger,
) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.applyDefaults()

	if _, err := provider.GetOrCreate(ctx, opts.Primary); err != nil {
		return nil, fmt.Errorf("create primary collection %s: %w", opts.Primary, err)
	}

	s := &Service{
		opts:        opts,
		provider:    provider,
		embed:       embed,
		transformer: query.NewTransformer(opts.Synonyms),
		fetchTerms:  query.NewTermSet(opts.FetchTerms),
		domainTerms: query.NewTermSet(opts.DomainTerms),
		logger:      logger,
	}
	s.registry = newRegistry(provider, []string{opts.Primary, opts.Literature}, logger)
	s.indexer = NewIndexer(s.registry, logger)
	s.enricher = &Enricher{
		fetcher:  fetcher,
		targets:  opts.FetchTargets,
		timeout:  opts.FetchTimeout,
		onStored: s.reload,
		logger:   logger,
	}

	s.reload(ctx)
	logger.Info("Retrieval service ready",
		zap.String("primary", opts.Primary),
		zap.String("literature", opts.Literature),
		zap.Int("lexical_documents", s.indexer.Len()),
		zap.Bool("enrichment", s.enricher.Enabled()),
	)
	return s, nil
}

// reload reopens collection handles and forces a lexical rebuild.
func (s *Service) reload(ctx context.Context) {
	s.registry.reload(ctx)
	s.indexer.Rebuild(ctx)
}

// Rebuild forces a lexical rebuild, e.g. after documents were added directly.
func (s *Service) Rebuild(ctx context.Context) {
	s.reload(ctx)
}

func (s *Service) sourceLabel(collection string) string {
	if l, ok := s.opts.SourceLabels[collection]; ok && l != "" {
		return l
	}
	return collection
}

// DefaultTopK returns the configured default result count.
func (s *Service) DefaultTopK() int { return s.opts.DefaultTopK }

// Retrieve returns up to topK results for q. Only invalid input is an error;
// backend and ingestion failures give fewer or no results.
func (s *Service) Retrieve(ctx context.Context, q string, topK int) ([]domret.Result, error) {
	res, _, err := s.RetrieveWithTrace(ctx, q, topK)
	return res, err
}

// RetrieveWithTrace is Retrieve plus a description of the passes that ran.
func (s *Service) RetrieveWithTrace(
	ctx context.Context, q string, topK int,
) ([]domret.Result, Trace, error) {
	var tr Trace
	tr.enter(StateInitial)

	q = strings.TrimSpace(q)
	if q == "" {
		return nil, tr, fmt.Errorf("query must not be empty: %w", domain.ErrInvalidRequest)
	}
	if topK < 1 {
		return nil, tr, fmt.Errorf("top_k must be at least 1, got %d: %w", topK, domain.ErrInvalidRequest)
	}
	topK = min(topK, s.opts.MaxTopK)

	start := time.Now()
	defer func() { metrics.RetrievalDuration.Observe(time.Since(start).Seconds()) }()

	if s.enricher.Enabled() && s.fetchTerms.Matches(q) {
		tr.EagerFetch = true
		tr.Enrichments++
		s.enricher.Fetch(ctx, q, s.opts.FetchMaxResults, TriggerEager)
	}

	tr.enter(StateFirstPass)
	results := s.pass(ctx, q, topK, &tr)

	if len(results) == 0 && ctx.Err() == nil && s.enricher.Enabled() && s.domainTerms.Contains(q) {
		tr.enter(StateEnrich)
		tr.Enrichments++
		s.enricher.Fetch(ctx, q, s.opts.FetchMaxResults, TriggerReactive)

		tr.enter(StateSecondPass)
		results = s.pass(ctx, q, topK, &tr)
	}

	tr.enter(StateReturn)
	if len(results) == 0 {
		s.logger.Info("No results found", zap.String("query", q), zap.Int("passes", tr.Passes))
	}
	return results, tr, nil
}

func (s *Service) pass(ctx context.Context, q string, topK int, tr *Trace) []domret.Result {
	tr.Passes++
	if s.opts.PassTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.PassTimeout)
		defer cancel()
	}

	counts, _ := s.indexer.Refresh(ctx)

	transformed := s.transformer.Transform(q)
	candidates, sources := s.fanOut(ctx, transformed, topK*s.opts.Oversample, counts)
	tr.Sources = append(tr.Sources, sources)

	results := Fuse(candidates, q, topK, s.opts.VectorWeight)

	outcome := "results"
	switch {
	case ctx.Err() != nil:
		outcome = "cancelled"
	case len(results) == 0:
		outcome = "empty"
	}
	metrics.RetrievalPassesTotal.WithLabelValues(outcome).Inc()
	return results
}

// Enrich fetches literature for topic on request. It reports success.
func (s *Service) Enrich(ctx context.Context, topic string, maxResults int) (bool, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return false, fmt.Errorf("topic must not be empty: %w", domain.ErrInvalidRequest)
	}
	if maxResults <= 0 {
		maxResults = s.opts.FetchMaxResults
	}
	if !s.enricher.Enabled() {
		return false, nil
	}
	return s.enricher.Fetch(ctx, topic, maxResults, TriggerManual), nil
}

// Stats counts documents per configured collection. A collection that is
// absent or cannot be counted reports 0.
func (s *Service) Stats(ctx context.Context) domret.Stats {
	var st domret.Stats
	for _, h := range s.registry.snapshot() {
		n := 0
		if h.col != nil {
			c, err := h.col.Count(ctx)
			if err != nil {
				s.logger.Warn("Failed to count collection", zap.String("collection", h.name), zap.Error(err))
			} else {
				n = c
			}
		}
		st.Collections = append(st.Collections, domret.CollectionCount{Name: h.name, Count: n})
		st.Total += n
	}
	st.LexicalDocuments = s.indexer.Len()
	return st
}
