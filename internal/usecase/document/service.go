// Package document adds caller-supplied documents to the primary collection.
package document

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/medrag/internal/domain"
	domdoc "github.com/kailas-cloud/medrag/internal/domain/document"
)

// MaxBatchSize is the maximum number of documents per Add call.
const MaxBatchSize = 100

// Input is one document to add.
type Input struct {
	Content  string
	Metadata map[string]any
}

// Service handles direct document addition with automatic vectorization.
type Service struct {
	colls        CollectionOpener
	embed        domain.Embedder
	index        IndexRebuilder
	collection   string
	maxBatchSize int
	logger       *zap.Logger
}

// New creates a document service writing into collection. index may be nil.
func New(
	colls CollectionOpener, embed domain.Embedder, index IndexRebuilder, collection string, logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		colls:        colls,
		embed:        embed,
		index:        index,
		collection:   collection,
		maxBatchSize: MaxBatchSize,
		logger:       logger,
	}
}

// WithMaxBatchSize configures the maximum batch size.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// Add validates, embeds and stores items, then rebuilds the lexical index.
// Ids are content hashes, so adding the same content twice overwrites.
// Returns the ids in input order.
func (s *Service) Add(ctx context.Context, items []Input) ([]string, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("no documents: %w", domain.ErrInvalidRequest)
	}
	if len(items) > s.maxBatchSize {
		return nil, fmt.Errorf("batch size %d exceeds %d: %w", len(items), s.maxBatchSize, domain.ErrInvalidRequest)
	}

	docs := make([]domdoc.Document, len(items))
	texts := make([]string, len(items))
	ids := make([]string, len(items))
	for i, it := range items {
		id := domdoc.ContentID(domdoc.CustomIDPrefix, it.Content)
		doc, err := domdoc.New(id, it.Content, it.Metadata, s.collection)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w: %w", i, domain.ErrInvalidDocument, err)
		}
		docs[i] = doc
		texts[i] = it.Content
		ids[i] = id
	}

	res, err := domain.EmbedAll(ctx, s.embed, texts)
	if err != nil {
		return nil, fmt.Errorf("vectorize documents: %w", err)
	}

	col, err := s.colls.GetOrCreate(ctx, s.collection)
	if err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}
	if err := col.Add(ctx, docs, res.Embeddings); err != nil {
		return nil, fmt.Errorf("add documents: %w", err)
	}

	if s.index != nil {
		s.index.Rebuild(ctx)
	}
	s.logger.Info("Documents added",
		zap.String("collection", s.collection),
		zap.Int("count", len(docs)),
		zap.Int("tokens", res.TotalTokens),
	)
	return ids, nil
}
