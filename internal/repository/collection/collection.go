package collection

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kailas-cloud/medrag/internal/db"
	"github.com/kailas-cloud/medrag/internal/domain"
	"github.com/kailas-cloud/medrag/internal/domain/document"
	"github.com/kailas-cloud/medrag/internal/domain/retrieval"
)

// Collection is an open handle to one FT-indexed collection.
type Collection struct {
	name      string
	keys      keySet
	store     store
	vectorDim int
	pageSize  int
}

var _ retrieval.Collection = (*Collection)(nil)

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Count returns the number of indexed documents.
func (c *Collection) Count(ctx context.Context) (int, error) {
	n, err := c.store.SearchCount(ctx, c.keys.index, "*")
	if err != nil {
		return 0, c.wrap("count", err)
	}
	return n, nil
}

// Query returns up to limit nearest neighbours with their raw cosine distance.
func (c *Collection) Query(ctx context.Context, vector []float32, limit int) ([]retrieval.Neighbor, error) {
	if limit <= 0 {
		return nil, nil
	}
	if len(vector) != c.vectorDim {
		return nil, fmt.Errorf("query vector has %d dims, collection %s expects %d: %w",
			len(vector), c.name, c.vectorDim, domain.ErrVectorDimMismatch)
	}

	res, err := c.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    c.keys.index,
		Vector:       vector,
		K:            limit,
		ReturnFields: returnFields,
		RawScores:    true,
	})
	if err != nil {
		return nil, c.wrap("query", err)
	}

	out := make([]retrieval.Neighbor, 0, len(res.Entries))
	for _, e := range res.Entries {
		out = append(out, retrieval.Neighbor{
			Doc:      parseHashFields(e.Key, c.keys.prefix, c.name, e.Fields),
			Distance: e.Score,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out, nil
}

// Add writes documents with their embeddings in one pipelined round-trip.
// Existing ids are overwritten.
func (c *Collection) Add(ctx context.Context, docs []document.Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("add to %s: %d documents but %d embeddings", c.name, len(docs), len(embeddings))
	}
	if len(docs) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, len(docs))
	for i := range docs {
		if len(embeddings[i]) != c.vectorDim {
			return fmt.Errorf("document %s has %d dims, expected %d: %w",
				docs[i].ID(), len(embeddings[i]), c.vectorDim, domain.ErrVectorDimMismatch)
		}
		fields, err := buildHashFields(&docs[i], embeddings[i])
		if err != nil {
			return fmt.Errorf("encode document %s: %w", docs[i].ID(), err)
		}
		items[i] = db.HashSetItem{Key: c.keys.prefix + docs[i].ID(), Fields: fields}
	}

	if err := c.store.HSetMulti(ctx, items); err != nil {
		return c.wrap("add", err)
	}
	return nil
}

// GetAll pages through every document of the collection.
func (c *Collection) GetAll(ctx context.Context) ([]document.Document, error) {
	var docs []document.Document
	for offset := 0; ; offset += c.pageSize {
		res, err := c.store.SearchList(ctx, c.keys.index, "*", offset, c.pageSize, returnFields)
		if err != nil {
			return nil, c.wrap("get all", err)
		}
		if docs == nil {
			docs = make([]document.Document, 0, res.Total)
		}
		for _, e := range res.Entries {
			docs = append(docs, parseHashFields(e.Key, c.keys.prefix, c.name, e.Fields))
		}
		if len(res.Entries) == 0 || offset+c.pageSize >= res.Total {
			return docs, nil
		}
	}
}

func (c *Collection) wrap(op string, err error) error {
	if errors.Is(err, db.ErrIndexNotFound) {
		err = errors.Join(err, domain.ErrNotFound)
	}
	return domain.NewCollectionError(c.name, fmt.Errorf("%s: %w", op, err))
}
