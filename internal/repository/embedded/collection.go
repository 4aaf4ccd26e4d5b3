package embedded

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"

	"github.com/dgraph-io/badger/v4"

	"github.com/kailas-cloud/medrag/internal/domain"
	"github.com/kailas-cloud/medrag/internal/domain/document"
	"github.com/kailas-cloud/medrag/internal/domain/retrieval"
)

type storedDoc struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Vector   []float32      `json:"vector"`
}

// Collection is a badger-backed collection queried by brute-force cosine scan.
type Collection struct {
	name      string
	backend   *Backend
	vectorDim int
}

var _ retrieval.Collection = (*Collection)(nil)

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Count returns the number of stored documents. It walks keys only.
func (c *Collection) Count(ctx context.Context) (int, error) {
	n := 0
	err := c.scan(ctx, false, func(*badger.Item) error {
		n++
		return nil
	})
	if err != nil {
		return 0, domain.NewCollectionError(c.name, err)
	}
	return n, nil
}

// Query returns up to limit nearest documents by cosine distance, closest
// first. Stored vectors of another dimension are skipped.
func (c *Collection) Query(ctx context.Context, vector []float32, limit int) ([]retrieval.Neighbor, error) {
	if len(vector) != c.vectorDim {
		return nil, fmt.Errorf("query vector has dim %d, expected %d: %w",
			len(vector), c.vectorDim, domain.ErrVectorDimMismatch)
	}
	if limit <= 0 {
		return nil, nil
	}

	var out []retrieval.Neighbor
	err := c.scan(ctx, true, func(item *badger.Item) error {
		sd, err := decode(item)
		if err != nil {
			return err
		}
		if len(sd.Vector) != len(vector) {
			return nil
		}
		out = append(out, retrieval.Neighbor{
			Doc:      document.Reconstruct(sd.ID, sd.Content, sd.Metadata, c.name),
			Distance: 1 - cosine(vector, sd.Vector),
		})
		return nil
	})
	if err != nil {
		return nil, domain.NewCollectionError(c.name, err)
	}

	slices.SortStableFunc(out, func(a, b retrieval.Neighbor) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Add stores docs with their embeddings in one transaction. A document whose
// id already exists is overwritten.
func (c *Collection) Add(_ context.Context, docs []document.Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("%d documents with %d embeddings: %w",
			len(docs), len(embeddings), domain.ErrInvalidRequest)
	}
	for i, e := range embeddings {
		if len(e) != c.vectorDim {
			return fmt.Errorf("embedding %d has dim %d, expected %d: %w",
				i, len(e), c.vectorDim, domain.ErrVectorDimMismatch)
		}
	}
	if len(docs) == 0 {
		return nil
	}

	err := c.backend.update(func(tx *badger.Txn) error {
		for i := range docs {
			raw, err := json.Marshal(storedDoc{
				ID:       docs[i].ID(),
				Content:  docs[i].Content(),
				Metadata: docs[i].Metadata(),
				Vector:   embeddings[i],
			})
			if err != nil {
				return fmt.Errorf("encode %s: %w", docs[i].ID(), err)
			}
			if err := tx.Set(docKey(c.name, docs[i].ID()), raw); err != nil {
				return err //nolint:wrapcheck // wrapped below
			}
		}
		return nil
	})
	if err != nil {
		return domain.NewCollectionError(c.name, err)
	}
	return nil
}

// GetAll returns every stored document in key order.
func (c *Collection) GetAll(ctx context.Context) ([]document.Document, error) {
	var docs []document.Document
	err := c.scan(ctx, true, func(item *badger.Item) error {
		sd, err := decode(item)
		if err != nil {
			return err
		}
		docs = append(docs, document.Reconstruct(sd.ID, sd.Content, sd.Metadata, c.name))
		return nil
	})
	if err != nil {
		return nil, domain.NewCollectionError(c.name, err)
	}
	return docs, nil
}

func (c *Collection) scan(ctx context.Context, values bool, fn func(*badger.Item) error) error {
	return c.backend.view(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = docPrefix(c.name)
		opts.PrefetchValues = values
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err //nolint:wrapcheck // context error is returned as-is
			}
			if err := fn(it.Item()); err != nil {
				return err
			}
		}
		return nil
	})
}

func decode(item *badger.Item) (storedDoc, error) {
	var sd storedDoc
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &sd)
	})
	if err != nil {
		return sd, fmt.Errorf("decode %s: %w", item.Key(), err)
	}
	if sd.Metadata == nil {
		sd.Metadata = map[string]any{}
	}
	return sd, nil
}

// cosine returns the cosine similarity, 0 for zero vectors.
func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
