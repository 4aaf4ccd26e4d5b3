package retrieval

import (
	"context"

	"github.com/kailas-cloud/medrag/internal/domain/document"
)

// Neighbor is a nearest-neighbour hit with its cosine distance in [0,2].
type Neighbor struct {
	Doc      document.Document
	Distance float64
}

// Similarity returns 1 - distance.
func (n Neighbor) Similarity() float64 { return 1 - n.Distance }

// Collection is a named, independently countable vector store shared by the
// storage backends and the orchestrator.
type Collection interface {
	Name() string
	Count(ctx context.Context) (int, error)
	// Query returns up to limit neighbours ordered by ascending distance.
	Query(ctx context.Context, vector []float32, limit int) ([]Neighbor, error)
	Add(ctx context.Context, docs []document.Document, embeddings [][]float32) error
	GetAll(ctx context.Context) ([]document.Document, error)
}

// CollectionProvider opens collections by name.
type CollectionProvider interface {
	// Get returns domain.ErrNotFound when the collection does not exist.
	Get(ctx context.Context, name string) (Collection, error)
	GetOrCreate(ctx context.Context, name string) (Collection, error)
}
