package document

import (
	"context"

	domret "github.com/kailas-cloud/medrag/internal/domain/retrieval"
)

// CollectionOpener opens the collection documents are written to.
type CollectionOpener interface {
	GetOrCreate(ctx context.Context, name string) (domret.Collection, error)
}

// IndexRebuilder refreshes derived indexes after a write.
type IndexRebuilder interface {
	Rebuild(ctx context.Context)
}
