package retrieval

import (
	"context"

	domret "github.com/kailas-cloud/medrag/internal/domain/retrieval"
)

// Fetcher pulls literature for a topic into a target collection.
type Fetcher interface {
	FetchAndStore(ctx context.Context, topic string, maxResults int, target string) domret.Outcome[int]
}

// CollectionSource lists the collection handles currently open, in source order.
type CollectionSource interface {
	Collections() []domret.Collection
}
