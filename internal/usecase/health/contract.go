package health

import (
	"context"

	domret "github.com/kailas-cloud/medrag/internal/domain/retrieval"
)

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// CollectionGetter opens a collection by name without creating it.
type CollectionGetter interface {
	Get(ctx context.Context, name string) (domret.Collection, error)
}
