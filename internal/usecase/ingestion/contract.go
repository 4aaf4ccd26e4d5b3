package ingestion

import (
	"context"

	"github.com/kailas-cloud/medrag/internal/transport/pubmed"
)

// Literature searches and fetches literature records.
type Literature interface {
	Search(ctx context.Context, term string, maxResults int) ([]string, error)
	Fetch(ctx context.Context, pmids []string) ([]pubmed.Article, error)
}
