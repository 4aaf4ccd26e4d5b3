package retrieval

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/medrag/internal/domain"
	domret "github.com/kailas-cloud/medrag/internal/domain/retrieval"
)

// handle is a configured collection name and its open handle, nil while absent.
type handle struct {
	name string
	col  domret.Collection
}

// registry holds the collection handles in configuration order. The whole slice
// is replaced on reload.
type registry struct {
	provider domret.CollectionProvider
	names    []string
	logger   *zap.Logger

	mu      sync.RWMutex
	handles []handle
}

func newRegistry(provider domret.CollectionProvider, names []string, logger *zap.Logger) *registry {
	r := &registry{provider: provider, names: names, logger: logger}
	r.handles = make([]handle, len(names))
	for i, n := range names {
		r.handles[i] = handle{name: n}
	}
	return r
}

// reload reopens every configured collection. A missing collection stays absent.
func (r *registry) reload(ctx context.Context) {
	next := make([]handle, len(r.names))
	prev := r.snapshot()
	for i, name := range r.names {
		next[i] = handle{name: name}
		col, err := r.provider.Get(ctx, name)
		switch {
		case err == nil:
			next[i].col = col
		case errors.Is(err, domain.ErrNotFound):
			r.logger.Debug("Collection absent", zap.String("collection", name))
		default:
			r.logger.Warn("Failed to open collection, keeping previous handle",
				zap.String("collection", name), zap.Error(err))
			next[i].col = prev[i].col
		}
	}

	r.mu.Lock()
	r.handles = next
	r.mu.Unlock()
}

func (r *registry) snapshot() []handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]handle, len(r.handles))
	copy(out, r.handles)
	return out
}

// Collections implements CollectionSource.
func (r *registry) Collections() []domret.Collection {
	hs := r.snapshot()
	out := make([]domret.Collection, 0, len(hs))
	for _, h := range hs {
		if h.col != nil {
			out = append(out, h.col)
		}
	}
	return out
}
