package embedded

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/kailas-cloud/medrag/internal/domain"
	"github.com/kailas-cloud/medrag/internal/domain/retrieval"
)

type collectionMeta struct {
	Name      string `json:"name"`
	VectorDim int    `json:"vector_dim"`
	Metric    string `json:"metric"`
	CreatedAt int64  `json:"created_at"`
}

// Client opens collections stored in a Backend.
type Client struct {
	backend   *Backend
	vectorDim int
	logger    *zap.Logger
}

var _ retrieval.CollectionProvider = (*Client)(nil)

// New creates a client; vectorDim is enforced on every collection it opens.
func New(backend *Backend, vectorDim int, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{backend: backend, vectorDim: vectorDim, logger: logger}
}

// Get opens an existing collection.
func (c *Client) Get(_ context.Context, name string) (retrieval.Collection, error) {
	var meta collectionMeta
	err := c.backend.view(func(tx *badger.Txn) error {
		return readJSON(tx, metaKey(name), &meta)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("collection %s: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read collection %s: %w", name, err)
	}
	if meta.VectorDim != c.vectorDim {
		return nil, fmt.Errorf("collection %s has dim %d, configured %d: %w",
			name, meta.VectorDim, c.vectorDim, domain.ErrVectorDimMismatch)
	}
	return c.open(name), nil
}

// GetOrCreate opens name, writing its marker when absent.
func (c *Client) GetOrCreate(ctx context.Context, name string) (retrieval.Collection, error) {
	col, err := c.Get(ctx, name)
	if err == nil || !errors.Is(err, domain.ErrNotFound) {
		return col, err
	}

	meta := collectionMeta{
		Name:      name,
		VectorDim: c.vectorDim,
		Metric:    "COSINE",
		CreatedAt: time.Now().UnixMilli(),
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode collection meta: %w", err)
	}
	if err := c.backend.update(func(tx *badger.Txn) error {
		return tx.Set(metaKey(name), raw)
	}); err != nil {
		return nil, fmt.Errorf("create collection %s: %w", name, err)
	}

	c.logger.Info("Collection created", zap.String("name", name), zap.String("driver", "badger"))
	return c.open(name), nil
}

func (c *Client) open(name string) *Collection {
	return &Collection{name: name, backend: c.backend, vectorDim: c.vectorDim}
}

func readJSON(tx *badger.Txn, key []byte, dst any) error {
	item, err := tx.Get(key)
	if err != nil {
		return err //nolint:wrapcheck // callers match badger.ErrKeyNotFound
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dst)
	})
}
