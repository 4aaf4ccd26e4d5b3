// Package collection stores vector collections as HASH keys under an FT index.
package collection

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/medrag/internal/db"
	"github.com/kailas-cloud/medrag/internal/domain"
	"github.com/kailas-cloud/medrag/internal/domain/retrieval"
)

// store is the consumer interface for collections (ISP).
//
//nolint:interfacebloat // collection repo needs hash + index + search operations
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchList(ctx context.Context, index, query string, offset, limit int, fields []string) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Client opens collections stored in Redis/Valkey.
type Client struct {
	store     store
	keyPrefix string
	vectorDim int
	hnsw      HNSWConfig
	pageSize  int
	logger    *zap.Logger
}

var _ retrieval.CollectionProvider = (*Client)(nil)

// New creates a collection client.
func New(s store, keyPrefix string, vectorDim int, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		store:     s,
		keyPrefix: keyPrefix,
		vectorDim: vectorDim,
		hnsw:      HNSWConfig{M: 16, EFConstruct: 200},
		pageSize:  500,
		logger:    logger,
	}
}

// WithHNSW configures HNSW index parameters.
func (c *Client) WithHNSW(cfg HNSWConfig) *Client {
	if cfg.M > 0 {
		c.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		c.hnsw.EFConstruct = cfg.EFConstruct
	}
	return c
}

// WithPageSize sets the FT.SEARCH page size used by GetAll.
func (c *Client) WithPageSize(n int) *Client {
	if n > 0 {
		c.pageSize = n
	}
	return c
}

// Get opens an existing collection. Missing index gives domain.ErrNotFound.
func (c *Client) Get(ctx context.Context, name string) (retrieval.Collection, error) {
	keys := c.keys(name)
	exists, err := c.store.IndexExists(ctx, keys.index)
	if err != nil {
		return nil, fmt.Errorf("check index %s: %w", keys.index, err)
	}
	if !exists {
		return nil, fmt.Errorf("collection %s: %w", name, domain.ErrNotFound)
	}

	if err := c.checkDim(ctx, name, keys.meta); err != nil {
		return nil, err
	}
	return c.open(name), nil
}

// GetOrCreate opens a collection, creating metadata and the FT index when absent.
// On FT.CREATE failure, rolls back the metadata HSET via DEL.
func (c *Client) GetOrCreate(ctx context.Context, name string) (retrieval.Collection, error) {
	col, err := c.Get(ctx, name)
	if err == nil {
		return col, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	keys := c.keys(name)
	def, err := buildIndex(keys, c.vectorDim, c.hnsw)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	meta := map[string]string{
		"name":       name,
		"vector_dim": strconv.Itoa(c.vectorDim),
		"metric":     string(db.DistanceCosine),
		"created_at": strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	if err := c.store.HSetMulti(ctx, []db.HashSetItem{{Key: keys.meta, Fields: meta}}); err != nil {
		return nil, fmt.Errorf("hset collection %s: %w", name, err)
	}

	// FT.CREATE; roll back the HSET on error
	if err := c.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		cleanupErr := c.store.Del(ctx, keys.meta)
		return nil, errors.Join(err, cleanupErr)
	}

	c.logger.Info("Collection created",
		zap.String("collection", name),
		zap.Int("vector_dim", c.vectorDim),
	)
	return c.open(name), nil
}

func (c *Client) checkDim(ctx context.Context, name, metaKey string) error {
	m, err := c.store.HGetAll(ctx, metaKey)
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil // index created outside medrag
	}
	if err != nil {
		return fmt.Errorf("hgetall collection %s: %w", name, err)
	}
	dim, err := strconv.Atoi(m["vector_dim"])
	if err != nil || dim == c.vectorDim {
		return nil
	}
	return fmt.Errorf("collection %s has dim %d, embedder has %d: %w",
		name, dim, c.vectorDim, domain.ErrVectorDimMismatch)
}

func (c *Client) open(name string) *Collection {
	return &Collection{
		name:      name,
		keys:      c.keys(name),
		store:     c.store,
		vectorDim: c.vectorDim,
		pageSize:  c.pageSize,
	}
}

// Key patterns: medrag:collection:{name}, medrag:{name}:idx, medrag:{name}:doc:{id}

type keySet struct {
	meta   string
	index  string
	prefix string
}

func (c *Client) keys(name string) keySet {
	return keySet{
		meta:   fmt.Sprintf("%scollection:%s", c.keyPrefix, name),
		index:  fmt.Sprintf("%s%s:idx", c.keyPrefix, name),
		prefix: fmt.Sprintf("%s%s:doc:", c.keyPrefix, name),
	}
}
