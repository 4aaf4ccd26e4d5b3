// Package app wires the engine from configuration. Both the HTTP server and
// the operator CLI build on it.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/medrag/internal/config"
	"github.com/kailas-cloud/medrag/internal/db"
	dbRedis "github.com/kailas-cloud/medrag/internal/db/redis"
	"github.com/kailas-cloud/medrag/internal/domain"
	domret "github.com/kailas-cloud/medrag/internal/domain/retrieval"
	"github.com/kailas-cloud/medrag/internal/metrics"
	collectionrepo "github.com/kailas-cloud/medrag/internal/repository/collection"
	"github.com/kailas-cloud/medrag/internal/repository/embcache"
	"github.com/kailas-cloud/medrag/internal/repository/embedded"
	openaiEmb "github.com/kailas-cloud/medrag/internal/transport/openai"
	"github.com/kailas-cloud/medrag/internal/transport/pubmed"
	documentuc "github.com/kailas-cloud/medrag/internal/usecase/document"
	healthuc "github.com/kailas-cloud/medrag/internal/usecase/health"
	"github.com/kailas-cloud/medrag/internal/usecase/ingestion"
	"github.com/kailas-cloud/medrag/internal/usecase/retrieval"
)

// App holds the wired services. Close releases everything Build opened.
type App struct {
	Retrieval *retrieval.Service
	Documents *documentuc.Service
	Health    *healthuc.Service

	closers []func()
	logger  *zap.Logger
}

// storage is what a driver contributes: collections, a KV for the embedding
// cache and a liveness probe.
type storage struct {
	provider domret.CollectionProvider
	kv       db.KVStore
	pinger   db.Pinger
	close    func()
}

// Build opens the store, builds the embedder chains and the services.
// Errors are fatal for the caller.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRetrievalMetrics()

	a := &App{logger: logger}
	built := false
	defer func() {
		if !built {
			a.Close()
		}
	}()

	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, st.close)

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})
	docEmbedder := buildEmbedder(cfg, base, st.kv, cfg.Embedding.DocumentInstruction, logger)
	queryEmbedder := buildEmbedder(cfg, base, st.kv, cfg.Embedding.QueryInstruction, logger)
	logger.Info("Embedders created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cache", cfg.Embedding.IsCacheEnabled()),
	)

	// A nil *ingestion.Service inside the interface would look enabled.
	var fetcher retrieval.Fetcher
	if cfg.Ingestion.IsEnabled() {
		ing, err := buildIngestion(cfg, st.provider, docEmbedder, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, ing.Release)
		fetcher = ing
	}

	a.Retrieval, err = retrieval.New(ctx, st.provider, queryEmbedder, fetcher, retrieval.Options{
		Primary:         cfg.Collections.Primary,
		Literature:      cfg.Collections.Literature,
		DefaultTopK:     cfg.Retrieval.DefaultTopK,
		MaxTopK:         cfg.Retrieval.MaxTopK,
		Oversample:      cfg.Retrieval.Oversample,
		VectorWeight:    cfg.Retrieval.VectorWeight,
		PassTimeout:     time.Duration(cfg.Retrieval.TimeoutSec) * time.Second,
		FetchTargets:    cfg.Ingestion.Targets,
		FetchMaxResults: cfg.Ingestion.MaxResults,
		FetchTimeout:    time.Duration(cfg.Ingestion.TimeoutSec) * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create retrieval service: %w", err)
	}

	a.Documents = documentuc.New(st.provider, docEmbedder, a.Retrieval, cfg.Collections.Primary, logger)
	a.Health = healthuc.New(st.pinger, base, logger).WithPrimaryCollection(st.provider, cfg.Collections.Primary)
	built = true
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storage, error) {
	switch cfg.Database.Driver {
	case config.DriverRedis, config.DriverValkey:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:       cfg.Database.Addrs,
			Password:    cfg.Database.Password,
			ScanListing: cfg.Database.Driver == config.DriverValkey,
		})
		if err != nil {
			return nil, fmt.Errorf("create database store: %w", err)
		}
		timeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, timeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("database not ready: %w", err)
		}
		logger.Info("Connected to database",
			zap.String("driver", cfg.Database.Driver),
			zap.Strings("addrs", cfg.Database.Addrs),
		)
		provider := collectionrepo.New(store, cfg.Storage.KeyPrefix, cfg.Embedding.Dimensions, logger).
			WithHNSW(collectionrepo.HNSWConfig{M: cfg.Index.HNSWM, EFConstruct: cfg.Index.HNSWEFConstruct})
		return &storage{provider: provider, kv: store, pinger: store, close: store.Close}, nil

	case config.DriverBadger:
		backend, err := embedded.OpenBackend(cfg.Database.Path, cfg.Database.InMemory, logger)
		if err != nil {
			return nil, fmt.Errorf("open embedded store: %w", err)
		}
		logger.Info("Opened embedded store",
			zap.String("path", cfg.Database.Path),
			zap.Bool("in_memory", cfg.Database.InMemory),
		)
		closeFn := func() {
			if err := backend.Close(); err != nil {
				logger.Warn("Failed to close embedded store", zap.Error(err))
			}
		}
		provider := embedded.New(backend, cfg.Embedding.Dimensions, logger)
		return &storage{provider: provider, kv: backend, pinger: backend, close: closeFn}, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instruction.
// The instruction is outermost so it is part of the cache key.
func buildEmbedder(
	cfg *config.Config, base *openaiEmb.Embedder, kv db.KVStore, instruction string, logger *zap.Logger,
) domain.Embedder {
	var embedder domain.Embedder = base
	if cfg.Embedding.IsCacheEnabled() && kv != nil {
		ttl := time.Duration(cfg.Embedding.CacheTTLHours) * time.Hour
		embedder = embcache.New(base, kv, cfg.Storage.KeyPrefix, cfg.Embedding.Model, ttl,
			metrics.EmbeddingCacheTotal, logger)
	}
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}
	return embedder
}

func buildIngestion(
	cfg *config.Config, provider domret.CollectionProvider, embed domain.Embedder, logger *zap.Logger,
) (*ingestion.Service, error) {
	in := cfg.Ingestion
	lit := pubmed.New(pubmed.Config{
		BaseURL: in.BaseURL,
		APIKey:  in.APIKey,
		Tool:    in.Tool,
		Email:   in.Email,
		Timeout: time.Duration(in.TimeoutSec) * time.Second,
		Logger:  logger,
	})
	svc, err := ingestion.New(lit, provider, embed, ingestion.Options{
		Attempts:           in.Attempts,
		RetryDelay:         time.Duration(in.RetryDelayMs) * time.Millisecond,
		FallbackTopic:      in.FallbackTopic,
		FallbackMaxResults: in.FallbackMaxResults,
		Workers:            in.Workers,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create ingestion service: %w", err)
	}
	return svc, nil
}
