package medrag

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/medrag/internal/config"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	cfg config.Config

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

func newClientConfig() *clientConfig {
	disabled := false
	c := &clientConfig{}
	// The engine config validates an HTTP port even though the SDK never listens.
	c.cfg.HTTP.Port = 8080
	c.cfg.Ingestion.Enabled = &disabled
	return c
}

// WithRedis stores collections in Redis with the search module.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Database.Driver = config.DriverRedis
		c.cfg.Database.Addrs = []string{addr}
		c.cfg.Database.Password = password
	})
}

// WithValkey stores collections in Valkey with valkey-search.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Database.Driver = config.DriverValkey
		c.cfg.Database.Addrs = []string{addr}
		c.cfg.Database.Password = password
	})
}

// WithBadger stores collections in an embedded badger database at path.
func WithBadger(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Database.Driver = config.DriverBadger
		c.cfg.Database.Path = path
		c.cfg.Database.InMemory = false
	})
}

// WithInMemory keeps everything in an in-memory badger store. Data is lost on Close.
func WithInMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Database.Driver = config.DriverBadger
		c.cfg.Database.Path = ""
		c.cfg.Database.InMemory = true
	})
}

// WithEmbedding configures the OpenAI-compatible embedding provider.
func WithEmbedding(baseURL, apiKey, model string, dimensions int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Embedding.BaseURL = baseURL
		c.cfg.Embedding.APIKey = apiKey
		c.cfg.Embedding.Model = model
		c.cfg.Embedding.Dimensions = dimensions
	})
}

// WithInstructions sets the prefixes prepended to documents and queries
// before embedding. Instruction-tuned models need them.
func WithInstructions(document, query string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Embedding.DocumentInstruction = document
		c.cfg.Embedding.QueryInstruction = query
	})
}

// WithoutEmbeddingCache disables the persistent embedding cache.
func WithoutEmbeddingCache() Option {
	return optionFunc(func(c *clientConfig) {
		off := false
		c.cfg.Embedding.CacheEnabled = &off
	})
}

// WithCollections overrides the primary and literature collection names.
func WithCollections(primary, literature string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Collections.Primary = primary
		c.cfg.Collections.Literature = literature
	})
}

// WithHNSW configures HNSW index parameters for Redis and Valkey.
// Defaults: M=16, EFConstruct=200.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Index.HNSWM = m
		c.cfg.Index.HNSWEFConstruct = efConstruct
	})
}

// WithVectorWeight blends vector similarity into relevance. 0 keeps keyword-only ranking.
func WithVectorWeight(w float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Retrieval.VectorWeight = w
	})
}

// WithPubMed enables literature enrichment from NCBI E-utilities.
// Without it the client never calls out to PubMed.
func WithPubMed(email, apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		on := true
		c.cfg.Ingestion.Enabled = &on
		c.cfg.Ingestion.Email = email
		c.cfg.Ingestion.APIKey = apiKey
	})
}

// WithPubMedURL points enrichment at another E-utilities endpoint, e.g. a mirror.
func WithPubMedURL(baseURL string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Ingestion.BaseURL = baseURL
	})
}

// WithLogger enables structured logging. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
