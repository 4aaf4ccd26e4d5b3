package medrag

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/medrag/internal/app"
	domret "github.com/kailas-cloud/medrag/internal/domain/retrieval"
	documentuc "github.com/kailas-cloud/medrag/internal/usecase/document"
	healthuc "github.com/kailas-cloud/medrag/internal/usecase/health"
)

type retrievalUseCase interface {
	Retrieve(ctx context.Context, q string, topK int) ([]domret.Result, error)
	Enrich(ctx context.Context, topic string, maxResults int) (bool, error)
	Stats(ctx context.Context) domret.Stats
	DefaultTopK() int
}

type documentUseCase interface {
	Add(ctx context.Context, items []documentuc.Input) ([]string, error)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Client is the medrag SDK entry point.
type Client struct {
	retrieval retrievalUseCase
	documents documentUseCase
	health    healthUseCase
	close     func()
	obs       *observer
}

// New builds the engine and connects to the store.
// The provided context bounds the readiness check and the initial index load.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cc := newClientConfig()
	for _, o := range opts {
		o.apply(cc)
	}

	cfg := cc.cfg
	if cfg.Database.Driver == "" {
		return nil, fmt.Errorf("medrag: storage required (use WithRedis, WithValkey, WithBadger or WithInMemory)")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("medrag: %w", err)
	}

	obs, err := newObserver(cc.logger, cc.metricsReg)
	if err != nil {
		return nil, err
	}

	logger := cc.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	engine, err := app.Build(ctx, &cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("medrag: %w", err)
	}

	return &Client{
		retrieval: engine.Retrieval,
		documents: engine.Documents,
		health:    engine.Health,
		close:     engine.Close,
		obs:       obs,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.close != nil {
		c.close()
	}
}

// Retrieve runs the hybrid two-pass retrieval. topK <= 0 uses the configured default.
func (c *Client) Retrieve(ctx context.Context, query string, topK int) (_ []Result, err error) {
	start := time.Now()
	defer func() { c.obs.observe("retrieve", start, err) }()

	if topK <= 0 {
		topK = c.retrieval.DefaultTopK()
	}
	res, err := c.retrieval.Retrieve(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	out := make([]Result, len(res))
	for i := range res {
		r := &res[i]
		out[i] = Result{
			ID:        r.ID(),
			Content:   r.Document(),
			Metadata:  r.Metadata(),
			Source:    r.Source().Name,
			RawScore:  r.RawScore(),
			Relevance: r.RelevanceScore(),
		}
	}
	return out, nil
}

// Add embeds and stores documents in the primary collection and returns their ids.
func (c *Client) Add(ctx context.Context, docs ...Document) (_ []string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("add", start, err) }()

	items := make([]documentuc.Input, len(docs))
	for i, d := range docs {
		items[i] = documentuc.Input{Content: d.Content, Metadata: d.Metadata}
	}
	ids, err := c.documents.Add(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("add documents: %w", err)
	}
	return ids, nil
}

// Fetch pulls literature for topic into the configured collections.
// It reports false when enrichment is disabled or nothing was found.
func (c *Client) Fetch(ctx context.Context, topic string, maxResults int) (_ bool, err error) {
	start := time.Now()
	defer func() { c.obs.observe("fetch", start, err) }()

	ok, err := c.retrieval.Enrich(ctx, topic, maxResults)
	if err != nil {
		return false, fmt.Errorf("fetch: %w", err)
	}
	return ok, nil
}

// Stats reports per-collection document counts.
func (c *Client) Stats(ctx context.Context) Stats {
	start := time.Now()
	defer c.obs.observe("stats", start, nil)

	st := c.retrieval.Stats(ctx)
	cols := make(map[string]int, len(st.Collections))
	for _, col := range st.Collections {
		cols[col.Name] = col.Count
	}
	return Stats{Collections: cols, Total: st.Total, LexicalDocuments: st.LexicalDocuments}
}

// Health checks the health of all system components.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.health.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}
