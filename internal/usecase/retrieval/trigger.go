package retrieval

import (
	"context"
	"time"

	"go.uber.org/zap"

	domret "github.com/kailas-cloud/medrag/internal/domain/retrieval"
	"github.com/kailas-cloud/medrag/internal/metrics"
)

// Enrichment triggers, used as metric labels.
const (
	TriggerEager    = "eager"
	TriggerReactive = "reactive"
	TriggerManual   = "manual"
)

// Enricher runs the ingestion collaborator for every target collection and
// refreshes retrieval state when anything was stored.
type Enricher struct {
	fetcher Fetcher
	targets []string
	timeout time.Duration
	// onStored reopens collections and rebuilds the lexical index.
	onStored func(ctx context.Context)
	logger   *zap.Logger
}

// Enabled reports whether a fetcher is configured.
func (e *Enricher) Enabled() bool {
	return e != nil && e.fetcher != nil && len(e.targets) > 0
}

// Fetch ingests literature for topic into every target. Failures are logged,
// never returned. It reports whether any target stored documents.
func (e *Enricher) Fetch(ctx context.Context, topic string, maxResults int, trigger string) bool {
	if !e.Enabled() {
		return false
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	stored := 0
	for _, target := range e.targets {
		out := e.fetcher.FetchAndStore(ctx, topic, maxResults, target)
		switch out.Kind() {
		case domret.OutcomeOk:
			n := out.OrZero()
			stored += n
			e.logger.Info("Literature stored",
				zap.String("topic", topic),
				zap.String("collection", target),
				zap.Int("documents", n),
				zap.String("trigger", trigger),
			)
		case domret.OutcomeUnavailable:
			e.logger.Info("No literature found", zap.String("topic", topic), zap.String("collection", target))
		case domret.OutcomeError:
			e.logger.Warn("Literature fetch failed",
				zap.String("topic", topic),
				zap.String("collection", target),
				zap.Error(out.Err()),
			)
		}
	}

	if stored == 0 {
		metrics.EnrichmentsTotal.WithLabelValues(trigger, "failed").Inc()
		return false
	}

	// refresh on a context detached from the fetch timeout
	e.onStored(context.WithoutCancel(ctx))
	metrics.EnrichmentsTotal.WithLabelValues(trigger, "ok").Inc()
	return true
}
