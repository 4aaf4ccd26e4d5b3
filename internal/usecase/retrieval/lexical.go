package retrieval

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/medrag/internal/domain/document"
	"github.com/kailas-cloud/medrag/internal/domain/lexical"
	domret "github.com/kailas-cloud/medrag/internal/domain/retrieval"
	"github.com/kailas-cloud/medrag/internal/metrics"
)

// unknownCount marks a collection whose documents could not be read.
const unknownCount = -1

const refreshKey = "refresh"

// Indexer owns the current BM25 snapshot. Rebuilds swap a new snapshot in
// atomically, so searches never see a partial index and never block.
type Indexer struct {
	source CollectionSource
	logger *zap.Logger

	sem   chan struct{} // one rebuild at a time
	group singleflight.Group
	snap  atomic.Pointer[lexical.Snapshot]
}

// NewIndexer creates an indexer with an empty snapshot.
func NewIndexer(source CollectionSource, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	ix := &Indexer{source: source, logger: logger, sem: make(chan struct{}, 1)}
	ix.snap.Store(lexical.Build(nil, nil))
	return ix
}

// Rebuild reads every collection and replaces the snapshot. It waits for a
// running rebuild to finish first, unless ctx ends, and reports whether it
// swapped a new snapshot in.
func (ix *Indexer) Rebuild(ctx context.Context) bool {
	select {
	case ix.sem <- struct{}{}:
	case <-ctx.Done():
		return false
	}
	defer func() { <-ix.sem }()
	return ix.rebuildLocked(ctx)
}

func (ix *Indexer) tryRebuild(ctx context.Context) bool {
	select {
	case ix.sem <- struct{}{}:
	default:
		return false // a rebuild is already running
	}
	defer func() { <-ix.sem }()
	return ix.rebuildLocked(ctx)
}

func (ix *Indexer) rebuildLocked(ctx context.Context) bool {
	var docs []document.Document
	counts := make(map[string]int)

	for _, col := range ix.source.Collections() {
		all, err := col.GetAll(ctx)
		if err != nil {
			ix.logger.Warn("Skipping collection in lexical rebuild",
				zap.String("collection", col.Name()), zap.Error(err))
			counts[col.Name()] = unknownCount
			continue
		}
		docs = append(docs, all...)
		counts[col.Name()] = len(all)
	}
	if ctx.Err() != nil {
		// keep the previous snapshot rather than one missing cancelled reads
		return false
	}

	snap := lexical.Build(docs, counts)
	ix.snap.Store(snap)

	metrics.LexicalRebuildsTotal.Inc()
	metrics.LexicalDocuments.Set(float64(snap.Len()))
	ix.logger.Debug("Lexical index rebuilt", zap.Int("documents", snap.Len()))
	return true
}

// Refresh compares live collection counts with the snapshot's and rebuilds when
// they differ. Concurrent callers share one rebuild. A caller whose ctx ends
// first, or that finds another rebuild running, continues with the current
// snapshot. It returns the live counts it read (collections whose count failed
// are absent) and whether a rebuild finished in time.
func (ix *Indexer) Refresh(ctx context.Context) (map[string]int, bool) {
	live, stale := ix.check(ctx)
	if !stale {
		return live, false
	}

	ch := ix.group.DoChan(refreshKey, func() (any, error) {
		return ix.tryRebuild(context.WithoutCancel(ctx)), nil
	})
	select {
	case r := <-ch:
		rebuilt, _ := r.Val.(bool)
		return live, rebuilt
	case <-ctx.Done():
		return live, false
	}
}

func (ix *Indexer) check(ctx context.Context) (map[string]int, bool) {
	recorded := ix.snap.Load().Counts()
	cols := ix.source.Collections()
	live := make(map[string]int, len(cols))
	stale := len(cols) != len(recorded)

	for _, col := range cols {
		want, ok := recorded[col.Name()]
		if !ok || want == unknownCount {
			stale = true
		}
		n, err := col.Count(ctx)
		if err != nil {
			// an unreadable collection cannot be indexed better than before
			continue
		}
		live[col.Name()] = n
		if n != want {
			stale = true
		}
	}
	return live, stale
}

// Len returns the number of documents in the current snapshot.
func (ix *Indexer) Len() int {
	return ix.snap.Load().Len()
}

// Search returns the n best BM25 matches for the tokens.
func (ix *Indexer) Search(tokens []string, n int) []domret.Result {
	snap := ix.snap.Load()
	hits := snap.Top(tokens, n)
	if len(hits) == 0 {
		return nil
	}
	src := domret.Source{Name: domret.LexicalSource, Kind: domret.KindLexical}
	out := make([]domret.Result, len(hits))
	for i, h := range hits {
		out[i] = domret.NewResult(snap.Doc(h.Index), src, h.Score)
	}
	return out
}
