package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/medrag/internal/domain/lexical"
	domret "github.com/kailas-cloud/medrag/internal/domain/retrieval"
	"github.com/kailas-cloud/medrag/internal/metrics"
)

type slotResult struct {
	idx     int
	outcome domret.Outcome[[]domret.Result]
}

// fanOut queries every vector collection and the lexical index concurrently.
// Candidates come back in source order: collections in configuration order, then
// lexical. counts holds document counts already read this pass. When ctx is done
// the vector slots filled so far are returned; the in-memory lexical search is
// always waited for.
func (s *Service) fanOut(
	ctx context.Context, transformed string, limit int, counts map[string]int,
) ([]domret.Result, []SourceTrace) {
	handles := s.registry.snapshot()
	n := len(handles) + 1
	lexIdx := len(handles)

	traces := make([]SourceTrace, n)
	for i, h := range handles {
		traces[i] = SourceTrace{Name: h.name, Kind: domret.KindVector}
	}
	traces[lexIdx] = SourceTrace{Name: domret.LexicalSource, Kind: domret.KindLexical}

	slots := make([]domret.Outcome[[]domret.Result], n)
	filled := make([]bool, n)
	ch := make(chan slotResult, n)
	pending := n

	go func() {
		res := s.indexer.Search(lexical.Tokenize(transformed), limit)
		ch <- slotResult{idx: lexIdx, outcome: domret.Ok(res)}
	}()

	put := func(i int, o domret.Outcome[[]domret.Result]) {
		slots[i], filled[i] = o, true
		pending--
	}

	emb, err := s.embed.Embed(ctx, transformed)
	if err != nil {
		s.logger.Warn("Query embedding failed, vector sources skipped", zap.Error(err))
		for i := range handles {
			put(i, domret.Failed[[]domret.Result](fmt.Errorf("embed query: %w", err)))
		}
	} else {
		for i, h := range handles {
			if h.col == nil {
				put(i, domret.Unavailable[[]domret.Result]())
				continue
			}
			src := domret.Source{Name: s.sourceLabel(h.name), Kind: domret.KindVector}
			count, ok := counts[h.col.Name()]
			if !ok {
				count = unknownCount
			}
			go func(i int, col domret.Collection) {
				ch <- slotResult{idx: i, outcome: queryCollection(ctx, col, src, emb.Embedding, limit, count)}
			}(i, h.col)
		}
	}

collect:
	for pending > 0 {
		select {
		case r := <-ch:
			put(r.idx, r.outcome)
		case <-ctx.Done():
			break collect
		}
	}
	for !filled[lexIdx] {
		r := <-ch
		put(r.idx, r.outcome)
	}

	var out []domret.Result
	for i := range slots {
		if !filled[i] {
			traces[i].Outcome = domret.OutcomeError
			metrics.SourceFailuresTotal.WithLabelValues(traces[i].Name, "cancelled").Inc()
			continue
		}
		o := slots[i]
		traces[i].Outcome = o.Kind()
		switch o.Kind() {
		case domret.OutcomeError:
			s.logger.Warn("Source failed", zap.String("source", traces[i].Name), zap.Error(o.Err()))
			metrics.SourceFailuresTotal.WithLabelValues(traces[i].Name, "error").Inc()
		case domret.OutcomeUnavailable:
			if i < lexIdx && handles[i].col == nil {
				metrics.SourceFailuresTotal.WithLabelValues(traces[i].Name, "missing").Inc()
			}
		}
		res := o.OrZero()
		traces[i].Hits = len(res)
		out = append(out, res...)
	}
	return out, traces
}

// queryCollection runs one nearest-neighbour query. Empty collections are
// Unavailable. count is read from the collection when it is unknownCount.
func queryCollection(
	ctx context.Context, col domret.Collection, src domret.Source, vector []float32, limit, count int,
) domret.Outcome[[]domret.Result] {
	if count == unknownCount {
		n, err := col.Count(ctx)
		if err != nil {
			return domret.Failed[[]domret.Result](fmt.Errorf("count %s: %w", col.Name(), err))
		}
		count = n
	}
	if count == 0 {
		return domret.Unavailable[[]domret.Result]()
	}

	neighbors, err := col.Query(ctx, vector, min(limit, count))
	if err != nil {
		return domret.Failed[[]domret.Result](fmt.Errorf("query %s: %w", col.Name(), err))
	}

	out := make([]domret.Result, len(neighbors))
	for i, nb := range neighbors {
		out[i] = domret.NewResult(nb.Doc, src, nb.Similarity())
	}
	return domret.Ok(out)
}
