// Package lexical implements an immutable BM25 (Okapi) snapshot over a document corpus.
package lexical

import (
	"math"
	"sort"
	"strings"

	"github.com/kailas-cloud/medrag/internal/domain/document"
)

// Okapi parameters.
const (
	K1      = 1.5
	B       = 0.75
	Epsilon = 0.25
)

// Snapshot is a point-in-time BM25 index. It is never mutated after Build.
type Snapshot struct {
	docs   []document.Document
	freqs  []map[string]int
	lens   []int
	avgLen float64
	idf    map[string]float64
	counts map[string]int
	k1, b  float64
}

// Hit is a scored corpus position.
type Hit struct {
	Index int
	Score float64
}

// Tokenize splits text on whitespace and lower-cases it.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// Build indexes docs. counts records the per-collection sizes the corpus was read
// from; a negative count marks a collection that could not be read.
func Build(docs []document.Document, counts map[string]int) *Snapshot {
	s := &Snapshot{
		docs:   docs,
		freqs:  make([]map[string]int, len(docs)),
		lens:   make([]int, len(docs)),
		idf:    make(map[string]float64),
		counts: make(map[string]int, len(counts)),
		k1:     K1,
		b:      B,
	}
	for k, v := range counts {
		s.counts[k] = v
	}

	df := make(map[string]int)
	total := 0
	for i := range docs {
		toks := Tokenize(docs[i].Content())
		f := make(map[string]int, len(toks))
		for _, t := range toks {
			f[t]++
		}
		for t := range f {
			df[t]++
		}
		s.freqs[i] = f
		s.lens[i] = len(toks)
		total += len(toks)
	}
	if len(docs) == 0 {
		return s
	}
	s.avgLen = float64(total) / float64(len(docs))

	n := float64(len(docs))
	var sum float64
	var negative []string
	for t, freq := range df {
		v := math.Log(n-float64(freq)+0.5) - math.Log(float64(freq)+0.5)
		s.idf[t] = v
		sum += v
		if v < 0 {
			negative = append(negative, t)
		}
	}
	floor := Epsilon * sum / float64(len(df))
	for _, t := range negative {
		s.idf[t] = floor
	}
	return s
}

// Len returns the corpus size.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.docs)
}

// Doc returns the document at corpus position i.
func (s *Snapshot) Doc(i int) document.Document { return s.docs[i] }

// Counts returns a copy of the per-collection sizes recorded at build time.
func (s *Snapshot) Counts() map[string]int {
	out := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// Scores returns one BM25 score per document. Repeated query tokens count again.
func (s *Snapshot) Scores(tokens []string) []float64 {
	scores := make([]float64, s.Len())
	if s.Len() == 0 {
		return scores
	}
	for _, q := range tokens {
		idf, ok := s.idf[q]
		if !ok {
			continue
		}
		for i, f := range s.freqs {
			tf := float64(f[q])
			if tf == 0 {
				continue
			}
			norm := s.k1 * (1 - s.b + s.b*float64(s.lens[i])/s.avgLen)
			scores[i] += idf * tf * (s.k1 + 1) / (tf + norm)
		}
	}
	return scores
}

// Top returns up to n hits ordered by descending score, ties by corpus position.
// Zero-score documents are included when fewer than n documents match.
func (s *Snapshot) Top(tokens []string, n int) []Hit {
	if n <= 0 || s.Len() == 0 {
		return nil
	}
	scores := s.Scores(tokens)
	hits := make([]Hit, len(scores))
	for i, sc := range scores {
		hits[i] = Hit{Index: i, Score: sc}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > n {
		hits = hits[:n]
	}
	return hits
}
