package retrieval

import (
	"sort"
	"strings"

	"github.com/kailas-cloud/medrag/internal/domain/query"
	domret "github.com/kailas-cloud/medrag/internal/domain/retrieval"
)

// lengthScale is the word count at which the length penalty halves a score.
const lengthScale = 1000.0

// Fuse scores candidates by keyword overlap with the untransformed query and
// returns at most topK of them in descending relevance. Ties keep input order.
// vectorWeight > 0 blends the normalized source score into relevance.
func Fuse(candidates []domret.Result, q string, topK int, vectorWeight float64) []domret.Result {
	if topK <= 0 || len(candidates) == 0 {
		return nil
	}

	terms := query.Terms(q)
	maxLexical := 0.0
	if vectorWeight > 0 {
		for i := range candidates {
			if candidates[i].Source().Kind == domret.KindLexical && candidates[i].RawScore() > maxLexical {
				maxLexical = candidates[i].RawScore()
			}
		}
	}

	out := make([]domret.Result, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		score := overlap(c.Document(), terms)
		if vectorWeight > 0 {
			score += vectorWeight * normalize(c, maxLexical)
		}
		out[i] = c.WithRelevance(score)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RelevanceScore() > out[j].RelevanceScore()
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

// overlap counts query terms found as substrings of the text, damped by length.
func overlap(text string, terms []string) float64 {
	lower := strings.ToLower(text)
	matches := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			matches++
		}
	}
	if matches == 0 {
		return 0
	}
	words := len(strings.Fields(lower))
	return float64(matches) / (1 + float64(words)/lengthScale)
}

func normalize(r *domret.Result, maxLexical float64) float64 {
	var v float64
	if r.Source().Kind == domret.KindLexical {
		if maxLexical <= 0 {
			return 0
		}
		v = r.RawScore() / maxLexical
	} else {
		v = r.RawScore()
	}
	return min(max(v, 0), 1)
}
