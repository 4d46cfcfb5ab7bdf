package matching

import (
	"context"
	"math"
	"strings"

	"maitred/internal/menu"
)

// BM25 tuning constants
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// BM25Scorer is a token-overlap ranker. Raw Okapi BM25 scores over the pool
// are passed through a softmax so they land in [0, 1] and sum to one.
type BM25Scorer struct{}

// Strategy implements Scorer
func (BM25Scorer) Strategy() Strategy { return StrategyLexical }

// Score implements Scorer
func (BM25Scorer) Score(_ context.Context, query string, pool []string) ([]Candidate, error) {
	if len(pool) == 0 {
		return []Candidate{}, nil
	}

	docs := make([][]string, len(pool))
	df := make(map[string]int)
	var totalLen int
	for i, name := range pool {
		docs[i] = tokenize(name)
		totalLen += len(docs[i])
		seen := make(map[string]bool)
		for _, t := range docs[i] {
			if !seen[t] {
				df[t]++
				seen[t] = true
			}
		}
	}
	avgLen := float64(totalLen) / float64(len(pool))

	n := float64(len(pool))
	terms := tokenize(query)
	raw := make([]float64, len(pool))
	for i, doc := range docs {
		tf := make(map[string]int, len(doc))
		for _, t := range doc {
			tf[t]++
		}
		var score float64
		for _, t := range terms {
			f := float64(tf[t])
			if f == 0 {
				continue
			}
			idf := math.Log(1 + (n-float64(df[t])+0.5)/(float64(df[t])+0.5))
			denom := f + bm25K1*(1-bm25B+bm25B*float64(len(doc))/math.Max(avgLen, 1))
			score += idf * f * (bm25K1 + 1) / denom
		}
		raw[i] = score
	}

	probs := softmax(raw)
	out := make([]Candidate, len(pool))
	for i, name := range pool {
		out[i] = Candidate{Name: name, Score: probs[i]}
	}
	return rank(out), nil
}

func tokenize(s string) []string {
	return strings.Fields(menu.Normalize(s))
}

func softmax(x []float64) []float64 {
	maxv := math.Inf(-1)
	for _, v := range x {
		maxv = math.Max(maxv, v)
	}
	out := make([]float64, len(x))
	var sum float64
	for i, v := range x {
		out[i] = math.Exp(v - maxv)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
