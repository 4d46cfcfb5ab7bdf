// Package matching scores free-text item names against a candidate pool and
// turns the scores into a tiered match decision.
package matching

import (
	"context"
	"sort"

	"maitred/internal/menu"
)

// Strategy identifies the scorer that produced a ranking
type Strategy string

const (
	StrategyExact    Strategy = "exact"
	StrategyLexical  Strategy = "lexical"
	StrategySemantic Strategy = "semantic"
)

// Candidate is one pool entry with its similarity to the query
type Candidate struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Scorer ranks a pool of candidate names against a query.
// Implementations return candidates best-first and must not mutate the pool.
type Scorer interface {
	Strategy() Strategy
	Score(ctx context.Context, query string, pool []string) ([]Candidate, error)
}

// rank sorts candidates by score (descending), then by name for determinism
func rank(c []Candidate) []Candidate {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].Score != c[j].Score {
			return c[i].Score > c[j].Score
		}
		return c[i].Name < c[j].Name
	})
	return c
}

// ExactScorer reports pool entries whose normalized form equals the query's.
// Non-matching entries are absent from the result rather than scored 0.
type ExactScorer struct{}

// Strategy implements Scorer
func (ExactScorer) Strategy() Strategy { return StrategyExact }

// Score implements Scorer
func (ExactScorer) Score(_ context.Context, query string, pool []string) ([]Candidate, error) {
	q := menu.Normalize(query)
	var hits []Candidate
	for _, name := range pool {
		if menu.Normalize(name) == q {
			hits = append(hits, Candidate{Name: name, Score: 1.0})
		}
	}
	return hits, nil
}

// Names extracts candidate names in ranked order
func Names(c []Candidate) []string {
	out := make([]string, len(c))
	for i := range c {
		out[i] = c[i].Name
	}
	return out
}
