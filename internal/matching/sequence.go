package matching

import (
	"context"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"maitred/internal/menu"
)

// SequenceScorer scores candidates with the Ratcliff/Obershelp ratio
// 2*M/T, where M is the number of characters in matching blocks and T the
// combined length of both normalized strings.
type SequenceScorer struct {
	// Floor drops candidates scoring below it. Zero keeps the full pool.
	Floor float64
}

// Strategy implements Scorer
func (s SequenceScorer) Strategy() Strategy { return StrategyLexical }

// Score implements Scorer
func (s SequenceScorer) Score(_ context.Context, query string, pool []string) ([]Candidate, error) {
	q := menu.Normalize(query)
	out := make([]Candidate, 0, len(pool))
	for _, name := range pool {
		score := SequenceRatio(q, menu.Normalize(name))
		if score >= s.Floor {
			out = append(out, Candidate{Name: name, Score: score})
		}
	}
	return rank(out), nil
}

// SequenceRatio returns the similarity of a and b in [0, 1], compared
// character by character. Two empty strings are identical.
func SequenceRatio(a, b string) float64 {
	return difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, "")).Ratio()
}
