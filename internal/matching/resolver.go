package matching

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Thresholds are the two confidence tiers used by the Resolver
type Thresholds struct {
	CertainLexical  float64 `yaml:"certain_lexical" json:"certain_lexical" validate:"gte=0,lte=1"`
	CertainSemantic float64 `yaml:"certain_semantic" json:"certain_semantic" validate:"gte=-1,lte=1"`
	GoodLexical     float64 `yaml:"good_lexical" json:"good_lexical" validate:"gte=0,lte=1"`
	GoodSemantic    float64 `yaml:"good_semantic" json:"good_semantic" validate:"gte=-1,lte=1"`
}

// DefaultThresholds returns the tuned defaults: 0.8/0.85 certain, 0.6/0.5 good
func DefaultThresholds() Thresholds {
	return Thresholds{
		CertainLexical:  0.8,
		CertainSemantic: 0.85,
		GoodLexical:     0.6,
		GoodSemantic:    0.5,
	}
}

// DecisionKind names the variant of a Decision
type DecisionKind string

const (
	KindExact    DecisionKind = "exact"
	KindResolved DecisionKind = "resolved"
	KindClarify  DecisionKind = "clarify"
	KindRejected DecisionKind = "rejected"
)

// Decision is the outcome of resolving one query. It is one of Exact,
// Resolved, Clarify or Rejected; callers switch on the concrete type.
type Decision interface {
	Kind() DecisionKind
	decision()
}

// Exact means the query equals a pool entry after normalization
type Exact struct {
	Item string
}

// Resolved means exactly one pool entry cleared a confidence tier
type Resolved struct {
	Item string
}

// Clarify means several pool entries cleared the same tier
type Clarify struct {
	Options []string
}

// Rejected means nothing cleared the good tier. BestAlternative is the
// nearest semantic neighbour at any score; it is empty only for an empty pool.
type Rejected struct {
	BestAlternative string
	Alternatives    []string
}

func (Exact) Kind() DecisionKind    { return KindExact }
func (Resolved) Kind() DecisionKind { return KindResolved }
func (Clarify) Kind() DecisionKind  { return KindClarify }
func (Rejected) Kind() DecisionKind { return KindRejected }

func (Exact) decision()    {}
func (Resolved) decision() {}
func (Clarify) decision()  {}
func (Rejected) decision() {}

// Observer is notified when a scorer backend fails and is skipped
type Observer interface {
	ObserveDegradation(strategy Strategy)
}

// Resolver combines the exact, lexical and semantic scorers into one
// tiered decision per query. It holds no per-session state.
type Resolver struct {
	exact      Scorer
	lexical    Scorer
	semantic   Scorer
	thresholds Thresholds
	logger     *slog.Logger
	observer   Observer
}

// Option configures a Resolver
type Option func(*Resolver)

// WithThresholds overrides the default confidence tiers
func WithThresholds(t Thresholds) Option {
	return func(r *Resolver) { r.thresholds = t }
}

// WithLogger sets the resolver's logger
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithObserver registers a degradation observer
func WithObserver(o Observer) Option {
	return func(r *Resolver) { r.observer = o }
}

// NewResolver builds a resolver. semantic may be nil, in which case queries
// are resolved on lexical scores alone.
func NewResolver(lexical, semantic Scorer, opts ...Option) *Resolver {
	if lexical == nil {
		lexical = SequenceScorer{}
	}
	r := &Resolver{
		exact:      ExactScorer{},
		lexical:    lexical,
		semantic:   semantic,
		thresholds: DefaultThresholds(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if semantic == nil {
		r.logger.Info("resolver: no semantic scorer configured, resolving with lexical scores only")
	}
	return r
}

// Thresholds returns the configured confidence tiers
func (r *Resolver) Thresholds() Thresholds {
	return r.thresholds
}

// Resolve decides which pool entry, if any, the query refers to
func (r *Resolver) Resolve(ctx context.Context, query string, pool []string) Decision {
	if hits, _ := r.exact.Score(ctx, query, pool); len(hits) > 0 {
		return Exact{Item: hits[0].Name}
	}

	lexical, semantic := r.scoreAll(ctx, query, pool)
	t := r.thresholds

	certain := union(above(lexical, t.CertainLexical), above(semantic, t.CertainSemantic))
	switch {
	case len(certain) == 1:
		return Resolved{Item: certain[0]}
	case len(certain) > 1:
		return Clarify{Options: certain}
	}

	good := union(above(lexical, t.GoodLexical), above(semantic, t.GoodSemantic))
	switch {
	case len(good) == 1:
		return Resolved{Item: good[0]}
	case len(good) > 1:
		return Clarify{Options: good}
	}

	// A degraded semantic backend leaves only the lexical ranking to suggest from.
	neighbours := semantic
	if len(neighbours) == 0 {
		neighbours = lexical
	}
	rej := Rejected{Alternatives: Names(neighbours)}
	if len(neighbours) > 0 {
		rej.BestAlternative = neighbours[0].Name
	}
	return rej
}

// scoreAll runs the lexical and semantic scorers concurrently. A failing or
// unconfigured scorer contributes no candidates; only failures are reported.
func (r *Resolver) scoreAll(ctx context.Context, query string, pool []string) ([]Candidate, []Candidate) {
	var lexical, semantic []Candidate
	var g errgroup.Group

	g.Go(func() error {
		lexical = r.run(ctx, r.lexical, query, pool)
		return nil
	})
	g.Go(func() error {
		semantic = r.run(ctx, r.semantic, query, pool)
		return nil
	})
	_ = g.Wait()

	return lexical, semantic
}

func (r *Resolver) run(ctx context.Context, s Scorer, query string, pool []string) []Candidate {
	if s == nil {
		return nil
	}
	c, err := s.Score(ctx, query, pool)
	if err != nil {
		r.degraded(s.Strategy(), err.Error())
		return nil
	}
	return c
}

func (r *Resolver) degraded(strategy Strategy, reason string) {
	r.logger.Warn("resolver: scorer unavailable, continuing without it",
		slog.String("strategy", string(strategy)),
		slog.String("reason", reason),
	)
	if r.observer != nil {
		r.observer.ObserveDegradation(strategy)
	}
}

// above keeps candidates scoring at or above floor
func above(c []Candidate, floor float64) []Candidate {
	out := make([]Candidate, 0, len(c))
	for _, x := range c {
		if x.Score >= floor {
			out = append(out, x)
		}
	}
	return out
}

// union merges candidate sets by name and orders them by best score, then name
func union(sets ...[]Candidate) []string {
	best := make(map[string]float64)
	for _, set := range sets {
		for _, c := range set {
			if s, ok := best[c.Name]; !ok || c.Score > s {
				best[c.Name] = c.Score
			}
		}
	}

	merged := make([]Candidate, 0, len(best))
	for name, score := range best {
		merged = append(merged, Candidate{Name: name, Score: score})
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].Name < merged[j].Name
	})
	return Names(merged)
}
