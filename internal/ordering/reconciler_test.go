package ordering

import (
	"bytes"
	"context"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maitred/internal/cart"
	"maitred/internal/matching"
	"maitred/internal/menu"
	"maitred/internal/models"
)

// tableScorer scores every pool entry from a fixed table keyed by normalized
// query, then candidate name. Missing entries score zero.
type tableScorer struct {
	strategy matching.Strategy
	scores   map[string]map[string]float64
}

func (s tableScorer) Strategy() matching.Strategy { return s.strategy }

func (s tableScorer) Score(_ context.Context, query string, pool []string) ([]matching.Candidate, error) {
	row := s.scores[menu.Normalize(query)]
	out := make([]matching.Candidate, 0, len(pool))
	for _, name := range pool {
		out = append(out, matching.Candidate{Name: name, Score: row[name]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

var semanticTable = map[string]map[string]float64{
	"pizza": {
		"Margherita Pizza": 0.7,
		"Pepperoni Pizza":  0.65,
	},
	"unicorn steak": {
		"Steak Frites":  0.42,
		"Veggie Burger": 0.2,
		"Coca Cola":     0.1,
	},
}

var lexicalTable = map[string]map[string]float64{
	"pizza": {
		"Margherita Pizza": 0.62,
		"Pepperoni Pizza":  0.61,
	},
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func newCatalog(t *testing.T, names ...string) *menu.Catalog {
	t.Helper()
	items := make([]models.MenuItem, len(names))
	for i, n := range names {
		items[i] = models.MenuItem{Name: n, Price: 10}
	}
	c, err := menu.NewCatalog(items)
	require.NoError(t, err)
	return c
}

// newReconciler uses the real sequence scorer and a table-driven semantic scorer
func newReconciler(t *testing.T, names []string, opts ...Option) *Reconciler {
	t.Helper()
	resolver := matching.NewResolver(
		matching.SequenceScorer{},
		tableScorer{strategy: matching.StrategySemantic, scores: semanticTable},
		matching.WithLogger(quietLogger()),
	)
	return NewReconciler(newCatalog(t, names...), resolver, append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func add(name string, qty int, mods ...string) models.OrderLineDraft {
	return models.OrderLineDraft{ItemName: name, Quantity: qty, Modifiers: mods}
}

func del(name string, qty int, mods ...string) models.OrderLineDraft {
	return models.OrderLineDraft{ItemName: name, Quantity: qty, Modifiers: mods, IsDeletion: true}
}

func draft(lines ...models.OrderLineDraft) models.OrderDraft {
	return models.OrderDraft{Lines: lines}
}

func line(name string, qty int, mods ...string) models.CartLine {
	if mods == nil {
		mods = []string{}
	}
	return models.CartLine{ItemName: name, Quantity: qty, Modifiers: mods}
}

func TestReconcileScenarios(t *testing.T) {
	pizzas := []string{"Margherita Pizza", "Pepperoni Pizza"}

	tests := []struct {
		name        string
		menu        []string
		lexical     bool
		cart        []models.CartLine
		draft       models.OrderDraft
		wantCart    []models.CartLine
		wantRejects []models.RejectedItem
		wantClarify []models.Clarification
	}{
		{
			name:     "exact addition",
			menu:     pizzas,
			draft:    draft(add("margherita pizza", 1)),
			wantCart: []models.CartLine{line("Margherita Pizza", 1)},
		},
		{
			name:     "ambiguous addition asks for clarification",
			menu:     pizzas,
			lexical:  true,
			draft:    draft(add("pizza", 1)),
			wantCart: []models.CartLine{},
			wantClarify: []models.Clarification{{
				OriginalRequest: "pizza",
				Options:         []string{"Margherita Pizza", "Pepperoni Pizza"},
			}},
		},
		{
			name:     "misspelling resolves on the certain tier",
			menu:     []string{"Veggie Burger"},
			draft:    draft(add("veggy burgr", 2)),
			wantCart: []models.CartLine{line("Veggie Burger", 2)},
		},
		{
			name:     "partial deletion keeps the line",
			menu:     []string{"Cola"},
			cart:     []models.CartLine{line("Cola", 2)},
			draft:    draft(del("cola", 1)),
			wantCart: []models.CartLine{line("Cola", 1)},
		},
		{
			name:     "full deletion prunes the line",
			menu:     []string{"Cola"},
			cart:     []models.CartLine{line("Cola", 1)},
			draft:    draft(del("cola", 1)),
			wantCart: []models.CartLine{},
		},
		{
			name:     "unknown item is rejected with ranked neighbours",
			menu:     []string{"Steak Frites", "Veggie Burger", "Coca Cola"},
			draft:    draft(add("unicorn steak", 1)),
			wantCart: []models.CartLine{},
			wantRejects: []models.RejectedItem{{
				OriginalRequest: "unicorn steak",
				Alternatives:    []string{"Steak Frites", "Veggie Burger", "Coca Cola"},
				Reason:          models.ReasonNoMatch,
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var lexical matching.Scorer = matching.SequenceScorer{}
			if tt.lexical {
				lexical = tableScorer{strategy: matching.StrategyLexical, scores: lexicalTable}
			}
			resolver := matching.NewResolver(lexical,
				tableScorer{strategy: matching.StrategySemantic, scores: semanticTable},
				matching.WithLogger(quietLogger()))
			r := NewReconciler(newCatalog(t, tt.menu...), resolver, WithLogger(quietLogger()))

			c := cart.New(tt.cart...)
			res, err := r.Reconcile(context.Background(), tt.draft, c)
			require.NoError(t, err)

			assert.Equal(t, tt.wantCart, res.Cart)
			assert.Equal(t, tt.wantCart, c.Lines())
			if tt.wantRejects == nil {
				tt.wantRejects = []models.RejectedItem{}
			}
			if tt.wantClarify == nil {
				tt.wantClarify = []models.Clarification{}
			}
			assert.Equal(t, tt.wantRejects, res.Rejected)
			assert.Equal(t, tt.wantClarify, res.Clarifications)
		})
	}
}

func TestReconcileDeletionsBeforeAdditions(t *testing.T) {
	r := newReconciler(t, []string{"Veggie Burger", "Coca Cola"})
	c := cart.New(line("Veggie Burger", 1), line("Coca Cola", 1))

	// The addition is listed first but must land on the post-deletion cart
	res, err := r.Reconcile(context.Background(), draft(
		add("veggie burger", 2, "no cheese"),
		del("veggie burger", 1),
	), c)
	require.NoError(t, err)

	assert.Equal(t, []models.CartLine{
		line("Coca Cola", 1),
		line("Veggie Burger", 2, "no cheese"),
	}, res.Cart)
}

func TestReconcileDeletionIdentity(t *testing.T) {
	r := newReconciler(t, []string{"Veggie Burger"})
	c := cart.New(line("Veggie Burger", 1), line("Veggie Burger", 2, "no onion"))

	res, err := r.Reconcile(context.Background(), draft(del("Veggie Burger", 2, "no onion")), c)
	require.NoError(t, err)
	assert.Equal(t, []models.CartLine{line("Veggie Burger", 1)}, res.Cart)

	// Unknown modifiers fall back to the first line with the name
	res, err = r.Reconcile(context.Background(), draft(del("veggie burger", 1, "extra pickles")), c)
	require.NoError(t, err)
	assert.Empty(t, res.Cart)
}

func TestReconcileDeletionOutcomes(t *testing.T) {
	ctx := context.Background()
	r := newReconciler(t, []string{"Veggie Burger", "Classic Burger", "Coca Cola", "Steak Frites"})

	t.Run("ambiguous deletion leaves the cart alone", func(t *testing.T) {
		c := cart.New(line("Veggie Burger", 1), line("Classic Burger", 1))
		res, err := r.Reconcile(ctx, draft(del("burger", 1)), c)
		require.NoError(t, err)
		assert.Len(t, res.Cart, 2)
		require.Len(t, res.Clarifications, 1)
		assert.Equal(t, []string{"Veggie Burger", "Classic Burger"}, res.Clarifications[0].Options)
	})

	t.Run("unmatched deletion suggests the single best cart line", func(t *testing.T) {
		c := cart.New(line("Veggie Burger", 1), line("Steak Frites", 1), line("Coca Cola", 1))
		res, err := r.Reconcile(ctx, draft(del("unicorn steak", 1)), c)
		require.NoError(t, err)
		assert.Len(t, res.Cart, 3)
		assert.Equal(t, []models.RejectedItem{{
			OriginalRequest: "unicorn steak",
			Alternatives:    []string{"Steak Frites"},
			Reason:          models.ReasonNoMatch,
		}}, res.Rejected)
	})

	t.Run("deletion from an empty cart is rejected without suggestions", func(t *testing.T) {
		res, err := r.Reconcile(ctx, draft(del("coke", 1)), cart.New())
		require.NoError(t, err)
		require.Len(t, res.Rejected, 1)
		assert.NotNil(t, res.Rejected[0].Alternatives)
		assert.Empty(t, res.Rejected[0].Alternatives)
	})
}

func TestReconcileMergesAcrossTurns(t *testing.T) {
	r := newReconciler(t, []string{"Veggie Burger"})
	c := cart.New()

	for i := 0; i < 2; i++ {
		_, err := r.Reconcile(context.Background(), draft(add("Veggie Burger", 1, "no onion", "extra cheese")), c)
		require.NoError(t, err)
	}
	_, err := r.Reconcile(context.Background(), draft(add("veggie burger", 3, "extra cheese", "no onion")), c)
	require.NoError(t, err)

	assert.Equal(t, []models.CartLine{line("Veggie Burger", 5, "no onion", "extra cheese")}, c.Lines())
}

func TestReconcileRejectionCompleteness(t *testing.T) {
	r := newReconciler(t, []string{"Steak Frites", "Veggie Burger", "Coca Cola"})
	c := cart.New(line("Coca Cola", 1))

	res, err := r.Reconcile(context.Background(), draft(
		add("unicorn steak", 1),
		add("veggy burgr", 1),
		del("unicorn steak", 1),
		add("unicorn steak", 2),
	), c)
	require.NoError(t, err)

	require.Len(t, res.Rejected, 3)
	for _, rej := range res.Rejected {
		assert.NotNil(t, rej.Alternatives)
		assert.Equal(t, models.ReasonNoMatch, rej.Reason)
	}
	// Deletions are reported first
	assert.Equal(t, []string{"Coca Cola"}, res.Rejected[0].Alternatives)
	assert.Equal(t, res.Rejected, res.Unresolved)
	assert.Equal(t, []models.CartLine{line("Coca Cola", 1), line("Veggie Burger", 1)}, res.Cart)
	for _, l := range res.Cart {
		assert.Positive(t, l.Quantity)
	}
}

func TestReconcileMaxAlternatives(t *testing.T) {
	r := newReconciler(t, []string{"Steak Frites", "Veggie Burger", "Coca Cola"}, WithMaxAlternatives(1))
	res, err := r.Reconcile(context.Background(), draft(add("unicorn steak", 1)), cart.New())
	require.NoError(t, err)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, []string{"Steak Frites"}, res.Rejected[0].Alternatives)
}

func TestReconcileMalformedDraft(t *testing.T) {
	r := newReconciler(t, []string{"Coca Cola"})

	tests := []struct {
		name  string
		draft models.OrderDraft
	}{
		{"zero quantity", draft(add("coke", 0))},
		{"negative quantity", draft(del("coke", -1))},
		{"missing name", draft(add("", 1))},
		{"blank name", draft(add("Coca Cola", 1), add("   ", 1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cart.New(line("Coca Cola", 1))
			res, err := r.Reconcile(context.Background(), tt.draft, c)
			assert.ErrorIs(t, err, ErrMalformedDraft)
			assert.Nil(t, res)
			assert.Equal(t, []models.CartLine{line("Coca Cola", 1)}, c.Lines())
		})
	}
}

func TestReconcileEmptyDraft(t *testing.T) {
	r := newReconciler(t, []string{"Coca Cola"})
	res, err := r.Reconcile(context.Background(), models.OrderDraft{}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Cart)
	assert.NotNil(t, res.Rejected)
	assert.NotNil(t, res.Clarifications)
}

type recordingObserver struct {
	mu        sync.Mutex
	decisions map[Pool][]matching.DecisionKind
	calls     int
}

func (o *recordingObserver) ObserveDecision(pool Pool, kind matching.DecisionKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.decisions == nil {
		o.decisions = make(map[Pool][]matching.DecisionKind)
	}
	o.decisions[pool] = append(o.decisions[pool], kind)
}

func (o *recordingObserver) ObserveReconcile(time.Duration, *Result) {
	o.mu.Lock()
	o.calls++
	o.mu.Unlock()
}

func TestReconcileObserver(t *testing.T) {
	obs := &recordingObserver{}
	r := newReconciler(t, []string{"Veggie Burger", "Coca Cola", "Steak Frites"}, WithObserver(obs))

	_, err := r.Reconcile(context.Background(), draft(
		add("coca cola", 1),
		add("veggy burgr", 1),
		add("unicorn steak", 1),
		del("coke", 1),
	), cart.New())
	require.NoError(t, err)

	assert.Equal(t, 1, obs.calls)
	assert.Equal(t, []matching.DecisionKind{matching.KindRejected}, obs.decisions[PoolCart])
	assert.Equal(t, []matching.DecisionKind{
		matching.KindExact, matching.KindResolved, matching.KindRejected,
	}, obs.decisions[PoolMenu])
}
