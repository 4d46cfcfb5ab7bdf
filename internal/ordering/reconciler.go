// Package ordering applies an extracted order draft to a session cart.
package ordering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"maitred/internal/cart"
	"maitred/internal/matching"
	"maitred/internal/menu"
	"maitred/internal/models"
)

// ErrMalformedDraft is returned when the draft itself is structurally invalid.
// It is the only error Reconcile propagates.
var ErrMalformedDraft = errors.New("malformed order draft")

// Pool names the candidate set a line was resolved against
type Pool string

const (
	PoolCart Pool = "cart"
	PoolMenu Pool = "menu"
)

// Resolver decides which pool entry a free-text item name refers to
type Resolver interface {
	Resolve(ctx context.Context, query string, pool []string) matching.Decision
}

// Observer receives per-decision and per-call measurements
type Observer interface {
	ObserveDecision(pool Pool, kind matching.DecisionKind)
	ObserveReconcile(elapsed time.Duration, result *Result)
}

// Result is the outcome of one reconciliation call
type Result struct {
	// Cart is the pruned cart after the draft was applied
	Cart []models.CartLine `json:"cart"`
	// Rejected holds one entry per line that matched nothing, deletions first
	Rejected []models.RejectedItem `json:"rejected"`
	// Clarifications holds one entry per ambiguous line, deletions first
	Clarifications []models.Clarification `json:"clarifications"`
	// Unresolved is every rejected or ambiguous line in the order it was processed
	Unresolved []models.RejectedItem `json:"unresolved"`
}

// Reconciler applies order drafts to carts. It holds no session state and
// may be shared by every session.
type Reconciler struct {
	catalog         *menu.Catalog
	resolver        Resolver
	validate        *validator.Validate
	logger          *slog.Logger
	observer        Observer
	maxAlternatives int
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithLogger sets the reconciler's logger
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithObserver registers a metrics observer
func WithObserver(o Observer) Option {
	return func(r *Reconciler) { r.observer = o }
}

// WithMaxAlternatives caps the suggestions attached to a rejected addition.
// Zero or less keeps the full neighbour list.
func WithMaxAlternatives(n int) Option {
	return func(r *Reconciler) { r.maxAlternatives = n }
}

// NewReconciler creates a reconciler over a catalog snapshot
func NewReconciler(catalog *menu.Catalog, resolver Resolver, opts ...Option) *Reconciler {
	v := validator.New()
	// notblank ships with validator; registration cannot fail for a known tag
	_ = v.RegisterValidation("notblank", validators.NotBlank)

	r := &Reconciler{
		catalog:  catalog,
		resolver: resolver,
		validate: v,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Catalog returns the menu snapshot the reconciler resolves additions against
func (r *Reconciler) Catalog() *menu.Catalog {
	return r.catalog
}

// Reconcile applies the draft to c: deletions first against the cart's own
// lines, then a prune, then additions against the menu. c is mutated in place
// and its pruned contents are returned in the result. Unresolvable lines are
// reported in the result; only a malformed draft returns an error, in which
// case c is left untouched.
func (r *Reconciler) Reconcile(ctx context.Context, draft models.OrderDraft, c *cart.Cart) (*Result, error) {
	start := time.Now()

	if err := r.validateDraft(draft); err != nil {
		return nil, err
	}
	if c == nil {
		c = cart.New()
	}

	res := &Result{
		Rejected:       []models.RejectedItem{},
		Clarifications: []models.Clarification{},
		Unresolved:     []models.RejectedItem{},
	}

	for _, line := range draft.Deletions() {
		r.applyDeletion(ctx, line, c, res)
	}
	if n := c.Prune(); n > 0 {
		r.logger.Debug("reconcile: pruned cart lines", slog.Int("count", n))
	}

	pool := r.catalog.Names()
	for _, line := range draft.Additions() {
		r.applyAddition(ctx, line, pool, c, res)
	}
	c.Prune()

	res.Cart = c.Lines()

	r.logger.Info("reconcile: draft applied",
		slog.Int("lines", len(draft.Lines)),
		slog.Int("cart_lines", len(res.Cart)),
		slog.Int("rejected", len(res.Rejected)),
		slog.Int("clarifications", len(res.Clarifications)),
	)
	if r.observer != nil {
		r.observer.ObserveReconcile(time.Since(start), res)
	}
	return res, nil
}

func (r *Reconciler) applyDeletion(ctx context.Context, line models.OrderLineDraft, c *cart.Cart, res *Result) {
	d := r.resolve(ctx, PoolCart, line.ItemName, c.Names())

	switch d := d.(type) {
	case matching.Exact:
		c.Decrement(d.Item, line.Quantity, line.Modifiers)
	case matching.Resolved:
		c.Decrement(d.Item, line.Quantity, line.Modifiers)
	case matching.Clarify:
		res.clarify(line.ItemName, d.Options)
	case matching.Rejected:
		alts := []string{}
		if d.BestAlternative != "" {
			alts = append(alts, d.BestAlternative)
		}
		res.reject(line.ItemName, alts)
	}
}

func (r *Reconciler) applyAddition(ctx context.Context, line models.OrderLineDraft, pool []string, c *cart.Cart, res *Result) {
	d := r.resolve(ctx, PoolMenu, line.ItemName, pool)

	switch d := d.(type) {
	case matching.Exact:
		c.Add(d.Item, line.Quantity, line.Modifiers)
	case matching.Resolved:
		c.Add(d.Item, line.Quantity, line.Modifiers)
	case matching.Clarify:
		res.clarify(line.ItemName, d.Options)
	case matching.Rejected:
		alts := append([]string{}, d.Alternatives...)
		if r.maxAlternatives > 0 && len(alts) > r.maxAlternatives {
			alts = alts[:r.maxAlternatives]
		}
		res.reject(line.ItemName, alts)
	}
}

func (r *Reconciler) resolve(ctx context.Context, pool Pool, query string, names []string) matching.Decision {
	d := r.resolver.Resolve(ctx, query, names)
	r.logger.Debug("reconcile: resolved line",
		slog.String("pool", string(pool)),
		slog.String("query", query),
		slog.String("decision", string(d.Kind())),
	)
	if r.observer != nil {
		r.observer.ObserveDecision(pool, d.Kind())
	}
	return d
}

func (r *Reconciler) validateDraft(draft models.OrderDraft) error {
	err := r.validate.Struct(draft)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrMalformedDraft, strings.Join(fields, "; "))
	}
	return fmt.Errorf("%w: %v", ErrMalformedDraft, err)
}

func (res *Result) reject(request string, alternatives []string) {
	item := models.RejectedItem{
		OriginalRequest: request,
		Alternatives:    alternatives,
		Reason:          models.ReasonNoMatch,
	}
	res.Rejected = append(res.Rejected, item)
	res.Unresolved = append(res.Unresolved, item)
}

func (res *Result) clarify(request string, options []string) {
	res.Clarifications = append(res.Clarifications, models.Clarification{
		OriginalRequest: request,
		Options:         options,
	})
	res.Unresolved = append(res.Unresolved, models.RejectedItem{
		OriginalRequest: request,
		Alternatives:    append([]string{}, options...),
		Reason:          models.ReasonAmbiguous,
	})
}
