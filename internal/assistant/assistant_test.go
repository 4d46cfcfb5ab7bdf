package assistant

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"maitred/internal/cart"
	"maitred/internal/checkout"
	"maitred/internal/extract"
	"maitred/internal/llm/llmtest"
	"maitred/internal/matching"
	"maitred/internal/menu"
	"maitred/internal/models"
	"maitred/internal/ordering"
)

type fixedRouter extract.Route

func (r fixedRouter) Route(context.Context, string) extract.Route { return extract.Route(r) }

type fixedExtractor struct {
	draft models.OrderDraft
	err   error
}

func (e fixedExtractor) Extract(context.Context, string, []models.CartLine) (models.OrderDraft, error) {
	return e.draft, e.err
}

type stubCheckout struct {
	outcome *checkout.Outcome
	err     error
	got     []models.CartLine
}

func (s *stubCheckout) Checkout(_ context.Context, _ string, lines []models.CartLine) (*checkout.Outcome, error) {
	s.got = lines
	return s.outcome, s.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

type fixture struct {
	assistant *Assistant
	sessions  *cart.Sessions
	model     *llmtest.MockLLM
	checkout  *stubCheckout
	id        string
}

func newFixture(t *testing.T, route extract.Route, ex fixedExtractor) *fixture {
	t.Helper()
	catalog, err := menu.NewCatalog([]models.MenuItem{
		{Name: "Veggie Burger", Price: 9.5, Category: "entree"},
		{Name: "Coca Cola", Price: 2.5, Category: "beverage"},
		{Name: "Steak Frites", Price: 18},
	})
	require.NoError(t, err)

	resolver := matching.NewResolver(nil, nil, matching.WithLogger(quietLogger()))
	f := &fixture{
		sessions: cart.NewSessions(),
		model:    new(llmtest.MockLLM),
		checkout: &stubCheckout{},
	}
	f.assistant = New(Config{
		Sessions:   f.sessions,
		Router:     fixedRouter(route),
		Extractor:  ex,
		Reconciler: ordering.NewReconciler(catalog, resolver, ordering.WithLogger(quietLogger())),
		Checkout:   f.checkout,
		Model:      f.model,
		Logger:     quietLogger(),
	})
	f.id = f.sessions.Create()
	return f
}

func (f *fixture) cart(t *testing.T) []models.CartLine {
	t.Helper()
	c, err := f.sessions.Snapshot(f.id)
	require.NoError(t, err)
	return c.Lines()
}

func TestHandleOrder(t *testing.T) {
	f := newFixture(t, extract.RouteExtract, fixedExtractor{draft: models.OrderDraft{Lines: []models.OrderLineDraft{
		{ItemName: "veggy burgr", Quantity: 2, Modifiers: []string{"no onion"}},
		{ItemName: "unicorn steak", Quantity: 1},
	}}})

	reply, err := f.assistant.Handle(context.Background(), f.id, "two veggy burgrs no onion and a unicorn steak")
	require.NoError(t, err)

	assert.Equal(t, "extract", reply.Route)
	require.NotNil(t, reply.Result)
	assert.Len(t, reply.Result.Rejected, 1)
	assert.Contains(t, reply.Text, `Sorry, we couldn't find "unicorn steak". You could try: Steak Frites`)
	assert.Contains(t, reply.Text, "Your order:\n2 x Veggie Burger (no onion)")
	assert.Contains(t, reply.Text, confirmPrompt)

	assert.Equal(t, reply.Cart, f.cart(t))
	assert.Len(t, reply.Cart, 1)
}

func TestHandleOrderThatCannotBeParsed(t *testing.T) {
	for name, ex := range map[string]fixedExtractor{
		"unparseable": {err: fmt.Errorf("wrapped: %w", extract.ErrUnparseableDraft)},
		"malformed":   {draft: models.OrderDraft{Lines: []models.OrderLineDraft{{ItemName: "coke", Quantity: 0}}}},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, extract.RouteExtract, ex)
			reply, err := f.assistant.Handle(context.Background(), f.id, "uh")
			require.NoError(t, err)
			assert.Equal(t, rephraseMessage, reply.Text)
			assert.Empty(t, f.cart(t))
		})
	}

	f := newFixture(t, extract.RouteExtract, fixedExtractor{err: errors.New("llm down")})
	_, err := f.assistant.Handle(context.Background(), f.id, "burger")
	assert.Error(t, err)
}

func TestConfirm(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, extract.RouteExtract, fixedExtractor{})

	reply, err := f.assistant.Handle(ctx, f.id, "yes")
	require.NoError(t, err)
	assert.Equal(t, RouteConfirm, reply.Route)
	assert.Contains(t, reply.Text, "Your cart is empty")
	assert.Nil(t, f.checkout.got)

	_, err = f.assistant.Reconcile(ctx, f.id, models.OrderDraft{Lines: []models.OrderLineDraft{{ItemName: "Coca Cola", Quantity: 2}}})
	require.NoError(t, err)

	f.checkout.outcome = &checkout.Outcome{UnavailableItems: []string{"Coca Cola"}}
	reply, err = f.assistant.Handle(ctx, f.id, "Confirm!")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "can't make these right now: Coca Cola")
	assert.Len(t, f.cart(t), 1)

	f.checkout.outcome = &checkout.Outcome{Success: true, OrderID: "order-1"}
	reply, err = f.assistant.Confirm(ctx, f.id)
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "order-1")
	assert.Equal(t, []models.CartLine{{ItemName: "Coca Cola", Quantity: 2, Modifiers: []string{}}}, f.checkout.got)
	assert.Empty(t, f.cart(t))

	f.checkout.err = errors.New("db down")
	_, err = f.assistant.Reconcile(ctx, f.id, models.OrderDraft{Lines: []models.OrderLineDraft{{ItemName: "Coca Cola", Quantity: 1}}})
	require.NoError(t, err)
	_, err = f.assistant.Confirm(ctx, f.id)
	assert.Error(t, err)
}

func TestHandleConversation(t *testing.T) {
	f := newFixture(t, extract.RouteConversation, fixedExtractor{})
	f.model.On("GenerateContent", mock.Anything, llmtest.SystemPrompt("- Coca Cola: $2.50 (beverage)")).
		Return(llmtest.Response("We have Coca Cola for $2.50."), nil)

	reply, err := f.assistant.Handle(context.Background(), f.id, "what drinks do you have? coca cola?")
	require.NoError(t, err)
	assert.Equal(t, "conversation", reply.Route)
	assert.Equal(t, "We have Coca Cola for $2.50.", reply.Text)
	f.model.AssertExpectations(t)
}

func TestHandleErrors(t *testing.T) {
	f := newFixture(t, extract.RouteConversation, fixedExtractor{})
	_, err := f.assistant.Handle(context.Background(), f.id, "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = f.assistant.Handle(context.Background(), "missing", "hello")
	assert.ErrorIs(t, err, cart.ErrSessionNotFound)
}

func TestIsConfirmation(t *testing.T) {
	for _, s := range []string{"yes", "Y", " confirm ", "Yes!"} {
		assert.True(t, IsConfirmation(s), s)
	}
	for _, s := range []string{"no", "yes please add fries", ""} {
		assert.False(t, IsConfirmation(s), s)
	}
}
