// Package assistant runs one customer turn: route the message, then either
// update the cart, answer a menu question, or place the order.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"maitred/internal/cart"
	"maitred/internal/checkout"
	"maitred/internal/extract"
	"maitred/internal/llm"
	"maitred/internal/matching"
	"maitred/internal/menu"
	"maitred/internal/models"
	"maitred/internal/ordering"
)

const (
	confirmPrompt   = "Would you like anything else? To confirm and place your order, reply 'yes'."
	rephraseMessage = "Sorry, I couldn't make out that order. Could you say it another way?"
)

// ErrEmptyMessage is returned for a blank customer message
var ErrEmptyMessage = errors.New("empty message")

// Router classifies a message
type Router interface {
	Route(ctx context.Context, message string) extract.Route
}

// Extractor turns a message into an order draft
type Extractor interface {
	Extract(ctx context.Context, message string, current []models.CartLine) (models.OrderDraft, error)
}

// Checkout places an order for a cart
type Checkout interface {
	Checkout(ctx context.Context, sessionID string, lines []models.CartLine) (*checkout.Outcome, error)
}

// Reply is the assistant's answer to one turn
type Reply struct {
	Text     string            `json:"text"`
	Route    string            `json:"route"`
	Cart     []models.CartLine `json:"cart"`
	Result   *ordering.Result  `json:"result,omitempty"`
	Checkout *checkout.Outcome `json:"checkout,omitempty"`
}

// RouteConfirm marks replies produced by order confirmation
const RouteConfirm = "confirm"

// Assistant wires the ordering pipeline to a session store
type Assistant struct {
	sessions     *cart.Sessions
	router       Router
	extractor    Extractor
	reconciler   *ordering.Reconciler
	checkout     Checkout
	model        llms.Model
	retriever    matching.Scorer
	contextItems int
	reporter     ordering.Reporter
	logger       *slog.Logger
}

// Config holds the collaborators of an Assistant
type Config struct {
	Sessions   *cart.Sessions
	Router     Router
	Extractor  Extractor
	Reconciler *ordering.Reconciler
	Checkout   Checkout
	// Model answers menu questions
	Model llms.Model
	// Retriever picks the menu items given to the model as context
	Retriever    matching.Scorer
	ContextItems int
	Logger       *slog.Logger
}

// New creates an assistant
func New(cfg Config) *Assistant {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Retriever == nil {
		cfg.Retriever = matching.BM25Scorer{}
	}
	if cfg.ContextItems <= 0 {
		cfg.ContextItems = 5
	}
	return &Assistant{
		sessions:     cfg.Sessions,
		router:       cfg.Router,
		extractor:    cfg.Extractor,
		reconciler:   cfg.Reconciler,
		checkout:     cfg.Checkout,
		model:        cfg.Model,
		retriever:    cfg.Retriever,
		contextItems: cfg.ContextItems,
		logger:       cfg.Logger,
	}
}

// Handle processes one customer message for the session
func (a *Assistant) Handle(ctx context.Context, sessionID, message string) (*Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	if IsConfirmation(message) {
		return a.confirm(ctx, sessionID)
	}

	route := a.router.Route(ctx, message)
	a.logger.Debug("assistant: routed message", slog.String("session_id", sessionID), slog.String("route", string(route)))

	if route == extract.RouteExtract {
		return a.order(ctx, sessionID, message)
	}
	return a.converse(ctx, sessionID, message)
}

// Reconcile applies an already structured draft to the session's cart
func (a *Assistant) Reconcile(ctx context.Context, sessionID string, draft models.OrderDraft) (*ordering.Result, error) {
	var res *ordering.Result
	err := a.sessions.Update(sessionID, func(c *cart.Cart) error {
		var err error
		res, err = a.reconciler.Reconcile(ctx, draft, c)
		return err
	})
	return res, err
}

// Confirm places the order for the session's cart
func (a *Assistant) Confirm(ctx context.Context, sessionID string) (*Reply, error) {
	return a.confirm(ctx, sessionID)
}

func (a *Assistant) order(ctx context.Context, sessionID, message string) (*Reply, error) {
	reply := &Reply{Route: string(extract.RouteExtract)}

	err := a.sessions.Update(sessionID, func(c *cart.Cart) error {
		draft, err := a.extractor.Extract(ctx, message, c.Lines())
		if errors.Is(err, extract.ErrUnparseableDraft) {
			reply.Text = rephraseMessage
			reply.Cart = c.Lines()
			return nil
		}
		if err != nil {
			return err
		}

		res, err := a.reconciler.Reconcile(ctx, draft, c)
		if errors.Is(err, ordering.ErrMalformedDraft) {
			a.logger.Warn("assistant: malformed draft", slog.String("session_id", sessionID), slog.Any("error", err))
			reply.Text = rephraseMessage
			reply.Cart = c.Lines()
			return nil
		}
		if err != nil {
			return err
		}

		reply.Result = res
		reply.Cart = res.Cart
		reply.Text = a.composeOrderReply(res)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reply, nil
}

func (a *Assistant) composeOrderReply(res *ordering.Result) string {
	parts := a.reporter.Report(res)
	parts = append(parts, ordering.Summary(res.Cart))
	if len(res.Cart) > 0 {
		parts = append(parts, confirmPrompt)
	}
	return strings.Join(parts, "\n\n")
}

func (a *Assistant) confirm(ctx context.Context, sessionID string) (*Reply, error) {
	reply := &Reply{Route: RouteConfirm}

	err := a.sessions.Update(sessionID, func(c *cart.Cart) error {
		lines := c.Lines()
		if len(lines) == 0 {
			reply.Text = "Your cart is empty. What would you like to order?"
			reply.Cart = lines
			return nil
		}

		out, err := a.checkout.Checkout(ctx, sessionID, lines)
		if err != nil {
			return err
		}
		reply.Checkout = out
		if out.Success {
			c.Clear()
			reply.Cart = []models.CartLine{}
			reply.Text = fmt.Sprintf("Your order has been placed. Order number: %s. Thank you!", out.OrderID)
			return nil
		}

		reply.Cart = lines
		reply.Text = fmt.Sprintf("Sorry, we can't make these right now: %s. Please remove them or pick something else.",
			strings.Join(out.UnavailableItems, ", "))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("checkout failed: %w", err)
	}
	return reply, nil
}

func (a *Assistant) converse(ctx context.Context, sessionID, message string) (*Reply, error) {
	snapshot, err := a.sessions.Snapshot(sessionID)
	if err != nil {
		return nil, err
	}
	lines := snapshot.Lines()

	system := fmt.Sprintf(conversationPrompt, a.menuContext(ctx, message), ordering.Summary(lines))
	text, err := llm.Complete(ctx, a.model, []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: message},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to answer: %w", err)
	}

	return &Reply{Text: text, Route: string(extract.RouteConversation), Cart: lines}, nil
}

// menuContext lists the menu items closest to the question. When the
// retriever fails the whole menu is listed.
func (a *Assistant) menuContext(ctx context.Context, question string) string {
	catalog := a.reconciler.Catalog()
	names := catalog.Names()

	ranked, err := a.retriever.Score(ctx, question, names)
	if err != nil {
		a.logger.Warn("assistant: menu retrieval failed, using full menu", slog.Any("error", err))
		ranked = nil
		for _, n := range names {
			ranked = append(ranked, matching.Candidate{Name: n})
		}
	} else if len(ranked) > a.contextItems {
		ranked = ranked[:a.contextItems]
	}

	var b strings.Builder
	for _, c := range ranked {
		item, ok := catalog.LookupExact(menu.Normalize(c.Name))
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- %s: $%.2f", item.Name, item.Price)
		if item.Category != "" {
			fmt.Fprintf(&b, " (%s)", item.Category)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// IsConfirmation reports whether the message confirms the order
func IsConfirmation(message string) bool {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(message), ".!")) {
	case "yes", "y", "confirm":
		return true
	}
	return false
}
