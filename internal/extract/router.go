package extract

import (
	"context"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"maitred/internal/llm"
)

// Route is the handling path for a customer message
type Route string

const (
	RouteExtract      Route = "extract"
	RouteConversation Route = "conversation"
)

// Router classifies customer messages
type Router struct {
	model  llms.Model
	logger *slog.Logger
}

// NewRouter creates a router over the given model
func NewRouter(model llms.Model, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{model: model, logger: logger}
}

// Route classifies message. Any failure or unrecognised label falls back to
// conversation, which never mutates the cart.
func (r *Router) Route(ctx context.Context, message string) Route {
	text, err := llm.Complete(ctx, r.model, []llm.Message{
		{Role: llm.RoleSystem, Content: routerPrompt},
		{Role: llm.RoleUser, Content: message},
	}, llms.WithTemperature(0), llms.WithMaxTokens(5))
	if err != nil {
		r.logger.Warn("router: classification failed", slog.Any("error", err))
		return RouteConversation
	}
	return ParseRoute(text)
}

// ParseRoute maps a model label onto a Route
func ParseRoute(label string) Route {
	l := strings.ToLower(strings.Trim(strings.TrimSpace(label), `"'.`))
	if l == string(RouteExtract) {
		return RouteExtract
	}
	return RouteConversation
}
