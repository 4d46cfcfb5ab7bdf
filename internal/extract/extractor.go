// Package extract turns free-text customer messages into structured order
// drafts and routes messages between ordering and conversation.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"maitred/internal/llm"
	"maitred/internal/models"
	"maitred/internal/ordering"
)

// ErrUnparseableDraft is returned when the model output is not a JSON order
var ErrUnparseableDraft = errors.New("model output is not a valid order")

// draftItem is one entry of the model's JSON output
type draftItem struct {
	ItemName  string   `json:"item_name"`
	Quantity  int      `json:"quantity"`
	Modifiers []string `json:"modifiers"`
}

type draftJSON struct {
	Items  []draftItem `json:"items"`
	Delete []draftItem `json:"delete"`
}

// Extractor asks the model to structure a customer message as an order draft
type Extractor struct {
	model  llms.Model
	logger *slog.Logger
}

// NewExtractor creates an extractor over the given model
func NewExtractor(model llms.Model, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{model: model, logger: logger}
}

// Extract returns the draft for message, given the session's current cart
func (e *Extractor) Extract(ctx context.Context, message string, current []models.CartLine) (models.OrderDraft, error) {
	text, err := llm.Complete(ctx, e.model, []llm.Message{
		{Role: llm.RoleSystem, Content: fmt.Sprintf(orderPrompt, ordering.Summary(current))},
		{Role: llm.RoleUser, Content: message},
	}, llms.WithTemperature(0), llms.WithJSONMode())
	if err != nil {
		return models.OrderDraft{}, fmt.Errorf("failed to extract order: %w", err)
	}

	draft, err := ParseDraft(text)
	if err != nil {
		e.logger.Warn("extract: unusable model output", slog.String("output", text), slog.Any("error", err))
		return models.OrderDraft{}, err
	}
	e.logger.Debug("extract: draft parsed", slog.Int("lines", len(draft.Lines)))
	return draft, nil
}

// ParseDraft decodes the model's JSON order, tolerating a surrounding
// markdown code fence. Additions come before deletions in the draft; the
// reconciler applies deletions first regardless.
func ParseDraft(text string) (models.OrderDraft, error) {
	body := stripFence(text)

	var raw draftJSON
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return models.OrderDraft{}, fmt.Errorf("%w: %v", ErrUnparseableDraft, err)
	}

	draft := models.OrderDraft{Lines: make([]models.OrderLineDraft, 0, len(raw.Items)+len(raw.Delete))}
	for _, it := range raw.Items {
		draft.Lines = append(draft.Lines, it.line(false))
	}
	for _, it := range raw.Delete {
		draft.Lines = append(draft.Lines, it.line(true))
	}
	return draft, nil
}

func (it draftItem) line(deletion bool) models.OrderLineDraft {
	mods := it.Modifiers
	if mods == nil {
		mods = []string{}
	}
	return models.OrderLineDraft{
		ItemName:   strings.TrimSpace(it.ItemName),
		Quantity:   it.Quantity,
		Modifiers:  mods,
		IsDeletion: deletion,
	}
}

// stripFence removes a ```json ... ``` wrapper if present
func stripFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
