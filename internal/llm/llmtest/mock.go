// Package llmtest provides scripted language-model and embedding doubles for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

// MockLLM is a testify mock of llms.Model
type MockLLM struct {
	mock.Mock
}

// Call implements llms.Model
func (m *MockLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// GenerateContent implements llms.Model
func (m *MockLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	args := m.Called(ctx, messages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llms.ContentResponse), args.Error(1)
}

// Response wraps text in a single-choice content response
func Response(text string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: text}}}
}

// SystemPrompt matches message lists whose system part contains substr
func SystemPrompt(substr string) interface{} {
	return mock.MatchedBy(func(messages []llms.MessageContent) bool {
		for _, m := range messages {
			if m.Role != schema.ChatMessageTypeSystem {
				continue
			}
			if strings.Contains(Text(m), substr) {
				return true
			}
		}
		return false
	})
}

// Text concatenates the text parts of a message
func Text(m llms.MessageContent) string {
	var b strings.Builder
	for _, p := range m.Parts {
		if tc, ok := p.(llms.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// Embedder is a deterministic embeddings.Embedder backed by a lookup table.
// Table vectors are zero-padded to Dim. Each text missing from the table gets
// its own one-hot vector in the upper half, orthogonal to everything else.
type Embedder struct {
	mu      sync.Mutex
	Vectors map[string][]float32
	Err     error
	Calls   int
	unknown map[string]int
}

// Dim is the dimensionality of every vector the Embedder returns
const Dim = 64

func (e *Embedder) lookup(text string) []float32 {
	out := make([]float32, Dim)
	if v, ok := e.Vectors[text]; ok {
		copy(out[:Dim/2], v)
		return out
	}
	if e.unknown == nil {
		e.unknown = make(map[string]int)
	}
	idx, ok := e.unknown[text]
	if !ok {
		idx = Dim/2 + len(e.unknown)%(Dim/2)
		e.unknown[text] = idx
	}
	out[idx] = 1
	return out
}

// EmbedDocuments implements embeddings.Embedder
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Calls++
	if e.Err != nil {
		return nil, e.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.lookup(t)
	}
	return out, nil
}

// EmbedQuery implements embeddings.Embedder
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return nil, e.Err
	}
	return e.lookup(text), nil
}
