package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/tmc/langchaingo/embeddings"

	"maitred/internal/menu"
)

// defaultSemanticTimeout bounds a single query embedding call
const defaultSemanticTimeout = 3 * time.Second

// ErrNoEmbedder is returned by a SemanticScorer built without a backend
var ErrNoEmbedder = errors.New("semantic scorer has no embedder")

// SemanticScorer ranks candidates by cosine similarity between the query
// embedding and each candidate embedding. Candidate vectors are cached,
// unit-normalized, by normalized name.
//
// Safe for concurrent use.
type SemanticScorer struct {
	embedder embeddings.Embedder
	timeout  time.Duration
	logger   *slog.Logger

	mu      sync.RWMutex
	vectors map[string][]float32
}

// NewSemanticScorer wraps an embedding backend. A zero timeout selects the default.
func NewSemanticScorer(embedder embeddings.Embedder, timeout time.Duration, logger *slog.Logger) *SemanticScorer {
	if timeout <= 0 {
		timeout = defaultSemanticTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SemanticScorer{
		embedder: embedder,
		timeout:  timeout,
		logger:   logger,
		vectors:  make(map[string][]float32),
	}
}

// Strategy implements Scorer
func (s *SemanticScorer) Strategy() Strategy { return StrategySemantic }

// Warm embeds the pool ahead of the first query, typically the full menu at startup
func (s *SemanticScorer) Warm(ctx context.Context, pool []string) error {
	return s.ensure(ctx, pool)
}

// Score implements Scorer. Every pool entry is returned; thresholds are the
// caller's concern.
func (s *SemanticScorer) Score(ctx context.Context, query string, pool []string) ([]Candidate, error) {
	if s == nil || s.embedder == nil {
		return nil, ErrNoEmbedder
	}
	if len(pool) == 0 {
		return []Candidate{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.ensure(ctx, pool); err != nil {
		return nil, err
	}

	raw, err := s.embedder.EmbedQuery(ctx, menu.Normalize(query))
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	q := unit(raw)
	if q == nil {
		return nil, fmt.Errorf("query embedding has zero norm")
	}

	s.mu.RLock()
	out := make([]Candidate, 0, len(pool))
	for _, name := range pool {
		v, ok := s.vectors[menu.Normalize(name)]
		if !ok {
			continue
		}
		out = append(out, Candidate{Name: name, Score: float64(dot(q, v))})
	}
	s.mu.RUnlock()

	return rank(out), nil
}

// ensure embeds every pool entry not yet cached in one batch call
func (s *SemanticScorer) ensure(ctx context.Context, pool []string) error {
	s.mu.RLock()
	missing := make([]string, 0)
	seen := make(map[string]bool)
	for _, name := range pool {
		key := menu.Normalize(name)
		if _, ok := s.vectors[key]; !ok && !seen[key] {
			missing = append(missing, key)
			seen[key] = true
		}
	}
	s.mu.RUnlock()

	if len(missing) == 0 {
		return nil
	}

	vecs, err := s.embedder.EmbedDocuments(ctx, missing)
	if err != nil {
		return fmt.Errorf("failed to embed candidates: %w", err)
	}
	if len(vecs) != len(missing) {
		return fmt.Errorf("embedder returned %d vectors for %d candidates", len(vecs), len(missing))
	}

	s.mu.Lock()
	for i, key := range missing {
		if v := unit(vecs[i]); v != nil {
			s.vectors[key] = v
		}
	}
	s.mu.Unlock()

	s.logger.Debug("semantic scorer: embedded candidates", slog.Int("count", len(missing)))
	return nil
}

// unit returns a unit-normalized copy of v, or nil for a zero vector
func unit(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return nil
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
