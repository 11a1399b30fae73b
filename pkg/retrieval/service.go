package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/andrew/voice-tutor/pkg/llm"
	"github.com/andrew/voice-tutor/pkg/models"
	"github.com/andrew/voice-tutor/pkg/vector"
)

// DefaultK is the number of chunks returned when the caller does not ask for a specific count
const DefaultK = 4

// Service provides functionality for retrieving relevant chunks
type Service interface {
	// Retrieve returns up to k chunks relevant to query, most relevant first
	Retrieve(ctx context.Context, query string, k int) ([]models.SearchResult, error)
}

// Config contains configuration for a retrieval service
type Config struct {
	// DefaultK is used when Retrieve is called with k <= 0
	DefaultK int
}

// Retriever embeds the query and runs a nearest-neighbour search against the index
type Retriever struct {
	embedder llm.Embedder
	store    vector.Store
	defaultK int
	logger   *slog.Logger
}

// New creates a Retriever over store
func New(embedder llm.Embedder, store vector.Store, cfg Config, logger *slog.Logger) *Retriever {
	if cfg.DefaultK <= 0 {
		cfg.DefaultK = DefaultK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{embedder: embedder, store: store, defaultK: cfg.DefaultK, logger: logger}
}

// Retrieve returns up to k chunks by descending relevance. Overlapping chunks are not deduplicated.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	if k <= 0 {
		k = r.defaultK
	}

	vec, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieval: embed query: %w", err)
	}

	results, err := r.store.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("retrieval: search: %w", err)
	}

	r.logger.Debug("retrieval: chunks found", "k", k, "results", len(results))
	for i, res := range results {
		r.logger.Debug("retrieval: hit", "rank", i+1, "chunk", res.Chunk.SourceOffset.String(), "score", res.Score)
	}
	return results, nil
}

// GetRetrievalContext renders search results as a context block for augmenting LLM prompts
func GetRetrievalContext(results []models.SearchResult) string {
	var contextBuilder strings.Builder
	for i, res := range results {
		if i > 0 {
			contextBuilder.WriteString("\n\n")
		}
		if res.Chunk.Source != "" {
			contextBuilder.WriteString(fmt.Sprintf("# SOURCE: %s\n", res.Chunk.Source))
		}
		contextBuilder.WriteString(res.Chunk.Text)
	}
	return contextBuilder.String()
}

var _ Service = (*Retriever)(nil)
