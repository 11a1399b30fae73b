package vector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/andrew/voice-tutor/pkg/models"
)

// ErrDimensionMismatch is returned when vectors of different lengths are compared or stored together
var ErrDimensionMismatch = errors.New("vector: dimension mismatch")

// Store defines the interface for vector database operations.
// Chunks are written while the corpus is indexed and are read-only afterwards.
type Store interface {
	// Reset removes every stored chunk so the next Upsert starts an empty index
	Reset(ctx context.Context) error
	// Upsert stores embedded chunks. Insertion order is the tie-break order for equal scores.
	Upsert(ctx context.Context, chunks []models.EmbeddedChunk) error
	// Search finds the most similar chunks to the given query vector, best first
	Search(ctx context.Context, queryVector []float32, limit int) ([]models.SearchResult, error)
	// Count returns the number of stored chunks
	Count(ctx context.Context) (int, error)
	// Close releases resources used by the vector store
	Close() error
}

// Backend names
const (
	BackendMemory = "memory"
	BackendQdrant = "qdrant"
)

// Config contains configuration for a vector database
type Config struct {
	Backend    string // "memory" or "qdrant"
	QdrantHost string
	QdrantPort int
	Collection string
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Zero vectors score 0.
func CosineSimilarity(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB))), nil
}

// New builds the store selected by cfg.Backend, defaulting to memory
func New(cfg Config, logger *slog.Logger) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendQdrant:
		return NewQdrantStore(cfg, logger)
	default:
		return nil, fmt.Errorf("vector: unknown backend %q", cfg.Backend)
	}
}
