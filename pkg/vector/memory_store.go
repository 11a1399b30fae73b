package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/andrew/voice-tutor/pkg/models"
)

// MemoryStore is a brute-force cosine index held in process memory
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	chunks    []models.EmbeddedChunk
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Reset drops every chunk and forgets the index dimension
func (s *MemoryStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = nil
	s.dimension = 0
	return nil
}

// Upsert appends chunks. All vectors must share one dimension.
func (s *MemoryStore) Upsert(ctx context.Context, chunks []models.EmbeddedChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range chunks {
		if s.dimension == 0 {
			s.dimension = len(c.Embedding)
		}
		if len(c.Embedding) != s.dimension {
			return fmt.Errorf("memory store: chunk %s has %d dimensions, index has %d: %w",
				c.SourceOffset, len(c.Embedding), s.dimension, ErrDimensionMismatch)
		}
	}
	s.chunks = append(s.chunks, chunks...)
	return nil
}

// Search scores every chunk and returns up to limit results by descending score.
// Equal scores keep insertion order.
func (s *MemoryStore) Search(ctx context.Context, queryVector []float32, limit int) ([]models.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || len(s.chunks) == 0 {
		return nil, nil
	}

	results := make([]models.SearchResult, 0, len(s.chunks))
	for _, c := range s.chunks {
		score, err := CosineSimilarity(queryVector, c.Embedding)
		if err != nil {
			return nil, fmt.Errorf("memory store: query has %d dimensions, index has %d: %w",
				len(queryVector), s.dimension, err)
		}
		results = append(results, models.SearchResult{Chunk: c.Chunk, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Count returns the number of stored chunks
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
