package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/andrew/voice-tutor/pkg/models"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMaxSessions bounds how many sessions the in-memory store retains
const DefaultMaxSessions = 10000

// MemoryConfig holds configuration for the in-memory store
type MemoryConfig struct {
	// MaxTurns caps each session's history (sliding window). Default: 10.
	// An odd cap is rounded down so the window always starts with a user turn.
	MaxTurns int

	// MaxSessions is the number of sessions retained; the least recently
	// used session is evicted beyond it. Default: 10000.
	MaxSessions int

	// TTL evicts sessions that have not been appended to for this long.
	// Zero disables idle expiry.
	TTL time.Duration
}

// MemoryStore is a process-local Store. Histories are lost on restart.
// It is safe for concurrent use.
type MemoryStore struct {
	mu       sync.Mutex
	maxTurns int
	sessions *expirable.LRU[string, []models.Turn]
}

// NewMemoryStore creates an in-memory store with the given configuration
func NewMemoryStore(cfg MemoryConfig, logger *slog.Logger) *MemoryStore {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if cfg.MaxTurns%2 != 0 {
		cfg.MaxTurns = max(cfg.MaxTurns-1, 2)
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if logger == nil {
		logger = slog.Default()
	}

	onEvict := func(sessionID string, history []models.Turn) {
		logger.Debug("session: evicted", "session_id", sessionID, "turns", len(history))
	}

	return &MemoryStore{
		maxTurns: cfg.MaxTurns,
		sessions: expirable.NewLRU[string, []models.Turn](cfg.MaxSessions, onEvict, cfg.TTL),
	}
}

// Get returns a snapshot of the session's history
func (s *MemoryStore) Get(ctx context.Context, sessionID string) ([]models.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.sessions.Get(sessionID)
	if !ok {
		return []models.Turn{}, nil
	}
	out := make([]models.Turn, len(history))
	copy(out, history)
	return out, nil
}

// Append records a user/assistant pair and truncates to MaxTurns
func (s *MemoryStore) Append(ctx context.Context, sessionID string, user, assistant models.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, _ := s.sessions.Peek(sessionID)
	next := make([]models.Turn, 0, len(history)+2)
	next = append(next, history...)
	next = append(next, user, assistant)
	s.sessions.Add(sessionID, truncate(next, s.maxTurns))
	return nil
}

// Evict removes the session
func (s *MemoryStore) Evict(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions.Remove(sessionID)
	return nil
}

// Len returns the number of retained sessions
func (s *MemoryStore) Len() int {
	return s.sessions.Len()
}

var _ Store = (*MemoryStore)(nil)
