// Package session keeps per-session conversation history for the tutor.
// A session is created implicitly the first time its id is used and is
// forgotten when evicted, either explicitly or by the store's retention policy.
package session

import (
	"context"

	"github.com/andrew/voice-tutor/pkg/models"
)

// DefaultMaxTurns is the number of most recent turns a session keeps
const DefaultMaxTurns = 10

// Store owns the ordered turn history of every session
type Store interface {
	// Get returns a copy of the session's history, oldest first. Unknown ids yield an empty history.
	Get(ctx context.Context, sessionID string) ([]models.Turn, error)
	// Append adds the user turn then the assistant turn and drops the oldest
	// turns beyond the store's cap.
	Append(ctx context.Context, sessionID string, user, assistant models.Turn) error
	// Evict forgets a session. Evicting an unknown id is not an error.
	Evict(ctx context.Context, sessionID string) error
}

// truncate keeps the last max turns of history
func truncate(history []models.Turn, max int) []models.Turn {
	if max > 0 && len(history) > max {
		history = history[len(history)-max:]
	}
	return history
}
