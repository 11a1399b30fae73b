package tutor

import (
	"context"
	"strings"
	"sync"

	"github.com/andrew/voice-tutor/pkg/llm"
	"github.com/andrew/voice-tutor/pkg/models"
)

// scriptedChat answers rewrite requests with rewrite(messages) and every
// other request with answer(messages). It records every conversation it is
// sent and, by default, echoes it back as a transcript.
type scriptedChat struct {
	mu            sync.Mutex
	conversations [][]models.Turn
	rewrite       func(messages []models.Turn) (string, error)
	answer        func(messages []models.Turn) (string, error)
}

func (g *scriptedChat) Chat(ctx context.Context, messages []models.Turn, config llm.ModelConfig) (string, error) {
	g.mu.Lock()
	g.conversations = append(g.conversations, append([]models.Turn(nil), messages...))
	g.mu.Unlock()

	if isRewrite(messages) {
		if g.rewrite == nil {
			return transcript(messages), nil
		}
		return g.rewrite(messages)
	}
	if g.answer == nil {
		return transcript(messages), nil
	}
	return g.answer(messages)
}

func (g *scriptedChat) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conversations)
}

func isRewrite(messages []models.Turn) bool {
	n := len(messages)
	return n > 0 && messages[n-1] == models.UserTurn(rewriteInstruction)
}

// transcript renders messages as "role: content" lines
func transcript(messages []models.Turn) string {
	lines := make([]string, len(messages))
	for i, m := range messages {
		lines[i] = string(m.Role) + ": " + m.Content
	}
	return strings.Join(lines, "\n")
}

func lastMessage(messages []models.Turn) models.Turn {
	return messages[len(messages)-1]
}

func constant(out string) func([]models.Turn) (string, error) {
	return func([]models.Turn) (string, error) { return out, nil }
}

func failing(err error) func([]models.Turn) (string, error) {
	return func([]models.Turn) (string, error) { return "", err }
}

// keywordEmbedder counts vocabulary words, giving a deterministic bag-of-words vector
type keywordEmbedder struct {
	vocab []string
}

func (e keywordEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	vec := make([]float32, len(e.vocab))
	for i, word := range e.vocab {
		vec[i] = float32(strings.Count(lower, word))
	}
	return vec, nil
}

// staticRetriever returns fixed results and records queries
type staticRetriever struct {
	mu      sync.Mutex
	results []models.SearchResult
	err     error
	queries []string
}

func (r *staticRetriever) Retrieve(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, query)
	return r.results, r.err
}
