package tutor

import (
	"context"
	"fmt"
	"strings"

	"github.com/andrew/voice-tutor/pkg/llm"
	"github.com/andrew/voice-tutor/pkg/models"
)

// Rewriter turns a follow-up question into a standalone search query
type Rewriter struct {
	model  llm.ChatModel
	config llm.ModelConfig
}

// NewRewriter creates a Rewriter backed by model
func NewRewriter(model llm.ChatModel, config llm.ModelConfig) *Rewriter {
	return &Rewriter{model: model, config: config}
}

// Rewrite returns input unchanged when history is empty. Otherwise it makes
// exactly one chat call and returns the trimmed result; a blank
// result falls back to input.
func (r *Rewriter) Rewrite(ctx context.Context, history []models.Turn, input string) (string, error) {
	if len(history) == 0 {
		return input, nil
	}

	out, err := r.model.Chat(ctx, rewriteMessages(history, input), r.config)
	if err != nil {
		return "", fmt.Errorf("tutor: rewrite query: %w", err)
	}

	query := strings.TrimSpace(out)
	if query == "" {
		return input, nil
	}
	return query, nil
}
