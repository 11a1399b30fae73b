package tutor

import (
	"context"
	"fmt"

	"github.com/andrew/voice-tutor/pkg/llm"
	"github.com/andrew/voice-tutor/pkg/models"
	"github.com/andrew/voice-tutor/pkg/retrieval"
)

// Synthesizer asks the model for a grounded answer in the structured response format
type Synthesizer struct {
	model  llm.ChatModel
	config llm.ModelConfig
}

// NewSynthesizer creates a Synthesizer backed by model
func NewSynthesizer(model llm.ChatModel, config llm.ModelConfig) *Synthesizer {
	return &Synthesizer{model: model, config: config}
}

// Synthesize makes one chat call and returns the model's raw output.
// The output is not validated here; see Parse.
func (s *Synthesizer) Synthesize(ctx context.Context, history []models.Turn, input string, chunks []models.SearchResult) (string, error) {
	msgs := answerMessages(history, input, retrieval.GetRetrievalContext(chunks))
	raw, err := s.model.Chat(ctx, msgs, s.config)
	if err != nil {
		return "", fmt.Errorf("tutor: synthesize answer: %w", err)
	}
	return raw, nil
}
