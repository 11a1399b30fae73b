package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/andrew/voice-tutor/pkg/models"
	"github.com/sashabaranov/go-openai"
)

const (
	defaultOpenAIChatModel  = openai.GPT4oMini
	defaultOpenAIEmbedModel = "text-embedding-3-small"
)

// OpenAIClient talks to the OpenAI API or any compatible endpoint
type OpenAIClient struct {
	client     *openai.Client
	chatModel  string
	embedModel string
}

// NewOpenAIClient creates a client. An empty baseURL targets api.openai.com.
func NewOpenAIClient(chatModel, embedModel, baseURL, apiKey string, httpClient *http.Client) *OpenAIClient {
	if chatModel == "" {
		chatModel = defaultOpenAIChatModel
	}
	if embedModel == "" {
		embedModel = defaultOpenAIEmbedModel
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}

	return &OpenAIClient{
		client:     openai.NewClientWithConfig(cfg),
		chatModel:  chatModel,
		embedModel: embedModel,
	}
}

// Generate sends the prompt as a single user message
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, config ModelConfig) (string, error) {
	return c.Chat(ctx, []models.Turn{models.UserTurn(prompt)}, config)
}

// Chat maps each turn to a chat completion message of the same role
func (c *OpenAIClient) Chat(ctx context.Context, messages []models.Turn, config ModelConfig) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msgs[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.chatModel,
		Messages:    msgs,
		Temperature: config.Temperature,
		TopP:        config.TopP,
		MaxTokens:   config.MaxTokens,
		Stop:        config.StopSequences,
	})
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: chat completion: %w", ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

// EmbedText generates vector embeddings for a given text
func (c *OpenAIClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.embedModel),
	})
	if err != nil {
		return nil, fmt.Errorf("openai: embeddings: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai: embeddings: %w", ErrEmptyResponse)
	}
	return resp.Data[0].Embedding, nil
}

// Close is a no-op
func (c *OpenAIClient) Close() error {
	return nil
}

var _ Client = (*OpenAIClient)(nil)
