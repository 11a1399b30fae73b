package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/andrew/voice-tutor/pkg/models"
	"github.com/ollama/ollama/api"
)

const (
	defaultOllamaURL        = "http://localhost:11434"
	defaultOllamaChatModel  = "llama3.2"
	defaultOllamaEmbedModel = "nomic-embed-text"
)

// OllamaClient is a client that uses the Ollama API to interact with LLM models
type OllamaClient struct {
	client     *api.Client
	chatModel  string
	embedModel string
}

// NewOllamaClient creates a new client for interacting with an Ollama server
func NewOllamaClient(chatModel, embedModel, baseURL string, httpClient *http.Client) (*OllamaClient, error) {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if chatModel == "" {
		chatModel = defaultOllamaChatModel
	}
	if embedModel == "" {
		embedModel = defaultOllamaEmbedModel
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	ollamaURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ollama: invalid base URL %q: %w", baseURL, err)
	}

	return &OllamaClient{
		client:     api.NewClient(ollamaURL, httpClient),
		chatModel:  chatModel,
		embedModel: embedModel,
	}, nil
}

// Generate processes a single prompt and returns a completion
func (c *OllamaClient) Generate(ctx context.Context, prompt string, config ModelConfig) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:   c.chatModel,
		Prompt:  prompt,
		Stream:  &stream,
		Options: ollamaOptions(config),
	}

	// Even unstreamed, the response arrives through the callback
	var fullResponse strings.Builder
	err := c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		fullResponse.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama: generate: %w", err)
	}

	return fullResponse.String(), nil
}

// Chat sends the messages to the chat endpoint and returns the assistant reply
func (c *OllamaClient) Chat(ctx context.Context, messages []models.Turn, config ModelConfig) (string, error) {
	msgs := make([]api.Message, len(messages))
	for i, m := range messages {
		msgs[i] = api.Message{Role: string(m.Role), Content: m.Content}
	}

	stream := false
	req := &api.ChatRequest{
		Model:    c.chatModel,
		Messages: msgs,
		Stream:   &stream,
		Options:  ollamaOptions(config),
	}

	var reply strings.Builder
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		reply.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama: chat: %w", err)
	}
	return reply.String(), nil
}

// EmbedText generates vector embeddings for a given text
func (c *OllamaClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.Embed(ctx, &api.EmbedRequest{
		Model: c.embedModel,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama: embed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("ollama: embed: %w", ErrEmptyResponse)
	}
	return resp.Embeddings[0], nil
}

// Close cleans up any resources
func (c *OllamaClient) Close() error {
	// No cleanup needed for HTTP client
	return nil
}

func ollamaOptions(config ModelConfig) map[string]any {
	opts := map[string]any{
		"temperature": config.Temperature,
	}
	if config.TopP > 0 {
		opts["top_p"] = config.TopP
	}
	if config.MaxTokens > 0 {
		opts["num_predict"] = config.MaxTokens
	}
	if len(config.StopSequences) > 0 {
		opts["stop"] = config.StopSequences
	}
	return opts
}

var _ Client = (*OllamaClient)(nil)
