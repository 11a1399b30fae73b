package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/andrew/voice-tutor/pkg/models"
)

// ErrEmptyResponse is returned when a provider answers without any content
var ErrEmptyResponse = errors.New("llm: empty response")

// Generator produces text from a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string, config ModelConfig) (string, error)
}

// ChatModel answers a role-structured conversation: system instructions,
// prior turns and the latest user message
type ChatModel interface {
	Chat(ctx context.Context, messages []models.Turn, config ModelConfig) (string, error)
}

// Embedder produces a fixed-length vector for a text
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Client is the interface for interacting with LLMs
type Client interface {
	Generator
	ChatModel
	Embedder
	Close() error
}

// ModelConfig holds configuration parameters for model generation
type ModelConfig struct {
	Temperature   float32
	TopP          float32
	MaxTokens     int
	StopSequences []string
}

// DefaultModelConfig returns a default configuration
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Temperature: 0.2,
		TopP:        0.9,
		MaxTokens:   1024,
	}
}

// Provider names accepted by NewClient
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// ProviderConfig selects and configures a backend
type ProviderConfig struct {
	Provider   string
	BaseURL    string
	APIKey     string
	ChatModel  string
	EmbedModel string
	Timeout    time.Duration
}

// NewClient creates a new LLM client for the configured provider, defaulting to Ollama
func NewClient(cfg ProviderConfig) (Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	httpClient := &http.Client{Timeout: timeout}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOllama:
		return NewOllamaClient(cfg.ChatModel, cfg.EmbedModel, cfg.BaseURL, httpClient)
	case ProviderOpenAI:
		return NewOpenAIClient(cfg.ChatModel, cfg.EmbedModel, cfg.BaseURL, cfg.APIKey, httpClient), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
