package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andrew/voice-tutor/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaClientGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tutor-model", req["model"])
		assert.Equal(t, "say hi", req["prompt"])
		assert.Equal(t, false, req["stream"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":    "tutor-model",
			"response": `{"answer":"hi","emotion":"happy"}`,
			"done":     true,
		})
	}))
	defer srv.Close()

	client, err := NewOllamaClient("tutor-model", "embed-model", srv.URL, srv.Client())
	require.NoError(t, err)

	out, err := client.Generate(context.Background(), "say hi", DefaultModelConfig())
	require.NoError(t, err)
	assert.Equal(t, `{"answer":"hi","emotion":"happy"}`, out)
}

func TestOllamaClientChatKeepsRoles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req struct {
			Model    string `json:"model"`
			Stream   bool   `json:"stream"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tutor-model", req.Model)
		assert.False(t, req.Stream)
		if assert.Len(t, req.Messages, 3) {
			assert.Equal(t, "system", req.Messages[0].Role)
			assert.Equal(t, "be brief", req.Messages[0].Content)
			assert.Equal(t, "assistant", req.Messages[1].Role)
			assert.Equal(t, "user", req.Messages[2].Role)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":   "tutor-model",
			"message": map[string]string{"role": "assistant", "content": "sure"},
			"done":    true,
		})
	}))
	defer srv.Close()

	client, err := NewOllamaClient("tutor-model", "embed-model", srv.URL, srv.Client())
	require.NoError(t, err)

	out, err := client.Chat(context.Background(), []models.Turn{
		models.SystemTurn("be brief"),
		models.AssistantTurn("hello"),
		models.UserTurn("explain limits"),
	}, DefaultModelConfig())
	require.NoError(t, err)
	assert.Equal(t, "sure", out)
}

func TestOllamaClientEmbedText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "embed-model", req["model"])
		assert.Equal(t, "hello world", req["input"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":      "embed-model",
			"embeddings": [][]float32{{0.1, 0.2, 0.3}},
		})
	}))
	defer srv.Close()

	client, err := NewOllamaClient("tutor-model", "embed-model", srv.URL, srv.Client())
	require.NoError(t, err)

	vec, err := client.EmbedText(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestOllamaClientEmbedTextEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"embed-model","embeddings":[]}`))
	}))
	defer srv.Close()

	client, err := NewOllamaClient("", "", srv.URL, srv.Client())
	require.NoError(t, err)

	_, err = client.EmbedText(context.Background(), "hello")
	require.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOllamaClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"model not loaded"}`))
	}))
	defer srv.Close()

	client, err := NewOllamaClient("", "", srv.URL, srv.Client())
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "hi", DefaultModelConfig())
	require.Error(t, err)
}

func TestNewClientProviders(t *testing.T) {
	c, err := NewClient(ProviderConfig{})
	require.NoError(t, err)
	assert.IsType(t, &OllamaClient{}, c)

	c, err = NewClient(ProviderConfig{Provider: "OpenAI", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	_, err = NewClient(ProviderConfig{Provider: "gemini"})
	require.Error(t, err)
}
