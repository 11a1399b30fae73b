package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andrew/voice-tutor/pkg/llm"
	"github.com/andrew/voice-tutor/pkg/models"
	"github.com/andrew/voice-tutor/pkg/session"
	"github.com/andrew/voice-tutor/pkg/tutor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChat struct {
	out string
	err error
}

func (g stubChat) Chat(ctx context.Context, messages []models.Turn, config llm.ModelConfig) (string, error) {
	return g.out, g.err
}

type stubRetriever struct{}

func (stubRetriever) Retrieve(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	return []models.SearchResult{{Chunk: models.Chunk{Text: "Derivatives measure change.", Source: "calculus.md"}, Score: 1}}, nil
}

type stubCounter struct {
	n   int
	err error
}

func (c stubCounter) Count(ctx context.Context) (int, error) { return c.n, c.err }

func newTestServer(t *testing.T, gen llm.ChatModel) (*httptest.Server, *session.MemoryStore) {
	t.Helper()
	sessions := session.NewMemoryStore(session.MemoryConfig{}, nil)
	pipeline := tutor.NewPipeline(gen, stubRetriever{}, sessions, tutor.Options{SerializeSessions: true}, nil)
	srv, err := NewServer(pipeline, stubCounter{n: 7}, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, sessions
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestChatEndToEnd(t *testing.T) {
	ts, sessions := newTestServer(t, stubChat{out: `{"answer":"hi","emotion":"happy"}`})

	resp := postJSON(t, ts.URL+"/chat", ChatRequest{SessionID: "s1", Query: "hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, TutorResponse{Text: "hi", Emotion: models.EmotionHappy}, decode[TutorResponse](t, resp))

	history, err := sessions.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestChatMalformedOutputReturnsApology(t *testing.T) {
	ts, _ := newTestServer(t, stubChat{out: "not json"})

	resp := postJSON(t, ts.URL+"/chat", ChatRequest{SessionID: "s1", Query: "hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, TutorResponse{Text: tutor.FallbackApology, Emotion: models.EmotionThinking}, decode[TutorResponse](t, resp))
}

func TestQueryIsStateless(t *testing.T) {
	ts, sessions := newTestServer(t, stubChat{out: "plain text answer"})

	resp := postJSON(t, ts.URL+"/query", QueryRequest{Query: "what is a derivative"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, TutorResponse{Text: "plain text answer", Emotion: models.EmotionNeutral}, decode[TutorResponse](t, resp))
	assert.Equal(t, 0, sessions.Len())
}

func TestValidationErrors(t *testing.T) {
	ts, sessions := newTestServer(t, stubChat{out: `{"answer":"hi","emotion":"happy"}`})

	cases := []struct {
		name string
		path string
		body any
	}{
		{"empty query", "/chat", ChatRequest{SessionID: "s1", Query: "  "}},
		{"missing session", "/chat", ChatRequest{Query: "hello"}},
		{"empty stateless query", "/query", QueryRequest{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+tc.path, tc.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.NotEmpty(t, decode[errorResponse](t, resp).Error)
		})
	}
	assert.Equal(t, 0, sessions.Len())
}

func TestMalformedBody(t *testing.T) {
	ts, _ := newTestServer(t, stubChat{})

	resp, err := http.Post(ts.URL+"/chat", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpstreamFailureIsHidden(t *testing.T) {
	ts, sessions := newTestServer(t, stubChat{err: errors.New("connection refused to llm at 10.0.0.5")})

	resp := postJSON(t, ts.URL+"/chat", ChatRequest{SessionID: "s1", Query: "hello"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decode[errorResponse](t, resp)
	assert.Equal(t, "internal error", body.Error)

	history, err := sessions.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestResetSession(t *testing.T) {
	ts, sessions := newTestServer(t, stubChat{out: `{"answer":"hi","emotion":"happy"}`})

	postJSON(t, ts.URL+"/chat", ChatRequest{SessionID: "s1", Query: "hello"})
	require.Equal(t, 1, sessions.Len())

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/sessions/s1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, sessions.Len())
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, stubChat{})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, HealthResponse{Status: "ok", Chunks: 7}, decode[HealthResponse](t, resp))
}

func TestHealthReportsUnavailableIndex(t *testing.T) {
	pipeline := tutor.NewPipeline(stubChat{}, stubRetriever{}, session.NewMemoryStore(session.MemoryConfig{}, nil), tutor.Options{}, nil)
	srv, err := NewServer(pipeline, stubCounter{err: errors.New("qdrant down")}, nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNewServerRequiresPipeline(t *testing.T) {
	_, err := NewServer(nil, nil, nil)
	assert.Error(t, err)
}
