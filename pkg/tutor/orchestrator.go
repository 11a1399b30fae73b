// Package tutor implements the conversational retrieval pipeline: query
// rewriting, retrieval, answer synthesis, structured-output parsing and
// the per-session turn loop that ties them together.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/andrew/voice-tutor/pkg/llm"
	"github.com/andrew/voice-tutor/pkg/models"
	"github.com/andrew/voice-tutor/pkg/retrieval"
	"github.com/andrew/voice-tutor/pkg/session"
)

var (
	// ErrEmptyQuery is returned for a blank user query
	ErrEmptyQuery = errors.New("tutor: query is empty")
	// ErrEmptySession is returned when a chat turn has no session id
	ErrEmptySession = errors.New("tutor: session id is empty")
)

// Options configures a Pipeline
type Options struct {
	// K is the number of chunks retrieved per turn; 0 uses the retriever default
	K int
	// SerializeSessions runs turns of the same session one at a time
	SerializeSessions bool
	// Model is passed to every chat call
	Model llm.ModelConfig
}

// Result is the outcome of one turn
type Result struct {
	Answer  string
	Emotion models.Emotion
	// Raw is the unparsed synthesizer output; it is what chat history stores
	Raw string
	// Query is the search query actually sent to the retriever
	Query   string
	Sources []models.SearchResult
}

// Pipeline answers questions over the indexed corpus
type Pipeline struct {
	rewriter    *Rewriter
	retriever   retrieval.Service
	synthesizer *Synthesizer
	sessions    session.Store
	locks       *session.KeyedLock
	k           int
	logger      *slog.Logger
}

// NewPipeline wires the pipeline components
func NewPipeline(model llm.ChatModel, retriever retrieval.Service, sessions session.Store, opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		rewriter:    NewRewriter(model, opts.Model),
		retriever:   retriever,
		synthesizer: NewSynthesizer(model, opts.Model),
		sessions:    sessions,
		k:           opts.K,
		logger:      logger,
	}
	if opts.SerializeSessions {
		p.locks = session.NewKeyedLock()
	}
	return p
}

// HandleTurn runs one chat turn for sessionID. History is only appended
// after a response (parsed or fallback) exists, so a failed turn leaves
// the session unchanged. The stored assistant turn is the raw model output.
func (p *Pipeline) HandleTurn(ctx context.Context, sessionID, query string) (Result, error) {
	if strings.TrimSpace(sessionID) == "" {
		return Result{}, ErrEmptySession
	}
	if strings.TrimSpace(query) == "" {
		return Result{}, ErrEmptyQuery
	}

	if p.locks != nil {
		unlock, err := p.locks.Lock(ctx, sessionID)
		if err != nil {
			return Result{}, fmt.Errorf("tutor: wait for session %s: %w", sessionID, err)
		}
		defer unlock()
	}

	history, err := p.sessions.Get(ctx, sessionID)
	if err != nil {
		return Result{}, fmt.Errorf("tutor: load history: %w", err)
	}

	res, err := p.run(ctx, history, query, FallbackStrict)
	if err != nil {
		return Result{}, err
	}

	if err := p.sessions.Append(ctx, sessionID, models.UserTurn(query), models.AssistantTurn(res.Raw)); err != nil {
		return Result{}, fmt.Errorf("tutor: save history: %w", err)
	}
	return res, nil
}

// Answer runs a stateless single query: no history is read or written
func (p *Pipeline) Answer(ctx context.Context, query string) (Result, error) {
	if strings.TrimSpace(query) == "" {
		return Result{}, ErrEmptyQuery
	}
	return p.run(ctx, nil, query, FallbackLenient)
}

// ResetSession forgets a session's history
func (p *Pipeline) ResetSession(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrEmptySession
	}
	return p.sessions.Evict(ctx, sessionID)
}

func (p *Pipeline) run(ctx context.Context, history []models.Turn, query string, mode FallbackMode) (Result, error) {
	start := time.Now()

	searchQuery, err := p.rewriter.Rewrite(ctx, history, query)
	if err != nil {
		return Result{}, err
	}

	chunks, err := p.retriever.Retrieve(ctx, searchQuery, p.k)
	if err != nil {
		return Result{}, fmt.Errorf("tutor: %w", err)
	}

	raw, err := p.synthesizer.Synthesize(ctx, history, query, chunks)
	if err != nil {
		return Result{}, err
	}

	parsed, parseErr := ParseStructured(raw)
	if parseErr != nil {
		p.logger.Warn("tutor: model output is not a structured response", "err", parseErr, "raw_length", len(raw))
		parsed = fallback(raw, mode)
	}

	p.logger.Debug("tutor: turn answered",
		"history_turns", len(history),
		"rewritten", searchQuery != query,
		"chunks", len(chunks),
		"emotion", parsed.Emotion,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	return Result{
		Answer:  parsed.Answer,
		Emotion: parsed.Emotion,
		Raw:     raw,
		Query:   searchQuery,
		Sources: chunks,
	}, nil
}
