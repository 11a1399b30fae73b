// Package api exposes the tutor pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/andrew/voice-tutor/pkg/tutor"
	"github.com/andrew/voice-tutor/pkg/vector"
	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

// TurnHandler is the subset of the tutor pipeline the server calls
type TurnHandler interface {
	HandleTurn(ctx context.Context, sessionID, query string) (tutor.Result, error)
	Answer(ctx context.Context, query string) (tutor.Result, error)
	ResetSession(ctx context.Context, sessionID string) error
}

// ChunkCounter reports the size of the index; vector.Store satisfies it
type ChunkCounter interface {
	Count(ctx context.Context) (int, error)
}

var _ ChunkCounter = (vector.Store)(nil)

// Server routes tutor requests to the pipeline
type Server struct {
	router   chi.Router
	pipeline TurnHandler
	index    ChunkCounter
	logger   *slog.Logger
}

// NewServer builds the router. index may be nil, in which case /healthz reports zero chunks.
func NewServer(pipeline TurnHandler, index ChunkCounter, logger *slog.Logger) (*Server, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("api: pipeline required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router:   chi.NewRouter(),
		pipeline: pipeline,
		index:    index,
		logger:   logger,
	}
	s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			s.logger.Debug("api: request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"dur", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	})

	s.router.Get("/healthz", s.handleHealth)
	s.router.Post("/chat", s.handleChat)
	s.router.Post("/query", s.handleQuery)
	s.router.Delete("/sessions/{sessionID}", s.handleResetSession)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if s.index != nil {
		n, err := s.index.Count(r.Context())
		if err != nil {
			s.writeError(w, http.StatusServiceUnavailable, fmt.Errorf("index unavailable: %w", err))
			return
		}
		resp.Chunks = n
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := s.pipeline.HandleTurn(r.Context(), req.SessionID, req.Query)
	if err != nil {
		s.writeTurnError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TutorResponse{Text: result.Answer, Emotion: result.Emotion})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := s.pipeline.Answer(r.Context(), req.Query)
	if err != nil {
		s.writeTurnError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TutorResponse{Text: result.Answer, Emotion: result.Emotion})
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := s.pipeline.ResetSession(r.Context(), id); err != nil {
		s.writeTurnError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeTurnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tutor.ErrEmptyQuery), errors.Is(err, tutor.ErrEmptySession):
		s.writeError(w, http.StatusBadRequest, err)
	default:
		// upstream details stay in the log
		s.logger.Error("api: turn failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Warn("api: request failed", "status", status, "error", err)
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
