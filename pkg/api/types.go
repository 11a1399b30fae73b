package api

import "github.com/andrew/voice-tutor/pkg/models"

// ChatRequest is the body of POST /chat
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

// QueryRequest is the body of POST /query
type QueryRequest struct {
	Query string `json:"query"`
}

// TutorResponse is returned by both /chat and /query
type TutorResponse struct {
	Text    string         `json:"text"`
	Emotion models.Emotion `json:"emotion"`
}

// HealthResponse reports readiness and the number of indexed chunks
type HealthResponse struct {
	Status string `json:"status"`
	Chunks int    `json:"chunks"`
}

type errorResponse struct {
	Error string `json:"error"`
}
