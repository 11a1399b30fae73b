package tutor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andrew/voice-tutor/pkg/models"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// FallbackMode selects what Parse returns when the model output is not a
// well-formed structured response
type FallbackMode int

const (
	// FallbackLenient shows the raw model text with a neutral emotion.
	// Used by stateless single queries.
	FallbackLenient FallbackMode = iota
	// FallbackStrict replaces the text with FallbackApology and a thinking
	// emotion. Used by multi-turn chat.
	FallbackStrict
)

// FallbackApology is the scripted answer for malformed output in strict mode
const FallbackApology = "I'm sorry, I had trouble processing that."

var errMalformedResponse = errors.New("tutor: malformed structured response")

const responseSchema = `{
	"type": "object",
	"properties": {
		"answer":  {"type": "string"},
		"emotion": {"type": "string"}
	}
}`

var responseValidator = jsonschema.MustCompileString("structured-response.json", responseSchema)

// ParseStructured decodes raw as a single JSON object whose answer and
// emotion fields, when present, are strings. A missing answer becomes "";
// a missing or unknown emotion becomes neutral.
func ParseStructured(raw string) (models.StructuredResponse, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return models.StructuredResponse{}, fmt.Errorf("%w: %v", errMalformedResponse, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return models.StructuredResponse{}, fmt.Errorf("%w: trailing data after JSON value", errMalformedResponse)
	}
	if err := responseValidator.Validate(doc); err != nil {
		return models.StructuredResponse{}, fmt.Errorf("%w: %v", errMalformedResponse, err)
	}

	obj := doc.(map[string]any)
	answer, _ := obj["answer"].(string)
	emotion, _ := obj["emotion"].(string)

	resp := models.StructuredResponse{Answer: answer, Emotion: models.Emotion(emotion)}
	if !resp.Emotion.Valid() {
		resp.Emotion = models.EmotionNeutral
	}
	return resp, nil
}

// Parse never fails: malformed output is mapped according to mode
func Parse(raw string, mode FallbackMode) models.StructuredResponse {
	resp, err := ParseStructured(raw)
	if err == nil {
		return resp
	}
	return fallback(raw, mode)
}

// fallback is the response shown for output ParseStructured rejected
func fallback(raw string, mode FallbackMode) models.StructuredResponse {
	if mode == FallbackStrict {
		return models.StructuredResponse{Answer: FallbackApology, Emotion: models.EmotionThinking}
	}
	return models.StructuredResponse{Answer: raw, Emotion: models.EmotionNeutral}
}
