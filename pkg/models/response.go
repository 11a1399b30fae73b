package models

// Emotion is the mascot tag attached to every answer
type Emotion string

const (
	EmotionHappy      Emotion = "happy"
	EmotionThinking   Emotion = "thinking"
	EmotionExplaining Emotion = "explaining"
	EmotionNeutral    Emotion = "neutral"
)

// Emotions lists the accepted tags in the order they are offered to the model
var Emotions = []Emotion{EmotionExplaining, EmotionHappy, EmotionThinking, EmotionNeutral}

// Valid reports whether e is one of the known tags
func (e Emotion) Valid() bool {
	for _, known := range Emotions {
		if e == known {
			return true
		}
	}
	return false
}

// StructuredResponse is the shape the synthesizer asks the model to produce
type StructuredResponse struct {
	Answer  string  `json:"answer"`
	Emotion Emotion `json:"emotion"`
}
