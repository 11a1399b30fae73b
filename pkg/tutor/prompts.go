package tutor

import (
	"fmt"
	"strings"

	"github.com/andrew/voice-tutor/pkg/models"
)

const rewriteInstruction = "Given the above conversation, generate a search query to look up in order to get information relevant to the conversation. " +
	"The query must stand on its own: replace pronouns and references such as \"it\" or \"that\" with the things they refer to. " +
	"Reply with the search query only."

const answerInstruction = "You are an AI tutor. Use only the retrieved context to answer questions. " +
	"Your tone should be helpful and encouraging. Keep your answers concise. " +
	"After your answer, specify an emotion from this list: [%s]. " +
	"Format your entire response as a JSON object with two keys: 'answer' and 'emotion'."

func emotionList() string {
	names := make([]string, len(models.Emotions))
	for i, e := range models.Emotions {
		names[i] = string(e)
	}
	return strings.Join(names, ", ")
}

// rewriteMessages is the prior conversation and the new input, followed by
// the rewrite instruction as a final user message
func rewriteMessages(history []models.Turn, input string) []models.Turn {
	msgs := make([]models.Turn, 0, len(history)+2)
	msgs = append(msgs, history...)
	return append(msgs, models.UserTurn(input), models.UserTurn(rewriteInstruction))
}

// answerMessages carries the instruction and retrieved context in a system
// message, then the prior conversation, then the current input
func answerMessages(history []models.Turn, input, context string) []models.Turn {
	system := fmt.Sprintf(answerInstruction, emotionList()) + "\n\nContext: " + context

	msgs := make([]models.Turn, 0, len(history)+2)
	msgs = append(msgs, models.SystemTurn(system))
	msgs = append(msgs, history...)
	return append(msgs, models.UserTurn(input))
}
