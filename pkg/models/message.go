package models

// Role represents the role of a turn's author
type Role string

const (
	// RoleSystem carries instructions for the model
	RoleSystem Role = "system"
	// RoleUser represents a message from the user
	RoleUser Role = "user"
	// RoleAssistant represents a message from the assistant
	RoleAssistant Role = "assistant"
)

// Turn is a single message in a session's history
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SystemTurn builds a system message. System messages are sent to the model
// but never stored in a session's history.
func SystemTurn(content string) Turn {
	return Turn{Role: RoleSystem, Content: content}
}

// UserTurn builds a user turn
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AssistantTurn builds an assistant turn
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}
