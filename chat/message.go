package chat

import (
	"fmt"
	"strings"
)

type Role string

const RoleSystem Role = "system"
const RoleUser Role = "user"
const RoleAssistant Role = "assistant"

func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// IsConversational - True for the roles which take part in the rendered conversation (user and assistant). System
// messages steer the responder but are never shown to the classifier.
func (r Role) IsConversational() bool {
	return r == RoleUser || r == RoleAssistant
}

// Title - The role name with a leading capital, as used in classifier prompts ("User", "Assistant").
func (r Role) Title() string {
	if r == "" {
		return ""
	}
	return strings.ToUpper(string(r[:1])) + string(r[1:])
}

// Message - A single immutable transcript entry.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func (m Message) String() string {
	return fmt.Sprintf("%s: %s", m.Role.Title(), m.Content)
}
