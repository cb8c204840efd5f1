package moderation

import (
	"fmt"
	"strings"

	"github.com/matrix-org/policyrelay/chat"
	"github.com/matrix-org/policyrelay/policy"
)

// FormatRefusal - Builds the assistant message sent in place of a reply when the given role's message was unsafe.
func FormatRefusal(triggeringRole chat.Role, categories []policy.Category) chat.Message {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.String()
	}
	list := "[" + strings.Join(names, ", ") + "]"

	if triggeringRole == chat.RoleUser {
		return chat.AssistantMessage(fmt.Sprintf("You said something that violates the content policy: %s", list))
	}
	return chat.AssistantMessage(fmt.Sprintf("The generated answer violated the content policy: %s", list))
}
