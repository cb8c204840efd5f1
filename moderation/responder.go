package moderation

import (
	"context"
	"errors"
	"strings"

	"github.com/matrix-org/policyrelay/ai"
	"github.com/matrix-org/policyrelay/chat"
)

// Responder - Produces exactly one assistant reply to a transcript. Responders don't judge safety.
type Responder interface {
	Respond(ctx context.Context, transcript []chat.Message) (chat.Message, error)
}

type ModelResponder struct {
	// Implements Responder

	invoker      ai.Invoker
	model        string
	systemPrompt string
}

// NewModelResponder - Creates a Responder backed by a chat model. When systemPrompt is non-empty it is sent ahead of
// any transcript which doesn't already carry a system message.
func NewModelResponder(invoker ai.Invoker, model string, systemPrompt string) (*ModelResponder, error) {
	if invoker == nil {
		return nil, errors.New("invoker is required")
	}
	if model == "" {
		return nil, errors.New("responder model not set")
	}
	return &ModelResponder{
		invoker:      invoker,
		model:        model,
		systemPrompt: strings.TrimSpace(systemPrompt),
	}, nil
}

func (r *ModelResponder) Respond(ctx context.Context, transcript []chat.Message) (chat.Message, error) {
	messages := transcript
	if r.systemPrompt != "" && !hasSystemMessage(transcript) {
		messages = make([]chat.Message, 0, len(transcript)+1)
		messages = append(messages, chat.SystemMessage(r.systemPrompt))
		messages = append(messages, transcript...)
	}
	text, err := r.invoker.Invoke(ctx, &ai.Request{
		Model:    r.model,
		Messages: messages,
	})
	if err != nil {
		return chat.Message{}, errors.Join(errors.New("error generating reply"), err)
	}
	return chat.AssistantMessage(strings.TrimSpace(text)), nil
}

func hasSystemMessage(transcript []chat.Message) bool {
	for _, m := range transcript {
		if m.Role == chat.RoleSystem {
			return true
		}
	}
	return false
}
