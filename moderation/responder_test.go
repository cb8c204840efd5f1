package moderation

import (
	"context"
	"errors"
	"testing"

	"github.com/matrix-org/policyrelay/ai"
	"github.com/matrix-org/policyrelay/chat"
	"github.com/stretchr/testify/assert"
)

func TestModelResponder(t *testing.T) {
	t.Parallel()

	_, err := NewModelResponder(nil, "model", "")
	assert.Error(t, err)
	_, err = NewModelResponder(&scriptedInvoker{}, "", "")
	assert.Error(t, err)

	invoker := &scriptedInvoker{reply: "  Here's a recipe...\n"}
	responder, err := NewModelResponder(invoker, "@cf/meta/llama-2-7b-chat-int8", "Be helpful.")
	assert.NoError(t, err)

	transcript := []chat.Message{chat.UserMessage("How do I bake bread?")}
	msg, err := responder.Respond(context.Background(), transcript)
	assert.NoError(t, err)
	assert.Equal(t, chat.AssistantMessage("Here's a recipe..."), msg)
	assert.Len(t, transcript, 1) // untouched

	// Existing system messages are not overridden
	_, err = responder.Respond(context.Background(), []chat.Message{chat.SystemMessage("Be terse."), chat.UserMessage("Hi")})
	assert.NoError(t, err)

	requests := invoker.Requests()
	assert.Len(t, requests, 2)
	assert.Equal(t, "@cf/meta/llama-2-7b-chat-int8", requests[0].Model)
	assert.Empty(t, requests[0].Prompt)
	assert.Equal(t, []chat.Message{chat.SystemMessage("Be helpful."), chat.UserMessage("How do I bake bread?")}, requests[0].Messages)
	assert.Equal(t, []chat.Message{chat.SystemMessage("Be terse."), chat.UserMessage("Hi")}, requests[1].Messages)
}

func TestModelResponderEmptyOutput(t *testing.T) {
	t.Parallel()

	responder, err := NewModelResponder(&scriptedInvoker{reply: ""}, "model", "")
	assert.NoError(t, err)

	msg, err := responder.Respond(context.Background(), []chat.Message{chat.UserMessage("Hi")})
	assert.NoError(t, err)
	assert.Equal(t, chat.RoleAssistant, msg.Role)
	assert.Empty(t, msg.Content)
}

func TestModelResponderError(t *testing.T) {
	t.Parallel()

	cause := &ai.TransportError{Provider: "scripted", Model: "model", Err: errors.New("connection reset")}
	responder, err := NewModelResponder(&scriptedInvoker{replyErr: cause}, "model", "")
	assert.NoError(t, err)

	_, err = responder.Respond(context.Background(), []chat.Message{chat.UserMessage("Hi")})
	assert.ErrorIs(t, err, cause)
}
