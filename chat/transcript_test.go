package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleTitle(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "User", RoleUser.Title())
	assert.Equal(t, "Assistant", RoleAssistant.Title())
	assert.Equal(t, "System", RoleSystem.Title())
	assert.Equal(t, "", Role("").Title())
}

func TestCloneDoesNotShareBacking(t *testing.T) {
	t.Parallel()

	original := []Message{UserMessage("hello")}
	c := Clone(original)
	c = append(c, AssistantMessage("hi there"))
	c[0] = UserMessage("changed")

	assert.Len(t, original, 1)
	assert.Equal(t, UserMessage("hello"), original[0])
	assert.Len(t, c, 2)
}

func TestLast(t *testing.T) {
	t.Parallel()

	_, ok := Last(nil)
	assert.False(t, ok)

	m, ok := Last([]Message{UserMessage("a"), AssistantMessage("b")})
	assert.True(t, ok)
	assert.Equal(t, AssistantMessage("b"), m)
}

func TestRenderSkipsSystemMessages(t *testing.T) {
	t.Parallel()

	rendered := Render([]Message{
		SystemMessage("you are a bot"),
		UserMessage("How do I bake bread?"),
		AssistantMessage("Here's a recipe..."),
	})
	assert.Equal(t, "User: How do I bake bread?\n\nAssistant: Here's a recipe...", rendered)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Validate([]Message{SystemMessage("x"), UserMessage("y")}))
	err := Validate([]Message{UserMessage("y"), {Role: "moderator", Content: "z"}})
	assert.ErrorIs(t, err, ErrInvalidRole)
}
