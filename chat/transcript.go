package chat

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidRole = errors.New("invalid message role")

// Clone - Returns a copy of the transcript which can be appended to without affecting the caller's slice.
func Clone(transcript []Message) []Message {
	c := make([]Message, len(transcript), len(transcript)+2) // room for the responder reply without reallocating
	copy(c, transcript)
	return c
}

// Last - Returns the newest message in the transcript, if any.
func Last(transcript []Message) (Message, bool) {
	if len(transcript) == 0 {
		return Message{}, false
	}
	return transcript[len(transcript)-1], true
}

// Conversational - Returns only the user and assistant messages, in order.
func Conversational(transcript []Message) []Message {
	res := make([]Message, 0, len(transcript))
	for _, m := range transcript {
		if m.Role.IsConversational() {
			res = append(res, m)
		}
	}
	return res
}

// Render - Renders the conversational messages as "Role: content" blocks separated by blank lines.
func Render(transcript []Message) string {
	blocks := make([]string, 0, len(transcript))
	for _, m := range Conversational(transcript) {
		blocks = append(blocks, m.String())
	}
	return strings.Join(blocks, "\n\n")
}

// Validate - Ensures every message carries a known role.
func Validate(transcript []Message) error {
	for i, m := range transcript {
		if !m.Role.IsValid() {
			return errors.Join(ErrInvalidRole, fmt.Errorf("message %d has role '%s'", i, m.Role))
		}
	}
	return nil
}
