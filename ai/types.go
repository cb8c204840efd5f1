package ai

import (
	"context"
	"fmt"

	"github.com/matrix-org/policyrelay/chat"
)

// Request - A one-shot model invocation. Exactly one of Prompt or Messages is expected to be set; when both are, the
// Prompt wins.
type Request struct {
	Model    string
	Prompt   string
	Messages []chat.Message
}

// Invoker - Sends a request to a remote inference endpoint and returns the raw text reply. Any failure (network,
// non-2xx, malformed body) is returned as a *TransportError.
type Invoker interface {
	Name() string
	Invoke(ctx context.Context, req *Request) (string, error)
}

type TransportError struct {
	Provider   string
	Model      string
	StatusCode int // zero when no HTTP response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (%s): HTTP %d: %v", e.Provider, e.Model, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Provider, e.Model, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
