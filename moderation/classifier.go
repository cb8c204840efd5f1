package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/matrix-org/policyrelay/ai"
	"github.com/matrix-org/policyrelay/chat"
	"github.com/matrix-org/policyrelay/policy"
)

var ErrInvalidSubject = errors.New("subject role must be user or assistant")

// Classifier - Decides whether the latest message of the given role in a transcript is safe.
type Classifier interface {
	Classify(ctx context.Context, transcript []chat.Message, subject chat.Role) (*Verdict, error)
}

// GuardClassifier - Classifies using a guard model prompted with the policy catalog and the rendered conversation.
type GuardClassifier struct {
	// Implements Classifier

	invoker ai.Invoker
	model   string
	catalog *policy.Catalog
}

func NewGuardClassifier(invoker ai.Invoker, model string, catalog *policy.Catalog) (*GuardClassifier, error) {
	if invoker == nil {
		return nil, errors.New("invoker is required")
	}
	if model == "" {
		return nil, errors.New("classifier model not set")
	}
	if catalog == nil {
		return nil, errors.New("catalog is required")
	}
	return &GuardClassifier{
		invoker: invoker,
		model:   model,
		catalog: catalog,
	}, nil
}

func (c *GuardClassifier) Classify(ctx context.Context, transcript []chat.Message, subject chat.Role) (*Verdict, error) {
	if !subject.IsConversational() {
		return nil, ErrInvalidSubject
	}
	raw, err := c.invoker.Invoke(ctx, &ai.Request{
		Model:  c.model,
		Prompt: guardPrompt(c.catalog, transcript, subject),
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("error classifying %s message", subject), err)
	}
	return ParseVerdict(raw, c.catalog, subject), nil
}

func guardPrompt(catalog *policy.Catalog, transcript []chat.Message, subject chat.Role) string {
	role := subject.Title()
	b := strings.Builder{}
	b.WriteString(fmt.Sprintf("Task: Check if there is unsafe content in '%s' messages in conversations according to our safety policy with the below categories.\n\n", role))
	b.WriteString("<BEGIN UNSAFE CONTENT CATEGORIES>\n")
	b.WriteString(catalog.Text())
	b.WriteString("\n<END UNSAFE CONTENT CATEGORIES>\n\n")
	b.WriteString("<BEGIN CONVERSATION>\n\n")
	b.WriteString(chat.Render(transcript))
	b.WriteString("\n\n<END CONVERSATION>\n\n")
	b.WriteString(fmt.Sprintf("Provide your safety assessment for '%s' in the above conversation:\n", role))
	b.WriteString("- First line must read 'safe' or 'unsafe'.\n")
	b.WriteString("- If unsafe, a second line must include a comma-separated list of all violated categories.")
	return b.String()
}
