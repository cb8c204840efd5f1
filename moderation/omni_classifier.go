package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set"
	"github.com/matrix-org/policyrelay/ai"
	"github.com/matrix-org/policyrelay/chat"
	"github.com/matrix-org/policyrelay/policy"
)

// Moderator - Checks a single piece of text against a hosted moderation model.
type Moderator interface {
	Moderate(ctx context.Context, text string) (*ai.ModerationResult, error)
}

// omniCategoryCodes maps moderation endpoint categories onto the default catalog's codes.
var omniCategoryCodes = map[string]string{
	ai.ModerationHarassment:            "01",
	ai.ModerationHarassmentThreatening: "01",
	ai.ModerationHate:                  "01",
	ai.ModerationHateThreatening:       "01",
	ai.ModerationViolence:              "01",
	ai.ModerationViolenceGraphic:       "01",
	ai.ModerationSexual:                "02",
	ai.ModerationSexualMinors:          "02",
	ai.ModerationIllicit:               "03",
	ai.ModerationIllicitViolent:        "04",
	ai.ModerationSelfHarm:              "06",
	ai.ModerationSelfHarmInstructions:  "06",
	ai.ModerationSelfHarmIntent:        "06",
}

// OmniClassifier - Classifies the subject's latest message with a hosted moderation model. Only that message is
// considered; the rest of the conversation is not sent.
type OmniClassifier struct {
	// Implements Classifier

	moderator Moderator
	catalog   *policy.Catalog
}

func NewOmniClassifier(moderator Moderator, catalog *policy.Catalog) (*OmniClassifier, error) {
	if moderator == nil {
		return nil, errors.New("moderator is required")
	}
	if catalog == nil {
		return nil, errors.New("catalog is required")
	}
	return &OmniClassifier{
		moderator: moderator,
		catalog:   catalog,
	}, nil
}

func (c *OmniClassifier) Classify(ctx context.Context, transcript []chat.Message, subject chat.Role) (*Verdict, error) {
	if !subject.IsConversational() {
		return nil, ErrInvalidSubject
	}
	var message *chat.Message
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role == subject {
			message = &transcript[i]
			break
		}
	}
	if message == nil {
		return nil, fmt.Errorf("transcript has no %s message to classify", subject)
	}

	res, err := c.moderator.Moderate(ctx, message.Content)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("error classifying %s message", subject), err)
	}

	v := &Verdict{
		Unsafe:     res.Flagged,
		Raw:        rawSafe,
		Categories: make([]policy.Category, 0),
		Subject:    subject,
	}
	if !res.Flagged {
		return v, nil
	}
	v.Raw = rawUnsafe + "\n" + strings.Join(res.Categories, ",")
	seen := mapset.NewThreadUnsafeSet()
	for _, name := range res.Categories {
		code, ok := omniCategoryCodes[name]
		if !ok {
			continue
		}
		cat, ok := c.catalog.Resolve(code)
		if !ok {
			continue
		}
		if seen.Add(cat.Code) {
			v.Categories = append(v.Categories, cat)
		}
	}
	return v, nil
}
