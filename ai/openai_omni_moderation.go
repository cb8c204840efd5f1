package ai

import (
	"context"
	"errors"

	"github.com/matrix-org/policyrelay/metrics"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const OpenAIModerationProviderName = "openai-moderation"

// Moderation category names, as returned by the OpenAI moderation endpoint.
const (
	ModerationHarassment            = "harassment"
	ModerationHarassmentThreatening = "harassment/threatening"
	ModerationHate                  = "hate"
	ModerationHateThreatening       = "hate/threatening"
	ModerationIllicit               = "illicit"
	ModerationIllicitViolent        = "illicit/violent"
	ModerationSelfHarm              = "self-harm"
	ModerationSelfHarmInstructions  = "self-harm/instructions"
	ModerationSelfHarmIntent        = "self-harm/intent"
	ModerationSexual                = "sexual"
	ModerationSexualMinors          = "sexual/minors"
	ModerationViolence              = "violence"
	ModerationViolenceGraphic       = "violence/graphic"
)

type ModerationResult struct {
	Flagged    bool
	Categories []string // flagged category names only
}

type OpenAIOmniModeration struct {
	client openai.Client
}

func NewOpenAIOmniModeration(apiKey string, additionalClientOptions ...option.RequestOption) (*OpenAIOmniModeration, error) {
	if len(apiKey) == 0 {
		return nil, errors.New("api key not set")
	}
	options := append([]option.RequestOption{option.WithAPIKey(apiKey)}, additionalClientOptions...)
	client := openai.NewClient(options...)
	return &OpenAIOmniModeration{
		client: client,
	}, nil
}

// Moderate - Checks a single piece of text. Categories from every result are merged, in a stable order.
func (m *OpenAIOmniModeration) Moderate(ctx context.Context, text string) (*ModerationResult, error) {
	model := string(openai.ModerationModelOmniModerationLatest)
	t := metrics.StartModelCallTimer(OpenAIModerationProviderName, model)
	defer t.ObserveDuration()

	res, err := m.client.Moderations.New(ctx, openai.ModerationNewParams{
		Model: openai.ModerationModelOmniModerationLatest,
		Input: openai.ModerationNewParamsInputUnion{
			OfString: openai.String(text),
		},
	})
	metrics.RecordModelCall(OpenAIModerationProviderName, model, err == nil)
	if err != nil {
		te := &TransportError{Provider: OpenAIModerationProviderName, Model: model, Err: err}
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			te.StatusCode = apiErr.StatusCode
		}
		return nil, te
	}

	ret := &ModerationResult{Categories: make([]string, 0)}
	seen := make(map[string]bool)
	for _, r := range res.Results {
		if !r.Flagged {
			continue
		}
		ret.Flagged = true
		for _, name := range flaggedCategories(r.Categories) {
			if !seen[name] {
				seen[name] = true
				ret.Categories = append(ret.Categories, name)
			}
		}
	}
	return ret, nil
}

func flaggedCategories(c openai.ModerationCategories) []string {
	all := []struct {
		name    string
		flagged bool
	}{
		{ModerationHarassment, c.Harassment},
		{ModerationHarassmentThreatening, c.HarassmentThreatening},
		{ModerationHate, c.Hate},
		{ModerationHateThreatening, c.HateThreatening},
		{ModerationIllicit, c.Illicit},
		{ModerationIllicitViolent, c.IllicitViolent},
		{ModerationSelfHarm, c.SelfHarm},
		{ModerationSelfHarmInstructions, c.SelfHarmInstructions},
		{ModerationSelfHarmIntent, c.SelfHarmIntent},
		{ModerationSexual, c.Sexual},
		{ModerationSexualMinors, c.SexualMinors},
		{ModerationViolence, c.Violence},
		{ModerationViolenceGraphic, c.ViolenceGraphic},
	}
	ret := make([]string, 0)
	for _, a := range all {
		if a.flagged {
			ret = append(ret, a.name)
		}
	}
	return ret
}
