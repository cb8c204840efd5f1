package ai

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/matrix-org/policyrelay/test"
	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
)

func TestOpenAIOmniModeration(t *testing.T) {
	t.Parallel()

	apiKey := "not_a_real_key"
	mockApi := test.MakeOpenAIModerationServer(t, apiKey)
	defer mockApi.Close()

	_, err := NewOpenAIOmniModeration("")
	assert.Error(t, err)

	moderation, err := NewOpenAIOmniModeration(apiKey,
		option.WithHTTPClient(mockApi.Client()),
		option.WithBaseURL(mockApi.URL),
		option.WithMaxRetries(0),
	)
	assert.NoError(t, err)
	assert.NotNil(t, moderation)

	res, err := moderation.Moderate(context.Background(), test.KeywordText(test.KeywordViolent))
	assert.NoError(t, err)
	assert.True(t, res.Flagged)
	assert.Equal(t, []string{ModerationHate, ModerationViolence}, res.Categories)

	res, err = moderation.Moderate(context.Background(), test.KeywordText(test.KeywordIllicit))
	assert.NoError(t, err)
	assert.True(t, res.Flagged)
	assert.Equal(t, []string{ModerationIllicit, ModerationIllicitViolent}, res.Categories)

	res, err = moderation.Moderate(context.Background(), test.KeywordText(test.KeywordNeutral))
	assert.NoError(t, err)
	assert.False(t, res.Flagged)
	assert.Empty(t, res.Categories)

	res, err = moderation.Moderate(context.Background(), test.KeywordText(test.KeywordIntentionalFail))
	assert.Nil(t, res)
	var te *TransportError
	assert.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusInternalServerError, te.StatusCode)
}
