package test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go/v3"
	"github.com/stretchr/testify/assert"
)

// Dev note: Usually we'd write a dedicated test for utilities like this, however the entire functionality is covered by
// other tests using it, so it should be fine.

// KeywordViolent - Used by tests to always flag a message for violence and hate.
const KeywordViolent = "PR_VIOLENT"

// KeywordIllicit - Used by tests to always flag a message for (violent) illicit activity.
const KeywordIllicit = "PR_ILLICIT"

// KeywordNeutral - Used by tests to always flag a message as neutral.
const KeywordNeutral = "PR_NEUTRAL"

// KeywordIntentionalFail - Used by tests to always cause a 500 Internal Server Error response.
const KeywordIntentionalFail = "PR_INTENTIONAL_FAIL"

// KeywordText - Creates consistent message text using the specified keyword.
func KeywordText(keyword string) string {
	return keyword + " | This is a message."
}

// MakeOpenAIModerationServer - Creates a mock OpenAI Moderation API server for use in tests. Inputs are expected to
// be made with KeywordText.
func MakeOpenAIModerationServer(t *testing.T, apiKey string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+apiKey, r.Header.Get("Authorization"))

		// Dev note: this HTTP handler is sensitive to changes in the OpenAI library. If it makes additional
		// calls ahead of the moderation call or changes what it supplies as a request body, then this test
		// will suddenly start failing.

		assert.Equal(t, "/moderations", r.URL.Path) // we only handle Moderations API stuff here

		b, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatal(err) // "should never happen"
		}
		req := string(b)

		if strings.Contains(req, KeywordViolent) {
			assertInputMatchesKeyword(t, KeywordViolent, req)
			writeModerationResponse(t, w, openai.Moderation{
				Flagged: true,
				Categories: openai.ModerationCategories{
					Violence: true,
					Hate:     true,
				},
			})
		} else if strings.Contains(req, KeywordIllicit) {
			assertInputMatchesKeyword(t, KeywordIllicit, req)
			writeModerationResponse(t, w, openai.Moderation{
				Flagged: true,
				Categories: openai.ModerationCategories{
					Illicit:        true,
					IllicitViolent: true,
				},
			})
		} else if strings.Contains(req, KeywordNeutral) {
			assertInputMatchesKeyword(t, KeywordNeutral, req)
			writeModerationResponse(t, w, openai.Moderation{Flagged: false})
		} else if strings.Contains(req, KeywordIntentionalFail) {
			assertInputMatchesKeyword(t, KeywordIntentionalFail, req)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			// This is a mock OpenAI API error
			_, _ = w.Write([]byte(`{"error":{"code": "X-ERROR","message":"Intentional fail","param":"x","type":"x"}}`))
		} else {
			t.Errorf("Unexpected request: %s", req)
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
}

func assertInputMatchesKeyword(t *testing.T, keyword string, body string) {
	input, err := json.Marshal(KeywordText(keyword))
	assert.NoError(t, err)
	assert.Equal(t, fmt.Sprintf(`{"input":%s,"model":"omni-moderation-latest"}`, string(input)), body)
}

func writeModerationResponse(t *testing.T, w http.ResponseWriter, result openai.Moderation) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	res := openai.ModerationNewResponse{
		ID:      "1",
		Model:   string(openai.ModerationModelOmniModerationLatest),
		Results: []openai.Moderation{result},
	}
	b, err := json.Marshal(res)
	assert.NoError(t, err)
	_, _ = w.Write(b)
}
