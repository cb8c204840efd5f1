package test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

// ModelReply - What a mock model server should send back. A zero StatusCode means 200 OK.
type ModelReply struct {
	StatusCode int
	Text       string
}

// CloudflareRunRequest - The body of a Workers AI `ai/run` request, as received by the mock server.
type CloudflareRunRequest struct {
	Model    string
	Prompt   string `json:"prompt"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// MakeCloudflareServer - Creates a mock Cloudflare Workers AI server. Use the server's URL as the API URL. Non-2xx
// replies are sent using Cloudflare's error envelope with Text as the message.
func MakeCloudflareServer(t *testing.T, accountId string, apiToken string, respond func(req *CloudflareRunRequest) ModelReply) *httptest.Server {
	prefix := "/accounts/" + accountId + "/ai/run/"
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+apiToken, r.Header.Get("Authorization"))
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasPrefix(r.URL.Path, prefix), r.URL.Path)

		b, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatal(err) // "should never happen"
		}
		req := &CloudflareRunRequest{}
		err = json.Unmarshal(b, req)
		assert.NoError(t, err)
		req.Model = strings.TrimPrefix(r.URL.Path, prefix)

		reply := respond(req)
		if reply.StatusCode == 0 {
			reply.StatusCode = http.StatusOK
		}

		var res map[string]any
		if reply.StatusCode >= 200 && reply.StatusCode < 300 {
			res = map[string]any{
				"result":   map[string]any{"response": reply.Text},
				"success":  true,
				"errors":   []any{},
				"messages": []any{},
			}
		} else {
			res = map[string]any{
				"result":   nil,
				"success":  false,
				"errors":   []any{map[string]any{"code": 1000, "message": reply.Text}},
				"messages": []any{},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(reply.StatusCode)
		b, err = json.Marshal(res)
		assert.NoError(t, err)
		_, _ = w.Write(b)
	}))
}

// MakeOpenAIChatServer - Creates a mock OpenAI-compatible Chat Completions server.
func MakeOpenAIChatServer(t *testing.T, apiKey string, respond func(req *openai.ChatCompletionRequest) ModelReply) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+apiKey, r.Header.Get("Authorization"))
		assert.Equal(t, "/chat/completions", r.URL.Path) // we only handle chat completions here

		req := &openai.ChatCompletionRequest{}
		err := json.NewDecoder(r.Body).Decode(req)
		assert.NoError(t, err)

		reply := respond(req)
		if reply.StatusCode == 0 {
			reply.StatusCode = http.StatusOK
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(reply.StatusCode)
		if reply.StatusCode != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"code":"X-ERROR","message":"` + reply.Text + `","param":"x","type":"x"}}`))
			return
		}
		b, err := json.Marshal(openai.ChatCompletionResponse{
			ID:     "1",
			Object: "chat.completion",
			Model:  req.Model,
			Choices: []openai.ChatCompletionChoice{{
				Index: 0,
				Message: openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: reply.Text,
				},
				FinishReason: openai.FinishReasonStop,
			}},
		})
		assert.NoError(t, err)
		_, _ = w.Write(b)
	}))
}
