package ai

import (
	"context"
	"errors"
	"net/http"

	"github.com/matrix-org/policyrelay/chat"
	"github.com/matrix-org/policyrelay/metrics"
	"github.com/sashabaranov/go-openai"
)

const OpenAIProviderName = "openai"

type OpenAIChatConfig struct {
	ApiUrl string // Any OpenAI-compatible base URL, including Cloudflare's /ai/v1 endpoint
	ApiKey string

	// Optional. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// OpenAIChat - Invokes models through an OpenAI-compatible Chat Completions API.
type OpenAIChat struct {
	// Implements Invoker

	client *openai.Client
}

func NewOpenAIChat(cnf *OpenAIChatConfig) (*OpenAIChat, error) {
	if len(cnf.ApiKey) == 0 {
		return nil, errors.New("api key not set")
	}
	clientConfig := openai.DefaultConfig(cnf.ApiKey)
	if cnf.ApiUrl != "" {
		clientConfig.BaseURL = cnf.ApiUrl
	}
	if cnf.HTTPClient != nil {
		clientConfig.HTTPClient = cnf.HTTPClient
	}
	return &OpenAIChat{
		client: openai.NewClientWithConfig(clientConfig),
	}, nil
}

func (o *OpenAIChat) Name() string {
	return OpenAIProviderName
}

func (o *OpenAIChat) Invoke(ctx context.Context, req *Request) (string, error) {
	t := metrics.StartModelCallTimer(OpenAIProviderName, req.Model)
	defer t.ObserveDuration()

	res, err := o.invoke(ctx, req)
	metrics.RecordModelCall(OpenAIProviderName, req.Model, err == nil)
	return res, err
}

func (o *OpenAIChat) invoke(ctx context.Context, req *Request) (string, error) {
	var messages []openai.ChatCompletionMessage
	if req.Prompt != "" {
		messages = []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: req.Prompt}}
	} else {
		messages = make([]openai.ChatCompletionMessage, 0, len(req.Messages))
		for _, m := range req.Messages {
			role := openai.ChatMessageRoleUser
			switch m.Role {
			case chat.RoleSystem:
				role = openai.ChatMessageRoleSystem
			case chat.RoleAssistant:
				role = openai.ChatMessageRoleAssistant
			}
			messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
		}
	}

	res, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
	})
	if err != nil {
		return "", &TransportError{Provider: OpenAIProviderName, Model: req.Model, StatusCode: openAIStatusCode(err), Err: err}
	}
	if len(res.Choices) == 0 {
		return "", &TransportError{Provider: OpenAIProviderName, Model: req.Model, Err: errors.New("response has no choices")}
	}
	return res.Choices[0].Message.Content, nil
}

func openAIStatusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
