package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/matrix-org/policyrelay/metrics"
	"github.com/tidwall/gjson"
)

const CloudflareProviderName = "cloudflare"

type CloudflareConfig struct {
	ApiUrl    string // eg: https://api.cloudflare.com/client/v4
	AccountId string
	ApiToken  string

	// Number of retries after the first attempt. Only network errors, 429s, and 5xx responses are retried.
	MaxRetries int
	// Initial backoff between attempts. Defaults to 500ms when zero.
	RetryInterval time.Duration

	// Optional. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// CloudflareWorkersAI - Invokes models hosted on Cloudflare Workers AI using the native `ai/run` endpoint.
type CloudflareWorkersAI struct {
	// Implements Invoker

	baseUrl       string
	apiToken      string
	maxRetries    int
	retryInterval time.Duration
	client        *http.Client
}

type cloudflareMessage struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

type cloudflareRunRequest struct {
	Prompt   string              `json:"prompt,omitempty"`
	Messages []cloudflareMessage `json:"messages,omitempty"`
}

func NewCloudflareWorkersAI(cnf *CloudflareConfig) (*CloudflareWorkersAI, error) {
	if cnf.AccountId == "" {
		return nil, errors.New("cloudflare account id not set")
	}
	if cnf.ApiToken == "" {
		return nil, errors.New("cloudflare api token not set")
	}
	if cnf.ApiUrl == "" {
		return nil, errors.New("cloudflare api url not set")
	}
	client := cnf.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	retryInterval := cnf.RetryInterval
	if retryInterval <= 0 {
		retryInterval = 500 * time.Millisecond
	}
	return &CloudflareWorkersAI{
		baseUrl:       fmt.Sprintf("%s/accounts/%s/ai/run/", strings.TrimSuffix(cnf.ApiUrl, "/"), cnf.AccountId),
		apiToken:      cnf.ApiToken,
		maxRetries:    max(cnf.MaxRetries, 0),
		retryInterval: retryInterval,
		client:        client,
	}, nil
}

func (c *CloudflareWorkersAI) Name() string {
	return CloudflareProviderName
}

func (c *CloudflareWorkersAI) Invoke(ctx context.Context, req *Request) (string, error) {
	t := metrics.StartModelCallTimer(CloudflareProviderName, req.Model)
	defer t.ObserveDuration()

	res, err := c.invoke(ctx, req)
	metrics.RecordModelCall(CloudflareProviderName, req.Model, err == nil)
	return res, err
}

func (c *CloudflareWorkersAI) invoke(ctx context.Context, req *Request) (string, error) {
	body := cloudflareRunRequest{}
	if req.Prompt != "" {
		body.Prompt = req.Prompt
	} else {
		body.Messages = make([]cloudflareMessage, len(req.Messages))
		for i, m := range req.Messages {
			body.Messages[i] = cloudflareMessage{Role: string(m.Role), Content: m.Content}
		}
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", c.transportError(req.Model, 0, err) // "should never happen"
	}

	endpoint := c.baseUrl + req.Model
	response := ""
	attempt := 0
	op := func() error {
		attempt++
		r, err := c.post(ctx, req.Model, endpoint, b)
		if err != nil {
			var te *TransportError
			if errors.As(err, &te) && te.StatusCode != 0 && te.StatusCode != http.StatusTooManyRequests && te.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			log.Printf("[%s | %s] Attempt %d failed: %s", CloudflareProviderName, req.Model, attempt, err)
			return err
		}
		response = r
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval
	policy.MaxElapsedTime = 0 // bounded by retry count and ctx instead
	err = backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxRetries)), ctx))
	if err != nil {
		var te *TransportError
		if !errors.As(err, &te) {
			err = c.transportError(req.Model, 0, err) // context errors come back unwrapped
		}
		return "", err
	}
	return response, nil
}

func (c *CloudflareWorkersAI) post(ctx context.Context, model string, endpoint string, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", c.transportError(model, 0, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiToken)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "policyrelay")

	res, err := c.client.Do(httpReq)
	if err != nil {
		return "", c.transportError(model, 0, err)
	}
	defer res.Body.Close()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return "", c.transportError(model, res.StatusCode, err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", c.transportError(model, res.StatusCode, fmt.Errorf("unexpected status: %s", cloudflareErrorMessage(b)))
	}
	if !gjson.ValidBytes(b) {
		return "", c.transportError(model, res.StatusCode, errors.New("malformed JSON response"))
	}
	if success := gjson.GetBytes(b, "success"); success.Exists() && !success.Bool() {
		return "", c.transportError(model, res.StatusCode, fmt.Errorf("request unsuccessful: %s", cloudflareErrorMessage(b)))
	}
	response := gjson.GetBytes(b, "result.response")
	if !response.Exists() {
		return "", c.transportError(model, res.StatusCode, errors.New("response missing result.response"))
	}
	return response.String(), nil
}

func (c *CloudflareWorkersAI) transportError(model string, statusCode int, err error) *TransportError {
	return &TransportError{
		Provider:   CloudflareProviderName,
		Model:      model,
		StatusCode: statusCode,
		Err:        err,
	}
}

func cloudflareErrorMessage(body []byte) string {
	if msg := gjson.GetBytes(body, "errors.0.message"); msg.Exists() {
		return msg.String()
	}
	return "<<no error message>>"
}
