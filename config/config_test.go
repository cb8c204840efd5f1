package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Note: these tests modify the environment and therefore can't run in parallel.

func TestNewInstanceConfigDefaults(t *testing.T) {
	cnf, err := NewInstanceConfig()
	assert.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cnf.HttpBind)
	assert.Equal(t, "", cnf.ApiKey)
	assert.Equal(t, "", cnf.Database)
	assert.Equal(t, 100, cnf.ProcessingPoolSize)
	assert.Equal(t, 120, cnf.RunTimeoutSeconds)
	assert.Equal(t, ModelProviderCloudflare, cnf.ModelProvider)
	assert.Equal(t, ClassifierBackendGuard, cnf.ClassifierBackend)
	assert.Equal(t, "@cf/meta/llama-2-7b-chat-int8", cnf.ResponderModel)
	assert.Equal(t, "@hf/thebloke/llamaguard-7b-awq", cnf.ClassifierModel)
	assert.Equal(t, "https://api.cloudflare.com/client/v4", cnf.CloudflareApiUrl)
	assert.Equal(t, 3, cnf.CloudflareMaxRetries)
	assert.Empty(t, cnf.AllowedWebhookDomains)
}

func TestNewInstanceConfigFromEnv(t *testing.T) {
	t.Setenv("PR_MODEL_PROVIDER", "openai")
	t.Setenv("PR_CLASSIFIER_BACKEND", "omni")
	t.Setenv("PR_SESSION_MAX_MESSAGES", "12")
	t.Setenv("PR_ALLOWED_WEBHOOK_DOMAINS", "example.org,hooks.example.com")

	cnf, err := NewInstanceConfig()
	assert.NoError(t, err)
	assert.Equal(t, ModelProviderOpenAI, cnf.ModelProvider)
	assert.Equal(t, ClassifierBackendOmni, cnf.ClassifierBackend)
	assert.Equal(t, 12, cnf.SessionMaxMessages)
	assert.Equal(t, []string{"example.org", "hooks.example.com"}, cnf.AllowedWebhookDomains)
}

func TestNewInstanceConfigRejectsUnknownEnums(t *testing.T) {
	t.Setenv("PR_MODEL_PROVIDER", "carrier-pigeon")
	_, err := NewInstanceConfig()
	assert.Error(t, err)
}

func TestDecoders(t *testing.T) {
	p := ModelProvider("")
	assert.NoError(t, p.Decode(""))
	assert.Equal(t, ModelProviderCloudflare, p)
	assert.NoError(t, p.Decode("openai"))
	assert.Equal(t, ModelProviderOpenAI, p)
	assert.Error(t, p.Decode("OpenAI"))

	b := ClassifierBackend("")
	assert.NoError(t, b.Decode("omni"))
	assert.Equal(t, ClassifierBackendOmni, b)
	assert.NoError(t, b.Decode(""))
	assert.Equal(t, ClassifierBackendGuard, b)
	assert.Error(t, b.Decode("vibes"))
}
