package config

import (
	"github.com/kelseyhightower/envconfig"
)

type InstanceConfig struct {
	HttpBind    string `envconfig:"http_bind" default:"0.0.0.0:8080"`
	MetricsBind string `envconfig:"http_metrics_bind" default:"0.0.0.0:8081"`
	PprofBind   string `envconfig:"http_pprof_bind" default:""`

	// When empty, the /api/v1 routes are disabled.
	ApiKey string `envconfig:"api_key" default:""`

	// When empty, audit records are only sent to the webhook (if any) and not persisted.
	Database              string `envconfig:"database" default:""`
	DatabaseMigrationsDir string `envconfig:"database_migrations_dir" default:"./migrations"`
	DatabaseMaxOpenConns  int    `envconfig:"database_max_open_conns" default:"10"`
	DatabaseMaxIdleConns  int    `envconfig:"database_max_idle_conns" default:"5"`

	ProcessingPoolSize int `envconfig:"processing_pool_size" default:"100"`
	RunTimeoutSeconds  int `envconfig:"run_timeout_seconds" default:"120"`

	AuditPoolSize         int      `envconfig:"audit_pool_size" default:"5"`
	AuditWebhookUrl       string   `envconfig:"audit_webhook_url" default:""`
	AllowedWebhookDomains []string `envconfig:"allowed_webhook_domains" default:""`
	AuditRetentionDays    int      `envconfig:"audit_retention_days" default:"30"`

	SessionTtlMinutes  int `envconfig:"session_ttl_minutes" default:"60"`
	SessionMaxMessages int `envconfig:"session_max_messages" default:"200"`

	ModelProvider ModelProvider `envconfig:"model_provider" default:"cloudflare"`

	CloudflareAccountId  string `envconfig:"cloudflare_account_id" default:""`
	CloudflareApiToken   string `envconfig:"cloudflare_api_token" default:""`
	CloudflareApiUrl     string `envconfig:"cloudflare_api_url" default:"https://api.cloudflare.com/client/v4"`
	CloudflareMaxRetries int    `envconfig:"cloudflare_max_retries" default:"3"`

	// Used by the "openai" model provider and the "omni" classifier backend.
	OpenAIApiKey string `envconfig:"openai_api_key" default:""`
	OpenAIApiUrl string `envconfig:"openai_api_url" default:"https://api.openai.com/v1/"`

	ResponderModel        string `envconfig:"responder_model" default:"@cf/meta/llama-2-7b-chat-int8"`
	ResponderSystemPrompt string `envconfig:"responder_system_prompt" default:""`

	ClassifierBackend ClassifierBackend `envconfig:"classifier_backend" default:"guard"`
	ClassifierModel   string            `envconfig:"classifier_model" default:"@hf/thebloke/llamaguard-7b-awq"`

	// When empty, the built-in category list is used.
	PolicyCatalogPath string `envconfig:"policy_catalog_path" default:""`
}

func NewInstanceConfig() (*InstanceConfig, error) {
	cnf := &InstanceConfig{}
	err := envconfig.Process("pr", cnf)
	return cnf, err
}
