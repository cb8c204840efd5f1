package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/matrix-org/policyrelay/metrics"
	"github.com/matrix-org/policyrelay/moderation"
	"github.com/matrix-org/policyrelay/storage"
	"github.com/panjf2000/ants/v2"
	"github.com/ryanuber/go-glob"
)

type Config struct {
	PoolSize int
	// Optional. Refusals are posted here in Hookshot/Slack format.
	WebhookUrl            string
	AllowedWebhookDomains []string
	// Optional. Defaults to http.DefaultClient.
	HTTPClient *http.Client
	// Optional. Upper bound on each webhook request. Defaults to 30 seconds.
	WebhookTimeout time.Duration
}

// Queue - Records refusals in the background. Records are persisted to storage (when configured) and posted to the
// webhook (when configured). Message content is never included.
type Queue struct {
	pool           *ants.Pool
	storage        storage.PersistentStorage
	webhookUrl     string
	webhookTimeout time.Duration
	client         *http.Client
}

// NewQueue - Creates a new audit queue. The storage may be nil to skip persistence.
func NewQueue(cnf *Config, store storage.PersistentStorage) (*Queue, error) {
	webhookUrl := ""
	if cnf.WebhookUrl != "" {
		whUrl, err := url.Parse(cnf.WebhookUrl)
		if err != nil {
			return nil, errors.Join(errors.New("invalid audit webhook URL"), err)
		}
		if !testing.Testing() {
			if whUrl.Scheme != "https" {
				return nil, fmt.Errorf("webhook URL must be HTTPS")
			}
		}
		if !hostAllowed(cnf.AllowedWebhookDomains, whUrl.Host) {
			return nil, fmt.Errorf("webhook URL host not allowed")
		}
		webhookUrl = whUrl.String()
	}

	pool, err := ants.NewPool(cnf.PoolSize, ants.WithOptions(ants.Options{
		// Same options as the queue.Pool setup
		ExpiryDuration:   1 * time.Minute,
		PreAlloc:         false,
		MaxBlockingTasks: 0, // no limit on submissions
		Nonblocking:      false,
		Logger:           log.Default(),
		DisablePurge:     false,
	}))
	if err != nil {
		return nil, err
	}

	client := cnf.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	webhookTimeout := cnf.WebhookTimeout
	if webhookTimeout <= 0 {
		webhookTimeout = 30 * time.Second
	}
	return &Queue{
		pool:           pool,
		storage:        store,
		webhookUrl:     webhookUrl,
		webhookTimeout: webhookTimeout,
		client:         client,
	}, nil
}

// hostAllowed - Matches a host against allow-list entries, which may be globs like `*.example.org`.
func hostAllowed(patterns []string, host string) bool {
	for _, pattern := range patterns {
		if pattern != "" && glob.Glob(pattern, host) {
			return true
		}
	}
	return false
}

// NewRecord - Builds the audit record for a refusal. Returns nil for results which aren't refusals.
func NewRecord(result *moderation.Result, sessionId string) *storage.StoredAuditRecord {
	if result == nil || result.Outcome != moderation.OutcomeRefusal {
		return nil
	}
	codes := make([]string, len(result.Categories))
	for i, c := range result.Categories {
		codes[i] = c.Code
	}
	unrecognized := false
	for _, v := range result.Verdicts {
		if v.Subject == result.TriggeringRole && v.Unrecognized {
			unrecognized = true
		}
	}
	return &storage.StoredAuditRecord{
		Id:              storage.NextId(),
		RunId:           result.RunId,
		SessionId:       sessionId,
		TriggeringRole:  string(result.TriggeringRole),
		CategoryCodes:   codes,
		Unrecognized:    unrecognized,
		CreatedAtMillis: time.Now().UnixMilli(),
	}
}

func (q *Queue) Submit(record *storage.StoredAuditRecord) error {
	if record == nil {
		return nil
	}

	// Note: we log the record so if the webhook fails (or isn't configured) then we have an idea of what happened.
	log.Printf("[%s | %s] Audit record: role=%s categories=%v unrecognized=%t", record.RunId, record.SessionId, record.TriggeringRole, record.CategoryCodes, record.Unrecognized)

	workFn := func() {
		ok := true
		if q.storage != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := q.storage.InsertAuditRecord(ctx, record); err != nil {
				log.Printf("[%s | %s] Failed to persist audit record: %s", record.RunId, record.SessionId, err)
				ok = false
			}
		}
		if q.webhookUrl != "" {
			if err := q.postWebhook(record); err != nil {
				log.Printf("[%s | %s] Failed to send audit webhook: %s", record.RunId, record.SessionId, err)
				ok = false
			}
		}
		metrics.RecordAuditRecord(ok)
	}
	return q.pool.Submit(workFn)
}

func (q *Queue) postWebhook(record *storage.StoredAuditRecord) error {
	// Hookshot / Slack format body
	reqBody := make(map[string]any)
	reqBody["html"] = renderHtml(record)
	reqBody["text"] = renderText(record)

	buf := bytes.NewBuffer(nil)
	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false) // the HTML is escaped as it's built, so keep the JSON readable
	if err := encoder.Encode(reqBody); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.webhookTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.webhookUrl, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "policyrelay")

	res, err := q.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	log.Printf("[%s | %s] Audit webhook response: %s", record.RunId, record.SessionId, res.Status)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("unexpected webhook status: %s", res.Status)
	}
	return nil
}

func renderText(record *storage.StoredAuditRecord) string {
	codes := "none"
	if len(record.CategoryCodes) > 0 {
		codes = strings.Join(record.CategoryCodes, ", ")
	}
	return fmt.Sprintf("A %s message was refused by policyrelay (run %s, categories: %s).", record.TriggeringRole, record.RunId, codes)
}

func renderHtml(record *storage.StoredAuditRecord) string {
	codes := "<i>none</i>"
	if len(record.CategoryCodes) > 0 {
		codes = fmt.Sprintf("<code>%s</code>", html.EscapeString(strings.Join(record.CategoryCodes, ", ")))
	}
	htmlAudit := fmt.Sprintf("A <b>%s</b> message was refused by policyrelay:<br/>", html.EscapeString(record.TriggeringRole))
	htmlAudit += fmt.Sprintf("<b>Run ID:</b> <code>%s</code><br/>", html.EscapeString(record.RunId))
	if record.SessionId != "" {
		htmlAudit += fmt.Sprintf("<b>Session ID:</b> <code>%s</code><br/>", html.EscapeString(record.SessionId))
	}
	htmlAudit += fmt.Sprintf("<b>Categories:</b> %s<br/>", codes)
	if record.Unrecognized {
		htmlAudit += "<b>The classifier output was not recognized, so the message was refused.</b><br/>"
	}
	htmlAudit += fmt.Sprintf("<b>Recorded time:</b> %s<br/>", record.CreatedAt().Format(time.RFC1123Z))
	return htmlAudit
}

// Close - Waits (up to the timeout) for queued records to be handled, then stops the queue.
func (q *Queue) Close(timeout time.Duration) error {
	return q.pool.ReleaseTimeout(timeout)
}
