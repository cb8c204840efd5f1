package main

import (
	"time"

	"github.com/matrix-org/policyrelay/audit"
	"github.com/matrix-org/policyrelay/config"
	"github.com/matrix-org/policyrelay/moderation"
	"github.com/matrix-org/policyrelay/queue"
	"github.com/matrix-org/policyrelay/session"
	"github.com/matrix-org/policyrelay/storage"
)

func setupAuditQueue(instanceConfig *config.InstanceConfig, db storage.PersistentStorage) (*audit.Queue, error) {
	return audit.NewQueue(&audit.Config{
		PoolSize:              instanceConfig.AuditPoolSize,
		WebhookUrl:            instanceConfig.AuditWebhookUrl,
		AllowedWebhookDomains: instanceConfig.AllowedWebhookDomains,
	}, db)
}

func setupSessions(instanceConfig *config.InstanceConfig) (*session.Store, error) {
	return session.NewStore(&session.Config{
		Ttl:         time.Duration(instanceConfig.SessionTtlMinutes) * time.Minute,
		MaxMessages: instanceConfig.SessionMaxMessages,
	})
}

func setupQueue(instanceConfig *config.InstanceConfig, pipeline *moderation.Pipeline, sessions *session.Store, auditQueue *audit.Queue) (*queue.Pool, error) {
	poolConfig := &queue.PoolConfig{
		ConcurrentPools: 10,
		SizePerPool:     max(instanceConfig.ProcessingPoolSize/10, 1),
		RunTimeout:      time.Duration(instanceConfig.RunTimeoutSeconds) * time.Second,
	}
	return queue.NewPool(poolConfig, pipeline, sessions, auditQueue)
}
