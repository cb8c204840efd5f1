package main

import (
	"github.com/matrix-org/policyrelay/api"
	"github.com/matrix-org/policyrelay/config"
	"github.com/matrix-org/policyrelay/policy"
	"github.com/matrix-org/policyrelay/queue"
	"github.com/matrix-org/policyrelay/session"
	"github.com/matrix-org/policyrelay/storage"
)

func setupApi(instanceConfig *config.InstanceConfig, pool *queue.Pool, sessions *session.Store, catalog *policy.Catalog, storage storage.PersistentStorage) (*api.Api, error) {
	apiConfig := &api.Config{
		ApiKey: instanceConfig.ApiKey,
	}
	return api.NewApi(apiConfig, pool, sessions, catalog, storage)
}
