package main

import (
	"errors"

	"github.com/matrix-org/policyrelay/config"
	"github.com/matrix-org/policyrelay/storage"
)

func setupDataHandlers(instanceConfig *config.InstanceConfig) (storage.PersistentStorage, error) {
	dbConfig := &storage.PostgresStorageConfig{
		Uri:            instanceConfig.Database,
		MaxOpenConns:   instanceConfig.DatabaseMaxOpenConns,
		MaxIdleConns:   instanceConfig.DatabaseMaxIdleConns,
		MigrationsPath: instanceConfig.DatabaseMigrationsDir,
	}
	psqlDb, err := storage.NewPostgresStorage(dbConfig)
	if err != nil {
		return nil, errors.Join(errors.New("NewPostgresStorage: failed create"), err)
	}
	return psqlDb, nil
}
