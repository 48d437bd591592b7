package core

import (
	"fmt"

	"carbonscope/internal/config"
	"carbonscope/internal/infra/persistence/memory"
	"carbonscope/internal/infra/persistence/postgres"
	"carbonscope/internal/infra/persistence/sqlite"
	"carbonscope/pkg/domain"
)

// StorageDriver identifies a concrete assessment store implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenAssessmentStore selects a backend from cfg. No I/O happens here; the
// returned store connects or reads its medium on Initialize.
func OpenAssessmentStore(cfg config.StorageConfig, logger domain.Logger) (domain.AssessmentStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(memory.WithLogger(logger)), nil
	case StorageSQLite:
		return sqlite.NewStore(cfg.Path, sqlite.WithLogger(logger))
	case StoragePostgres:
		return postgres.NewStore(cfg.DSN, postgres.WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
