// Package docstore defines the outbound document store port used by the batch writer.
// A store applies a batch of operations atomically; implementations live in the
// gormstore and filestore subpackages, plus the in-process MemoryStore.
package docstore

import (
	"context"

	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
)

// Store type identifiers used in the adapter configuration.
const (
	TypeMemory   = "memory"
	TypePostgres = "postgres"
	TypeMySQL    = "mysql"
	TypeSQLite   = "sqlite"
	TypeLocal    = "local"
	TypeGCS      = "gcs"
)

// DocumentStore persists documents addressed by DocumentPath.
type DocumentStore interface {
	// Name returns the configured adapter name.
	Name() string
	// Commit applies ops as one unit: either every operation is applied or none is.
	Commit(ctx context.Context, ops []model.BatchOperation) error
	// Get returns the stored document and whether it exists.
	Get(ctx context.Context, path model.DocumentPath) (map[string]any, bool, error)
	// Close releases the underlying connection.
	Close() error
}
