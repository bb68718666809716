package gormstore

import (
	"database/sql"
	"embed"

	"github.com/cockroachdb/errors"
	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tigerroll/congresso/pkg/batch/support/util/logger"
)

// MigrationsTable records the applied schema version.
const MigrationsTable = "congresso_schema_migrations"

//go:embed migrations
var migrationsFS embed.FS

func databaseDriver(dbType string, sqlDB *sql.DB) (migratedb.Driver, error) {
	switch dbType {
	case "postgres":
		return postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: MigrationsTable})
	case "mysql":
		return mysql.WithInstance(sqlDB, &mysql.Config{MigrationsTable: MigrationsTable})
	case "sqlite":
		return sqlite3.WithInstance(sqlDB, &sqlite3.Config{MigrationsTable: MigrationsTable})
	}
	return nil, errors.Newf("unsupported database type for migration: %s", dbType)
}

// Migrate applies the embedded schema of dbType to sqlDB.
func Migrate(dbType string, sqlDB *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations/"+dbType)
	if err != nil {
		return errors.Wrapf(err, "failed to open migrations for %s", dbType)
	}
	driver, err := databaseDriver(dbType, sqlDB)
	if err != nil {
		return errors.Wrap(err, "failed to create migration driver")
	}
	m, err := migrate.NewWithInstance("iofs", source, dbType, driver)
	if err != nil {
		return errors.Wrap(err, "failed to create migrate instance")
	}
	// The sqlite3 driver closes the *sql.DB it was given; the others only release
	// their dedicated connection.
	if dbType != "sqlite" {
		defer m.Close()
	} else {
		defer source.Close()
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrapf(err, "migration failed (DB: %s)", dbType)
	}
	version, dirty, _ := m.Version()
	logger.Debugf("Document schema for %s at version %d (dirty=%t).", dbType, version, dirty)
	return nil
}
