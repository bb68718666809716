// Package gormstore stores documents in one relational table (path, collection, doc_id,
// JSON data) through gorm. PostgreSQL and MySQL serve the primary store; a SQLite file
// plays the local emulator.
package gormstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tigerroll/congresso/pkg/batch/adapter/docstore"
	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
	"github.com/tigerroll/congresso/pkg/batch/support/util/logger"
)

// DefaultTable is the document table created by the embedded migrations.
const DefaultTable = "documents"

// documentRecord is one row of the document table.
type documentRecord struct {
	Path       string    `gorm:"column:path;primaryKey"`
	Collection string    `gorm:"column:collection"`
	DocID      string    `gorm:"column:doc_id"`
	Data       string    `gorm:"column:data"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (documentRecord) TableName() string { return DefaultTable }

// Store implements docstore.DocumentStore on a gorm connection.
type Store struct {
	name  string
	db    *gorm.DB
	clock func() time.Time
}

var _ docstore.DocumentStore = (*Store)(nil)

// Open connects to the configured database and applies the schema.
func Open(ctx context.Context, name string, cfg DatabaseConfig) (*Store, error) {
	if cfg.Type == "sqlite" && cfg.Database != "" && !strings.HasPrefix(cfg.Database, ":memory:") && !strings.HasPrefix(cfg.Database, "file:") {
		if err := os.MkdirAll(filepath.Dir(cfg.Database), 0o755); err != nil {
			return nil, errors.Wrapf(err, "failed to create directory for %s", cfg.Database)
		}
	}
	factory, err := GetDialectorFactory(cfg.Type)
	if err != nil {
		return nil, err
	}
	dialector, err := factory(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create dialector for %s", cfg.Type)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: NewGormLogger(cfg.LogLevel)})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s connection '%s'", cfg.Type, name)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get underlying sql.DB")
	}

	pool := cfg.Pool
	if cfg.Type == "sqlite" {
		// one writer at a time
		pool.MaxOpenConns = 1
	}
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	if pool.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(pool.ConnMaxLifetimeMinutes) * time.Minute)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrapf(err, "failed to reach %s database '%s'", cfg.Type, name)
	}

	if cfg.migrateEnabled() {
		if err := Migrate(cfg.Type, sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}
	logger.Infof("Established document store connection: %s (%s)", name, cfg.Type)
	return New(name, db), nil
}

// New wraps an open gorm connection whose schema is already in place.
func New(name string, db *gorm.DB) *Store {
	return &Store{name: name, db: db, clock: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Name() string { return s.name }

// DB returns the underlying gorm connection.
func (s *Store) DB() *gorm.DB { return s.db }

// Commit applies ops in one transaction.
func (s *Store) Commit(ctx context.Context, ops []model.BatchOperation) error {
	if len(ops) == 0 {
		return nil
	}
	now := s.clock()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, op := range ops {
			if err := apply(tx, op, now); err != nil {
				return errors.Wrapf(err, "%s %s", op.Kind, op.Path)
			}
		}
		return nil
	})
}

func apply(tx *gorm.DB, op model.BatchOperation, now time.Time) error {
	path := op.Path.String()
	if op.Kind == model.OpDelete {
		return tx.Where("path = ?", path).Delete(&documentRecord{}).Error
	}

	data := op.Data
	if op.Kind == model.OpUpdate || op.Merge {
		var current documentRecord
		err := tx.Where("path = ?", path).Take(&current).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if op.Kind == model.OpUpdate {
				return errors.New("document does not exist")
			}
		case err != nil:
			return err
		default:
			var base map[string]any
			if err := json.Unmarshal([]byte(current.Data), &base); err != nil {
				return errors.Wrap(err, "decoding stored document")
			}
			patch, err := op.Decode()
			if err != nil {
				return errors.Wrap(err, "decoding patch")
			}
			if data, err = json.Marshal(model.MergeDocuments(base, patch)); err != nil {
				return err
			}
		}
	}

	rec := documentRecord{
		Path:       path,
		Collection: op.Path.Parent().String(),
		DocID:      op.Path.ID(),
		Data:       string(data),
		UpdatedAt:  now,
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"collection", "doc_id", "data", "updated_at"}),
	}).Create(&rec).Error
}

func (s *Store) Get(ctx context.Context, path model.DocumentPath) (map[string]any, bool, error) {
	var rec documentRecord
	err := s.db.WithContext(ctx).Where("path = ?", path.String()).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "loading %s", path)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(rec.Data), &doc); err != nil {
		return nil, false, errors.Wrapf(err, "decoding %s", path)
	}
	return doc, true, nil
}

// Count returns the number of documents in a collection.
func (s *Store) Count(ctx context.Context, collection model.CollectionPath) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&documentRecord{}).Where("collection = ?", collection.String()).Count(&n).Error
	return n, err
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
