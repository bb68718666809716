package gormstore_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tigerroll/congresso/pkg/batch/adapter/docstore/gormstore"
	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
)

func openSQLite(t *testing.T) *gormstore.Store {
	t.Helper()
	s, err := gormstore.Open(context.Background(), "emulator", gormstore.DatabaseConfig{
		Type:     "sqlite",
		Database: filepath.Join(t.TempDir(), "data", "emulator.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func setOp(t *testing.T, path string, doc map[string]any, merge bool) model.BatchOperation {
	t.Helper()
	p, err := model.ParseDocumentPath(path)
	require.NoError(t, err)
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return model.BatchOperation{Kind: model.OpSet, Path: p, Data: data, Size: len(data), Merge: merge}
}

func TestSQLiteRoundTrip(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Commit(ctx, []model.BatchOperation{
		setOp(t, "congressoData/discursos/deputados/204554", map[string]any{"nome": "A", "total": 2}, false),
		setOp(t, "congressoData/discursos/deputados/204555", map[string]any{"nome": "B"}, false),
	}))
	require.NoError(t, s.Commit(ctx, []model.BatchOperation{
		setOp(t, "congressoData/discursos/deputados/204554", map[string]any{"total": 3}, true),
	}))

	p, _ := model.ParseDocumentPath("congressoData/discursos/deputados/204554")
	doc, ok, err := s.Get(ctx, p)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"nome": "A", "total": 3.0}, doc)

	col, _ := model.ParseCollectionPath("congressoData/discursos/deputados")
	n, err := s.Count(ctx, col)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, s.Commit(ctx, []model.BatchOperation{{Kind: model.OpDelete, Path: p}}))
	_, ok, err = s.Get(ctx, p)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteCommitIsAtomic(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	missing, _ := model.ParseDocumentPath("mesas/camara")

	err := s.Commit(ctx, []model.BatchOperation{
		setOp(t, "mesas/senado", map[string]any{"membros": 7}, false),
		{Kind: model.OpUpdate, Path: missing, Data: json.RawMessage(`{"x":1}`)},
	})
	require.Error(t, err)

	p, _ := model.ParseDocumentPath("mesas/senado")
	_, ok, err := s.Get(ctx, p)
	require.NoError(t, err)
	assert.False(t, ok, "the whole batch is rolled back")
}

func TestReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emulator.db")
	cfg := gormstore.DatabaseConfig{Type: "sqlite", Database: path}
	ctx := context.Background()

	s, err := gormstore.Open(ctx, "emulator", cfg)
	require.NoError(t, err)
	require.NoError(t, s.Commit(ctx, []model.BatchOperation{setOp(t, "a/1", map[string]any{"v": 1}, false)}))
	require.NoError(t, s.Close())

	s, err = gormstore.Open(ctx, "emulator", cfg)
	require.NoError(t, err)
	defer s.Close()
	p, _ := model.ParseDocumentPath("a/1")
	_, ok, err := s.Get(ctx, p)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCommitReportsTransactionFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	mock.ExpectBegin().WillReturnError(errors.New("connection reset by peer"))
	s := gormstore.New("primary", gormDB)

	err = s.Commit(context.Background(), []model.BatchOperation{setOp(t, "a/1", map[string]any{"v": 1}, false)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset by peer")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDSNBuilders(t *testing.T) {
	cfg := gormstore.DatabaseConfig{Host: "db", Port: 3306, User: "etl", Password: "p@ss:word", Database: "congresso"}
	dsn := gormstore.MySQLDSN(cfg)
	assert.True(t, strings.HasPrefix(dsn, "etl:p@ss:word@tcp(db:3306)/congresso?"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")

	cfg.Port = 5432
	assert.Equal(t, "host=db port=5432 user=etl password=p@ss:word dbname=congresso sslmode=disable", gormstore.PostgresDSN(cfg))
}

func TestUnknownDialect(t *testing.T) {
	_, err := gormstore.Open(context.Background(), "x", gormstore.DatabaseConfig{Type: "oracle"})
	assert.ErrorContains(t, err, "no dialector registered")
}
