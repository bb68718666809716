package filestore_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/congresso/pkg/batch/adapter/docstore/filestore"
	storageConfig "github.com/tigerroll/congresso/pkg/batch/adapter/storage/config"
	"github.com/tigerroll/congresso/pkg/batch/adapter/storage/local"
	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
)

func newStore(t *testing.T) (*filestore.Store, string) {
	t.Helper()
	dir := t.TempDir()
	conn, err := local.NewLocalAdapter(storageConfig.StorageConfig{Type: local.ProviderType, BaseDir: dir}, "local")
	require.NoError(t, err)
	s := filestore.New("local", conn)
	t.Cleanup(func() { _ = s.Close() })
	return s, dir
}

func op(t *testing.T, kind model.OperationKind, path string, doc any, merge bool) model.BatchOperation {
	t.Helper()
	p, err := model.ParseDocumentPath(path)
	require.NoError(t, err)
	var data json.RawMessage
	if doc != nil {
		data, err = json.Marshal(doc)
		require.NoError(t, err)
	}
	return model.BatchOperation{Kind: kind, Path: p, Data: data, Size: len(data), Merge: merge}
}

func TestCommitWritesJSONTree(t *testing.T) {
	s, dir := newStore(t)
	ctx := context.Background()

	err := s.Commit(ctx, []model.BatchOperation{
		op(t, model.OpSet, "congressoData/materias/senadores/5672", map[string]any{"nome": "Fulano", "total": 2}, false),
		op(t, model.OpSet, "congressoData/materias/senadores/5672", map[string]any{"atualizado": true}, true),
		op(t, model.OpSet, "congressoData/materias/senadores/4981", map[string]any{"nome": "Beltrano"}, false),
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, "congressoData", "materias", "senadores", "5672.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n  \"atualizado\": true")

	p, _ := model.ParseDocumentPath("congressoData/materias/senadores/5672")
	doc, ok, err := s.Get(ctx, p)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Fulano", doc["nome"])
	assert.Equal(t, true, doc["atualizado"])

	col, _ := model.ParseCollectionPath("congressoData/materias/senadores")
	paths, err := s.List(ctx, col)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"congressoData/materias/senadores/5672", "congressoData/materias/senadores/4981"}, paths)
}

func TestCommitUpdateAndDelete(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Commit(ctx, []model.BatchOperation{
		op(t, model.OpSet, "mesas/senado", map[string]any{"a": 1, "b": 1}, false),
	}))

	require.NoError(t, s.Commit(ctx, []model.BatchOperation{
		op(t, model.OpUpdate, "mesas/senado", map[string]any{"b": 2}, false),
	}))
	p, _ := model.ParseDocumentPath("mesas/senado")
	doc, ok, err := s.Get(ctx, p)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"a": 1.0, "b": 2.0}, doc)

	require.NoError(t, s.Commit(ctx, []model.BatchOperation{op(t, model.OpDelete, "mesas/senado", nil, false)}))
	_, ok, err = s.Get(ctx, p)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCommitRejectsUpdateOfMissingDocument(t *testing.T) {
	s, dir := newStore(t)

	err := s.Commit(context.Background(), []model.BatchOperation{
		op(t, model.OpSet, "a/1", map[string]any{"x": 1}, false),
		op(t, model.OpUpdate, "a/2", map[string]any{"x": 2}, false),
	})
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "a", "1.json"))
	assert.True(t, os.IsNotExist(statErr), "nothing is written when the batch cannot be resolved")
}
