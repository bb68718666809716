package reader_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/congresso/pkg/batch/adapter/api"
	"github.com/tigerroll/congresso/pkg/batch/component/item"
	"github.com/tigerroll/congresso/pkg/batch/component/step/reader"
	"github.com/tigerroll/congresso/pkg/batch/core/config"
	"github.com/tigerroll/congresso/pkg/batch/engine/step/retry"
	"github.com/tigerroll/congresso/pkg/batch/support/util/exception"
)

var speeches = api.Endpoint{Name: "deputados.discursos", Path: "/deputados/{id}/discursos"}

func newReader(t *testing.T, total int, calls *atomic.Int32) *reader.APIReader {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/deputados/204554/discursos" {
			http.NotFound(w, r)
			return
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("pagina"))
		size, _ := strconv.Atoi(r.URL.Query().Get("itens"))
		dados := []map[string]any{}
		for i := (page - 1) * size; i < page*size && i < total; i++ {
			dados = append(dados, map[string]any{"seq": i})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"dados": dados, "links": []any{}})
	}))
	t.Cleanup(srv.Close)

	cfg := config.APIFamilyConfig{BaseURL: srv.URL, TimeoutSeconds: 5, PageSize: 100}
	client, err := api.NewClient("camara", cfg)
	require.NoError(t, err)
	ex := retry.NewExecutor("camara", retry.NewFixedRetryPolicy(3, 0), nil)
	return reader.NewAPIReader(client, cfg, ex, item.NewConsolidator().ItemsOf)
}

func TestFetchAllConcatenatesPages(t *testing.T) {
	var calls atomic.Int32
	r := newReader(t, 247, &calls)

	frag, err := r.FetchAll(context.Background(), speeches, map[string]string{"id": "204554"}, map[string]string{"ordem": "ASC"}, reader.PageOptions{})
	require.NoError(t, err)

	items, ok := frag.Payload.([]any)
	require.True(t, ok)
	assert.Len(t, items, 247)
	assert.Equal(t, int32(3), calls.Load())
	assert.Contains(t, frag.Source, "pagina=1")
	assert.Equal(t, "ASC", frag.Params["ordem"])
	assert.Equal(t, json.Number("246"), items[246].(map[string]any)["seq"])
}

func TestFetchReturnsNotFoundWithoutRetrying(t *testing.T) {
	var calls atomic.Int32
	r := newReader(t, 0, &calls)

	_, err := r.Fetch(context.Background(), speeches, map[string]string{"id": "1"}, nil)
	assert.True(t, exception.IsNotFound(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchAllDoesNotRetryUnrecognizedPages(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"total":3,"pagina":1}`))
	}))
	t.Cleanup(srv.Close)
	cfg := config.APIFamilyConfig{BaseURL: srv.URL, TimeoutSeconds: 5, PageSize: 100}
	client, err := api.NewClient("camara", cfg)
	require.NoError(t, err)
	ex := retry.NewExecutor("camara", retry.NewFixedRetryPolicy(3, 0), nil)
	r := reader.NewAPIReader(client, cfg, ex, item.NewConsolidator().ItemsOf)

	_, err = r.FetchAll(context.Background(), speeches, map[string]string{"id": "204554"}, nil, reader.PageOptions{})

	assert.ErrorIs(t, err, exception.ErrShape)
	assert.True(t, exception.IsPermanent(err))
	assert.Equal(t, int32(1), calls.Load())
}
