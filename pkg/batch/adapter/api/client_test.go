package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/congresso/pkg/batch/adapter/api"
	"github.com/tigerroll/congresso/pkg/batch/core/config"
	"github.com/tigerroll/congresso/pkg/batch/support/util/exception"
)

var discursos = api.Endpoint{
	Name:          "deputados.discursos",
	Path:          "/deputados/{id}/discursos",
	DefaultParams: map[string]string{"ordem": "ASC", "ordenarPor": "dataHoraInicio"},
}

func newClient(t *testing.T, handler http.HandlerFunc) *api.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := api.NewClient("camara", config.APIFamilyConfig{
		BaseURL:        srv.URL + "/api/v2",
		TimeoutSeconds: 5,
		UserAgent:      "congresso-test",
		DefaultParams:  map[string]string{"itens": "100"},
	})
	require.NoError(t, err)
	return c
}

func TestGetDecodesJSON(t *testing.T) {
	var seen *http.Request
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = r
		_ = json.NewEncoder(w).Encode(map[string]any{"dados": []any{map[string]any{"id": 1}}})
	})

	resp, err := c.Get(context.Background(), discursos, map[string]string{"id": "204554"}, map[string]string{"ordem": "DESC", "pagina": "2"})
	require.NoError(t, err)

	assert.Equal(t, "/api/v2/deputados/204554/discursos", seen.URL.Path)
	assert.Equal(t, "DESC", seen.URL.Query().Get("ordem"))
	assert.Equal(t, "dataHoraInicio", seen.URL.Query().Get("ordenarPor"))
	assert.Equal(t, "100", seen.URL.Query().Get("itens"))
	assert.Equal(t, "2", seen.URL.Query().Get("pagina"))
	assert.Equal(t, "application/json", seen.Header.Get("Accept"))
	assert.Equal(t, "congresso-test", seen.Header.Get("User-Agent"))

	body, ok := resp.Body.(map[string]any)
	require.True(t, ok)
	items := body["dados"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, json.Number("1"), items[0].(map[string]any)["id"])

	frag := resp.Fragment()
	assert.Equal(t, resp.URL, frag.Source)
	assert.False(t, frag.Failed())
}

func TestGetMapsNotFound(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := c.Get(context.Background(), discursos, map[string]string{"id": "1"}, nil)
	require.Error(t, err)
	assert.True(t, exception.IsNotFound(err))
	assert.True(t, exception.IsPermanent(err))
}

func TestGetMapsServerErrors(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway exploded", http.StatusBadGateway)
	})

	_, err := c.Get(context.Background(), discursos, map[string]string{"id": "1"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrAPI)

	var be *exception.BatchError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusBadGateway, be.Status)
	assert.True(t, be.IsRetryable())
	assert.Contains(t, err.Error(), "gateway exploded")
}

func TestGetClientErrorIsNotRetryable(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := c.Get(context.Background(), discursos, map[string]string{"id": "1"}, nil)
	var be *exception.BatchError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, exception.KindAPI, be.Kind)
	assert.False(t, be.IsRetryable())
}

func TestGetRejectsUnresolvedPlaceholders(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := c.Get(context.Background(), discursos, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unresolved placeholder")
}

func TestGetHonoursCancellation(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Get(ctx, discursos, map[string]string{"id": "1"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMergeParamsDropsBlankOverrides(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {})

	merged := c.MergeParams(discursos, map[string]string{"ordenarPor": "", "idLegislatura": "57"})
	assert.Equal(t, map[string]string{"itens": "100", "ordem": "ASC", "idLegislatura": "57"}, merged)
}

func TestNewClientRejectsRelativeBaseURL(t *testing.T) {
	_, err := api.NewClient("senado", config.APIFamilyConfig{BaseURL: "dadosabertos"})
	assert.Error(t, err)
}
