package item_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/congresso/pkg/batch/adapter/api"
	"github.com/tigerroll/congresso/pkg/batch/component/item"
	"github.com/tigerroll/congresso/pkg/batch/core/config"
	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestConsolidateMergesShapesInOrder(t *testing.T) {
	c := item.NewConsolidator()
	fragments := []model.ExtractionFragment{
		{Source: "a", Payload: decode(t, `{"A":{"B":[1,2]}}`)},
		{Source: "b", Payload: decode(t, `{"items":[3,4,5]}`)},
		{Source: "c", Payload: decode(t, `[6]`)},
	}

	rec := c.Consolidate("senador-5672", fragments)
	require.NotNil(t, rec)
	assert.Equal(t, []any{1.0, 2.0, 3.0, 4.0, 5.0, 6.0}, rec.Items)
	assert.Equal(t, []string{"a", "b", "c"}, rec.Sources)
	assert.Equal(t, 3, rec.MatchedFragments)
	assert.Equal(t, 0, rec.SkippedFragments)
}

func TestConsolidateSkipsFailedAndUnknownFragments(t *testing.T) {
	c := item.NewConsolidator()
	fragments := []model.ExtractionFragment{
		{Source: "failed", Err: "timeout"},
		{Source: "scalar", Payload: decode(t, `{"total":0}`)},
		{Source: "ok", Payload: decode(t, `{"dados":[{"id":1}]}`)},
	}

	rec := c.Consolidate("k", fragments)
	require.NotNil(t, rec)
	assert.Len(t, rec.Items, 1)
	assert.Equal(t, 2, rec.SkippedFragments)
	assert.Equal(t, []string{"ok"}, rec.Sources)
}

func TestConsolidateReturnsNilWithoutItems(t *testing.T) {
	c := item.NewConsolidator()
	assert.Nil(t, c.Consolidate("k", nil))
	assert.Nil(t, c.Consolidate("k", []model.ExtractionFragment{
		{Payload: decode(t, `{"dados":[]}`)},
	}))
}

func TestProbePriority(t *testing.T) {
	c := item.NewConsolidator()
	tests := []struct {
		name    string
		payload string
		probe   string
		want    int
	}{
		{"resultset", `{"Resultset":{"Items":{"Item":[{},{}]}},"items":[{}]}`, "Resultset.Items.Item", 2},
		{"items item", `{"Items":{"Item":{"id":1}}}`, "Items.Item", 1},
		{"dados before items", `{"dados":[{}],"items":[{},{}]}`, "dados", 1},
		{"singular item object", `{"item":{"id":3}}`, "item", 1},
		{"bare array", `[{},{},{}]`, "array", 3},
		{"single key descent", `{"ListaParlamentarEmExercicio":{"Parlamentares":{"Parlamentar":[{},{}]}}}`, "single-key", 2},
		{"first array", `{"links":[{}],"total":2}`, "first-array", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, probe, ok := c.Items(decode(t, tt.payload))
			require.True(t, ok)
			assert.Equal(t, tt.probe, probe)
			assert.Len(t, items, tt.want)
		})
	}
}

func TestFirstArrayKeepsDocumentOrderForRawPayloads(t *testing.T) {
	c := item.NewConsolidator()
	raw := json.RawMessage(`{"total":3,"zeta":[1],"alpha":[2,3]}`)

	items, probe, ok := c.Items(raw)
	require.True(t, ok)
	assert.Equal(t, "first-array", probe)
	assert.Equal(t, []any{json.Number("1")}, items)

	decoded, _, ok := c.Items(decode(t, string(raw)))
	require.True(t, ok)
	assert.Equal(t, []any{2.0, 3.0}, decoded)
}

func TestFirstArrayFollowsDocumentOrderForFetchedFragments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"x":1,"zeta":["z1"],"alpha":["a1"]}`))
	}))
	defer srv.Close()

	client, err := api.NewClient("camara", config.APIFamilyConfig{BaseURL: srv.URL, TimeoutSeconds: 5})
	require.NoError(t, err)
	resp, err := client.Get(context.Background(), api.Endpoint{Name: "orgaos", Path: "/orgaos"}, nil, nil)
	require.NoError(t, err)
	require.IsType(t, map[string]any{}, resp.Body)

	rec := item.NewConsolidator().Consolidate("orgaos", []model.ExtractionFragment{resp.Fragment()})
	require.NotNil(t, rec)
	assert.Equal(t, []any{"z1"}, rec.Items)

	items, probe, ok := item.NewConsolidator().Items(resp.Document())
	require.True(t, ok)
	assert.Equal(t, "first-array", probe)
	assert.Equal(t, []any{"z1"}, items)
}

func TestSingleKeyDescentIsBounded(t *testing.T) {
	c := item.NewConsolidator()
	_, _, ok := c.Items(decode(t, `{"a":{"b":{"c":{"d":{"e":{"f":[1]}}}}}}`))
	assert.False(t, ok)
}

func TestCustomProbes(t *testing.T) {
	c := item.NewConsolidator(item.PathProbe("MembroMesa", "Membros"))
	items, ok := c.ItemsOf(decode(t, `{"MembroMesa":{"Membros":[{},{}]}}`))
	require.True(t, ok)
	assert.Len(t, items, 2)

	_, ok = c.ItemsOf(decode(t, `[1]`))
	assert.False(t, ok)
}
