package reader_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/congresso/pkg/batch/component/step/reader"
	"github.com/tigerroll/congresso/pkg/batch/engine/step/retry"
	"github.com/tigerroll/congresso/pkg/batch/support/util/exception"
)

// fakeSource serves n integers in pages of the requested size.
type fakeSource struct {
	n     int
	calls int
	fail  map[int]int // page -> remaining failures
}

func (s *fakeSource) fetch(_ context.Context, _ string, params map[string]string) ([]int, error) {
	s.calls++
	page, _ := strconv.Atoi(params["pagina"])
	size, _ := strconv.Atoi(params["itens"])
	if s.fail[page] > 0 {
		s.fail[page]--
		return nil, errors.Newf("page %d: 503", page)
	}
	var out []int
	for i := (page - 1) * size; i < page*size && i < s.n; i++ {
		out = append(out, i)
	}
	return out, nil
}

func TestGetAllPagesTermination(t *testing.T) {
	tests := []struct {
		n, k, wantCalls int
	}{
		{n: 247, k: 100, wantCalls: 3},
		{n: 5, k: 10, wantCalls: 1},
		{n: 200, k: 100, wantCalls: 3},
		{n: 0, k: 100, wantCalls: 1},
		{n: 1, k: 1, wantCalls: 2},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.n)+"/"+strconv.Itoa(tt.k), func(t *testing.T) {
			src := &fakeSource{n: tt.n}
			p := reader.NewPaginator(src.fetch, reader.PaginatorConfig{PageSize: tt.k})

			items, err := p.GetAllPages(context.Background(), "/discursos", nil, reader.PageOptions{})
			require.NoError(t, err)
			assert.Len(t, items, tt.n)
			assert.Equal(t, tt.wantCalls, src.calls)
			for i, v := range items {
				assert.Equal(t, i, v)
			}
		})
	}
}

func TestGetAllPagesStopsAtCeiling(t *testing.T) {
	src := &fakeSource{n: 10_000}
	p := reader.NewPaginator(src.fetch, reader.PaginatorConfig{PageSize: 10})

	items, err := p.GetAllPages(context.Background(), "/materias", nil, reader.PageOptions{MaxPages: 20})
	require.NoError(t, err)
	assert.Len(t, items, 200)
	assert.Equal(t, 20, src.calls)
}

func TestGetAllPagesKeepsBaseParams(t *testing.T) {
	var seen []map[string]string
	fetch := func(_ context.Context, _ string, params map[string]string) ([]string, error) {
		seen = append(seen, params)
		return nil, nil
	}
	base := map[string]string{"idLegislatura": "57"}
	p := reader.NewPaginator(fetch, reader.PaginatorConfig{PageSize: 50, PageParam: "page", PageSizeParam: "size"})

	_, err := p.GetAllPages(context.Background(), "/x", base, reader.PageOptions{})
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, map[string]string{"idLegislatura": "57", "page": "1", "size": "50"}, seen[0])
	assert.Len(t, base, 1)
}

func TestGetAllPagesRetriesFailedPages(t *testing.T) {
	src := &fakeSource{n: 150, fail: map[int]int{2: 2}}
	p := reader.NewPaginator(src.fetch, reader.PaginatorConfig{
		PageSize: 100,
		Retry:    retry.NewExecutor("test", retry.NewFixedRetryPolicy(3, 0), nil),
	})

	items, err := p.GetAllPages(context.Background(), "/x", nil, reader.PageOptions{})
	require.NoError(t, err)
	assert.Len(t, items, 150)
	assert.Equal(t, 4, src.calls)
}

func TestGetAllPagesIsAtomic(t *testing.T) {
	src := &fakeSource{n: 300, fail: map[int]int{3: 10}}
	p := reader.NewPaginator(src.fetch, reader.PaginatorConfig{
		PageSize: 100,
		Retry:    retry.NewExecutor("test", retry.NewFixedRetryPolicy(3, 0), nil),
	})

	items, err := p.GetAllPages(context.Background(), "/x", nil, reader.PageOptions{Context: "discursos 204554"})
	require.Error(t, err)
	assert.Nil(t, items)
	assert.ErrorIs(t, err, exception.ErrOperationFailed)
	assert.Contains(t, err.Error(), "discursos 204554 page 3")
	assert.Equal(t, 5, src.calls)
}

func TestGetAllPagesDoesNotRetryNotFound(t *testing.T) {
	calls := 0
	fetch := func(_ context.Context, endpoint string, _ map[string]string) ([]int, error) {
		calls++
		return nil, exception.NewNotFoundError("api", endpoint, nil)
	}
	p := reader.NewPaginator(fetch, reader.PaginatorConfig{
		Retry: retry.NewExecutor("test", retry.NewFixedRetryPolicy(3, 0), nil),
	})

	_, err := p.GetAllPages(context.Background(), "/deputados/1/discursos", nil, reader.PageOptions{})
	assert.True(t, exception.IsNotFound(err))
	assert.Equal(t, 1, calls)
}
