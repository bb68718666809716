package reader

import (
	"context"
	"time"

	"github.com/tigerroll/congresso/pkg/batch/adapter/api"
	"github.com/tigerroll/congresso/pkg/batch/core/config"
	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
	"github.com/tigerroll/congresso/pkg/batch/engine/step/retry"
	"github.com/tigerroll/congresso/pkg/batch/support/util/exception"
)

// ItemExtractor locates the item array of a decoded page.
type ItemExtractor func(payload any) ([]any, bool)

// APIReader turns API calls into extraction fragments, retrying each request through the
// family's retry executor.
type APIReader struct {
	client  *api.Client
	retry   *retry.Executor
	items   ItemExtractor
	pageCfg PaginatorConfig
}

// NewAPIReader creates the reader of one API family.
func NewAPIReader(client *api.Client, cfg config.APIFamilyConfig, executor *retry.Executor, items ItemExtractor) *APIReader {
	return &APIReader{
		client: client,
		retry:  executor,
		items:  items,
		pageCfg: PaginatorConfig{
			PageSize:      cfg.PageSize,
			PageParam:     cfg.PageParam,
			PageSizeParam: cfg.PageSizeParam,
			Retry:         executor,
			Pacer:         client.Pacer(),
		},
	}
}

// Client returns the underlying API client.
func (r *APIReader) Client() *api.Client {
	return r.client
}

// Fetch performs one retried request and returns its fragment.
func (r *APIReader) Fetch(ctx context.Context, ep api.Endpoint, pathParams, query map[string]string) (model.ExtractionFragment, error) {
	resp, err := retry.Execute(ctx, r.retry, ep.Name, func(ctx context.Context) (*api.Response, error) {
		return r.client.Get(ctx, ep, pathParams, query)
	})
	if err != nil {
		return model.ExtractionFragment{}, err
	}
	return resp.Fragment(), nil
}

// FetchAll walks every page of a paginated endpoint and returns one fragment whose payload
// is the concatenated item array.
func (r *APIReader) FetchAll(ctx context.Context, ep api.Endpoint, pathParams, query map[string]string, opts PageOptions) (model.ExtractionFragment, error) {
	var source string
	fetch := func(ctx context.Context, _ string, params map[string]string) ([]any, error) {
		resp, err := r.client.Get(ctx, ep, pathParams, params)
		if err != nil {
			return nil, err
		}
		if source == "" {
			source = resp.URL
		}
		if resp.Body == nil {
			return nil, nil
		}
		items, ok := r.items(resp.Document())
		if !ok {
			return nil, exception.NewShapeError("reader", resp.URL, ep.Name+" page")
		}
		return items, nil
	}

	if opts.Context == "" {
		opts.Context = ep.Name
	}
	items, err := NewPaginator(fetch, r.pageCfg).GetAllPages(ctx, ep.Name, query, opts)
	if err != nil {
		return model.ExtractionFragment{}, err
	}
	if items == nil {
		items = []any{}
	}
	return model.ExtractionFragment{
		Source:    source,
		Params:    r.client.MergeParams(ep, query),
		FetchedAt: time.Now().UTC(),
		Payload:   items,
	}, nil
}
