package reader

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tigerroll/congresso/pkg/batch/engine/step/retry"
	"github.com/tigerroll/congresso/pkg/batch/engine/throttle"
	"github.com/tigerroll/congresso/pkg/batch/support/util/logger"
)

// Defaults used when the API family does not configure pagination.
const (
	DefaultPageSize      = 100
	DefaultPageParam     = "pagina"
	DefaultPageSizeParam = "itens"
	DefaultMaxPages      = 100
)

// PageFetcher fetches one page. params already carries the page number and size.
type PageFetcher[T any] func(ctx context.Context, endpoint string, params map[string]string) ([]T, error)

// PageOptions qualifies one GetAllPages call.
type PageOptions struct {
	Context  string // Context labels the resource in logs and retry errors (e.g. "discursos deputado 204554").
	MaxPages int    // MaxPages is the safety ceiling; 0 means DefaultMaxPages.
}

// PaginatorConfig configures a Paginator.
type PaginatorConfig struct {
	PageSize      int
	PageParam     string
	PageSizeParam string
	Retry         *retry.Executor // Retry wraps every page request; nil means a single attempt.
	Pacer         *throttle.Pacer // Pacer supplies the pause between pages.
}

// Paginator walks a paged resource until a short page, an empty page or the page ceiling.
type Paginator[T any] struct {
	fetch     PageFetcher[T] // fetch requests one page.
	pageSize  int            // pageSize is sent with every request and detects the last page.
	pageParam string         // pageParam is the 1-indexed page number parameter.
	sizeParam string         // sizeParam is the page size parameter.
	retry     *retry.Executor
	pacer     *throttle.Pacer
}

// NewPaginator creates a paginator.
func NewPaginator[T any](fetch PageFetcher[T], cfg PaginatorConfig) *Paginator[T] {
	p := &Paginator[T]{
		fetch:     fetch,
		pageSize:  cfg.PageSize,
		pageParam: cfg.PageParam,
		sizeParam: cfg.PageSizeParam,
		retry:     cfg.Retry,
		pacer:     cfg.Pacer,
	}
	if p.pageSize <= 0 {
		p.pageSize = DefaultPageSize
	}
	if p.pageParam == "" {
		p.pageParam = DefaultPageParam
	}
	if p.sizeParam == "" {
		p.sizeParam = DefaultPageSizeParam
	}
	if p.retry == nil {
		p.retry = retry.NewExecutor("paginator", retry.NewFixedRetryPolicy(1, 0), nil)
	}
	return p
}

// PageSize returns the configured page size.
func (p *Paginator[T]) PageSize() int {
	return p.pageSize
}

// GetAllPages returns the items of every page in order. The call is atomic: when a page
// exhausts its retries the items collected so far are discarded and the error is returned.
func (p *Paginator[T]) GetAllPages(ctx context.Context, endpoint string, baseParams map[string]string, opts PageOptions) ([]T, error) {
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	label := opts.Context
	if label == "" {
		label = endpoint
	}

	var all []T
	for page := 1; ; page++ {
		params := make(map[string]string, len(baseParams)+2)
		for k, v := range baseParams {
			params[k] = v
		}
		params[p.pageParam] = strconv.Itoa(page)
		params[p.sizeParam] = strconv.Itoa(p.pageSize)

		items, err := retry.Execute(ctx, p.retry, fmt.Sprintf("%s page %d", label, page), func(ctx context.Context) ([]T, error) {
			return p.fetch(ctx, endpoint, params)
		})
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		logger.Debugf("%s: page %d returned %d items (%d total)", label, page, len(items), len(all))

		if len(items) < p.pageSize {
			break
		}
		if page >= maxPages {
			logger.Warnf("%s: stopped at the page ceiling (%d pages, %d items); data may be truncated", label, maxPages, len(all))
			break
		}
		if err := p.pacer.PagePause(ctx); err != nil {
			return nil, err
		}
	}
	return all, nil
}
