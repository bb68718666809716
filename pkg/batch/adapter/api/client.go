// Package api is the inbound REST adapter: it renders endpoint templates against an API
// family's base URL, paces and sends GET requests and maps responses to the engine's
// error taxonomy (404 to NotFoundError, everything else to ApiError).
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/tigerroll/congresso/pkg/batch/core/config"
	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/congresso/pkg/batch/core/metrics"
	"github.com/tigerroll/congresso/pkg/batch/engine/throttle"
	"github.com/tigerroll/congresso/pkg/batch/support/util/exception"
	"github.com/tigerroll/congresso/pkg/batch/support/util/logger"
)

const moduleName = "api"

// maxErrorBody bounds the response body quoted in ApiError messages.
const maxErrorBody = 512

// Endpoint is a named path template such as "/deputados/{id}/discursos".
type Endpoint struct {
	Name          string
	Path          string
	DefaultParams map[string]string
}

// Render substitutes {param} placeholders. Every placeholder must be provided.
func (e Endpoint) Render(pathParams map[string]string) (string, error) {
	path := e.Path
	for k, v := range pathParams {
		path = strings.ReplaceAll(path, "{"+k+"}", url.PathEscape(v))
	}
	if strings.Contains(path, "{") {
		return "", exception.NewBatchErrorf(moduleName, "endpoint %s: unresolved placeholder in %q", e.Name, path)
	}
	return path, nil
}

// Response is one decoded upstream response.
type Response struct {
	URL       string
	Path      string
	Status    int
	Params    map[string]string
	Body      any
	Raw       json.RawMessage
	FetchedAt time.Time
}

// Document returns the raw body when there is one, so that shape probes see the keys in
// document order, and the decoded body otherwise.
func (r *Response) Document() any {
	if len(r.Raw) > 0 {
		return r.Raw
	}
	return r.Body
}

// Fragment converts the response into an extraction fragment.
func (r *Response) Fragment() model.ExtractionFragment {
	return model.ExtractionFragment{Source: r.URL, Params: r.Params, FetchedAt: r.FetchedAt, Payload: r.Body, Raw: r.Raw}
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithObservability sets the metric recorder and tracer.
func WithObservability(recorder metrics.MetricRecorder, tracer metrics.Tracer) ClientOption {
	return func(c *Client) {
		if recorder != nil {
			c.recorder = recorder
		}
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithPacer sets the pacer consulted before every request.
func WithPacer(p *throttle.Pacer) ClientOption {
	return func(c *Client) { c.pacer = p }
}

// Client sends GET requests to one API family. Safe for concurrent use.
type Client struct {
	family    string
	baseURL   *url.URL
	userAgent string
	defaults  map[string]string
	http      *http.Client
	pacer     *throttle.Pacer
	recorder  metrics.MetricRecorder
	tracer    metrics.Tracer
}

// NewClient creates the client of an API family.
func NewClient(family string, cfg config.APIFamilyConfig, opts ...ClientOption) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, exception.NewBatchErrorf(moduleName, "invalid base url %q for %s", cfg.BaseURL, family, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, exception.NewBatchErrorf(moduleName, "base url %q for %s must be absolute", cfg.BaseURL, family)
	}
	c := &Client{
		family:    family,
		baseURL:   base,
		userAgent: cfg.UserAgent,
		defaults:  cfg.DefaultParams,
		http:      &http.Client{Timeout: cfg.Timeout()},
		pacer:     throttle.Unpaced(family),
		recorder:  metrics.NewNoOpMetricRecorder(),
		tracer:    metrics.NewNoOpTracer(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Family returns the API family name.
func (c *Client) Family() string {
	return c.family
}

// Pacer returns the pacer of the family.
func (c *Client) Pacer() *throttle.Pacer {
	return c.pacer
}

// MergeParams layers family defaults, endpoint defaults and caller overrides.
func (c *Client) MergeParams(ep Endpoint, query map[string]string) map[string]string {
	merged := make(map[string]string, len(c.defaults)+len(ep.DefaultParams)+len(query))
	for _, layer := range []map[string]string{c.defaults, ep.DefaultParams, query} {
		for k, v := range layer {
			if v == "" {
				delete(merged, k)
				continue
			}
			merged[k] = v
		}
	}
	return merged
}

// Get performs one request. It does not retry.
func (c *Client) Get(ctx context.Context, ep Endpoint, pathParams, query map[string]string) (*Response, error) {
	path, err := ep.Render(pathParams)
	if err != nil {
		return nil, err
	}
	params := c.MergeParams(ep, query)
	target := c.buildURL(path, params)

	ctx, end := c.tracer.StartSpan(ctx, "GET "+ep.Name, map[string]interface{}{"api.family": c.family, "http.url": target})
	defer end()

	if err := c.pacer.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "waiting for rate limiter")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to build request", err, false, false)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.recorder.RecordAPIRequest(ctx, c.family, ep.Name, 0, time.Since(started))
		if ctx.Err() != nil {
			return nil, errors.Wrapf(ctx.Err(), "request to %s aborted", path)
		}
		apiErr := exception.NewAPIError(moduleName, path, 0, err)
		c.tracer.RecordError(ctx, moduleName, apiErr)
		return nil, apiErr
	}
	defer resp.Body.Close()
	c.recorder.RecordAPIRequest(ctx, c.family, ep.Name, resp.StatusCode, time.Since(started))
	logger.Debugf("GET %s -> %d (%s)", target, resp.StatusCode, time.Since(started).Round(time.Millisecond))

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, exception.NewNotFoundError(moduleName, path, nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := exception.NewAPIError(moduleName, path, resp.StatusCode, errors.Newf("%s", strings.TrimSpace(string(snippet))))
		c.tracer.RecordError(ctx, moduleName, apiErr)
		return nil, apiErr
	}

	out := &Response{URL: target, Path: path, Status: resp.StatusCode, Params: params, FetchedAt: time.Now().UTC()}
	if resp.StatusCode == http.StatusNoContent {
		return out, nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, exception.NewAPIError(moduleName, path, 0, errors.Wrap(err, "reading response body"))
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return out, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&out.Body); err != nil {
		// a truncated body is a transport problem, worth retrying
		return nil, exception.NewAPIError(moduleName, path, 0, errors.Wrap(err, "decoding response body"))
	}
	out.Raw = json.RawMessage(raw)
	return out, nil
}

func (c *Client) buildURL(path string, params map[string]string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(params) > 0 {
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		q := url.Values{}
		for _, k := range keys {
			q.Set(k, params[k])
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}
