package legis_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tigerroll/congresso/internal/legis"
	"github.com/tigerroll/congresso/pkg/batch/adapter/docstore"
	"github.com/tigerroll/congresso/pkg/batch/core/config"
	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
	"github.com/tigerroll/congresso/pkg/batch/core/processor"
)

// callLog counts requests per URL path.
type callLog struct {
	mu    sync.Mutex
	paths map[string]int
}

func (c *callLog) add(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paths == nil {
		c.paths = map[string]int{}
	}
	c.paths[path]++
}

func (c *callLog) count(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paths[path]
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newServer(t *testing.T, calls *callLog, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.add(r.URL.Path)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// testConfig points both API families at the fakes, with instant retries and no pacing.
func testConfig(senadoURL, camaraURL string) *config.Config {
	cfg := config.NewConfig()
	for _, fam := range []*config.APIFamilyConfig{&cfg.Congresso.API.Senado, &cfg.Congresso.API.Camara} {
		fam.TimeoutSeconds = 5
		fam.Retry = config.RetryConfig{MaxAttempts: 2, InitialInterval: 0, Factor: 1}
		fam.Pacing = config.PacingConfig{}
	}
	cfg.Congresso.API.Senado.BaseURL = senadoURL
	cfg.Congresso.API.Camara.BaseURL = camaraURL
	return cfg
}

type harness struct {
	cfg   *config.Config
	store *docstore.MemoryStore
}

func newHarness(t *testing.T, senadoURL, camaraURL string) *harness {
	t.Helper()
	if senadoURL == "" {
		senadoURL = "http://senado.invalid"
	}
	if camaraURL == "" {
		camaraURL = "http://camara.invalid"
	}
	return &harness{cfg: testConfig(senadoURL, camaraURL), store: docstore.NewMemoryStore("memory")}
}

func (h *harness) run(t *testing.T, name string, in model.RunOptionsInput) *model.ProcessingResult {
	t.Helper()
	sources, err := legis.NewSources(h.cfg, nil, nil)
	require.NoError(t, err)
	job, err := legis.NewJob(name, legis.Deps{Config: h.cfg, Sources: sources, Store: h.store})
	require.NoError(t, err)

	if in.Legislature == 0 {
		in.Legislature = 57
	}
	opts, err := model.NewRunOptions(in)
	require.NoError(t, err)
	return job(context.Background(), processor.NewProcessingContext(opts))
}

func (h *harness) doc(t *testing.T, path string, out any) {
	t.Helper()
	raw, ok := h.store.Raw(path)
	require.True(t, ok, "document %s not stored; have %v", path, h.store.Paths())
	require.NoError(t, json.Unmarshal(raw, out))
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}
