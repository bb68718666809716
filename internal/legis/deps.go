// Package legis holds the legislative processors (materias, discursos and mesas) that run on
// the batch engine against the Senado and Câmara open data APIs.
package legis

import (
	"fmt"
	"time"

	"github.com/tigerroll/congresso/pkg/batch/adapter/api"
	"github.com/tigerroll/congresso/pkg/batch/adapter/docstore"
	"github.com/tigerroll/congresso/pkg/batch/component/item"
	"github.com/tigerroll/congresso/pkg/batch/component/step/reader"
	"github.com/tigerroll/congresso/pkg/batch/core/config"
	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/congresso/pkg/batch/core/metrics"
	"github.com/tigerroll/congresso/pkg/batch/engine/step/retry"
	"github.com/tigerroll/congresso/pkg/batch/engine/throttle"
	"github.com/tigerroll/congresso/pkg/batch/support/util/exception"
)

const moduleName = "legis"

// Families of the upstream APIs.
const (
	FamilySenado = "senado"
	FamilyCamara = "camara"
)

// Sources are the readers of both API families. Each family has its own retry policy and
// pacer, shared by every worker of a run.
type Sources struct {
	Senado *reader.APIReader
	Camara *reader.APIReader
}

// NewSources builds the readers from the API configuration.
func NewSources(cfg *config.Config, recorder metrics.MetricRecorder, tracer metrics.Tracer, opts ...api.ClientOption) (Sources, error) {
	senado, err := newReader(FamilySenado, cfg.Congresso.API.Senado, recorder, tracer, opts)
	if err != nil {
		return Sources{}, err
	}
	camara, err := newReader(FamilyCamara, cfg.Congresso.API.Camara, recorder, tracer, opts)
	if err != nil {
		return Sources{}, err
	}
	return Sources{Senado: senado, Camara: camara}, nil
}

func newReader(family string, cfg config.APIFamilyConfig, recorder metrics.MetricRecorder, tracer metrics.Tracer, opts []api.ClientOption) (*reader.APIReader, error) {
	clientOpts := append([]api.ClientOption{
		api.WithObservability(recorder, tracer),
		api.WithPacer(throttle.NewPacer(family, cfg.Pacing)),
	}, opts...)
	client, err := api.NewClient(family, cfg, clientOpts...)
	if err != nil {
		return nil, err
	}
	policy := retry.NewDefaultRetryPolicyFactory().Create(cfg.Retry)
	executor := retry.NewExecutor(family, policy, recorder)
	return reader.NewAPIReader(client, cfg, executor, item.NewConsolidator().ItemsOf), nil
}

// Deps are the per-run collaborators of a processor.
type Deps struct {
	Config  *config.Config
	Sources Sources
	Store   docstore.DocumentStore
	// Now is the clock used for incremental windows. Defaults to time.Now.
	Now func() time.Time
}

func (d Deps) now() time.Time {
	loc := d.Config.Congresso.System.Location()
	if d.Now != nil {
		return d.Now().In(loc)
	}
	return time.Now().In(loc)
}

func (d Deps) validate() error {
	if d.Config == nil {
		return exception.NewBatchErrorf(moduleName, "processor built without configuration")
	}
	if d.Store == nil {
		return exception.NewValidationError(moduleName, "no document store for this run", "check --destino and congresso.destinations")
	}
	if d.Sources.Senado == nil || d.Sources.Camara == nil {
		return exception.NewBatchErrorf(moduleName, "processor built without API readers")
	}
	return nil
}

func validateNumericID(flag, id string) error {
	if id == "" {
		return nil
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return exception.NewValidationError(moduleName, fmt.Sprintf("%s must be numeric, got %q", flag, id), "use the numeric code published by the house")
		}
	}
	return nil
}

// collection returns {root}/{legislature}/{entity}.
func collection(cfg *config.Config, legislature int, entity string) (model.CollectionPath, error) {
	return model.ParseCollectionPath(fmt.Sprintf("%s/%d/%s", cfg.Congresso.Batch.RootCollection, legislature, entity))
}

// extractPercent maps fan-out progress onto the extract share of the progress bar.
func extractPercent(done, total int) int {
	if total <= 0 {
		return 60
	}
	return 5 + 55*done/total
}
