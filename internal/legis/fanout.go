package legis

import (
	"context"
	"fmt"
	"sync/atomic"

	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
	"github.com/tigerroll/congresso/pkg/batch/core/processor"
	"github.com/tigerroll/congresso/pkg/batch/engine/step/partition"
	"github.com/tigerroll/congresso/pkg/batch/engine/step/skip"
	"github.com/tigerroll/congresso/pkg/batch/engine/throttle"
	"github.com/tigerroll/congresso/pkg/batch/support/util/logger"
)

// fanOut runs worker over items in paced chunks and settles the outcomes into the run
// counters: a success per completed item, a warning per skippable error, a failure otherwise.
// It returns the values of the successful items in input order.
func fanOut[T, R any](
	ctx context.Context,
	pc *processor.ProcessingContext,
	d Deps,
	pacer *throttle.Pacer,
	policy skip.SkipPolicy,
	items []T,
	label func(T) string,
	worker partition.Worker[T, R],
) []R {
	var done atomic.Int32
	total := len(items)
	opts := partition.ChunkOptions{
		Size:  pc.Options().Concurrency(d.Config.Congresso.Batch.ChunkSize),
		Pause: pacer.ChunkPause(),
		Label: pc.Processor(),
	}
	outcomes := partition.ForEachChunk(ctx, items, opts, func(ctx context.Context, i int, it T) (R, error) {
		r, err := worker(ctx, i, it)
		n := int(done.Add(1))
		pc.EmitProgress(model.ProgressExtracting, extractPercent(n, total), fmt.Sprintf("%s (%d/%d)", label(it), n, total))
		return r, err
	})

	var out []R
	for i, o := range outcomes {
		if o.OK() {
			pc.IncrementSuccesses(1)
			out = append(out, o.Value)
			continue
		}
		if policy.ShouldSkip(o.Failure.Err) {
			logger.Warnf("[%s] %s skipped: %v", pc.Processor(), label(items[i]), o.Failure.Err)
			pc.IncrementWarnings(1)
			continue
		}
		logger.Errorf("[%s] %s failed: %v", pc.Processor(), label(items[i]), o.Failure.Err)
		pc.IncrementFailures(1)
	}
	return out
}
