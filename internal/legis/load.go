package legis

import (
	"context"
	"fmt"

	"github.com/tigerroll/congresso/pkg/batch/component/step/writer"
	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
	"github.com/tigerroll/congresso/pkg/batch/core/processor"
	"github.com/tigerroll/congresso/pkg/batch/support/util/logger"
)

// Document is one transformed document ready for the store.
type Document struct {
	Collection model.CollectionPath
	ID         string
	Data       any
}

// Path returns collection/id for logs.
func (d Document) Path() string {
	return d.Collection.String() + "/" + d.ID
}

const progressEvery = 50

// loadDocuments writes docs through a batch writer. Oversized documents become warnings.
// A failed commit discards its batch and the load goes on with a fresh one; the discarded
// documents are counted as lost and each failed commit as a warning.
func loadDocuments(ctx context.Context, pc *processor.ProcessingContext, d Deps, docs []Document) error {
	w := writer.NewBatchWriter(d.Store, d.Config.Congresso.Writer,
		writer.WithRecorder(pc.Recorder()),
		writer.WithWarningHook(func(error) { pc.IncrementWarnings(1) }),
	)
	for i, doc := range docs {
		if err := w.Set(ctx, doc.Collection, doc.ID, doc.Data); err != nil {
			return err
		}
		if (i+1)%progressEvery == 0 {
			pc.EmitProgress(model.ProgressLoading, 80+20*(i+1)/len(docs), fmt.Sprintf("%d/%d documents queued", i+1, len(docs)))
		}
	}
	if err := w.Commit(ctx); err != nil && ctx.Err() != nil {
		return err
	}

	res := w.Result()
	pc.AddLoaded(res.Committed)
	pc.AddLost(res.Failed)
	pc.IncrementWarnings(res.FailedCommits)
	logger.Infof("[%s] %d documents committed to %s in %d commits (%d dropped, %d lost)",
		pc.Processor(), res.Committed, d.Store.Name(), res.Commits, res.Dropped, res.Failed)
	if res.Failed > 0 {
		logger.Warnf("[%s] %d of %d documents were lost in %d failed commits", pc.Processor(), res.Failed, res.Queued, res.FailedCommits)
	}
	return nil
}
