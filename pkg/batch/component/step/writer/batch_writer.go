// Package writer provides the size-bounded batch writer that loads documents into a
// document store.
package writer

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/tigerroll/congresso/pkg/batch/adapter/docstore"
	"github.com/tigerroll/congresso/pkg/batch/core/config"
	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/congresso/pkg/batch/core/metrics"
	"github.com/tigerroll/congresso/pkg/batch/support/util/exception"
	"github.com/tigerroll/congresso/pkg/batch/support/util/logger"
)

const moduleName = "writer"

// Defaults applied when WriterConfig leaves a ceiling unset.
const (
	DefaultMaxOperations    = 250
	DefaultMaxDocumentBytes = 996147
	DefaultCommitTimeout    = 30 * time.Second
)

// DropReasonOversized labels documents dropped for exceeding the byte ceiling.
const DropReasonOversized = "oversized"

// WriteResult summarizes what a BatchWriter did.
type WriteResult struct {
	Queued        int // Queued counts accepted operations.
	Committed     int // Committed counts operations in successful commits.
	Failed        int // Failed counts operations lost with a failed commit.
	Dropped       int // Dropped counts oversized documents never queued.
	Commits       int
	FailedCommits int
}

// SetOption qualifies a Set call.
type SetOption func(*model.BatchOperation)

// WithMerge merges the document into an existing one instead of replacing it.
func WithMerge() SetOption {
	return func(op *model.BatchOperation) { op.Merge = true }
}

// WriterOption customizes a BatchWriter.
type WriterOption func(*BatchWriter)

// WithRecorder records commit and drop metrics.
func WithRecorder(r metrics.MetricRecorder) WriterOption {
	return func(w *BatchWriter) {
		if r != nil {
			w.recorder = r
		}
	}
}

// WithWarningHook is called once for every dropped document.
func WithWarningHook(fn func(err error)) WriterOption {
	return func(w *BatchWriter) { w.onWarning = fn }
}

// BatchWriter queues document writes and commits them to a store in batches of at most
// MaxOperations. Safe for concurrent use.
type BatchWriter struct {
	store         docstore.DocumentStore
	maxOperations int
	maxDocBytes   int
	commitTimeout time.Duration
	recorder      metrics.MetricRecorder
	onWarning     func(err error)

	mu      sync.Mutex
	pending []model.BatchOperation
	result  WriteResult
}

// NewBatchWriter creates a writer on store.
func NewBatchWriter(store docstore.DocumentStore, cfg config.WriterConfig, opts ...WriterOption) *BatchWriter {
	w := &BatchWriter{
		store:         store,
		maxOperations: cfg.MaxOperations,
		maxDocBytes:   cfg.MaxDocumentBytes,
		commitTimeout: cfg.CommitTimeout(),
		recorder:      metrics.NewNoOpMetricRecorder(),
	}
	if w.maxOperations <= 0 {
		w.maxOperations = DefaultMaxOperations
	}
	if w.maxDocBytes <= 0 {
		w.maxDocBytes = DefaultMaxDocumentBytes
	}
	if w.commitTimeout <= 0 {
		w.commitTimeout = DefaultCommitTimeout
	}
	for _, opt := range opts {
		opt(w)
	}
	w.pending = make([]model.BatchOperation, 0, w.maxOperations)
	return w
}

// Set writes doc at collection/id. Oversized documents are dropped with a warning and nil is
// returned; invalid paths and unencodable documents return an error.
func (w *BatchWriter) Set(ctx context.Context, collection model.CollectionPath, id string, doc any, opts ...SetOption) error {
	op, err := w.prepare(model.OpSet, collection, id, doc)
	if err != nil || op == nil {
		return err
	}
	for _, opt := range opts {
		opt(op)
	}
	w.enqueue(ctx, *op)
	return nil
}

// Update merges doc into the existing document at collection/id. The commit fails when the
// document does not exist.
func (w *BatchWriter) Update(ctx context.Context, collection model.CollectionPath, id string, doc any) error {
	op, err := w.prepare(model.OpUpdate, collection, id, doc)
	if err != nil || op == nil {
		return err
	}
	w.enqueue(ctx, *op)
	return nil
}

// Delete removes the document at collection/id.
func (w *BatchWriter) Delete(ctx context.Context, collection model.CollectionPath, id string) error {
	op, err := w.prepare(model.OpDelete, collection, id, nil)
	if err != nil {
		return err
	}
	w.enqueue(ctx, *op)
	return nil
}

// prepare validates the target and encodes the document. A nil operation with a nil error
// means the document was dropped.
func (w *BatchWriter) prepare(kind model.OperationKind, collection model.CollectionPath, id string, doc any) (*model.BatchOperation, error) {
	if collection.IsZero() {
		return nil, exception.NewInvalidPathError(moduleName, "", "collection path is empty")
	}
	path, err := collection.Doc(id)
	if err != nil {
		return nil, err
	}
	op := &model.BatchOperation{Kind: kind, Path: path}
	if kind == model.OpDelete {
		return op, nil
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to encode document "+path.String(), err, true, false)
	}
	if len(data) > w.maxDocBytes {
		dropErr := exception.NewOversizedDocumentError(moduleName, path.String(), len(data), w.maxDocBytes)
		logger.Warnf("Dropping document: %v", dropErr)
		w.mu.Lock()
		w.result.Dropped++
		w.mu.Unlock()
		w.recorder.RecordDocumentDropped(context.Background(), DropReasonOversized)
		if w.onWarning != nil {
			w.onWarning(dropErr)
		}
		return nil, nil
	}
	op.Data = data
	op.Size = len(data)
	return op, nil
}

// enqueue appends op and commits when the batch reaches the ceiling. Auto-commit errors are
// logged and absorbed.
func (w *BatchWriter) enqueue(ctx context.Context, op model.BatchOperation) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, op)
	w.result.Queued++
	if len(w.pending) >= w.maxOperations {
		logger.Debugf("Batch ceiling of %d operations reached on %s, committing.", w.maxOperations, w.store.Name())
		_ = w.commitLocked(ctx)
	}
}

// Commit sends the pending operations as one atomic store commit bounded by the commit
// timeout. On failure the batch is discarded and a BatchCommitError is returned.
func (w *BatchWriter) Commit(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.commitLocked(ctx)
}

func (w *BatchWriter) commitLocked(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}
	ops := w.pending
	w.pending = make([]model.BatchOperation, 0, w.maxOperations)

	cctx, cancel := context.WithTimeout(ctx, w.commitTimeout)
	defer cancel()
	started := time.Now()
	err := w.commitWithTimeout(cctx, ops)
	elapsed := time.Since(started)
	w.recorder.RecordBatchCommit(ctx, w.store.Name(), len(ops), elapsed, err)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = errors.Wrapf(err, "commit exceeded %s", w.commitTimeout)
		}
		w.result.Failed += len(ops)
		w.result.FailedCommits++
		commitErr := exception.NewBatchCommitError(moduleName, len(ops), err)
		logger.Errorf("Discarding batch of %d operations on %s: %v", len(ops), w.store.Name(), err)
		return commitErr
	}
	w.result.Committed += len(ops)
	w.result.Commits++
	logger.Debugf("Committed %d operations to %s in %s.", len(ops), w.store.Name(), elapsed.Round(time.Millisecond))
	return nil
}

// commitWithTimeout returns when the store finishes or the deadline passes, whichever is
// first. A store that ignores its context keeps running in the background.
func (w *BatchWriter) commitWithTimeout(ctx context.Context, ops []model.BatchOperation) error {
	done := make(chan error, 1)
	go func() { done <- w.store.Commit(ctx, ops) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued operations.
func (w *BatchWriter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Result returns the counters so far.
func (w *BatchWriter) Result() WriteResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.result
}
