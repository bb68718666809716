package partition

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/tigerroll/congresso/pkg/batch/support/util/logger"
)

// ChunkOptions controls ForEachChunk.
type ChunkOptions struct {
	// Size is the number of items running concurrently. Values below 1 mean 1.
	Size int
	// Pause is waited between two chunks, never after the last one.
	Pause time.Duration
	// Label names the fan-out in log lines.
	Label string
}

// ItemFailure is the typed failure record of one item.
type ItemFailure struct {
	Index int
	Err   error
	// Panicked is true when the worker panicked instead of returning an error.
	Panicked bool
}

func (f *ItemFailure) Error() string {
	return fmt.Sprintf("item %d: %v", f.Index, f.Err)
}

func (f *ItemFailure) Unwrap() error {
	return f.Err
}

// Outcome is the settled result of one item. Exactly one of Value (when Failure is nil) and
// Failure is meaningful.
type Outcome[R any] struct {
	Index   int
	Value   R
	Failure *ItemFailure
}

// OK reports whether the worker succeeded.
func (o Outcome[R]) OK() bool {
	return o.Failure == nil
}

// Worker processes one item. index is the item's position in the input.
type Worker[T, R any] func(ctx context.Context, index int, item T) (R, error)

// ForEachChunk splits items into chunks of opts.Size and runs every item of a chunk in its
// own goroutine, waiting for all of them before pausing and moving to the next chunk.
// A failing or panicking worker never affects its siblings. The result holds one Outcome
// per input item at the item's index. Items not started because ctx was cancelled are
// reported as failures carrying the context error.
func ForEachChunk[T, R any](ctx context.Context, items []T, opts ChunkOptions, worker Worker[T, R]) []Outcome[R] {
	size := opts.Size
	if size < 1 {
		size = 1
	}
	outcomes := make([]Outcome[R], len(items))
	chunks := (len(items) + size - 1) / size

	for c := 0; c < chunks; c++ {
		start := c * size
		end := start + size
		if end > len(items) {
			end = len(items)
		}

		if err := ctx.Err(); err != nil {
			failRemaining(outcomes, start, errors.Wrap(err, "not started"))
			return outcomes
		}
		logger.Debugf("%s: chunk %d/%d (items %d-%d)", labelOf(opts), c+1, chunks, start+1, end)

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				outcomes[i] = runOne(ctx, i, items[i], worker)
			}(i)
		}
		wg.Wait()

		if c < chunks-1 && opts.Pause > 0 {
			t := time.NewTimer(opts.Pause)
			select {
			case <-ctx.Done():
				t.Stop()
				failRemaining(outcomes, end, errors.Wrap(ctx.Err(), "not started"))
				return outcomes
			case <-t.C:
			}
		}
	}
	return outcomes
}

func runOne[T, R any](ctx context.Context, i int, item T, worker Worker[T, R]) (out Outcome[R]) {
	out.Index = i
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("worker for item %d panicked: %v", i, r)
			out.Failure = &ItemFailure{Index: i, Err: errors.Newf("panic: %v", r), Panicked: true}
		}
	}()
	v, err := worker(ctx, i, item)
	if err != nil {
		out.Failure = &ItemFailure{Index: i, Err: err}
		return out
	}
	out.Value = v
	return out
}

func failRemaining[R any](outcomes []Outcome[R], from int, err error) {
	for i := from; i < len(outcomes); i++ {
		outcomes[i] = Outcome[R]{Index: i, Failure: &ItemFailure{Index: i, Err: err}}
	}
}

func labelOf(opts ChunkOptions) string {
	if opts.Label == "" {
		return "fan-out"
	}
	return opts.Label
}

// Failures returns the failure records of outcomes, in input order.
func Failures[R any](outcomes []Outcome[R]) []*ItemFailure {
	var out []*ItemFailure
	for _, o := range outcomes {
		if o.Failure != nil {
			out = append(out, o.Failure)
		}
	}
	return out
}
