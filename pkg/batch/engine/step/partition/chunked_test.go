package partition_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/congresso/pkg/batch/engine/step/partition"
)

func TestForEachChunkIsolatesFailures(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	boom := errors.New("item 3 always fails")

	var calls atomic.Int32
	outcomes := partition.ForEachChunk(context.Background(), items, partition.ChunkOptions{Size: 2}, func(ctx context.Context, i int, item int) (int, error) {
		calls.Add(1)
		if item == 3 {
			return 0, boom
		}
		return item * 10, nil
	})

	require.Len(t, outcomes, 5)
	assert.Equal(t, int32(5), calls.Load())
	for i, o := range outcomes {
		assert.Equal(t, i, o.Index)
		if items[i] == 3 {
			require.NotNil(t, o.Failure)
			assert.ErrorIs(t, o.Failure, boom)
			assert.Equal(t, 2, o.Failure.Index)
			continue
		}
		assert.True(t, o.OK())
		assert.Equal(t, items[i]*10, o.Value)
	}
	assert.Len(t, partition.Failures(outcomes), 1)
}

func TestForEachChunkPreservesOrderRegardlessOfCompletion(t *testing.T) {
	items := []time.Duration{30 * time.Millisecond, 0, 15 * time.Millisecond}
	outcomes := partition.ForEachChunk(context.Background(), items, partition.ChunkOptions{Size: 3}, func(ctx context.Context, i int, d time.Duration) (int, error) {
		time.Sleep(d)
		return i, nil
	})
	for i, o := range outcomes {
		assert.Equal(t, i, o.Value)
	}
}

func TestForEachChunkBoundsConcurrencyAndPausesBetweenChunks(t *testing.T) {
	var inFlight, peak atomic.Int32
	var mu sync.Mutex
	var starts []time.Time

	items := make([]int, 6)
	pause := 40 * time.Millisecond
	partition.ForEachChunk(context.Background(), items, partition.ChunkOptions{Size: 2, Pause: pause}, func(ctx context.Context, i int, _ int) (struct{}, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		mu.Lock()
		starts = append(starts, time.Now())
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return struct{}{}, nil
	})

	assert.LessOrEqual(t, peak.Load(), int32(2))
	require.Len(t, starts, 6)
	// the third start belongs to chunk 2 and must come after the pause
	assert.GreaterOrEqual(t, starts[2].Sub(starts[0]), pause)
}

func TestForEachChunkConvertsPanics(t *testing.T) {
	outcomes := partition.ForEachChunk(context.Background(), []string{"a", "b"}, partition.ChunkOptions{Size: 2}, func(ctx context.Context, i int, s string) (string, error) {
		if s == "a" {
			panic("nil map")
		}
		return s, nil
	})
	require.NotNil(t, outcomes[0].Failure)
	assert.True(t, outcomes[0].Failure.Panicked)
	assert.Equal(t, "b", outcomes[1].Value)
}

func TestForEachChunkReportsUnstartedItemsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	outcomes := partition.ForEachChunk(ctx, []int{1, 2, 3, 4}, partition.ChunkOptions{Size: 2, Pause: time.Hour}, func(ctx context.Context, i int, item int) (int, error) {
		if i == 1 {
			cancel()
		}
		return item, nil
	})

	require.Len(t, outcomes, 4)
	assert.True(t, outcomes[0].OK())
	assert.True(t, outcomes[1].OK())
	for _, o := range outcomes[2:] {
		require.NotNil(t, o.Failure)
		assert.ErrorIs(t, o.Failure, context.Canceled)
	}
}

func TestForEachChunkEmptyInput(t *testing.T) {
	outcomes := partition.ForEachChunk(context.Background(), []int(nil), partition.ChunkOptions{Size: 3}, func(ctx context.Context, i int, item int) (int, error) {
		t.Fatal("worker must not run")
		return 0, nil
	})
	assert.Empty(t, outcomes)
}
