package model_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/congresso/pkg/batch/core/domain/model"
	"github.com/tigerroll/congresso/pkg/batch/support/util/exception"
)

func TestDocumentPathConstruction(t *testing.T) {
	col, err := model.ParseCollectionPath("/congressoData/senado/materias/")
	require.NoError(t, err)
	assert.Equal(t, "congressoData/senado/materias", col.String())

	doc, err := col.Doc("5012")
	require.NoError(t, err)
	assert.Equal(t, "congressoData/senado/materias/5012", doc.String())
	assert.Equal(t, "5012", doc.ID())
	assert.Equal(t, col.String(), doc.Parent().String())

	sub, err := doc.Sub("anos")
	require.NoError(t, err)
	assert.Equal(t, "congressoData/senado/materias/5012/anos", sub.String())

	// Building a sibling must not alias the parent's segments.
	other, err := col.Doc("7")
	require.NoError(t, err)
	assert.Equal(t, "congressoData/senado/materias/5012", doc.String())
	assert.Equal(t, "congressoData/senado/materias/7", other.String())
}

func TestInvalidPaths(t *testing.T) {
	tests := []struct {
		name string
		fn   func() error
	}{
		{"empty collection", func() error { _, err := model.ParseCollectionPath(" / "); return err }},
		{"even collection", func() error { _, err := model.ParseCollectionPath("a/b"); return err }},
		{"empty segment", func() error { _, err := model.ParseCollectionPath("a//c"); return err }},
		{"odd document", func() error { _, err := model.ParseDocumentPath("a/b/c"); return err }},
		{"empty id", func() error {
			c, _ := model.Collection("senadores")
			_, err := c.Doc("//")
			return err
		}},
		{"id with slash", func() error {
			c, _ := model.Collection("senadores")
			_, err := c.Doc("a/b")
			return err
		}},
		{"zero collection", func() error { _, err := model.CollectionPath{}.Doc("x"); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			require.Error(t, err)
			assert.ErrorIs(t, err, exception.ErrInvalidPath)
		})
	}
}

func TestNewRunOptions(t *testing.T) {
	_, err := model.NewRunOptions(model.RunOptionsInput{Legislature: 0})
	assert.ErrorIs(t, err, exception.ErrValidation)

	_, err = model.NewRunOptions(model.RunOptionsInput{Legislature: 57, Destination: "ftp"})
	assert.ErrorIs(t, err, exception.ErrValidation)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = model.NewRunOptions(model.RunOptionsInput{Legislature: 57, Start: start, End: start.AddDate(0, 0, -1)})
	assert.ErrorIs(t, err, exception.ErrValidation)

	opts, err := model.NewRunOptions(model.RunOptionsInput{Legislature: 57, EntityID: " 5012 ", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 57, opts.Legislature())
	assert.Equal(t, "5012", opts.EntityID())
	assert.Equal(t, model.DestinationPrimaryStore, opts.Destination())
	assert.Equal(t, 5, opts.Concurrency(5))
	assert.Equal(t, []int{1, 2}, model.ApplyLimit(opts, []int{1, 2, 3}))
	assert.Equal(t, 100, opts.MaxPages(100, 20))
}

func TestIncrementalWindow(t *testing.T) {
	opts, err := model.NewRunOptions(model.RunOptionsInput{Legislature: 57, Incremental: true})
	require.NoError(t, err)

	now := time.Date(2024, 3, 31, 15, 4, 5, 0, time.UTC)
	w := opts.ExtractionWindow(now, 30)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), w.End)
	assert.Equal(t, 20, opts.MaxPages(100, 20))
}

func TestYearWindows(t *testing.T) {
	r := model.DateRange{
		Start: time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
	}
	w := r.YearWindows()
	require.Len(t, w, 3)
	assert.Equal(t, r.Start, w[0].Start)
	assert.Equal(t, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), w[0].End)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), w[1].Start)
	assert.Equal(t, r.End, w[2].End)

	assert.Len(t, model.DateRange{}.YearWindows(), 1)
}

func TestProcessingStatsConcurrentIncrements(t *testing.T) {
	s := model.NewProcessingStats()
	s.SetTotal(1000)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				if i%2 == 0 {
					s.AddSuccesses(1)
				} else {
					s.AddFailures(1)
				}
				s.AddWarnings(1)
			}
		}(i)
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, int64(250), snap.Successes)
	assert.Equal(t, int64(250), snap.Failures)
	assert.Equal(t, int64(500), snap.Warnings)
}

func TestProcessingStatsAreMonotonicAndBounded(t *testing.T) {
	s := model.NewProcessingStats()
	s.AddWarnings(3)
	s.AddWarnings(-2)
	s.AddWarnings(0)
	assert.Equal(t, int64(3), s.Snapshot().Warnings)

	s.SetTotal(2)
	assert.True(t, s.AddSuccesses(1))
	assert.True(t, s.AddFailures(1))
	assert.False(t, s.AddSuccesses(1))
	assert.Equal(t, int64(1), s.Snapshot().Successes)
}

func TestProcessorStateTransitions(t *testing.T) {
	s := model.StateCreated
	for _, next := range []model.ProcessorState{model.StateValidating, model.StateExtracting, model.StateTransforming, model.StateLoading, model.StateFinished} {
		var err error
		s, err = s.Transition(next)
		require.NoError(t, err)
	}
	assert.True(t, s.IsTerminal())
	assert.False(t, s.CanTransition(model.StateError))

	assert.False(t, model.StateCreated.CanTransition(model.StateLoading))
	assert.True(t, model.StateExtracting.CanTransition(model.StateError))
	assert.Equal(t, 0, model.ResultPartial.ExitCode())
	assert.Equal(t, 1, model.ResultError.ExitCode())
}
