package model

import (
	"sync"
	"sync/atomic"
	"time"
)

// Phase names a processing phase.
type Phase string

const (
	PhaseValidate  Phase = "validate"
	PhaseExtract   Phase = "extract"
	PhaseTransform Phase = "transform"
	PhaseLoad      Phase = "load"
)

// ProcessingStats are the counters of one run. Counters only grow; every mutator ignores
// non-positive deltas. Safe for concurrent use.
type ProcessingStats struct {
	extracted   atomic.Int64
	transformed atomic.Int64
	loaded      atomic.Int64
	lost        atomic.Int64
	successes   atomic.Int64
	failures    atomic.Int64
	warnings    atomic.Int64
	total       atomic.Int64

	mu        sync.Mutex
	startedAt time.Time
	endedAt   time.Time
}

// NewProcessingStats creates zeroed counters.
func NewProcessingStats() *ProcessingStats {
	return &ProcessingStats{}
}

func add(c *atomic.Int64, n int) int64 {
	if n <= 0 {
		return c.Load()
	}
	return c.Add(int64(n))
}

// AddExtracted counts extracted records.
func (s *ProcessingStats) AddExtracted(n int) int64 { return add(&s.extracted, n) }

// AddTransformed counts transformed records.
func (s *ProcessingStats) AddTransformed(n int) int64 { return add(&s.transformed, n) }

// AddLoaded counts documents accepted by the store.
func (s *ProcessingStats) AddLoaded(n int) int64 { return add(&s.loaded, n) }

// AddLost counts documents discarded with a failed batch commit.
func (s *ProcessingStats) AddLost(n int) int64 { return add(&s.lost, n) }

// AddWarnings counts warnings.
func (s *ProcessingStats) AddWarnings(n int) int64 { return add(&s.warnings, n) }

// AddSuccesses counts successful work items. Returns false when the increment would make
// successes + failures exceed the declared total; the counter is left untouched in that case.
func (s *ProcessingStats) AddSuccesses(n int) bool { return s.addOutcome(&s.successes, n) }

// AddFailures is AddSuccesses for failed work items.
func (s *ProcessingStats) AddFailures(n int) bool { return s.addOutcome(&s.failures, n) }

func (s *ProcessingStats) addOutcome(c *atomic.Int64, n int) bool {
	if n <= 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if total := s.total.Load(); total > 0 && s.successes.Load()+s.failures.Load()+int64(n) > total {
		return false
	}
	c.Add(int64(n))
	return true
}

// SetTotal declares the number of work items of the run. A smaller value than the
// current total is ignored.
func (s *ProcessingStats) SetTotal(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int64(n) > s.total.Load() {
		s.total.Store(int64(n))
	}
}

// Start records the start time once.
func (s *ProcessingStats) Start(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() {
		s.startedAt = t
	}
}

// Finish records the end time.
func (s *ProcessingStats) Finish(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endedAt = t
}

// Snapshot returns a consistent copy of the counters.
func (s *ProcessingStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{
		Extracted:   s.extracted.Load(),
		Transformed: s.transformed.Load(),
		Loaded:      s.loaded.Load(),
		Lost:        s.lost.Load(),
		Successes:   s.successes.Load(),
		Failures:    s.failures.Load(),
		Warnings:    s.warnings.Load(),
		Total:       s.total.Load(),
		StartedAt:   s.startedAt,
		EndedAt:     s.endedAt,
	}
}

// StatsSnapshot is an immutable copy of ProcessingStats.
type StatsSnapshot struct {
	Extracted   int64     `json:"extraidos"`
	Transformed int64     `json:"transformados"`
	Loaded      int64     `json:"carregados"`
	Lost        int64     `json:"perdidos"`
	Successes   int64     `json:"sucessos"`
	Failures    int64     `json:"falhas"`
	Warnings    int64     `json:"avisos"`
	Total       int64     `json:"total"`
	StartedAt   time.Time `json:"inicio"`
	EndedAt     time.Time `json:"fim"`
}

// Elapsed returns the run duration, or zero while it has not finished.
func (s StatsSnapshot) Elapsed() time.Duration {
	if s.StartedAt.IsZero() || s.EndedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}
