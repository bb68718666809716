package model

import (
	"time"

	"github.com/cockroachdb/errors"
)

// ProcessorState is the lifecycle state of a processor run.
type ProcessorState string

const (
	StateCreated      ProcessorState = "CREATED"
	StateValidating   ProcessorState = "VALIDATING"
	StateExtracting   ProcessorState = "EXTRACTING"
	StateTransforming ProcessorState = "TRANSFORMING"
	StateLoading      ProcessorState = "LOADING"
	StateFinished     ProcessorState = "FINISHED"
	StateError        ProcessorState = "ERROR"
)

var nextState = map[ProcessorState]ProcessorState{
	StateCreated:      StateValidating,
	StateValidating:   StateExtracting,
	StateExtracting:   StateTransforming,
	StateTransforming: StateLoading,
	StateLoading:      StateFinished,
}

// IsTerminal reports FINISHED and ERROR.
func (s ProcessorState) IsTerminal() bool {
	return s == StateFinished || s == StateError
}

// CanTransition reports whether to is a legal successor of s.
// ERROR is reachable from every non-terminal state.
func (s ProcessorState) CanTransition(to ProcessorState) bool {
	if s.IsTerminal() {
		return false
	}
	if to == StateError {
		return true
	}
	return nextState[s] == to
}

// Transition returns to, or an error when the move is illegal.
func (s ProcessorState) Transition(to ProcessorState) (ProcessorState, error) {
	if !s.CanTransition(to) {
		return s, errors.Newf("illegal processor state transition %s -> %s", s, to)
	}
	return to, nil
}

// ResultStatus summarizes a run for the CLI.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultPartial ResultStatus = "partial"
	ResultError   ResultStatus = "error"
)

// ExitCode maps the status to the process exit code: 0 for success and partial runs.
func (s ResultStatus) ExitCode() int {
	if s == ResultError {
		return 1
	}
	return 0
}

// PhaseTiming is the wall-clock duration of one phase.
type PhaseTiming struct {
	Phase    Phase
	Duration time.Duration
}

// ProcessingResult is what a run hands back to the CLI. It is always produced,
// also when a phase fails or panics.
type ProcessingResult struct {
	RunID     string
	Processor string
	Status    ResultStatus
	State     ProcessorState
	Stats     StatsSnapshot
	Timings   []PhaseTiming
	Duration  time.Duration
	Cancelled bool
	// FailedPhase is set when Status is error.
	FailedPhase Phase
	Error       string
	Hint        string
}

// Timing returns the duration recorded for phase.
func (r *ProcessingResult) Timing(phase Phase) (time.Duration, bool) {
	for _, t := range r.Timings {
		if t.Phase == phase {
			return t.Duration, true
		}
	}
	return 0, false
}
