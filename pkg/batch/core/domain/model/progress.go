package model

import "time"

// ProgressStatus is the status carried by a ProgressEvent.
type ProgressStatus string

const (
	ProgressStarted      ProgressStatus = "STARTED"
	ProgressExtracting   ProgressStatus = "EXTRACTING"
	ProgressTransforming ProgressStatus = "TRANSFORMING"
	ProgressLoading      ProgressStatus = "LOADING"
	ProgressDone         ProgressStatus = "DONE"
	ProgressError        ProgressStatus = "ERROR"
	ProgressCancelled    ProgressStatus = "CANCELLED"
)

// ProgressEvent is emitted during a run and never stored.
type ProgressEvent struct {
	RunID     string
	Processor string
	Status    ProgressStatus
	// Percent is clamped to 0..100.
	Percent int
	Message string
	Time    time.Time
}

// ClampPercent bounds p to 0..100.
func ClampPercent(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
