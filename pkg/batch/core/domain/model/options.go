// Package model holds the value types shared by the congresso batch engine:
// run options, counters, extraction fragments, store paths, batch operations and results.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tigerroll/congresso/pkg/batch/support/util/exception"
)

// Destination selects the store a run loads into.
type Destination string

const (
	DestinationPrimaryStore    Destination = "primary-store"
	DestinationEmulatedStore   Destination = "emulated-store"
	DestinationLocalFilesystem Destination = "local-filesystem"
)

// ParseDestination validates a destination name.
func ParseDestination(s string) (Destination, error) {
	switch d := Destination(strings.TrimSpace(s)); d {
	case DestinationPrimaryStore, DestinationEmulatedStore, DestinationLocalFilesystem:
		return d, nil
	}
	return "", exception.NewValidationError("options", fmt.Sprintf("unknown destination %q", s),
		"use primary-store, emulated-store or local-filesystem")
}

// DateRange is an inclusive date interval. A zero bound means unbounded.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether both bounds are unset.
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Contains reports whether t lies within the range.
func (r DateRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// YearWindows splits the range into calendar-year windows, oldest first.
func (r DateRange) YearWindows() []DateRange {
	if r.Start.IsZero() || r.End.IsZero() || r.End.Before(r.Start) {
		return []DateRange{r}
	}
	var windows []DateRange
	for start := r.Start; !start.After(r.End); {
		end := time.Date(start.Year(), time.December, 31, 0, 0, 0, 0, start.Location())
		if end.After(r.End) {
			end = r.End
		}
		windows = append(windows, DateRange{Start: start, End: end})
		start = time.Date(start.Year()+1, time.January, 1, 0, 0, 0, 0, start.Location())
	}
	return windows
}

// RunOptions is the immutable input of one job run. Build it with NewRunOptions.
type RunOptions struct {
	legislature int
	entityID    string
	limit       int
	dateRange   DateRange
	destination Destination
	concurrency int
	incremental bool
	verbose     bool
}

// RunOptionsInput carries the raw CLI values for NewRunOptions.
type RunOptionsInput struct {
	Legislature int
	EntityID    string
	Limit       int
	Start       time.Time
	End         time.Time
	Destination Destination
	Concurrency int
	Incremental bool
	Verbose     bool
}

// NewRunOptions validates the input and freezes it.
func NewRunOptions(in RunOptionsInput) (RunOptions, error) {
	if in.Legislature <= 0 {
		return RunOptions{}, exception.NewValidationError("options",
			fmt.Sprintf("legislature must be a positive number, got %d", in.Legislature), "e.g. congresso process materias 57")
	}
	if in.Limit < 0 {
		return RunOptions{}, exception.NewValidationError("options", "--limite must not be negative", "")
	}
	if in.Concurrency < 0 {
		return RunOptions{}, exception.NewValidationError("options", "--concorrencia must not be negative", "")
	}
	if !in.Start.IsZero() && !in.End.IsZero() && in.End.Before(in.Start) {
		return RunOptions{}, exception.NewValidationError("options", "--dataFim is before --dataInicio", "dates use the YYYY-MM-DD format")
	}
	if in.Destination == "" {
		in.Destination = DestinationPrimaryStore
	}
	if _, err := ParseDestination(string(in.Destination)); err != nil {
		return RunOptions{}, err
	}
	return RunOptions{
		legislature: in.Legislature,
		entityID:    strings.TrimSpace(in.EntityID),
		limit:       in.Limit,
		dateRange:   DateRange{Start: in.Start, End: in.End},
		destination: in.Destination,
		concurrency: in.Concurrency,
		incremental: in.Incremental,
		verbose:     in.Verbose,
	}, nil
}

func (o RunOptions) Legislature() int         { return o.legislature }
func (o RunOptions) EntityID() string         { return o.entityID }
func (o RunOptions) Limit() int               { return o.limit }
func (o RunOptions) DateRange() DateRange     { return o.dateRange }
func (o RunOptions) Destination() Destination { return o.destination }
func (o RunOptions) Incremental() bool        { return o.incremental }
func (o RunOptions) Verbose() bool            { return o.verbose }

// Concurrency returns the requested fan-out width, or fallback when none was given.
func (o RunOptions) Concurrency(fallback int) int {
	if o.concurrency > 0 {
		return o.concurrency
	}
	return fallback
}

// ExtractionWindow returns the date range to crawl. Incremental runs without explicit
// dates look back windowDays from now.
func (o RunOptions) ExtractionWindow(now time.Time, windowDays int) DateRange {
	if !o.dateRange.IsZero() || !o.incremental {
		return o.dateRange
	}
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return DateRange{Start: day.AddDate(0, 0, -windowDays), End: day}
}

// MaxPages picks the page ceiling for the run mode.
func (o RunOptions) MaxPages(full, incremental int) int {
	if o.incremental {
		return incremental
	}
	return full
}

// ApplyLimit truncates ids to the --limite cap.
func ApplyLimit[T any](o RunOptions, items []T) []T {
	if o.limit > 0 && len(items) > o.limit {
		return items[:o.limit]
	}
	return items
}

// NewRunID returns a unique identifier for a run.
func NewRunID() string {
	return uuid.NewString()
}
