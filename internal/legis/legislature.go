package legis

import (
	"time"

	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
)

// LegislaturePeriod returns the four-year term of a legislature: it starts on February 1st
// of 1795+4n and ends on January 31st four years later (the 57th runs 2023-2027).
func LegislaturePeriod(n int, loc *time.Location) model.DateRange {
	if loc == nil {
		loc = time.UTC
	}
	start := 1795 + 4*n
	return model.DateRange{
		Start: time.Date(start, time.February, 1, 0, 0, 0, 0, loc),
		End:   time.Date(start+4, time.January, 31, 0, 0, 0, 0, loc),
	}
}

// extractionWindows returns the yearly windows to crawl. Full runs without explicit dates
// cover the whole legislature when bounded is true and are left open otherwise.
func extractionWindows(opts model.RunOptions, now time.Time, windowDays int, bounded bool) []model.DateRange {
	window := opts.ExtractionWindow(now, windowDays)
	if window.IsZero() && bounded {
		window = LegislaturePeriod(opts.Legislature(), now.Location())
	}
	return window.YearWindows()
}

const (
	senadoDate = "20060102"
	camaraDate = "2006-01-02"
)

func dateParams(w model.DateRange, layout string) map[string]string {
	params := map[string]string{}
	if !w.Start.IsZero() {
		params["dataInicio"] = w.Start.Format(layout)
	}
	if !w.End.IsZero() {
		params["dataFim"] = w.End.Format(layout)
	}
	return params
}
