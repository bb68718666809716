package model

import (
	"encoding/json"
	"time"
)

// ExtractionFragment is one upstream response (or one atomically paginated resource)
// with its provenance. It is not modified after extraction.
type ExtractionFragment struct {
	Source    string            `json:"source"`
	Params    map[string]string `json:"params,omitempty"`
	FetchedAt time.Time         `json:"fetchedAt"`
	// Payload is the decoded JSON body. Numbers are kept as json.Number.
	Payload any `json:"payload,omitempty"`
	// Raw is the undecoded body of a single response, in document order. Empty for
	// fragments assembled from several pages.
	Raw json.RawMessage `json:"-"`
	// Err is set when the extraction of this fragment failed.
	Err string `json:"error,omitempty"`
}

// Failed reports whether the fragment carries an extraction error.
func (f ExtractionFragment) Failed() bool {
	return f.Err != ""
}

// ConsolidatedRecord is the merged payload of a group of fragments, ready for transformation.
type ConsolidatedRecord struct {
	Key string `json:"key"`
	// Items are in fragment order, then in-fragment order. No de-duplication is applied.
	Items            []any    `json:"items"`
	Sources          []string `json:"sources"`
	MatchedFragments int      `json:"matchedFragments"`
	SkippedFragments int      `json:"skippedFragments"`
}

// Len returns the number of consolidated items.
func (r *ConsolidatedRecord) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Items)
}
