// Package response holds the result of a search query.
package response

import (
	"time"

	"github.com/kailas-cloud/searchdex/internal/domain/entry"
)

// Response is the outcome of a query.
type Response struct {
	// Elapsed is the execution time reported by the backend.
	Elapsed time.Duration
	// Total is the number of matches the backend reported, which can exceed len(Entries).
	Total int
	// Entries holds the returned matches; never nil after a successful query.
	Entries []entry.Entry
	// Scores holds the relevance score of each entry, index-aligned with Entries.
	Scores []float64
	// Native is the backend payload (*db.SearchResult) for extractors needing backend-specific data.
	Native any
}

// New creates an empty response.
func New(elapsed time.Duration, total int) *Response {
	return &Response{
		Elapsed: elapsed,
		Total:   total,
		Entries: []entry.Entry{},
		Scores:  []float64{},
	}
}

// Append adds a match.
func (r *Response) Append(e entry.Entry, score float64) {
	r.Entries = append(r.Entries, e)
	r.Scores = append(r.Scores, score)
}

// Len returns the number of returned matches.
func (r *Response) Len() int { return len(r.Entries) }

// First returns the first entry, if any.
func (r *Response) First() (entry.Entry, bool) {
	if len(r.Entries) == 0 {
		return nil, false
	}
	return r.Entries[0], true
}
