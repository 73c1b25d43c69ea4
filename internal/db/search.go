package db

import "time"

// SearchResult is the output of a backend query.
type SearchResult struct {
	Took  time.Duration
	Total int
	Hits  []Hit
	Raw   any // driver payload, for callers needing backend specifics
}

// Hit is a single matched document.
type Hit struct {
	ID     string
	Score  float64
	Fields map[string]any
}
